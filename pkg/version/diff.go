package version

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Diff is the line-level change between two consecutive versions.
type Diff struct {
	AddedLines   []string `json:"added_lines"`
	RemovedLines []string `json:"removed_lines"`
}

// IsEmpty reports whether the diff carries no changes.
func (d Diff) IsEmpty() bool {
	return len(d.AddedLines) == 0 && len(d.RemovedLines) == 0
}

// SplitLines splits content on "\n". A trailing "\r" stays part of its line.
// Empty content has no lines.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

// ComputeDiff returns the lines removed from oldContent and added in newContent,
// each list in document order. Comparison is exact and case sensitive.
func ComputeDiff(oldContent, newContent string) (diff Diff, err error) {
	defer func() {
		if r := recover(); r != nil {
			diff = Diff{}
			err = fmt.Errorf("diff computation panicked: %v", r)
		}
	}()

	if oldContent == newContent {
		return Diff{}, nil
	}

	a := SplitLines(oldContent)
	b := SplitLines(newContent)
	if len(a) == 0 {
		return Diff{AddedLines: append([]string(nil), b...)}, nil
	}

	// autojunk off: repeated lines in long legal documents are real content
	matcher := difflib.NewMatcherWithJunk(a, b, false, nil)
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'r':
			diff.RemovedLines = append(diff.RemovedLines, a[op.I1:op.I2]...)
			diff.AddedLines = append(diff.AddedLines, b[op.J1:op.J2]...)
		case 'd':
			diff.RemovedLines = append(diff.RemovedLines, a[op.I1:op.I2]...)
		case 'i':
			diff.AddedLines = append(diff.AddedLines, b[op.J1:op.J2]...)
		}
	}
	return diff, nil
}

// UnifiedDiff renders the change from oldContent to newContent in unified format.
func UnifiedDiff(oldContent, newContent string, fromLabel, toLabel string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldContent),
		B:        difflib.SplitLines(newContent),
		FromFile: fromLabel,
		ToFile:   toLabel,
		Context:  3,
	})
}
