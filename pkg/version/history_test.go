package version

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDiff(t *testing.T) {
	tests := []struct {
		name        string
		oldContent  string
		newContent  string
		wantAdded   []string
		wantRemoved []string
	}{
		{
			name:       "identical content",
			oldContent: "a\nb",
			newContent: "a\nb",
		},
		{
			name:       "no predecessor",
			oldContent: "",
			newContent: "# Petição\n\nTexto",
			wantAdded:  []string{"# Petição", "", "Texto"},
		},
		{
			name:        "single replaced line",
			oldContent:  "corrigido pelo IPCA-E\nfim",
			newContent:  "corrigido pelo INPC\nfim",
			wantAdded:   []string{"corrigido pelo INPC"},
			wantRemoved: []string{"corrigido pelo IPCA-E"},
		},
		{
			name:        "case sensitive",
			oldContent:  "Autor",
			newContent:  "autor",
			wantAdded:   []string{"autor"},
			wantRemoved: []string{"Autor"},
		},
		{
			name:        "carriage return is part of the line",
			oldContent:  "a\r\nb",
			newContent:  "a\nb",
			wantAdded:   []string{"a"},
			wantRemoved: []string{"a\r"},
		},
		{
			name:        "everything removed",
			oldContent:  "a\nb",
			newContent:  "",
			wantRemoved: []string{"a", "b"},
		},
		{
			name:       "insertion keeps order",
			oldContent: "1\n4",
			newContent: "1\n2\n3\n4",
			wantAdded:  []string{"2", "3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff, err := ComputeDiff(tt.oldContent, tt.newContent)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAdded, diff.AddedLines)
			assert.Equal(t, tt.wantRemoved, diff.RemovedLines)
		})
	}
}

func lineCounts(lines []string) map[string]int {
	counts := make(map[string]int)
	for _, l := range lines {
		counts[l]++
	}
	return counts
}

func TestComputeDiff_CountConsistency(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vocabulary := []string{"a", "b", "c", "Cláusula 1", "", "fim"}
	randomDoc := func() string {
		n := rng.Intn(12)
		lines := make([]string, n)
		for i := range lines {
			lines[i] = vocabulary[rng.Intn(len(vocabulary))]
		}
		return strings.Join(lines, "\n")
	}

	for round := 0; round < 300; round++ {
		oldContent, newContent := randomDoc(), randomDoc()
		diff, err := ComputeDiff(oldContent, newContent)
		require.NoError(t, err)

		oldCounts := lineCounts(SplitLines(oldContent))
		newCounts := lineCounts(SplitLines(newContent))
		added := lineCounts(diff.AddedLines)
		removed := lineCounts(diff.RemovedLines)

		for _, l := range vocabulary {
			assert.Equal(t, newCounts[l]-oldCounts[l], added[l]-removed[l],
				"round %d line %q old=%q new=%q", round, l, oldContent, newContent)
		}
	}
}

func TestHistory_SequenceNumbersAreGapFree(t *testing.T) {
	h := NewHistory(nil)

	v1 := h.RecordVersion("a", OriginInitial, "")
	v2 := h.RecordVersion("a\nb", OriginChatEdit, "adicione b")
	v3 := h.RecordVersion("b", OriginChatEdit, "remova a")

	assert.Equal(t, 1, v1.SequenceNumber)
	assert.Equal(t, 2, v2.SequenceNumber)
	assert.Equal(t, 3, v3.SequenceNumber)
	assert.Equal(t, []string{"a"}, v1.DiffAgainstPrevious.AddedLines)
	assert.Equal(t, []string{"b"}, v2.DiffAgainstPrevious.AddedLines)
	assert.Equal(t, []string{"a"}, v3.DiffAgainstPrevious.RemovedLines)
	assert.Equal(t, 3, h.Len())

	list := h.ListVersions()
	require.Len(t, list, 3)
	assert.Equal(t, []int{3, 2, 1}, []int{list[0].SequenceNumber, list[1].SequenceNumber, list[2].SequenceNumber})
}

func TestHistory_Restore(t *testing.T) {
	h := NewHistory(nil)
	h.RecordVersion("original", OriginInitial, "")
	h.RecordVersion("editado", OriginChatEdit, "troque")

	restored, err := h.Restore(1)
	require.NoError(t, err)

	assert.Equal(t, 3, restored.SequenceNumber)
	assert.Equal(t, "original", restored.Content)
	assert.Equal(t, OriginManualRestore, restored.Origin)
	assert.Equal(t, "restored from version 1", restored.TriggeringDescription)
	assert.Equal(t, 1, restored.RestoredFrom)
	assert.Equal(t, []string{"original"}, restored.DiffAgainstPrevious.AddedLines)
	assert.Equal(t, []string{"editado"}, restored.DiffAgainstPrevious.RemovedLines)

	first, err := h.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "original", first.Content)
	assert.Equal(t, OriginInitial, first.Origin)
}

func TestHistory_RestoreCurrentStillAdvances(t *testing.T) {
	h := NewHistory(nil)
	h.RecordVersion("x", OriginInitial, "")

	v, err := h.Restore(1)
	require.NoError(t, err)

	assert.Equal(t, 2, v.SequenceNumber)
	assert.True(t, v.DiffAgainstPrevious.IsEmpty())
	assert.Equal(t, 2, h.Len())
}

func TestHistory_RestoreMissing(t *testing.T) {
	h := NewHistory(nil)
	h.RecordVersion("x", OriginInitial, "")

	for _, n := range []int{0, -1, 2, 99} {
		_, err := h.Restore(n)
		assert.ErrorIs(t, err, ErrVersionNotFound, "restore %d", n)
	}
	_, err := h.Get(5)
	assert.ErrorIs(t, err, ErrVersionNotFound)
	assert.Equal(t, 1, h.Len())
}

func TestHistory_ReturnedVersionsAreCopies(t *testing.T) {
	h := NewHistory(nil)
	h.RecordVersion("a\nb", OriginInitial, "")

	list := h.ListVersions()
	list[0].DiffAgainstPrevious.AddedLines[0] = "mutated"

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, "a", latest.DiffAgainstPrevious.AddedLines[0])
}

func TestHistory_LatestEmpty(t *testing.T) {
	_, ok := NewHistory(nil).Latest()
	assert.False(t, ok)
}

func TestUnifiedDiff(t *testing.T) {
	out, err := UnifiedDiff("a\nb\n", "a\nc\n", "v1", "v2")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "--- v1\n+++ v2\n"))
	assert.Contains(t, out, "-b\n")
	assert.Contains(t, out, "+c\n")
	assert.Contains(t, out, " a\n")
}
