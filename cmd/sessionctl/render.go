package main

import (
	"fmt"
	"io"

	"ai-casedraft-be/internal/dto"
	"ai-casedraft-be/pkg/session"

	"github.com/fatih/color"
)

type renderer struct {
	w io.Writer

	stage     *color.Color
	text      *color.Color
	ok        *color.Color
	bad       *color.Color
	question  *color.Color
	lastStage session.Stage
	streaming bool

	done   bool
	failed bool
}

func newRenderer(w io.Writer) *renderer {
	return &renderer{
		w:        w,
		stage:    color.New(color.FgYellow),
		text:     color.New(color.FgWhite),
		ok:       color.New(color.FgGreen, color.Bold),
		bad:      color.New(color.FgRed, color.Bold),
		question: color.New(color.FgMagenta),
	}
}

// render prints u and reports whether the session reached a resting state.
func (r *renderer) render(u dto.SessionUpdate) bool {
	switch u.Kind {
	case dto.UpdateChunk, dto.UpdateEditChunk:
		r.streaming = true
		r.text.Fprint(r.w, u.Chunk)
		return false

	case dto.UpdateStage:
		if u.Snapshot == nil {
			return false
		}
		snap := u.Snapshot
		if snap.Stage != r.lastStage {
			r.breakLine()
			r.stage.Fprintf(r.w, "[%3.0f%%] %s (%s) %s\n", snap.Progress*100, snap.Stage, snap.Status, snap.Message)
			r.lastStage = snap.Stage
		}
		// Attaching to a session that has already finished.
		if !snap.RunActive && snap.Stage == session.StageFinalized {
			r.ok.Fprintf(r.w, "Draft finalized (%d versions)\n", snap.VersionCount)
			r.done = true
		}
		return r.done

	case dto.UpdateQuestion:
		r.breakLine()
		if u.Snapshot != nil && u.Snapshot.Question != nil {
			r.question.Fprintf(r.w, "? %s\n", u.Snapshot.Question.Prompt)
			for i, opt := range u.Snapshot.Question.Options {
				r.question.Fprintf(r.w, "  %d) %s\n", i+1, opt)
			}
		}
		r.question.Fprintln(r.w, "Answer with POST /session/v1/"+u.SessionId+"/answer")
		r.done = true

	case dto.UpdateFinalized:
		r.breakLine()
		n := 0
		if u.Version != nil {
			n = u.Version.SequenceNumber
		}
		r.ok.Fprintf(r.w, "Draft finalized as version %d\n", n)
		r.done = true

	case dto.UpdateFailed:
		r.breakLine()
		msg := u.Message
		if u.Snapshot != nil {
			msg = fmt.Sprintf("%s (%s)", u.Snapshot.Error, u.Snapshot.ErrorKind)
			if u.Snapshot.CorrelationID != "" {
				msg += " correlation " + u.Snapshot.CorrelationID
			}
		}
		r.bad.Fprintf(r.w, "Generation failed: %s\n", msg)
		r.done, r.failed = true, true

	case dto.UpdateCancelled:
		r.breakLine()
		r.bad.Fprintln(r.w, "Run cancelled")
		r.done = true

	case dto.UpdateVersion:
		if u.Version != nil {
			r.breakLine()
			r.ok.Fprintf(r.w, "Version %d recorded (%s)\n", u.Version.SequenceNumber, u.Version.Origin)
		}
	}
	return r.done
}

func (r *renderer) breakLine() {
	if r.streaming {
		fmt.Fprintln(r.w)
		r.streaming = false
	}
}
