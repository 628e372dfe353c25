package session

import (
	"strings"
	"time"
)

// Accumulator collects streamed chunks of the artifact during generation.
// It is owned by a Machine and guarded by the machine's lock.
type Accumulator struct {
	buf         strings.Builder
	active      bool
	completedAt time.Time
	now         func() time.Time
}

func NewAccumulator() *Accumulator {
	return &Accumulator{now: time.Now}
}

func (a *Accumulator) Reset() {
	a.buf.Reset()
	a.active = false
	a.completedAt = time.Time{}
}

// Append adds text and reports whether this was the first chunk since the
// last reset.
func (a *Accumulator) Append(text string) bool {
	first := !a.active
	a.active = true
	a.buf.WriteString(text)
	return first
}

func (a *Accumulator) Current() string {
	return a.buf.String()
}

func (a *Accumulator) IsActive() bool {
	return a.active
}

// Complete stamps the completion time and returns the accumulated text.
func (a *Accumulator) Complete() string {
	a.completedAt = a.now()
	a.active = false
	return a.buf.String()
}

// CompletedAt is zero until Complete is called.
func (a *Accumulator) CompletedAt() time.Time {
	return a.completedAt
}
