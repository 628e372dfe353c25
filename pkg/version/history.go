package version

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-casedraft-be/internal/pkg/logger"
)

var ErrVersionNotFound = errors.New("version not found")

// Origin tells what produced a version.
type Origin string

const (
	OriginInitial       Origin = "initial"
	OriginChatEdit      Origin = "chat-edit"
	OriginManualRestore Origin = "manual-restore"
)

// Version is an immutable snapshot of the artifact.
type Version struct {
	SequenceNumber        int       `json:"sequence_number"`
	Content               string    `json:"content"`
	Origin                Origin    `json:"origin"`
	TriggeringDescription string    `json:"triggering_description"`
	CreatedAt             time.Time `json:"created_at"`
	DiffAgainstPrevious   Diff      `json:"diff_against_previous"`
	RestoredFrom          int       `json:"restored_from,omitempty"`
}

func (v Version) clone() Version {
	v.DiffAgainstPrevious = Diff{
		AddedLines:   append([]string(nil), v.DiffAgainstPrevious.AddedLines...),
		RemovedLines: append([]string(nil), v.DiffAgainstPrevious.RemovedLines...),
	}
	return v
}

// History is the append-only version log of one session's artifact.
type History struct {
	mu       sync.RWMutex
	versions []Version
	now      func() time.Time
	logger   logger.ILogger
}

func NewHistory(log logger.ILogger) *History {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &History{now: time.Now, logger: log}
}

// RecordVersion appends content as the next version. A diff failure is logged
// and the version is still recorded, with an empty diff.
func (h *History) RecordVersion(content string, origin Origin, description string) Version {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.recordLocked(content, origin, description, 0)
}

func (h *History) recordLocked(content string, origin Origin, description string, restoredFrom int) Version {
	previous := ""
	if n := len(h.versions); n > 0 {
		previous = h.versions[n-1].Content
	}

	diff, err := ComputeDiff(previous, content)
	if err != nil {
		h.logger.Error("VersionHistory", "Diff failed, recording version without diff", map[string]interface{}{
			"error":    err.Error(),
			"sequence": len(h.versions) + 1,
		})
		diff = Diff{}
	}

	v := Version{
		SequenceNumber:        len(h.versions) + 1,
		Content:               content,
		Origin:                origin,
		TriggeringDescription: description,
		CreatedAt:             h.now(),
		DiffAgainstPrevious:   diff,
		RestoredFrom:          restoredFrom,
	}
	h.versions = append(h.versions, v)

	h.logger.Debug("VersionHistory", "Version recorded", map[string]interface{}{
		"sequence": v.SequenceNumber,
		"origin":   string(origin),
		"added":    len(diff.AddedLines),
		"removed":  len(diff.RemovedLines),
	})
	return v.clone()
}

// ListVersions returns every version, most recent first.
func (h *History) ListVersions() []Version {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Version, 0, len(h.versions))
	for i := len(h.versions) - 1; i >= 0; i-- {
		out = append(out, h.versions[i].clone())
	}
	return out
}

func (h *History) Get(sequenceNumber int) (Version, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if sequenceNumber < 1 || sequenceNumber > len(h.versions) {
		return Version{}, fmt.Errorf("version %d: %w", sequenceNumber, ErrVersionNotFound)
	}
	return h.versions[sequenceNumber-1].clone(), nil
}

// Latest returns the newest version, false when the history is empty.
func (h *History) Latest() (Version, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.versions) == 0 {
		return Version{}, false
	}
	return h.versions[len(h.versions)-1].clone(), true
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.versions)
}

// Restore appends a manual-restore copy of version n. Restoring the current
// version is allowed and still advances the history.
func (h *History) Restore(sequenceNumber int) (Version, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sequenceNumber < 1 || sequenceNumber > len(h.versions) {
		return Version{}, fmt.Errorf("restore version %d: %w", sequenceNumber, ErrVersionNotFound)
	}
	source := h.versions[sequenceNumber-1]
	return h.recordLocked(source.Content, OriginManualRestore, RestoreDescription(sequenceNumber), sequenceNumber), nil
}

// RestoreDescription is the triggering description of a manual-restore version.
func RestoreDescription(sequenceNumber int) string {
	return fmt.Sprintf("restored from version %d", sequenceNumber)
}
