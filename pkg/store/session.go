package store

import (
	"context"
	"sync"
	"time"

	"ai-casedraft-be/pkg/backend"
	"ai-casedraft-be/pkg/curation"
	"ai-casedraft-be/pkg/session"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatEntry is one line of the edit conversation. Failed marks an edit that
// was rejected and left the artifact untouched.
type ChatEntry struct {
	Role          string    `json:"role"`
	Content       string    `json:"content"`
	Failed        bool      `json:"failed,omitempty"`
	VersionNumber int       `json:"version_number,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CaseSession is the in-memory aggregate for one case: its state machine,
// curation state, chat thread and the pipeline run currently reading.
type CaseSession struct {
	ID            string
	CaseReference string
	CreatedAt     time.Time

	Machine  *session.Machine
	Curation *curation.Engine

	mu          sync.Mutex
	chat        []ChatEntry
	lastRequest backend.StreamRequest
	cancelRun   context.CancelFunc
	runDone     chan struct{}
}

func NewCaseSession(id, caseReference string, machine *session.Machine) *CaseSession {
	return &CaseSession{
		ID:            id,
		CaseReference: caseReference,
		CreatedAt:     time.Now(),
		Machine:       machine,
		Curation:      curation.NewEngine(),
		lastRequest:   backend.StreamRequest{SessionID: id, CaseReference: caseReference},
	}
}

func (s *CaseSession) AppendChat(entry ChatEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat = append(s.chat, entry)
}

func (s *CaseSession) Chat() []ChatEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatEntry(nil), s.chat...)
}

// ChatHistory is the thread in the shape the edit backend expects.
// Failed attempts are left out.
func (s *CaseSession) ChatHistory() []backend.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]backend.ChatMessage, 0, len(s.chat))
	for _, e := range s.chat {
		if e.Failed || e.Role == RoleSystem {
			continue
		}
		out = append(out, backend.ChatMessage{Role: e.Role, Content: e.Content})
	}
	return out
}

func (s *CaseSession) LastRequest() backend.StreamRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRequest
}

func (s *CaseSession) SetLastRequest(req backend.StreamRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRequest = req
}

// AttachRun records the cancel func and completion channel of a new run.
func (s *CaseSession) AttachRun(cancel context.CancelFunc, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelRun = cancel
	s.runDone = done
}

// StopRun cancels the current run, if any, and waits for its reader to exit.
func (s *CaseSession) StopRun() {
	s.mu.Lock()
	cancel, done := s.cancelRun, s.runDone
	s.cancelRun, s.runDone = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// WaitRun blocks until the current run's reader exits or ctx ends.
func (s *CaseSession) WaitRun(ctx context.Context) error {
	s.mu.Lock()
	done := s.runDone
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
