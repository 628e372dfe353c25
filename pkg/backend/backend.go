package backend

import (
	"context"
	"errors"
	"fmt"
	"io"

	"ai-casedraft-be/pkg/curation"
	"ai-casedraft-be/pkg/session"
)

var ErrSessionExists = errors.New("session already exists for this case")

// StreamRequest opens a pipeline run. Answer is set when resuming after a
// question; Selection is set for curated generation.
type StreamRequest struct {
	SessionID     string              `json:"sessionId"`
	CaseReference string              `json:"caseReference"`
	Answer        string              `json:"answer,omitempty"`
	Selection     *curation.Selection `json:"selection,omitempty"`
	Notes         string              `json:"notes,omitempty"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type EditRequest struct {
	SessionID   string        `json:"sessionId"`
	Message     string        `json:"message"`
	Content     string        `json:"content"`
	ChatHistory []ChatMessage `json:"chatHistory,omitempty"`
}

type PreviewRequest struct {
	CaseReference  string   `json:"caseReference"`
	PieceType      string   `json:"pieceType"`
	GroupID        string   `json:"groupId,omitempty"`
	SubcategoryIDs []string `json:"subcategoryIds,omitempty"`
}

type PreviewResult struct {
	FragmentsByCategory []curation.DetectedCategory `json:"fragmentsByCategory"`
	Statistics          map[string]interface{}      `json:"statistics,omitempty"`
}

// Pipeline starts sessions and opens their event streams.
type Pipeline interface {
	StartSession(ctx context.Context, caseReference string) (string, error)
	OpenStream(ctx context.Context, req StreamRequest) (io.ReadCloser, error)
}

// Editor opens chat-edit streams.
type Editor interface {
	OpenEdit(ctx context.Context, req EditRequest) (io.ReadCloser, error)
}

type CurationPreviewer interface {
	PreviewCuration(ctx context.Context, req PreviewRequest) (PreviewResult, error)
}

// StatusPoller reports a session's state without a stream.
type StatusPoller interface {
	PollStatus(ctx context.Context, sessionID string) (session.PollResult, error)
}

// TransportError is a failure to reach the backend or a non-2xx answer
// before any stream data.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
