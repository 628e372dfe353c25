package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownEventType = errors.New("unknown event type")

// WireEvent is the JSON shape of a pipeline frame.
type WireEvent struct {
	Type          string                 `json:"type,omitempty"`
	Tipo          string                 `json:"tipo,omitempty"`
	Stage         string                 `json:"stage,omitempty"`
	Status        string                 `json:"status,omitempty"`
	Message       string                 `json:"message,omitempty"`
	Content       *string                `json:"content,omitempty"`
	FinalResult   json.RawMessage        `json:"finalResult,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Prompt        string                 `json:"prompt,omitempty"`
	Options       []string               `json:"options,omitempty"`
	CorrelationID string                 `json:"correlationId,omitempty"`
}

// ParseEvent decodes one frame payload into an Event.
func ParseEvent(payload []byte) (Event, error) {
	var w WireEvent
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	kind := w.Type
	if kind == "" {
		kind = w.Tipo
	}

	switch EventKind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindStart:
		return StartEvent{Message: w.Message, CorrelationID: w.correlationID()}, nil

	case KindStage:
		stage, err := ParseStage(w.Stage)
		if err != nil {
			return nil, err
		}
		status, err := ParseStatus(w.Status)
		if err != nil {
			return nil, err
		}
		return StageEvent{Stage: stage, Status: status, Message: w.Message}, nil

	case KindChunk:
		if w.Content == nil {
			return nil, errors.New("chunk without content")
		}
		return ChunkEvent{Content: *w.Content}, nil

	case KindSuccess:
		final, err := decodeFinalResult(w.FinalResult)
		if err != nil {
			return nil, err
		}
		return SuccessEvent{FinalResult: final, Metadata: w.Metadata, CorrelationID: w.correlationID()}, nil

	case KindError:
		return ErrorEvent{Message: w.Message, CorrelationID: w.correlationID()}, nil

	case KindInfo:
		return InfoEvent{Message: w.Message}, nil

	case KindQuestion:
		if strings.TrimSpace(w.Prompt) == "" {
			return nil, errors.New("question without prompt")
		}
		return QuestionEvent{Prompt: w.Prompt, Options: w.Options}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, kind)
}

// MarshalEvent encodes ev in the same shape ParseEvent reads.
func MarshalEvent(ev Event) ([]byte, error) {
	w := WireEvent{Type: string(ev.Kind())}
	switch e := ev.(type) {
	case StartEvent:
		w.Message, w.CorrelationID = e.Message, e.CorrelationID
	case StageEvent:
		w.Stage, w.Status, w.Message = string(e.Stage), string(e.Status), e.Message
	case ChunkEvent:
		content := e.Content
		w.Content = &content
	case SuccessEvent:
		w.Metadata, w.CorrelationID = e.Metadata, e.CorrelationID
		if e.FinalResult == "" {
			w.FinalResult = json.RawMessage("null")
		} else {
			raw, err := json.Marshal(e.FinalResult)
			if err != nil {
				return nil, err
			}
			w.FinalResult = raw
		}
	case ErrorEvent:
		w.Message, w.CorrelationID = e.Message, e.CorrelationID
	case InfoEvent:
		w.Message = e.Message
	case QuestionEvent:
		w.Prompt, w.Options = e.Prompt, e.Options
	}
	return json.Marshal(w)
}

func (w WireEvent) correlationID() string {
	if w.CorrelationID != "" {
		return w.CorrelationID
	}
	for _, key := range []string{"correlationId", "correlation_id"} {
		if v, ok := w.Metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func decodeFinalResult(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", fmt.Errorf("finalResult must be a string or null: %w", err)
	}
	return NormalizeMarkdown(s), nil
}

// NormalizeMarkdown unwraps markdown that arrived JSON-encoded a second time
// (a quoted string inside the string). It unwraps at most once.
func NormalizeMarkdown(s string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 2 || trimmed[0] != '"' || trimmed[len(trimmed)-1] != '"' {
		return s
	}
	var inner string
	if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
		return s
	}
	return inner
}
