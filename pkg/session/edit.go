package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"ai-casedraft-be/pkg/sse"
)

// EditEvent is one frame of the chat-edit stream.
type EditEvent struct {
	Text string
	Err  string
	Done bool
}

type editWire struct {
	Text  *string `json:"text,omitempty"`
	Error *string `json:"error,omitempty"`
}

func ParseEditEvent(payload []byte) (EditEvent, error) {
	trimmed := bytes.TrimSpace(payload)
	if string(trimmed) == sse.DoneMarker {
		return EditEvent{Done: true}, nil
	}

	var w editWire
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return EditEvent{}, fmt.Errorf("decode edit frame: %w", err)
	}
	switch {
	case w.Error != nil && *w.Error != "":
		return EditEvent{Err: *w.Error}, nil
	case w.Text != nil:
		return EditEvent{Text: *w.Text}, nil
	}
	return EditEvent{}, errors.New("edit frame carries neither text nor error")
}

// MarshalEditEvent encodes ev as a chat-edit payload.
func MarshalEditEvent(ev EditEvent) ([]byte, error) {
	if ev.Done {
		return []byte(sse.DoneMarker), nil
	}
	if ev.Err != "" {
		return json.Marshal(editWire{Error: &ev.Err})
	}
	return json.Marshal(editWire{Text: &ev.Text})
}
