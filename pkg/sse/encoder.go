package sse

import (
	"encoding/json"
	"fmt"
	"io"
)

// DoneMarker terminates a chat-edit stream.
const DoneMarker = "[DONE]"

// Encoder writes frames in the format Decoder reads.
type Encoder struct {
	w         io.Writer
	delimiter string
}

func NewEncoder(w io.Writer, delimiter string) *Encoder {
	if delimiter == "" {
		delimiter = GenerationDelimiter
	}
	return &Encoder{w: w, delimiter: delimiter}
}

// Encode marshals v as JSON and writes it as one data frame.
func (e *Encoder) Encode(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return e.EncodeRaw(string(data))
}

// EncodeRaw writes payload verbatim as one data frame.
func (e *Encoder) EncodeRaw(payload string) error {
	if _, err := io.WriteString(e.w, dataField+" "+payload+e.delimiter); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Done writes the [DONE] terminator.
func (e *Encoder) Done() error {
	return e.EncodeRaw(DoneMarker)
}
