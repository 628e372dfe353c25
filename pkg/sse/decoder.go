package sse

import (
	"bytes"
	"context"
	"errors"
	"io"

	"ai-casedraft-be/internal/pkg/logger"
)

const (
	// GenerationDelimiter separates frames on the pipeline stream.
	GenerationDelimiter = "\n\n"
	// EditDelimiter separates frames on the chat-edit stream.
	EditDelimiter = "\n"

	dataField    = "data:"
	readBufBytes = 4096
)

// ParseFunc turns the payload of a data frame (prefix already stripped) into an event.
type ParseFunc[T any] func(payload []byte) (T, error)

// Handler receives every successfully parsed event, exactly once, in stream order.
type Handler[T any] func(event T)

// Decoder splits a byte stream into frames and feeds parsed events to a handler.
// It is not safe for concurrent use: Append must be called in arrival order by a single reader.
type Decoder[T any] struct {
	delimiter []byte
	parse     ParseFunc[T]
	handle    Handler[T]
	logger    logger.ILogger

	buf     []byte
	parsed  int
	dropped int
}

func NewDecoder[T any](delimiter string, parse ParseFunc[T], handle Handler[T], log logger.ILogger) *Decoder[T] {
	if delimiter == "" {
		delimiter = GenerationDelimiter
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Decoder[T]{
		delimiter: []byte(delimiter),
		parse:     parse,
		handle:    handle,
		logger:    log,
	}
}

// Append buffers chunk and dispatches every frame completed by it.
// The trailing incomplete fragment stays buffered for the next call.
func (d *Decoder[T]) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	d.buf = append(d.buf, chunk...)

	for {
		idx := bytes.Index(d.buf, d.delimiter)
		if idx < 0 {
			return
		}
		frame := d.buf[:idx]
		d.dispatch(frame)
		d.buf = d.buf[idx+len(d.delimiter):]
	}
}

// Flush pushes whatever is still buffered through the normal frame path.
// Used at end of stream, where the last frame may lack its delimiter.
func (d *Decoder[T]) Flush() {
	if len(d.buf) == 0 {
		return
	}
	rest := d.buf
	d.buf = nil
	d.dispatch(rest)
}

// Consume reads r until EOF, decoding as it goes, then flushes.
// It stops early with ctx.Err() when the context is cancelled between reads.
func (d *Decoder[T]) Consume(ctx context.Context, r io.Reader) error {
	buf := make([]byte, readBufBytes)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			d.Append(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				d.Flush()
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
	}
}

// Parsed reports how many events reached the handler.
func (d *Decoder[T]) Parsed() int { return d.parsed }

// Dropped reports how many data frames failed to parse.
func (d *Decoder[T]) Dropped() int { return d.dropped }

func (d *Decoder[T]) dispatch(frame []byte) {
	payload, ok := extractData(frame)
	if !ok {
		if len(bytes.TrimSpace(frame)) > 0 {
			d.logger.Debug("SSEDecoder", "Ignoring non-data frame", map[string]interface{}{"frame": string(frame)})
		}
		return
	}

	event, err := d.parse(payload)
	if err != nil {
		d.dropped++
		d.logger.Warn("SSEDecoder", "Dropping malformed frame", map[string]interface{}{
			"error":   err.Error(),
			"payload": truncate(string(payload), 200),
		})
		return
	}

	d.parsed++
	d.handle(event)
}

// extractData returns the data payload of a frame. Multiple data lines are
// joined with "\n" as in the SSE format; other fields and comments are ignored.
func extractData(frame []byte) ([]byte, bool) {
	var parts [][]byte
	for _, line := range bytes.Split(frame, []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		if !bytes.HasPrefix(line, []byte(dataField)) {
			continue
		}
		value := line[len(dataField):]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}
		parts = append(parts, value)
	}
	if len(parts) == 0 {
		return nil, false
	}
	return bytes.Join(parts, []byte("\n")), true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
