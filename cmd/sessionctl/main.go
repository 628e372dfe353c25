package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"ai-casedraft-be/internal/dto"
	"ai-casedraft-be/pkg/sse"

	"github.com/fatih/color"
)

func main() {
	apiURL := flag.String("api", "http://localhost:3000/api", "base URL of the API")
	token := flag.String("token", os.Getenv("CASEDRAFT_TOKEN"), "bearer token")
	caseRef := flag.String("case", "", "CNJ case number to submit")
	sessionID := flag.String("session", "", "attach to an existing session instead of submitting")
	flag.Parse()

	if *caseRef == "" && *sessionID == "" {
		color.Red("either -case or -session is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := &client{base: strings.TrimRight(*apiURL, "/"), token: *token, http: &http.Client{}}

	id := *sessionID
	if id == "" {
		res, err := c.submit(ctx, *caseRef)
		if err != nil {
			color.Red("Submit failed: %v", err)
			os.Exit(1)
		}
		id = res.Id
		color.Cyan("Session %s created for %s", id, res.CaseReference)
	}

	r := newRenderer(os.Stdout)
	if err := c.tail(ctx, id, r); err != nil && ctx.Err() == nil {
		color.Red("\nStream ended: %v", err)
		os.Exit(1)
	}
	if r.failed {
		os.Exit(1)
	}
}

type client struct {
	base  string
	token string
	http  *http.Client
}

func (c *client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *client) submit(ctx context.Context, caseRef string) (*dto.SessionResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/session/v1", dto.CreateSessionRequest{CaseReference: caseRef})
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		Message string              `json:"message"`
		Data    dto.SessionResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response (%s): %w", resp.Status, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: %s", resp.Status, out.Message)
	}
	return &out.Data, nil
}

// tail follows the session's event stream until the renderer sees an end.
func (c *client) tail(ctx context.Context, id string, r *renderer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/session/v1/"+id+"/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("events: %s", resp.Status)
	}

	dec := sse.NewDecoder(sse.GenerationDelimiter, parseUpdate, func(u dto.SessionUpdate) {
		if r.render(u) {
			cancel()
		}
	}, nil)

	err = dec.Consume(ctx, resp.Body)
	if r.done {
		return nil
	}
	return err
}

func parseUpdate(payload []byte) (dto.SessionUpdate, error) {
	var u dto.SessionUpdate
	err := json.Unmarshal(payload, &u)
	return u, err
}
