package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ai-casedraft-be/pkg/session"
)

const maxErrorBody = 512

type Config struct {
	PipelineURL    string
	EditURL        string
	CurationURL    string
	RequestTimeout time.Duration
}

// Client talks to the generation backend over HTTP.
type Client struct {
	cfg Config

	// requests with a bounded response
	HTTPClient *http.Client

	// long-lived streams, bounded only by the caller's context
	StreamClient *http.Client
}

var (
	_ Pipeline          = &Client{}
	_ Editor            = &Client{}
	_ CurationPreviewer = &Client{}
	_ StatusPoller      = &Client{}
)

func NewClient(cfg Config) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.EditURL == "" {
		cfg.EditURL = cfg.PipelineURL
	}
	if cfg.CurationURL == "" {
		cfg.CurationURL = cfg.PipelineURL
	}
	return &Client{
		cfg:          cfg,
		HTTPClient:   &http.Client{Timeout: cfg.RequestTimeout},
		StreamClient: &http.Client{},
	}
}

type startSessionRequest struct {
	CaseReference string `json:"caseReference"`
}

type startSessionResponse struct {
	SessionID string `json:"sessionId"`
}

func (c *Client) StartSession(ctx context.Context, caseReference string) (string, error) {
	var out startSessionResponse
	status, err := c.doJSON(ctx, c.HTTPClient, "start session", http.MethodPost,
		c.cfg.PipelineURL+"/sessions", startSessionRequest{CaseReference: caseReference}, &out)
	if status == http.StatusConflict {
		return "", fmt.Errorf("%s: %w", caseReference, ErrSessionExists)
	}
	if err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", &TransportError{Op: "start session", StatusCode: status, Body: "response without sessionId"}
	}
	return out.SessionID, nil
}

// OpenStream posts the run request and returns the event stream body. A
// request with a Selection goes to the curated generation endpoint.
func (c *Client) OpenStream(ctx context.Context, req StreamRequest) (io.ReadCloser, error) {
	endpoint := "/sessions/" + url.PathEscape(req.SessionID) + "/stream"
	if req.Selection != nil {
		endpoint = "/sessions/" + url.PathEscape(req.SessionID) + "/generate"
	}
	return c.openStream(ctx, "open pipeline stream", c.cfg.PipelineURL+endpoint, req)
}

func (c *Client) OpenEdit(ctx context.Context, req EditRequest) (io.ReadCloser, error) {
	return c.openStream(ctx, "open edit stream",
		c.cfg.EditURL+"/sessions/"+url.PathEscape(req.SessionID)+"/edit", req)
}

func (c *Client) PreviewCuration(ctx context.Context, req PreviewRequest) (PreviewResult, error) {
	var out PreviewResult
	if _, err := c.doJSON(ctx, c.HTTPClient, "preview curation", http.MethodPost,
		c.cfg.CurationURL+"/curation/preview", req, &out); err != nil {
		return PreviewResult{}, err
	}
	return out, nil
}

type statusResponse struct {
	Stage   string `json:"stage"`
	Status  string `json:"status"`
	Done    bool   `json:"done"`
	Content string `json:"content"`
	Message string `json:"message"`
}

func (c *Client) PollStatus(ctx context.Context, sessionID string) (session.PollResult, error) {
	var out statusResponse
	if _, err := c.doJSON(ctx, c.HTTPClient, "poll status", http.MethodGet,
		c.cfg.PipelineURL+"/sessions/"+url.PathEscape(sessionID)+"/status", nil, &out); err != nil {
		return session.PollResult{}, err
	}

	res := session.PollResult{Done: out.Done, Content: out.Content, Message: out.Message}
	if stage, err := session.ParseStage(out.Stage); err == nil {
		res.Stage = stage
	}
	if status, err := session.ParseStatus(out.Status); err == nil {
		res.Status = status
	}
	return res, nil
}

func (c *Client) openStream(ctx context.Context, op, endpoint string, body interface{}) (io.ReadCloser, error) {
	req, err := newJSONRequest(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.StreamClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}
	return resp.Body, nil
}

func (c *Client) doJSON(ctx context.Context, client *http.Client, op, method, endpoint string, body, out interface{}) (int, error) {
	req, err := newJSONRequest(ctx, method, endpoint, body)
	if err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &TransportError{Op: op, StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("%s: unmarshal response: %w", op, err)
	}
	return resp.StatusCode, nil
}

func newJSONRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func readErrorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}
