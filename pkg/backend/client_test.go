package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-casedraft-be/pkg/curation"
	"ai-casedraft-be/pkg/session"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{PipelineURL: srv.URL})
}

func TestClient_StartSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sessions", r.URL.Path)

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["caseReference"] == "dup" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sessionId":"s-1"}`))
	})

	id, err := c.StartSession(context.Background(), "0001234-56.2024.8.12.0001")
	require.NoError(t, err)
	assert.Equal(t, "s-1", id)

	_, err = c.StartSession(context.Background(), "dup")
	assert.ErrorIs(t, err, ErrSessionExists)
}

func TestClient_OpenStream(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		var req StreamRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch r.URL.Path {
		case "/sessions/s-1/stream":
			assert.Equal(t, "réu A", req.Answer)
			_, _ = w.Write([]byte("data: {\"type\":\"start\"}\n\n"))
		case "/sessions/s-1/generate":
			if assert.NotNil(t, req.Selection) {
				assert.Equal(t, []string{"f1"}, req.Selection.SelectedIDs)
			}
			_, _ = w.Write([]byte("data: {\"type\":\"success\",\"finalResult\":\"x\"}\n\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	body, err := c.OpenStream(context.Background(), StreamRequest{SessionID: "s-1", Answer: "réu A"})
	require.NoError(t, err)
	raw, _ := io.ReadAll(body)
	body.Close()
	assert.Equal(t, "data: {\"type\":\"start\"}\n\n", string(raw))

	body, err = c.OpenStream(context.Background(), StreamRequest{
		SessionID: "s-1",
		Selection: &curation.Selection{SelectedIDs: []string{"f1"}},
	})
	require.NoError(t, err)
	raw, _ = io.ReadAll(body)
	body.Close()
	assert.Contains(t, string(raw), "success")
}

func TestClient_OpenStreamNon2xx(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	})

	_, err := c.OpenStream(context.Background(), StreamRequest{SessionID: "s-1"})

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
	assert.Contains(t, te.Body, "backend down")
}

func TestClient_ConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(Config{PipelineURL: srv.URL})

	_, err := c.OpenEdit(context.Background(), EditRequest{SessionID: "s-1", Message: "troque"})

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Error(t, te.Err)
}

func TestClient_PreviewCuration(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/curation/preview", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"fragmentsByCategory":[{"category":"Mérito","fragments":[{"id":"f1","title":"Juros","preselected":true,"detectedBy":"llm"}]}],
			"statistics":{"total":1}
		}`))
	})

	res, err := c.PreviewCuration(context.Background(), PreviewRequest{CaseReference: "x", PieceType: "contestacao"})
	require.NoError(t, err)
	require.Len(t, res.FragmentsByCategory, 1)
	assert.Equal(t, "Mérito", res.FragmentsByCategory[0].Category)
	assert.Equal(t, "llm", res.FragmentsByCategory[0].Fragments[0].DetectedBy)
	assert.Equal(t, float64(1), res.Statistics["total"])
}

func TestClient_PollStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/s-1/status", r.URL.Path)
		_, _ = w.Write([]byte(`{"stage":"finalizado","status":"concluido","done":true,"content":"texto"}`))
	})

	res, err := c.PollStatus(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, session.PollResult{Stage: session.StageFinalized, Status: session.StatusConcluido, Done: true, Content: "texto"}, res)
}
