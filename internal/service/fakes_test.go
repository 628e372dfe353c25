package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-casedraft-be/internal/dto"
	"ai-casedraft-be/internal/repository/memory"
	"ai-casedraft-be/pkg/backend"
	"ai-casedraft-be/pkg/curation"
	"ai-casedraft-be/pkg/session"
	"ai-casedraft-be/pkg/version"

	"github.com/stretchr/testify/require"
)

const testCase = "0001234-56.2024.8.12.0001"

// frames renders pipeline payloads as a generation stream.
func frames(payloads ...string) string {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString("data: " + p + "\n\n")
	}
	return b.String()
}

// editFrames renders payloads as a chat-edit stream.
func editFrames(payloads ...string) string {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString("data: " + p + "\n")
	}
	return b.String()
}

// blockingReader yields prefix and then waits for ctx or release.
type blockingReader struct {
	ctx     context.Context
	prefix  io.Reader
	release chan struct{}
}

func (r *blockingReader) Read(p []byte) (int, error) {
	n, err := r.prefix.Read(p)
	if n > 0 || err != io.EOF {
		return n, err
	}
	select {
	case <-r.ctx.Done():
		return 0, r.ctx.Err()
	case <-r.release:
		return 0, io.EOF
	}
}

type scriptedStream struct {
	body    string
	openErr error
	// block keeps the stream open after body until the run is cancelled.
	block bool
}

type fakePipeline struct {
	mu        sync.Mutex
	sessionID string
	startErr  error
	streams   []scriptedStream
	requests  []backend.StreamRequest
	contexts  []context.Context
	release   chan struct{}
}

func newFakePipeline(streams ...scriptedStream) *fakePipeline {
	return &fakePipeline{sessionID: "sess-1", streams: streams, release: make(chan struct{})}
}

func (f *fakePipeline) StartSession(ctx context.Context, caseReference string) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	return f.sessionID, nil
}

func (f *fakePipeline) OpenStream(ctx context.Context, req backend.StreamRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := len(f.requests)
	f.requests = append(f.requests, req)
	f.contexts = append(f.contexts, ctx)
	if idx >= len(f.streams) {
		idx = len(f.streams) - 1
	}
	s := f.streams[idx]
	if s.openErr != nil {
		return nil, s.openErr
	}
	if s.block {
		return io.NopCloser(&blockingReader{ctx: ctx, prefix: strings.NewReader(s.body), release: f.release}), nil
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func (f *fakePipeline) Requests() []backend.StreamRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.StreamRequest(nil), f.requests...)
}

func (f *fakePipeline) Context(i int) context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contexts[i]
}

type fakeEditor struct {
	mu       sync.Mutex
	body     string
	openErr  error
	requests []backend.EditRequest
}

func (f *fakeEditor) OpenEdit(ctx context.Context, req backend.EditRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.openErr != nil {
		return nil, f.openErr
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

type fakePoller struct {
	mu     sync.Mutex
	result session.PollResult
	calls  int
}

func (f *fakePoller) PollStatus(ctx context.Context, sessionID string) (session.PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, nil
}

func (f *fakePoller) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePreviewer struct {
	result backend.PreviewResult
	err    error
	last   backend.PreviewRequest
}

func (f *fakePreviewer) PreviewCuration(ctx context.Context, req backend.PreviewRequest) (backend.PreviewResult, error) {
	f.last = req
	return f.result, f.err
}

// fakeVersionStore keeps saved versions per session in memory.
type fakeVersionStore struct {
	mu    sync.Mutex
	saved map[string][]SaveVersionInput
}

func newFakeVersionStore() *fakeVersionStore {
	return &fakeVersionStore{saved: make(map[string][]SaveVersionInput)}
}

func (f *fakeVersionStore) SaveVersion(ctx context.Context, in SaveVersionInput) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[in.SessionID] = append(f.saved[in.SessionID], in)
	return in.Version.SequenceNumber, nil
}

func (f *fakeVersionStore) ListVersions(ctx context.Context, sessionID string) ([]version.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []version.Version
	for _, in := range f.saved[sessionID] {
		out = append(out, in.Version)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber > out[j].SequenceNumber })
	return out, nil
}

func (f *fakeVersionStore) GetVersion(ctx context.Context, sessionID string, n int) (version.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, in := range f.saved[sessionID] {
		if in.Version.SequenceNumber == n {
			return in.Version, nil
		}
	}
	return version.Version{}, fmt.Errorf("version %d: %w", n, version.ErrVersionNotFound)
}

func (f *fakeVersionStore) RestoreVersion(ctx context.Context, sessionID string, n int) (*dto.RestoreVersionResponse, error) {
	v, err := f.GetVersion(ctx, sessionID, n)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	next := len(f.saved[sessionID]) + 1
	f.saved[sessionID] = append(f.saved[sessionID], SaveVersionInput{
		SessionID: sessionID,
		Version:   version.Version{SequenceNumber: next, Content: v.Content, Origin: version.OriginManualRestore, RestoredFrom: n},
	})
	return &dto.RestoreVersionResponse{Content: v.Content, NewVersion: next}, nil
}

func (f *fakeVersionStore) Saved(sessionID string) []SaveVersionInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SaveVersionInput(nil), f.saved[sessionID]...)
}

// updateRecorder is a listener that keeps every update.
type updateRecorder struct {
	mu      sync.Mutex
	updates []dto.SessionUpdate
}

func (r *updateRecorder) listen(u dto.SessionUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *updateRecorder) Kinds() []dto.UpdateKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]dto.UpdateKind, 0, len(r.updates))
	for _, u := range r.updates {
		out = append(out, u.Kind)
	}
	return out
}

func (r *updateRecorder) Chunks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, u := range r.updates {
		if u.Kind == dto.UpdateChunk {
			out = append(out, u.Chunk)
		}
	}
	return out
}

func (r *updateRecorder) Last() dto.SessionUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates[len(r.updates)-1]
}

type harness struct {
	svc      ISessionService
	curation ICurationService
	sessions *memory.SessionRepository
	pipeline *fakePipeline
	editor   *fakeEditor
	poller   *fakePoller
	store    *fakeVersionStore
	updates  *updateRecorder
}

func newHarness(t *testing.T, pipeline *fakePipeline) *harness {
	t.Helper()
	h := &harness{
		sessions: memory.NewSessionRepository(time.Hour, time.Hour),
		pipeline: pipeline,
		editor:   &fakeEditor{},
		poller:   &fakePoller{},
		store:    newFakeVersionStore(),
		updates:  &updateRecorder{},
	}
	h.svc = NewSessionService(h.sessions, h.pipeline, h.editor, h.poller, h.store, nil)
	h.curation = NewCurationService(h.sessions, &fakePreviewer{result: backend.PreviewResult{
		FragmentsByCategory: []curation.DetectedCategory{{
			Category: "fatos",
			Fragments: []curation.DetectedFragment{
				{ID: "f1", Title: "Fato 1", Content: "a", Preselected: true, DetectedBy: "deterministic"},
				{ID: "f2", Title: "Fato 2", Content: "b"},
			},
		}},
	}}, nil)
	unsubscribe := h.svc.Subscribe(h.updates.listen)
	t.Cleanup(func() {
		unsubscribe()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.svc.Shutdown(ctx)
	})
	return h
}

// submit creates the session and waits for its first run to end.
func (h *harness) submit(t *testing.T) *dto.SessionResponse {
	t.Helper()
	res, err := h.svc.Submit(context.Background(), &dto.CreateSessionRequest{CaseReference: testCase})
	require.NoError(t, err)
	h.waitRun(t, res.Id)
	return res
}

func (h *harness) waitRun(t *testing.T, id string) {
	t.Helper()
	sess, ok := h.sessions.Get(id)
	require.True(t, ok)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sess.WaitRun(ctx))
}

func (h *harness) snapshot(t *testing.T, id string) session.Snapshot {
	t.Helper()
	res, err := h.svc.Get(context.Background(), id)
	require.NoError(t, err)
	return res.Snapshot
}

// generated is a stream that finalizes with the three-chunk draft.
var generated = frames(
	`{"type":"start","message":"iniciando","correlationId":"corr-1"}`,
	`{"type":"stage","stage":"coleta","status":"concluido"}`,
	`{"type":"stage","stage":"generating","status":"ativo"}`,
	`{"type":"chunk","content":"Exc"}`,
	`{"type":"chunk","content":"elentí"}`,
	`{"type":"chunk","content":"ssimo..."}`,
	`{"type":"success","finalResult":null}`,
)
