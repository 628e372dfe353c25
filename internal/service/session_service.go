package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-casedraft-be/internal/dto"
	"ai-casedraft-be/internal/pkg/logger"
	"ai-casedraft-be/internal/repository/memory"
	"ai-casedraft-be/pkg/backend"
	"ai-casedraft-be/pkg/session"
	"ai-casedraft-be/pkg/sse"
	"ai-casedraft-be/pkg/store"
	"ai-casedraft-be/pkg/version"

	"github.com/google/uuid"
)

const persistTimeout = 10 * time.Second

type ISessionService interface {
	Submit(ctx context.Context, req *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	Get(ctx context.Context, sessionId string) (*dto.SessionResponse, error)
	Refresh(ctx context.Context, sessionId string) (*dto.SessionResponse, error)
	Answer(ctx context.Context, sessionId string, req *dto.AnswerQuestionRequest) (*dto.SessionResponse, error)
	Retry(ctx context.Context, sessionId string) (*dto.SessionResponse, error)
	Cancel(ctx context.Context, sessionId string) (*dto.SessionResponse, error)
	GenerateCurated(ctx context.Context, sessionId string, req *dto.GenerateCuratedRequest) (*dto.SessionResponse, error)

	Edit(ctx context.Context, sessionId string, req *dto.EditRequest) (*dto.EditResponse, error)
	ChatThread(ctx context.Context, sessionId string) (*dto.ChatThreadResponse, error)

	ListVersions(ctx context.Context, sessionId string) ([]dto.VersionSummary, error)
	GetVersion(ctx context.Context, sessionId string, versionNumber int) (*dto.VersionDetailResponse, error)
	RestoreVersion(ctx context.Context, sessionId string, versionNumber int) (*dto.RestoreVersionResponse, error)

	Subscribe(listener SessionListener) func()
	Shutdown(ctx context.Context) error
}

type sessionService struct {
	sessions  *memory.SessionRepository
	pipeline  backend.Pipeline
	editor    backend.Editor
	poller    backend.StatusPoller
	versions  IVersionStore
	listeners *listenerRegistry
	logger    logger.ILogger
}

// NewSessionService wires the orchestrator. poller and versions may be nil:
// Refresh then only reports the snapshot and versions live in memory only.
func NewSessionService(
	sessions *memory.SessionRepository,
	pipeline backend.Pipeline,
	editor backend.Editor,
	poller backend.StatusPoller,
	versions IVersionStore,
	log logger.ILogger,
) ISessionService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &sessionService{
		sessions:  sessions,
		pipeline:  pipeline,
		editor:    editor,
		poller:    poller,
		versions:  versions,
		listeners: newListenerRegistry(),
		logger:    log,
	}
}

func (s *sessionService) Subscribe(listener SessionListener) func() {
	return s.listeners.add(listener)
}

func (s *sessionService) Submit(ctx context.Context, req *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	sessionId, err := s.pipeline.StartSession(ctx, req.CaseReference)
	if err != nil {
		return nil, err
	}
	if sessionId == "" {
		sessionId = uuid.NewString()
	}

	sess := store.NewCaseSession(sessionId, req.CaseReference, session.NewMachine(s.logger))
	if err := s.sessions.Add(sess); err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionId, backend.ErrSessionExists)
	}

	s.logger.Info("SessionService", "Session submitted", map[string]interface{}{
		"session_id":     sessionId,
		"case_reference": req.CaseReference,
	})

	if err := s.startRun(sess, sess.LastRequest()); err != nil {
		return nil, err
	}
	return toSessionResponse(sess), nil
}

func (s *sessionService) Get(ctx context.Context, sessionId string) (*dto.SessionResponse, error) {
	sess, err := s.lookup(sessionId)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(sess), nil
}

// Refresh asks the backend for the session's state when the stream was lost
// before a terminal event. Other states are returned as they are.
func (s *sessionService) Refresh(ctx context.Context, sessionId string) (*dto.SessionResponse, error) {
	sess, err := s.lookup(sessionId)
	if err != nil {
		return nil, err
	}
	if s.poller == nil || !recoverable(sess.Machine.Snapshot()) {
		return toSessionResponse(sess), nil
	}

	polled, err := s.poller.PollStatus(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	s.handleEffect(sess, sess.Machine.ApplyPolled(polled))
	return toSessionResponse(sess), nil
}

func (s *sessionService) Answer(ctx context.Context, sessionId string, req *dto.AnswerQuestionRequest) (*dto.SessionResponse, error) {
	sess, err := s.lookup(sessionId)
	if err != nil {
		return nil, err
	}
	if _, ok := sess.Machine.PendingQuestion(); !ok {
		return nil, session.ErrNoPendingQuestion
	}

	run := sess.LastRequest()
	run.Answer = req.Answer
	if err := s.startRun(sess, run); err != nil {
		return nil, err
	}
	return toSessionResponse(sess), nil
}

func (s *sessionService) Retry(ctx context.Context, sessionId string) (*dto.SessionResponse, error) {
	sess, err := s.lookup(sessionId)
	if err != nil {
		return nil, err
	}
	if err := s.startRun(sess, sess.LastRequest()); err != nil {
		return nil, err
	}
	return toSessionResponse(sess), nil
}

// Cancel aborts the in-flight run or pending question. Cancelling an idle
// session is a no-op.
func (s *sessionService) Cancel(ctx context.Context, sessionId string) (*dto.SessionResponse, error) {
	sess, err := s.lookup(sessionId)
	if err != nil {
		return nil, err
	}
	eff := sess.Machine.Abort()
	sess.StopRun()
	s.handleEffect(sess, eff)
	return toSessionResponse(sess), nil
}

func (s *sessionService) GenerateCurated(ctx context.Context, sessionId string, req *dto.GenerateCuratedRequest) (*dto.SessionResponse, error) {
	sess, err := s.lookup(sessionId)
	if err != nil {
		return nil, err
	}

	selection := sess.Curation.AssembleSelection()
	if len(selection.SelectedIDs) == 0 {
		return nil, ErrEmptySelection
	}

	run := sess.LastRequest()
	run.Answer = ""
	run.Selection = &selection
	run.Notes = req.Notes

	if err := s.startRun(sess, run); err != nil {
		return nil, err
	}
	// Only an accepted curated run becomes what Retry repeats.
	sess.SetLastRequest(run)
	return toSessionResponse(sess), nil
}

func (s *sessionService) ChatThread(ctx context.Context, sessionId string) (*dto.ChatThreadResponse, error) {
	sess, err := s.lookup(sessionId)
	if err != nil {
		return nil, err
	}
	return &dto.ChatThreadResponse{Entries: sess.Chat()}, nil
}

// Shutdown stops every live run and waits for the readers to exit.
func (s *sessionService) Shutdown(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, sess := range s.sessions.All() {
		wg.Add(1)
		go func(sess *store.CaseSession) {
			defer wg.Done()
			sess.StopRun()
		}(sess)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *sessionService) lookup(sessionId string) (*store.CaseSession, error) {
	sess, ok := s.sessions.Get(sessionId)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionId, ErrSessionNotFound)
	}
	s.sessions.Touch(sess)
	return sess, nil
}

// startRun replaces whatever run the session has with a new stream reader.
func (s *sessionService) startRun(sess *store.CaseSession, req backend.StreamRequest) error {
	sess.StopRun()
	if err := sess.Machine.BeginRun(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	sess.AttachRun(cancel, done)

	s.emit(sess, dto.SessionUpdate{Kind: dto.UpdateStage}, true)

	go s.consumeRun(ctx, sess, req, done)
	return nil
}

func (s *sessionService) consumeRun(ctx context.Context, sess *store.CaseSession, req backend.StreamRequest, done chan struct{}) {
	defer close(done)

	body, err := s.pipeline.OpenStream(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			sess.Machine.ReleaseRun()
			return
		}
		s.logger.Error("SessionService", "Failed to open pipeline stream", map[string]interface{}{
			"session_id": sess.ID,
			"error":      err.Error(),
		})
		s.handleEffect(sess, sess.Machine.FailTransport(err))
		return
	}
	defer body.Close()

	dec := sse.NewDecoder(sse.GenerationDelimiter, session.ParseEvent, func(ev session.Event) {
		s.handleEffect(sess, sess.Machine.Apply(ev))
	}, s.logger)

	err = dec.Consume(ctx, body)
	switch {
	case ctx.Err() != nil:
		sess.Machine.ReleaseRun()
	case err != nil:
		s.logger.Warn("SessionService", "Pipeline stream broke", map[string]interface{}{
			"session_id": sess.ID,
			"error":      err.Error(),
		})
		s.handleEffect(sess, sess.Machine.FailTransport(err))
	default:
		s.handleEffect(sess, sess.Machine.EndRun())
	}

	s.logger.Debug("SessionService", "Pipeline stream closed", map[string]interface{}{
		"session_id": sess.ID,
		"parsed":     dec.Parsed(),
		"dropped":    dec.Dropped(),
	})
}

// handleEffect persists what a transition produced and tells listeners.
func (s *sessionService) handleEffect(sess *store.CaseSession, eff session.Effect) {
	if eff.Ignored || (!eff.Changed && !eff.Terminal) {
		return
	}

	switch {
	case eff.Chunk != "":
		s.emit(sess, dto.SessionUpdate{Kind: dto.UpdateChunk, Chunk: eff.Chunk}, false)

	case eff.Question != nil:
		s.emit(sess, dto.SessionUpdate{Kind: dto.UpdateQuestion, Message: eff.Question.Prompt}, true)

	case eff.Terminal && eff.Version != nil:
		v := *eff.Version
		s.persistVersion(sess, v)
		s.emit(sess, dto.SessionUpdate{Kind: dto.UpdateFinalized, Version: &v}, true)

	case eff.Terminal:
		snap := sess.Machine.Snapshot()
		kind := dto.UpdateCancelled
		msg := snap.Message
		if snap.Status == session.StatusErro {
			kind = dto.UpdateFailed
			msg = snap.Error
			if snap.ErrorKind == session.ErrorKindCancelled {
				kind = dto.UpdateCancelled
			}
		}
		s.emitSnapshot(sess, dto.SessionUpdate{Kind: kind, Message: msg}, snap)

	default:
		s.emit(sess, dto.SessionUpdate{Kind: dto.UpdateStage}, true)
	}
}

// persistVersion stores v with the session's chat thread. Failures are
// logged; the in-memory history stays authoritative for the session.
func (s *sessionService) persistVersion(sess *store.CaseSession, v version.Version) {
	if s.versions == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	number, err := s.versions.SaveVersion(ctx, SaveVersionInput{
		SessionID:     sess.ID,
		CaseReference: sess.CaseReference,
		Version:       v,
		ChatHistory:   sess.ChatHistory(),
	})
	if err != nil {
		s.logger.Error("SessionService", "Failed to persist version", map[string]interface{}{
			"session_id": sess.ID,
			"version":    v.SequenceNumber,
			"error":      err.Error(),
		})
		return
	}
	if number != v.SequenceNumber {
		s.logger.Warn("SessionService", "Stored version number differs from memory", map[string]interface{}{
			"session_id": sess.ID,
			"memory":     v.SequenceNumber,
			"stored":     number,
		})
	}
}

func (s *sessionService) emit(sess *store.CaseSession, update dto.SessionUpdate, withSnapshot bool) {
	if withSnapshot {
		s.emitSnapshot(sess, update, sess.Machine.Snapshot())
		return
	}
	update.SessionId = sess.ID
	update.CaseReference = sess.CaseReference
	update.OccurredAt = time.Now()
	s.listeners.emit(update)
}

func (s *sessionService) emitSnapshot(sess *store.CaseSession, update dto.SessionUpdate, snap session.Snapshot) {
	update.SessionId = sess.ID
	update.CaseReference = sess.CaseReference
	update.Snapshot = &snap
	update.OccurredAt = time.Now()
	s.listeners.emit(update)
}

func recoverable(snap session.Snapshot) bool {
	if snap.RunActive || snap.Status != session.StatusErro {
		return false
	}
	return snap.ErrorKind == session.ErrorKindInterrupted || snap.ErrorKind == session.ErrorKindTransport
}

func toSessionResponse(sess *store.CaseSession) *dto.SessionResponse {
	return &dto.SessionResponse{
		Id:            sess.ID,
		CaseReference: sess.CaseReference,
		CreatedAt:     sess.CreatedAt,
		Snapshot:      sess.Machine.Snapshot(),
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) || errors.Is(err, version.ErrVersionNotFound)
}
