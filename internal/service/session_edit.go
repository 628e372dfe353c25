package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-casedraft-be/internal/dto"
	"ai-casedraft-be/pkg/backend"
	"ai-casedraft-be/pkg/session"
	"ai-casedraft-be/pkg/sse"
	"ai-casedraft-be/pkg/store"
)

var errEditIncomplete = errors.New("edit stream ended before completion")

// Edit applies a chat instruction to the finalized artifact. A failed edit is
// not an error for the caller: it is reported inline in the chat thread and
// the artifact is left as it was.
func (s *sessionService) Edit(ctx context.Context, sessionId string, req *dto.EditRequest) (*dto.EditResponse, error) {
	sess, err := s.lookup(sessionId)
	if err != nil {
		return nil, err
	}

	artifact, err := sess.Machine.BeginEdit()
	if err != nil {
		return nil, err
	}
	s.emit(sess, dto.SessionUpdate{Kind: dto.UpdateStage}, true)

	text, err := s.streamEdit(ctx, sess, backend.EditRequest{
		SessionID:   sess.ID,
		Message:     req.Message,
		Content:     artifact,
		ChatHistory: sess.ChatHistory(),
	})
	if err != nil {
		return s.failEdit(sess, req.Message, err.Error()), nil
	}

	content := session.NormalizeMarkdown(text)
	v, err := sess.Machine.CompleteEdit(content, req.Message)
	if err != nil {
		return s.rejectEdit(sess, req.Message, err.Error()), nil
	}

	sess.AppendChat(store.ChatEntry{Role: store.RoleUser, Content: req.Message})
	sess.AppendChat(store.ChatEntry{
		Role:          store.RoleAssistant,
		Content:       fmt.Sprintf("Document updated to version %d", v.SequenceNumber),
		VersionNumber: v.SequenceNumber,
	})
	s.persistVersion(sess, v)
	s.emit(sess, dto.SessionUpdate{Kind: dto.UpdateVersion, Version: &v}, true)

	s.logger.Info("SessionService", "Chat edit applied", map[string]interface{}{
		"session_id": sess.ID,
		"version":    v.SequenceNumber,
		"added":      v.DiffAgainstPrevious.AddedLines,
		"removed":    v.DiffAgainstPrevious.RemovedLines,
	})

	return &dto.EditResponse{
		Applied:  true,
		Version:  &v,
		Artifact: content,
	}, nil
}

// streamEdit reads the edit stream to its [DONE] marker and returns the
// concatenated text. An {error} frame or a stream without [DONE] fails.
func (s *sessionService) streamEdit(ctx context.Context, sess *store.CaseSession, req backend.EditRequest) (string, error) {
	body, err := s.editor.OpenEdit(ctx, req)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var (
		text      strings.Builder
		remoteErr string
		done      bool
	)
	dec := sse.NewDecoder(sse.EditDelimiter, session.ParseEditEvent, func(ev session.EditEvent) {
		if done || remoteErr != "" {
			return
		}
		switch {
		case ev.Done:
			done = true
		case ev.Err != "":
			remoteErr = ev.Err
		default:
			text.WriteString(ev.Text)
			s.emit(sess, dto.SessionUpdate{Kind: dto.UpdateEditChunk, Chunk: ev.Text}, false)
		}
	}, s.logger)

	if err := dec.Consume(ctx, body); err != nil {
		return "", err
	}
	if remoteErr != "" {
		return "", errors.New(remoteErr)
	}
	if !done {
		return "", errEditIncomplete
	}
	return text.String(), nil
}

func (s *sessionService) failEdit(sess *store.CaseSession, message, reason string) *dto.EditResponse {
	if err := sess.Machine.FailEdit(reason); err != nil {
		s.logger.Warn("SessionService", "Edit already closed", map[string]interface{}{
			"session_id": sess.ID,
			"error":      err.Error(),
		})
	}
	return s.rejectEdit(sess, message, reason)
}

// rejectEdit records a failed attempt in the thread. Failed entries are kept
// out of the history sent with later edits.
func (s *sessionService) rejectEdit(sess *store.CaseSession, message, reason string) *dto.EditResponse {
	sess.AppendChat(store.ChatEntry{Role: store.RoleUser, Content: message, Failed: true})
	sess.AppendChat(store.ChatEntry{Role: store.RoleSystem, Content: "Edit failed: " + reason, Failed: true})

	s.logger.Warn("SessionService", "Chat edit failed", map[string]interface{}{
		"session_id": sess.ID,
		"reason":     reason,
	})
	s.emit(sess, dto.SessionUpdate{Kind: dto.UpdateEditFailed, Message: reason}, true)

	return &dto.EditResponse{
		Applied:  false,
		Error:    reason,
		Artifact: sess.Machine.Artifact(),
	}
}
