package service

import (
	"context"
	"fmt"

	"ai-casedraft-be/internal/dto"
	"ai-casedraft-be/pkg/version"
)

// ListVersions returns the session's versions, most recent first. Sessions
// that expired from memory are served from the version store.
func (s *sessionService) ListVersions(ctx context.Context, sessionId string) ([]dto.VersionSummary, error) {
	var versions []version.Version
	if sess, err := s.lookup(sessionId); err == nil {
		versions = sess.Machine.History().ListVersions()
	} else {
		if s.versions == nil {
			return nil, err
		}
		stored, err := s.versions.ListVersions(ctx, sessionId)
		if err != nil {
			return nil, err
		}
		if len(stored) == 0 {
			return nil, fmt.Errorf("session %s: %w", sessionId, ErrSessionNotFound)
		}
		versions = stored
	}

	out := make([]dto.VersionSummary, 0, len(versions))
	for _, v := range versions {
		out = append(out, dto.VersionSummary{
			VersionNumber: v.SequenceNumber,
			Origin:        v.Origin,
			Description:   v.TriggeringDescription,
			AddedLines:    len(v.DiffAgainstPrevious.AddedLines),
			RemovedLines:  len(v.DiffAgainstPrevious.RemovedLines),
			CreatedAt:     v.CreatedAt,
		})
	}
	return out, nil
}

func (s *sessionService) GetVersion(ctx context.Context, sessionId string, versionNumber int) (*dto.VersionDetailResponse, error) {
	get := func(n int) (version.Version, error) {
		return s.versions.GetVersion(ctx, sessionId, n)
	}
	if sess, err := s.lookup(sessionId); err == nil {
		get = sess.Machine.History().Get
	} else if s.versions == nil {
		return nil, err
	}

	v, err := get(versionNumber)
	if err != nil {
		return nil, err
	}

	previous := ""
	if versionNumber > 1 {
		prev, err := get(versionNumber - 1)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		previous = prev.Content
	}

	unified, err := version.UnifiedDiff(previous, v.Content,
		fmt.Sprintf("version %d", versionNumber-1),
		fmt.Sprintf("version %d", versionNumber),
	)
	if err != nil {
		s.logger.Warn("SessionService", "Unified diff failed", map[string]interface{}{
			"session_id": sessionId,
			"version":    versionNumber,
			"error":      err.Error(),
		})
	}

	return &dto.VersionDetailResponse{Version: v, UnifiedDiff: unified}, nil
}

// RestoreVersion makes an earlier version current again by appending a copy.
func (s *sessionService) RestoreVersion(ctx context.Context, sessionId string, versionNumber int) (*dto.RestoreVersionResponse, error) {
	sess, err := s.lookup(sessionId)
	if err != nil {
		if s.versions == nil {
			return nil, err
		}
		return s.versions.RestoreVersion(ctx, sessionId, versionNumber)
	}

	v, err := sess.Machine.Restore(versionNumber)
	if err != nil {
		return nil, err
	}
	s.persistVersion(sess, v)
	s.emit(sess, dto.SessionUpdate{Kind: dto.UpdateVersion, Version: &v}, true)

	return &dto.RestoreVersionResponse{Content: v.Content, NewVersion: v.SequenceNumber}, nil
}
