package service

import (
	"context"
	"fmt"

	"ai-casedraft-be/internal/dto"
	"ai-casedraft-be/internal/entity"
	"ai-casedraft-be/internal/pkg/logger"
	"ai-casedraft-be/internal/repository/specification"
	"ai-casedraft-be/internal/repository/unitofwork"
	"ai-casedraft-be/pkg/backend"
	"ai-casedraft-be/pkg/version"
)

type SaveVersionInput struct {
	SessionID     string
	CaseReference string
	Version       version.Version
	ChatHistory   []backend.ChatMessage
}

// IVersionStore is the durable copy of every session's version history.
type IVersionStore interface {
	SaveVersion(ctx context.Context, in SaveVersionInput) (int, error)
	ListVersions(ctx context.Context, sessionID string) ([]version.Version, error)
	GetVersion(ctx context.Context, sessionID string, versionNumber int) (version.Version, error)
	RestoreVersion(ctx context.Context, sessionID string, versionNumber int) (*dto.RestoreVersionResponse, error)
}

type versionStore struct {
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
}

func NewVersionStore(uowFactory unitofwork.RepositoryFactory, log logger.ILogger) IVersionStore {
	return &versionStore{
		uowFactory: uowFactory,
		logger:     log,
	}
}

// SaveVersion stores v under its own sequence number. If that number is
// already taken the next free one is used, and returned.
func (s *versionStore) SaveVersion(ctx context.Context, in SaveVersionInput) (int, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return 0, err
	}
	defer uow.Rollback()

	repo := uow.DocumentVersionRepository()
	max, err := repo.MaxVersionNumber(ctx, in.SessionID)
	if err != nil {
		return 0, err
	}

	number := in.Version.SequenceNumber
	if number <= max {
		s.logger.Warn("VersionStore", "Sequence number already stored, appending instead", map[string]interface{}{
			"session_id": in.SessionID,
			"requested":  number,
			"assigned":   max + 1,
		})
		number = max + 1
	}

	chat := make([]entity.ChatTurn, 0, len(in.ChatHistory))
	for _, m := range in.ChatHistory {
		chat = append(chat, entity.ChatTurn{Role: m.Role, Content: m.Content})
	}

	var restoredFrom *int
	if in.Version.RestoredFrom > 0 {
		n := in.Version.RestoredFrom
		restoredFrom = &n
	}

	row := &entity.DocumentVersion{
		SessionId:     in.SessionID,
		VersionNumber: number,
		CaseReference: in.CaseReference,
		Content:       in.Version.Content,
		Origin:        string(in.Version.Origin),
		Description:   in.Version.TriggeringDescription,
		ChatHistory:   chat,
		AddedLines:    in.Version.DiffAgainstPrevious.AddedLines,
		RemovedLines:  in.Version.DiffAgainstPrevious.RemovedLines,
		RestoredFrom:  restoredFrom,
		CreatedAt:     in.Version.CreatedAt,
	}
	if err := repo.Create(ctx, row); err != nil {
		return 0, err
	}
	if err := uow.Commit(); err != nil {
		return 0, err
	}
	return number, nil
}

func (s *versionStore) ListVersions(ctx context.Context, sessionID string) ([]version.Version, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	rows, err := uow.DocumentVersionRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.OrderBy{Field: "version_number", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	out := make([]version.Version, 0, len(rows))
	for _, r := range rows {
		out = append(out, toVersion(r))
	}
	return out, nil
}

func (s *versionStore) GetVersion(ctx context.Context, sessionID string, versionNumber int) (version.Version, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	row, err := uow.DocumentVersionRepository().FindOne(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.ByVersionNumber{VersionNumber: versionNumber},
	)
	if err != nil {
		return version.Version{}, err
	}
	if row == nil {
		return version.Version{}, fmt.Errorf("session %s version %d: %w", sessionID, versionNumber, version.ErrVersionNotFound)
	}
	return toVersion(row), nil
}

// RestoreVersion appends a manual-restore copy of a stored version.
func (s *versionStore) RestoreVersion(ctx context.Context, sessionID string, versionNumber int) (*dto.RestoreVersionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	repo := uow.DocumentVersionRepository()
	target, err := repo.FindOne(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.ByVersionNumber{VersionNumber: versionNumber},
	)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("session %s version %d: %w", sessionID, versionNumber, version.ErrVersionNotFound)
	}

	max, err := repo.MaxVersionNumber(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	latest, err := repo.FindOne(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.ByVersionNumber{VersionNumber: max},
	)
	if err != nil {
		return nil, err
	}

	previous := ""
	if latest != nil {
		previous = latest.Content
	}
	diff, err := version.ComputeDiff(previous, target.Content)
	if err != nil {
		s.logger.Error("VersionStore", "Diff failed on restore", map[string]interface{}{"error": err.Error()})
	}

	restoredFrom := versionNumber
	row := &entity.DocumentVersion{
		SessionId:     sessionID,
		VersionNumber: max + 1,
		CaseReference: target.CaseReference,
		Content:       target.Content,
		Origin:        string(version.OriginManualRestore),
		Description:   version.RestoreDescription(versionNumber),
		ChatHistory:   target.ChatHistory,
		AddedLines:    diff.AddedLines,
		RemovedLines:  diff.RemovedLines,
		RestoredFrom:  &restoredFrom,
	}
	if err := repo.Create(ctx, row); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	return &dto.RestoreVersionResponse{Content: row.Content, NewVersion: row.VersionNumber}, nil
}

func toVersion(r *entity.DocumentVersion) version.Version {
	v := version.Version{
		SequenceNumber:        r.VersionNumber,
		Content:               r.Content,
		Origin:                version.Origin(r.Origin),
		TriggeringDescription: r.Description,
		CreatedAt:             r.CreatedAt,
		DiffAgainstPrevious: version.Diff{
			AddedLines:   r.AddedLines,
			RemovedLines: r.RemovedLines,
		},
	}
	if r.RestoredFrom != nil {
		v.RestoredFrom = *r.RestoredFrom
	}
	return v
}
