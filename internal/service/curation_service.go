package service

import (
	"context"
	"fmt"

	"ai-casedraft-be/internal/dto"
	"ai-casedraft-be/internal/pkg/logger"
	"ai-casedraft-be/internal/repository/memory"
	"ai-casedraft-be/pkg/backend"
	"ai-casedraft-be/pkg/curation"
	"ai-casedraft-be/pkg/store"
)

type ICurationService interface {
	Preview(ctx context.Context, sessionId string, req *dto.PreviewCurationRequest) (*dto.CurationResponse, error)
	Get(ctx context.Context, sessionId string) (*dto.CurationResponse, error)
	Toggle(ctx context.Context, sessionId, fragmentId string, req *dto.ToggleFragmentRequest) (*dto.CurationResponse, error)
	AddManual(ctx context.Context, sessionId string, req *dto.AddFragmentRequest) (*dto.CurationResponse, error)
	MoveFragment(ctx context.Context, sessionId, fragmentId string, req *dto.MoveFragmentRequest) (*dto.CurationResponse, error)
	MoveCategory(ctx context.Context, sessionId, category string, req *dto.MoveCategoryRequest) (*dto.CurationResponse, error)
}

type curationService struct {
	sessions  *memory.SessionRepository
	previewer backend.CurationPreviewer
	logger    logger.ILogger
}

func NewCurationService(sessions *memory.SessionRepository, previewer backend.CurationPreviewer, log logger.ILogger) ICurationService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &curationService{
		sessions:  sessions,
		previewer: previewer,
		logger:    log,
	}
}

// Preview fetches detected fragments for the session's case and replaces the
// engine's state with them.
func (c *curationService) Preview(ctx context.Context, sessionId string, req *dto.PreviewCurationRequest) (*dto.CurationResponse, error) {
	sess, err := c.lookup(sessionId)
	if err != nil {
		return nil, err
	}

	result, err := c.previewer.PreviewCuration(ctx, backend.PreviewRequest{
		CaseReference:  sess.CaseReference,
		PieceType:      req.PieceType,
		GroupID:        req.GroupId,
		SubcategoryIDs: req.SubcategoryIds,
	})
	if err != nil {
		return nil, err
	}

	if err := sess.Curation.Initialize(result.FragmentsByCategory); err != nil {
		return nil, err
	}

	c.logger.Info("CurationService", "Curation initialized", map[string]interface{}{
		"session_id": sessionId,
		"categories": len(result.FragmentsByCategory),
	})

	res := toCurationResponse(sess.Curation)
	res.Statistics = result.Statistics
	return res, nil
}

func (c *curationService) Get(ctx context.Context, sessionId string) (*dto.CurationResponse, error) {
	sess, err := c.lookup(sessionId)
	if err != nil {
		return nil, err
	}
	return toCurationResponse(sess.Curation), nil
}

func (c *curationService) Toggle(ctx context.Context, sessionId, fragmentId string, req *dto.ToggleFragmentRequest) (*dto.CurationResponse, error) {
	sess, err := c.lookup(sessionId)
	if err != nil {
		return nil, err
	}
	if err := sess.Curation.Toggle(fragmentId, *req.Selected); err != nil {
		return nil, err
	}
	return toCurationResponse(sess.Curation), nil
}

func (c *curationService) AddManual(ctx context.Context, sessionId string, req *dto.AddFragmentRequest) (*dto.CurationResponse, error) {
	sess, err := c.lookup(sessionId)
	if err != nil {
		return nil, err
	}
	_, err = sess.Curation.AddManual(curation.Fragment{
		ID:      req.Id,
		Title:   req.Title,
		Content: req.Content,
	}, req.Category)
	if err != nil {
		return nil, err
	}
	return toCurationResponse(sess.Curation), nil
}

func (c *curationService) MoveFragment(ctx context.Context, sessionId, fragmentId string, req *dto.MoveFragmentRequest) (*dto.CurationResponse, error) {
	sess, err := c.lookup(sessionId)
	if err != nil {
		return nil, err
	}
	if err := sess.Curation.MoveFragment(fragmentId, req.Category, req.Index); err != nil {
		return nil, err
	}
	return toCurationResponse(sess.Curation), nil
}

func (c *curationService) MoveCategory(ctx context.Context, sessionId, category string, req *dto.MoveCategoryRequest) (*dto.CurationResponse, error) {
	sess, err := c.lookup(sessionId)
	if err != nil {
		return nil, err
	}
	if err := sess.Curation.MoveCategory(category, req.Index); err != nil {
		return nil, err
	}
	return toCurationResponse(sess.Curation), nil
}

func (c *curationService) lookup(sessionId string) (*store.CaseSession, error) {
	sess, ok := c.sessions.Get(sessionId)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionId, ErrSessionNotFound)
	}
	c.sessions.Touch(sess)
	return sess, nil
}

func toCurationResponse(e *curation.Engine) *dto.CurationResponse {
	return &dto.CurationResponse{
		CategoryOrder: e.CategoryOrder(),
		Fragments:     e.Fragments(),
		Selection:     e.AssembleSelection(),
	}
}
