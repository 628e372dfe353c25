package mapper

import (
	"encoding/json"

	"ai-casedraft-be/internal/entity"
	"ai-casedraft-be/internal/model"

	"gorm.io/datatypes"
)

type DocumentVersionMapper struct{}

func NewDocumentVersionMapper() *DocumentVersionMapper {
	return &DocumentVersionMapper{}
}

type diffColumn struct {
	AddedLines   []string `json:"added_lines"`
	RemovedLines []string `json:"removed_lines"`
}

func (m *DocumentVersionMapper) ToEntity(v *model.DocumentVersion) *entity.DocumentVersion {
	if v == nil {
		return nil
	}

	var chat []entity.ChatTurn
	if len(v.ChatHistory) > 0 {
		_ = json.Unmarshal(v.ChatHistory, &chat)
	}
	var diff diffColumn
	if len(v.Diff) > 0 {
		_ = json.Unmarshal(v.Diff, &diff)
	}

	return &entity.DocumentVersion{
		Id:            v.Id,
		SessionId:     v.SessionId,
		VersionNumber: v.VersionNumber,
		CaseReference: v.CaseReference,
		Content:       v.Content,
		Origin:        v.Origin,
		Description:   v.Description,
		ChatHistory:   chat,
		AddedLines:    diff.AddedLines,
		RemovedLines:  diff.RemovedLines,
		RestoredFrom:  v.RestoredFrom,
		CreatedAt:     v.CreatedAt,
	}
}

func (m *DocumentVersionMapper) ToModel(v *entity.DocumentVersion) *model.DocumentVersion {
	if v == nil {
		return nil
	}

	chat := v.ChatHistory
	if chat == nil {
		chat = []entity.ChatTurn{}
	}
	chatJSON, _ := json.Marshal(chat)
	diffJSON, _ := json.Marshal(diffColumn{AddedLines: v.AddedLines, RemovedLines: v.RemovedLines})

	return &model.DocumentVersion{
		Id:            v.Id,
		SessionId:     v.SessionId,
		VersionNumber: v.VersionNumber,
		CaseReference: v.CaseReference,
		Content:       v.Content,
		Origin:        v.Origin,
		Description:   v.Description,
		ChatHistory:   datatypes.JSON(chatJSON),
		Diff:          datatypes.JSON(diffJSON),
		RestoredFrom:  v.RestoredFrom,
		CreatedAt:     v.CreatedAt,
	}
}

func (m *DocumentVersionMapper) ToEntities(versions []*model.DocumentVersion) []*entity.DocumentVersion {
	entities := make([]*entity.DocumentVersion, len(versions))
	for i, v := range versions {
		entities[i] = m.ToEntity(v)
	}
	return entities
}
