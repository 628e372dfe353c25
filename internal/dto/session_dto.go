package dto

import (
	"time"

	"ai-casedraft-be/pkg/curation"
	"ai-casedraft-be/pkg/session"
	"ai-casedraft-be/pkg/store"
	"ai-casedraft-be/pkg/version"
)

type CreateSessionRequest struct {
	CaseReference string `json:"case_reference" validate:"required,cnj"`
}

type SessionResponse struct {
	Id            string    `json:"id"`
	CaseReference string    `json:"case_reference"`
	CreatedAt     time.Time `json:"created_at"`
	session.Snapshot
}

type AnswerQuestionRequest struct {
	Answer string `json:"answer" validate:"required"`
}

type EditRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

type EditResponse struct {
	Applied  bool             `json:"applied"`
	Version  *version.Version `json:"version,omitempty"`
	Error    string           `json:"error,omitempty"`
	Artifact string           `json:"artifact"`
}

type ChatThreadResponse struct {
	Entries []store.ChatEntry `json:"entries"`
}

type VersionSummary struct {
	VersionNumber int            `json:"version_number"`
	Origin        version.Origin `json:"origin"`
	Description   string         `json:"description"`
	AddedLines    int            `json:"added_lines"`
	RemovedLines  int            `json:"removed_lines"`
	CreatedAt     time.Time      `json:"created_at"`
}

type VersionDetailResponse struct {
	version.Version
	UnifiedDiff string `json:"unified_diff"`
}

type RestoreVersionResponse struct {
	Content    string `json:"content"`
	NewVersion int    `json:"new_version"`
}

type PreviewCurationRequest struct {
	PieceType      string   `json:"piece_type" validate:"required"`
	GroupId        string   `json:"group_id"`
	SubcategoryIds []string `json:"subcategory_ids"`
}

type ToggleFragmentRequest struct {
	Selected *bool `json:"selected" validate:"required"`
}

type AddFragmentRequest struct {
	Id       string `json:"id"`
	Category string `json:"category" validate:"required"`
	Title    string `json:"title" validate:"required_without=Content"`
	Content  string `json:"content"`
}

type MoveFragmentRequest struct {
	Category string `json:"category" validate:"required"`
	Index    int    `json:"index" validate:"min=0"`
}

type MoveCategoryRequest struct {
	Index int `json:"index" validate:"min=0"`
}

type GenerateCuratedRequest struct {
	Notes string `json:"notes" validate:"max=8000"`
}

type CurationResponse struct {
	CategoryOrder []string               `json:"category_order"`
	Fragments     []curation.Fragment    `json:"fragments"`
	Selection     curation.Selection     `json:"selection"`
	Statistics    map[string]interface{} `json:"statistics,omitempty"`
}

// UpdateKind classifies a SessionUpdate.
type UpdateKind string

const (
	UpdateStage      UpdateKind = "stage"
	UpdateChunk      UpdateKind = "chunk"
	UpdateQuestion   UpdateKind = "question"
	UpdateFinalized  UpdateKind = "finalized"
	UpdateFailed     UpdateKind = "failed"
	UpdateCancelled  UpdateKind = "cancelled"
	UpdateEditChunk  UpdateKind = "edit_chunk"
	UpdateEditFailed UpdateKind = "edit_failed"
	UpdateVersion    UpdateKind = "version"
)

// SessionUpdate is published on every observable state change. Chunk updates
// carry only the chunk, not a snapshot.
type SessionUpdate struct {
	SessionId     string            `json:"session_id"`
	CaseReference string            `json:"case_reference"`
	Kind          UpdateKind        `json:"kind"`
	Snapshot      *session.Snapshot `json:"snapshot,omitempty"`
	Chunk         string            `json:"chunk,omitempty"`
	Version       *version.Version  `json:"version,omitempty"`
	Message       string            `json:"message,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}
