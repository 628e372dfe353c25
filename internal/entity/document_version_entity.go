package entity

import (
	"time"

	"github.com/google/uuid"
)

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type DocumentVersion struct {
	Id            uuid.UUID
	SessionId     string
	VersionNumber int
	CaseReference string
	Content       string
	Origin        string
	Description   string
	ChatHistory   []ChatTurn
	AddedLines    []string
	RemovedLines  []string
	RestoredFrom  *int
	CreatedAt     time.Time
}
