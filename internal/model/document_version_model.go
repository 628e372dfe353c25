package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DocumentVersion struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	SessionId     string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_document_versions_session_number"`
	VersionNumber int            `gorm:"not null;uniqueIndex:idx_document_versions_session_number"`
	CaseReference string         `gorm:"type:varchar(32);index"`
	Content       string         `gorm:"type:text;not null"`
	Origin        string         `gorm:"type:varchar(32);not null"`
	Description   string         `gorm:"type:text"`
	ChatHistory   datatypes.JSON `gorm:"type:jsonb"`
	Diff          datatypes.JSON `gorm:"type:jsonb"`
	RestoredFrom  *int
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (DocumentVersion) TableName() string {
	return "document_versions"
}
