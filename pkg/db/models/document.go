package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/constructai-backend/pkg/enums"
)

// Document captures an uploaded file and the state of its derivation.
type Document struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Name          string               `gorm:"column:name;not null"`
	MimeType      string               `gorm:"column:mime_type;not null"`
	Status        enums.DocumentStatus `gorm:"column:status;not null;index"`
	SizeBytes     int64                `gorm:"column:size_bytes;not null"`
	URL           string               `gorm:"column:url;not null"`
	BlobKey       string               `gorm:"column:blob_key;not null;uniqueIndex"`
	Category      string               `gorm:"column:category;not null"`
	OwnerID       string               `gorm:"column:owner_id;not null"`
	ProjectID     string               `gorm:"column:project_id;not null;index"`
	ExtractedText *string              `gorm:"column:extracted_text"`
	Confidence    *int                 `gorm:"column:confidence"`
	CreatedAt     time.Time            `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;not null"`
}

func (Document) TableName() string {
	return "documents"
}
