package documents

import (
	"time"

	"github.com/angelmondragon/constructai-backend/pkg/db/models"
	"github.com/angelmondragon/constructai-backend/pkg/enums"
	"github.com/google/uuid"
)

// DocumentDTO is the client representation of a document record.
type DocumentDTO struct {
	ID            uuid.UUID            `json:"id"`
	Name          string               `json:"name"`
	MimeType      string               `json:"mimeType"`
	Status        enums.DocumentStatus `json:"status"`
	SizeBytes     int64                `json:"sizeBytes"`
	URL           string               `json:"url"`
	Category      string               `json:"category"`
	OwnerID       string               `json:"ownerId"`
	ProjectID     string               `json:"projectId"`
	ExtractedText *string              `json:"extractedText,omitempty"`
	Confidence    *int                 `json:"confidence,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// ToDTO maps a record onto its client representation.
func ToDTO(doc *models.Document) DocumentDTO {
	return DocumentDTO{
		ID:            doc.ID,
		Name:          doc.Name,
		MimeType:      doc.MimeType,
		Status:        doc.Status,
		SizeBytes:     doc.SizeBytes,
		URL:           doc.URL,
		Category:      doc.Category,
		OwnerID:       doc.OwnerID,
		ProjectID:     doc.ProjectID,
		ExtractedText: doc.ExtractedText,
		Confidence:    doc.Confidence,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}
