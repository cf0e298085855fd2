package documents

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/constructai-backend/pkg/db/models"
	"github.com/angelmondragon/constructai-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStaleTransition means the record was not in a status that may precede
// the requested one, or no longer exists.
var ErrStaleTransition = errors.New("document status transition rejected")

// StatusUpdate is the subset of fields a derivation may write.
type StatusUpdate struct {
	To            enums.DocumentStatus
	ExtractedText *string
	Confidence    *int
	At            time.Time
}

// Repository persists document records.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a document repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository that runs on the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a document record.
func (r *Repository) Create(ctx context.Context, doc *models.Document) (*models.Document, error) {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

// FindByID retrieves a document by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	if err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// Transition moves a document to update.To only if its current status is an
// allowed predecessor. Text and confidence are written only when set.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, update StatusUpdate) error {
	from := enums.DocumentStatusPredecessors(update.To)
	if len(from) == 0 {
		return ErrStaleTransition
	}

	at := update.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	fields := map[string]any{
		"status":     update.To,
		"updated_at": at,
	}
	if update.ExtractedText != nil {
		fields["extracted_text"] = *update.ExtractedText
	}
	if update.Confidence != nil {
		fields["confidence"] = *update.Confidence
	}

	res := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// List returns documents newest first, filtered and keyed after the cursor.
func (r *Repository) List(ctx context.Context, q listQuery) ([]models.Document, error) {
	tx := r.db.WithContext(ctx).Model(&models.Document{})
	if q.projectID != "" {
		tx = tx.Where("project_id = ?", q.projectID)
	}
	if q.status != nil {
		tx = tx.Where("status = ?", *q.status)
	}
	if q.cursor != nil {
		tx = tx.Where("(created_at < ?) OR (created_at = ? AND id < ?)", q.cursor.CreatedAt, q.cursor.CreatedAt, q.cursor.ID)
	}

	var rows []models.Document
	if err := tx.Order("created_at DESC").Order("id DESC").Limit(q.limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListStale returns documents that have sat in one of statuses since before cutoff.
func (r *Repository) ListStale(ctx context.Context, statuses []enums.DocumentStatus, cutoff time.Time, limit int) ([]models.Document, error) {
	var rows []models.Document
	err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", statuses, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ExistingIDs reports which of ids have a record.
func (r *Repository) ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	out := make(map[uuid.UUID]struct{}, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var found []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id IN ?", ids).
		Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	for _, id := range found {
		out[id] = struct{}{}
	}
	return out, nil
}
