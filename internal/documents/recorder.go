package documents

import (
	"context"
	"time"

	"github.com/angelmondragon/constructai-backend/pkg/db/models"
	"github.com/angelmondragon/constructai-backend/pkg/events"
	"github.com/angelmondragon/constructai-backend/pkg/logger"
	"github.com/google/uuid"
)

type transitioner interface {
	Transition(ctx context.Context, id uuid.UUID, update StatusUpdate) error
}

// Recorder applies status transitions and announces them. Both the ingestion
// path and the derivation workers write status through it.
type Recorder struct {
	repo   transitioner
	events events.Publisher
	logg   *logger.Logger
	clock  func() time.Time
}

// NewRecorder wires a recorder. A nil publisher drops events.
func NewRecorder(repo transitioner, publisher events.Publisher, logg *logger.Logger) *Recorder {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Recorder{
		repo:   repo,
		events: publisher,
		logg:   logg,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// Transition writes update for doc and, on success, mirrors it onto doc.
func (r *Recorder) Transition(ctx context.Context, doc *models.Document, update StatusUpdate) error {
	if update.At.IsZero() {
		update.At = r.clock()
	}
	if err := r.repo.Transition(ctx, doc.ID, update); err != nil {
		return err
	}

	from := doc.Status
	doc.Status = update.To
	doc.UpdatedAt = update.At
	if update.ExtractedText != nil {
		doc.ExtractedText = update.ExtractedText
	}
	if update.Confidence != nil {
		doc.Confidence = update.Confidence
	}

	r.publish(ctx, events.New(events.TypeDocumentStatusChanged, doc.ID.String(), events.StatusChange{
		DocumentID: doc.ID.String(),
		ProjectID:  doc.ProjectID,
		From:       from.String(),
		To:         update.To.String(),
	}))
	return nil
}

// publish is best effort; a broker outage never changes a pipeline outcome.
func (r *Recorder) publish(ctx context.Context, e events.Event) {
	if err := r.events.Publish(ctx, e); err != nil && r.logg != nil {
		ctx = r.logg.WithFields(ctx, map[string]any{"event_type": e.Type, "event_id": e.ID})
		r.logg.Warn(ctx, "publish event failed: "+err.Error())
	}
}
