package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/constructai-backend/internal/documents"
	"github.com/angelmondragon/constructai-backend/pkg/db/models"
	"github.com/angelmondragon/constructai-backend/pkg/enums"
	"github.com/angelmondragon/constructai-backend/pkg/logger"
	"go.uber.org/multierr"
)

const (
	defaultStaleAfter   = 2 * time.Hour
	staleDerivationPage = 200
)

type StaleDerivationJobParams struct {
	Logger     *logger.Logger
	Documents  staleDocumentLister
	Recorder   statusRecorder
	StaleAfter time.Duration
}

type staleDocumentLister interface {
	ListStale(ctx context.Context, statuses []enums.DocumentStatus, cutoff time.Time, limit int) ([]models.Document, error)
}

type statusRecorder interface {
	Transition(ctx context.Context, doc *models.Document, update documents.StatusUpdate) error
}

// NewStaleDerivationJob moves documents whose derivation stopped making
// progress to error. Examples are a worker pool lost to a redeploy or a task
// that never reached the pool.
func NewStaleDerivationJob(params StaleDerivationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Documents == nil {
		return nil, fmt.Errorf("document repository required")
	}
	if params.Recorder == nil {
		return nil, fmt.Errorf("status recorder required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &staleDerivationJob{
		logg:       params.Logger,
		docs:       params.Documents,
		recorder:   params.Recorder,
		staleAfter: staleAfter,
		now:        time.Now,
	}, nil
}

type staleDerivationJob struct {
	logg       *logger.Logger
	docs       staleDocumentLister
	recorder   statusRecorder
	staleAfter time.Duration
	now        func() time.Time
}

func (j *staleDerivationJob) Name() string { return "stale-derivation-reaper" }

func (j *staleDerivationJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.staleAfter)
	rows, err := j.docs.ListStale(ctx, []enums.DocumentStatus{
		enums.DocumentStatusUploaded,
		enums.DocumentStatusProcessing,
	}, cutoff, staleDerivationPage)
	if err != nil {
		return fmt.Errorf("list stale documents: %w", err)
	}

	var (
		reaped int
		raced  int
		errs   error
	)
	for i := range rows {
		doc := &rows[i]
		err := j.recorder.Transition(ctx, doc, documents.StatusUpdate{To: enums.DocumentStatusError})
		switch {
		case err == nil:
			reaped++
		case errors.Is(err, documents.ErrStaleTransition):
			// Finished between the listing and the update.
			raced++
		default:
			errs = multierr.Append(errs, fmt.Errorf("reap %s: %w", doc.ID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"candidates": len(rows),
		"reaped":     reaped,
		"raced":      raced,
	})
	j.logg.Info(logCtx, "stale derivation reaper complete")
	return errs
}
