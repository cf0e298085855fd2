package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/constructai-backend/pkg/logger"
	"github.com/angelmondragon/constructai-backend/pkg/storage"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const (
	defaultOrphanGrace      = 24 * time.Hour
	defaultMaxOrphanDeletes = 500
	orphanLookupBatch       = 100
)

var errSweepBudgetSpent = errors.New("sweep delete budget spent")

type OrphanBlobSweepJobParams struct {
	Logger     *logger.Logger
	Blobs      blobSweeper
	Records    documentIndex
	KeyPrefix  string
	Grace      time.Duration
	MaxDeletes int
}

type blobSweeper interface {
	Walk(ctx context.Context, prefix string, fn func(storage.ObjectInfo) error) error
	Delete(ctx context.Context, key string) error
}

type documentIndex interface {
	ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]struct{}, error)
}

// NewOrphanBlobSweepJob removes document blobs that never got a record, for
// example when the record write failed and the compensating delete did too.
// Blobs younger than the grace period are left alone so in-flight uploads
// are never touched.
func NewOrphanBlobSweepJob(params OrphanBlobSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Blobs == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if params.Records == nil {
		return nil, fmt.Errorf("document index required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultOrphanGrace
	}
	maxDeletes := params.MaxDeletes
	if maxDeletes <= 0 {
		maxDeletes = defaultMaxOrphanDeletes
	}
	return &orphanBlobSweepJob{
		logg:       params.Logger,
		blobs:      params.Blobs,
		records:    params.Records,
		prefix:     params.KeyPrefix,
		grace:      grace,
		maxDeletes: maxDeletes,
		now:        time.Now,
	}, nil
}

type orphanBlobSweepJob struct {
	logg       *logger.Logger
	blobs      blobSweeper
	records    documentIndex
	prefix     string
	grace      time.Duration
	maxDeletes int
	now        func() time.Time
}

type orphanCandidate struct {
	id  uuid.UUID
	key string
}

type sweepTally struct {
	scanned   int
	foreign   int
	candidate int
	deleted   int
	failures  error
}

func (j *orphanBlobSweepJob) Name() string { return "orphan-blob-sweep" }

func (j *orphanBlobSweepJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)
	tally := &sweepTally{}
	batch := make([]orphanCandidate, 0, orphanLookupBatch)

	walkErr := j.blobs.Walk(ctx, storage.DocumentPrefix(j.prefix), func(obj storage.ObjectInfo) error {
		tally.scanned++
		if !obj.CreatedAt.Before(cutoff) {
			return nil
		}
		id, ok := storage.ParseDocumentKey(j.prefix, obj.Key)
		if !ok {
			tally.foreign++
			return nil
		}
		batch = append(batch, orphanCandidate{id: id, key: obj.Key})
		if len(batch) < orphanLookupBatch {
			return nil
		}
		err := j.flush(ctx, batch, tally)
		batch = batch[:0]
		return err
	})
	if walkErr == nil && len(batch) > 0 {
		walkErr = j.flush(ctx, batch, tally)
	}
	if errors.Is(walkErr, errSweepBudgetSpent) {
		walkErr = nil
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":      cutoff,
		"scanned":     tally.scanned,
		"unparseable": tally.foreign,
		"candidates":  tally.candidate,
		"deleted":     tally.deleted,
		"max_deletes": j.maxDeletes,
	})
	j.logg.Info(logCtx, "orphan blob sweep complete")

	if walkErr != nil {
		return multierr.Append(fmt.Errorf("orphan blob sweep: %w", walkErr), tally.failures)
	}
	return tally.failures
}

// flush looks up a batch of candidate ids and deletes the blobs without a
// record. Individual delete failures are collected, not returned, so one bad
// object does not stop the sweep.
func (j *orphanBlobSweepJob) flush(ctx context.Context, batch []orphanCandidate, tally *sweepTally) error {
	ids := make([]uuid.UUID, len(batch))
	for i, c := range batch {
		ids[i] = c.id
	}
	existing, err := j.records.ExistingIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("lookup document ids: %w", err)
	}
	for _, c := range batch {
		if _, ok := existing[c.id]; ok {
			continue
		}
		tally.candidate++
		if tally.deleted >= j.maxDeletes {
			return errSweepBudgetSpent
		}
		if err := j.blobs.Delete(ctx, c.key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			tally.failures = multierr.Append(tally.failures, fmt.Errorf("delete %s: %w", c.key, err))
			continue
		}
		tally.deleted++
	}
	return nil
}
