// Package dispatch runs derivations in a bounded background pool, outliving
// the request that scheduled them.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/constructai-backend/pkg/enums"
	"github.com/angelmondragon/constructai-backend/pkg/logger"
	"github.com/angelmondragon/constructai-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

var (
	// ErrSaturated is returned when the queue is full.
	ErrSaturated = errors.New("derivation queue is full")
	// ErrClosed is returned after Close has been called.
	ErrClosed = errors.New("dispatcher closed")
)

// Task is one derivation for one document.
type Task struct {
	Kind       enums.DerivationKind
	DocumentID uuid.UUID
	Run        func(ctx context.Context) error
}

// Options configures a Dispatcher.
type Options struct {
	PoolSize   int
	QueueDepth int
	Claimer    Claimer
	Metrics    *metrics.PipelineMetrics
	Logger     *logger.Logger
}

type queued struct {
	ctx     context.Context
	task    Task
	release ReleaseFunc
}

// Dispatcher accepts tasks without blocking and feeds them to an ants pool.
type Dispatcher struct {
	pool    *ants.Pool
	claimer Claimer
	metrics *metrics.PipelineMetrics
	logg    *logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan queued
	fed    chan struct{}
	busy   atomic.Int64
}

// New starts the pool and its feeder goroutine.
func New(opts Options) (*Dispatcher, error) {
	if opts.PoolSize <= 0 {
		return nil, fmt.Errorf("pool size must be positive")
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = opts.PoolSize
	}
	if opts.Claimer == nil {
		opts.Claimer = NewLocalClaimer()
	}

	d := &Dispatcher{
		claimer: opts.Claimer,
		metrics: opts.Metrics,
		logg:    opts.Logger,
		queue:   make(chan queued, opts.QueueDepth),
		fed:     make(chan struct{}),
	}
	pool, err := ants.NewPool(opts.PoolSize, ants.WithPanicHandler(d.onPanic))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	d.pool = pool

	go d.feed()
	return d, nil
}

// Submit claims the document and queues the task. It returns ErrClaimed when
// another derivation holds the document, and ErrSaturated when the queue is full.
// The task runs on a context detached from ctx's cancellation.
func (d *Dispatcher) Submit(ctx context.Context, task Task) error {
	if task.Run == nil {
		return fmt.Errorf("task has no run function")
	}
	kind := task.Kind.String()

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.metrics.IncDispatchRejected(kind, "closed")
		return ErrClosed
	}

	release, err := d.claimer.Claim(ctx, kind, task.DocumentID.String())
	if err != nil {
		reason := "claim_error"
		if errors.Is(err, ErrClaimed) {
			reason = "claimed"
		}
		d.metrics.IncDispatchRejected(kind, reason)
		return err
	}

	item := queued{ctx: context.WithoutCancel(ctx), task: task, release: release}
	select {
	case d.queue <- item:
		return nil
	default:
		d.metrics.IncDispatchRejected(kind, "saturated")
		d.releaseClaim(item)
		return ErrSaturated
	}
}

// Close stops accepting tasks, drains the queue and waits for running tasks
// until ctx expires. The pool is released either way; tasks still queued when
// ctx expires are dropped and their claims released.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	select {
	case <-d.fed:
	case <-ctx.Done():
		d.pool.Release()
		return fmt.Errorf("draining derivation queue: %w", ctx.Err())
	}

	timeout := 30 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := d.pool.ReleaseTimeout(timeout); err != nil {
		return fmt.Errorf("releasing worker pool: %w", err)
	}
	return nil
}

func (d *Dispatcher) feed() {
	defer close(d.fed)
	for item := range d.queue {
		// Blocks while every worker is busy.
		if err := d.pool.Submit(func() { d.run(item) }); err != nil {
			d.metrics.IncDispatchRejected(item.task.Kind.String(), "pool")
			d.logError(item, "submit derivation to pool", err)
			d.releaseClaim(item)
		}
	}
}

func (d *Dispatcher) run(item queued) {
	d.metrics.SetDispatchBusy(d.busy.Add(1))
	defer func() { d.metrics.SetDispatchBusy(d.busy.Add(-1)) }()
	defer d.releaseClaim(item)
	defer func() {
		if r := recover(); r != nil {
			d.logError(item, "derivation panicked", fmt.Errorf("panic: %v", r))
		}
	}()

	if err := item.task.Run(item.ctx); err != nil {
		d.logError(item, "derivation failed", err)
	}
}

func (d *Dispatcher) releaseClaim(item queued) {
	if item.release == nil {
		return
	}
	if err := item.release(item.ctx); err != nil {
		d.logError(item, "release derivation claim", err)
	}
}

func (d *Dispatcher) logError(item queued, msg string, err error) {
	if d.logg == nil {
		return
	}
	ctx := d.logg.WithFields(item.ctx, map[string]any{
		"document_id":     item.task.DocumentID.String(),
		"derivation_kind": item.task.Kind.String(),
	})
	d.logg.Error(ctx, msg, err)
}

func (d *Dispatcher) onPanic(p any) {
	if d.logg == nil {
		return
	}
	d.logg.Error(context.Background(), "worker pool panic", fmt.Errorf("panic: %v", p))
}
