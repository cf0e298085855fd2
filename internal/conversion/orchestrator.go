// Package conversion turns a blueprint image into a 3D model through the
// remote inference service, falling back to a local simulation whenever the
// service is unavailable or the remote job does not finish.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/angelmondragon/constructai-backend/pkg/enums"
	"github.com/angelmondragon/constructai-backend/pkg/events"
	"github.com/angelmondragon/constructai-backend/pkg/logger"
	"github.com/angelmondragon/constructai-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

var (
	ErrRemoteUnhealthy = errors.New("inference service unhealthy")
	ErrRemoteFailed    = errors.New("inference job failed")
	ErrRemoteTimeout   = errors.New("inference job did not finish in time")

	errStillRunning = errors.New("inference job still running")
)

const (
	remoteJobPrefix     = "h3d_"
	simulationJobPrefix = "sim_"

	defaultVertices  = 25000
	defaultFaces     = 18000
	defaultMaterials = 1

	remoteStatusCompleted = "completed"
	remoteStatusFailed    = "failed"
)

// Remote is the inference service contract.
type Remote interface {
	Health(ctx context.Context) (HealthStatus, error)
	Start(ctx context.Context, src Source, settings Settings) (string, error)
	Status(ctx context.Context, jobID string) (JobStatus, error)
	Endpoint() string
	ResolveURL(ref string) string
}

// Request is one conversion.
type Request struct {
	FileName string
	MimeType string
	Body     io.Reader
	Settings Settings
}

type OrchestratorParams struct {
	// Remote may be nil, in which case every request is simulated.
	Remote       Remote
	Simulator    *Simulator
	PollInterval time.Duration
	PollAttempts int
	Metrics      *metrics.PipelineMetrics
	Events       events.Publisher
	Logger       *logger.Logger
	Clock        func() time.Time
}

type Orchestrator struct {
	remote       Remote
	simulator    *Simulator
	pollInterval time.Duration
	pollAttempts int
	metrics      *metrics.PipelineMetrics
	events       events.Publisher
	logg         *logger.Logger
	clock        func() time.Time
}

func NewOrchestrator(p OrchestratorParams) (*Orchestrator, error) {
	if p.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if p.Remote != nil {
		if p.PollInterval <= 0 {
			return nil, errors.New("poll interval must be positive")
		}
		if p.PollAttempts <= 0 {
			return nil, errors.New("poll attempts must be positive")
		}
	}
	if p.Simulator == nil {
		p.Simulator = NewSimulator("")
	}
	if p.Events == nil {
		p.Events = events.Noop{}
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	return &Orchestrator{
		remote:       p.Remote,
		simulator:    p.Simulator,
		pollInterval: p.PollInterval,
		pollAttempts: p.PollAttempts,
		metrics:      p.Metrics,
		events:       p.Events,
		logg:         p.Logger,
		clock:        p.Clock,
	}, nil
}

// Convert always yields a populated result. Remote failures of any kind are
// logged and answered by the simulation, tagged IsRealConversion=false. The
// only error is a request without a body.
func (o *Orchestrator) Convert(ctx context.Context, req Request) (Result, error) {
	if req.Body == nil {
		return Result{}, errors.New("conversion body is required")
	}
	started := o.clock()

	result, err := o.tryRemote(ctx, req)
	if err == nil {
		result.Output.Metadata.ProcessingTimeMs = o.clock().Sub(started).Milliseconds()
		o.metrics.IncConversion(ProviderRemote, metrics.OutcomeSuccess)
		o.metrics.ObserveDerivation(enums.DerivationModel3D.String(), metrics.OutcomeSuccess, o.clock().Sub(started))
		o.publish(ctx, result)
		return result, nil
	}

	reason := fallbackReason(err)
	if !errors.Is(err, errRemoteSkipped) {
		o.metrics.IncConversion(ProviderRemote, metrics.OutcomeFailure)
		o.logg.Warn(o.logg.WithField(ctx, "fallback_reason", reason), "remote conversion unavailable, simulating")
	}

	result = o.simulate(req.Settings, reason)
	result.Output.Metadata.ProcessingTimeMs = o.clock().Sub(started).Milliseconds()
	o.metrics.IncConversion(ProviderSimulation, metrics.OutcomeFallback)
	o.metrics.ObserveDerivation(enums.DerivationModel3D.String(), metrics.OutcomeFallback, o.clock().Sub(started))
	o.publish(ctx, result)
	return result, nil
}

var errRemoteSkipped = errors.New("remote skipped")

type skipReason string

func (s skipReason) Error() string { return string(s) }
func (s skipReason) Is(target error) bool {
	return target == errRemoteSkipped
}

func (o *Orchestrator) tryRemote(ctx context.Context, req Request) (Result, error) {
	if o.remote == nil {
		return Result{}, skipReason("remote inference service not configured")
	}
	if !strings.HasPrefix(strings.ToLower(req.MimeType), "image/") {
		return Result{}, skipReason("remote inference accepts images only")
	}

	health, err := o.remote.Health(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrRemoteUnhealthy, err)
	}
	if !health.Usable() {
		return Result{}, fmt.Errorf("%w: status=%q model_loaded=%t", ErrRemoteUnhealthy, health.Status, health.ModelLoaded)
	}

	remoteID, err := o.remote.Start(ctx, Source{FileName: req.FileName, MimeType: req.MimeType, Body: req.Body}, req.Settings)
	if err != nil {
		return Result{}, err
	}
	ctx = o.logg.WithJobID(ctx, remoteID)
	o.logg.Info(ctx, "remote conversion started")

	status, err := o.poll(ctx, remoteID)
	if err != nil {
		return Result{}, err
	}
	return o.fromRemote(remoteID, req.Settings, status)
}

// poll reads the job status at a fixed interval until it completes, fails or
// the attempt bound is reached.
func (o *Orchestrator) poll(ctx context.Context, jobID string) (JobStatus, error) {
	backoff := retry.WithMaxRetries(uint64(o.pollAttempts-1), retry.NewConstant(o.pollInterval))

	var final JobStatus
	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		status, err := o.remote.Status(ctx, jobID)
		if err != nil {
			return err
		}
		switch strings.ToLower(status.Status) {
		case remoteStatusCompleted:
			final = status
			return nil
		case remoteStatusFailed:
			msg := status.Error
			if msg == "" {
				msg = status.Message
			}
			return fmt.Errorf("%w: %s", ErrRemoteFailed, msg)
		default:
			return retry.RetryableError(errStillRunning)
		}
	})
	if errors.Is(err, errStillRunning) {
		return JobStatus{}, fmt.Errorf("%w after %d polls", ErrRemoteTimeout, attempts)
	}
	if err != nil {
		return JobStatus{}, err
	}
	return final, nil
}

func (o *Orchestrator) fromRemote(remoteID string, settings Settings, status JobStatus) (Result, error) {
	if status.Result == nil || strings.TrimSpace(status.Result.ModelURL) == "" {
		return Result{}, fmt.Errorf("%w: completed without a model url", ErrRemoteFailed)
	}
	remote := status.Result
	rng := seededRand(settings.Seed)

	stats := ModelStats{Vertices: defaultVertices, Faces: defaultFaces, Materials: defaultMaterials}
	var aspect float64
	if ms := remote.MeshStats; ms != nil {
		if ms.Vertices > 0 {
			stats.Vertices = ms.Vertices
		}
		if ms.Faces > 0 {
			stats.Faces = ms.Faces
		}
		if ms.Materials > 0 {
			stats.Materials = ms.Materials
		}
		aspect = boxAspect(ms.BoundingBox)
	}

	texture := remote.TextureURL
	if texture == "" {
		texture = remote.ImageURL
	}

	message := "Generated by the remote inference service"
	if settings.GenerateFloorPlan {
		message += ". Floor plans are not produced by the remote service"
	}

	jobID := remoteJobPrefix + remoteID
	return Result{
		Success:          true,
		JobID:            jobID,
		Status:           enums.ConversionStatusCompleted,
		IsRealConversion: true,
		Settings:         settings,
		Output: Output{
			ModelURL:   o.remote.ResolveURL(remote.ModelURL),
			TextureURL: o.remote.ResolveURL(texture),
			Metadata: Metadata{
				DetectedElements: estimateElements(rng),
				BuildingMetrics:  estimateBuilding(rng, aspect),
				Accuracy:         between(rng, remoteAccuracyMin, remoteAccuracyMax),
				ModelStats:       stats,
			},
		},
		ServiceInfo: ServiceInfo{
			IsRealConversion: true,
			Provider:         ProviderRemote,
			Endpoint:         o.remote.Endpoint(),
			Message:          message,
		},
		Timestamp: o.clock().UTC(),
	}, nil
}

func (o *Orchestrator) simulate(settings Settings, reason string) Result {
	jobID := simulationJobPrefix + uuid.NewString()
	info := ServiceInfo{
		Provider:       ProviderSimulation,
		FallbackReason: reason,
		Message:        "Simulated result, the remote inference service was not used",
	}
	if o.remote != nil {
		info.Endpoint = o.remote.Endpoint()
	}
	return Result{
		Success:     true,
		JobID:       jobID,
		Status:      enums.ConversionStatusCompleted,
		Settings:    settings,
		Output:      o.simulator.Simulate(jobID, settings),
		ServiceInfo: info,
		Timestamp:   o.clock().UTC(),
	}
}

func (o *Orchestrator) publish(ctx context.Context, r Result) {
	evt := events.New(events.TypeConversionCompleted, r.JobID, CompletedEvent{
		JobID:            r.JobID,
		Provider:         r.ServiceInfo.Provider,
		IsRealConversion: r.IsRealConversion,
		FallbackReason:   r.ServiceInfo.FallbackReason,
		ProcessingTimeMs: r.Output.Metadata.ProcessingTimeMs,
	})
	if err := o.events.Publish(ctx, evt); err != nil {
		o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "publish conversion.completed failed")
	}
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, errRemoteSkipped):
		return err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "remote inference timed out"
	default:
		return err.Error()
	}
}

// boxAspect is height over the widest footprint side, 0 when unknown.
func boxAspect(box *BoundingBox) float64 {
	if box == nil || len(box.Min) < 3 || len(box.Max) < 3 {
		return 0
	}
	dx := math.Abs(box.Max[0] - box.Min[0])
	dy := math.Abs(box.Max[1] - box.Min[1])
	dz := math.Abs(box.Max[2] - box.Min[2])
	footprint := math.Max(dx, dz)
	if footprint == 0 || math.IsNaN(dy) {
		return 0
	}
	return dy / footprint
}
