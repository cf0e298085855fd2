package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/constructai-backend/api/routes"
	"github.com/angelmondragon/constructai-backend/internal/conversion"
	"github.com/angelmondragon/constructai-backend/internal/dispatch"
	"github.com/angelmondragon/constructai-backend/internal/documents"
	"github.com/angelmondragon/constructai-backend/internal/ocr"
	"github.com/angelmondragon/constructai-backend/internal/ocr/tesseract"
	"github.com/angelmondragon/constructai-backend/internal/uploads"
	"github.com/angelmondragon/constructai-backend/pkg/config"
	"github.com/angelmondragon/constructai-backend/pkg/db"
	"github.com/angelmondragon/constructai-backend/pkg/enums"
	"github.com/angelmondragon/constructai-backend/pkg/eventbus"
	"github.com/angelmondragon/constructai-backend/pkg/instance"
	"github.com/angelmondragon/constructai-backend/pkg/logger"
	"github.com/angelmondragon/constructai-backend/pkg/metrics"
	"github.com/angelmondragon/constructai-backend/pkg/migrate"
	"github.com/angelmondragon/constructai-backend/pkg/redis"
	"github.com/angelmondragon/constructai-backend/pkg/storage/blobstore"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	bootCtx := context.Background()

	dbClient, err := db.FromConfig(bootCtx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(bootCtx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
	} else {
		logg.Warn(bootCtx, "redis not configured; claims are process local and upload rate limiting is off")
	}

	blobs, err := blobstore.New(bootCtx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, blobs.Close()) }()

	publisher, err := eventbus.New(bootCtx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, publisher.Close()) }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipelineMetrics := metrics.NewPipelineMetrics(registry)

	var claimer dispatch.Claimer = dispatch.NewLocalClaimer()
	if redisClient != nil {
		claimer, err = dispatch.NewRedisClaimer(redisClient, redisClient.ClaimKey, cfg.Worker.ClaimTTL)
		if err != nil {
			return err
		}
	}
	dispatcher, err := dispatch.New(dispatch.Options{
		PoolSize:   cfg.Worker.PoolSize,
		QueueDepth: cfg.Worker.QueueDepth,
		Claimer:    claimer,
		Metrics:    pipelineMetrics,
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	repo := documents.NewRepository(dbClient.DB())
	ocrWorker, err := ocr.NewWorker(ocr.WorkerParams{
		Blobs:    blobs,
		Recorder: documents.NewRecorder(repo, publisher, logg),
		Engines:  tesseract.Factory(cfg.OCR),
		Metrics:  pipelineMetrics,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	documentsService, err := documents.NewService(documents.ServiceParams{
		Repo:       repo,
		Blobs:      blobs,
		Dispatcher: dispatcher,
		Derivers:   map[enums.DerivationKind]documents.Deriver{enums.DerivationOCR: ocrWorker},
		Events:     publisher,
		Policy:     uploads.DocumentPolicy(cfg.Upload.DocumentMaxBytes()),
		KeyPrefix:  cfg.Storage.Prefix,
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	orchestratorParams := conversion.OrchestratorParams{
		Simulator:    conversion.NewSimulator(cfg.Inference.SimulationAssetBase),
		PollInterval: cfg.Inference.PollInterval,
		PollAttempts: cfg.Inference.PollAttempts,
		Metrics:      pipelineMetrics,
		Events:       publisher,
		Logger:       logg,
	}
	if cfg.Inference.BaseURL != "" {
		client, err := conversion.NewClient(cfg.Inference)
		if err != nil {
			return err
		}
		orchestratorParams.Remote = client
	} else {
		logg.Warn(bootCtx, "inference service not configured; conversions are simulated")
	}
	orchestrator, err := conversion.NewOrchestrator(orchestratorParams)
	if err != nil {
		return err
	}

	var dbPinger db.Pinger = dbClient
	handler := routes.NewRouter(cfg, logg, dbPinger, redisClient, blobs,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), documentsService, orchestrator)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.App.ShutdownTimeout)
	defer cancel()

	err = multierr.Append(err, server.Shutdown(shutdownCtx))
	err = multierr.Append(err, dispatcher.Close(shutdownCtx))
	return err
}
