package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/constructai-backend/internal/cron"
	"github.com/angelmondragon/constructai-backend/internal/documents"
	"github.com/angelmondragon/constructai-backend/pkg/config"
	"github.com/angelmondragon/constructai-backend/pkg/db"
	"github.com/angelmondragon/constructai-backend/pkg/eventbus"
	"github.com/angelmondragon/constructai-backend/pkg/instance"
	"github.com/angelmondragon/constructai-backend/pkg/logger"
	"github.com/angelmondragon/constructai-backend/pkg/metrics"
	"github.com/angelmondragon/constructai-backend/pkg/migrate"
	"github.com/angelmondragon/constructai-backend/pkg/redis"
	"github.com/angelmondragon/constructai-backend/pkg/storage/blobstore"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.FromConfig(bootCtx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	var lock cron.Lock = &cron.LocalLock{}
	if cfg.Redis.Enabled() {
		redisClient, redisErr := redis.New(bootCtx, cfg.Redis, logg)
		if redisErr != nil {
			return redisErr
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()

		lock, err = cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Sweep.LockTTL)
		if err != nil {
			return err
		}
	} else {
		logg.Warn(bootCtx, "redis not configured; run a single cron worker")
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

	repo := documents.NewRepository(dbClient.DB())

	orphanSweep, err := cron.NewOrphanBlobSweepJob(cron.OrphanBlobSweepJobParams{
		Logger:     logg,
		Blobs:      blobs,
		Records:    repo,
		KeyPrefix:  cfg.Storage.Prefix,
		Grace:      cfg.Sweep.OrphanGrace,
		MaxDeletes: cfg.Sweep.MaxDeletesPerRun,
	})
	if err != nil {
		return err
	}
	staleReaper, err := cron.NewStaleDerivationJob(cron.StaleDerivationJobParams{
		Logger:     logg,
		Documents:  repo,
		Recorder:   documents.NewRecorder(repo, publisher, logg),
		StaleAfter: cfg.Sweep.StaleDerivation,
	})
	if err != nil {
		return err
	}

	registry := cron.NewRegistry()
	for _, job := range []cron.Job{orphanSweep, staleReaper} {
		if err := registry.Register(job); err != nil {
			return err
		}
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Sweep.Interval,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
		"jobs":        registry.Names(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
