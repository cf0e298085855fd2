package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "prod" {
		t.Fatalf("expected App.Env to be prod, got %q", cfg.App.Env)
	}
	if got := cfg.Upload.DocumentMaxBytes(); got != 500*1024*1024 {
		t.Fatalf("expected 500 MiB document ceiling, got %d", got)
	}
	if got := cfg.Upload.BlueprintMaxBytes(); got != 50*1024*1024 {
		t.Fatalf("expected 50 MiB blueprint ceiling, got %d", got)
	}
	if cfg.Inference.HealthTimeout != 5*time.Second {
		t.Fatalf("expected 5s health timeout, got %v", cfg.Inference.HealthTimeout)
	}
	if cfg.Inference.StartTimeout != 120*time.Second {
		t.Fatalf("expected 120s start timeout, got %v", cfg.Inference.StartTimeout)
	}
	if cfg.Inference.PollInterval != 2*time.Second || cfg.Inference.PollAttempts != 60 {
		t.Fatalf("unexpected polling defaults %v x %d", cfg.Inference.PollInterval, cfg.Inference.PollAttempts)
	}
	if len(cfg.OCR.Languages) != 1 || cfg.OCR.Languages[0] != "eng" {
		t.Fatalf("unexpected ocr languages %v", cfg.OCR.Languages)
	}
	if cfg.Redis.Enabled() {
		t.Fatal("expected redis to be disabled without a url")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAppEnv); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAppEnv, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_CrossFieldValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "gcs without bucket", env: map[string]string{EnvStorageBackend: StorageBackendGCS}},
		{name: "minio without credentials", env: map[string]string{EnvStorageBackend: StorageBackendMinIO, EnvMinIOEndpoint: "localhost:9000"}},
		{name: "unknown storage backend", env: map[string]string{EnvStorageBackend: "s3"}},
		{name: "kafka without brokers", env: map[string]string{EnvEventsBackend: EventsBackendKafka}},
		{name: "pubsub without project", env: map[string]string{EnvEventsBackend: EventsBackendPubSub}},
		{name: "zero poll attempts", env: map[string]string{EnvInferencePollAttempts: "0"}},
		{name: "no dsn and no sqlite", env: map[string]string{EnvUseSQLite: "false"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setMinimalEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s to fail validation", tc.name)
			}
		})
	}
}

func TestLoad_KafkaBrokersList(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvEventsBackend, EventsBackendKafka)
	t.Setenv(EnvKafkaBrokers, "kafka-1:9092,kafka-2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if len(cfg.Events.KafkaBrokers) != 2 || cfg.Events.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Events.KafkaBrokers)
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "prod")
	t.Setenv(EnvPort, "8080")
	t.Setenv(EnvUseSQLite, "true")
	t.Setenv(EnvStorageBackend, StorageBackendLocal)
	t.Setenv(EnvEventsBackend, EventsBackendNone)
	t.Setenv(EnvDBDSN, "")
	t.Setenv(EnvRedisURL, "")
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
}
