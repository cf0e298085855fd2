package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	Storage      StorageConfig
	GCS          GCSConfig
	MinIO        MinIOConfig
	Upload       UploadConfig
	OCR          OCRConfig
	Worker       WorkerConfig
	Inference    InferenceConfig
	Events       EventsConfig
	Sweep        SweepConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CONSTRUCTAI_APP_ENV" required:"true"`
	Port         string `envconfig:"CONSTRUCTAI_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CONSTRUCTAI_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"CONSTRUCTAI_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"CONSTRUCTAI_LOG_WARN_STACK" default:"false"`

	CORSOrigins     []string      `envconfig:"CONSTRUCTAI_CORS_ORIGINS"`
	ShutdownTimeout time.Duration `envconfig:"CONSTRUCTAI_SHUTDOWN_TIMEOUT" default:"30s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CONSTRUCTAI_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN        string `envconfig:"CONSTRUCTAI_DB_DSN"`
	SQLitePath string `envconfig:"CONSTRUCTAI_DB_SQLITE_PATH" default:"constructai.db"`

	MaxOpenConns    int           `envconfig:"CONSTRUCTAI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CONSTRUCTAI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CONSTRUCTAI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CONSTRUCTAI_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional. Leaving both URL and Address empty disables the
// distributed claim, the upload rate limiter and cron locking.
type RedisConfig struct {
	URL          string        `envconfig:"CONSTRUCTAI_REDIS_URL"`
	Address      string        `envconfig:"CONSTRUCTAI_REDIS_ADDR"`
	Password     string        `envconfig:"CONSTRUCTAI_REDIS_PASSWORD"`
	DB           int           `envconfig:"CONSTRUCTAI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CONSTRUCTAI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CONSTRUCTAI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CONSTRUCTAI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CONSTRUCTAI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CONSTRUCTAI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CONSTRUCTAI_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CONSTRUCTAI_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CONSTRUCTAI_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CONSTRUCTAI_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CONSTRUCTAI_GOOGLE_APPLICATION_CREDENTIALS"`
}

type StorageConfig struct {
	Backend       string `envconfig:"CONSTRUCTAI_STORAGE_BACKEND" default:"local"`
	Prefix        string `envconfig:"CONSTRUCTAI_STORAGE_PREFIX" default:"uploads"`
	LocalRoot     string `envconfig:"CONSTRUCTAI_STORAGE_LOCAL_ROOT" default:"./data/blobs"`
	PublicBaseURL string `envconfig:"CONSTRUCTAI_STORAGE_PUBLIC_BASE_URL"`
}

type GCSConfig struct {
	BucketName string `envconfig:"CONSTRUCTAI_GCS_BUCKET_NAME"`
}

type MinIOConfig struct {
	Endpoint  string `envconfig:"CONSTRUCTAI_MINIO_ENDPOINT"`
	AccessKey string `envconfig:"CONSTRUCTAI_MINIO_ACCESS_KEY"`
	SecretKey string `envconfig:"CONSTRUCTAI_MINIO_SECRET_KEY"`
	Bucket    string `envconfig:"CONSTRUCTAI_MINIO_BUCKET" default:"constructai-documents"`
	UseSSL    bool   `envconfig:"CONSTRUCTAI_MINIO_USE_SSL" default:"false"`
}

type UploadConfig struct {
	DocumentMaxMB   int           `envconfig:"CONSTRUCTAI_UPLOAD_DOCUMENT_MAX_MB" default:"500"`
	BlueprintMaxMB  int           `envconfig:"CONSTRUCTAI_UPLOAD_BLUEPRINT_MAX_MB" default:"50"`
	RateLimitWindow time.Duration `envconfig:"CONSTRUCTAI_UPLOAD_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitPerIP  int           `envconfig:"CONSTRUCTAI_UPLOAD_RATE_LIMIT_PER_IP" default:"30"`
}

// DocumentMaxBytes returns the general document ceiling in bytes.
func (u UploadConfig) DocumentMaxBytes() int64 {
	return int64(u.DocumentMaxMB) * 1024 * 1024
}

// BlueprintMaxBytes returns the 3D conversion input ceiling in bytes.
func (u UploadConfig) BlueprintMaxBytes() int64 {
	return int64(u.BlueprintMaxMB) * 1024 * 1024
}

type OCRConfig struct {
	Languages    []string `envconfig:"CONSTRUCTAI_OCR_LANGUAGES" default:"eng"`
	TessdataPath string   `envconfig:"CONSTRUCTAI_OCR_TESSDATA_PATH"`
}

type WorkerConfig struct {
	PoolSize   int           `envconfig:"CONSTRUCTAI_WORKER_POOL_SIZE" default:"4"`
	QueueDepth int           `envconfig:"CONSTRUCTAI_WORKER_QUEUE_DEPTH" default:"64"`
	ClaimTTL   time.Duration `envconfig:"CONSTRUCTAI_WORKER_CLAIM_TTL" default:"30m"`
}

// InferenceConfig points at the remote 3D inference service. An empty BaseURL
// sends every conversion down the simulation path.
type InferenceConfig struct {
	BaseURL       string        `envconfig:"CONSTRUCTAI_INFERENCE_BASE_URL"`
	HealthTimeout time.Duration `envconfig:"CONSTRUCTAI_INFERENCE_HEALTH_TIMEOUT" default:"5s"`
	StartTimeout  time.Duration `envconfig:"CONSTRUCTAI_INFERENCE_START_TIMEOUT" default:"120s"`
	StatusTimeout time.Duration `envconfig:"CONSTRUCTAI_INFERENCE_STATUS_TIMEOUT" default:"10s"`
	PollInterval  time.Duration `envconfig:"CONSTRUCTAI_INFERENCE_POLL_INTERVAL" default:"2s"`
	PollAttempts  int           `envconfig:"CONSTRUCTAI_INFERENCE_POLL_ATTEMPTS" default:"60"`
	// SimulationAssetBase prefixes the placeholder URLs of simulated results.
	SimulationAssetBase string `envconfig:"CONSTRUCTAI_INFERENCE_SIMULATION_ASSET_BASE" default:"/assets/simulated"`
}

type EventsConfig struct {
	Backend      string   `envconfig:"CONSTRUCTAI_EVENTS_BACKEND" default:"none"`
	Topic        string   `envconfig:"CONSTRUCTAI_EVENTS_TOPIC" default:"constructai-document-events"`
	KafkaBrokers []string `envconfig:"CONSTRUCTAI_EVENTS_KAFKA_BROKERS"`
}

type SweepConfig struct {
	Interval         time.Duration `envconfig:"CONSTRUCTAI_SWEEP_INTERVAL" default:"1h"`
	LockTTL          time.Duration `envconfig:"CONSTRUCTAI_SWEEP_LOCK_TTL" default:"10m"`
	OrphanGrace      time.Duration `envconfig:"CONSTRUCTAI_SWEEP_ORPHAN_GRACE" default:"24h"`
	StaleDerivation  time.Duration `envconfig:"CONSTRUCTAI_SWEEP_STALE_DERIVATION" default:"2h"`
	MaxDeletesPerRun int           `envconfig:"CONSTRUCTAI_SWEEP_MAX_DELETES" default:"500"`
}

func (c *Config) validate() error {
	if !c.FeatureFlags.UseSQLite && strings.TrimSpace(c.DB.DSN) == "" {
		return fmt.Errorf("%s is required unless %s is set", EnvDBDSN, EnvUseSQLite)
	}

	switch strings.ToLower(strings.TrimSpace(c.Storage.Backend)) {
	case StorageBackendLocal:
		if strings.TrimSpace(c.Storage.LocalRoot) == "" {
			return fmt.Errorf("%s is required for the local storage backend", EnvStorageLocalRoot)
		}
	case StorageBackendGCS:
		if strings.TrimSpace(c.GCS.BucketName) == "" {
			return fmt.Errorf("%s is required for the gcs storage backend", EnvGCSBucket)
		}
	case StorageBackendMinIO:
		if c.MinIO.Endpoint == "" || c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "" {
			return fmt.Errorf("%s, %s and %s are required for the minio storage backend", EnvMinIOEndpoint, EnvMinIOAccessKey, EnvMinIOSecretKey)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvStorageBackend, c.Storage.Backend)
	}

	switch strings.ToLower(strings.TrimSpace(c.Events.Backend)) {
	case EventsBackendNone:
	case EventsBackendPubSub:
		if strings.TrimSpace(c.GCP.ProjectID) == "" {
			return fmt.Errorf("%s is required for the pubsub events backend", EnvGCPProjectID)
		}
	case EventsBackendKafka:
		if len(c.Events.KafkaBrokers) == 0 {
			return fmt.Errorf("%s is required for the kafka events backend", EnvKafkaBrokers)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvEventsBackend, c.Events.Backend)
	}

	if c.Upload.DocumentMaxMB <= 0 || c.Upload.BlueprintMaxMB <= 0 {
		return fmt.Errorf("upload ceilings must be positive")
	}
	if c.Inference.PollAttempts <= 0 {
		return fmt.Errorf("%s must be positive", EnvInferencePollAttempts)
	}
	if c.Inference.PollInterval <= 0 {
		return fmt.Errorf("%s must be positive", EnvInferencePollInterval)
	}
	if c.Worker.PoolSize <= 0 {
		return fmt.Errorf("%s must be positive", EnvWorkerPoolSize)
	}
	return nil
}
