package config

const EnvPrefix = "CONSTRUCTAI"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StorageBackendLocal = "local"
	StorageBackendGCS   = "gcs"
	StorageBackendMinIO = "minio"
)

const (
	EventsBackendNone   = "none"
	EventsBackendPubSub = "pubsub"
	EventsBackendKafka  = "kafka"
)

const (
	EnvAppEnv    = "CONSTRUCTAI_APP_ENV"
	EnvPort      = "CONSTRUCTAI_APP_PORT"
	EnvLogLevel  = "CONSTRUCTAI_LOG_LEVEL"
	EnvLogFormat = "CONSTRUCTAI_LOG_FORMAT"

	EnvDBDSN     = "CONSTRUCTAI_DB_DSN"
	EnvUseSQLite = "CONSTRUCTAI_USE_SQLITE"

	EnvRedisURL = "CONSTRUCTAI_REDIS_URL"

	EnvGCPProjectID = "CONSTRUCTAI_GCP_PROJECT_ID"

	EnvStorageBackend   = "CONSTRUCTAI_STORAGE_BACKEND"
	EnvStorageLocalRoot = "CONSTRUCTAI_STORAGE_LOCAL_ROOT"
	EnvGCSBucket        = "CONSTRUCTAI_GCS_BUCKET_NAME"
	EnvMinIOEndpoint    = "CONSTRUCTAI_MINIO_ENDPOINT"
	EnvMinIOAccessKey   = "CONSTRUCTAI_MINIO_ACCESS_KEY"
	EnvMinIOSecretKey   = "CONSTRUCTAI_MINIO_SECRET_KEY"

	EnvUploadDocumentMaxMB  = "CONSTRUCTAI_UPLOAD_DOCUMENT_MAX_MB"
	EnvUploadBlueprintMaxMB = "CONSTRUCTAI_UPLOAD_BLUEPRINT_MAX_MB"

	EnvOCRLanguages = "CONSTRUCTAI_OCR_LANGUAGES"

	EnvWorkerPoolSize = "CONSTRUCTAI_WORKER_POOL_SIZE"

	EnvInferenceBaseURL       = "CONSTRUCTAI_INFERENCE_BASE_URL"
	EnvInferencePollInterval  = "CONSTRUCTAI_INFERENCE_POLL_INTERVAL"
	EnvInferencePollAttempts  = "CONSTRUCTAI_INFERENCE_POLL_ATTEMPTS"
	EnvInferenceHealthTimeout = "CONSTRUCTAI_INFERENCE_HEALTH_TIMEOUT"

	EnvEventsBackend = "CONSTRUCTAI_EVENTS_BACKEND"
	EnvKafkaBrokers  = "CONSTRUCTAI_EVENTS_KAFKA_BROKERS"
)
