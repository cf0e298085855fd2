package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/constructai-backend/api/controllers"
	"github.com/angelmondragon/constructai-backend/api/middleware"
	"github.com/angelmondragon/constructai-backend/internal/documents"
	"github.com/angelmondragon/constructai-backend/internal/uploads"
	"github.com/angelmondragon/constructai-backend/pkg/config"
	"github.com/angelmondragon/constructai-backend/pkg/db"
	"github.com/angelmondragon/constructai-backend/pkg/logger"
	"github.com/angelmondragon/constructai-backend/pkg/redis"
	"github.com/angelmondragon/constructai-backend/pkg/storage"
	"github.com/angelmondragon/constructai-backend/pkg/storage/local"
)

// blobServer is implemented by backends that serve their own objects.
type blobServer interface {
	Handler() http.Handler
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	blobs storage.Store,
	metricsHandler http.Handler,
	documentsService documents.Service,
	converter controllers.Converter,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	deps := []controllers.Dependency{{Name: "db", Pinger: dbP}, {Name: "blobs", Pinger: blobs}}
	var limiterStore middleware.RateLimiterStore
	if redisClient != nil {
		deps = append(deps, controllers.Dependency{Name: "redis", Pinger: redisClient})
		limiterStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps...))
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}
	if srv, ok := blobs.(blobServer); ok && cfg.Storage.PublicBaseURL == "" {
		r.Mount(local.DefaultMountPath, http.StripPrefix(local.DefaultMountPath, srv.Handler()))
	}

	uploadPolicy := middleware.NewUploadRateLimitPolicy("upload", cfg.Upload.RateLimitWindow, cfg.Upload.RateLimitPerIP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(logg))

		r.Route("/documents", func(r chi.Router) {
			r.With(middleware.UploadRateLimit(uploadPolicy, limiterStore, logg)).
				Post("/", controllers.DocumentUpload(documentsService, cfg.Upload.DocumentMaxBytes(), logg))
			r.Get("/", controllers.DocumentList(documentsService, logg))
			r.Get("/{documentId}", controllers.DocumentDetail(documentsService, logg))
		})

		r.With(middleware.UploadRateLimit(uploadPolicy, limiterStore, logg)).
			Post("/conversions", controllers.ConversionCreate(converter, uploads.BlueprintPolicy(cfg.Upload.BlueprintMaxBytes()), logg))
	})

	return r
}
