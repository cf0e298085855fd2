// Package blobstore selects the configured blob storage backend.
package blobstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/constructai-backend/pkg/config"
	"github.com/angelmondragon/constructai-backend/pkg/logger"
	"github.com/angelmondragon/constructai-backend/pkg/storage"
	"github.com/angelmondragon/constructai-backend/pkg/storage/gcs"
	"github.com/angelmondragon/constructai-backend/pkg/storage/local"
	"github.com/angelmondragon/constructai-backend/pkg/storage/s3"
)

func New(ctx context.Context, cfg *config.Config, logg *logger.Logger) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case config.StorageBackendLocal:
		var s *local.Store
		s, err = local.New(ctx, cfg.Storage.LocalRoot, cfg.Storage.PublicBaseURL, logg)
		store = s
	case config.StorageBackendGCS:
		var c *gcs.Client
		c, err = gcs.NewClient(ctx, cfg.GCS, cfg.GCP, cfg.Storage, logg)
		store = c
	case config.StorageBackendMinIO:
		var c *s3.Client
		c, err = s3.NewClient(ctx, cfg.MinIO, cfg.Storage, logg)
		store = c
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
