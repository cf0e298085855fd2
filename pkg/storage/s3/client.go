// Package s3 stores document blobs in MinIO or any other S3-compatible service.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/angelmondragon/constructai-backend/pkg/config"
	"github.com/angelmondragon/constructai-backend/pkg/logger"
	blob "github.com/angelmondragon/constructai-backend/pkg/storage"
)

const (
	codeNoSuchKey          = "NoSuchKey"
	codeBucketOwnedByYou   = "BucketAlreadyOwnedByYou"
	codeBucketAlreadyExist = "BucketAlreadyExists"
)

// Client persists document blobs in an S3-compatible bucket.
type Client struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

var _ blob.Store = (*Client)(nil)

func NewClient(ctx context.Context, cfg config.MinIOConfig, storageCfg config.StorageConfig, logg *logger.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("minio endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("minio bucket is required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	client := &Client{
		client:  mc,
		bucket:  cfg.Bucket,
		baseURL: baseURL(storageCfg.PublicBaseURL, cfg),
	}

	if err := client.ensureBucket(ctx); err != nil {
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"endpoint": cfg.Endpoint, "bucket": cfg.Bucket}), "minio client initialized")
	}
	return client, nil
}

func baseURL(configured string, cfg config.MinIOConfig) string {
	if strings.TrimSpace(configured) != "" {
		return strings.TrimRight(configured, "/")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
}

// ensureBucket creates the bucket when missing. Losing a creation race to
// another replica counts as success.
func (c *Client) ensureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("checking minio bucket %q: %w", c.bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		if isBucketAlreadyThere(err) {
			return nil
		}
		return fmt.Errorf("creating minio bucket %q: %w", c.bucket, err)
	}
	return nil
}

func isBucketAlreadyThere(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == codeBucketOwnedByYou || code == codeBucketAlreadyExist
}

func (c *Client) Put(ctx context.Context, in blob.PutInput) (blob.Object, error) {
	if in.Key == "" {
		return blob.Object{}, errors.New("blob key is required")
	}
	info, err := c.client.PutObject(ctx, c.bucket, in.Key, in.Body, in.Size, minio.PutObjectOptions{ContentType: in.ContentType})
	if err != nil {
		return blob.Object{}, fmt.Errorf("writing minio object %q: %w", in.Key, err)
	}
	return blob.Object{Key: in.Key, URL: blob.PublicURL(c.baseURL, in.Key), Size: info.Size}, nil
}

func (c *Client) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("opening minio object %q: %w", key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller starts reading.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == codeNoSuchKey {
			return nil, fmt.Errorf("minio object %q: %w", key, blob.ErrNotFound)
		}
		return nil, fmt.Errorf("stat minio object %q: %w", key, err)
	}
	return obj, nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == codeNoSuchKey {
			return nil
		}
		return fmt.Errorf("deleting minio object %q: %w", key, err)
	}
	return nil
}

func (c *Client) Walk(ctx context.Context, prefix string, fn func(blob.ObjectInfo) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return fmt.Errorf("listing minio prefix %q: %w", prefix, obj.Err)
		}
		if err := fn(blob.ObjectInfo{Key: obj.Key, Size: obj.Size, CreatedAt: obj.LastModified}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("minio client not initialized")
	}
	if _, err := c.client.BucketExists(ctx, c.bucket); err != nil {
		return fmt.Errorf("minio bucket check failed: %w", err)
	}
	return nil
}

// Close is a no-op; the minio client holds no long-lived resources.
func (c *Client) Close() error {
	return nil
}
