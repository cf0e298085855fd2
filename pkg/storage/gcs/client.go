package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/angelmondragon/constructai-backend/pkg/config"
	"github.com/angelmondragon/constructai-backend/pkg/logger"
	blob "github.com/angelmondragon/constructai-backend/pkg/storage"
)

const (
	pingTimeout   = 5 * time.Second
	publicBaseURL = "https://storage.googleapis.com"
)

// Client persists document blobs in a single GCS bucket.
type Client struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

var _ blob.Store = (*Client)(nil)

func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, storageCfg config.StorageConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	gcsClient, err := storage.NewClient(ctx, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}

	client := &Client{
		client:  gcsClient,
		bucket:  cfg.BucketName,
		baseURL: baseURL(storageCfg.PublicBaseURL, cfg.BucketName),
	}

	if err := client.Ping(ctx); err != nil {
		_ = gcsClient.Close()
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs client initialized")
	}

	return client, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case gcp.CredentialsJSON != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case gcp.ApplicationCredentials != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	default:
		return nil
	}
}

func baseURL(configured, bucket string) string {
	if strings.TrimSpace(configured) != "" {
		return strings.TrimRight(configured, "/")
	}
	return fmt.Sprintf("%s/%s", publicBaseURL, bucket)
}

// Put writes the object only if the key is unused; a lost precondition maps to ErrAlreadyExists.
func (c *Client) Put(ctx context.Context, in blob.PutInput) (blob.Object, error) {
	if in.Key == "" {
		return blob.Object{}, errors.New("blob key is required")
	}

	writer := c.client.Bucket(c.bucket).Object(in.Key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = in.ContentType

	written, err := io.Copy(writer, in.Body)
	if err != nil {
		_ = writer.Close()
		return blob.Object{}, fmt.Errorf("writing gcs object %q: %w", in.Key, err)
	}
	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			return blob.Object{}, fmt.Errorf("gcs object %q: %w", in.Key, blob.ErrAlreadyExists)
		}
		return blob.Object{}, fmt.Errorf("closing gcs writer for %q: %w", in.Key, err)
	}

	return blob.Object{Key: in.Key, URL: blob.PublicURL(c.baseURL, in.Key), Size: written}, nil
}

func (c *Client) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := c.client.Bucket(c.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("gcs object %q: %w", key, blob.ErrNotFound)
		}
		return nil, fmt.Errorf("opening gcs object %q: %w", key, err)
	}
	return reader, nil
}

// Delete removes the object. A missing object is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	err := c.client.Bucket(c.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("deleting gcs object %q: %w", key, err)
	}
	return nil
}

func (c *Client) Walk(ctx context.Context, prefix string, fn func(blob.ObjectInfo) error) error {
	it := c.client.Bucket(c.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("listing gcs prefix %q: %w", prefix, err)
		}
		if err := fn(blob.ObjectInfo{Key: attrs.Name, Size: attrs.Size, CreatedAt: attrs.Created}); err != nil {
			return err
		}
	}
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("gcs client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.client.Bucket(c.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("gcs bucket check failed: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
