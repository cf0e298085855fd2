// Package local keeps document blobs on the local filesystem. It backs
// single-node deployments and development runs.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/angelmondragon/constructai-backend/pkg/logger"
	blob "github.com/angelmondragon/constructai-backend/pkg/storage"
)

// DefaultMountPath is where the API serves local blobs when no public base URL is configured.
const DefaultMountPath = "/blobs"

type Store struct {
	root    string
	baseURL string
}

var _ blob.Store = (*Store)(nil)

// New prepares root for writing. An existing directory is reused as is.
func New(ctx context.Context, root, publicBaseURL string, logg *logger.Logger) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("local storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving storage root %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root %q: %w", abs, err)
	}

	base := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
	if base == "" {
		base = DefaultMountPath
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "root", abs), "local blob store initialized")
	}
	return &Store{root: abs, baseURL: base}, nil
}

func (s *Store) Root() string {
	return s.root
}

// Put writes to a temp file next to the destination and renames it into
// place, so readers never observe a partial blob.
func (s *Store) Put(ctx context.Context, in blob.PutInput) (blob.Object, error) {
	dest, err := s.resolve(in.Key)
	if err != nil {
		return blob.Object{}, err
	}
	if _, err := os.Stat(dest); err == nil {
		return blob.Object{}, fmt.Errorf("local blob %q: %w", in.Key, blob.ErrAlreadyExists)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return blob.Object{}, fmt.Errorf("creating blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return blob.Object{}, fmt.Errorf("creating temp blob: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	written, err := io.Copy(tmp, contextReader{ctx: ctx, r: in.Body})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return blob.Object{}, fmt.Errorf("writing local blob %q: %w", in.Key, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		cleanup()
		return blob.Object{}, fmt.Errorf("finalizing local blob %q: %w", in.Key, err)
	}

	return blob.Object{Key: in.Key, URL: blob.PublicURL(s.baseURL, in.Key), Size: written}, nil
}

func (s *Store) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("local blob %q: %w", key, blob.ErrNotFound)
		}
		return nil, fmt.Errorf("opening local blob %q: %w", key, err)
	}
	return f, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting local blob %q: %w", key, err)
	}
	// best effort: drop the per-document directory once empty
	_ = os.Remove(filepath.Dir(path))
	return nil
}

func (s *Store) Walk(ctx context.Context, prefix string, fn func(blob.ObjectInfo) error) error {
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return fn(blob.ObjectInfo{Key: key, Size: info.Size(), CreatedAt: info.ModTime()})
	})
	if err != nil {
		return fmt.Errorf("walking local blobs: %w", err)
	}
	return nil
}

func (s *Store) Ping(context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("local storage root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("local storage root %q is not a directory", s.root)
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Handler serves stored blobs read-only.
func (s *Store) Handler() http.Handler {
	return http.FileServer(http.Dir(s.root))
}

func (s *Store) resolve(key string) (string, error) {
	if key == "" {
		return "", errors.New("blob key is required")
	}
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if path != s.root && !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("blob key %q escapes storage root", key)
	}
	return path, nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
