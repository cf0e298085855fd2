package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a key has no stored object.
	ErrNotFound = errors.New("blob not found")
	// ErrAlreadyExists is returned when a put would overwrite an existing object.
	ErrAlreadyExists = errors.New("blob already exists")
)

const documentsSegment = "documents"

// PutInput describes a blob write. Size may be -1 when unknown.
type PutInput struct {
	Key         string
	ContentType string
	Body        io.Reader
	Size        int64
}

// Object is a persisted blob and the URL it can be retrieved from.
type Object struct {
	Key  string
	URL  string
	Size int64
}

// ObjectInfo is returned while walking a prefix.
type ObjectInfo struct {
	Key       string
	Size      int64
	CreatedAt time.Time
}

// Store durably persists uploaded bytes. Implementations must create their
// container lazily and treat an already existing container as success.
type Store interface {
	Put(ctx context.Context, in PutInput) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Walk(ctx context.Context, prefix string, fn func(ObjectInfo) error) error
	Ping(ctx context.Context) error
	Close() error
}

// DocumentKey builds the blob key for a document upload. The fresh id keeps
// identically named uploads apart.
func DocumentKey(prefix string, id uuid.UUID, fileName string) string {
	cleanName := SanitizeFileName(fileName)
	if cleanName == "" {
		cleanName = id.String()
	}
	return joinKey(prefix, documentsSegment, id.String(), cleanName)
}

// DocumentPrefix returns the key prefix every document blob lives under.
func DocumentPrefix(prefix string) string {
	return joinKey(prefix, documentsSegment) + "/"
}

// ParseDocumentKey extracts the document id from a key built by DocumentKey.
func ParseDocumentKey(prefix, key string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(key, DocumentPrefix(prefix))
	if !ok {
		return uuid.Nil, false
	}
	idPart, _, found := strings.Cut(rest, "/")
	if !found {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// SanitizeFileName strips path components and control characters from a client file name.
func SanitizeFileName(name string) string {
	if name == "" {
		return ""
	}
	clean := path.Base(strings.TrimSpace(name))
	if clean == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case r == '/' || r == '\\' || unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-_.")
}

// PublicURL joins a base URL and an object key, escaping each key segment.
func PublicURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), strings.Join(segments, "/"))
}

func joinKey(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p != "" {
			clean = append(clean, p)
		}
	}
	return strings.Join(clean, "/")
}
