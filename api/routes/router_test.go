package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/constructai-backend/internal/conversion"
	"github.com/angelmondragon/constructai-backend/internal/documents"
	"github.com/angelmondragon/constructai-backend/pkg/config"
	"github.com/angelmondragon/constructai-backend/pkg/enums"
	"github.com/angelmondragon/constructai-backend/pkg/logger"
	"github.com/angelmondragon/constructai-backend/pkg/storage"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubBlobStore struct {
	stubPinger
}

func (stubBlobStore) Put(context.Context, storage.PutInput) (storage.Object, error) {
	return storage.Object{}, nil
}

func (stubBlobStore) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, storage.ErrNotFound
}

func (stubBlobStore) Delete(context.Context, string) error { return nil }

func (stubBlobStore) Walk(context.Context, string, func(storage.ObjectInfo) error) error {
	return nil
}

func (stubBlobStore) Close() error { return nil }

type stubDocumentsService struct {
	doc documents.DocumentDTO
}

func (s stubDocumentsService) Ingest(context.Context, documents.IngestInput) (*documents.DocumentDTO, error) {
	return &s.doc, nil
}

func (s stubDocumentsService) Get(_ context.Context, id uuid.UUID) (*documents.DocumentDTO, error) {
	doc := s.doc
	doc.ID = id
	return &doc, nil
}

func (s stubDocumentsService) List(context.Context, documents.ListParams) (*documents.ListResult, error) {
	return &documents.ListResult{Items: []documents.DocumentDTO{s.doc}}, nil
}

type stubConverter struct{}

func (stubConverter) Convert(context.Context, conversion.Request) (conversion.Result, error) {
	return conversion.Result{Success: true}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev"},
		Upload: config.UploadConfig{
			DocumentMaxMB:   1,
			BlueprintMaxMB:  1,
			RateLimitWindow: time.Minute,
			RateLimitPerIP:  10,
		},
	}
}

func newTestRouter() http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
	return NewRouter(testConfig(), logg, stubPinger{}, nil, stubBlobStore{}, metrics,
		stubDocumentsService{doc: documents.DocumentDTO{Status: enums.DocumentStatusCompleted}}, stubConverter{})
}

func TestHealthRoutesAreOpen(t *testing.T) {
	router := newTestRouter()
	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestAPIRequiresIdentity(t *testing.T) {
	router := newTestRouter()

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+uuid.NewString(), nil)
	req.Header.Set("X-User-Id", "user-1")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	router := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("X-User-Id", "user-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
