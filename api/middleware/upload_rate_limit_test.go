package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/constructai-backend/pkg/errors"
)

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func uploadRequest(remote string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", nil)
	req.RemoteAddr = remote
	return req
}

func TestUploadRateLimit_IPLimitTriggers(t *testing.T) {
	store := newFakeRateStore()
	handler := UploadRateLimit(NewUploadRateLimitPolicy("documents", time.Minute, 2), store, nil)(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, uploadRequest("1.2.3.4:5678"))

		if i < 2 {
			if rec.Code != http.StatusOK {
				t.Fatalf("expected success before limit, got %d", rec.Code)
			}
			continue
		}
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") != "60" {
			t.Fatalf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
		}
		var payload struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if payload.Error.Code != string(pkgerrors.CodeRateLimit) {
			t.Fatalf("unexpected code: %s", payload.Error.Code)
		}
	}

	if store.counts["rl:ip:documents:1.2.3.4"] != 3 {
		t.Fatalf("unexpected counter keys: %v", store.counts)
	}
}

func TestUploadRateLimit_SeparateClients(t *testing.T) {
	handler := UploadRateLimit(NewUploadRateLimitPolicy("documents", time.Minute, 1), newFakeRateStore(), nil)(okHandler())

	for _, remote := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, uploadRequest(remote))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", remote, rec.Code)
		}
	}
}

func TestUploadRateLimit_ForwardedForWins(t *testing.T) {
	store := newFakeRateStore()
	handler := UploadRateLimit(NewUploadRateLimitPolicy("conversions", time.Minute, 5), store, nil)(okHandler())

	req := uploadRequest("10.0.0.1:1")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if _, ok := store.counts["rl:ip:conversions:203.0.113.7"]; !ok {
		t.Fatalf("expected forwarded client ip to be used, got %v", store.counts)
	}
}

func TestUploadRateLimit_StoreFailureFailsOpen(t *testing.T) {
	store := newFakeRateStore()
	store.err = errors.New("redis: connection refused")
	handler := UploadRateLimit(NewUploadRateLimitPolicy("documents", time.Minute, 1), store, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, uploadRequest("1.2.3.4:5678"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected request to pass when the store fails, got %d", rec.Code)
	}
}

func TestUploadRateLimit_DisabledWithoutStore(t *testing.T) {
	handler := UploadRateLimit(NewUploadRateLimitPolicy("documents", time.Minute, 1), nil, nil)(okHandler())
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, uploadRequest("1.2.3.4:5678"))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected limiter to be disabled, got %d", rec.Code)
		}
	}
}
