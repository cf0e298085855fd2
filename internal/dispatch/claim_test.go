package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeKV struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	setErr error
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return false, f.setErr
	}
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func claimKey(kind, id string) string { return "cai:claim:" + kind + ":" + id }

func TestRedisClaimerExclusive(t *testing.T) {
	kv := newFakeKV()
	claimer, err := NewRedisClaimer(kv, claimKey, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisClaimer returned error: %v", err)
	}
	ctx := context.Background()

	release, err := claimer.Claim(ctx, "ocr", "doc-1")
	if err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if kv.ttls[claimKey("ocr", "doc-1")] != time.Minute {
		t.Fatalf("expected claim ttl to be applied")
	}
	if _, err := claimer.Claim(ctx, "ocr", "doc-1"); !errors.Is(err, ErrClaimed) {
		t.Fatalf("expected ErrClaimed, got %v", err)
	}
	if _, err := claimer.Claim(ctx, "ocr", "doc-2"); err != nil {
		t.Fatalf("claim on another document failed: %v", err)
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := release(ctx); err != nil {
		t.Fatalf("second release should be harmless: %v", err)
	}
	if _, err := claimer.Claim(ctx, "ocr", "doc-1"); err != nil {
		t.Fatalf("claim after release failed: %v", err)
	}
}

func TestRedisClaimerReleaseKeepsForeignOwner(t *testing.T) {
	kv := newFakeKV()
	claimer, _ := NewRedisClaimer(kv, claimKey, time.Minute)
	ctx := context.Background()

	release, err := claimer.Claim(ctx, "ocr", "doc-1")
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	// Simulate TTL expiry followed by another replica taking the claim.
	kv.values[claimKey("ocr", "doc-1")] = "someone-else"

	if err := release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if kv.values[claimKey("ocr", "doc-1")] != "someone-else" {
		t.Fatal("release must not delete a claim owned by another worker")
	}
}

func TestRedisClaimerSurfacesStoreErrors(t *testing.T) {
	kv := newFakeKV()
	kv.setErr = errors.New("connection refused")
	claimer, _ := NewRedisClaimer(kv, claimKey, 0)

	if _, err := claimer.Claim(context.Background(), "ocr", "doc-1"); err == nil || errors.Is(err, ErrClaimed) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if claimer.ttl != defaultClaimTTL {
		t.Fatalf("expected default ttl, got %v", claimer.ttl)
	}
}

func TestNewRedisClaimerValidates(t *testing.T) {
	if _, err := NewRedisClaimer(nil, claimKey, time.Minute); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewRedisClaimer(newFakeKV(), nil, time.Minute); err == nil {
		t.Fatal("expected error for nil key builder")
	}
}

func TestLocalClaimer(t *testing.T) {
	claimer := NewLocalClaimer()
	ctx := context.Background()

	release, err := claimer.Claim(ctx, "ocr", "doc-1")
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := claimer.Claim(ctx, "ocr", "doc-1"); !errors.Is(err, ErrClaimed) {
		t.Fatalf("expected ErrClaimed, got %v", err)
	}
	if _, err := claimer.Claim(ctx, "model3d", "doc-1"); err != nil {
		t.Fatalf("claims are scoped per kind: %v", err)
	}
	_ = release(ctx)
	if _, err := claimer.Claim(ctx, "ocr", "doc-1"); err != nil {
		t.Fatalf("claim after release failed: %v", err)
	}
}
