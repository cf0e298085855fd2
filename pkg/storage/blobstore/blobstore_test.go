package blobstore

import (
	"context"
	"testing"

	"github.com/angelmondragon/constructai-backend/pkg/config"
	"github.com/angelmondragon/constructai-backend/pkg/storage/local"
)

func TestNewLocal(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Backend: "LOCAL", LocalRoot: t.TempDir()}}

	store, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*local.Store); !ok {
		t.Fatalf("expected local store, got %T", store)
	}
}

func TestNewUnknownBackend(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Backend: "azure"}}
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
