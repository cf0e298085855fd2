package gcs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/constructai-backend/pkg/config"
)

func TestBaseURL(t *testing.T) {
	t.Parallel()

	if got := baseURL("", "docs-bucket"); got != "https://storage.googleapis.com/docs-bucket" {
		t.Fatalf("unexpected default base url %q", got)
	}
	if got := baseURL("https://cdn.example.com/", "docs-bucket"); got != "https://cdn.example.com" {
		t.Fatalf("unexpected configured base url %q", got)
	}
}

func TestClientOptions(t *testing.T) {
	t.Parallel()

	if opts := clientOptions(config.GCPConfig{}); len(opts) != 0 {
		t.Fatalf("expected default credentials, got %d options", len(opts))
	}
	if opts := clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`}); len(opts) != 1 {
		t.Fatalf("expected json credentials option, got %d", len(opts))
	}
	if opts := clientOptions(config.GCPConfig{ApplicationCredentials: "/secrets/sa.json"}); len(opts) != 1 {
		t.Fatalf("expected file credentials option, got %d", len(opts))
	}
}

func TestIsPreconditionFailed(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("close: %w", &googleapi.Error{Code: http.StatusPreconditionFailed})
	if !isPreconditionFailed(wrapped) {
		t.Fatal("expected 412 to be detected through wrapping")
	}
	if isPreconditionFailed(&googleapi.Error{Code: http.StatusForbidden}) {
		t.Fatal("403 is not a precondition failure")
	}
	if isPreconditionFailed(errors.New("boom")) {
		t.Fatal("plain errors are not precondition failures")
	}
}

func TestNilClientPingAndClose(t *testing.T) {
	t.Parallel()

	var c *Client
	if err := c.Ping(t.Context()); err == nil {
		t.Fatal("expected ping error on nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client should be a no-op, got %v", err)
	}
}
