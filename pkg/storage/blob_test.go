package storage

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestDocumentKeyRoundTrip(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	key := DocumentKey("uploads", id, "Floor Plan (rev 2).pdf")

	if !strings.HasPrefix(key, "uploads/documents/"+id.String()+"/") {
		t.Fatalf("unexpected key %q", key)
	}
	if strings.Contains(key, " ") {
		t.Fatalf("key must not contain spaces: %q", key)
	}

	parsed, ok := ParseDocumentKey("uploads", key)
	if !ok || parsed != id {
		t.Fatalf("expected to parse %s back, got %s ok=%v", id, parsed, ok)
	}
}

func TestDocumentKeyDistinctForSameName(t *testing.T) {
	t.Parallel()

	a := DocumentKey("", uuid.New(), "plan.dwg")
	b := DocumentKey("", uuid.New(), "plan.dwg")
	if a == b {
		t.Fatalf("expected distinct keys for repeated uploads, got %q", a)
	}
	if !strings.HasPrefix(a, "documents/") {
		t.Fatalf("empty prefix should be dropped, got %q", a)
	}
}

func TestParseDocumentKeyRejectsForeignKeys(t *testing.T) {
	t.Parallel()

	cases := []string{
		"uploads/other/" + uuid.NewString() + "/a.pdf",
		"uploads/documents/not-a-uuid/a.pdf",
		"uploads/documents/" + uuid.NewString(),
		"elsewhere/documents/" + uuid.NewString() + "/a.pdf",
	}
	for _, key := range cases {
		if _, ok := ParseDocumentKey("uploads", key); ok {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                      "",
		"../../etc/passwd":      "passwd",
		"site plan.dxf":         "site-plan.dxf",
		"  .hidden  ":           "hidden",
		"dir\\evil\x00name.png": "direvilname.png",
	}
	for in, want := range cases {
		if got := SanitizeFileName(in); got != want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPublicURL(t *testing.T) {
	t.Parallel()

	got := PublicURL("https://cdn.example.com/", "uploads/documents/id/a b.pdf")
	if got != "https://cdn.example.com/uploads/documents/id/a%20b.pdf" {
		t.Fatalf("unexpected url %q", got)
	}
}
