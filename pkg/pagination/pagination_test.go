package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{-1: DefaultLimit, 0: DefaultLimit, 1: 1, 40: 40, MaxLimit: MaxLimit, MaxLimit + 1: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
	if got := LimitWithBuffer(10); got != 11 {
		t.Fatalf("LimitWithBuffer(10) = %d, want 11", got)
	}
}

func TestCursorRoundTripIsURLSafe(t *testing.T) {
	c := Cursor{
		CreatedAt: time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.FixedZone("CET", 3600)),
		ID:        uuid.MustParse("ffffffff-ffff-4fff-bfff-fffffffffff0"),
	}
	token := EncodeCursor(c)
	if strings.ContainsAny(token, "+/=") {
		t.Fatalf("cursor %q is not query-string safe", token)
	}

	got, err := ParseCursor(token)
	if err != nil {
		t.Fatalf("ParseCursor returned error: %v", err)
	}
	if !got.CreatedAt.Equal(c.CreatedAt) || got.ID != c.ID {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, c)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	if c, err := ParseCursor("  "); c != nil || err != nil {
		t.Fatalf("empty cursor should be nil, got %v, %v", c, err)
	}
	for _, token := range []string{
		"not a cursor!",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte("yesterday|" + uuid.NewString())),
		base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano) + "|doc-7")),
	} {
		if _, err := ParseCursor(token); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("ParseCursor(%q) = %v, want ErrInvalidCursor", token, err)
		}
	}
}

func TestSplit(t *testing.T) {
	rows := []int{1, 2, 3}

	page, last := Split(rows, 5)
	if len(page) != 3 || last != nil {
		t.Fatalf("short page: got %v, last %v", page, last)
	}

	page, last = Split(rows, 2)
	if len(page) != 2 || last == nil || *last != 2 {
		t.Fatalf("full page: got %v, last %v", page, last)
	}
}
