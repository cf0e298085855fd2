package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestContentText(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "single Tj",
			content: "BT /F1 12 Tf 72 720 Td (GROUND FLOOR PLAN) Tj ET",
			want:    "GROUND FLOOR PLAN",
		},
		{
			name:    "TJ with kerning gap",
			content: "BT 72 700 Td [(Sheet)-250(A)12(1)] TJ ET",
			want:    "Sheet A1",
		},
		{
			name:    "lines",
			content: "BT 72 720 Td (Line one) Tj 0 -14 Td (Line two) Tj ET",
			want:    "Line one\nLine two",
		},
		{
			name:    "escapes and nesting",
			content: `BT (Beam \(W12x26\) \101 (typ)) Tj ET`,
			want:    "Beam (W12x26) A (typ)",
		},
		{
			name:    "hex string",
			content: "BT <48454C4C4F> Tj ET",
			want:    "HELLO",
		},
		{
			name:    "quote operator",
			content: "BT 14 TL (first) Tj (second) ' ET",
			want:    "first\nsecond",
		},
		{
			name:    "graphics only",
			content: "q 1 0 0 1 0 0 cm 0 0 612 792 re f Q",
			want:    "",
		},
		{
			name:    "dictionary operands are ignored",
			content: "/Span <</MCID 0>> BDC BT (Tagged) Tj ET EMC",
			want:    "Tagged",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ContentText([]byte(tc.content)); got != tc.want {
				t.Fatalf("ContentText() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPageOrderLess(t *testing.T) {
	if !pageOrderLess("doc_Content_page_2.txt", "doc_Content_page_10.txt") {
		t.Fatal("page 2 should sort before page 10")
	}
	if pageOrderLess("doc_Content_page_3.txt", "doc_Content_page_1.txt") {
		t.Fatal("page 3 should sort after page 1")
	}
}

func TestPDFExtractorReadsTextLayer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.pdf")
	if err := os.WriteFile(path, minimalPDF("BT /F1 18 Tf 72 720 Td (STRUCTURAL NOTES) Tj ET"), 0o600); err != nil {
		t.Fatalf("write pdf: %v", err)
	}

	rec, err := NewPDFExtractor(dir).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if rec.Text != "STRUCTURAL NOTES" {
		t.Fatalf("unexpected text %q", rec.Text)
	}
	if rec.Confidence != 100 {
		t.Fatalf("expected full confidence for embedded text, got %f", rec.Confidence)
	}
}

func TestPDFExtractorNoTextLayer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.pdf")
	if err := os.WriteFile(path, minimalPDF("q 0 0 612 792 re f Q"), 0o600); err != nil {
		t.Fatalf("write pdf: %v", err)
	}

	_, err := NewPDFExtractor(dir).Extract(context.Background(), path)
	if !errors.Is(err, ErrNoTextLayer) {
		t.Fatalf("expected ErrNoTextLayer, got %v", err)
	}
}

// minimalPDF assembles a one-page document with a correct xref table.
func minimalPDF(content string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}
