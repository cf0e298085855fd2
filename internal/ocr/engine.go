// Package ocr extracts text from stored documents in the background and
// records the result on the document.
package ocr

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrDerivation wraps every failure recorded as a document error.
	ErrDerivation = errors.New("ocr derivation failed")
	// ErrNoTextLayer is returned for PDFs that carry no extractable text.
	ErrNoTextLayer = errors.New("pdf has no text layer")
	// ErrUnsupportedType is returned for inputs that are neither images nor PDFs.
	ErrUnsupportedType = errors.New("content type not eligible for ocr")
)

// Recognition is raw engine output. Confidence is on a 0-100 scale.
type Recognition struct {
	Text       string
	Confidence float64
}

// Engine recognises text in an image file. An engine serves one document and
// is closed afterwards.
type Engine interface {
	Recognize(ctx context.Context, path string) (Recognition, error)
	Close() error
}

// EngineFactory acquires a fresh engine.
type EngineFactory func() (Engine, error)

// TextExtractor pulls the embedded text out of a PDF file.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (Recognition, error)
}

// ConfidencePercent rounds a raw score to the nearest whole percentage in [0, 100].
func ConfidencePercent(raw float64) int {
	if math.IsNaN(raw) || raw <= 0 {
		return 0
	}
	if raw >= 100 {
		return 100
	}
	return int(math.Round(raw))
}
