package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/angelmondragon/constructai-backend/internal/documents"
	"github.com/angelmondragon/constructai-backend/pkg/db/models"
	"github.com/angelmondragon/constructai-backend/pkg/enums"
	"github.com/angelmondragon/constructai-backend/pkg/logger"
	"github.com/angelmondragon/constructai-backend/pkg/metrics"
)

type blobOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type statusRecorder interface {
	Transition(ctx context.Context, doc *models.Document, update documents.StatusUpdate) error
}

// WorkerParams wires a Worker.
type WorkerParams struct {
	Blobs    blobOpener
	Recorder statusRecorder
	Engines  EngineFactory
	PDF      TextExtractor
	Metrics  *metrics.PipelineMetrics
	Logger   *logger.Logger
	TempDir  string
}

// Worker derives text for one document at a time. It satisfies documents.Deriver.
type Worker struct {
	blobs    blobOpener
	recorder statusRecorder
	engines  EngineFactory
	pdf      TextExtractor
	metrics  *metrics.PipelineMetrics
	logg     *logger.Logger
	tempDir  string
}

func NewWorker(p WorkerParams) (*Worker, error) {
	if p.Blobs == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if p.Recorder == nil {
		return nil, fmt.Errorf("status recorder required")
	}
	if p.Engines == nil {
		return nil, fmt.Errorf("recognition engine factory required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.PDF == nil {
		p.PDF = NewPDFExtractor(p.TempDir)
	}
	return &Worker{
		blobs:    p.Blobs,
		recorder: p.Recorder,
		engines:  p.Engines,
		pdf:      p.PDF,
		metrics:  p.Metrics,
		logg:     p.Logger,
		tempDir:  p.TempDir,
	}, nil
}

// Derive moves doc to processing, recognises its text and records either the
// result or the failure. A failed derivation is terminal and not retried.
func (w *Worker) Derive(ctx context.Context, doc models.Document) error {
	start := time.Now()
	ctx = w.logg.WithDocumentID(ctx, doc.ID.String())
	ctx = w.logg.WithField(ctx, "derivation_kind", enums.DerivationOCR.String())

	if err := w.recorder.Transition(ctx, &doc, documents.StatusUpdate{To: enums.DocumentStatusProcessing}); err != nil {
		if errors.Is(err, documents.ErrStaleTransition) {
			w.logg.Warn(ctx, "document already left uploaded; skipping ocr")
			w.metrics.ObserveDerivation(enums.DerivationOCR.String(), metrics.OutcomeStale, time.Since(start))
			return nil
		}
		return fmt.Errorf("mark document processing: %w", err)
	}

	rec, err := w.recognize(ctx, doc)
	if err != nil {
		w.fail(ctx, &doc, start, err)
		return fmt.Errorf("%w: %w", ErrDerivation, err)
	}

	text := strings.TrimSpace(rec.Text)
	confidence := ConfidencePercent(rec.Confidence)
	if err := w.recorder.Transition(ctx, &doc, documents.StatusUpdate{
		To:            enums.DocumentStatusCompleted,
		ExtractedText: &text,
		Confidence:    &confidence,
	}); err != nil {
		if errors.Is(err, documents.ErrStaleTransition) {
			w.logg.Warn(ctx, "document left processing before the ocr result was recorded")
			w.metrics.ObserveDerivation(enums.DerivationOCR.String(), metrics.OutcomeStale, time.Since(start))
			return fmt.Errorf("record ocr result: %w", err)
		}
		w.fail(ctx, &doc, start, err)
		return fmt.Errorf("record ocr result: %w", err)
	}

	w.metrics.ObserveDerivation(enums.DerivationOCR.String(), metrics.OutcomeSuccess, time.Since(start))
	ctx = w.logg.WithFields(ctx, map[string]any{"confidence": confidence, "chars": len(text)})
	w.logg.Info(ctx, "ocr derivation completed")
	return nil
}

func (w *Worker) fail(ctx context.Context, doc *models.Document, start time.Time, cause error) {
	w.metrics.ObserveDerivation(enums.DerivationOCR.String(), metrics.OutcomeFailure, time.Since(start))
	w.logg.Error(ctx, "ocr derivation failed", cause)
	if err := w.recorder.Transition(ctx, doc, documents.StatusUpdate{To: enums.DocumentStatusError}); err != nil {
		w.logg.Error(ctx, "mark document error", err)
	}
}

func (w *Worker) recognize(ctx context.Context, doc models.Document) (Recognition, error) {
	isPDF := doc.MimeType == "application/pdf"
	if !isPDF && !strings.HasPrefix(doc.MimeType, "image/") {
		return Recognition{}, fmt.Errorf("%w: %s", ErrUnsupportedType, doc.MimeType)
	}

	path, cleanup, err := w.stage(ctx, doc)
	if err != nil {
		return Recognition{}, err
	}
	defer cleanup()

	if isPDF {
		return w.pdf.Extract(ctx, path)
	}
	return w.recognizeImage(ctx, path)
}

// recognizeImage scopes an engine to this one call.
func (w *Worker) recognizeImage(ctx context.Context, path string) (rec Recognition, err error) {
	engine, err := w.engines()
	if err != nil {
		return Recognition{}, fmt.Errorf("acquire ocr engine: %w", err)
	}
	defer func() {
		if cerr := engine.Close(); cerr != nil {
			w.logg.Warn(ctx, "close ocr engine: "+cerr.Error())
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ocr engine panicked: %v", r)
		}
	}()
	return engine.Recognize(ctx, path)
}

// stage copies the blob to a local file the engines can read by path.
func (w *Worker) stage(ctx context.Context, doc models.Document) (string, func(), error) {
	src, err := w.blobs.Open(ctx, doc.BlobKey)
	if err != nil {
		return "", nil, fmt.Errorf("open blob: %w", err)
	}
	defer src.Close()

	f, err := os.CreateTemp(w.tempDir, "ocr-*"+strings.ToLower(filepath.Ext(doc.Name)))
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("copy blob: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}
