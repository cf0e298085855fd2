package ocr

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/angelmondragon/constructai-backend/internal/documents"
	"github.com/angelmondragon/constructai-backend/pkg/db/models"
	"github.com/angelmondragon/constructai-backend/pkg/enums"
	"github.com/angelmondragon/constructai-backend/pkg/logger"
	"github.com/angelmondragon/constructai-backend/pkg/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBlobs struct {
	data map[string][]byte
}

func (s stubBlobs) Open(_ context.Context, key string) (io.ReadCloser, error) {
	b, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

type recordedUpdate struct {
	to         enums.DocumentStatus
	text       *string
	confidence *int
}

type stubRecorder struct {
	updates   []recordedUpdate
	staleOnto enums.DocumentStatus
	failOnto  enums.DocumentStatus
	failErr   error
}

func (s *stubRecorder) Transition(_ context.Context, doc *models.Document, update documents.StatusUpdate) error {
	if update.To == s.staleOnto {
		return documents.ErrStaleTransition
	}
	if update.To == s.failOnto && s.failErr != nil {
		return s.failErr
	}
	if !doc.Status.CanTransitionTo(update.To) {
		return documents.ErrStaleTransition
	}
	s.updates = append(s.updates, recordedUpdate{to: update.To, text: update.ExtractedText, confidence: update.Confidence})
	doc.Status = update.To
	return nil
}

func (s *stubRecorder) statuses() []enums.DocumentStatus {
	out := make([]enums.DocumentStatus, len(s.updates))
	for i, u := range s.updates {
		out[i] = u.to
	}
	return out
}

type stubEngine struct {
	rec      Recognition
	err      error
	panicMsg string
	closed   int
	sawPath  string
}

func (e *stubEngine) Recognize(_ context.Context, path string) (Recognition, error) {
	e.sawPath = path
	if e.panicMsg != "" {
		panic(e.panicMsg)
	}
	return e.rec, e.err
}

func (e *stubEngine) Close() error {
	e.closed++
	return nil
}

type stubPDF struct {
	rec   Recognition
	err   error
	calls int
}

func (p *stubPDF) Extract(context.Context, string) (Recognition, error) {
	p.calls++
	return p.rec, p.err
}

type workerHarness struct {
	worker   *Worker
	recorder *stubRecorder
	engine   *stubEngine
	acquired int
	pdf      *stubPDF
	doc      models.Document
}

func newWorkerHarness(t *testing.T, mimeType, name string) *workerHarness {
	t.Helper()
	doc := models.Document{
		ID:       uuid.New(),
		Name:     name,
		MimeType: mimeType,
		Status:   enums.DocumentStatusUploaded,
		BlobKey:  "uploads/documents/x/" + name,
	}
	h := &workerHarness{
		recorder: &stubRecorder{},
		engine:   &stubEngine{},
		pdf:      &stubPDF{},
		doc:      doc,
	}
	w, err := NewWorker(WorkerParams{
		Blobs:    stubBlobs{data: map[string][]byte{doc.BlobKey: []byte("image-bytes")}},
		Recorder: h.recorder,
		Engines: func() (Engine, error) {
			h.acquired++
			return h.engine, nil
		},
		PDF:     h.pdf,
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		TempDir: t.TempDir(),
	})
	require.NoError(t, err)
	h.worker = w
	return h
}

func TestDeriveImageCompletes(t *testing.T) {
	h := newWorkerHarness(t, "image/png", "floor.png")
	h.engine.rec = Recognition{Text: "  KITCHEN 12'x14'\n", Confidence: 87.6}

	require.NoError(t, h.worker.Derive(context.Background(), h.doc))

	assert.Equal(t, []enums.DocumentStatus{enums.DocumentStatusProcessing, enums.DocumentStatusCompleted}, h.recorder.statuses())
	final := h.recorder.updates[1]
	require.NotNil(t, final.text)
	assert.Equal(t, "KITCHEN 12'x14'", *final.text)
	require.NotNil(t, final.confidence)
	assert.Equal(t, 88, *final.confidence)
	assert.Equal(t, 1, h.acquired)
	assert.Equal(t, 1, h.engine.closed)

	_, statErr := os.Stat(h.engine.sawPath)
	assert.True(t, os.IsNotExist(statErr), "staged file should be removed")
}

func TestDeriveEngineFailureMarksError(t *testing.T) {
	h := newWorkerHarness(t, "image/jpeg", "photo.jpg")
	h.engine.err = errors.New("leptonica could not read image")

	err := h.worker.Derive(context.Background(), h.doc)
	require.ErrorIs(t, err, ErrDerivation)

	assert.Equal(t, []enums.DocumentStatus{enums.DocumentStatusProcessing, enums.DocumentStatusError}, h.recorder.statuses())
	assert.Nil(t, h.recorder.updates[1].text, "failed derivations must not write text")
	assert.Nil(t, h.recorder.updates[1].confidence)
	assert.Equal(t, 1, h.engine.closed)
}

func TestDeriveEnginePanicStillReleasesEngine(t *testing.T) {
	h := newWorkerHarness(t, "image/jpeg", "photo.jpg")
	h.engine.panicMsg = "segfault in tesseract"

	err := h.worker.Derive(context.Background(), h.doc)
	require.ErrorIs(t, err, ErrDerivation)
	assert.Equal(t, 1, h.engine.closed)
	assert.Equal(t, enums.DocumentStatusError, h.recorder.updates[len(h.recorder.updates)-1].to)
}

func TestDeriveSkipsWhenAlreadyClaimed(t *testing.T) {
	h := newWorkerHarness(t, "image/png", "floor.png")
	h.recorder.staleOnto = enums.DocumentStatusProcessing

	require.NoError(t, h.worker.Derive(context.Background(), h.doc))
	assert.Empty(t, h.recorder.updates)
	assert.Equal(t, 0, h.acquired)
}

func TestDeriveStoreFailureOnResultMarksError(t *testing.T) {
	h := newWorkerHarness(t, "image/png", "floor.png")
	h.engine.rec = Recognition{Text: "GARAGE", Confidence: 91}
	h.recorder.failOnto = enums.DocumentStatusCompleted
	h.recorder.failErr = errors.New("connection reset by peer")

	err := h.worker.Derive(context.Background(), h.doc)
	require.ErrorContains(t, err, "connection reset by peer")
	assert.Equal(t, []enums.DocumentStatus{enums.DocumentStatusProcessing, enums.DocumentStatusError}, h.recorder.statuses())
	assert.Nil(t, h.recorder.updates[1].text)
}

func TestDeriveStaleResultDoesNotMarkError(t *testing.T) {
	h := newWorkerHarness(t, "image/png", "floor.png")
	h.engine.rec = Recognition{Text: "GARAGE", Confidence: 91}
	h.recorder.staleOnto = enums.DocumentStatusCompleted

	err := h.worker.Derive(context.Background(), h.doc)
	require.ErrorIs(t, err, documents.ErrStaleTransition)
	assert.Equal(t, []enums.DocumentStatus{enums.DocumentStatusProcessing}, h.recorder.statuses())
}

func TestDerivePDFUsesTextLayer(t *testing.T) {
	h := newWorkerHarness(t, "application/pdf", "site-survey.pdf")
	h.pdf.rec = Recognition{Text: "DIVISION 03 CONCRETE", Confidence: 100}

	require.NoError(t, h.worker.Derive(context.Background(), h.doc))
	assert.Equal(t, 1, h.pdf.calls)
	assert.Equal(t, 0, h.acquired)
	final := h.recorder.updates[1]
	assert.Equal(t, enums.DocumentStatusCompleted, final.to)
	assert.Equal(t, 100, *final.confidence)
}

func TestDerivePDFWithoutTextLayerFails(t *testing.T) {
	h := newWorkerHarness(t, "application/pdf", "scan.pdf")
	h.pdf.err = ErrNoTextLayer

	err := h.worker.Derive(context.Background(), h.doc)
	require.ErrorIs(t, err, ErrNoTextLayer)
	assert.Equal(t, enums.DocumentStatusError, h.recorder.updates[1].to)
}

func TestDeriveRejectsIneligibleTypes(t *testing.T) {
	h := newWorkerHarness(t, "application/dwg", "plan.dwg")

	err := h.worker.Derive(context.Background(), h.doc)
	require.ErrorIs(t, err, ErrUnsupportedType)
	assert.Equal(t, []enums.DocumentStatus{enums.DocumentStatusProcessing, enums.DocumentStatusError}, h.recorder.statuses())
}

func TestDeriveMissingBlobMarksError(t *testing.T) {
	h := newWorkerHarness(t, "image/png", "floor.png")
	h.doc.BlobKey = "uploads/documents/missing/floor.png"

	err := h.worker.Derive(context.Background(), h.doc)
	require.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, enums.DocumentStatusError, h.recorder.updates[1].to)
	assert.Equal(t, 0, h.acquired)
}

func TestConfidencePercent(t *testing.T) {
	cases := map[float64]int{
		-3:    0,
		0:     0,
		49.5:  50,
		49.49: 49,
		99.6:  100,
		130:   100,
	}
	for raw, want := range cases {
		if got := ConfidencePercent(raw); got != want {
			t.Fatalf("ConfidencePercent(%v) = %d, want %d", raw, got, want)
		}
	}
}
