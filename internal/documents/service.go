// Package documents ingests uploads into the blob and record stores and hands
// OCR-eligible files to background derivation.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/angelmondragon/constructai-backend/internal/dispatch"
	"github.com/angelmondragon/constructai-backend/internal/uploads"
	"github.com/angelmondragon/constructai-backend/pkg/db/models"
	"github.com/angelmondragon/constructai-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/constructai-backend/pkg/errors"
	"github.com/angelmondragon/constructai-backend/pkg/events"
	"github.com/angelmondragon/constructai-backend/pkg/logger"
	"github.com/angelmondragon/constructai-backend/pkg/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultCategory labels uploads that arrive without one.
const DefaultCategory = "general"

type documentRepository interface {
	transitioner
	Create(ctx context.Context, doc *models.Document) (*models.Document, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	List(ctx context.Context, q listQuery) ([]models.Document, error)
}

type taskDispatcher interface {
	Submit(ctx context.Context, task dispatch.Task) error
}

// Service exposes document ingestion and lookups.
type Service interface {
	Ingest(ctx context.Context, input IngestInput) (*DocumentDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*DocumentDTO, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

// IngestInput is one upload. Body must yield exactly Size bytes.
type IngestInput struct {
	FileName     string
	DeclaredType string
	Size         int64
	Body         io.Reader
	OwnerID      string
	ProjectID    string
	Category     string
}

// ServiceParams wires a Service.
type ServiceParams struct {
	Repo       documentRepository
	Blobs      storage.Store
	Dispatcher taskDispatcher
	Derivers   map[enums.DerivationKind]Deriver
	Events     events.Publisher
	Policy     uploads.Policy
	KeyPrefix  string
	Logger     *logger.Logger
}

type service struct {
	repo       documentRepository
	blobs      storage.Store
	dispatcher taskDispatcher
	derivers   map[enums.DerivationKind]Deriver
	recorder   *Recorder
	policy     uploads.Policy
	keyPrefix  string
	logg       *logger.Logger
	clock      func() time.Time
}

// NewService constructs the ingestion service.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("document repository required")
	}
	if p.Blobs == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if p.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if p.Policy.MaxBytes() <= 0 {
		return nil, fmt.Errorf("upload policy required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	publisher := p.Events
	if publisher == nil {
		publisher = events.Noop{}
	}
	derivers := make(map[enums.DerivationKind]Deriver, len(p.Derivers))
	for kind, d := range p.Derivers {
		derivers[kind] = d
	}
	return &service{
		repo:       p.Repo,
		blobs:      p.Blobs,
		dispatcher: p.Dispatcher,
		derivers:   derivers,
		recorder:   NewRecorder(p.Repo, publisher, p.Logger),
		policy:     p.Policy,
		keyPrefix:  p.KeyPrefix,
		logg:       p.Logger,
		clock:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Ingest(ctx context.Context, input IngestInput) (*DocumentDTO, error) {
	if input.Body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is required").
			WithDetails(map[string]any{"field": "file"})
	}
	projectID := strings.TrimSpace(input.ProjectID)
	if projectID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "projectId is required").
			WithDetails(map[string]any{"field": "projectId"})
	}
	ownerID := strings.TrimSpace(input.OwnerID)
	if ownerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "owner identity missing")
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		category = DefaultCategory
	}

	head, body, err := uploads.PeekHead(input.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}

	decision, err := s.policy.Validate(uploads.FileMeta{
		FileName:     input.FileName,
		DeclaredType: input.DeclaredType,
		Size:         input.Size,
		Head:         head,
	})
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	ctx = s.logg.WithDocumentID(ctx, id.String())
	ctx = s.logg.WithProjectID(ctx, projectID)
	key := storage.DocumentKey(s.keyPrefix, id, input.FileName)

	obj, err := s.blobs.Put(ctx, storage.PutInput{
		Key:         key,
		ContentType: decision.MimeType,
		Body:        body,
		Size:        input.Size,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "persist document bytes")
	}

	now := s.clock()
	doc := &models.Document{
		ID:        id,
		Name:      input.FileName,
		MimeType:  decision.MimeType,
		Status:    enums.DocumentStatusUploaded,
		SizeBytes: input.Size,
		URL:       obj.URL,
		BlobKey:   obj.Key,
		Category:  category,
		OwnerID:   ownerID,
		ProjectID: projectID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.repo.Create(ctx, doc); err != nil {
		s.discardBlob(ctx, obj.Key)
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "persist document record")
	}

	kind := Classify(decision)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"derivation_kind":   kind.String(),
		"mime_type":         decision.MimeType,
		"type_by_extension": decision.ByExtensionOnly,
	})
	s.logg.Info(ctx, "document ingested")
	s.recorder.publish(ctx, events.New(events.TypeDocumentIngested, doc.ID.String(), ToDTO(doc)))

	if err := s.startDerivation(ctx, doc, kind); err != nil {
		return nil, err
	}

	dto := ToDTO(doc)
	return &dto, nil
}

// startDerivation either completes doc on the spot or hands it to the pool.
// Once the record exists, dispatch problems land on the record, not the caller.
func (s *service) startDerivation(ctx context.Context, doc *models.Document, kind enums.DerivationKind) error {
	deriver, ok := s.derivers[kind]
	if kind == enums.DerivationNone || !ok {
		if kind != enums.DerivationNone {
			s.logg.Warn(ctx, "no deriver registered; completing without derivation")
		}
		if err := s.recorder.Transition(ctx, doc, StatusUpdate{To: enums.DocumentStatusCompleted}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "complete document")
		}
		return nil
	}

	snapshot := *doc
	err := s.dispatcher.Submit(ctx, dispatch.Task{
		Kind:       kind,
		DocumentID: doc.ID,
		Run: func(runCtx context.Context) error {
			return deriver.Derive(runCtx, snapshot)
		},
	})
	if err == nil {
		return nil
	}

	s.logg.Error(ctx, "dispatch derivation", err)
	if terr := s.recorder.Transition(ctx, doc, StatusUpdate{To: enums.DocumentStatusError}); terr != nil {
		s.logg.Error(ctx, "mark undispatched document as error", terr)
	}
	return nil
}

func (s *service) discardBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "blob_key", key), "delete orphaned blob", err)
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "blob_key", key), "deleted blob after record write failed")
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*DocumentDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document id required")
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load document")
	}
	dto := ToDTO(doc)
	return &dto, nil
}
