package documents

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/constructai-backend/pkg/db/models"
	"github.com/angelmondragon/constructai-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Document{}))

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func newDocument(projectID string, status enums.DocumentStatus, createdAt time.Time) *models.Document {
	id := uuid.New()
	return &models.Document{
		ID:        id,
		Name:      "plan.png",
		MimeType:  "image/png",
		Status:    status,
		SizeBytes: 1024,
		URL:       "/blobs/uploads/documents/" + id.String() + "/plan.png",
		BlobKey:   "uploads/documents/" + id.String() + "/plan.png",
		Category:  DefaultCategory,
		OwnerID:   "user-1",
		ProjectID: projectID,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestRepositoryCreateAndFind(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()
	doc := newDocument("p1", enums.DocumentStatusUploaded, time.Now().UTC())

	_, err := repo.Create(ctx, doc)
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Name, got.Name)
	assert.Equal(t, enums.DocumentStatusUploaded, got.Status)
	assert.Nil(t, got.ExtractedText)
	assert.Nil(t, got.Confidence)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryTransitionIsMonotonic(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()
	created := time.Now().UTC().Add(-time.Minute)
	doc := newDocument("p1", enums.DocumentStatusUploaded, created)
	_, err := repo.Create(ctx, doc)
	require.NoError(t, err)

	processingAt := created.Add(10 * time.Second)
	require.NoError(t, repo.Transition(ctx, doc.ID, StatusUpdate{To: enums.DocumentStatusProcessing, At: processingAt}))

	// processing cannot be entered twice, which is what a duplicate worker would try.
	err = repo.Transition(ctx, doc.ID, StatusUpdate{To: enums.DocumentStatusProcessing})
	assert.ErrorIs(t, err, ErrStaleTransition)

	text := "GROUND FLOOR PLAN"
	confidence := 91
	completedAt := created.Add(20 * time.Second)
	require.NoError(t, repo.Transition(ctx, doc.ID, StatusUpdate{
		To:            enums.DocumentStatusCompleted,
		ExtractedText: &text,
		Confidence:    &confidence,
		At:            completedAt,
	}))

	got, err := repo.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DocumentStatusCompleted, got.Status)
	require.NotNil(t, got.ExtractedText)
	assert.Equal(t, text, *got.ExtractedText)
	require.NotNil(t, got.Confidence)
	assert.Equal(t, confidence, *got.Confidence)
	assert.True(t, got.UpdatedAt.Equal(completedAt), "updated_at should advance to %v, got %v", completedAt, got.UpdatedAt)

	// Terminal: neither error nor a fresh processing may follow.
	assert.ErrorIs(t, repo.Transition(ctx, doc.ID, StatusUpdate{To: enums.DocumentStatusError}), ErrStaleTransition)
	assert.ErrorIs(t, repo.Transition(ctx, doc.ID, StatusUpdate{To: enums.DocumentStatusProcessing}), ErrStaleTransition)
	assert.ErrorIs(t, repo.Transition(ctx, doc.ID, StatusUpdate{To: enums.DocumentStatusUploaded}), ErrStaleTransition)
}

func TestRepositoryTransitionErrorKeepsText(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()
	doc := newDocument("p1", enums.DocumentStatusProcessing, time.Now().UTC())
	prior := "previous text"
	doc.ExtractedText = &prior
	_, err := repo.Create(ctx, doc)
	require.NoError(t, err)

	require.NoError(t, repo.Transition(ctx, doc.ID, StatusUpdate{To: enums.DocumentStatusError}))

	got, err := repo.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DocumentStatusError, got.Status)
	require.NotNil(t, got.ExtractedText)
	assert.Equal(t, prior, *got.ExtractedText)
}

func TestRepositoryTransitionUnknownDocument(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	err := repo.Transition(context.Background(), uuid.New(), StatusUpdate{To: enums.DocumentStatusCompleted})
	assert.ErrorIs(t, err, ErrStaleTransition)
}

func TestRepositoryListFiltersAndOrders(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	older := newDocument("p1", enums.DocumentStatusCompleted, base)
	newer := newDocument("p1", enums.DocumentStatusUploaded, base.Add(time.Hour))
	other := newDocument("p2", enums.DocumentStatusCompleted, base.Add(2*time.Hour))
	for _, d := range []*models.Document{older, newer, other} {
		_, err := repo.Create(ctx, d)
		require.NoError(t, err)
	}

	rows, err := repo.List(ctx, listQuery{projectID: "p1", limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, newer.ID, rows[0].ID)
	assert.Equal(t, older.ID, rows[1].ID)

	completed := enums.DocumentStatusCompleted
	rows, err = repo.List(ctx, listQuery{status: &completed, limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, other.ID, rows[0].ID)
}

func TestRepositoryListStaleAndExistingIDs(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	stuck := newDocument("p1", enums.DocumentStatusProcessing, now.Add(-3*time.Hour))
	fresh := newDocument("p1", enums.DocumentStatusProcessing, now)
	done := newDocument("p1", enums.DocumentStatusCompleted, now.Add(-3*time.Hour))
	for _, d := range []*models.Document{stuck, fresh, done} {
		_, err := repo.Create(ctx, d)
		require.NoError(t, err)
	}

	rows, err := repo.ListStale(ctx, []enums.DocumentStatus{enums.DocumentStatusUploaded, enums.DocumentStatusProcessing}, now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stuck.ID, rows[0].ID)

	missing := uuid.New()
	existing, err := repo.ExistingIDs(ctx, []uuid.UUID{stuck.ID, missing, done.ID})
	require.NoError(t, err)
	assert.Contains(t, existing, stuck.ID)
	assert.Contains(t, existing, done.ID)
	assert.NotContains(t, existing, missing)

	empty, err := repo.ExistingIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
