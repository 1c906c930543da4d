package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/pmo/internal/content"
	"github.com/joescharf/pmo/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func testReview(id string, status models.ReviewStatus, created time.Time) *models.Review {
	return &models.Review{
		ID:               id,
		Source:           models.ReviewSourceWebhook,
		Type:             models.ContentTypeJiraTickets,
		Status:           status,
		InputContent:     "input " + id,
		GeneratedContent: content.Text(`{"initiative":{"summary":"S","description":"","epics":[]}}`),
		CreatedAt:        created,
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestReviewCache_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	r := testReview("r1", models.ReviewStatusPending, base)
	r.EditedContent = content.Structured([]byte(`{"initiative":{"summary":"E"}}`))
	r.TicketReferences = models.TicketRefs{"PM-1"}

	require.NoError(t, s.UpsertReviews(ctx, []*models.Review{r}))

	got, err := s.GetReview(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "input r1", got.InputContent)
	assert.True(t, got.GeneratedContent.IsText(), "text form survives the cache")
	assert.True(t, got.EditedContent.IsStructured(), "structured form survives the cache")
	assert.Equal(t, models.TicketRefs{"PM-1"}, got.TicketReferences)
	assert.True(t, base.Equal(got.CreatedAt))
}

func TestReviewCache_UpsertReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := testReview("r1", models.ReviewStatusPending, time.Now().UTC())
	require.NoError(t, s.UpsertReviews(ctx, []*models.Review{r}))

	updated := r.Clone()
	updated.Status = models.ReviewStatusRejected
	now := time.Now().UTC()
	updated.ReviewedAt = &now
	require.NoError(t, s.UpsertReviews(ctx, []*models.Review{updated}))

	got, err := s.GetReview(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusRejected, got.Status)
	require.NotNil(t, got.ReviewedAt)

	all, err := s.ListReviews(ctx, ReviewFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestReviewCache_ListFilterAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertReviews(ctx, []*models.Review{
		testReview("old", models.ReviewStatusPending, base),
		testReview("mid", models.ReviewStatusApproved, base.Add(time.Hour)),
		testReview("new", models.ReviewStatusPending, base.Add(2*time.Hour)),
	}))

	all, err := s.ListReviews(ctx, ReviewFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)
	assert.Equal(t, "old", all[2].ID)

	pending, err := s.ListReviews(ctx, ReviewFilter{Status: models.ReviewStatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	limited, err := s.ListReviews(ctx, ReviewFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "new", limited[0].ID)
}

func TestReviewCache_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetReview(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestReviewCache_EmptyUpsert(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.UpsertReviews(context.Background(), nil))
}

func TestActions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	first := &models.ReviewAction{ReviewID: "r1", Kind: models.ActionEdit, Outcome: models.ActionOutcomeOK, CreatedAt: base}
	second := &models.ReviewAction{ReviewID: "r1", Kind: models.ActionApprove, Outcome: models.ActionOutcomeFailed, Error: "boom", CreatedAt: base.Add(time.Minute)}
	other := &models.ReviewAction{ReviewID: "r2", Kind: models.ActionReject, Outcome: models.ActionOutcomeOK}

	require.NoError(t, s.RecordAction(ctx, second))
	require.NoError(t, s.RecordAction(ctx, first))
	require.NoError(t, s.RecordAction(ctx, other))

	assert.Len(t, first.ID, 26, "IDs are ULIDs")
	assert.False(t, other.CreatedAt.IsZero())

	actions, err := s.ListActions(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, models.ActionEdit, actions[0].Kind)
	assert.Equal(t, models.ActionApprove, actions[1].Kind)
	assert.Equal(t, models.ActionOutcomeFailed, actions[1].Outcome)
	assert.Equal(t, "boom", actions[1].Error)

	none, err := s.ListActions(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}
