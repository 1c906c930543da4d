package store

import (
	"context"
	"errors"

	"github.com/joescharf/pmo/internal/models"
)

// ErrNotFound is wrapped by lookups that find nothing.
var ErrNotFound = errors.New("not found")

// ReviewFilter specifies filters for listing cached reviews.
type ReviewFilter struct {
	Status models.ReviewStatus
	Limit  int
}

// Store is the local cache of collaborator reviews plus the action log.
// The collaborator stays the source of truth; the cache is a snapshot.
type Store interface {
	// Reviews
	UpsertReviews(ctx context.Context, reviews []*models.Review) error
	GetReview(ctx context.Context, id string) (*models.Review, error)
	ListReviews(ctx context.Context, filter ReviewFilter) ([]*models.Review, error)

	// Actions
	RecordAction(ctx context.Context, action *models.ReviewAction) error
	ListActions(ctx context.Context, reviewID string) ([]*models.ReviewAction, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
