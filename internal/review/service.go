// Package review coordinates mutating review operations: it checks the
// workflow, calls the collaborator, keeps the local cache current, and
// records every attempt in the action log.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joescharf/pmo/internal/content"
	"github.com/joescharf/pmo/internal/gateway"
	"github.com/joescharf/pmo/internal/models"
	"github.com/joescharf/pmo/internal/store"
	"github.com/joescharf/pmo/internal/workflow"
)

// Gateway is the subset of the collaborator client the service needs.
type Gateway interface {
	HealthCheck(ctx context.Context) (*gateway.HealthStatus, error)
	ListReviews(ctx context.Context) ([]*models.Review, error)
	GetReview(ctx context.Context, id string) (*models.Review, error)
	UpdateReview(ctx context.Context, id, editedJSON string) (*models.Review, error)
	ApproveReview(ctx context.Context, id string) (*gateway.ApprovalResult, error)
	RejectReview(ctx context.Context, id, reason string) (*models.Review, error)
	SubmitManualContent(ctx context.Context, text, additionalContext string) (string, error)
}

var (
	// ErrBusy is returned when another mutating call for the same review is outstanding.
	ErrBusy = errors.New("another operation is in progress for this review")
	// ErrNotAllowed is wrapped when the review's status does not offer the action.
	ErrNotAllowed = errors.New("action not available")
	// ErrEmptyContent is returned by Submit for blank input.
	ErrEmptyContent = errors.New("content is required")
	// ErrAmbiguous is wrapped when an ID prefix matches more than one review.
	ErrAmbiguous = errors.New("ambiguous review ID")
)

// Service performs review operations against the collaborator.
type Service struct {
	gw    Gateway
	store store.Store

	// Logf receives cache and action-log failures, which never fail the call.
	Logf func(format string, a ...any)

	now func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewService creates a Service. The store is optional; without one nothing is
// cached and History is empty.
func NewService(gw Gateway, s store.Store) *Service {
	return &Service{
		gw:       gw,
		store:    s,
		now:      func() time.Time { return time.Now().UTC() },
		inflight: make(map[string]struct{}),
	}
}

// Health checks that the collaborator is reachable.
func (s *Service) Health(ctx context.Context) (*gateway.HealthStatus, error) {
	return s.gw.HealthCheck(ctx)
}

// List fetches every review, caches the result, and applies the filter locally.
func (s *Service) List(ctx context.Context, filter store.ReviewFilter) ([]*models.Review, error) {
	reviews, err := s.gw.ListReviews(ctx)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, reviews...)
	return applyFilter(reviews, filter), nil
}

// ListCached returns the last snapshot of reviews without contacting the collaborator.
func (s *Service) ListCached(ctx context.Context, filter store.ReviewFilter) ([]*models.Review, error) {
	if s.store == nil {
		return []*models.Review{}, nil
	}
	return s.store.ListReviews(ctx, filter)
}

// Get fetches one review and caches it.
func (s *Service) Get(ctx context.Context, id string) (*models.Review, error) {
	r, err := s.gw.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, r)
	return r, nil
}

// Resolve finds a review by full ID or unique ID prefix.
func (s *Service) Resolve(ctx context.Context, ref string) (*models.Review, error) {
	r, err := s.Get(ctx, ref)
	if err == nil || !gateway.IsKind(err, gateway.NotFound) || ref == "" {
		return r, err
	}

	reviews, lerr := s.gw.ListReviews(ctx)
	if lerr != nil {
		return nil, err
	}
	var matches []*models.Review
	for _, candidate := range reviews {
		if strings.HasPrefix(candidate.ID, ref) {
			matches = append(matches, candidate)
		}
	}

	switch len(matches) {
	case 0:
		return nil, err
	case 1:
		s.cache(ctx, matches[0])
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%s matches %d reviews: %w", ref, len(matches), ErrAmbiguous)
	}
}

// History returns the local action log for a review, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]*models.ReviewAction, error) {
	if s.store == nil {
		return []*models.ReviewAction{}, nil
	}
	actions, err := s.store.ListActions(ctx, id)
	if err != nil {
		return nil, err
	}
	if actions == nil {
		actions = []*models.ReviewAction{}
	}
	return actions, nil
}

// Save stores an edit of the review's content. The text must decode as JSON;
// it does not have to match a known schema. rec is never modified.
func (s *Service) Save(ctx context.Context, rec *models.Review, edited string) (*models.Review, error) {
	release, err := s.acquire(rec.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	updated, err := s.save(ctx, rec, edited)
	s.record(ctx, rec.ID, models.ActionEdit, fmt.Sprintf("%d bytes", len(edited)), err)
	return updated, err
}

func (s *Service) save(ctx context.Context, rec *models.Review, edited string) (*models.Review, error) {
	if err := content.Validate(edited); err != nil {
		return nil, fmt.Errorf("save review %s: %w", rec.ID, err)
	}
	if err := allow(rec, workflow.ActionEdit); err != nil {
		return nil, err
	}
	updated, err := s.gw.UpdateReview(ctx, rec.ID, edited)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, updated)
	return updated, nil
}

// Approve approves a pending review. The returned record is re-fetched from
// the collaborator; when that fails it is rec with the approval applied.
func (s *Service) Approve(ctx context.Context, rec *models.Review) (*models.Review, *gateway.ApprovalResult, error) {
	release, err := s.acquire(rec.ID)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	updated, result, err := s.approve(ctx, rec)
	detail := ""
	if result != nil && len(result.JiraTickets) > 0 {
		detail = strings.Join(result.JiraTickets, ", ")
	}
	s.record(ctx, rec.ID, models.ActionApprove, detail, err)
	return updated, result, err
}

func (s *Service) approve(ctx context.Context, rec *models.Review) (*models.Review, *gateway.ApprovalResult, error) {
	if err := allow(rec, workflow.ActionApprove); err != nil {
		return nil, nil, err
	}
	result, err := s.gw.ApproveReview(ctx, rec.ID)
	if err != nil {
		return nil, nil, err
	}

	updated, err := s.gw.GetReview(ctx, rec.ID)
	if err != nil {
		s.logf("re-fetch after approve %s: %v", rec.ID, err)
		updated = s.applyApproval(rec, result)
	}
	s.cache(ctx, updated)
	return updated, result, nil
}

func (s *Service) applyApproval(rec *models.Review, result *gateway.ApprovalResult) *models.Review {
	updated := rec.Clone()
	updated.Status = models.ReviewStatusApproved
	if len(result.JiraTickets) > 0 {
		updated.Status = models.ReviewStatusCreated
		updated.TicketReferences = append(models.TicketRefs(nil), result.JiraTickets...)
	}
	now := s.now()
	updated.ReviewedAt = &now
	return updated
}

// Reject rejects a pending review with an optional reason.
func (s *Service) Reject(ctx context.Context, rec *models.Review, reason string) (*models.Review, error) {
	release, err := s.acquire(rec.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	updated, err := s.reject(ctx, rec, reason)
	s.record(ctx, rec.ID, models.ActionReject, reason, err)
	return updated, err
}

func (s *Service) reject(ctx context.Context, rec *models.Review, reason string) (*models.Review, error) {
	if err := allow(rec, workflow.ActionReject); err != nil {
		return nil, err
	}
	updated, err := s.gw.RejectReview(ctx, rec.ID, strings.TrimSpace(reason))
	if err != nil {
		return nil, err
	}
	s.cache(ctx, updated)
	return updated, nil
}

// Submit sends source text for generation and returns the new review ID.
func (s *Service) Submit(ctx context.Context, text, additionalContext string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyContent
	}
	id, err := s.gw.SubmitManualContent(ctx, text, strings.TrimSpace(additionalContext))
	if id == "" {
		// Without a review ID the entry could never be listed.
		s.logf("submit %d bytes: %v", len(text), err)
		return id, err
	}
	s.record(ctx, id, models.ActionSubmit, fmt.Sprintf("%d bytes", len(text)), err)
	return id, err
}

func allow(rec *models.Review, action workflow.Action) error {
	if workflow.Allows(rec.Status, action) {
		return nil
	}
	return fmt.Errorf("%s review %s (status %s): %w", action, rec.ID, workflow.Label(rec.Status), ErrNotAllowed)
}

func (s *Service) acquire(id string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return nil, fmt.Errorf("review %s: %w", id, ErrBusy)
	}
	s.inflight[id] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inflight, id)
		s.mu.Unlock()
	}, nil
}

func (s *Service) cache(ctx context.Context, reviews ...*models.Review) {
	if s.store == nil {
		return
	}
	if err := s.store.UpsertReviews(ctx, reviews); err != nil {
		s.logf("cache reviews: %v", err)
	}
}

func (s *Service) record(ctx context.Context, id string, kind models.ActionKind, detail string, err error) {
	if s.store == nil {
		return
	}
	a := &models.ReviewAction{
		ReviewID:  id,
		Kind:      kind,
		Outcome:   models.ActionOutcomeOK,
		Detail:    detail,
		CreatedAt: s.now(),
	}
	if err != nil {
		a.Outcome = models.ActionOutcomeFailed
		a.Error = err.Error()
	}
	// The log entry outlives a cancelled request.
	if rerr := s.store.RecordAction(context.WithoutCancel(ctx), a); rerr != nil {
		s.logf("record %s action: %v", kind, rerr)
	}
}

func (s *Service) logf(format string, a ...any) {
	if s.Logf != nil {
		s.Logf(format, a...)
	}
}

func applyFilter(reviews []*models.Review, filter store.ReviewFilter) []*models.Review {
	out := make([]*models.Review, 0, len(reviews))
	for _, r := range reviews {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}
