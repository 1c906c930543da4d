// Package gatewaytest provides an in-memory collaborator service for tests.
package gatewaytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joescharf/pmo/internal/content"
	"github.com/joescharf/pmo/internal/gateway"
	"github.com/joescharf/pmo/internal/models"
)

// APIKey is the credential the fake collaborator accepts.
const APIKey = "test-key"

// SampleContent is a direct-schema document with one epic and one story.
const SampleContent = `{"initiative":{"summary":"Checkout revamp","description":"Rebuild checkout","epics":[{"summary":"Payments","description":"Card flow","stories":[{"asA":"shopper","iWant":"to pay","soThat":"I get my order","acceptanceCriteria":["card accepted"]}]}]}}`

// Server is a fake collaborator backed by a map of reviews.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	reviews map[string]*models.Review
	nextID  int

	// ApproveTickets are returned by a successful approve.
	ApproveTickets []string
	// ApproveFailure, when set, makes approve answer success=false with this error.
	ApproveFailure string
}

// NewServer starts a fake collaborator holding reviews. It is closed when t ends.
func NewServer(t testing.TB, reviews ...*models.Review) *Server {
	t.Helper()
	s := &Server{reviews: make(map[string]*models.Review)}
	for _, r := range reviews {
		s.reviews[r.ID] = r.Clone()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /api/reviews", s.list)
	mux.HandleFunc("GET /api/reviews/{id}", s.get)
	mux.HandleFunc("PUT /api/reviews/{id}", s.update)
	mux.HandleFunc("POST /api/reviews/{id}/approve", s.approve)
	mux.HandleFunc("POST /api/reviews/{id}/reject", s.reject)
	mux.HandleFunc("POST /api/generate", s.generate)

	s.Server = httptest.NewServer(s.auth(mux))
	t.Cleanup(s.Close)
	return s
}

// Client returns a gateway client pointed at the server.
func (s *Server) Client(t testing.TB) *gateway.Client {
	t.Helper()
	c, err := gateway.New(gateway.Config{BaseURL: s.URL, APIKey: APIKey, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("gateway client: %v", err)
	}
	return c
}

// Review returns a copy of the stored review, or nil.
func (s *Server) Review(id string) *models.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reviews[id]; ok {
		return r.Clone()
	}
	return nil
}

// PendingReview builds a pending webhook review holding SampleContent.
func PendingReview(id string) *models.Review {
	return &models.Review{
		ID:               id,
		Source:           models.ReviewSourceWebhook,
		Type:             models.ContentTypeJiraTickets,
		Status:           models.ReviewStatusPending,
		InputContent:     "Rebuild checkout so shoppers can pay by card",
		GeneratedContent: content.Text(SampleContent),
		CreatedAt:        time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != APIKey || r.Header.Get("Authorization") != "Bearer "+APIKey {
			writeEnvelope(w, http.StatusUnauthorized, false, nil, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeEnvelope(w http.ResponseWriter, status int, ok bool, data any, msg string) {
	body := map[string]any{"success": ok}
	if data != nil {
		body["data"] = data
	}
	if msg != "" {
		body["error"] = msg
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(gateway.HealthStatus{
		Status:    "ok",
		Database:  "connected",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Review, 0, len(s.reviews))
	for _, rev := range s.reviews {
		out = append(out, rev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	writeEnvelope(w, http.StatusOK, true, out, "")
}

// lookup returns the stored review or writes a 404. The caller holds mu.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*models.Review, bool) {
	rev, ok := s.reviews[r.PathValue("id")]
	if !ok {
		writeEnvelope(w, http.StatusNotFound, false, nil, "Review not found")
	}
	return rev, ok
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rev, ok := s.lookup(w, r); ok {
		writeEnvelope(w, http.StatusOK, true, rev, "")
	}
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EditedJSON string `json:"edited_json"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeEnvelope(w, http.StatusBadRequest, false, nil, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rev, ok := s.lookup(w, r)
	if !ok {
		return
	}
	rev.EditedContent = content.Text(body.EditedJSON)
	writeEnvelope(w, http.StatusOK, true, rev, "")
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if s.ApproveFailure != "" {
		writeEnvelope(w, http.StatusOK, false, nil, s.ApproveFailure)
		return
	}
	now := time.Now().UTC()
	rev.ReviewedAt = &now
	rev.Status = models.ReviewStatusApproved
	if len(s.ApproveTickets) > 0 {
		rev.Status = models.ReviewStatusCreated
		rev.TicketReferences = append(models.TicketRefs(nil), s.ApproveTickets...)
	}
	writeEnvelope(w, http.StatusOK, true, map[string]any{
		"success":     true,
		"jiraTickets": s.ApproveTickets,
		"message":     "Review approved",
	}, "")
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev, ok := s.lookup(w, r)
	if !ok {
		return
	}
	now := time.Now().UTC()
	rev.ReviewedAt = &now
	rev.Status = models.ReviewStatusRejected
	writeEnvelope(w, http.StatusOK, true, rev, "")
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content           string `json:"content"`
		AdditionalContext string `json:"additional_context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Content) == "" {
		writeEnvelope(w, http.StatusOK, false, nil, "content is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rev := PendingReview(fmt.Sprintf("gen-%d", s.nextID))
	rev.Source = models.ReviewSourceManual
	rev.InputContent = body.Content
	rev.AdditionalContext = body.AdditionalContext
	rev.CreatedAt = time.Now().UTC()
	s.reviews[rev.ID] = rev
	writeEnvelope(w, http.StatusOK, true, map[string]string{"id": rev.ID}, "")
}
