package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joescharf/pmo/internal/content"
	"github.com/joescharf/pmo/internal/gateway"
	"github.com/joescharf/pmo/internal/models"
	"github.com/joescharf/pmo/internal/review"
	"github.com/joescharf/pmo/internal/store"
	"github.com/joescharf/pmo/internal/view"
)

// Server provides the REST API handlers.
type Server struct {
	svc        *review.Service
	previewLen int
}

// NewServer creates a new API server. previewLen bounds list previews; zero
// uses the default.
func NewServer(svc *review.Service, previewLen int) *Server {
	if previewLen <= 0 {
		previewLen = content.DefaultPreviewLength
	}
	return &Server{svc: svc, previewLen: previewLen}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", s.health)

	mux.HandleFunc("GET /api/v1/reviews", s.listReviews)
	mux.HandleFunc("GET /api/v1/reviews/{id}", s.getReview)
	mux.HandleFunc("PUT /api/v1/reviews/{id}", s.updateReview)
	mux.HandleFunc("POST /api/v1/reviews/{id}/approve", s.approveReview)
	mux.HandleFunc("POST /api/v1/reviews/{id}/reject", s.rejectReview)
	mux.HandleFunc("GET /api/v1/reviews/{id}/actions", s.listActions)

	mux.HandleFunc("POST /api/v1/generate", s.generate)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// envelope mirrors the collaborator's response wrapper.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: v})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: msg})
}

// writeFailure maps err to a status code and writes it.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, review.ErrBusy), errors.Is(err, review.ErrNotAllowed):
		return http.StatusConflict
	case errors.Is(err, review.ErrEmptyContent), errors.Is(err, review.ErrAmbiguous), errors.Is(err, content.ErrInvalidFormat):
		return http.StatusBadRequest
	}
	switch gateway.KindOf(err) {
	case gateway.NotFound:
		return http.StatusNotFound
	case gateway.Unauthorized:
		return http.StatusUnauthorized
	case gateway.ServiceRejected:
		return http.StatusUnprocessableEntity
	case gateway.Unreachable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// --- Health ---

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	h, err := s.svc.Health(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// --- Reviews ---

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	filter := store.ReviewFilter{Status: models.ReviewStatus(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	reviews, err := s.svc.List(r.Context(), filter)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view.ProjectAll(reviews, s.previewLen))
}

func (s *Server) getReview(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Resolve(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view.Describe(rec, s.previewLen))
}

func (s *Server) updateReview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EditedJSON content.Raw `json:"edited_json"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.EditedJSON.IsAbsent() {
		writeError(w, http.StatusBadRequest, "edited_json is required")
		return
	}

	rec, err := s.svc.Resolve(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	updated, err := s.svc.Save(r.Context(), rec, string(body.EditedJSON.Bytes()))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view.Describe(updated, s.previewLen))
}

type approveResponse struct {
	view.Detail
	JiraTickets []string `json:"jira_tickets_created,omitempty"`
	Message     string   `json:"message,omitempty"`
}

func (s *Server) approveReview(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Resolve(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	updated, result, err := s.svc.Approve(r.Context(), rec)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, approveResponse{
		Detail:      view.Describe(updated, s.previewLen),
		JiraTickets: result.JiraTickets,
		Message:     result.Message,
	})
}

func (s *Server) rejectReview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	// An empty body is a rejection without a reason.
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	rec, err := s.svc.Resolve(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	updated, err := s.svc.Reject(r.Context(), rec, body.Reason)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view.Describe(updated, s.previewLen))
}

func (s *Server) listActions(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Resolve(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	actions, err := s.svc.History(r.Context(), rec.ID)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

// --- Generation ---

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content           string `json:"content"`
		AdditionalContext string `json:"additional_context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	id, err := s.svc.Submit(r.Context(), body.Content, body.AdditionalContext)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}
