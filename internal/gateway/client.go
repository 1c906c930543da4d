// Package gateway is a typed client for the PM Orchestration collaborator
// service. Every call returns either a decoded result or a *Error.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joescharf/pmo/internal/content"
	"github.com/joescharf/pmo/internal/models"
)

// DefaultTimeout bounds each request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

// maxDiagnostic bounds the characters of a non-JSON error body kept in a message.
const maxDiagnostic = 200

// Config holds the collaborator address and credential.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client // optional; Timeout is ignored when set

	// Logf receives one line per request and response when set.
	Logf func(format string, a ...any)
}

// HealthStatus is the collaborator's /health payload.
type HealthStatus struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}

// ApprovalResult is returned by ApproveReview.
type ApprovalResult struct {
	Success     bool     `json:"success"`
	JiraTickets []string `json:"jiraTickets,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// envelope is the uniform response wrapper of the collaborator.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Client calls the collaborator service. It holds no business state.
type Client struct {
	base   *url.URL
	apiKey string
	http   *http.Client
	logf   func(format string, a ...any)
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("gateway: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("gateway: parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gateway: base URL must be absolute: %s", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	return &Client{base: base, apiKey: cfg.APIKey, http: hc, logf: logf}, nil
}

// BaseURL returns the collaborator address the client talks to.
func (c *Client) BaseURL() string { return c.base.String() }

// HealthCheck calls GET /health.
func (c *Client) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	const op = "health check"
	body, err := c.send(ctx, op, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	var h HealthStatus
	if err := json.Unmarshal(body, &h); err != nil {
		return nil, decodeError(op, err)
	}
	return &h, nil
}

// ListReviews calls GET /api/reviews.
func (c *Client) ListReviews(ctx context.Context) ([]*models.Review, error) {
	const op = "list reviews"
	data, err := c.call(ctx, op, http.MethodGet, "/api/reviews", nil)
	if err != nil {
		return nil, err
	}
	if isEmpty(data) {
		return []*models.Review{}, nil
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, decodeError(op, err)
	}
	// A row that does not decode is skipped so the rest stay visible.
	reviews := make([]*models.Review, 0, len(rows))
	for i, row := range rows {
		var r models.Review
		if err := json.Unmarshal(row, &r); err != nil {
			c.logf("skipping review %d: %v", i, err)
			continue
		}
		reviews = append(reviews, &r)
	}
	return reviews, nil
}

// GetReview calls GET /api/reviews/{id}.
func (c *Client) GetReview(ctx context.Context, id string) (*models.Review, error) {
	return c.review(ctx, "get review", http.MethodGet, reviewPath(id, ""), nil)
}

// UpdateReview calls PUT /api/reviews/{id} with the edited content as text.
func (c *Client) UpdateReview(ctx context.Context, id, editedJSON string) (*models.Review, error) {
	body := struct {
		EditedJSON string `json:"edited_json"`
	}{editedJSON}
	return c.review(ctx, "update review", http.MethodPut, reviewPath(id, ""), body)
}

// ApproveReview calls POST /api/reviews/{id}/approve.
func (c *Client) ApproveReview(ctx context.Context, id string) (*ApprovalResult, error) {
	const op = "approve review"
	data, err := c.call(ctx, op, http.MethodPost, reviewPath(id, "approve"), nil)
	if err != nil {
		return nil, err
	}
	if isEmpty(data) {
		return &ApprovalResult{Success: true}, nil
	}

	var raw struct {
		Success     *bool    `json:"success"`
		JiraTickets []string `json:"jiraTickets"`
		Message     string   `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, decodeError(op, err)
	}
	if raw.Success != nil && !*raw.Success {
		msg := raw.Message
		if msg == "" {
			msg = "failed to approve review"
		}
		return nil, &Error{Kind: ServiceRejected, Op: op, Status: http.StatusOK, Message: msg}
	}
	return &ApprovalResult{Success: true, JiraTickets: raw.JiraTickets, Message: raw.Message}, nil
}

// RejectReview calls POST /api/reviews/{id}/reject. An empty reason is omitted.
func (c *Client) RejectReview(ctx context.Context, id, reason string) (*models.Review, error) {
	body := struct {
		Reason string `json:"reason,omitempty"`
	}{reason}
	return c.review(ctx, "reject review", http.MethodPost, reviewPath(id, "reject"), body)
}

// SubmitManualContent calls POST /api/generate and returns the new review ID.
func (c *Client) SubmitManualContent(ctx context.Context, text, additionalContext string) (string, error) {
	const op = "generate content"
	body := struct {
		Content           string `json:"content"`
		AdditionalContext string `json:"additional_context,omitempty"`
	}{text, additionalContext}

	data, err := c.call(ctx, op, http.MethodPost, "/api/generate", body)
	if err != nil {
		return "", err
	}
	var out struct {
		ID string `json:"id"`
	}
	if !isEmpty(data) {
		if err := json.Unmarshal(data, &out); err != nil {
			return "", decodeError(op, err)
		}
	}
	if out.ID == "" {
		return "", &Error{Kind: Unknown, Op: op, Status: http.StatusOK, Message: "response carried no review id"}
	}
	return out.ID, nil
}

func (c *Client) review(ctx context.Context, op, method, path string, body any) (*models.Review, error) {
	data, err := c.call(ctx, op, method, path, body)
	if err != nil {
		return nil, err
	}
	if isEmpty(data) {
		return nil, &Error{Kind: Unknown, Op: op, Status: http.StatusOK, Message: "response carried no review"}
	}
	var r models.Review
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, decodeError(op, err)
	}
	return &r, nil
}

// call sends a request and unwraps the response envelope.
func (c *Client) call(ctx context.Context, op, method, path string, body any) (json.RawMessage, error) {
	raw, err := c.send(ctx, op, method, path, body)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, decodeError(op, err)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = "failed to " + op
		}
		return nil, &Error{Kind: ServiceRejected, Op: op, Status: http.StatusOK, Message: msg}
	}
	return env.Data, nil
}

// send performs the HTTP exchange and maps non-2xx statuses to error kinds.
// It returns the body of a 2xx response.
func (c *Client) send(ctx context.Context, op, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: Unknown, Op: op, Message: "encode request: " + err.Error(), Err: err}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return nil, &Error{Kind: Unknown, Op: op, Message: "build request: " + err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-API-Key", c.apiKey)
	reqID := uuid.New().String()
	req.Header.Set("X-Request-ID", reqID)

	c.logf("%s %s (request %s)", method, path, reqID)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Kind: Unreachable, Op: op, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &Error{Kind: Unreachable, Op: op, Status: resp.StatusCode, Message: "read response: " + err.Error(), Err: err}
	}
	c.logf("%d %s", resp.StatusCode, path)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}
	return nil, statusError(op, resp.StatusCode, respBody)
}

func statusError(op string, status int, body []byte) *Error {
	msg := diagnostic(status, body)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		if !hasEnvelopeMessage(body) {
			msg = "invalid credentials"
		}
		return &Error{Kind: Unauthorized, Op: op, Status: status, Message: msg}
	case http.StatusNotFound:
		return &Error{Kind: NotFound, Op: op, Status: status, Message: msg}
	default:
		return &Error{Kind: Unknown, Op: op, Status: status, Message: msg}
	}
}

// diagnostic extracts the best human-readable text from an error response.
func diagnostic(status int, body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Error != "" {
			return env.Error
		}
		if env.Message != "" {
			return env.Message
		}
	}
	text := content.Truncate(strings.TrimSpace(string(body)), maxDiagnostic)
	if text == "" {
		return http.StatusText(status)
	}
	return fmt.Sprintf("%s: %s", http.StatusText(status), text)
}

func hasEnvelopeMessage(body []byte) bool {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return false
	}
	return env.Error != "" || env.Message != ""
}

func decodeError(op string, err error) *Error {
	return &Error{Kind: Unknown, Op: op, Status: http.StatusOK, Message: "decode response: " + err.Error(), Err: err}
}

func reviewPath(id, action string) string {
	p := "/api/reviews/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

func isEmpty(data json.RawMessage) bool {
	s := strings.TrimSpace(string(data))
	return s == "" || s == "null"
}
