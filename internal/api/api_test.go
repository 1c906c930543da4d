package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/pmo/internal/gateway/gatewaytest"
	"github.com/joescharf/pmo/internal/models"
	"github.com/joescharf/pmo/internal/review"
	"github.com/joescharf/pmo/internal/store"
	"github.com/joescharf/pmo/internal/view"
)

func setupTestServer(t *testing.T, reviews ...*models.Review) (http.Handler, *gatewaytest.Server) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	collab := gatewaytest.NewServer(t, reviews...)
	svc := review.NewService(collab.Client(t), s)
	return NewServer(svc, 0).Router(), collab
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, response) {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp response
	if w.Code != http.StatusNoContent {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}

func TestHealth(t *testing.T) {
	h, _ := setupTestServer(t)
	code, resp := do(t, h, "GET", "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.Contains(t, string(resp.Data), `"connected"`)
}

func TestListReviews(t *testing.T) {
	approved := gatewaytest.PendingReview("rev-2")
	approved.Status = models.ReviewStatusApproved
	h, _ := setupTestServer(t, gatewaytest.PendingReview("rev-1"), approved)

	code, resp := do(t, h, "GET", "/api/v1/reviews", "")
	require.Equal(t, http.StatusOK, code)
	var all []view.Summary
	require.NoError(t, json.Unmarshal(resp.Data, &all))
	assert.Len(t, all, 2)

	code, resp = do(t, h, "GET", "/api/v1/reviews?status=pending", "")
	require.Equal(t, http.StatusOK, code)
	var pending []view.Summary
	require.NoError(t, json.Unmarshal(resp.Data, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, "rev-1", pending[0].ID)
	assert.Equal(t, "Checkout revamp", pending[0].Preview)
	assert.Equal(t, "1 initiative, 1 epic, 1 story", pending[0].Stats)

	code, _ = do(t, h, "GET", "/api/v1/reviews?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetReview(t *testing.T) {
	h, _ := setupTestServer(t, gatewaytest.PendingReview("rev-1"))

	code, resp := do(t, h, "GET", "/api/v1/reviews/rev-1", "")
	require.Equal(t, http.StatusOK, code)

	var d view.Detail
	require.NoError(t, json.Unmarshal(resp.Data, &d))
	require.NotNil(t, d.Content)
	assert.Equal(t, "Checkout revamp", d.Content.Initiative.Summary)
	assert.Equal(t, 1, d.ContentStats.StoryCount)
	assert.Len(t, d.Actions, 3)
	assert.Equal(t, "active", string(d.Progress.Steps[0].State))
}

func TestGetReview_NotFound(t *testing.T) {
	h, _ := setupTestServer(t)
	code, resp := do(t, h, "GET", "/api/v1/reviews/missing", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestUpdateReview(t *testing.T) {
	h, collab := setupTestServer(t, gatewaytest.PendingReview("rev-1"))

	edit := `{"edited_json":"{\"initiative\":{\"summary\":\"Edited\",\"description\":\"\",\"epics\":[]}}"}`
	code, resp := do(t, h, "PUT", "/api/v1/reviews/rev-1", edit)
	require.Equal(t, http.StatusOK, code, resp.Error)

	var d view.Detail
	require.NoError(t, json.Unmarshal(resp.Data, &d))
	assert.True(t, d.Edited)
	assert.Equal(t, "Edited", d.Content.Initiative.Summary)
	assert.True(t, collab.Review("rev-1").HasEdit())
}

func TestUpdateReview_StructuredBody(t *testing.T) {
	h, collab := setupTestServer(t, gatewaytest.PendingReview("rev-1"))

	code, _ := do(t, h, "PUT", "/api/v1/reviews/rev-1", `{"edited_json":{"foo":1}}`)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"foo":1}`, collab.Review("rev-1").EditedContent.String())
}

func TestUpdateReview_Invalid(t *testing.T) {
	h, collab := setupTestServer(t, gatewaytest.PendingReview("rev-1"))

	code, _ := do(t, h, "PUT", "/api/v1/reviews/rev-1", `{"edited_json":"{broken"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, collab.Review("rev-1").HasEdit())

	code, _ = do(t, h, "PUT", "/api/v1/reviews/rev-1", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h, "PUT", "/api/v1/reviews/rev-1", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestApproveReview(t *testing.T) {
	h, collab := setupTestServer(t, gatewaytest.PendingReview("rev-1"))
	collab.ApproveTickets = []string{"PM-1"}

	code, resp := do(t, h, "POST", "/api/v1/reviews/rev-1/approve", "")
	require.Equal(t, http.StatusOK, code, resp.Error)

	var out struct {
		Status      models.ReviewStatus `json:"status"`
		JiraTickets []string            `json:"jira_tickets_created"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.Equal(t, models.ReviewStatusCreated, out.Status)
	assert.Equal(t, []string{"PM-1"}, out.JiraTickets)

	// A second approve is not available once the review left pending.
	code, _ = do(t, h, "POST", "/api/v1/reviews/rev-1/approve", "")
	assert.Equal(t, http.StatusConflict, code)
}

func TestApproveReview_Rejected(t *testing.T) {
	h, collab := setupTestServer(t, gatewaytest.PendingReview("rev-1"))
	collab.ApproveFailure = "boom"

	code, resp := do(t, h, "POST", "/api/v1/reviews/rev-1/approve", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, resp.Error, "boom")
	assert.Equal(t, models.ReviewStatusPending, collab.Review("rev-1").Status)

	code, resp = do(t, h, "GET", "/api/v1/reviews/rev-1/actions", "")
	require.Equal(t, http.StatusOK, code)
	var actions []models.ReviewAction
	require.NoError(t, json.Unmarshal(resp.Data, &actions))
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionOutcomeFailed, actions[0].Outcome)
}

func TestRejectReview(t *testing.T) {
	h, collab := setupTestServer(t, gatewaytest.PendingReview("rev-1"), gatewaytest.PendingReview("rev-2"))

	code, _ := do(t, h, "POST", "/api/v1/reviews/rev-1/reject", `{"reason":"off target"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.ReviewStatusRejected, collab.Review("rev-1").Status)

	code, _ = do(t, h, "POST", "/api/v1/reviews/rev-2/reject", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.ReviewStatusRejected, collab.Review("rev-2").Status)
}

func TestListActions_ResolvesPrefix(t *testing.T) {
	h, _ := setupTestServer(t, gatewaytest.PendingReview("rev-alpha-1"), gatewaytest.PendingReview("rev-beta-2"))

	code, _ := do(t, h, "POST", "/api/v1/reviews/rev-alpha-1/reject", `{"reason":"off target"}`)
	require.Equal(t, http.StatusOK, code)

	code, resp := do(t, h, "GET", "/api/v1/reviews/rev-al/actions", "")
	require.Equal(t, http.StatusOK, code, resp.Error)
	var actions []models.ReviewAction
	require.NoError(t, json.Unmarshal(resp.Data, &actions))
	require.Len(t, actions, 1)
	assert.Equal(t, "rev-alpha-1", actions[0].ReviewID)
	assert.Equal(t, models.ActionReject, actions[0].Kind)

	code, _ = do(t, h, "GET", "/api/v1/reviews/rev-/actions", "")
	assert.Equal(t, http.StatusBadRequest, code, "ambiguous prefix")

	code, _ = do(t, h, "GET", "/api/v1/reviews/zzz/actions", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGenerate(t *testing.T) {
	h, collab := setupTestServer(t)

	code, resp := do(t, h, "POST", "/api/v1/generate", `{"content":"Build a thing","additional_context":"Q3"}`)
	require.Equal(t, http.StatusCreated, code, resp.Error)
	var out map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	require.NotEmpty(t, out["id"])

	r := collab.Review(out["id"])
	require.NotNil(t, r)
	assert.Equal(t, "Build a thing", r.InputContent)
	assert.Equal(t, models.ReviewSourceManual, r.Source)

	code, _ = do(t, h, "POST", "/api/v1/generate", `{"content":"  "}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCORSPreflight(t *testing.T) {
	h, _ := setupTestServer(t)
	req := httptest.NewRequest("OPTIONS", "/api/v1/reviews", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestErrorStatus_Unreachable(t *testing.T) {
	collab := gatewaytest.NewServer(t)
	client := collab.Client(t)
	collab.Close()

	h := NewServer(review.NewService(client, nil), 0).Router()
	code, resp := do(t, h, "GET", "/api/v1/reviews", "")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.False(t, resp.Success)
}
