package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/pmo/internal/content"
	"github.com/joescharf/pmo/internal/models"
	"github.com/joescharf/pmo/internal/review"
	"github.com/joescharf/pmo/internal/store"
	"github.com/joescharf/pmo/internal/view"
)

// Server exposes review operations as MCP tools.
type Server struct {
	svc        *review.Service
	previewLen int
}

// NewServer creates the MCP server wrapper. previewLen bounds list previews;
// zero uses the default.
func NewServer(svc *review.Service, previewLen int) *Server {
	if previewLen <= 0 {
		previewLen = content.DefaultPreviewLength
	}
	return &Server{svc: svc, previewLen: previewLen}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("pmo", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listReviewsTool())
	srv.AddTool(s.showReviewTool())
	srv.AddTool(s.updateReviewTool())
	srv.AddTool(s.approveReviewTool())
	srv.AddTool(s.rejectReviewTool())
	srv.AddTool(s.submitContentTool())
	srv.AddTool(s.healthTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// pmo_list_reviews
func (s *Server) listReviewsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("pmo_list_reviews",
		mcp.WithDescription("List reviews from the PM orchestration service, newest first. Returns a JSON array with id, status, source, preview text, and content stats."),
		mcp.WithString("status", mcp.Description("Filter by status"), mcp.Enum("pending", "approved", "rejected", "created")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of reviews to return")),
	)
	return tool, s.handleListReviews
}

func (s *Server) handleListReviews(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.ReviewFilter{
		Status: models.ReviewStatus(request.GetString("status", "")),
		Limit:  request.GetInt("limit", 0),
	}
	reviews, err := s.svc.List(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list reviews: %v", err)), nil
	}
	return jsonResult(view.ProjectAll(reviews, s.previewLen))
}

// pmo_show_review
func (s *Server) showReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("pmo_show_review",
		mcp.WithDescription("Show one review: the normalized initiative content (or why it could not be read), the progress steps, and the actions available in its current status."),
		mcp.WithString("review_id", mcp.Required(), mcp.Description("Review ID or unique prefix")),
	)
	return tool, s.handleShowReview
}

func (s *Server) handleShowReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("review_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: review_id"), nil
	}
	r, err := s.svc.Resolve(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get review: %v", err)), nil
	}
	return jsonResult(view.Describe(r, s.previewLen))
}

// pmo_update_review
func (s *Server) updateReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("pmo_update_review",
		mcp.WithDescription("Replace the content of a pending review with an edited JSON document. The document must be valid JSON."),
		mcp.WithString("review_id", mcp.Required(), mcp.Description("Review ID or unique prefix")),
		mcp.WithString("edited_json", mcp.Required(), mcp.Description("Edited content as JSON text")),
	)
	return tool, s.handleUpdateReview
}

func (s *Server) handleUpdateReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("review_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: review_id"), nil
	}
	edited, err := request.RequireString("edited_json")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: edited_json"), nil
	}

	r, err := s.svc.Resolve(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get review: %v", err)), nil
	}
	updated, err := s.svc.Save(ctx, r, edited)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save review: %v", err)), nil
	}
	return jsonResult(view.Describe(updated, s.previewLen))
}

// pmo_approve_review
func (s *Server) approveReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("pmo_approve_review",
		mcp.WithDescription("Approve a pending review. The service creates Jira tickets from the active content and returns their keys."),
		mcp.WithString("review_id", mcp.Required(), mcp.Description("Review ID or unique prefix")),
	)
	return tool, s.handleApproveReview
}

func (s *Server) handleApproveReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("review_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: review_id"), nil
	}
	r, err := s.svc.Resolve(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get review: %v", err)), nil
	}
	updated, result, err := s.svc.Approve(ctx, r)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to approve review: %v", err)), nil
	}

	out := struct {
		ID          string              `json:"id"`
		Status      models.ReviewStatus `json:"status"`
		JiraTickets []string            `json:"jira_tickets_created"`
		Message     string              `json:"message,omitempty"`
	}{
		ID:          updated.ID,
		Status:      updated.Status,
		JiraTickets: result.JiraTickets,
		Message:     result.Message,
	}
	if out.JiraTickets == nil {
		out.JiraTickets = []string{}
	}
	return jsonResult(out)
}

// pmo_reject_review
func (s *Server) rejectReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("pmo_reject_review",
		mcp.WithDescription("Reject a pending review. No tickets are created."),
		mcp.WithString("review_id", mcp.Required(), mcp.Description("Review ID or unique prefix")),
		mcp.WithString("reason", mcp.Description("Why the content was rejected")),
	)
	return tool, s.handleRejectReview
}

func (s *Server) handleRejectReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("review_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: review_id"), nil
	}
	r, err := s.svc.Resolve(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get review: %v", err)), nil
	}
	updated, err := s.svc.Reject(ctx, r, request.GetString("reason", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to reject review: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Rejected review %s (status: %s)", view.ShortID(updated.ID), updated.Status)), nil
}

// pmo_submit_content
func (s *Server) submitContentTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("pmo_submit_content",
		mcp.WithDescription("Submit source text (meeting notes, a brief) for ticket generation. Returns the ID of the new pending review."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Source text to generate tickets from")),
		mcp.WithString("additional_context", mcp.Description("Extra guidance for generation")),
	)
	return tool, s.handleSubmitContent
}

func (s *Server) handleSubmitContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: content"), nil
	}
	id, err := s.svc.Submit(ctx, text, request.GetString("additional_context", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to submit content: %v", err)), nil
	}
	return jsonResult(map[string]string{"id": id})
}

// pmo_health
func (s *Server) healthTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("pmo_health",
		mcp.WithDescription("Check that the PM orchestration service and its database are reachable."),
	)
	return tool, s.handleHealth
}

func (s *Server) handleHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h, err := s.svc.Health(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("service unavailable: %v", err)), nil
	}
	return jsonResult(h)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
