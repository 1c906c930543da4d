package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joescharf/pmo/internal/content"
)

// ReviewStatus represents the lifecycle state of a review.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
	ReviewStatusCreated  ReviewStatus = "created"
)

// ReviewSource records where a review came from.
type ReviewSource string

const (
	ReviewSourceWebhook ReviewSource = "webhook"
	ReviewSourceManual  ReviewSource = "manual"
)

// Label returns the display name for the source.
func (s ReviewSource) Label() string {
	switch s {
	case ReviewSourceWebhook:
		return "n8n Pipeline"
	case ReviewSourceManual:
		return "Manual Generation"
	default:
		return string(s)
	}
}

// ContentType is the kind of artifact a review holds.
type ContentType string

const (
	ContentTypeJiraTickets ContentType = "jira-tickets"
	ContentTypePRD         ContentType = "prd"
	ContentTypeMessage     ContentType = "message"
	ContentTypeStrategyDoc ContentType = "strategy-doc"
)

// PreviewStats is the summary the collaborator computes for list views.
type PreviewStats struct {
	Summary         string `json:"summary,omitempty"`
	InitiativeCount int    `json:"initiative_count"`
	EpicCount       int    `json:"epic_count"`
	StoryCount      int    `json:"story_count"`
}

// Review is one unit of generated content awaiting a human decision.
type Review struct {
	ID                string        `json:"id"`
	Source            ReviewSource  `json:"source"`
	Type              ContentType   `json:"type"`
	Status            ReviewStatus  `json:"status"`
	InputContent      string        `json:"input_content"`
	ContextUsed       string        `json:"context_used,omitempty"`
	AdditionalContext string        `json:"additional_context,omitempty"`
	GeneratedContent  content.Raw   `json:"generated_json"`
	EditedContent     content.Raw   `json:"edited_json,omitzero"`
	TicketReferences  TicketRefs    `json:"jira_tickets,omitempty"`
	OutputLocation    string        `json:"output_location,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	ReviewedAt        *time.Time    `json:"reviewed_at,omitempty"`
	CreatedBy         string        `json:"created_by,omitempty"`
	Preview           *PreviewStats `json:"preview,omitempty"`
}

// timestampLayouts are the forms the collaborator has been seen to send.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON decodes a review, reading timestamps leniently. A timestamp
// in an unknown layout decodes as the zero time instead of failing the record.
func (r *Review) UnmarshalJSON(data []byte) error {
	type plain Review
	aux := struct {
		*plain
		CreatedAt  json.RawMessage `json:"created_at"`
		ReviewedAt json.RawMessage `json:"reviewed_at"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.CreatedAt = time.Time{}
	if t, ok := parseTimestamp(aux.CreatedAt); ok {
		r.CreatedAt = t
	}
	r.ReviewedAt = nil
	if t, ok := parseTimestamp(aux.ReviewedAt); ok {
		r.ReviewedAt = &t
	}
	return nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, bool) {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ActiveContent returns the content that is authoritative for display and
// ticket creation: the edit when one exists, the generated content otherwise.
// An edit that fails to decode stays active so its error is reported.
func (r *Review) ActiveContent() content.Raw {
	if !r.EditedContent.IsAbsent() {
		return r.EditedContent
	}
	return r.GeneratedContent
}

// HasEdit reports whether a human edit overrides the generated content.
func (r *Review) HasEdit() bool {
	return !r.EditedContent.IsAbsent()
}

// Clone returns a copy that shares no mutable state with r.
func (r *Review) Clone() *Review {
	c := *r
	if r.TicketReferences != nil {
		c.TicketReferences = append(TicketRefs(nil), r.TicketReferences...)
	}
	if r.ReviewedAt != nil {
		t := *r.ReviewedAt
		c.ReviewedAt = &t
	}
	if r.Preview != nil {
		p := *r.Preview
		c.Preview = &p
	}
	return &c
}

// TicketRefs lists identifiers of externally created work items.
// The collaborator sends them as an array, a JSON-encoded array string,
// or a comma-separated string.
type TicketRefs []string

func (t *TicketRefs) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*t = nil
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err == nil {
		*t = refsFromItems(items)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if nerr := json.Unmarshal(data, &n); nerr != nil {
			return fmt.Errorf("ticket references: %w", err)
		}
		*t = TicketRefs{n.String()}
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*t = nil
		return nil
	}
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &items); err == nil {
			*t = refsFromItems(items)
			return nil
		}
	}

	var refs []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			refs = append(refs, part)
		}
	}
	*t = refs
	return nil
}

// refsFromItems keeps string items as they are and other scalars in their
// JSON text form. Nulls and blanks are dropped.
func refsFromItems(items []json.RawMessage) TicketRefs {
	refs := make(TicketRefs, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			s = string(item)
		}
		if s = strings.TrimSpace(s); s != "" && s != "null" {
			refs = append(refs, s)
		}
	}
	return refs
}

// String joins the references for display.
func (t TicketRefs) String() string {
	return strings.Join(t, ", ")
}
