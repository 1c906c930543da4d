// Package view projects reviews into list-level text: a bounded preview
// and a statistics line. Functions here never mutate the review.
package view

import (
	"fmt"
	"time"

	"github.com/joescharf/pmo/internal/content"
	"github.com/joescharf/pmo/internal/models"
	"github.com/joescharf/pmo/internal/workflow"
)

// NoContent is shown when a review has nothing to preview.
const NoContent = "No content available"

// PreviewText returns a preview of at most maxLen characters plus an ellipsis.
// It prefers the server-supplied summary, then the initiative summary of the
// active content, then the original input text.
func PreviewText(r *models.Review, maxLen int) string {
	if r.Preview != nil && r.Preview.Summary != "" {
		return content.Truncate(r.Preview.Summary, maxLen)
	}
	if c, err := content.Normalize(r.ActiveContent()); err == nil && c.Summary() != "" {
		return content.Truncate(c.Summary(), maxLen)
	}
	if r.InputContent != "" {
		return content.Truncate(r.InputContent, maxLen)
	}
	return NoContent
}

// StatsText returns e.g. "1 initiative, 3 epics, 12 stories". Server-supplied
// preview counts win over recomputation. It is empty when the content cannot
// be normalized.
func StatsText(r *models.Review) string {
	if r.Preview != nil {
		return formatStats(r.Preview.InitiativeCount, r.Preview.EpicCount, r.Preview.StoryCount)
	}
	c, err := content.Normalize(r.ActiveContent())
	if err != nil {
		return ""
	}
	s := c.Stats()
	return formatStats(s.InitiativeCount, s.EpicCount, s.StoryCount)
}

func formatStats(initiatives, epics, stories int) string {
	return fmt.Sprintf("%s, %s, %s",
		plural(initiatives, "initiative"),
		plural(epics, "epic"),
		plural(stories, "story", "stories"),
	)
}

func plural(n int, singular string, pluralForm ...string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	p := singular + "s"
	if len(pluralForm) > 0 {
		p = pluralForm[0]
	}
	return fmt.Sprintf("%d %s", n, p)
}

// ShortID returns the first 8 characters of id for compact display.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// Summary is the list-level projection of a review.
type Summary struct {
	ID          string              `json:"id"`
	ShortID     string              `json:"short_id"`
	Status      models.ReviewStatus `json:"status"`
	StatusLabel string              `json:"status_label"`
	Source      models.ReviewSource `json:"source"`
	SourceLabel string              `json:"source_label"`
	Type        models.ContentType  `json:"type"`
	Preview     string              `json:"preview"`
	Stats       string              `json:"stats"`
	Edited      bool                `json:"edited"`
	Tickets     []string            `json:"tickets,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	ReviewedAt  *time.Time          `json:"reviewed_at,omitempty"`
}

// Project builds the list projection of r.
func Project(r *models.Review, maxLen int) Summary {
	return Summary{
		ID:          r.ID,
		ShortID:     ShortID(r.ID),
		Status:      r.Status,
		StatusLabel: workflow.Label(r.Status),
		Source:      r.Source,
		SourceLabel: r.Source.Label(),
		Type:        r.Type,
		Preview:     PreviewText(r, maxLen),
		Stats:       StatsText(r),
		Edited:      r.HasEdit(),
		Tickets:     r.TicketReferences,
		CreatedAt:   r.CreatedAt,
		ReviewedAt:  r.ReviewedAt,
	}
}

// ProjectAll builds list projections in order.
func ProjectAll(reviews []*models.Review, maxLen int) []Summary {
	out := make([]Summary, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, Project(r, maxLen))
	}
	return out
}

// Detail is the single-review projection: canonical content (or the reason it
// could not be produced) and the workflow view.
type Detail struct {
	Summary
	Review       *models.Review     `json:"review"`
	Content      *content.Canonical `json:"content,omitempty"`
	ContentError string             `json:"content_error,omitempty"`
	ContentStats content.Stats      `json:"content_stats"`
	Progress     workflow.View      `json:"progress"`
	Actions      []workflow.Action  `json:"actions"`
}

// Describe builds the detail projection of r. Normalization errors are
// reported in ContentError instead of being recovered.
func Describe(r *models.Review, maxLen int) Detail {
	d := Detail{
		Summary:  Project(r, maxLen),
		Review:   r,
		Progress: workflow.Steps(r.Status),
		Actions:  workflow.Available(r.Status),
	}
	if d.Actions == nil {
		d.Actions = []workflow.Action{}
	}
	c, err := content.Normalize(r.ActiveContent())
	if err != nil {
		d.ContentError = err.Error()
		return d
	}
	d.Content = c
	d.ContentStats = c.Stats()
	return d
}
