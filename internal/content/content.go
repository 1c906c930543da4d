// Package content normalizes generated planning content (initiatives, epics,
// stories) from either of the collaborator's schemas into one canonical form.
package content

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Story is a user story with its acceptance criteria.
type Story struct {
	Key                string   `json:"key,omitempty"`
	AsA                string   `json:"asA"`
	IWant              string   `json:"iWant"`
	SoThat             string   `json:"soThat"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
}

// Epic groups stories under an initiative.
type Epic struct {
	Key         string  `json:"key,omitempty"`
	Summary     string  `json:"summary"`
	Description string  `json:"description"`
	Stories     []Story `json:"stories"`
}

// Initiative is the root planning artifact.
type Initiative struct {
	Key          string   `json:"key,omitempty"`
	Summary      string   `json:"summary"`
	Description  string   `json:"description"`
	Stakeholders []string `json:"stakeholders"`
	Epics        []Epic   `json:"epics"`
}

// Canonical is the single normalized representation of generated content.
// It always serializes in the direct-initiative schema.
type Canonical struct {
	Initiative         *Initiative       `json:"initiative"`
	StakeholderContext map[string]string `json:"stakeholderContext"`
	TotalStories       int               `json:"totalStories"`
	ReadyForJira       bool              `json:"readyForJira"`
}

// Stats summarizes the size of canonical content.
type Stats struct {
	InitiativeCount int `json:"initiative_count"`
	EpicCount       int `json:"epic_count"`
	StoryCount      int `json:"story_count"`
}

// Stats derives counts from the initiative tree.
func (c *Canonical) Stats() Stats {
	if c == nil || c.Initiative == nil {
		return Stats{}
	}
	return Stats{
		InitiativeCount: 1,
		EpicCount:       len(c.Initiative.Epics),
		StoryCount:      countStories(c.Initiative),
	}
}

// Summary returns the initiative summary, or "" when there is none.
func (c *Canonical) Summary() string {
	if c == nil || c.Initiative == nil {
		return ""
	}
	return c.Initiative.Summary
}

func countStories(ini *Initiative) int {
	n := 0
	for _, e := range ini.Epics {
		n += len(e.Stories)
	}
	return n
}

// Normalize resolves raw content into its canonical form.
// Failures are always *Error; Normalize never panics on bad input.
func Normalize(raw Raw) (*Canonical, error) {
	if raw.IsAbsent() {
		return nil, &Error{Kind: InvalidFormat, Msg: "content is empty"}
	}

	doc := raw.Bytes()
	var probe any
	if err := json.Unmarshal(doc, &probe); err != nil {
		return nil, invalidFormat(err)
	}
	if _, ok := probe.(map[string]any); !ok {
		return nil, &Error{Kind: NoInitiative}
	}

	for _, s := range schemas {
		m, ok := s.match(doc)
		if !ok {
			continue
		}
		return m.canonical(doc), nil
	}
	return nil, &Error{Kind: NoInitiative}
}

// Encode serializes canonical content in the direct schema, indented for editing.
func Encode(c *Canonical) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Validate checks that text is decodable JSON, as required before saving an edit.
func Validate(text string) error {
	var probe any
	if err := json.Unmarshal([]byte(text), &probe); err != nil {
		return invalidFormat(err)
	}
	return nil
}

// FormatJSON pretty-prints text when it is valid JSON and returns it unchanged otherwise.
func FormatJSON(text string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(text), "", "  "); err != nil {
		return text
	}
	return buf.String()
}
