package content

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const directDoc = `{
  "initiative": {
    "summary": "S",
    "description": "D",
    "epics": [
      {"summary": "E", "description": "d", "stories": [
        {"asA": "a", "iWant": "b", "soThat": "c", "acceptanceCriteria": ["x"]}
      ]}
    ]
  }
}`

const richDirectDoc = `{
  "initiative": {
    "key": "INIT-1",
    "summary": "Checkout revamp",
    "description": "Rebuild checkout",
    "stakeholders": ["Product", "Finance"],
    "epics": [
      {"summary": "Cart", "description": "cart work", "stories": [
        {"asA": "shopper", "iWant": "to edit my cart", "soThat": "I buy the right things", "acceptanceCriteria": ["qty editable"]},
        {"asA": "shopper", "iWant": "to save my cart", "soThat": "I can come back", "acceptanceCriteria": []}
      ]},
      {"summary": "Payment", "description": "payment work", "stories": [
        {"asA": "shopper", "iWant": "to pay by card", "soThat": "checkout is fast", "acceptanceCriteria": ["visa", "mc"]}
      ]},
      {"summary": "Receipts", "description": "no stories yet", "stories": []}
    ]
  },
  "stakeholderContext": {"Product": "owns scope", "Finance": "owns pricing"},
  "readyForJira": true
}`

const legacyDoc = `{
  "data": [
    {
      "initiative": {
        "key": "INIT-1",
        "summary": "Checkout revamp",
        "description": "Rebuild checkout",
        "stakeholders": ["Product", "Finance"],
        "epics": [
          {"summary": "Cart", "description": "cart work", "stories": [
            {"asA": "shopper", "iWant": "to edit my cart", "soThat": "I buy the right things", "acceptanceCriteria": ["qty editable"]},
            {"asA": "shopper", "iWant": "to save my cart", "soThat": "I can come back", "acceptanceCriteria": []}
          ]},
          {"summary": "Payment", "description": "payment work", "stories": [
            {"asA": "shopper", "iWant": "to pay by card", "soThat": "checkout is fast", "acceptanceCriteria": ["visa", "mc"]}
          ]},
          {"summary": "Receipts", "description": "no stories yet", "stories": []}
        ]
      },
      "stakeholderContext": {"Product": "owns scope", "Finance": "owns pricing"}
    }
  ],
  "readyForJira": true
}`

func TestNormalize_DirectScenario(t *testing.T) {
	c, err := Normalize(Text(directDoc))
	require.NoError(t, err)

	assert.Equal(t, 1, c.TotalStories)
	stats := c.Stats()
	assert.Equal(t, 1, stats.InitiativeCount)
	assert.Equal(t, 1, stats.EpicCount)
	assert.Equal(t, 1, stats.StoryCount)
	assert.Equal(t, "S", c.Summary())
	assert.Equal(t, []string{"x"}, c.Initiative.Epics[0].Stories[0].AcceptanceCriteria)
	assert.False(t, c.ReadyForJira)
}

func TestNormalize_DirectCounts(t *testing.T) {
	c, err := Normalize(Text(richDirectDoc))
	require.NoError(t, err)

	stats := c.Stats()
	assert.Equal(t, 1, stats.InitiativeCount)
	assert.Equal(t, 3, stats.EpicCount)
	assert.Equal(t, 3, stats.StoryCount)
	assert.Equal(t, 3, c.TotalStories, "recomputed total must match the per-epic sum")
	assert.True(t, c.ReadyForJira)
	assert.Equal(t, "owns pricing", c.StakeholderContext["Finance"])
	assert.Equal(t, []string{"Product", "Finance"}, c.Initiative.Stakeholders)
}

func TestNormalize_LegacyMatchesDirect(t *testing.T) {
	direct, err := Normalize(Text(richDirectDoc))
	require.NoError(t, err)

	legacy, err := Normalize(Text(legacyDoc))
	require.NoError(t, err)

	assert.Equal(t, direct, legacy)
}

func TestNormalize_StructuredAndTextAgree(t *testing.T) {
	fromText, err := Normalize(Text(richDirectDoc))
	require.NoError(t, err)

	fromDoc, err := Normalize(Structured([]byte(richDirectDoc)))
	require.NoError(t, err)

	assert.Equal(t, fromText, fromDoc)
}

func TestNormalize_Idempotent(t *testing.T) {
	for name, doc := range map[string]string{
		"direct":   directDoc,
		"rich":     richDirectDoc,
		"legacy":   legacyDoc,
		"provided": `{"initiative":{"summary":"S","description":"D","epics":[]},"totalStories":7,"stakeholderContext":{}}`,
	} {
		t.Run(name, func(t *testing.T) {
			first, err := Normalize(Text(doc))
			require.NoError(t, err)

			encoded, err := Encode(first)
			require.NoError(t, err)

			second, err := Normalize(Text(string(encoded)))
			require.NoError(t, err)
			assert.Equal(t, first, second)

			again, err := Normalize(Structured(encoded))
			require.NoError(t, err)
			assert.Equal(t, first, again)
		})
	}
}

func TestNormalize_DirectWinsOverLegacy(t *testing.T) {
	doc := `{
		"initiative": {"summary": "direct", "description": "", "epics": []},
		"data": [{"initiative": {"summary": "legacy", "description": "", "epics": []}}]
	}`
	c, err := Normalize(Text(doc))
	require.NoError(t, err)
	assert.Equal(t, "direct", c.Summary())
}

func TestNormalize_LegacyUsesFirstElement(t *testing.T) {
	doc := `{"data": [
		{"initiative": {"summary": "first", "description": "", "epics": []}},
		{"initiative": {"summary": "second", "description": "", "epics": []}}
	]}`
	c, err := Normalize(Text(doc))
	require.NoError(t, err)
	assert.Equal(t, "first", c.Summary())
}

func TestNormalize_ProvidedTotalStoriesKept(t *testing.T) {
	doc := `{"initiative": {"summary": "S", "description": "", "epics": []}, "totalStories": 4}`
	c, err := Normalize(Text(doc))
	require.NoError(t, err)
	assert.Equal(t, 4, c.TotalStories)
	assert.Equal(t, 0, c.Stats().StoryCount)
}

func TestNormalize_InvalidFormat(t *testing.T) {
	_, err := Normalize(Text("{not json"))
	require.Error(t, err)

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, InvalidFormat, cerr.Kind)
	assert.NotEmpty(t, cerr.Msg, "parser message should be carried")
	assert.True(t, errors.Is(err, ErrInvalidFormat))
	assert.Contains(t, err.Error(), "invalid JSON content")
}

func TestNormalize_Absent(t *testing.T) {
	for name, raw := range map[string]Raw{
		"zero":  {},
		"blank": Text("   "),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(raw)
			assert.True(t, errors.Is(err, ErrInvalidFormat))
		})
	}
}

func TestNormalize_NoInitiative(t *testing.T) {
	cases := map[string]string{
		"empty object":       `{}`,
		"array top level":    `[{"initiative": {}}]`,
		"scalar":             `42`,
		"initiative string":  `{"initiative": "oops"}`,
		"empty data":         `{"data": []}`,
		"data without init":  `{"data": [{"foo": 1}]}`,
		"data not array":     `{"data": {"initiative": {"summary": "x"}}}`,
		"null initiative":    `{"initiative": null}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(Text(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNoInitiative), "got %v", err)
			assert.False(t, errors.Is(err, ErrInvalidFormat))
		})
	}
}

func TestNormalize_MistypedLeavesAreCoerced(t *testing.T) {
	doc := `{"initiative": {
		"key": 7,
		"summary": "Checkout revamp",
		"stakeholders": "Product",
		"epics": [{"key": 12, "summary": "Cart", "stories": [
			{"asA": "shopper", "iWant": "to pay", "soThat": "I leave", "acceptanceCriteria": "one criterion"}
		]}]
	}}`
	c, err := Normalize(Text(doc))
	require.NoError(t, err)
	assert.Equal(t, "Checkout revamp", c.Summary())
	assert.Equal(t, Stats{InitiativeCount: 1, EpicCount: 1, StoryCount: 1}, c.Stats())
	assert.Equal(t, "7", c.Initiative.Key)
	assert.Equal(t, []string{"Product"}, c.Initiative.Stakeholders)
	assert.Equal(t, "12", c.Initiative.Epics[0].Key)
	assert.Equal(t, []string{"one criterion"}, c.Initiative.Epics[0].Stories[0].AcceptanceCriteria)
}

func TestNormalize_MistypedContainerIsEmpty(t *testing.T) {
	c, err := Normalize(Text(`{"initiative": {"summary": "S", "epics": "nope"}}`))
	require.NoError(t, err)
	assert.Equal(t, "S", c.Summary())
	assert.Equal(t, Stats{InitiativeCount: 1}, c.Stats())
}

func TestEncode_DirectSchema(t *testing.T) {
	c, err := Normalize(Text(legacyDoc))
	require.NoError(t, err)

	b, err := Encode(c)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Contains(t, decoded, "initiative")
	assert.NotContains(t, decoded, "data")
	assert.EqualValues(t, 3, decoded["totalStories"])
	assert.True(t, strings.HasPrefix(string(b), "{\n  \""), "should be indented")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(`{"a": 1}`))
	assert.NoError(t, Validate(`[]`))
	assert.True(t, errors.Is(Validate(`{"a": `), ErrInvalidFormat))
}

func TestFormatJSON(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", FormatJSON(`{"a":1}`))
	assert.Equal(t, "{broken", FormatJSON("{broken"))
}
