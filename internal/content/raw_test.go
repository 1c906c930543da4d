package content

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaw_UnmarshalVariants(t *testing.T) {
	var holder struct {
		Content Raw `json:"content"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"content": "{\"initiative\":{}}"}`), &holder))
	assert.True(t, holder.Content.IsText())
	assert.Equal(t, `{"initiative":{}}`, holder.Content.String())

	require.NoError(t, json.Unmarshal([]byte(`{"content": {"initiative": {}}}`), &holder))
	assert.True(t, holder.Content.IsStructured())
	assert.JSONEq(t, `{"initiative": {}}`, string(holder.Content.Bytes()))

	require.NoError(t, json.Unmarshal([]byte(`{"content": null}`), &holder))
	assert.True(t, holder.Content.IsAbsent())
	assert.True(t, holder.Content.IsZero())
}

func TestRaw_MarshalPreservesForm(t *testing.T) {
	b, err := json.Marshal(Text(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, `"{\"a\":1}"`, string(b))

	b, err = json.Marshal(Structured([]byte(`{"a":1}`)))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(b))

	b, err = json.Marshal(Raw{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestRaw_StringIndentsStructured(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", Structured([]byte(`{"a":1}`)).String())
	assert.Equal(t, "", Raw{}.String())
}

func TestRaw_BlankTextIsAbsent(t *testing.T) {
	assert.True(t, Text("").IsAbsent())
	assert.False(t, Text("").IsZero())
	assert.False(t, Text("x").IsAbsent())
}

func TestFromValue(t *testing.T) {
	r, err := FromValue(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.True(t, r.IsStructured())
	assert.JSONEq(t, `{"a":1}`, string(r.Bytes()))
}
