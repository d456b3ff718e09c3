package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripUndefined(t *testing.T) {
	in := map[string]any{
		"keep":  "x",
		"drop":  nil,
		"inner": map[string]any{"a": nil, "b": 1},
		"list":  []any{nil, map[string]any{"c": nil, "d": true}},
	}

	out := StripUndefined(in).(map[string]any)

	assert.NotContains(t, out, "drop")
	assert.Equal(t, map[string]any{"b": 1}, out["inner"])
	list := out["list"].([]any)
	require.Len(t, list, 2)
	assert.Nil(t, list[0])
	assert.Equal(t, map[string]any{"d": true}, list[1])
}

func TestEncodeDocumentOmitsNulls(t *testing.T) {
	type doc struct {
		Name  string  `json:"name"`
		Extra *string `json:"extra"`
		Score float64 `json:"score"`
	}

	raw, err := EncodeDocument(doc{Name: "n", Score: 0.125})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.NotContains(t, got, "extra")
	assert.Equal(t, 0.125, got["score"])
}

func TestSessionDocumentDates(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 123_000_000, time.UTC)
	session := ChatSession{
		ID:        "s1",
		Title:     "Hello",
		Messages:  []Message{{Role: RoleUser, Content: "Hello"}},
		CreatedAt: created,
		UpdatedAt: created.Add(time.Minute),
	}

	raw, err := encodeSession(session)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, "2024-03-01T10:00:00.123Z", generic["createdAt"])
	assert.Equal(t, "2024-03-01T10:01:00.123Z", generic["updatedAt"])

	back, err := decodeSession(raw)
	require.NoError(t, err)
	assert.True(t, back.CreatedAt.Equal(session.CreatedAt))
	assert.True(t, back.UpdatedAt.Equal(session.UpdatedAt))
	assert.Equal(t, session.Messages, back.Messages)
}

func TestFormatTimeSortsLexicographically(t *testing.T) {
	earlier := FormatTime(time.Date(2024, 1, 9, 23, 59, 59, 0, time.UTC))
	later := FormatTime(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	assert.Less(t, earlier, later)
}
