package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSearchTrigger(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantQuery string
		wantFound bool
	}{
		{"embedded", "Let me look that up...[WEB_SEARCH:capital of France]...", "capital of France", true},
		{"whole reply", "[WEB_SEARCH:latest Go release]", "latest Go release", true},
		{"trimmed", "[WEB_SEARCH:  spaced query  ]", "spaced query", true},
		{"first marker wins", "[WEB_SEARCH:one] and [WEB_SEARCH:two]", "one", true},
		{"no marker", "Paris is the capital of France.", "", false},
		{"other brackets", "See [1] and [note: this]", "", false},
		{"wrong case", "[web_search:query]", "", false},
		{"empty query", "[WEB_SEARCH:]", "", false},
		{"blank query", "[WEB_SEARCH:   ]", "", false},
		{"unterminated", "[WEB_SEARCH:query", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, found := ParseSearchTrigger(tt.reply)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantQuery, query)
		})
	}
}
