package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle(t *testing.T) {
	thirty := strings.Repeat("a", 30)
	thirtyOne := strings.Repeat("b", 31)

	tests := []struct {
		name     string
		messages []Message
		want     string
	}{
		{"empty list", nil, DefaultTitle},
		{"no user message", []Message{{Role: RoleAssistant, Content: "hi"}, {Role: RoleSystem, Content: "results"}}, DefaultTitle},
		{"short", []Message{{Role: RoleUser, Content: "Hello"}}, "Hello"},
		{"exactly thirty", []Message{{Role: RoleUser, Content: thirty}}, thirty},
		{"thirty one", []Message{{Role: RoleUser, Content: thirtyOne}}, strings.Repeat("b", 30) + "..."},
		{"first user message wins", []Message{
			{Role: RoleAssistant, Content: "welcome"},
			{Role: RoleUser, Content: "first"},
			{Role: RoleUser, Content: "second"},
		}, "first"},
		{"counts characters not bytes", []Message{{Role: RoleUser, Content: strings.Repeat("é", 31)}}, strings.Repeat("é", 30) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.messages))
		})
	}
}
