package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/traegpt/internal/store"
)

func strPtr(s string) *string { return &s }

func stylePtr(s store.AnswerStyle) *store.AnswerStyle { return &s }

func TestBuildSystemPromptDefaults(t *testing.T) {
	prompt := BuildSystemPrompt(store.UserPreferences{})

	assert.True(t, strings.HasPrefix(prompt, promptPreamble))
	assert.Equal(t, strings.Join([]string{promptPreamble, promptFormatting, promptSearch}, " "), prompt)
	assert.Contains(t, prompt, "[WEB_SEARCH:<query>]")
}

func TestBuildSystemPromptOrder(t *testing.T) {
	prompt := BuildSystemPrompt(store.UserPreferences{
		UserName:          strPtr("Ada"),
		UserInterests:     strPtr("compilers"),
		AnswerStyle:       stylePtr(store.AnswerConcise),
		CustomPersonality: strPtr("Speak like a pirate."),
	})

	markers := []string{
		promptPreamble,
		promptFormatting,
		promptSearch,
		"The user's name is Ada.",
		"The user is interested in: compilers.",
		answerStyleClauses[store.AnswerConcise],
		"Speak like a pirate.",
	}
	last := -1
	for _, m := range markers {
		idx := strings.Index(prompt, m)
		require.GreaterOrEqual(t, idx, 0, "missing %q", m)
		assert.Greater(t, idx, last, "%q out of order", m)
		last = idx
	}
	assert.True(t, strings.HasSuffix(prompt, "Speak like a pirate."))
}

func TestBuildSystemPromptStyles(t *testing.T) {
	for style, clause := range answerStyleClauses {
		prompt := BuildSystemPrompt(store.UserPreferences{AnswerStyle: stylePtr(style)})
		assert.Contains(t, prompt, clause)
		for other, otherClause := range answerStyleClauses {
			if other != style {
				assert.NotContains(t, prompt, otherClause)
			}
		}
	}

	unknown := BuildSystemPrompt(store.UserPreferences{AnswerStyle: stylePtr("sarcastic")})
	assert.Equal(t, BuildSystemPrompt(store.UserPreferences{}), unknown)
}

func TestBuildSystemPromptIsDeterministic(t *testing.T) {
	prefs := store.UserPreferences{UserName: strPtr("Ada"), AnswerStyle: stylePtr(store.AnswerFriendly)}
	assert.Equal(t, BuildSystemPrompt(prefs), BuildSystemPrompt(prefs))
}

func TestBuildSystemPromptSkipsBlankFields(t *testing.T) {
	prompt := BuildSystemPrompt(store.UserPreferences{UserName: strPtr("  "), UserInterests: strPtr("")})
	assert.NotContains(t, prompt, "The user's name is")
	assert.NotContains(t, prompt, "interested in")
}

func TestSearchPromptMatchesParser(t *testing.T) {
	query, ok := ParseSearchTrigger(strings.Replace(promptSearch, "<query>", "go generics", 1))
	require.True(t, ok)
	assert.Equal(t, "go generics", query)
}
