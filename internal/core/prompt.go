package core

import (
	"strings"

	"gwi.com/traegpt/internal/store"
)

const (
	promptPreamble = "You are TraeGPT, a helpful AI assistant. You can help with various tasks including coding, analysis, and general questions."

	promptFormatting = "Format your answers in Markdown. Use short paragraphs, bulleted or numbered lists for steps and options, " +
		"headings only for long answers, and fenced code blocks with a language tag for any code."

	promptSearch = "You can search the web when a question needs current or factual information you are unsure about. " +
		"To search, reply with " + searchMarkerOpen + "<query>" + searchMarkerClose + " containing a short search query and nothing else. " +
		"The search results will be sent back to you as a system message; answer the user's question from them."
)

var answerStyleClauses = map[store.AnswerStyle]string{
	store.AnswerFriendly: "Always respond in a friendly and conversational tone.",
	store.AnswerFormal:   "Always respond in a formal and professional tone.",
	store.AnswerConcise:  "Always provide concise and to-the-point responses.",
	store.AnswerDetailed: "Always provide detailed and comprehensive responses.",
}

// BuildSystemPrompt is deterministic: preamble, formatting, search capability, then the
// user's name, interests, answer style and custom personality when set.
func BuildSystemPrompt(prefs store.UserPreferences) string {
	parts := []string{promptPreamble, promptFormatting, promptSearch}

	if name := strings.TrimSpace(prefs.Name()); name != "" {
		parts = append(parts, "The user's name is "+name+".")
	}
	if interests := strings.TrimSpace(prefs.Interests()); interests != "" {
		parts = append(parts, "The user is interested in: "+interests+".")
	}
	if clause, ok := answerStyleClauses[prefs.Style()]; ok {
		parts = append(parts, clause)
	}
	if personality := strings.TrimSpace(prefs.Personality()); personality != "" {
		parts = append(parts, personality)
	}
	return strings.Join(parts, " ")
}
