package store

const (
	DefaultTitle   = "New chat"
	titleMaxLength = 30
)

// DeriveTitle names a session after its first user message, truncated to 30 characters.
func DeriveTitle(messages []Message) string {
	for _, m := range messages {
		if m.Role != RoleUser {
			continue
		}
		runes := []rune(m.Content)
		if len(runes) <= titleMaxLength {
			return m.Content
		}
		return string(runes[:titleMaxLength]) + "..."
	}
	return DefaultTitle
}
