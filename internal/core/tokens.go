package core

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates prompt size. A nil counter counts nothing.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter returns nil when encoding is empty.
func NewTokenCounter(encoding string) (*TokenCounter, error) {
	if encoding == "" {
		return nil, nil
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load token encoding %q: %w", encoding, err)
	}
	return &TokenCounter{encoding: enc}, nil
}

// Count includes about 4 tokens of framing per message and 3 for the reply primer.
func (t *TokenCounter) Count(messages []ChatMessage) int {
	if t == nil || len(messages) == 0 {
		return 0
	}
	tokens := 3
	for _, m := range messages {
		tokens += 4
		tokens += len(t.encoding.Encode(m.Content, nil, nil))
		tokens += len(t.encoding.Encode(m.Role, nil, nil))
	}
	return tokens
}
