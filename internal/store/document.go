package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ISOLayout matches JavaScript's Date.toISOString and sorts lexicographically.
const ISOLayout = "2006-01-02T15:04:05.000Z"

const (
	CollectionSessions    = "chatSessions"
	CollectionPreferences = "preferences"

	preferencesDocID = "profile"
)

func FormatTime(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

type sessionDocument struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt string    `json:"createdAt"`
	UpdatedAt string    `json:"updatedAt"`
}

func encodeSession(s ChatSession) ([]byte, error) {
	messages := s.Messages
	if messages == nil {
		messages = []Message{}
	}
	return EncodeDocument(sessionDocument{
		ID:        s.ID,
		Title:     s.Title,
		Messages:  messages,
		CreatedAt: FormatTime(s.CreatedAt),
		UpdatedAt: FormatTime(s.UpdatedAt),
	})
}

func decodeSession(body []byte) (ChatSession, error) {
	var doc sessionDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return ChatSession{}, fmt.Errorf("decode session: %w", err)
	}
	createdAt, err := ParseTime(doc.CreatedAt)
	if err != nil {
		return ChatSession{}, err
	}
	updatedAt, err := ParseTime(doc.UpdatedAt)
	if err != nil {
		return ChatSession{}, err
	}
	return ChatSession{
		ID:        doc.ID,
		Title:     doc.Title,
		Messages:  doc.Messages,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// EncodeDocument serializes v as a store document with every null object field removed.
func EncodeDocument(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	out, err := json.Marshal(StripUndefined(generic))
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return out, nil
}

// StripUndefined recursively drops object keys whose value is nil. Nil array entries
// are kept and serialize as null so positions do not shift.
func StripUndefined(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			if item == nil {
				delete(val, k)
				continue
			}
			val[k] = StripUndefined(item)
		}
		return val
	case []any:
		for i, item := range val {
			if item != nil {
				val[i] = StripUndefined(item)
			}
		}
		return val
	default:
		return v
	}
}
