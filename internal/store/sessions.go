package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SessionStore persists whole chat sessions, one document per session id.
type SessionStore struct {
	backend    Backend
	timeout    time.Duration
	retryDelay time.Duration
}

func NewSessionStore(backend Backend, timeout time.Duration) *SessionStore {
	return &SessionStore{backend: backend, timeout: timeout, retryDelay: writeRetryDelay}
}

// Save overwrites the stored session with s. Last writer wins.
func (s *SessionStore) Save(ctx context.Context, userID string, session ChatSession) error {
	if userID == "" {
		return invalid("userId", "user id is required")
	}
	if err := ValidateSession(session); err != nil {
		return err
	}
	body, err := encodeSession(session)
	if err != nil {
		return err
	}

	return withRetry(ctx, "save session", s.retryDelay, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.backend.PutDocument(ctx, userID, CollectionSessions, session.ID, body, FormatTime(session.UpdatedAt))
	})
}

// Load returns every session of the user, most recently updated first.
// Documents that fail to decode are skipped and logged.
func (s *SessionStore) Load(ctx context.Context, userID string) ([]ChatSession, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	docs, err := s.backend.ListDocuments(ctx, userID, CollectionSessions)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	sessions := make([]ChatSession, 0, len(docs))
	for _, doc := range docs {
		session, err := decodeSession(doc)
		if err != nil {
			slog.Error("skipping unreadable session", "userId", userID, "error", err)
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *SessionStore) Get(ctx context.Context, userID, sessionID string) (ChatSession, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := s.backend.GetDocument(ctx, userID, CollectionSessions, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ChatSession{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		return ChatSession{}, fmt.Errorf("get session: %w", err)
	}
	return decodeSession(doc)
}

// Delete removes the session. Deleting an unknown id succeeds.
func (s *SessionStore) Delete(ctx context.Context, userID, sessionID string) error {
	return withRetry(ctx, "delete session", s.retryDelay, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.backend.DeleteDocument(ctx, userID, CollectionSessions, sessionID)
	})
}
