package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

type PreferenceStore struct {
	backend    Backend
	timeout    time.Duration
	retryDelay time.Duration
}

func NewPreferenceStore(backend Backend, timeout time.Duration) *PreferenceStore {
	return &PreferenceStore{backend: backend, timeout: timeout, retryDelay: writeRetryDelay}
}

// Save merges the set fields of prefs into the stored record. Absent fields keep their stored value.
func (s *PreferenceStore) Save(ctx context.Context, userID string, prefs UserPreferences) error {
	if userID == "" {
		return invalid("userId", "user id is required")
	}
	if err := ValidatePreferences(prefs); err != nil {
		return err
	}
	patch, err := EncodeDocument(prefs)
	if err != nil {
		return err
	}

	return withRetry(ctx, "save preferences", s.retryDelay, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.backend.MergeDocument(ctx, userID, CollectionPreferences, preferencesDocID, patch)
	})
}

// Load never fails: a missing or unreadable record yields empty preferences.
func (s *PreferenceStore) Load(ctx context.Context, userID string) UserPreferences {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var prefs UserPreferences
	doc, err := s.backend.GetDocument(ctx, userID, CollectionPreferences, preferencesDocID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("failed to load preferences", "userId", userID, "error", err)
		}
		return prefs
	}
	if err := json.Unmarshal(doc, &prefs); err != nil {
		slog.Error("failed to decode preferences", "userId", userID, "error", err)
		return UserPreferences{}
	}
	return prefs
}
