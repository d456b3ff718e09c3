package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestPreferenceStoreMergesPartialUpdates(t *testing.T) {
	ctx := context.Background()
	prefs := NewPreferenceStore(newTestBackend(t), time.Second)

	require.NoError(t, prefs.Save(ctx, "u1", UserPreferences{UserName: ptr("A")}))
	require.NoError(t, prefs.Save(ctx, "u1", UserPreferences{UserInterests: ptr("B")}))

	got := prefs.Load(ctx, "u1")
	assert.Equal(t, "A", got.Name())
	assert.Equal(t, "B", got.Interests())
	assert.Nil(t, got.AnswerStyle)
}

func TestPreferenceStoreOverwritesSetFields(t *testing.T) {
	ctx := context.Background()
	prefs := NewPreferenceStore(newTestBackend(t), time.Second)

	require.NoError(t, prefs.Save(ctx, "u1", UserPreferences{UserName: ptr("A"), AnswerStyle: ptr(AnswerFormal)}))
	require.NoError(t, prefs.Save(ctx, "u1", UserPreferences{AnswerStyle: ptr(AnswerConcise)}))

	got := prefs.Load(ctx, "u1")
	assert.Equal(t, "A", got.Name())
	assert.Equal(t, AnswerConcise, got.Style())
}

func TestPreferenceStoreLoadMissingIsEmpty(t *testing.T) {
	prefs := NewPreferenceStore(newTestBackend(t), time.Second)
	assert.Equal(t, UserPreferences{}, prefs.Load(context.Background(), "nobody"))
}

func TestPreferenceStoreLoadErrorIsEmpty(t *testing.T) {
	backend := newTestBackend(t)
	prefs := NewPreferenceStore(backend, time.Second)
	require.NoError(t, backend.Close())

	assert.Equal(t, UserPreferences{}, prefs.Load(context.Background(), "u1"))
}

func TestPreferenceStoreRejectsUnknownStyle(t *testing.T) {
	prefs := NewPreferenceStore(newTestBackend(t), time.Second)
	err := prefs.Save(context.Background(), "u1", UserPreferences{AnswerStyle: ptr(AnswerStyle("sarcastic"))})
	assert.ErrorIs(t, err, ErrValidation)
}
