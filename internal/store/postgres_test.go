package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostgresBackend(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	backend, err := NewPostgresStore(ctx, url)
	require.NoError(t, err)
	clean := func() {
		backend.pool.Exec(ctx, "DELETE FROM documents WHERE user_id IN ('u1', 'u2', 'u3')")
		backend.pool.Exec(ctx, "DELETE FROM objects WHERE path LIKE 'images/u1/%'")
	}
	clean()
	t.Cleanup(func() {
		clean()
		backend.Close()
	})

	backendContract(t, backend)
}
