package store

import (
	"context"
	"strings"
)

// Backend is the document database and object store the adapters write through.
// Documents are JSON records grouped per user and collection.
type Backend interface {
	PutDocument(ctx context.Context, userID, collection, docID string, body []byte, sortKey string) error
	// MergeDocument shallow-merges patch into the stored document, creating it if absent.
	MergeDocument(ctx context.Context, userID, collection, docID string, patch []byte) error
	GetDocument(ctx context.Context, userID, collection, docID string) ([]byte, error)
	// ListDocuments returns the collection ordered by sort key, highest first.
	ListDocuments(ctx context.Context, userID, collection string) ([][]byte, error)
	DeleteDocument(ctx context.Context, userID, collection, docID string) error

	PutObject(ctx context.Context, obj Object) error
	GetObject(ctx context.Context, path string) (*Object, error)

	Close() error
}

// Open picks the backend from the URL scheme: postgres:// and postgresql:// select
// PostgreSQL, anything else is treated as a SQLite file path.
func Open(ctx context.Context, databaseURL string) (Backend, error) {
	if IsPostgresURL(databaseURL) {
		return NewPostgresStore(ctx, databaseURL)
	}
	return NewSQLiteStore(databaseURL)
}

func IsPostgresURL(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://")
}
