package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	if err := RunMigrations(dataSourceName); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; autosaves and request handlers share the handle.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Document methods
func (s *SQLiteStore) PutDocument(ctx context.Context, userID, collection, docID string, body []byte, sortKey string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO documents (user_id, collection, doc_id, body, sort_key) VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (user_id, collection, doc_id) DO UPDATE SET body = excluded.body, sort_key = excluded.sort_key
    `, userID, collection, docID, string(body), sortKey)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) MergeDocument(ctx context.Context, userID, collection, docID string, patch []byte) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO documents (user_id, collection, doc_id, body) VALUES (?, ?, ?, json(?))
        ON CONFLICT (user_id, collection, doc_id) DO UPDATE SET body = json_patch(documents.body, excluded.body)
    `, userID, collection, docID, string(patch))
	if err != nil {
		return fmt.Errorf("failed to merge document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, userID, collection, docID string) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE user_id = ? AND collection = ? AND doc_id = ?",
		userID, collection, docID).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return []byte(body), nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, userID, collection string) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT body FROM documents WHERE user_id = ? AND collection = ? ORDER BY sort_key DESC",
		userID, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs [][]byte
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, []byte(body))
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, userID, collection, docID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE user_id = ? AND collection = ? AND doc_id = ?",
		userID, collection, docID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// Object methods
func (s *SQLiteStore) PutObject(ctx context.Context, obj Object) error {
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO objects (path, content_type, data, created_at) VALUES (?, ?, ?, ?)",
		obj.Path, obj.ContentType, obj.Data, obj.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store object: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetObject(ctx context.Context, path string) (*Object, error) {
	obj := Object{Path: path}
	err := s.db.QueryRowContext(ctx,
		"SELECT content_type, data, created_at FROM objects WHERE path = ?", path).
		Scan(&obj.ContentType, &obj.Data, &obj.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query object: %w", err)
	}
	return &obj, nil
}
