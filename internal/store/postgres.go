package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) PutDocument(ctx context.Context, userID, collection, docID string, body []byte, sortKey string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (user_id, collection, doc_id, body, sort_key) VALUES ($1, $2, $3, $4::jsonb, $5)
		ON CONFLICT (user_id, collection, doc_id) DO UPDATE SET body = EXCLUDED.body, sort_key = EXCLUDED.sort_key
	`, userID, collection, docID, string(body), sortKey)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) MergeDocument(ctx context.Context, userID, collection, docID string, patch []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (user_id, collection, doc_id, body) VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (user_id, collection, doc_id) DO UPDATE SET body = documents.body || EXCLUDED.body
	`, userID, collection, docID, string(patch))
	if err != nil {
		return fmt.Errorf("merge document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, userID, collection, docID string) ([]byte, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		"SELECT body::text FROM documents WHERE user_id = $1 AND collection = $2 AND doc_id = $3",
		userID, collection, docID).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return body, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, userID, collection string) ([][]byte, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT body::text FROM documents WHERE user_id = $1 AND collection = $2 ORDER BY sort_key DESC",
		userID, collection)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	docs, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}
	return docs, nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, userID, collection, docID string) error {
	_, err := s.pool.Exec(ctx,
		"DELETE FROM documents WHERE user_id = $1 AND collection = $2 AND doc_id = $3",
		userID, collection, docID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *PostgresStore) PutObject(ctx context.Context, obj Object) error {
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO objects (path, content_type, data, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (path) DO UPDATE SET content_type = EXCLUDED.content_type, data = EXCLUDED.data, created_at = EXCLUDED.created_at
	`, obj.Path, obj.ContentType, obj.Data, obj.CreatedAt)
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetObject(ctx context.Context, path string) (*Object, error) {
	obj := Object{Path: path}
	err := s.pool.QueryRow(ctx,
		"SELECT content_type, data, created_at FROM objects WHERE path = $1", path).
		Scan(&obj.ContentType, &obj.Data, &obj.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	return &obj, nil
}
