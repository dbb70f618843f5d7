package vectorstore

import (
	"context"
	"time"

	"github.com/archon-run/archon/internal/vectorstore/backend/sqlitevec"
	"github.com/archon-run/archon/internal/vectorstore/embeddings"
	"github.com/archon-run/archon/pkg/models"
)

// SQLiteStore adapts sqlitevec.Backend to the Store contract.
type SQLiteStore struct {
	backend *sqlitevec.Backend
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens a sqlite-backed persistent Store at path.
func NewSQLiteStore(path string, embedder embeddings.Provider) (*SQLiteStore, error) {
	b, err := sqlitevec.New(sqlitevec.Config{Path: path}, embedder)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{backend: b}, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, collection models.Collection, id, document string, metadata Metadata) error {
	return s.backend.Upsert(ctx, collection, id, document, map[string]any(metadata))
}

func (s *SQLiteStore) Query(ctx context.Context, collection models.Collection, text string, n int) ([]QueryResult, error) {
	rows, err := s.backend.Query(ctx, collection, text, n)
	if err != nil {
		return nil, err
	}
	out := make([]QueryResult, len(rows))
	for i, r := range rows {
		out[i] = QueryResult{
			Record:   Record{ID: r.ID, Document: r.Document, Metadata: Metadata(r.Metadata)},
			Distance: r.Distance,
		}
	}
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, collection models.Collection, ids []string) error {
	return s.backend.Delete(ctx, collection, ids)
}

func (s *SQLiteStore) DeleteByFilter(ctx context.Context, collection models.Collection, predicate func(Metadata) bool) (int, error) {
	return s.backend.DeleteByFilter(ctx, collection, func(m map[string]any) bool {
		return predicate(Metadata(m))
	})
}

func (s *SQLiteStore) Count(ctx context.Context, collection models.Collection) (int, error) {
	return s.backend.Count(ctx, collection)
}

func (s *SQLiteStore) CleanupOld(ctx context.Context, collection models.Collection, maxAge time.Duration, keepSuccessful bool) (int, error) {
	return s.backend.CleanupOld(ctx, collection, maxAge, keepSuccessful)
}

func (s *SQLiteStore) LimitSize(ctx context.Context, collection models.Collection, maxCount int) (int, error) {
	return s.backend.LimitSize(ctx, collection, maxCount)
}

func (s *SQLiteStore) Close() error { return s.backend.Close() }
