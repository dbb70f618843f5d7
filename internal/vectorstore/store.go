// Package vectorstore implements the type-segregated persistent memory
// store: per-collection upsert/query/delete with semantic
// similarity search, falling back to an in-process text-match store when
// no embedding/backend pair is configured.
package vectorstore

import (
	"context"
	"time"

	"github.com/archon-run/archon/pkg/models"
)

// Metadata values are scalar.
type Metadata map[string]any

// Record is one stored document with its scalar metadata. ts is always
// present in Metadata and monotonic by wall clock.
type Record struct {
	ID       string
	Document string
	Metadata Metadata
}

// QueryResult pairs a Record with its distance from the query (smaller is
// more similar).
type QueryResult struct {
	Record
	Distance float32
}

// Store is the per-collection contract every backend implements.
type Store interface {
	Upsert(ctx context.Context, collection models.Collection, id, document string, metadata Metadata) error
	Query(ctx context.Context, collection models.Collection, text string, n int) ([]QueryResult, error)
	Delete(ctx context.Context, collection models.Collection, ids []string) error
	DeleteByFilter(ctx context.Context, collection models.Collection, predicate func(Metadata) bool) (int, error)
	Count(ctx context.Context, collection models.Collection) (int, error)
	CleanupOld(ctx context.Context, collection models.Collection, maxAge time.Duration, keepSuccessful bool) (int, error)
	LimitSize(ctx context.Context, collection models.Collection, maxCount int) (int, error)
	Close() error
}

func tsOf(meta Metadata) time.Time {
	if meta == nil {
		return time.Time{}
	}
	switch v := meta["ts"].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	case int64:
		return time.Unix(0, v)
	case float64:
		return time.Unix(0, int64(v))
	}
	return time.Time{}
}

func successOf(meta Metadata) bool {
	if meta == nil {
		return true
	}
	if v, ok := meta["success"].(bool); ok {
		return v
	}
	return true
}
