package vectorstore

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/archon-run/archon/pkg/models"
	"github.com/archon-run/archon/internal/vectorstore/embeddings"
)

// MemoryStore is the in-process Store used when no persistent backend is
// configured — an in-memory implementation falling back to text-match
// fallback for query satisfies the same contract; persistence is then a
// no-op documented to the caller").
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[models.Collection]map[string]storedRecord
	embedder embeddings.Provider
}

type storedRecord struct {
	Record
	embedding []float32
}

// NewMemoryStore creates an empty in-memory vector store. If embedder is
// nil, Query falls back to a case-insensitive substring match on Document.
func NewMemoryStore(embedder embeddings.Provider) *MemoryStore {
	return &MemoryStore{
		data:     make(map[models.Collection]map[string]storedRecord),
		embedder: embedder,
	}
}

func (s *MemoryStore) collection(c models.Collection) map[string]storedRecord {
	m, ok := s.data[c]
	if !ok {
		m = make(map[string]storedRecord)
		s.data[c] = m
	}
	return m
}

func (s *MemoryStore) Upsert(ctx context.Context, collection models.Collection, id, document string, metadata Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if metadata == nil {
		metadata = Metadata{}
	}
	if _, ok := metadata["ts"]; !ok {
		metadata["ts"] = time.Now()
	}

	rec := storedRecord{Record: Record{ID: id, Document: document, Metadata: metadata}}
	if s.embedder != nil {
		if emb, err := s.embedder.Embed(ctx, document); err == nil {
			rec.embedding = emb
		}
	}
	s.collection(collection)[id] = rec
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection models.Collection, text string, n int) ([]QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll := s.data[collection]
	if len(coll) == 0 || n <= 0 {
		return nil, nil
	}

	if s.embedder != nil {
		queryEmb, err := s.embedder.Embed(ctx, text)
		if err == nil {
			return s.vectorQuery(coll, queryEmb, n), nil
		}
	}
	return s.textMatchQuery(coll, text, n), nil
}

func (s *MemoryStore) vectorQuery(coll map[string]storedRecord, queryEmb []float32, n int) []QueryResult {
	results := make([]QueryResult, 0, len(coll))
	for _, rec := range coll {
		dist := float32(1.0)
		if len(rec.embedding) > 0 {
			dist = cosineDistance(queryEmb, rec.embedding)
		}
		results = append(results, QueryResult{Record: rec.Record, Distance: dist})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > n {
		results = results[:n]
	}
	return results
}

// textMatchQuery is the fallback used when no embedding backend is
// available: substring matches rank first (distance 0), everything else is
// returned in stable id order with a maximal distance.
func (s *MemoryStore) textMatchQuery(coll map[string]storedRecord, text string, n int) []QueryResult {
	needle := strings.ToLower(strings.TrimSpace(text))
	results := make([]QueryResult, 0, len(coll))
	for _, rec := range coll {
		dist := float32(1.0)
		if needle != "" && strings.Contains(strings.ToLower(rec.Document), needle) {
			dist = 0
		}
		results = append(results, QueryResult{Record: rec.Record, Distance: dist})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > n {
		results = results[:n]
	}
	return results
}

func cosineDistance(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return float32(1 - sim)
}

func (s *MemoryStore) Delete(ctx context.Context, collection models.Collection, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.data[collection]
	for _, id := range ids {
		delete(coll, id)
	}
	return nil
}

func (s *MemoryStore) DeleteByFilter(ctx context.Context, collection models.Collection, predicate func(Metadata) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.data[collection]
	deleted := 0
	for id, rec := range coll {
		if predicate(rec.Metadata) {
			delete(coll, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) Count(ctx context.Context, collection models.Collection) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[collection]), nil
}

// CleanupOld deletes records older than maxAge, preserving successful ones
// when keepSuccessful is true.
func (s *MemoryStore) CleanupOld(ctx context.Context, collection models.Collection, maxAge time.Duration, keepSuccessful bool) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	return s.DeleteByFilter(ctx, collection, func(m Metadata) bool {
		ts := tsOf(m)
		if ts.IsZero() || !ts.Before(cutoff) {
			return false
		}
		if keepSuccessful && successOf(m) {
			return false
		}
		return true
	})
}

// LimitSize prunes oldest-first until the collection has at most maxCount
// records.
func (s *MemoryStore) LimitSize(ctx context.Context, collection models.Collection, maxCount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.data[collection]
	if len(coll) <= maxCount {
		return 0, nil
	}

	type idTS struct {
		id string
		ts time.Time
	}
	items := make([]idTS, 0, len(coll))
	for id, rec := range coll {
		items = append(items, idTS{id: id, ts: tsOf(rec.Metadata)})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ts.Before(items[j].ts) })

	toDelete := len(items) - maxCount
	for i := 0; i < toDelete; i++ {
		delete(coll, items[i].id)
	}
	return toDelete, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
