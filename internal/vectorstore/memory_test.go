package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/archon-run/archon/pkg/models"
)

func TestMemoryStore_UpsertIsIdempotentByID(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	if err := s.Upsert(ctx, models.CollectionFacts, "f1", "name is Budi", Metadata{}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Upsert(ctx, models.CollectionFacts, "f1", "name is Budi Santoso", Metadata{}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	count, _ := s.Count(ctx, models.CollectionFacts)
	if count != 1 {
		t.Errorf("expected upsert of the same id to replace, not add; got count=%d", count)
	}
}

func TestMemoryStore_QueryTextMatchFallbackPrefersSubstring(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	s.Upsert(ctx, models.CollectionFacts, "f1", "the user's name is Budi", Metadata{})
	s.Upsert(ctx, models.CollectionFacts, "f2", "unrelated fact about weather", Metadata{})

	results, err := s.Query(ctx, models.CollectionFacts, "Budi", 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected both records returned, got %d", len(results))
	}
	if results[0].ID != "f1" {
		t.Errorf("expected substring match to rank first, got %s", results[0].ID)
	}
	if results[0].Distance != 0 {
		t.Errorf("expected substring match distance 0, got %v", results[0].Distance)
	}
}

func TestMemoryStore_QueryEmptyCollectionReturnsNil(t *testing.T) {
	s := NewMemoryStore(nil)
	results, err := s.Query(context.Background(), models.CollectionFacts, "anything", 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results from an empty collection, got %d", len(results))
	}
}

func TestMemoryStore_DeleteRemovesRecords(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	s.Upsert(ctx, models.CollectionFacts, "f1", "doc", Metadata{})
	s.Delete(ctx, models.CollectionFacts, []string{"f1"})
	count, _ := s.Count(ctx, models.CollectionFacts)
	if count != 0 {
		t.Errorf("expected 0 records after delete, got %d", count)
	}
}

func TestMemoryStore_DeleteByFilter(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	s.Upsert(ctx, models.CollectionExperiences, "e1", "doc1", Metadata{"success": true})
	s.Upsert(ctx, models.CollectionExperiences, "e2", "doc2", Metadata{"success": false})

	deleted, err := s.DeleteByFilter(ctx, models.CollectionExperiences, func(m Metadata) bool {
		ok, _ := m["success"].(bool)
		return !ok
	})
	if err != nil {
		t.Fatalf("delete by filter: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deletion, got %d", deleted)
	}
	count, _ := s.Count(ctx, models.CollectionExperiences)
	if count != 1 {
		t.Errorf("expected 1 record remaining, got %d", count)
	}
}

func TestMemoryStore_CleanupOldKeepsSuccessfulPastCutoff(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	old := time.Now().Add(-100 * 24 * time.Hour)
	s.Upsert(ctx, models.CollectionExperiences, "old-success", "doc", Metadata{"ts": old, "success": true})
	s.Upsert(ctx, models.CollectionExperiences, "old-fail", "doc", Metadata{"ts": old, "success": false})
	s.Upsert(ctx, models.CollectionExperiences, "new-fail", "doc", Metadata{"ts": time.Now(), "success": false})

	deleted, err := s.CleanupOld(ctx, models.CollectionExperiences, 90*24*time.Hour, true)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected exactly 1 deletion (old+failed), got %d", deleted)
	}
	if _, ok := s.data[models.CollectionExperiences]["old-success"]; !ok {
		t.Error("expected old successful record to survive cleanup")
	}
	if _, ok := s.data[models.CollectionExperiences]["old-fail"]; ok {
		t.Error("expected old failed record to be removed")
	}
	if _, ok := s.data[models.CollectionExperiences]["new-fail"]; !ok {
		t.Error("expected recent record to survive regardless of success")
	}
}

func TestMemoryStore_LimitSizePrunesOldestFirst(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	base := time.Now()
	s.Upsert(ctx, models.CollectionFacts, "oldest", "doc", Metadata{"ts": base.Add(-3 * time.Hour)})
	s.Upsert(ctx, models.CollectionFacts, "middle", "doc", Metadata{"ts": base.Add(-2 * time.Hour)})
	s.Upsert(ctx, models.CollectionFacts, "newest", "doc", Metadata{"ts": base.Add(-1 * time.Hour)})

	pruned, err := s.LimitSize(ctx, models.CollectionFacts, 2)
	if err != nil {
		t.Fatalf("limit size: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned record, got %d", pruned)
	}
	if _, ok := s.data[models.CollectionFacts]["oldest"]; ok {
		t.Error("expected oldest record to be pruned first")
	}
	count, _ := s.Count(ctx, models.CollectionFacts)
	if count != 2 {
		t.Errorf("expected 2 records remaining, got %d", count)
	}
}

func TestMemoryStore_LimitSizeNoopWhenUnderLimit(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	s.Upsert(ctx, models.CollectionFacts, "f1", "doc", Metadata{})
	pruned, err := s.LimitSize(ctx, models.CollectionFacts, 10)
	if err != nil {
		t.Fatalf("limit size: %v", err)
	}
	if pruned != 0 {
		t.Errorf("expected no pruning under the limit, got %d", pruned)
	}
}
