package housekeeper

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/archon-run/archon/internal/config"
	"github.com/archon-run/archon/internal/vectorstore"
	"github.com/archon-run/archon/internal/vectorstore/embeddings"
	"github.com/archon-run/archon/pkg/models"
)

func newStore(t *testing.T) vectorstore.Store {
	t.Helper()
	return vectorstore.NewMemoryStore(embeddings.NewLocal(8))
}

func TestRun_CleansUpAgedRecordsAndEnforcesLimits(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	old := time.Now().Add(-200 * 24 * time.Hour)
	if err := store.Upsert(ctx, models.CollectionFacts, "old-1", "an old fact", vectorstore.Metadata{"ts": old, "success": true}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		id := "fresh-" + time.Now().Add(time.Duration(i)*time.Millisecond).String()
		if err := store.Upsert(ctx, models.CollectionFacts, id, "fresh fact", vectorstore.Metadata{"ts": time.Now(), "success": true}); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.HygieneConfig{
		MaxAgeDays: 90,
		FactsLimit: 2,
	}
	hk := New(store, cfg, zerolog.Nop())
	defer hk.Stop()

	if err := hk.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	n, err := store.Count(ctx, models.CollectionFacts)
	if err != nil {
		t.Fatal(err)
	}
	if n > 2 {
		t.Errorf("facts count after hygiene = %d, want <= 2 (FactsLimit)", n)
	}
}

func TestRun_NilStoreIsNoop(t *testing.T) {
	hk := New(nil, config.HygieneConfig{}, zerolog.Nop())
	defer hk.Stop()
	if err := hk.Run(context.Background()); err != nil {
		t.Fatalf("Run on nil store returned error: %v", err)
	}
}

func TestNew_InvalidCronDisablesIdleSweep(t *testing.T) {
	store := newStore(t)
	hk := New(store, config.HygieneConfig{IdleSweepCron: "not a cron expression"}, zerolog.Nop())
	defer hk.Stop()
	if hk.cron != nil {
		t.Error("expected idle sweep cron to be disabled for an invalid schedule")
	}
}

func TestNew_ValidCronStartsIdleSweep(t *testing.T) {
	store := newStore(t)
	hk := New(store, config.HygieneConfig{IdleSweepCron: "@every 1h"}, zerolog.Nop())
	defer hk.Stop()
	if hk.cron == nil {
		t.Error("expected idle sweep cron to be running for a valid schedule")
	}
}
