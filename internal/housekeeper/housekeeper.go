// Package housekeeper implements the periodic memory/resource hygiene
// described in spec §4.9: age- and size-capped pruning of the persisted
// collections, driven both by the Reasoner's task counter and, optionally,
// a wall-clock cron schedule for idle sweeps.
package housekeeper

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/archon-run/archon/internal/config"
	"github.com/archon-run/archon/internal/vectorstore"
	"github.com/archon-run/archon/pkg/models"
)

// collections lists every VectorStore collection subject to age/size
// hygiene. Rules are excluded: they have no automatic eviction (spec §3
// Lifecycles).
var collections = []models.Collection{
	models.CollectionFacts,
	models.CollectionExperiences,
	models.CollectionLessons,
	models.CollectionStrategies,
	models.CollectionErrors,
}

// Housekeeper satisfies reasoner.Hygiene: Run(ctx) error.
type Housekeeper struct {
	store  vectorstore.Store
	cfg    config.HygieneConfig
	logger zerolog.Logger
	cron   *cron.Cron
}

// New creates a Housekeeper over store. If cfg.IdleSweepCron is set, a
// background cron schedule is started immediately, independent of the
// task-counter cadence the Reasoner drives explicitly.
func New(store vectorstore.Store, cfg config.HygieneConfig, logger zerolog.Logger) *Housekeeper {
	h := &Housekeeper{store: store, cfg: cfg, logger: logger}
	if cfg.IdleSweepCron != "" {
		h.cron = cron.New()
		_, err := h.cron.AddFunc(cfg.IdleSweepCron, func() {
			if runErr := h.Run(context.Background()); runErr != nil {
				h.logger.Warn().Err(runErr).Msg("housekeeper idle sweep failed")
			}
		})
		if err != nil {
			h.logger.Warn().Err(err).Str("schedule", cfg.IdleSweepCron).Msg("invalid idle_sweep_cron, idle sweeps disabled")
			h.cron = nil
		} else {
			h.cron.Start()
		}
	}
	return h
}

// Stop halts the idle-sweep cron, if one was started.
func (h *Housekeeper) Stop() {
	if h.cron != nil {
		h.cron.Stop()
	}
}

// Sweep is the outcome of one Run, reported in the structured log record.
type Sweep struct {
	CleanedUp map[models.Collection]int
	Pruned    map[models.Collection]int
}

// Run performs the four hygiene actions of spec §4.9:
//  1. window pruning is owned by the Reasoner per task and has nothing
//     persistent to act on here;
//  2. VectorStore.cleanup_old on every aged collection, keeping successful
//     records;
//  3. VectorStore.limit_size per collection;
//  4. emit a structured log record with counts. In-process caches beyond
//     the VectorStore have no state to reset in this implementation.
func (h *Housekeeper) Run(ctx context.Context) error {
	if h.store == nil {
		return nil
	}

	maxAge := time.Duration(h.cfg.MaxAgeDays) * 24 * time.Hour
	sweep := Sweep{CleanedUp: map[models.Collection]int{}, Pruned: map[models.Collection]int{}}

	var firstErr error
	for _, coll := range collections {
		if maxAge > 0 {
			n, err := h.store.CleanupOld(ctx, coll, maxAge, h.cfg.KeepSuccessful)
			if err != nil {
				firstErr = firstErrOf(firstErr, fmt.Errorf("housekeeper: cleanup_old(%s): %w", coll, err))
			}
			sweep.CleanedUp[coll] = n
		}

		limit := limitFor(h.cfg, coll)
		if limit > 0 {
			n, err := h.store.LimitSize(ctx, coll, limit)
			if err != nil {
				firstErr = firstErrOf(firstErr, fmt.Errorf("housekeeper: limit_size(%s): %w", coll, err))
			}
			sweep.Pruned[coll] = n
		}
	}

	h.logger.Info().
		Interface("cleaned_up", sweep.CleanedUp).
		Interface("size_pruned", sweep.Pruned).
		Msg("housekeeper sweep complete")

	return firstErr
}

func limitFor(cfg config.HygieneConfig, coll models.Collection) int {
	switch coll {
	case models.CollectionFacts:
		return cfg.FactsLimit
	case models.CollectionExperiences:
		return cfg.ExperiencesLimit
	case models.CollectionLessons:
		return cfg.LessonsLimit
	case models.CollectionStrategies:
		return cfg.StrategiesLimit
	case models.CollectionErrors:
		return cfg.ErrorsLimit
	default:
		return 0
	}
}

func firstErrOf(existing, next error) error {
	if existing != nil {
		return existing
	}
	return next
}
