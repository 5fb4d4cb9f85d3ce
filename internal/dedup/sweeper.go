package dedup

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pcidesk/chat-presence/internal/metrics"
	"github.com/pcidesk/chat-presence/internal/schedule"
)

// Sweeper periodically drops processed records past their retention.
type Sweeper struct {
	store     Store
	retention time.Duration
	logger    zerolog.Logger
	task      *schedule.Task
}

// NewSweeper creates a sweeper. Non-positive durations take the defaults.
func NewSweeper(store Store, interval, retention time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	s := &Sweeper{
		store:     store,
		retention: retention,
		logger:    logger,
	}
	s.task = schedule.New("dedup-sweep", interval, func(ctx context.Context) { s.Sweep(ctx) }, logger)
	return s
}

// Sweep runs one cleanup pass and returns the number of removed records.
func (s *Sweeper) Sweep(ctx context.Context) int {
	removed := s.store.CleanupOlderThan(ctx, s.retention)
	if removed > 0 {
		metrics.DedupSwept.Add(float64(removed))
	}
	s.logger.Debug().Int("removed", removed).Dur("retention", s.retention).Msg("dedup sweep complete")
	return removed
}

func (s *Sweeper) Start(ctx context.Context) { s.task.Start(ctx) }

func (s *Sweeper) Stop() { s.task.Stop() }

func (s *Sweeper) Done() <-chan struct{} { return s.task.Done() }
