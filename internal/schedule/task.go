package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task runs a function on a fixed interval in a background goroutine.
// Start and Stop are idempotent. Stop prevents new ticks; a tick already
// running is allowed to finish, after which Done is closed.
type Task struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)
	logger   zerolog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	quit    chan struct{}
	doneCh  chan struct{}
}

// New creates a Task. A non-positive interval falls back to one minute.
func New(name string, interval time.Duration, fn func(ctx context.Context), logger zerolog.Logger) *Task {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Task{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger.With().Str("task", name).Logger(),
		quit:     make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the task loop. It is a no-op if the task was already
// started or stopped.
func (t *Task) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started || t.stopped {
		return
	}
	t.started = true
	go t.run(ctx)
}

// Stop signals the task to stop and returns immediately.
// Call Done() to wait for it to exit.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.stopped = true
	close(t.quit)
	if !t.started {
		close(t.doneCh)
	}
}

// Done returns a channel that is closed when the task has fully stopped.
func (t *Task) Done() <-chan struct{} {
	return t.doneCh
}

// Interval returns the tick interval.
func (t *Task) Interval() time.Duration {
	return t.interval
}

func (t *Task) run(ctx context.Context) {
	defer close(t.doneCh)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Debug().Dur("interval", t.interval).Msg("periodic task started")

	for {
		select {
		case <-t.quit:
			t.logger.Debug().Msg("periodic task stopped")
			return
		case <-ctx.Done():
			t.logger.Debug().Msg("periodic task context cancelled")
			return
		case <-ticker.C:
			// A stop that raced with the tick wins.
			select {
			case <-t.quit:
				return
			default:
			}
			t.tick(ctx)
		}
	}
}

func (t *Task) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Interface("panic", r).Msg("periodic task tick panicked")
		}
	}()
	t.fn(ctx)
}
