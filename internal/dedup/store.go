package dedup

import (
	"context"
	"time"
)

// Store remembers which message ids have already been processed.
// Implementations never surface errors to callers: a backend failure
// degrades to "not processed" or a no-op and is logged.
type Store interface {
	// IsProcessed reports whether id was marked.
	IsProcessed(ctx context.Context, id string) bool
	// MarkProcessed records id with the current time and reports whether
	// this call created the record. Check and insert are one atomic step, so
	// of several concurrent callers for one id exactly one gets true.
	// Re-marking keeps the first time.
	MarkProcessed(ctx context.Context, id string) bool
	// CleanupOlderThan removes records first processed more than maxAge ago
	// and returns how many were removed.
	CleanupOlderThan(ctx context.Context, maxAge time.Duration) int
}

// Defaults for the sweep loop.
const (
	DefaultCleanupInterval = time.Hour
	DefaultRetention       = 2 * time.Hour
)
