package activity

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a user has no recorded activity.
var ErrNotFound = errors.New("activity record not found")

// Store tracks the last time each user showed activity.
type Store interface {
	LastActivity(ctx context.Context, userID string) (time.Time, error)
	Touch(ctx context.Context, userID string, at time.Time) error
}
