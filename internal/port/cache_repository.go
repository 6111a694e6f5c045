package port

import (
	"context"
	"time"
)

type LockRepository interface {
	// Acquire atomically sets the lock if absent, returns false when another
	// holder owns it. No blocking, no retry.
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)

	// Release deletes the lock only if it still holds the caller's token, so
	// a holder whose TTL expired cannot release a later acquirer's lock.
	Release(ctx context.Context, key, token string) error
}

type SequenceRepository interface {
	// NextOrderSequence atomically increments and returns the per-day order
	// counter for the given YYYYMMDD day key.
	NextOrderSequence(ctx context.Context, day string) (int64, error)
}
