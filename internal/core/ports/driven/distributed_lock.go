package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates work across service instances.
// Used to single-flight token refreshes per account and to keep the
// maintenance sweep from running on more than one worker at a time.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// Returns true if acquired, false if already held elsewhere.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)

	// Release releases a named lock if held by this instance.
	// Safe to call even if the lock is not held or has expired.
	Release(ctx context.Context, name string) error
}
