// Package lock provides TTL-based mutual exclusion for named background jobs.
// Every backend acquires with a single conditional write and releases only
// when the stored owner token matches.
package lock

import (
	"context"
	"time"

	"smartbuy-api/internal/model"
)

// Manager acquires and releases named job locks.
type Manager interface {
	// Acquire claims job for owner until now+ttl. It returns false, without error,
	// when another owner holds an unexpired lock.
	Acquire(ctx context.Context, job, owner string, ttl time.Duration) (bool, error)

	// Release removes the lock only if owner still holds it.
	Release(ctx context.Context, job, owner string) error
}

// Lister is implemented by backends that can report held locks.
type Lister interface {
	ListLocks(ctx context.Context) ([]model.JobLock, error)
}

// Clock returns the current time. Backends that compute expiry in the
// application use it so tests can move time forward.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now()
}

// ReleaseTimeout bounds the detached release call.
const ReleaseTimeout = 5 * time.Second

// ReleaseDetached releases the lock on a context that survives cancellation of ctx,
// so a job stopped by its caller still gives the lock back.
func ReleaseDetached(ctx context.Context, m Manager, job, owner string) error {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ReleaseTimeout)
	defer cancel()
	return m.Release(rctx, job, owner)
}
