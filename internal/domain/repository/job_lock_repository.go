package repository

import (
	"context"
	"time"

	"github.com/fieldworks/jobflow/internal/domain/model/lock"
)

// JobLockRepository manages per-job lease locks. Acquire returns (nil, nil)
// when the lock is held by a live process; stale locks (expired lease or
// dead holder) are reaped atomically during acquisition.
type JobLockRepository interface {
	// Acquire attempts to take the lock, returning nil when it is held
	Acquire(ctx context.Context, lockID lock.LockID, ttl time.Duration) (*lock.JobLock, error)

	// Release releases the lock
	Release(ctx context.Context, lockID lock.LockID) error

	// Find retrieves the current lock, or ErrLockNotFound
	Find(ctx context.Context, lockID lock.LockID) (*lock.JobLock, error)

	// ExtendLock extends the lease of a held lock
	ExtendLock(ctx context.Context, lockID lock.LockID, duration time.Duration) error
}
