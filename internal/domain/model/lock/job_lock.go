package lock

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fieldworks/jobflow/internal/domain/model"
)

// Common lock errors
var (
	ErrLockNotFound = errors.New("lock not found")
)

// LockID identifies the job being locked
type LockID struct {
	value string
}

// NewLockID creates a lock ID for a job
func NewLockID(jobID model.JobID) (LockID, error) {
	if jobID.String() == "" {
		return LockID{}, fmt.Errorf("lock ID cannot be empty")
	}
	return LockID{value: "job/" + jobID.String()}, nil
}

// String returns the string representation of the lock ID
func (id LockID) String() string {
	return id.value
}

// Equals checks if two lock IDs are equal
func (id LockID) Equals(other LockID) bool {
	return id.value == other.value
}

// JobLock is the exclusive lease held for the duration of one transition
// attempt: validate, mutate, persist, append history. At most one live lock
// exists per job; a second attempt while the lease is held is rejected with
// a retry condition rather than queued.
type JobLock struct {
	lockID      LockID
	pid         int
	hostname    string
	acquiredAt  time.Time
	expiresAt   time.Time
	heartbeatAt time.Time
}

// NewJobLock creates a lease lock for a job held by this process
func NewJobLock(lockID LockID, ttl time.Duration) (*JobLock, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("get hostname: %w", err)
	}

	now := time.Now().UTC()

	return &JobLock{
		lockID:      lockID,
		pid:         os.Getpid(),
		hostname:    hostname,
		acquiredAt:  now,
		expiresAt:   now.Add(ttl),
		heartbeatAt: now,
	}, nil
}

// ReconstructJobLock reconstructs a JobLock from persisted data
func ReconstructJobLock(
	lockID LockID,
	pid int,
	hostname string,
	acquiredAt, expiresAt, heartbeatAt time.Time,
) *JobLock {
	return &JobLock{
		lockID:      lockID,
		pid:         pid,
		hostname:    hostname,
		acquiredAt:  acquiredAt,
		expiresAt:   expiresAt,
		heartbeatAt: heartbeatAt,
	}
}

// IsExpired checks if the lease has lapsed
func (l *JobLock) IsExpired() bool {
	return time.Now().UTC().After(l.expiresAt)
}

// IsHeartbeatStale checks if the holder stopped heartbeating
func (l *JobLock) IsHeartbeatStale(maxStaleness time.Duration) bool {
	return time.Now().UTC().Sub(l.heartbeatAt) > maxStaleness
}

// UpdateHeartbeat updates the heartbeat timestamp
func (l *JobLock) UpdateHeartbeat() {
	l.heartbeatAt = time.Now().UTC()
}

// Extend extends the lease expiration time
func (l *JobLock) Extend(duration time.Duration) {
	l.expiresAt = l.expiresAt.Add(duration)
}

// Getters
func (l *JobLock) LockID() LockID               { return l.lockID }
func (l *JobLock) PID() int                     { return l.pid }
func (l *JobLock) Hostname() string             { return l.hostname }
func (l *JobLock) AcquiredAt() time.Time        { return l.acquiredAt }
func (l *JobLock) ExpiresAt() time.Time         { return l.expiresAt }
func (l *JobLock) HeartbeatAt() time.Time       { return l.heartbeatAt }
func (l *JobLock) RemainingTime() time.Duration { return time.Until(l.expiresAt) }
