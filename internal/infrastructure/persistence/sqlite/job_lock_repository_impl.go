package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/lock"
	"github.com/fieldworks/jobflow/internal/domain/repository"
	"github.com/fieldworks/jobflow/internal/infrastructure/transaction"
)

// JobLockRepositoryImpl implements repository.JobLockRepository with SQLite
type JobLockRepositoryImpl struct {
	db *sql.DB
}

// NewJobLockRepository creates a new SQLite-based job lock repository
func NewJobLockRepository(db *sql.DB) repository.JobLockRepository {
	return &JobLockRepositoryImpl{db: db}
}

// getDB returns the appropriate database executor from context
func (r *JobLockRepositoryImpl) getDB(ctx context.Context) dbExecutor {
	if tx, ok := transaction.TxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// Acquire attempts to acquire a job lock with atomic stale lock cleanup.
// Returns (nil, nil) when the lock is held by a live process.
func (r *JobLockRepositoryImpl) Acquire(ctx context.Context, lockID lock.LockID, ttl time.Duration) (*lock.JobLock, error) {
	db := r.getDB(ctx)
	now := time.Now().UTC()

	existing, err := r.Find(ctx, lockID)
	if err == nil {
		isStale := existing.IsExpired() || !isProcessRunning(existing.PID())
		if !isStale {
			return nil, nil
		}

		// Delete the stale lock; losing the race to another process is fine.
		result, _ := db.ExecContext(ctx,
			`DELETE FROM job_locks WHERE lock_id = ? AND (expires_at < ? OR pid = ?)`,
			lockID.String(),
			now.Format(time.RFC3339),
			existing.PID(),
		)
		if result != nil {
			rows, _ := result.RowsAffected()
			if rows == 0 {
				if stillExists, _ := r.Find(ctx, lockID); stillExists != nil {
					// Recreated by another process in the meantime.
					return nil, nil
				}
			}
		}
	}

	jobLock, err := lock.NewJobLock(lockID, ttl)
	if err != nil {
		return nil, fmt.Errorf("create job lock: %w", err)
	}

	insertQuery := `
		INSERT INTO job_locks (lock_id, pid, hostname, acquired_at, expires_at, heartbeat_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, insertQuery,
		jobLock.LockID().String(),
		jobLock.PID(),
		jobLock.Hostname(),
		jobLock.AcquiredAt().Format(time.RFC3339),
		jobLock.ExpiresAt().Format(time.RFC3339),
		jobLock.HeartbeatAt().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			// Another process acquired the lock first.
			return nil, nil
		}
		return nil, fmt.Errorf("insert job lock: %w", err)
	}

	return jobLock, nil
}

// Release releases a job lock
func (r *JobLockRepositoryImpl) Release(ctx context.Context, lockID lock.LockID) error {
	db := r.getDB(ctx)
	result, err := db.ExecContext(ctx, `DELETE FROM job_locks WHERE lock_id = ?`, lockID.String())
	if err != nil {
		return fmt.Errorf("delete job lock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return lock.ErrLockNotFound
	}
	return nil
}

// Find retrieves a job lock by ID
func (r *JobLockRepositoryImpl) Find(ctx context.Context, lockID lock.LockID) (*lock.JobLock, error) {
	query := `
		SELECT lock_id, pid, hostname, acquired_at, expires_at, heartbeat_at
		FROM job_locks
		WHERE lock_id = ?
	`

	db := r.getDB(ctx)
	row := db.QueryRowContext(ctx, query, lockID.String())

	var (
		lockIDStr   string
		pid         int
		hostname    string
		acquiredAt  string
		expiresAt   string
		heartbeatAt string
	)

	err := row.Scan(&lockIDStr, &pid, &hostname, &acquiredAt, &expiresAt, &heartbeatAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, lock.ErrLockNotFound
		}
		return nil, fmt.Errorf("scan job lock: %w", err)
	}

	acquiredAtTime, err := time.Parse(time.RFC3339, acquiredAt)
	if err != nil {
		return nil, fmt.Errorf("parse acquired_at: %w", err)
	}
	expiresAtTime, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	heartbeatAtTime, err := time.Parse(time.RFC3339, heartbeatAt)
	if err != nil {
		return nil, fmt.Errorf("parse heartbeat_at: %w", err)
	}

	lid, err := lockIDFromString(lockIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid lock ID: %w", err)
	}

	return lock.ReconstructJobLock(lid, pid, hostname, acquiredAtTime, expiresAtTime, heartbeatAtTime), nil
}

// ExtendLock extends the expiration time of a held lock
func (r *JobLockRepositoryImpl) ExtendLock(ctx context.Context, lockID lock.LockID, duration time.Duration) error {
	jobLock, err := r.Find(ctx, lockID)
	if err != nil {
		return err
	}

	newExpiresAt := jobLock.ExpiresAt().Add(duration)

	db := r.getDB(ctx)
	_, err = db.ExecContext(ctx,
		`UPDATE job_locks SET expires_at = ? WHERE lock_id = ?`,
		newExpiresAt.Format(time.RFC3339), lockID.String())
	if err != nil {
		return fmt.Errorf("extend lock: %w", err)
	}
	return nil
}

// lockIDFromString rebuilds a LockID from its stored "job/<uuid>" form
func lockIDFromString(value string) (lock.LockID, error) {
	idStr := strings.TrimPrefix(value, "job/")
	jobID, err := model.NewJobIDFromString(idStr)
	if err != nil {
		return lock.LockID{}, err
	}
	return lock.NewLockID(jobID)
}

// isProcessRunning checks if a process with the given PID is running.
// Works on Unix-like systems.
func isProcessRunning(pid int) bool {
	cmd := exec.Command("ps", "-p", strconv.Itoa(pid))
	err := cmd.Run()
	return err == nil
}

// isUniqueConstraintError checks if the error is a UNIQUE constraint violation
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}
