package repository

import (
	"context"
	"errors"

	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/job"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
)

// Common job repository errors
var (
	ErrJobNotFound     = errors.New("job not found")
	ErrVersionConflict = errors.New("job version conflict")
)

// JobRepository persists job records. Save uses optimistic concurrency: the
// write only lands when the stored version still matches expectedVersion,
// otherwise ErrVersionConflict is returned and the caller should retry.
type JobRepository interface {
	// Create stores a new job record
	Create(ctx context.Context, j *job.Job) error

	// Find retrieves a job by ID
	Find(ctx context.Context, id model.JobID) (*job.Job, error)

	// Save persists the job's current state and returns the new version.
	// Returns ErrVersionConflict when the stored version differs from
	// expectedVersion.
	Save(ctx context.Context, j *job.Job, expectedVersion int64) (int64, error)

	// FindByPhase retrieves all jobs currently in the given phase
	FindByPhase(ctx context.Context, name phase.Name) ([]*job.Job, error)

	// FindActive retrieves all jobs not in a terminal phase
	FindActive(ctx context.Context) ([]*job.Job, error)
}
