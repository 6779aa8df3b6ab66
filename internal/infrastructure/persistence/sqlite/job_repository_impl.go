package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/job"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
	"github.com/fieldworks/jobflow/internal/domain/repository"
	"github.com/fieldworks/jobflow/internal/infrastructure/transaction"
)

// JobRepositoryImpl implements repository.JobRepository with SQLite.
// Field values travel as a JSON document; the engine never queries inside
// them. Save enforces optimistic concurrency with a versioned UPDATE.
type JobRepositoryImpl struct {
	db       *sql.DB
	registry *phase.Registry
}

// NewJobRepository creates a new SQLite-based job repository
func NewJobRepository(db *sql.DB, registry *phase.Registry) repository.JobRepository {
	return &JobRepositoryImpl{db: db, registry: registry}
}

// getDB returns the appropriate database executor from context
func (r *JobRepositoryImpl) getDB(ctx context.Context) dbExecutor {
	if tx, ok := transaction.TxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// Create stores a new job record
func (r *JobRepositoryImpl) Create(ctx context.Context, j *job.Job) error {
	fieldsJSON, err := json.Marshal(j.Fields())
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	query := `
		INSERT INTO jobs (id, current_phase, phase_started_at, fields, cancelled_from, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	db := r.getDB(ctx)
	_, err = db.ExecContext(ctx, query,
		j.ID().String(),
		j.CurrentPhase().String(),
		j.PhaseStartedAt().Format(time.RFC3339Nano),
		string(fieldsJSON),
		phaseToNull(j.CancelledFrom()),
		j.Version(),
		j.CreatedAt().Format(time.RFC3339Nano),
		j.UpdatedAt().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Find retrieves a job by ID
func (r *JobRepositoryImpl) Find(ctx context.Context, id model.JobID) (*job.Job, error) {
	query := `
		SELECT id, current_phase, phase_started_at, fields, cancelled_from, version, created_at, updated_at
		FROM jobs
		WHERE id = ?
	`

	db := r.getDB(ctx)
	j, err := scanJob(db.QueryRowContext(ctx, query, id.String()))
	if err == sql.ErrNoRows {
		return nil, repository.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Save persists the job's state, guarded by the expected version. The
// UPDATE only matches when the stored version is unchanged; zero rows
// affected means a concurrent writer won.
func (r *JobRepositoryImpl) Save(ctx context.Context, j *job.Job, expectedVersion int64) (int64, error) {
	fieldsJSON, err := json.Marshal(j.Fields())
	if err != nil {
		return 0, fmt.Errorf("marshal fields: %w", err)
	}

	newVersion := expectedVersion + 1
	query := `
		UPDATE jobs
		SET current_phase = ?, phase_started_at = ?, fields = ?, cancelled_from = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	db := r.getDB(ctx)
	result, err := db.ExecContext(ctx, query,
		j.CurrentPhase().String(),
		j.PhaseStartedAt().Format(time.RFC3339Nano),
		string(fieldsJSON),
		phaseToNull(j.CancelledFrom()),
		newVersion,
		j.UpdatedAt().Format(time.RFC3339Nano),
		j.ID().String(),
		expectedVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		// Either the job is gone or the version moved under us.
		var exists int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE id = ?`, j.ID().String()).Scan(&exists); err != nil {
			return 0, fmt.Errorf("check job existence: %w", err)
		}
		if exists == 0 {
			return 0, repository.ErrJobNotFound
		}
		return 0, repository.ErrVersionConflict
	}

	return newVersion, nil
}

// FindByPhase retrieves all jobs currently in the given phase
func (r *JobRepositoryImpl) FindByPhase(ctx context.Context, name phase.Name) ([]*job.Job, error) {
	query := `
		SELECT id, current_phase, phase_started_at, fields, cancelled_from, version, created_at, updated_at
		FROM jobs
		WHERE current_phase = ?
		ORDER BY created_at
	`

	db := r.getDB(ctx)
	rows, err := db.QueryContext(ctx, query, name.String())
	if err != nil {
		return nil, fmt.Errorf("query jobs by phase: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// FindActive retrieves jobs that can still move: everything outside the
// terminal phases and Cancelled
func (r *JobRepositoryImpl) FindActive(ctx context.Context) ([]*job.Job, error) {
	excluded := []string{phase.Cancelled.String()}
	for _, name := range r.registry.Names() {
		if r.registry.IsTerminal(name) {
			excluded = append(excluded, name.String())
		}
	}

	placeholders := strings.Repeat("?,", len(excluded))
	placeholders = placeholders[:len(placeholders)-1]
	query := fmt.Sprintf(`
		SELECT id, current_phase, phase_started_at, fields, cancelled_from, version, created_at, updated_at
		FROM jobs
		WHERE current_phase NOT IN (%s)
		ORDER BY created_at
	`, placeholders)

	args := make([]interface{}, len(excluded))
	for i, name := range excluded {
		args[i] = name
	}

	db := r.getDB(ctx)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query active jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*job.Job, error) {
	var (
		idStr          string
		currentPhase   string
		phaseStartedAt string
		fieldsJSON     string
		cancelledFrom  sql.NullString
		version        int64
		createdAt      string
		updatedAt      string
	)

	if err := row.Scan(&idStr, &currentPhase, &phaseStartedAt, &fieldsJSON, &cancelledFrom, &version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	id, err := model.NewJobIDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse job ID: %w", err)
	}
	phaseStarted, err := time.Parse(time.RFC3339Nano, phaseStartedAt)
	if err != nil {
		return nil, fmt.Errorf("parse phase_started_at: %w", err)
	}
	createdAtTime, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	updatedAtTime, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}

	var cancelled *phase.Name
	if cancelledFrom.Valid && cancelledFrom.String != "" {
		p := phase.Name(cancelledFrom.String)
		cancelled = &p
	}

	return job.ReconstructJob(
		id,
		phase.Name(currentPhase),
		phaseStarted,
		fields,
		cancelled,
		version,
		createdAtTime,
		updatedAtTime,
	), nil
}

func collectJobs(rows *sql.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

func phaseToNull(p *phase.Name) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: p.String(), Valid: true}
}
