package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/job"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
	"github.com/fieldworks/jobflow/internal/domain/repository"
	"github.com/fieldworks/jobflow/internal/infrastructure/transaction"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	// Run migrations
	migrator := NewMigrator(db)
	err = migrator.Migrate()
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func newJobRepo(t *testing.T, db *sql.DB) repository.JobRepository {
	t.Helper()
	return NewJobRepository(db, phase.DefaultRegistry())
}

func TestJobRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := newJobRepo(t, db)
	ctx := context.Background()

	j, err := job.NewJob(phase.Submission, map[string]any{
		"customer_name": "Acme",
		"total_cost":    12500.0,
	})
	require.NoError(t, err)

	require.NoError(t, repo.Create(ctx, j))

	found, err := repo.Find(ctx, j.ID())
	require.NoError(t, err)
	assert.Equal(t, j.ID(), found.ID())
	assert.Equal(t, phase.Submission, found.CurrentPhase())
	assert.Equal(t, int64(1), found.Version())

	name, ok := found.Field("customer_name")
	assert.True(t, ok)
	assert.Equal(t, "Acme", name)
	cost, ok := found.Field("total_cost")
	assert.True(t, ok)
	assert.Equal(t, 12500.0, cost)
}

func TestJobRepository_Find_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := newJobRepo(t, db)

	_, err := repo.Find(context.Background(), model.NewJobID())
	assert.ErrorIs(t, err, repository.ErrJobNotFound)
}

func TestJobRepository_Save_IncrementsVersion(t *testing.T) {
	db := setupTestDB(t)
	repo := newJobRepo(t, db)
	ctx := context.Background()

	j, err := job.NewJob(phase.Submission, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, j))

	j.BeginPhase(phase.Estimation, time.Now().UTC())
	newVersion, err := repo.Save(ctx, j, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), newVersion)

	found, err := repo.Find(ctx, j.ID())
	require.NoError(t, err)
	assert.Equal(t, phase.Estimation, found.CurrentPhase())
	assert.Equal(t, int64(2), found.Version())
}

// Two writers loaded version 1; the second Save must lose.
func TestJobRepository_Save_VersionConflict(t *testing.T) {
	db := setupTestDB(t)
	repo := newJobRepo(t, db)
	ctx := context.Background()

	j, err := job.NewJob(phase.Submission, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, j))

	j.BeginPhase(phase.Estimation, time.Now().UTC())
	_, err = repo.Save(ctx, j, 1)
	require.NoError(t, err)

	// Replay against the stale version.
	_, err = repo.Save(ctx, j, 1)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
}

func TestJobRepository_Save_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := newJobRepo(t, db)

	j, err := job.NewJob(phase.Submission, nil)
	require.NoError(t, err)

	// Never created.
	_, err = repo.Save(context.Background(), j, 1)
	assert.ErrorIs(t, err, repository.ErrJobNotFound)
}

func TestJobRepository_FindByPhase(t *testing.T) {
	db := setupTestDB(t)
	repo := newJobRepo(t, db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		j, err := job.NewJob(phase.Submission, map[string]any{"n": i})
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, j))
	}
	other, err := job.NewJob(phase.Execution, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, other))

	jobs, err := repo.FindByPhase(ctx, phase.Submission)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)

	jobs, err = repo.FindByPhase(ctx, phase.Execution)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	jobs, err = repo.FindByPhase(ctx, phase.Archived)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

// Active means it can still move: Archived and Cancelled jobs are out.
func TestJobRepository_FindActive(t *testing.T) {
	db := setupTestDB(t)
	repo := newJobRepo(t, db)
	ctx := context.Background()

	active, err := job.NewJob(phase.Execution, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, active))

	archived, err := job.NewJob(phase.Archived, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, archived))

	cancelled, err := job.NewJob(phase.Cancelled, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, cancelled))

	jobs, err := repo.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, active.ID(), jobs[0].ID())
}

func TestJobRepository_CancelledFromRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := newJobRepo(t, db)
	ctx := context.Background()

	j, err := job.NewJob(phase.Submission, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, j))

	j.BeginPhase(phase.Execution, time.Now().UTC())
	_, err = repo.Save(ctx, j, 1)
	require.NoError(t, err)

	j.BeginPhase(phase.Cancelled, time.Now().UTC())
	_, err = repo.Save(ctx, j, 2)
	require.NoError(t, err)

	found, err := repo.Find(ctx, j.ID())
	require.NoError(t, err)
	assert.True(t, found.IsCancelled())
	require.NotNil(t, found.CancelledFrom())
	assert.Equal(t, phase.Execution, *found.CancelledFrom())
}

func TestJobRepository_TransactionRollback(t *testing.T) {
	db := setupTestDB(t)
	repo := newJobRepo(t, db)
	txManager := transaction.NewSQLiteTransactionManager(db)
	ctx := context.Background()

	j, err := job.NewJob(phase.Submission, nil)
	require.NoError(t, err)

	err = txManager.InTransaction(ctx, func(txCtx context.Context) error {
		if err := repo.Create(txCtx, j); err != nil {
			return err
		}
		// Force rollback by returning an error
		return fmt.Errorf("intentional rollback")
	})
	require.Error(t, err)

	_, err = repo.Find(ctx, j.ID())
	assert.ErrorIs(t, err, repository.ErrJobNotFound)
}
