package sqlite

import (
	"context"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/history"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
	"github.com/fieldworks/jobflow/internal/domain/repository"
)

func appendEntry(t *testing.T, repo repository.HistoryRepository, jobID model.JobID, from *phase.Name, to phase.Name, outcome model.Outcome) *history.Entry {
	t.Helper()
	e, err := history.NewEntry(jobID, from, to, "alice",
		model.Roles{model.RoleEstimator}, outcome, "", "", "10.0.0.1")
	require.NoError(t, err)
	require.NoError(t, repo.Append(context.Background(), e))
	return e
}

func TestHistoryRepository_AppendAndFindByJob(t *testing.T) {
	db := setupTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	jobID := model.NewJobID()
	from := phase.Submission

	e, err := history.NewEntry(jobID, &from, phase.Estimation, "alice",
		model.Roles{model.RoleEstimator, model.RoleJobCoordinator},
		model.OutcomeSucceeded, "", "looks complete", "10.0.0.1")
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, e))

	entries, err := repo.FindByJob(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, e.ID(), got.ID())
	assert.Equal(t, jobID, got.JobID())
	require.NotNil(t, got.FromPhase())
	assert.Equal(t, phase.Submission, *got.FromPhase())
	assert.Equal(t, phase.Estimation, got.ToPhase())
	assert.Equal(t, "alice", got.Actor())
	assert.Equal(t, e.ActorRoles().Strings(), got.ActorRoles().Strings())
	assert.Equal(t, model.OutcomeSucceeded, got.Outcome())
	assert.Equal(t, "looks complete", got.Comment())
	assert.Equal(t, "10.0.0.1", got.SourceIP())
}

// The first entry of a job has no from phase.
func TestHistoryRepository_NilFromPhase(t *testing.T) {
	db := setupTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	jobID := model.NewJobID()
	appendEntry(t, repo, jobID, nil, phase.Submission, model.OutcomeSucceeded)

	entries, err := repo.FindByJob(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].FromPhase())
}

func TestHistoryRepository_FindByJob_OrderedByTimestamp(t *testing.T) {
	db := setupTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	jobID := model.NewJobID()
	first := appendEntry(t, repo, jobID, nil, phase.Submission, model.OutcomeSucceeded)
	from := phase.Submission
	second := appendEntry(t, repo, jobID, &from, phase.Estimation, model.OutcomeSucceeded)
	third := appendEntry(t, repo, jobID, &from, phase.Estimation, model.OutcomeRejected)

	entries, err := repo.FindByJob(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, first.ID(), entries[0].ID())
	assert.Equal(t, second.ID(), entries[1].ID())
	assert.Equal(t, third.ID(), entries[2].ID())
}

// Same-instant entries fall back to the monotonic id for ordering.
func TestHistoryRepository_SameTimestampTieBreak(t *testing.T) {
	db := setupTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	jobID := model.NewJobID()
	ts := time.Now().UTC()

	older := history.ReconstructEntry("01AAAAAAAAAAAAAAAAAAAAAAAA", jobID, nil,
		phase.Submission, "a", nil, ts, model.OutcomeSucceeded, "", "", "")
	newer := history.ReconstructEntry("01BBBBBBBBBBBBBBBBBBBBBBBB", jobID, nil,
		phase.Submission, "a", nil, ts, model.OutcomeSucceeded, "", "", "")

	// Insert in reverse order.
	require.NoError(t, repo.Append(ctx, newer))
	require.NoError(t, repo.Append(ctx, older))

	entries, err := repo.FindByJob(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, older.ID(), entries[0].ID())
	assert.Equal(t, newer.ID(), entries[1].ID())
}

func TestHistoryRepository_FindSince(t *testing.T) {
	db := setupTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	jobID := model.NewJobID()
	old := history.ReconstructEntry("01AAAAAAAAAAAAAAAAAAAAAAAA", jobID, nil,
		phase.Submission, "a", nil, time.Now().UTC().Add(-48*time.Hour),
		model.OutcomeSucceeded, "", "", "")
	require.NoError(t, repo.Append(ctx, old))
	recent := appendEntry(t, repo, jobID, nil, phase.Submission, model.OutcomeSucceeded)

	entries, err := repo.FindSince(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, recent.ID(), entries[0].ID())

	entries, err = repo.FindSince(ctx, time.Now().UTC().Add(-72*time.Hour))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

// Rejected attempts land in the ledger just like successes.
func TestHistoryRepository_RejectionsRecorded(t *testing.T) {
	db := setupTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	jobID := model.NewJobID()
	from := phase.Submission
	e, err := history.NewEntry(jobID, &from, phase.Execution, "bob", nil,
		model.OutcomeRejected, "invalid transition from Submission to Execution", "", "")
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, e))

	entries, err := repo.FindByJob(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.OutcomeRejected, entries[0].Outcome())
	assert.Equal(t, "invalid transition from Submission to Execution", entries[0].Reason())
}
