package di

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	workflowusecase "github.com/fieldworks/jobflow/internal/application/usecase/workflow"
	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
	"github.com/fieldworks/jobflow/internal/domain/service"
)

func newTestContainer(t *testing.T) (*Container, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "jobflow.db")
	c, err := NewContainer(Config{
		DBPath: dbPath,
		RoleAssignments: map[string][]string{
			"pat": {model.RoleProjectManager.String()},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, dbPath
}

// allPhaseFields covers the required fields of every phase so a job can
// walk the whole workflow.
func allPhaseFields() map[string]any {
	return map[string]any{
		"customer_name":         "Acme",
		"project_name":          "HQ refit",
		"job_type":              "Electrical",
		"start_date":            "2026-09-01",
		"end_date":              "2026-10-15",
		"description":           "Full rewiring",
		"scope_of_work":         "rewire floors 1-3",
		"material_requisitions": []any{"cable", "conduit"},
		"labor_entries":         []any{"electrician"},
		"total_material_cost":   8000,
		"total_labor_cost":      6000,
		"total_labor_hours":     120,
		"team_members":          []any{"sam", "lee"},
		"documents":             []any{"as-built.pdf"},
		"cancellation_reason":   "placeholder",
	}
}

// A job order walks every phase from submission to the archive.
func TestContainer_FullWorkflowWalk(t *testing.T) {
	c, _ := newTestContainer(t)
	ctx := context.Background()
	uc := c.GetUseCase()

	j, err := uc.CreateJob(ctx, allPhaseFields(), "pat")
	require.NoError(t, err)

	path := []phase.Name{
		phase.Estimation, phase.ClientApproval, phase.Planning, phase.Prework,
		phase.Execution, phase.Review, phase.Invoicing, phase.Closeout, phase.Archived,
	}
	for _, target := range path {
		res, err := uc.ExecuteTransition(ctx, workflowusecase.TransitionRequest{
			JobID:   j.ID().String(),
			ToPhase: target,
			Actor:   "pat",
		})
		require.NoError(t, err, target)
		require.Equal(t, workflowusecase.StatusSuccess, res.Status, target)
	}

	info, err := uc.GetWorkflowInfo(ctx, j.ID().String())
	require.NoError(t, err)
	assert.Equal(t, phase.Archived, info.CurrentPhase)
	assert.Equal(t, 1.0, info.Progress)
	assert.Empty(t, info.ValidNextPhases)

	// Creation plus nine transitions.
	entries, err := uc.GetHistory(ctx, j.ID().String())
	require.NoError(t, err)
	assert.Len(t, entries, 10)

	// Terminal means terminal.
	res, err := uc.ExecuteTransition(ctx, workflowusecase.TransitionRequest{
		JobID:   j.ID().String(),
		ToPhase: phase.Cancelled,
		Actor:   "pat",
	})
	require.NoError(t, err)
	assert.Equal(t, workflowusecase.StatusRejected, res.Status)
}

// Every kind of rejection leaves the job in place and an entry behind.
func TestContainer_RejectionPaths(t *testing.T) {
	c, _ := newTestContainer(t)
	ctx := context.Background()
	uc := c.GetUseCase()

	j, err := uc.CreateJob(ctx, map[string]any{
		"customer_name": "Acme",
		"project_name":  "HQ refit",
		"job_type":      "Electrical",
		"start_date":    "2026-09-01",
		"description":   "Full rewiring",
	}, "pat")
	require.NoError(t, err)
	id := j.ID().String()

	// Phase skip.
	res, err := uc.ExecuteTransition(ctx, workflowusecase.TransitionRequest{
		JobID: id, ToPhase: phase.Execution, Actor: "pat",
	})
	require.NoError(t, err)
	assert.Equal(t, service.RejectionIllegalTransition, res.Kind)

	// Wrong role.
	res, err = uc.ExecuteTransition(ctx, workflowusecase.TransitionRequest{
		JobID: id, ToPhase: phase.Estimation, Actor: "temp",
		ActorRoles: model.Roles{model.RoleTechnician},
	})
	require.NoError(t, err)
	assert.Equal(t, service.RejectionInsufficientRole, res.Kind)

	// Legal edge, allowed role, but the estimation handoff fields are
	// missing.
	res, err = uc.ExecuteTransition(ctx, workflowusecase.TransitionRequest{
		JobID: id, ToPhase: phase.Estimation, Actor: "pat",
	})
	require.NoError(t, err)
	assert.Equal(t, service.RejectionMissingFields, res.Kind)
	assert.Contains(t, res.MissingFields, "scope_of_work")

	info, err := uc.GetWorkflowInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, phase.Submission, info.CurrentPhase)

	entries, err := uc.GetHistory(ctx, id)
	require.NoError(t, err)
	assert.Len(t, entries, 4) // creation + three rejections
}

func TestContainer_CancelAndReactivate(t *testing.T) {
	c, _ := newTestContainer(t)
	ctx := context.Background()
	uc := c.GetUseCase()

	j, err := uc.CreateJob(ctx, allPhaseFields(), "pat")
	require.NoError(t, err)
	id := j.ID().String()

	for _, target := range []phase.Name{phase.Estimation, phase.ClientApproval, phase.Cancelled} {
		res, err := uc.ExecuteTransition(ctx, workflowusecase.TransitionRequest{
			JobID: id, ToPhase: target, Actor: "pat",
		})
		require.NoError(t, err)
		require.Equal(t, workflowusecase.StatusSuccess, res.Status, target)
	}

	info, err := uc.GetWorkflowInfo(ctx, id)
	require.NoError(t, err)
	assert.True(t, info.Cancelled)
	require.NotNil(t, info.CancelledFrom)
	assert.Equal(t, phase.ClientApproval, *info.CancelledFrom)

	// Reactivation to anywhere else is rejected.
	res, err := uc.ExecuteTransition(ctx, workflowusecase.TransitionRequest{
		JobID: id, ToPhase: phase.Submission, Actor: "pat",
	})
	require.NoError(t, err)
	assert.Equal(t, workflowusecase.StatusRejected, res.Status)

	// Back to the phase it was cancelled from.
	res, err = uc.ExecuteTransition(ctx, workflowusecase.TransitionRequest{
		JobID: id, ToPhase: phase.ClientApproval, Actor: "pat",
	})
	require.NoError(t, err)
	assert.Equal(t, workflowusecase.StatusSuccess, res.Status)

	info, err = uc.GetWorkflowInfo(ctx, id)
	require.NoError(t, err)
	assert.False(t, info.Cancelled)
	assert.Nil(t, info.CancelledFrom)
}

// The cron-style sweep escalates a job stuck past its phase timeout.
func TestContainer_EscalationSweep(t *testing.T) {
	c, dbPath := newTestContainer(t)
	ctx := context.Background()
	uc := c.GetUseCase()

	j, err := uc.CreateJob(ctx, allPhaseFields(), "pat")
	require.NoError(t, err)
	id := j.ID().String()

	for _, target := range []phase.Name{phase.Estimation, phase.ClientApproval} {
		res, err := uc.ExecuteTransition(ctx, workflowusecase.TransitionRequest{
			JobID: id, ToPhase: target, Actor: "pat",
		})
		require.NoError(t, err)
		require.Equal(t, workflowusecase.StatusSuccess, res.Status)
	}

	// Backdate the phase entry past the 7 day client approval timeout.
	raw, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer raw.Close()
	backdated := time.Now().UTC().Add(-8 * 24 * time.Hour).Format(time.RFC3339Nano)
	_, err = raw.Exec(`UPDATE jobs SET phase_started_at = ? WHERE id = ?`, backdated, id)
	require.NoError(t, err)

	escalated, err := c.GetEscalationMonitor().Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, escalated)

	entries, err := uc.GetHistory(ctx, id)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, model.OutcomeEscalated, last.Outcome())

	// Still in Client Approval: escalation informs, it does not move.
	info, err := uc.GetWorkflowInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, phase.ClientApproval, info.CurrentPhase)

	// A second sweep is quiet.
	escalated, err = c.GetEscalationMonitor().Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, escalated)
}

func TestContainer_MetricsAfterTransitions(t *testing.T) {
	c, _ := newTestContainer(t)
	ctx := context.Background()
	uc := c.GetUseCase()

	j, err := uc.CreateJob(ctx, allPhaseFields(), "pat")
	require.NoError(t, err)
	_, err = uc.ExecuteTransition(ctx, workflowusecase.TransitionRequest{
		JobID: j.ID().String(), ToPhase: phase.Estimation, Actor: "pat",
	})
	require.NoError(t, err)

	m, err := c.GetMetricsService().GetMetrics(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, m.TotalJobs)
	assert.Equal(t, 0, m.CompletedJobs)
	assert.Contains(t, m.AvgDurationPerPhase, phase.Submission)
}

// Two workers race the same transition: exactly one wins.
func TestContainer_ConcurrentTransitionAttempts(t *testing.T) {
	c, _ := newTestContainer(t)
	uc := c.GetUseCase()

	j, err := uc.CreateJob(context.Background(), allPhaseFields(), "pat")
	require.NoError(t, err)

	req := workflowusecase.TransitionRequest{
		JobID:   j.ID().String(),
		ToPhase: phase.Estimation,
		Actor:   "pat",
	}

	type outcome struct {
		res *workflowusecase.TransitionResult
		err error
	}
	outcomes := make([]outcome, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := uc.ExecuteTransition(context.Background(), req)
			outcomes[i] = outcome{res, err}
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, o := range outcomes {
		switch {
		case o.err == nil && o.res.Status == workflowusecase.StatusSuccess:
			successes++
		case o.err != nil:
			assert.ErrorIs(t, o.err, workflowusecase.ErrJobBusy)
		default:
			assert.Equal(t, workflowusecase.StatusRejected, o.res.Status)
		}
	}
	assert.Equal(t, 1, successes)

	info, err := uc.GetWorkflowInfo(context.Background(), j.ID().String())
	require.NoError(t, err)
	assert.Equal(t, phase.Estimation, info.CurrentPhase)
}

func TestContainer_UnknownArchiveType(t *testing.T) {
	_, err := NewContainer(Config{
		DBPath:      filepath.Join(t.TempDir(), "jobflow.db"),
		ArchiveType: "tape",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown archive type")
}
