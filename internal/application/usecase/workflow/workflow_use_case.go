package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/history"
	"github.com/fieldworks/jobflow/internal/domain/model/job"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
	"github.com/fieldworks/jobflow/internal/domain/service"
)

// ErrJobBusy is returned when another transition holds the job's lease.
// The caller should retry; the attempt is never silently dropped.
var ErrJobBusy = errors.New("job is being modified, retry")

// Status is the overall outcome of a transition attempt
type Status string

const (
	StatusSuccess  Status = "success"
	StatusRejected Status = "rejected"
)

// TransitionRequest describes one transition attempt. ActorRoles may be
// left empty, in which case roles are resolved through the authorization
// gateway.
type TransitionRequest struct {
	JobID      string
	ToPhase    phase.Name
	Actor      string
	ActorRoles model.Roles
	Comment    string
	SourceIP   string
}

// TransitionResult reports the outcome of a transition attempt. Business
// rejections are results, not errors; only infrastructure failures surface
// as errors.
type TransitionResult struct {
	Status        Status
	Kind          service.RejectionKind
	Message       string
	MissingFields []string
	FromPhase     phase.Name
	NewPhase      phase.Name
	Timestamp     time.Time
}

// BulkItemResult is the outcome for one job of a bulk transition
type BulkItemResult struct {
	JobID  string
	Result *TransitionResult
	Err    string
}

// Info summarizes a job's workflow position
type Info struct {
	JobID           string
	CurrentPhase    phase.Name
	ValidNextPhases []phase.Name
	PhaseStartedAt  time.Time
	Progress        float64
	Cancelled       bool
	CancelledFrom   *phase.Name
}

// UseCase is the workflow engine's caller-facing contract
type UseCase interface {
	// CreateJob creates a job in the initial phase and records the
	// initial history entry
	CreateJob(ctx context.Context, fields map[string]any, actor string) (*job.Job, error)

	// ExecuteTransition attempts to move a job to a new phase end to end:
	// lock, validate, persist, audit, side effects
	ExecuteTransition(ctx context.Context, req TransitionRequest) (*TransitionResult, error)

	// ValidateTransition is a dry run of the validation pipeline with no
	// side effects
	ValidateTransition(ctx context.Context, jobID string, to phase.Name, actor string, actorRoles model.Roles) (service.ValidationResult, error)

	// BulkTransition applies the same transition to several jobs in order,
	// continuing past rejections
	BulkTransition(ctx context.Context, jobIDs []string, to phase.Name, actor string, comment string) ([]BulkItemResult, error)

	// GetWorkflowInfo returns the job's current workflow position
	GetWorkflowInfo(ctx context.Context, jobID string) (*Info, error)

	// GetHistory returns the job's ledger entries ordered by time
	GetHistory(ctx context.Context, jobID string) ([]*history.Entry, error)
}
