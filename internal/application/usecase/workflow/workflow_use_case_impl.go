package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldworks/jobflow/internal/app"
	"github.com/fieldworks/jobflow/internal/application/port/output"
	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/history"
	"github.com/fieldworks/jobflow/internal/domain/model/job"
	"github.com/fieldworks/jobflow/internal/domain/model/lock"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
	"github.com/fieldworks/jobflow/internal/domain/model/rule"
	"github.com/fieldworks/jobflow/internal/domain/repository"
	"github.com/fieldworks/jobflow/internal/domain/service"
)

// DefaultLockTTL bounds how long a single transition may hold a job's
// lease before it is considered stale
const DefaultLockTTL = 30 * time.Second

// EscalationScheduler arms and cancels per-phase-entry escalation timers.
// Implemented by the escalation monitor; nil disables in-process timers.
type EscalationScheduler interface {
	Arm(jobID model.JobID, p phase.Name, entered time.Time)
	Cancel(jobID model.JobID)
}

// MetricsInvalidator drops cached workflow metrics after a successful
// transition
type MetricsInvalidator interface {
	Invalidate()
}

// UseCaseImpl implements the workflow engine. All collaborators are
// injected; the engine holds no process-global state.
type UseCaseImpl struct {
	registry  *phase.Registry
	rules     *rule.Engine
	validator *service.TransitionValidator

	jobRepo     repository.JobRepository
	historyRepo repository.HistoryRepository
	lockRepo    repository.JobLockRepository
	txManager   output.TransactionManager

	authz        output.AuthorizationGateway
	notification output.NotificationGateway
	archive      output.ArchiveGateway

	escalations EscalationScheduler
	metrics     MetricsInvalidator

	lockTTL time.Duration
}

// Config bundles the engine's collaborators
type Config struct {
	Registry     *phase.Registry
	Rules        *rule.Engine
	JobRepo      repository.JobRepository
	HistoryRepo  repository.HistoryRepository
	LockRepo     repository.JobLockRepository
	TxManager    output.TransactionManager
	Authz        output.AuthorizationGateway
	Notification output.NotificationGateway
	Archive      output.ArchiveGateway
	Escalations  EscalationScheduler
	Metrics      MetricsInvalidator
	LockTTL      time.Duration
}

// NewUseCase creates the workflow engine
func NewUseCase(cfg Config) *UseCaseImpl {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &UseCaseImpl{
		registry:     cfg.Registry,
		rules:        cfg.Rules,
		validator:    service.NewTransitionValidator(cfg.Registry, cfg.Rules),
		jobRepo:      cfg.JobRepo,
		historyRepo:  cfg.HistoryRepo,
		lockRepo:     cfg.LockRepo,
		txManager:    cfg.TxManager,
		authz:        cfg.Authz,
		notification: cfg.Notification,
		archive:      cfg.Archive,
		escalations:  cfg.Escalations,
		metrics:      cfg.Metrics,
		lockTTL:      ttl,
	}
}

var _ UseCase = (*UseCaseImpl)(nil)

// CreateJob creates a job in the registry's initial phase and records the
// initial ledger entry in the same transaction.
func (uc *UseCaseImpl) CreateJob(ctx context.Context, fields map[string]any, actor string) (*job.Job, error) {
	j, err := job.NewJob(uc.registry.Initial(), fields)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	entry, err := history.NewEntry(j.ID(), nil, j.CurrentPhase(), actor, nil,
		model.OutcomeSucceeded, "", "job created", "")
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	err = uc.txManager.InTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.jobRepo.Create(txCtx, j); err != nil {
			return err
		}
		return uc.historyRepo.Append(txCtx, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	uc.armEscalation(j)
	return j, nil
}

// ExecuteTransition attempts a transition end to end. The job's lease is
// held for the whole validate+mutate+append sequence; the phase mutation
// and the audit entry commit atomically. Auto actions, notifications and
// escalation arming happen after commit and never roll back the move.
func (uc *UseCaseImpl) ExecuteTransition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	jobID, err := model.NewJobIDFromString(req.JobID)
	if err != nil {
		return nil, err
	}

	lockID, err := lock.NewLockID(jobID)
	if err != nil {
		return nil, err
	}
	held, err := uc.lockRepo.Acquire(ctx, lockID, uc.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire job lock: %w", err)
	}
	if held == nil {
		return nil, ErrJobBusy
	}
	defer func() {
		if err := uc.lockRepo.Release(context.WithoutCancel(ctx), lockID); err != nil {
			app.GetLogger().Warn("release job lock %s: %v", lockID, err)
		}
	}()

	j, err := uc.jobRepo.Find(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}

	roles, err := uc.resolveRoles(ctx, req.Actor, req.ActorRoles)
	if err != nil {
		return nil, err
	}

	from := j.CurrentPhase()
	verdict := uc.validator.Validate(j, req.ToPhase, roles)

	if !verdict.Valid {
		// A rejection is still an audited event. Losing the audit entry is
		// treated the same as a failed attempt, so the append error
		// propagates.
		entry, err := history.NewEntry(jobID, &from, req.ToPhase, req.Actor, roles,
			model.OutcomeRejected, verdict.Message, req.Comment, req.SourceIP)
		if err != nil {
			return nil, err
		}
		if err := uc.historyRepo.Append(ctx, entry); err != nil {
			return nil, fmt.Errorf("record rejection: %w", err)
		}
		return &TransitionResult{
			Status:        StatusRejected,
			Kind:          verdict.Kind,
			Message:       verdict.Message,
			MissingFields: verdict.MissingFields,
			FromPhase:     from,
			NewPhase:      from,
			Timestamp:     entry.Timestamp(),
		}, nil
	}

	now := time.Now().UTC()
	expectedVersion := j.Version()
	j.BeginPhase(req.ToPhase, now)

	// Auto-action rules may set fields; apply before persisting so the
	// values land in the same write.
	deferred := uc.applyRuleActions(j, from, req.ToPhase, roles)

	entry, err := history.NewEntry(jobID, &from, req.ToPhase, req.Actor, roles,
		model.OutcomeSucceeded, "", req.Comment, req.SourceIP)
	if err != nil {
		return nil, err
	}

	err = uc.txManager.InTransaction(ctx, func(txCtx context.Context) error {
		if _, err := uc.jobRepo.Save(txCtx, j, expectedVersion); err != nil {
			return err
		}
		return uc.historyRepo.Append(txCtx, entry)
	})
	if err != nil {
		// Rolled back: the phase change was not applied without its audit
		// entry.
		return nil, fmt.Errorf("commit transition %s -> %s: %w", from, req.ToPhase, err)
	}

	uc.cancelEscalation(jobID)
	uc.runDeferredRuleActions(ctx, j, deferred)
	uc.runAutoActions(ctx, j)
	uc.armEscalation(j)
	if uc.metrics != nil {
		uc.metrics.Invalidate()
	}

	return &TransitionResult{
		Status:    StatusSuccess,
		Message:   fmt.Sprintf("transitioned from %s to %s", from, req.ToPhase),
		FromPhase: from,
		NewPhase:  req.ToPhase,
		Timestamp: now,
	}, nil
}

// ValidateTransition runs the validation pipeline without holding the
// lease, mutating the job or appending history.
func (uc *UseCaseImpl) ValidateTransition(ctx context.Context, jobID string, to phase.Name, actor string, actorRoles model.Roles) (service.ValidationResult, error) {
	id, err := model.NewJobIDFromString(jobID)
	if err != nil {
		return service.ValidationResult{}, err
	}
	j, err := uc.jobRepo.Find(ctx, id)
	if err != nil {
		return service.ValidationResult{}, fmt.Errorf("load job %s: %w", id, err)
	}
	roles, err := uc.resolveRoles(ctx, actor, actorRoles)
	if err != nil {
		return service.ValidationResult{}, err
	}
	return uc.validator.Validate(j, to, roles), nil
}

// BulkTransition applies one transition to several jobs, in order. A
// rejection or busy job does not stop the batch.
func (uc *UseCaseImpl) BulkTransition(ctx context.Context, jobIDs []string, to phase.Name, actor string, comment string) ([]BulkItemResult, error) {
	results := make([]BulkItemResult, 0, len(jobIDs))
	for _, id := range jobIDs {
		res, err := uc.ExecuteTransition(ctx, TransitionRequest{
			JobID:   id,
			ToPhase: to,
			Actor:   actor,
			Comment: comment,
		})
		item := BulkItemResult{JobID: id, Result: res}
		if err != nil {
			item.Err = err.Error()
		}
		results = append(results, item)
	}
	return results, nil
}

// GetWorkflowInfo returns the job's position in the workflow
func (uc *UseCaseImpl) GetWorkflowInfo(ctx context.Context, jobID string) (*Info, error) {
	id, err := model.NewJobIDFromString(jobID)
	if err != nil {
		return nil, err
	}
	j, err := uc.jobRepo.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}

	next := uc.registry.ValidNextPhases(j.CurrentPhase())
	if j.IsCancelled() {
		if target := j.CancelledFrom(); target != nil {
			next = []phase.Name{*target}
		}
	}

	return &Info{
		JobID:           j.ID().String(),
		CurrentPhase:    j.CurrentPhase(),
		ValidNextPhases: next,
		PhaseStartedAt:  j.PhaseStartedAt(),
		Progress:        uc.registry.Progress(j.CurrentPhase()),
		Cancelled:       j.IsCancelled(),
		CancelledFrom:   j.CancelledFrom(),
	}, nil
}

// GetHistory returns the ledger entries for a job, oldest first
func (uc *UseCaseImpl) GetHistory(ctx context.Context, jobID string) ([]*history.Entry, error) {
	id, err := model.NewJobIDFromString(jobID)
	if err != nil {
		return nil, err
	}
	return uc.historyRepo.FindByJob(ctx, id)
}

func (uc *UseCaseImpl) resolveRoles(ctx context.Context, actor string, roles model.Roles) (model.Roles, error) {
	if len(roles) > 0 {
		return roles, nil
	}
	if uc.authz == nil {
		return nil, nil
	}
	resolved, err := uc.authz.GetRoles(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("resolve roles for %s: %w", actor, err)
	}
	return resolved, nil
}

func (uc *UseCaseImpl) armEscalation(j *job.Job) {
	if uc.escalations == nil {
		return
	}
	def, err := uc.registry.Get(j.CurrentPhase())
	if err != nil || def.EscalationConfig() == nil {
		return
	}
	uc.escalations.Arm(j.ID(), j.CurrentPhase(), j.PhaseStartedAt())
}

func (uc *UseCaseImpl) cancelEscalation(jobID model.JobID) {
	if uc.escalations != nil {
		uc.escalations.Cancel(jobID)
	}
}

// applyRuleActions evaluates auto-action rules against the transition
// context. set_field actions mutate the job immediately so they persist
// with the transition; everything else is returned for post-commit
// execution.
func (uc *UseCaseImpl) applyRuleActions(j *job.Job, from, to phase.Name, roles model.Roles) []rule.Action {
	ctx := rule.NewContext(j.Fields(), from, to, roles, model.NewTimestamp())
	var deferred []rule.Action
	for _, res := range uc.rules.Evaluate(ctx, rule.TypeAutoAction) {
		for _, action := range res.ActionsTriggered {
			if action.Type == rule.ActionSetField {
				field := action.Parameters["field"]
				if field == "" {
					app.GetLogger().Warn("rule %s: set_field without field parameter", res.RuleName)
					continue
				}
				j.SetField(field, action.Parameters["value"])
				continue
			}
			deferred = append(deferred, action)
		}
	}
	return deferred
}

// runDeferredRuleActions dispatches the remaining rule actions after
// commit. The switch is exhaustive over the closed action type set.
func (uc *UseCaseImpl) runDeferredRuleActions(ctx context.Context, j *job.Job, actions []rule.Action) {
	for _, action := range actions {
		var err error
		switch action.Type {
		case rule.ActionSendNotification:
			recipients := model.Roles{model.RoleProjectManager}
			if role := action.Parameters["role"]; role != "" {
				recipients = model.Roles{model.Role(role)}
			}
			err = uc.notify(ctx, j, output.TemplateRuleTriggered, recipients, map[string]string{
				"message": action.Parameters["message"],
			})
		case rule.ActionRequireApproval:
			app.GetLogger().Info("job %s: approval required from %s", j.ID(), action.Parameters["role"])
		case rule.ActionPriorityAllocation:
			app.GetLogger().Info("job %s: priority allocation level %s", j.ID(), action.Parameters["level"])
		case rule.ActionCheckLeadTimes:
			app.GetLogger().Info("job %s: material lead time check requested", j.ID())
		case rule.ActionRequireQualityInspection:
			app.GetLogger().Info("job %s: quality inspection required", j.ID())
		case rule.ActionCreateTask:
			app.GetLogger().Info("job %s: follow-up task requested (%s)", j.ID(), action.Parameters["task_type"])
		case rule.ActionSetField:
			// Already applied before commit.
		}
		if err != nil {
			app.GetLogger().Warn("rule action %s for job %s: %v", action.Type, j.ID(), err)
		}
	}
}

// runAutoActions executes the new phase's declared auto actions in order.
// Best-effort: a failure is logged and does not roll back the transition.
func (uc *UseCaseImpl) runAutoActions(ctx context.Context, j *job.Job) {
	def, err := uc.registry.Get(j.CurrentPhase())
	if err != nil {
		return
	}
	for _, action := range def.AutoActions() {
		if err := uc.runAutoAction(ctx, j, action); err != nil {
			app.GetLogger().Warn("auto action %s for job %s: %v", action, j.ID(), err)
		}
	}
}

func (uc *UseCaseImpl) runAutoAction(ctx context.Context, j *job.Job, action phase.AutoAction) error {
	switch action {
	case phase.AutoNotifyEstimator:
		return uc.notifyEntered(ctx, j, model.Roles{model.RoleEstimator})
	case phase.AutoNotifyClient:
		return uc.notifyEntered(ctx, j, model.Roles{model.RoleClient})
	case phase.AutoNotifyPlanningTeam:
		return uc.notifyEntered(ctx, j, model.Roles{model.RoleProjectManager, model.RoleResourceCoordinator})
	case phase.AutoNotifyTeam, phase.AutoNotifyExecutionTeam:
		return uc.notifyEntered(ctx, j, model.Roles{model.RoleSiteSupervisor, model.RoleTechnician})
	case phase.AutoNotifyReviewTeam:
		return uc.notifyEntered(ctx, j, model.Roles{model.RoleQualityInspector})
	case phase.AutoNotifyBilling:
		return uc.notifyEntered(ctx, j, model.Roles{model.RoleBillingClerk})
	case phase.AutoNotifyAccounts:
		return uc.notifyEntered(ctx, j, model.Roles{model.RoleAccountant})
	case phase.AutoNotifyCompletion:
		return uc.notifyEntered(ctx, j, model.Roles{model.RoleProjectManager})
	case phase.AutoNotifyCancellation:
		return uc.notify(ctx, j, output.TemplateCancellation, model.Roles{model.RoleProjectManager}, nil)
	case phase.AutoArchiveSnapshot:
		return uc.archiveSnapshot(ctx, j)
	case phase.AutoCalculateEstimates, phase.AutoAllocateResources, phase.AutoOrderMaterials,
		phase.AutoGenerateInvoice, phase.AutoGenerateFinalReport, phase.AutoReleaseResources:
		// Integration hooks for external systems; acknowledged here.
		app.GetLogger().Info("auto action %s acknowledged for job %s", action, j.ID())
		return nil
	default:
		return fmt.Errorf("unknown auto action %q", action)
	}
}

func (uc *UseCaseImpl) notifyEntered(ctx context.Context, j *job.Job, recipients model.Roles) error {
	return uc.notify(ctx, j, output.TemplatePhaseEntered, recipients, nil)
}

func (uc *UseCaseImpl) notify(ctx context.Context, j *job.Job, template string, recipients model.Roles, extra map[string]string) error {
	if uc.notification == nil {
		return nil
	}
	payload := map[string]string{
		"job_id": j.ID().String(),
		"phase":  j.CurrentPhase().String(),
	}
	for k, v := range extra {
		payload[k] = v
	}
	return uc.notification.Enqueue(ctx, template, recipients, payload)
}

// archiveSnapshot stores a final snapshot of the job and its ledger when
// it reaches the archived phase
func (uc *UseCaseImpl) archiveSnapshot(ctx context.Context, j *job.Job) error {
	if uc.archive == nil {
		return nil
	}
	entries, err := uc.historyRepo.FindByJob(ctx, j.ID())
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	type snapshotEntry struct {
		From      string    `json:"from_phase,omitempty"`
		To        string    `json:"to_phase"`
		Actor     string    `json:"actor"`
		Outcome   string    `json:"outcome"`
		Reason    string    `json:"reason,omitempty"`
		Timestamp time.Time `json:"timestamp"`
	}
	snapshot := struct {
		JobID   string          `json:"job_id"`
		Phase   string          `json:"phase"`
		Fields  map[string]any  `json:"fields"`
		History []snapshotEntry `json:"history"`
	}{
		JobID:  j.ID().String(),
		Phase:  j.CurrentPhase().String(),
		Fields: j.Fields(),
	}
	for _, e := range entries {
		se := snapshotEntry{
			To:        e.ToPhase().String(),
			Actor:     e.Actor(),
			Outcome:   e.Outcome().String(),
			Reason:    e.Reason(),
			Timestamp: e.Timestamp(),
		}
		if from := e.FromPhase(); from != nil {
			se.From = from.String()
		}
		snapshot.History = append(snapshot.History, se)
	}

	content, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = uc.archive.SaveSnapshot(ctx, output.SnapshotRequest{
		JobID:       j.ID().String(),
		Content:     content,
		ContentType: "application/json",
		Metadata:    map[string]string{"phase": j.CurrentPhase().String()},
	})
	return err
}
