package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fieldworks/jobflow/internal/app"
	"github.com/fieldworks/jobflow/internal/application/port/output"
	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/history"
	"github.com/fieldworks/jobflow/internal/domain/model/job"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
	"github.com/fieldworks/jobflow/internal/domain/repository"
)

// EscalationActor is recorded as the actor on escalation ledger entries
const EscalationActor = "system"

// EscalationMonitor watches phase dwell time. One timer is armed per phase
// entry and cancelled when the job leaves the phase; firing re-checks the
// job's current phase so a job that already advanced never produces a
// stale escalation. Escalation notifies, it never forces a transition.
//
// A short-lived process cannot rely on in-memory timers, so Sweep offers
// the same check as a cron-style pass over all active jobs.
type EscalationMonitor struct {
	registry     *phase.Registry
	jobRepo      repository.JobRepository
	historyRepo  repository.HistoryRepository
	notification output.NotificationGateway

	mu      sync.Mutex
	timers  map[string]*time.Timer
	wg      sync.WaitGroup
	stopped bool
}

// NewEscalationMonitor creates a monitor over the given collaborators
func NewEscalationMonitor(
	registry *phase.Registry,
	jobRepo repository.JobRepository,
	historyRepo repository.HistoryRepository,
	notification output.NotificationGateway,
) *EscalationMonitor {
	return &EscalationMonitor{
		registry:     registry,
		jobRepo:      jobRepo,
		historyRepo:  historyRepo,
		notification: notification,
		timers:       make(map[string]*time.Timer),
	}
}

// Arm schedules an escalation check for the job's stay in the given phase.
// Re-arming for the same job replaces the previous timer.
func (m *EscalationMonitor) Arm(jobID model.JobID, p phase.Name, entered time.Time) {
	def, err := m.registry.Get(p)
	if err != nil || def.EscalationConfig() == nil {
		return
	}
	delay := time.Until(entered.Add(def.EscalationConfig().Timeout))
	if delay < 0 {
		delay = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	key := jobID.String()
	if t, ok := m.timers[key]; ok {
		t.Stop()
	}
	m.timers[key] = time.AfterFunc(delay, func() {
		m.fire(jobID, p)
	})
}

// Cancel drops the pending timer for a job, if any
func (m *EscalationMonitor) Cancel(jobID model.JobID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[jobID.String()]; ok {
		t.Stop()
		delete(m.timers, jobID.String())
	}
}

// Stop cancels all timers and waits for in-flight escalations
func (m *EscalationMonitor) Stop() {
	m.mu.Lock()
	m.stopped = true
	for key, t := range m.timers {
		t.Stop()
		delete(m.timers, key)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *EscalationMonitor) fire(jobID model.JobID, armedPhase phase.Name) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	delete(m.timers, jobID.String())
	m.mu.Unlock()
	defer m.wg.Done()

	ctx := context.Background()
	j, err := m.jobRepo.Find(ctx, jobID)
	if err != nil {
		app.GetLogger().Warn("escalation check: load job %s: %v", jobID, err)
		return
	}
	// The job may have advanced between arming and firing.
	if j.CurrentPhase() != armedPhase {
		return
	}
	if err := m.escalate(ctx, j); err != nil {
		app.GetLogger().Error("escalation for job %s: %v", jobID, err)
	}
}

// Sweep checks every active job against its phase's escalation timeout.
// Jobs already escalated for their current phase stay are skipped, so a
// frequent cron cadence does not spam.
func (m *EscalationMonitor) Sweep(ctx context.Context) (int, error) {
	jobs, err := m.jobRepo.FindActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}

	escalated := 0
	now := time.Now().UTC()
	for _, j := range jobs {
		def, err := m.registry.Get(j.CurrentPhase())
		if err != nil || def.EscalationConfig() == nil {
			continue
		}
		if j.TimeInPhase(now) <= def.EscalationConfig().Timeout {
			continue
		}
		if err := m.escalate(ctx, j); err != nil {
			app.GetLogger().Error("escalation for job %s: %v", j.ID(), err)
			continue
		}
		escalated++
	}
	return escalated, nil
}

// escalate records the informational ledger entry and enqueues the
// notification. It deduplicates per phase stay: one escalation per entry
// into a phase.
func (m *EscalationMonitor) escalate(ctx context.Context, j *job.Job) error {
	def, err := m.registry.Get(j.CurrentPhase())
	if err != nil {
		return err
	}
	cfg := def.EscalationConfig()
	if cfg == nil {
		return nil
	}

	already, err := m.alreadyEscalated(ctx, j)
	if err != nil {
		return err
	}
	if already {
		return nil
	}

	current := j.CurrentPhase()
	reason := fmt.Sprintf("in %s for more than %s", current, cfg.Timeout)
	entry, err := history.NewEntry(j.ID(), &current, current, EscalationActor, nil,
		model.OutcomeEscalated, reason, "", "")
	if err != nil {
		return err
	}
	// The informational entry matters for dedupe; retry once before
	// giving up.
	if err := m.historyRepo.Append(ctx, entry); err != nil {
		if err = m.historyRepo.Append(ctx, entry); err != nil {
			return fmt.Errorf("append escalation entry: %w", err)
		}
	}

	if m.notification != nil {
		payload := map[string]string{
			"job_id": j.ID().String(),
			"phase":  current.String(),
			"reason": reason,
		}
		if err := m.notification.Enqueue(ctx, output.TemplateEscalation, cfg.EscalateTo, payload); err != nil {
			app.GetLogger().Warn("escalation notification for job %s: %v", j.ID(), err)
		}
	}
	return nil
}

func (m *EscalationMonitor) alreadyEscalated(ctx context.Context, j *job.Job) (bool, error) {
	entries, err := m.historyRepo.FindByJob(ctx, j.ID())
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Outcome() == model.OutcomeEscalated &&
			e.ToPhase() == j.CurrentPhase() &&
			!e.Timestamp().Before(j.PhaseStartedAt()) {
			return true, nil
		}
	}
	return false, nil
}
