package job

import (
	"errors"
	"time"

	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
)

// Job is the business record tracked through the workflow. The engine is
// handed exclusive logical access to a job for the duration of one
// transition; field values themselves are owned by the document store and
// treated opaquely here.
type Job struct {
	id            model.JobID
	currentPhase  phase.Name
	phaseStarted  time.Time
	fields        map[string]any
	cancelledFrom *phase.Name
	version       int64
	createdAt     time.Time
	updatedAt     time.Time
}

// NewJob creates a job in the given initial phase
func NewJob(initial phase.Name, fields map[string]any) (*Job, error) {
	if initial == "" {
		return nil, errors.New("initial phase cannot be empty")
	}
	if fields == nil {
		fields = map[string]any{}
	}
	now := time.Now().UTC()
	return &Job{
		id:           model.NewJobID(),
		currentPhase: initial,
		phaseStarted: now,
		fields:       fields,
		version:      1,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ReconstructJob rebuilds a job from stored data
func ReconstructJob(
	id model.JobID,
	currentPhase phase.Name,
	phaseStarted time.Time,
	fields map[string]any,
	cancelledFrom *phase.Name,
	version int64,
	createdAt, updatedAt time.Time,
) *Job {
	if fields == nil {
		fields = map[string]any{}
	}
	return &Job{
		id:            id,
		currentPhase:  currentPhase,
		phaseStarted:  phaseStarted,
		fields:        fields,
		cancelledFrom: cancelledFrom,
		version:       version,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

// ID returns the job ID
func (j *Job) ID() model.JobID {
	return j.id
}

// CurrentPhase returns the phase the job is in
func (j *Job) CurrentPhase() phase.Name {
	return j.currentPhase
}

// PhaseStartedAt returns when the job entered its current phase
func (j *Job) PhaseStartedAt() time.Time {
	return j.phaseStarted
}

// TimeInPhase returns how long the job has sat in its current phase
func (j *Job) TimeInPhase(now time.Time) time.Duration {
	return now.Sub(j.phaseStarted)
}

// Version returns the optimistic-concurrency version
func (j *Job) Version() int64 {
	return j.version
}

// CreatedAt returns the creation timestamp
func (j *Job) CreatedAt() time.Time {
	return j.createdAt
}

// UpdatedAt returns the last update timestamp
func (j *Job) UpdatedAt() time.Time {
	return j.updatedAt
}

// IsCancelled reports whether the job sits in the Cancelled phase
func (j *Job) IsCancelled() bool {
	return j.currentPhase == phase.Cancelled
}

// CancelledFrom returns the phase the job was cancelled from, or nil when
// the job is not cancelled. Reactivation targets this phase.
func (j *Job) CancelledFrom() *phase.Name {
	if j.cancelledFrom == nil {
		return nil
	}
	v := *j.cancelledFrom
	return &v
}

// Fields returns a copy of the job's field values
func (j *Job) Fields() map[string]any {
	out := make(map[string]any, len(j.fields))
	for k, v := range j.fields {
		out[k] = v
	}
	return out
}

// Field returns a single field value
func (j *Job) Field(name string) (any, bool) {
	v, ok := j.fields[name]
	return v, ok
}

// HasField reports whether the field is present and non-empty
func (j *Job) HasField(name string) bool {
	v, ok := j.fields[name]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// SetField sets a field value
func (j *Job) SetField(name string, value any) {
	j.fields[name] = value
	j.updatedAt = time.Now().UTC()
}

// BeginPhase moves the job into a new phase at the given instant and resets
// the phase clock. Entering Cancelled records the phase left behind so a
// later reactivation can return to it; entering any other phase clears the
// record. Transition legality is the validator's concern, not the entity's.
func (j *Job) BeginPhase(to phase.Name, at time.Time) {
	if to == phase.Cancelled {
		from := j.currentPhase
		j.cancelledFrom = &from
	} else {
		j.cancelledFrom = nil
	}
	j.currentPhase = to
	j.phaseStarted = at
	j.updatedAt = at
}
