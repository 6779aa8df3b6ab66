package history

import (
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
)

// Kind classifies a transition for audit and analytics purposes
type Kind string

const (
	KindInitial      Kind = "initial"
	KindForward      Kind = "forward"
	KindBackward     Kind = "backward"
	KindCancellation Kind = "cancellation"
	KindReactivation Kind = "reactivation"
	KindEscalation   Kind = "escalation"
)

// Entry is one immutable audit record of a transition attempt. Entries are
// created by the workflow engine at the conclusion of an attempt and never
// mutated afterwards; the ULID id makes the ledger sortable by creation
// time even across processes.
type Entry struct {
	id         string
	jobID      model.JobID
	fromPhase  *phase.Name
	toPhase    phase.Name
	actor      string
	actorRoles model.Roles
	timestamp  time.Time
	outcome    model.Outcome
	reason     string
	comment    string
	sourceIP   string
}

// NewEntry creates an audit entry for a transition attempt. The comment is
// NFC-normalized since it is operator-entered free text.
func NewEntry(
	jobID model.JobID,
	fromPhase *phase.Name,
	toPhase phase.Name,
	actor string,
	actorRoles model.Roles,
	outcome model.Outcome,
	reason string,
	comment string,
	sourceIP string,
) (*Entry, error) {
	if toPhase == "" {
		return nil, errors.New("history entry: to_phase cannot be empty")
	}
	if !outcome.IsValid() {
		return nil, errors.New("history entry: invalid outcome")
	}
	now := time.Now().UTC()
	return &Entry{
		id:         ulid.Make().String(),
		jobID:      jobID,
		fromPhase:  copyPhase(fromPhase),
		toPhase:    toPhase,
		actor:      actor,
		actorRoles: append(model.Roles(nil), actorRoles...),
		timestamp:  now,
		outcome:    outcome,
		reason:     reason,
		comment:    norm.NFC.String(comment),
		sourceIP:   sourceIP,
	}, nil
}

// ReconstructEntry rebuilds an entry from stored data
func ReconstructEntry(
	id string,
	jobID model.JobID,
	fromPhase *phase.Name,
	toPhase phase.Name,
	actor string,
	actorRoles model.Roles,
	timestamp time.Time,
	outcome model.Outcome,
	reason string,
	comment string,
	sourceIP string,
) *Entry {
	return &Entry{
		id:         id,
		jobID:      jobID,
		fromPhase:  copyPhase(fromPhase),
		toPhase:    toPhase,
		actor:      actor,
		actorRoles: append(model.Roles(nil), actorRoles...),
		timestamp:  timestamp,
		outcome:    outcome,
		reason:     reason,
		comment:    comment,
		sourceIP:   sourceIP,
	}
}

// ID returns the entry ID (a ULID)
func (e *Entry) ID() string { return e.id }

// JobID returns the job the entry belongs to
func (e *Entry) JobID() model.JobID { return e.jobID }

// FromPhase returns the phase the attempt left, nil for the initial entry
func (e *Entry) FromPhase() *phase.Name { return copyPhase(e.fromPhase) }

// ToPhase returns the attempted target phase
func (e *Entry) ToPhase() phase.Name { return e.toPhase }

// Actor returns who attempted the transition
func (e *Entry) Actor() string { return e.actor }

// ActorRoles returns the roles the actor held at transition time
func (e *Entry) ActorRoles() model.Roles {
	return append(model.Roles(nil), e.actorRoles...)
}

// Timestamp returns when the attempt concluded
func (e *Entry) Timestamp() time.Time { return e.timestamp }

// Outcome returns whether the attempt succeeded, was rejected, or records
// an escalation
func (e *Entry) Outcome() model.Outcome { return e.outcome }

// Reason returns the rejection or escalation reason, empty on success
func (e *Entry) Reason() string { return e.reason }

// Comment returns the operator comment, if any
func (e *Entry) Comment() string { return e.comment }

// SourceIP returns the request origin, if captured
func (e *Entry) SourceIP() string { return e.sourceIP }

// Classify derives the transition kind from the entry and the phase
// registry's ordering
func (e *Entry) Classify(reg *phase.Registry) Kind {
	switch {
	case e.outcome == model.OutcomeEscalated:
		return KindEscalation
	case e.fromPhase == nil:
		return KindInitial
	case e.toPhase == phase.Cancelled:
		return KindCancellation
	case *e.fromPhase == phase.Cancelled:
		return KindReactivation
	case reg.IsBackward(*e.fromPhase, e.toPhase):
		return KindBackward
	default:
		return KindForward
	}
}

func copyPhase(p *phase.Name) *phase.Name {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
