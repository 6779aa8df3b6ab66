package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobID represents a unique identifier for a job order
type JobID struct {
	value string
}

// NewJobID creates a new JobID
func NewJobID() JobID {
	return JobID{value: uuid.New().String()}
}

// NewJobIDFromString creates a JobID from an existing string
func NewJobIDFromString(id string) (JobID, error) {
	if id == "" {
		return JobID{}, errors.New("job ID cannot be empty")
	}
	return JobID{value: id}, nil
}

// String returns the string representation
func (j JobID) String() string {
	return j.value
}

// Equals checks if two JobIDs are equal
func (j JobID) Equals(other JobID) bool {
	return j.value == other.value
}

// Role represents an operational role held by an actor
type Role string

// Roles known to the default workflow configuration. Custom workflow
// definitions may introduce additional roles; these constants only cover
// the built-in phase table.
const (
	RoleJobCoordinator      Role = "Job Coordinator"
	RoleEstimator           Role = "Estimator"
	RoleClient              Role = "Client"
	RoleSalesManager        Role = "Sales Manager"
	RoleProjectManager      Role = "Project Manager"
	RoleResourceCoordinator Role = "Resource Coordinator"
	RoleSiteSupervisor      Role = "Site Supervisor"
	RoleTechnician          Role = "Technician"
	RoleQualityInspector    Role = "Quality Inspector"
	RoleBillingClerk        Role = "Billing Clerk"
	RoleAccountant          Role = "Accountant"
	RoleDocumentController  Role = "Document Controller"
	RoleOperationsManager   Role = "Operations Manager"
	RoleSystemManager       Role = "System Manager"
)

// String returns the string representation
func (r Role) String() string {
	return string(r)
}

// Roles is a set of roles held by an actor during a transition attempt
type Roles []Role

// Contains checks whether the set holds the given role
func (rs Roles) Contains(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// Intersects checks whether any role in the set appears in other
func (rs Roles) Intersects(other Roles) bool {
	for _, r := range rs {
		if other.Contains(r) {
			return true
		}
	}
	return false
}

// Strings returns the roles as plain strings
func (rs Roles) Strings() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

// RolesFromStrings converts plain strings to a role set
func RolesFromStrings(values []string) Roles {
	out := make(Roles, len(values))
	for i, v := range values {
		out[i] = Role(v)
	}
	return out
}

// Action represents a permission-gated operation on a phase
type Action string

const (
	ActionView    Action = "view"
	ActionEdit    Action = "edit"
	ActionApprove Action = "approve"
)

// String returns the string representation
func (a Action) String() string {
	return string(a)
}

// IsValid validates the action
func (a Action) IsValid() bool {
	switch a {
	case ActionView, ActionEdit, ActionApprove:
		return true
	default:
		return false
	}
}

// Outcome represents the result of a recorded transition attempt
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeRejected  Outcome = "rejected"
	OutcomeEscalated Outcome = "escalated"
)

// String returns the string representation
func (o Outcome) String() string {
	return string(o)
}

// IsValid validates the outcome
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSucceeded, OutcomeRejected, OutcomeEscalated:
		return true
	default:
		return false
	}
}

// Timestamp represents a point in time
type Timestamp struct {
	value time.Time
}

// NewTimestamp creates a new Timestamp with current time
func NewTimestamp() Timestamp {
	return Timestamp{value: time.Now().UTC()}
}

// NewTimestampFromTime creates a Timestamp from a time.Time value
func NewTimestampFromTime(t time.Time) Timestamp {
	return Timestamp{value: t}
}

// Value returns the time.Time value
func (t Timestamp) Value() time.Time {
	return t.value
}

// Before checks if this timestamp is before another
func (t Timestamp) Before(other Timestamp) bool {
	return t.value.Before(other.value)
}

// After checks if this timestamp is after another
func (t Timestamp) After(other Timestamp) bool {
	return t.value.After(other.value)
}

// String returns the string representation
func (t Timestamp) String() string {
	return t.value.Format(time.RFC3339)
}
