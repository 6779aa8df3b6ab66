package rule

import (
	"errors"
	"fmt"

	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
)

// Type classifies what a rule gates or triggers
type Type string

const (
	TypeValidation Type = "validation"
	TypeApproval   Type = "approval"
	TypeAutoAction Type = "auto_action"
)

// String returns the string representation
func (t Type) String() string {
	return string(t)
}

// IsValid validates the rule type
func (t Type) IsValid() bool {
	switch t {
	case TypeValidation, TypeApproval, TypeAutoAction:
		return true
	default:
		return false
	}
}

// Operator compares a context field against a configured value
type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpIn           Operator = "in"
	OpContains     Operator = "contains"
)

// IsValid validates the operator
func (o Operator) IsValid() bool {
	switch o {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpIn, OpContains:
		return true
	default:
		return false
	}
}

// Logic joins a condition to the next one in the chain
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// IsValid validates the logic operator
func (l Logic) IsValid() bool {
	return l == LogicAnd || l == LogicOr
}

// Condition is one comparison in a rule's condition chain. Logic joins this
// condition to the one after it; the trailing condition's Logic is ignored.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
	Logic    Logic
}

// ActionType is the closed set of behaviors a matched rule may trigger.
// Dispatch is an exhaustive switch, so a typo in configuration fails at
// load rather than silently doing nothing.
type ActionType string

const (
	ActionRequireApproval          ActionType = "require_approval"
	ActionPriorityAllocation       ActionType = "priority_allocation"
	ActionCheckLeadTimes           ActionType = "check_lead_times"
	ActionRequireQualityInspection ActionType = "require_quality_inspection"
	ActionSendNotification         ActionType = "send_notification"
	ActionSetField                 ActionType = "set_field"
	ActionCreateTask               ActionType = "create_task"
)

// IsValid validates the action type
func (a ActionType) IsValid() bool {
	switch a {
	case ActionRequireApproval, ActionPriorityAllocation, ActionCheckLeadTimes,
		ActionRequireQualityInspection, ActionSendNotification, ActionSetField,
		ActionCreateTask:
		return true
	default:
		return false
	}
}

// Action is a behavior triggered when a rule matches
type Action struct {
	Type       ActionType
	Parameters map[string]string
}

// Rule is a declarative condition/action unit evaluated against a
// transition context. Required marks rules whose non-match rejects the
// transition (used by the validator for validation and approval types).
type Rule struct {
	Name       string
	Type       Type
	Required   bool
	Message    string
	Conditions []Condition
	Actions    []Action
}

// Validate checks the rule's structure
func (r Rule) Validate() error {
	if r.Name == "" {
		return errors.New("rule name cannot be empty")
	}
	if !r.Type.IsValid() {
		return fmt.Errorf("rule %s: unknown type %q", r.Name, r.Type)
	}
	for i, c := range r.Conditions {
		if c.Field == "" {
			return fmt.Errorf("rule %s: conditions[%d]: field is required", r.Name, i)
		}
		if !c.Operator.IsValid() {
			return fmt.Errorf("rule %s: conditions[%d]: unknown operator %q", r.Name, i, c.Operator)
		}
		if c.Logic != "" && !c.Logic.IsValid() {
			return fmt.Errorf("rule %s: conditions[%d]: unknown logic %q", r.Name, i, c.Logic)
		}
	}
	for i, a := range r.Actions {
		if !a.Type.IsValid() {
			return fmt.Errorf("rule %s: actions[%d]: unknown action type %q", r.Name, i, a.Type)
		}
	}
	return nil
}

// Context keys injected by the engine alongside the job's field values
const (
	ContextFromPhase  = "from_phase"
	ContextToPhase    = "to_phase"
	ContextActorRoles = "actor_roles"
	ContextNow        = "now"
)

// Context is the evaluation input: job field values plus transition
// metadata. Values are compared loosely (numeric strings coerce to
// numbers) to match how field values arrive from configuration.
type Context map[string]any

// NewContext builds an evaluation context from job fields and transition
// metadata
func NewContext(fields map[string]any, from, to phase.Name, actorRoles model.Roles, now model.Timestamp) Context {
	ctx := make(Context, len(fields)+4)
	for k, v := range fields {
		ctx[k] = v
	}
	ctx[ContextFromPhase] = from.String()
	ctx[ContextToPhase] = to.String()
	ctx[ContextActorRoles] = actorRoles.Strings()
	ctx[ContextNow] = now.Value()
	return ctx
}
