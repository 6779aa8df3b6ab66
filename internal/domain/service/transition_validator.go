package service

import (
	"fmt"
	"strings"

	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/job"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
	"github.com/fieldworks/jobflow/internal/domain/model/rule"
)

// RejectionKind distinguishes why a transition was rejected so callers can
// render authorization failures differently from input problems
type RejectionKind string

const (
	RejectionNone              RejectionKind = ""
	RejectionIllegalTransition RejectionKind = "illegal_transition"
	RejectionInsufficientRole  RejectionKind = "insufficient_role"
	RejectionMissingFields     RejectionKind = "missing_fields"
	RejectionRuleFailed        RejectionKind = "rule_rejected"
)

// ValidationResult is the structured accept/reject decision for one
// transition attempt
type ValidationResult struct {
	Valid         bool
	Kind          RejectionKind
	Message       string
	MissingFields []string
}

func rejected(kind RejectionKind, message string) ValidationResult {
	return ValidationResult{Valid: false, Kind: kind, Message: message}
}

// TransitionValidator combines phase registry lookups, role checks,
// required-field checks and rule verdicts into a single decision. Checks
// run cheapest first and short-circuit on the first failure.
type TransitionValidator struct {
	registry *phase.Registry
	rules    *rule.Engine
}

// NewTransitionValidator creates a validator over the given registry and
// rules engine
func NewTransitionValidator(registry *phase.Registry, rules *rule.Engine) *TransitionValidator {
	return &TransitionValidator{registry: registry, rules: rules}
}

// Validate decides whether the job may move to the target phase. It never
// mutates the job and appends no history; recording the attempt is the
// engine's responsibility.
func (v *TransitionValidator) Validate(j *job.Job, to phase.Name, actorRoles model.Roles) ValidationResult {
	from := j.CurrentPhase()

	// 1. Structural legality of the edge
	if from == phase.Cancelled {
		target := j.CancelledFrom()
		if target == nil || *target != to {
			want := "unknown"
			if target != nil {
				want = target.String()
			}
			return rejected(RejectionIllegalTransition,
				fmt.Sprintf("invalid transition from %s to %s (reactivation returns to %s)", from, to, want))
		}
	} else {
		if !v.isAllowedNext(from, to) {
			return rejected(RejectionIllegalTransition,
				fmt.Sprintf("invalid transition from %s to %s (valid: %s)", from, to, joinNames(v.registry.ValidNextPhases(from))))
		}
	}

	// 2. Actor authorization against the current phase's approve roles.
	// An empty configured set means the phase places no role restriction.
	fromDef, err := v.registry.Get(from)
	if err != nil {
		return rejected(RejectionIllegalTransition, fmt.Sprintf("unknown current phase %s", from))
	}
	required := fromDef.PermittedRoles(model.ActionApprove)
	if len(required) > 0 && !actorRoles.Intersects(required) {
		return rejected(RejectionInsufficientRole,
			fmt.Sprintf("insufficient role to approve leaving %s (required: %s)", from, joinRoles(required)))
	}

	// 3. Required fields of the target phase
	toDef, err := v.registry.Get(to)
	if err != nil {
		return rejected(RejectionIllegalTransition, fmt.Sprintf("unknown phase %s", to))
	}
	var missing []string
	for _, f := range toDef.RequiredFields() {
		if !j.HasField(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return ValidationResult{
			Valid:         false,
			Kind:          RejectionMissingFields,
			Message:       fmt.Sprintf("missing required fields for %s: %s", to, strings.Join(missing, ", ")),
			MissingFields: missing,
		}
	}

	// 4. Validation and approval rules. Only rules marked required reject
	// on a non-match; advisory rules merely trigger (or skip) actions.
	ctx := rule.NewContext(j.Fields(), from, to, actorRoles, model.NewTimestamp())
	byName := make(map[string]rule.Rule)
	for _, r := range v.rules.Rules() {
		byName[r.Name] = r
	}
	for _, res := range v.rules.Evaluate(ctx, rule.TypeValidation, rule.TypeApproval) {
		r := byName[res.RuleName]
		if r.Required && !res.Matched {
			msg := r.Message
			if msg == "" {
				msg = fmt.Sprintf("rule %s not satisfied", r.Name)
			}
			return rejected(RejectionRuleFailed, msg)
		}
	}

	return ValidationResult{Valid: true, Message: "transition validated"}
}

func (v *TransitionValidator) isAllowedNext(from, to phase.Name) bool {
	for _, n := range v.registry.ValidNextPhases(from) {
		if n == to {
			return true
		}
	}
	return false
}

func joinNames(names []phase.Name) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}

func joinRoles(roles model.Roles) string {
	return strings.Join(roles.Strings(), ", ")
}
