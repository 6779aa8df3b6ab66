package phase

import (
	"errors"
	"fmt"
	"time"

	"github.com/fieldworks/jobflow/internal/domain/model"
)

// Name identifies a workflow phase
type Name string

// Phases of the built-in job order workflow. Custom definitions may rename
// or extend these; only Cancelled and the terminal phase are structural.
const (
	Submission     Name = "Submission"
	Estimation     Name = "Estimation"
	ClientApproval Name = "Client Approval"
	Planning       Name = "Planning"
	Prework        Name = "Prework"
	Execution      Name = "Execution"
	Review         Name = "Review"
	Invoicing      Name = "Invoicing"
	Closeout       Name = "Closeout"
	Archived       Name = "Archived"
	Cancelled      Name = "Cancelled"
)

// String returns the string representation
func (n Name) String() string {
	return string(n)
}

// AutoAction is a side effect declared on a phase and executed in order
// after a job enters it. Auto actions are best-effort: a failure is logged
// and never rolls back the transition.
type AutoAction string

const (
	AutoNotifyEstimator     AutoAction = "notify_estimator"
	AutoCalculateEstimates  AutoAction = "calculate_estimates"
	AutoNotifyClient        AutoAction = "notify_client"
	AutoNotifyPlanningTeam  AutoAction = "notify_planning_team"
	AutoAllocateResources   AutoAction = "allocate_resources"
	AutoNotifyTeam          AutoAction = "notify_team"
	AutoOrderMaterials      AutoAction = "order_materials"
	AutoNotifyExecutionTeam AutoAction = "notify_execution_team"
	AutoNotifyReviewTeam    AutoAction = "notify_review_team"
	AutoNotifyBilling       AutoAction = "notify_billing"
	AutoGenerateInvoice     AutoAction = "generate_invoice"
	AutoNotifyAccounts      AutoAction = "notify_accounts"
	AutoGenerateFinalReport AutoAction = "generate_final_report"
	AutoNotifyCompletion    AutoAction = "notify_completion"
	AutoArchiveSnapshot     AutoAction = "archive_snapshot"
	AutoReleaseResources    AutoAction = "release_resources"
	AutoNotifyCancellation  AutoAction = "notify_cancellation"
)

// String returns the string representation
func (a AutoAction) String() string {
	return string(a)
}

// IsValid validates the auto action
func (a AutoAction) IsValid() bool {
	switch a {
	case AutoNotifyEstimator, AutoCalculateEstimates, AutoNotifyClient,
		AutoNotifyPlanningTeam, AutoAllocateResources, AutoNotifyTeam,
		AutoOrderMaterials, AutoNotifyExecutionTeam, AutoNotifyReviewTeam,
		AutoNotifyBilling, AutoGenerateInvoice, AutoNotifyAccounts,
		AutoGenerateFinalReport, AutoNotifyCompletion, AutoArchiveSnapshot,
		AutoReleaseResources, AutoNotifyCancellation:
		return true
	default:
		return false
	}
}

// Escalation configures a time-based notification for a phase. The timeout
// counts from the moment the job enters the phase; firing never forces a
// transition, it only notifies the configured roles.
type Escalation struct {
	Timeout    time.Duration
	EscalateTo model.Roles
}

// Definition is the immutable description of a single workflow phase
type Definition struct {
	name            Name
	order           int
	allowedNext     []Name
	requiredFields  []string
	rolePermissions map[model.Action]model.Roles
	autoActions     []AutoAction
	escalation      *Escalation
}

// NewDefinition creates a phase definition. Structural validation against
// the rest of the graph happens in NewRegistry.
func NewDefinition(
	name Name,
	order int,
	allowedNext []Name,
	requiredFields []string,
	rolePermissions map[model.Action]model.Roles,
	autoActions []AutoAction,
	escalation *Escalation,
) (*Definition, error) {
	if name == "" {
		return nil, errors.New("phase name cannot be empty")
	}
	if order < 0 {
		return nil, fmt.Errorf("phase %s: order must be non-negative", name)
	}
	for _, a := range autoActions {
		if !a.IsValid() {
			return nil, fmt.Errorf("phase %s: unknown auto action %q", name, a)
		}
	}
	if escalation != nil {
		if escalation.Timeout <= 0 {
			return nil, fmt.Errorf("phase %s: escalation timeout must be positive", name)
		}
		if len(escalation.EscalateTo) == 0 {
			return nil, fmt.Errorf("phase %s: escalation requires at least one target role", name)
		}
	}
	if rolePermissions == nil {
		rolePermissions = map[model.Action]model.Roles{}
	}
	for action := range rolePermissions {
		if !action.IsValid() {
			return nil, fmt.Errorf("phase %s: unknown permission action %q", name, action)
		}
	}
	return &Definition{
		name:            name,
		order:           order,
		allowedNext:     append([]Name(nil), allowedNext...),
		requiredFields:  append([]string(nil), requiredFields...),
		rolePermissions: rolePermissions,
		autoActions:     append([]AutoAction(nil), autoActions...),
		escalation:      escalation,
	}, nil
}

// Name returns the phase name
func (d *Definition) Name() Name {
	return d.name
}

// Order returns the position of the phase in the forward chain.
// Cancelled uses order 0 as a special out-of-band state.
func (d *Definition) Order() int {
	return d.order
}

// AllowedNext returns the explicitly configured next phases
func (d *Definition) AllowedNext() []Name {
	return append([]Name(nil), d.allowedNext...)
}

// RequiredFields returns the fields that must be present and non-empty
// before a job may enter this phase
func (d *Definition) RequiredFields() []string {
	return append([]string(nil), d.requiredFields...)
}

// PermittedRoles returns the roles allowed to perform the given action
func (d *Definition) PermittedRoles(action model.Action) model.Roles {
	return d.rolePermissions[action]
}

// AutoActions returns the auto actions in declared order
func (d *Definition) AutoActions() []AutoAction {
	return append([]AutoAction(nil), d.autoActions...)
}

// EscalationConfig returns the escalation settings, or nil when the phase
// has no timeout configured
func (d *Definition) EscalationConfig() *Escalation {
	return d.escalation
}

// IsTerminal reports whether the phase is absorbing: no explicit next
// phases and not the Cancelled special state
func (d *Definition) IsTerminal() bool {
	return len(d.allowedNext) == 0 && d.name != Cancelled
}
