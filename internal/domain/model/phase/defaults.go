package phase

import (
	"time"

	"github.com/fieldworks/jobflow/internal/domain/model"
)

// DefaultRegistry returns the built-in nine-phase job order workflow plus
// the Archived and Cancelled special states. This is the configuration used
// when no workflow definition artifact is supplied; it matches the shipped
// workflow.yaml.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Submission, DefaultDefinitions())
	if err != nil {
		// The built-in table is validated by tests; a failure here is a
		// programming error, not a runtime condition.
		panic(err)
	}
	return r
}

// DefaultDefinitions returns the built-in phase definitions in phase order
func DefaultDefinitions() []*Definition {
	mgmt := model.Roles{model.RoleProjectManager, model.RoleSystemManager}

	defs := []*Definition{
		mustDefinition(Submission, 1,
			[]Name{Estimation, Cancelled},
			[]string{"customer_name", "project_name", "job_type", "start_date", "description"},
			map[model.Action]model.Roles{
				model.ActionView:    {},
				model.ActionEdit:    append(model.Roles{model.RoleJobCoordinator}, mgmt...),
				model.ActionApprove: append(model.Roles{model.RoleJobCoordinator}, mgmt...),
			},
			[]AutoAction{AutoNotifyEstimator},
			nil,
		),
		mustDefinition(Estimation, 2,
			[]Name{ClientApproval, Submission},
			[]string{"scope_of_work", "material_requisitions", "labor_entries"},
			map[model.Action]model.Roles{
				model.ActionEdit:    append(model.Roles{model.RoleEstimator}, mgmt...),
				model.ActionApprove: append(model.Roles{model.RoleEstimator}, mgmt...),
			},
			[]AutoAction{AutoCalculateEstimates, AutoNotifyClient},
			nil,
		),
		mustDefinition(ClientApproval, 3,
			[]Name{Planning, Estimation, Cancelled},
			[]string{"total_material_cost", "total_labor_cost"},
			map[model.Action]model.Roles{
				model.ActionEdit:    append(model.Roles{model.RoleClient, model.RoleSalesManager}, mgmt...),
				model.ActionApprove: append(model.Roles{model.RoleClient, model.RoleSalesManager}, mgmt...),
			},
			[]AutoAction{AutoNotifyPlanningTeam},
			&Escalation{
				Timeout:    7 * 24 * time.Hour,
				EscalateTo: model.Roles{model.RoleSalesManager, model.RoleProjectManager},
			},
		),
		mustDefinition(Planning, 4,
			[]Name{Prework, ClientApproval},
			[]string{"team_members", "start_date", "end_date"},
			map[model.Action]model.Roles{
				model.ActionEdit:    append(model.Roles{model.RoleResourceCoordinator}, mgmt...),
				model.ActionApprove: append(model.Roles{model.RoleResourceCoordinator}, mgmt...),
			},
			[]AutoAction{AutoAllocateResources, AutoNotifyTeam},
			nil,
		),
		mustDefinition(Prework, 5,
			[]Name{Execution, Planning},
			[]string{"material_requisitions", "team_members"},
			map[model.Action]model.Roles{
				model.ActionEdit:    append(model.Roles{model.RoleSiteSupervisor}, mgmt...),
				model.ActionApprove: append(model.Roles{model.RoleSiteSupervisor}, mgmt...),
			},
			[]AutoAction{AutoOrderMaterials, AutoNotifyExecutionTeam},
			nil,
		),
		mustDefinition(Execution, 6,
			[]Name{Review, Prework},
			[]string{"labor_entries"},
			map[model.Action]model.Roles{
				model.ActionEdit:    append(model.Roles{model.RoleSiteSupervisor, model.RoleTechnician}, mgmt...),
				model.ActionApprove: append(model.Roles{model.RoleSiteSupervisor}, mgmt...),
			},
			[]AutoAction{AutoNotifyReviewTeam},
			&Escalation{
				Timeout:    72 * time.Hour,
				EscalateTo: model.Roles{model.RoleProjectManager, model.RoleOperationsManager},
			},
		),
		mustDefinition(Review, 7,
			[]Name{Invoicing, Execution},
			[]string{"total_labor_hours", "total_material_cost"},
			map[model.Action]model.Roles{
				model.ActionEdit:    append(model.Roles{model.RoleQualityInspector}, mgmt...),
				model.ActionApprove: append(model.Roles{model.RoleQualityInspector, model.RoleClient}, mgmt...),
			},
			[]AutoAction{AutoNotifyBilling},
			nil,
		),
		mustDefinition(Invoicing, 8,
			[]Name{Closeout, Review},
			[]string{"total_material_cost", "total_labor_cost"},
			map[model.Action]model.Roles{
				model.ActionEdit:    append(model.Roles{model.RoleBillingClerk, model.RoleAccountant}, mgmt...),
				model.ActionApprove: append(model.Roles{model.RoleAccountant}, mgmt...),
			},
			[]AutoAction{AutoGenerateInvoice, AutoNotifyAccounts},
			nil,
		),
		mustDefinition(Closeout, 9,
			[]Name{Archived},
			[]string{"documents", "total_labor_hours", "total_material_cost", "total_labor_cost"},
			map[model.Action]model.Roles{
				model.ActionEdit:    append(model.Roles{model.RoleDocumentController}, mgmt...),
				model.ActionApprove: mgmt,
			},
			[]AutoAction{AutoGenerateFinalReport, AutoNotifyCompletion},
			nil,
		),
		mustDefinition(Archived, 10,
			nil,
			nil,
			map[model.Action]model.Roles{
				model.ActionView: {},
			},
			[]AutoAction{AutoArchiveSnapshot},
			nil,
		),
		mustDefinition(Cancelled, 0,
			nil,
			[]string{"cancellation_reason"},
			map[model.Action]model.Roles{
				model.ActionEdit:    mgmt,
				model.ActionApprove: mgmt,
			},
			[]AutoAction{AutoReleaseResources, AutoNotifyCancellation},
			nil,
		),
	}
	return defs
}

func mustDefinition(
	name Name,
	order int,
	allowedNext []Name,
	requiredFields []string,
	rolePermissions map[model.Action]model.Roles,
	autoActions []AutoAction,
	escalation *Escalation,
) *Definition {
	d, err := NewDefinition(name, order, allowedNext, requiredFields, rolePermissions, autoActions, escalation)
	if err != nil {
		panic(err)
	}
	return d
}
