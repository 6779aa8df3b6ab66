package rule

// DefaultRules returns the built-in business rules evaluated on every
// transition, in evaluation order. They mirror the shipped workflow.yaml
// and can be overridden by AddCustomRule.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "job_order_approval_threshold",
			Type:     TypeApproval,
			Required: false,
			Message:  "jobs over 10,000 require manager approval",
			Conditions: []Condition{
				{Field: "total_cost", Operator: OpGreater, Value: 10000, Logic: LogicAnd},
			},
			Actions: []Action{
				{Type: ActionRequireApproval, Parameters: map[string]string{"role": "Project Manager"}},
			},
		},
		{
			Name:     "urgent_job_priority",
			Type:     TypeAutoAction,
			Required: false,
			Conditions: []Condition{
				{Field: "priority", Operator: OpEqual, Value: "Urgent", Logic: LogicAnd},
			},
			Actions: []Action{
				{Type: ActionPriorityAllocation, Parameters: map[string]string{"level": "high"}},
			},
		},
		{
			Name:     "material_lead_time_check",
			Type:     TypeAutoAction,
			Required: false,
			Conditions: []Condition{
				{Field: "has_materials", Operator: OpEqual, Value: true, Logic: LogicAnd},
			},
			Actions: []Action{
				{Type: ActionCheckLeadTimes},
			},
		},
		{
			Name:     "weekend_work_approval",
			Type:     TypeApproval,
			Required: false,
			Message:  "weekend work requires operations approval",
			Conditions: []Condition{
				{Field: "scheduled_weekend", Operator: OpEqual, Value: true, Logic: LogicAnd},
			},
			Actions: []Action{
				{Type: ActionRequireApproval, Parameters: map[string]string{"role": "Operations Manager"}},
			},
		},
		{
			Name:     "quality_check_requirement",
			Type:     TypeValidation,
			Required: false,
			Conditions: []Condition{
				{Field: "risk_level", Operator: OpIn, Value: []string{"High", "Critical"}, Logic: LogicAnd},
			},
			Actions: []Action{
				{Type: ActionRequireQualityInspection},
			},
		},
	}
}
