package workflow

import (
	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
	"github.com/fieldworks/jobflow/internal/domain/model/rule"
)

// Default returns the built-in job order workflow as a config, ready to be
// written out by `jobflow init` and edited from there
func Default() *Config {
	cfg := &Config{
		Name:         "job-order",
		InitialPhase: phase.Submission.String(),
	}
	for _, def := range phase.DefaultDefinitions() {
		cfg.Phases = append(cfg.Phases, phaseConfigFrom(def))
	}
	for _, r := range rule.DefaultRules() {
		cfg.Rules = append(cfg.Rules, ruleConfigFrom(r))
	}
	return cfg
}

func phaseConfigFrom(def *phase.Definition) PhaseConfig {
	pc := PhaseConfig{
		Name:           def.Name().String(),
		Order:          def.Order(),
		RequiredFields: def.RequiredFields(),
	}
	for _, n := range def.AllowedNext() {
		pc.AllowedNext = append(pc.AllowedNext, n.String())
	}
	for _, action := range []model.Action{model.ActionView, model.ActionEdit, model.ActionApprove} {
		roles := def.PermittedRoles(action)
		if len(roles) == 0 {
			continue
		}
		if pc.Permissions == nil {
			pc.Permissions = make(map[string][]string)
		}
		pc.Permissions[action.String()] = roles.Strings()
	}
	for _, a := range def.AutoActions() {
		pc.AutoActions = append(pc.AutoActions, a.String())
	}
	if esc := def.EscalationConfig(); esc != nil {
		pc.Escalation = &EscalationConfig{
			Timeout:    esc.Timeout.String(),
			EscalateTo: esc.EscalateTo.Strings(),
		}
	}
	return pc
}

func ruleConfigFrom(r rule.Rule) RuleConfig {
	rc := RuleConfig{
		Name:     r.Name,
		Type:     r.Type.String(),
		Required: r.Required,
		Message:  r.Message,
	}
	for _, c := range r.Conditions {
		rc.Conditions = append(rc.Conditions, ConditionConfig{
			Field:    c.Field,
			Operator: string(c.Operator),
			Value:    c.Value,
			Logic:    string(c.Logic),
		})
	}
	for _, a := range r.Actions {
		rc.Actions = append(rc.Actions, ActionConfig{
			Type:       string(a.Type),
			Parameters: a.Parameters,
		})
	}
	return rc
}
