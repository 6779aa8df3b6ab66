package workflow

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
	"github.com/fieldworks/jobflow/internal/domain/model/rule"
)

// Load reads and validates a workflow definition from the filesystem
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("workflow: read: %w", err)
	}
	return Parse(data)
}

// Parse decodes a workflow definition with strict field checking, so a
// misspelled key fails at load instead of silently dropping configuration
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("workflow: parse: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes a workflow definition to the filesystem. Load(Save(cfg))
// yields an equivalent configuration.
func Save(fs afero.Fs, path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("workflow: marshal: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("workflow: write: %w", err)
	}
	return nil
}

// validateConfig performs schema validation before domain conversion
func validateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return errors.New(`workflow: "name" is required`)
	}
	if strings.TrimSpace(cfg.InitialPhase) == "" {
		return errors.New(`workflow: "initial_phase" is required`)
	}
	if len(cfg.Phases) == 0 {
		return errors.New(`workflow: "phases" must be a non-empty array`)
	}

	seen := make(map[string]struct{})
	for i, p := range cfg.Phases {
		idx := fmt.Sprintf("workflow.phases[%d]", i)
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf(`%s: "name" is required`, idx)
		}
		if _, exists := seen[p.Name]; exists {
			return fmt.Errorf(`%s: duplicate phase "%s"`, idx, p.Name)
		}
		seen[p.Name] = struct{}{}

		if p.Escalation != nil {
			if strings.TrimSpace(p.Escalation.Timeout) == "" {
				return fmt.Errorf(`%s: escalation "timeout" is required`, idx)
			}
			if len(p.Escalation.EscalateTo) == 0 {
				return fmt.Errorf(`%s: escalation "escalate_to" must be non-empty`, idx)
			}
		}
	}

	seenRules := make(map[string]struct{})
	for i, r := range cfg.Rules {
		idx := fmt.Sprintf("workflow.rules[%d]", i)
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf(`%s: "name" is required`, idx)
		}
		if _, exists := seenRules[r.Name]; exists {
			return fmt.Errorf(`%s: duplicate rule "%s"`, idx, r.Name)
		}
		seenRules[r.Name] = struct{}{}
	}

	return nil
}

// BuildRegistry converts the phase configuration into a validated
// registry. Graph-level problems (dangling references, unreachable
// phases) surface here.
func (c *Config) BuildRegistry() (*phase.Registry, error) {
	defs := make([]*phase.Definition, 0, len(c.Phases))
	for i, p := range c.Phases {
		def, err := buildDefinition(p)
		if err != nil {
			return nil, fmt.Errorf("workflow.phases[%d]: %w", i, err)
		}
		defs = append(defs, def)
	}
	return phase.NewRegistry(phase.Name(c.InitialPhase), defs)
}

func buildDefinition(p PhaseConfig) (*phase.Definition, error) {
	allowedNext := make([]phase.Name, 0, len(p.AllowedNext))
	for _, n := range p.AllowedNext {
		allowedNext = append(allowedNext, phase.Name(n))
	}

	permissions := make(map[model.Action]model.Roles, len(p.Permissions))
	for action, roles := range p.Permissions {
		permissions[model.Action(action)] = model.RolesFromStrings(roles)
	}

	autoActions := make([]phase.AutoAction, 0, len(p.AutoActions))
	for _, a := range p.AutoActions {
		autoActions = append(autoActions, phase.AutoAction(a))
	}

	var escalation *phase.Escalation
	if p.Escalation != nil {
		timeout, err := time.ParseDuration(p.Escalation.Timeout)
		if err != nil {
			return nil, fmt.Errorf("escalation timeout: %w", err)
		}
		escalation = &phase.Escalation{
			Timeout:    timeout,
			EscalateTo: model.RolesFromStrings(p.Escalation.EscalateTo),
		}
	}

	return phase.NewDefinition(
		phase.Name(p.Name),
		p.Order,
		allowedNext,
		p.RequiredFields,
		permissions,
		autoActions,
		escalation,
	)
}

// BuildRules converts the rule configuration into domain rules
func (c *Config) BuildRules() ([]rule.Rule, error) {
	rules := make([]rule.Rule, 0, len(c.Rules))
	for i, rc := range c.Rules {
		r := rule.Rule{
			Name:     rc.Name,
			Type:     rule.Type(rc.Type),
			Required: rc.Required,
			Message:  rc.Message,
		}
		for _, cc := range rc.Conditions {
			r.Conditions = append(r.Conditions, rule.Condition{
				Field:    cc.Field,
				Operator: rule.Operator(cc.Operator),
				Value:    cc.Value,
				Logic:    rule.Logic(cc.Logic),
			})
		}
		for _, ac := range rc.Actions {
			r.Actions = append(r.Actions, rule.Action{
				Type:       rule.ActionType(ac.Type),
				Parameters: ac.Parameters,
			})
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("workflow.rules[%d]: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}
