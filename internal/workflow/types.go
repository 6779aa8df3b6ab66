package workflow

// Config is the on-disk workflow definition: the phase graph plus the
// business rules evaluated on transitions. It maps one-to-one onto the
// domain types; Build* performs the conversion and validation.
type Config struct {
	Name         string        `yaml:"name"`
	InitialPhase string        `yaml:"initial_phase"`
	Phases       []PhaseConfig `yaml:"phases"`
	Rules        []RuleConfig  `yaml:"rules,omitempty"`
}

// PhaseConfig describes a single phase
type PhaseConfig struct {
	Name           string              `yaml:"name"`
	Order          int                 `yaml:"order"`
	AllowedNext    []string            `yaml:"allowed_next,omitempty"`
	RequiredFields []string            `yaml:"required_fields,omitempty"`
	Permissions    map[string][]string `yaml:"permissions,omitempty"`
	AutoActions    []string            `yaml:"auto_actions,omitempty"`
	Escalation     *EscalationConfig   `yaml:"escalation,omitempty"`
}

// EscalationConfig describes a phase timeout. Timeout uses Go duration
// syntax ("72h", "168h").
type EscalationConfig struct {
	Timeout    string   `yaml:"timeout"`
	EscalateTo []string `yaml:"escalate_to"`
}

// RuleConfig describes one business rule
type RuleConfig struct {
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"`
	Required   bool              `yaml:"required,omitempty"`
	Message    string            `yaml:"message,omitempty"`
	Conditions []ConditionConfig `yaml:"conditions,omitempty"`
	Actions    []ActionConfig    `yaml:"actions,omitempty"`
}

// ConditionConfig is one comparison in a rule's condition chain
type ConditionConfig struct {
	Field    string `yaml:"field"`
	Operator string `yaml:"operator"`
	Value    any    `yaml:"value"`
	Logic    string `yaml:"logic,omitempty"`
}

// ActionConfig is a behavior triggered when a rule matches
type ActionConfig struct {
	Type       string            `yaml:"type"`
	Parameters map[string]string `yaml:"parameters,omitempty"`
}
