package workflow

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworks/jobflow/internal/domain/model/phase"
	"github.com/fieldworks/jobflow/internal/domain/model/rule"
)

func TestLoad_MinimalWorkflow(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := `
name: simple
initial_phase: Open
phases:
  - name: Open
    order: 1
    allowed_next: [Done]
    permissions:
      approve: [Project Manager]
  - name: Done
    order: 2
rules:
  - name: big_order
    type: approval
    conditions:
      - field: total_cost
        operator: ">"
        value: 1000
    actions:
      - type: require_approval
        parameters:
          role: Project Manager
`
	require.NoError(t, afero.WriteFile(fs, "workflow.yaml", []byte(content), 0o644))

	cfg, err := Load(fs, "workflow.yaml")
	require.NoError(t, err)
	assert.Equal(t, "simple", cfg.Name)

	reg, err := cfg.BuildRegistry()
	require.NoError(t, err)
	assert.Equal(t, phase.Name("Open"), reg.Initial())
	assert.True(t, reg.IsTerminal("Done"))

	rules, err := cfg.BuildRules()
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, rule.TypeApproval, rules[0].Type)
	assert.Equal(t, rule.OpGreater, rules[0].Conditions[0].Operator)
}

// Unknown keys fail at load instead of being dropped.
func TestParse_StrictFields(t *testing.T) {
	_, err := Parse([]byte(`
name: x
initial_phase: Open
phasez:
  - name: Open
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestParse_SchemaValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing name", "initial_phase: A\nphases:\n  - name: A\n", `"name" is required`},
		{"missing initial", "name: x\nphases:\n  - name: A\n", `"initial_phase" is required`},
		{"no phases", "name: x\ninitial_phase: A\nphases: []\n", "non-empty"},
		{"duplicate phase", "name: x\ninitial_phase: A\nphases:\n  - name: A\n  - name: A\n", "duplicate phase"},
		{"escalation without timeout", "name: x\ninitial_phase: A\nphases:\n  - name: A\n    escalation:\n      escalate_to: [Project Manager]\n", `"timeout" is required`},
		{"escalation without targets", "name: x\ninitial_phase: A\nphases:\n  - name: A\n    escalation:\n      timeout: 24h\n", `"escalate_to" must be non-empty`},
		{"duplicate rule", "name: x\ninitial_phase: A\nphases:\n  - name: A\nrules:\n  - name: r\n    type: validation\n  - name: r\n    type: validation\n", "duplicate rule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuildRegistry_BadEscalationTimeout(t *testing.T) {
	cfg, err := Parse([]byte(`
name: x
initial_phase: A
phases:
  - name: A
    escalation:
      timeout: "one week"
      escalate_to: [Project Manager]
`))
	require.NoError(t, err)

	_, err = cfg.BuildRegistry()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escalation timeout")
}

func TestBuildRules_UnknownOperator(t *testing.T) {
	cfg, err := Parse([]byte(`
name: x
initial_phase: A
phases:
  - name: A
rules:
  - name: bad
    type: validation
    conditions:
      - field: f
        operator: "~="
        value: 1
`))
	require.NoError(t, err)

	_, err = cfg.BuildRules()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown operator")
}

// The built-in definition survives a save/load round trip unchanged.
func TestDefault_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	original := Default()

	require.NoError(t, Save(fs, "workflow.yaml", original))
	loaded, err := Load(fs, "workflow.yaml")
	require.NoError(t, err)

	assert.Equal(t, original.Name, loaded.Name)
	assert.Equal(t, original.InitialPhase, loaded.InitialPhase)
	assert.Len(t, loaded.Phases, len(original.Phases))
	assert.Len(t, loaded.Rules, len(original.Rules))

	// The loaded config builds the same graph as the compiled-in registry.
	reg, err := loaded.BuildRegistry()
	require.NoError(t, err)
	builtin := phase.DefaultRegistry()
	assert.Equal(t, builtin.Initial(), reg.Initial())
	assert.Equal(t, builtin.Names(), reg.Names())
	for _, name := range builtin.Names() {
		assert.Equal(t, builtin.ValidNextPhases(name), reg.ValidNextPhases(name), name)
		assert.Equal(t, builtin.IsTerminal(name), reg.IsTerminal(name), name)
		loadedDef, err := reg.Get(name)
		require.NoError(t, err)
		builtinDef, err := builtin.Get(name)
		require.NoError(t, err)
		assert.Equal(t, builtinDef.RequiredFields(), loadedDef.RequiredFields(), name)
		assert.Equal(t, builtinDef.AutoActions(), loadedDef.AutoActions(), name)
	}

	// And rules that evaluate the same way. Deep equality does not hold:
	// YAML decodes list values as []any where the compiled rules use
	// []string.
	rules, err := loaded.BuildRules()
	require.NoError(t, err)
	builtinRules := rule.DefaultRules()
	require.Len(t, rules, len(builtinRules))

	loadedEngine, err := rule.NewEngine(rules)
	require.NoError(t, err)
	builtinEngine, err := rule.NewEngine(builtinRules)
	require.NoError(t, err)

	probes := []rule.Context{
		{"total_cost": 15000},
		{"total_cost": 10000},
		{"priority": "Urgent"},
		{"has_materials": true},
		{"scheduled_weekend": true},
		{"risk_level": "Critical"},
		{"risk_level": "Low"},
	}
	for i, ctx := range probes {
		assert.Equal(t, builtinEngine.Evaluate(ctx), loadedEngine.Evaluate(ctx), "probe %d", i)
	}
}
