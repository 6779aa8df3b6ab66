package phase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworks/jobflow/internal/domain/model"
)

func TestDefaultRegistry_Valid(t *testing.T) {
	r := DefaultRegistry()

	assert.Equal(t, Submission, r.Initial())
	assert.True(t, r.Has(Archived))
	assert.True(t, r.Has(Cancelled))
	assert.Len(t, r.Names(), 11)
}

func TestNewRegistry_DuplicatePhase(t *testing.T) {
	defs := []*Definition{
		mustDefinition("A", 1, []Name{"B"}, nil, nil, nil, nil),
		mustDefinition("B", 2, nil, nil, nil, nil, nil),
		mustDefinition("A", 3, nil, nil, nil, nil, nil),
	}
	_, err := NewRegistry("A", defs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate phase")
}

func TestNewRegistry_DanglingReference(t *testing.T) {
	defs := []*Definition{
		mustDefinition("A", 1, []Name{"Missing"}, nil, nil, nil, nil),
	}
	_, err := NewRegistry("A", defs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined phase")
}

func TestNewRegistry_UnknownInitial(t *testing.T) {
	defs := []*Definition{
		mustDefinition("A", 1, nil, nil, nil, nil, nil),
	}
	_, err := NewRegistry("B", defs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial phase")
}

func TestNewRegistry_UnreachablePhase(t *testing.T) {
	defs := []*Definition{
		mustDefinition("A", 1, []Name{"B"}, nil, nil, nil, nil),
		mustDefinition("B", 2, nil, nil, nil, nil, nil),
		mustDefinition("Orphan", 3, nil, nil, nil, nil, nil),
	}
	_, err := NewRegistry("A", defs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestValidNextPhases_ImplicitCancelEdge(t *testing.T) {
	r := DefaultRegistry()

	// Planning declares Prework and ClientApproval; Cancelled is implicit.
	next := r.ValidNextPhases(Planning)
	assert.Equal(t, []Name{Prework, ClientApproval, Cancelled}, next)

	// Submission already declares Cancelled; no duplicate.
	next = r.ValidNextPhases(Submission)
	assert.Equal(t, []Name{Estimation, Cancelled}, next)
}

func TestValidNextPhases_TerminalAndCancelled(t *testing.T) {
	r := DefaultRegistry()

	// Archived is terminal: nothing leaves it, not even cancellation.
	assert.Empty(t, r.ValidNextPhases(Archived))

	// Cancelled has no static targets; reactivation is resolved per job.
	assert.Empty(t, r.ValidNextPhases(Cancelled))
}

func TestIsTerminal(t *testing.T) {
	r := DefaultRegistry()

	assert.True(t, r.IsTerminal(Archived))
	assert.False(t, r.IsTerminal(Cancelled))
	assert.False(t, r.IsTerminal(Submission))
}

func TestIsBackward(t *testing.T) {
	r := DefaultRegistry()

	assert.True(t, r.IsBackward(Estimation, Submission))
	assert.False(t, r.IsBackward(Submission, Estimation))
	assert.False(t, r.IsBackward(Execution, Cancelled))
	assert.False(t, r.IsBackward(Cancelled, Execution))
}

func TestProgress(t *testing.T) {
	r := DefaultRegistry()

	assert.InDelta(t, 0.1, r.Progress(Submission), 0.001)
	assert.InDelta(t, 1.0, r.Progress(Archived), 0.001)
	assert.Equal(t, 0.0, r.Progress(Cancelled))
}

func TestNames_OrderedByPhaseOrder(t *testing.T) {
	r := DefaultRegistry()

	names := r.Names()
	require.Len(t, names, 11)
	assert.Equal(t, Cancelled, names[0]) // order 0
	assert.Equal(t, Submission, names[1])
	assert.Equal(t, Archived, names[10])
}

func TestNewDefinition_Validation(t *testing.T) {
	_, err := NewDefinition("", 1, nil, nil, nil, nil, nil)
	assert.Error(t, err)

	_, err = NewDefinition("A", 1, nil, nil, nil, []AutoAction{"bogus"}, nil)
	assert.Error(t, err)

	_, err = NewDefinition("A", 1, nil, nil, nil, nil, &Escalation{Timeout: 0, EscalateTo: model.Roles{model.RoleProjectManager}})
	assert.Error(t, err)

	_, err = NewDefinition("A", 1, nil, nil, map[model.Action]model.Roles{"fly": nil}, nil, nil)
	assert.Error(t, err)
}

func TestDefaultDefinitions_EscalationConfig(t *testing.T) {
	r := DefaultRegistry()

	def, err := r.Get(ClientApproval)
	require.NoError(t, err)
	require.NotNil(t, def.EscalationConfig())
	assert.Equal(t, 7*24*3600.0, def.EscalationConfig().Timeout.Seconds())

	def, err = r.Get(Execution)
	require.NoError(t, err)
	require.NotNil(t, def.EscalationConfig())
	assert.Contains(t, def.EscalationConfig().EscalateTo, model.RoleOperationsManager)
}
