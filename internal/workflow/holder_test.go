package workflow

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworks/jobflow/internal/domain/model/phase"
)

func TestHolder_Reload(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, Save(fs, "/workflow.yaml", Default()))

	holder, err := NewHolder(fs, "/workflow.yaml")
	require.NoError(t, err)

	registry, rules := holder.Snapshot()
	assert.Equal(t, phase.Submission, registry.Initial())
	assert.NotNil(t, rules)

	// Rewrite the file with a renamed definition and reload.
	cfg := Default()
	cfg.Name = "job_order_workflow_v2"
	require.NoError(t, Save(fs, "/workflow.yaml", cfg))

	require.NoError(t, holder.Reload())
	assert.Equal(t, "job_order_workflow_v2", holder.Config().Name)
}

func TestHolder_FailedReloadKeepsSnapshot(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, Save(fs, "/workflow.yaml", Default()))

	holder, err := NewHolder(fs, "/workflow.yaml")
	require.NoError(t, err)
	before := holder.Config().Name

	require.NoError(t, afero.WriteFile(fs, "/workflow.yaml", []byte("nope: true\n"), 0o644))

	assert.Error(t, holder.Reload())
	assert.Equal(t, before, holder.Config().Name)

	registry, rules := holder.Snapshot()
	assert.NotNil(t, registry)
	assert.NotNil(t, rules)
}

func TestDefaultHolder_ReloadIsNoOp(t *testing.T) {
	holder, err := NewDefaultHolder()
	require.NoError(t, err)

	require.NoError(t, holder.Reload())
	registry, _ := holder.Snapshot()
	assert.Equal(t, phase.Submission, registry.Initial())
}
