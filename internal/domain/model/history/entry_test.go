package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
)

func TestNewEntry(t *testing.T) {
	jobID := model.NewJobID()
	from := phase.Submission

	e, err := NewEntry(jobID, &from, phase.Estimation, "alice",
		model.Roles{model.RoleEstimator}, model.OutcomeSucceeded, "", "looks good", "10.0.0.1")
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID())
	assert.Equal(t, jobID, e.JobID())
	require.NotNil(t, e.FromPhase())
	assert.Equal(t, phase.Submission, *e.FromPhase())
	assert.Equal(t, phase.Estimation, e.ToPhase())
	assert.Equal(t, "alice", e.Actor())
	assert.Equal(t, model.OutcomeSucceeded, e.Outcome())
	assert.Equal(t, "looks good", e.Comment())
}

func TestNewEntry_Validation(t *testing.T) {
	jobID := model.NewJobID()

	_, err := NewEntry(jobID, nil, "", "alice", nil, model.OutcomeSucceeded, "", "", "")
	assert.Error(t, err)

	_, err = NewEntry(jobID, nil, phase.Submission, "alice", nil, "exploded", "", "", "")
	assert.Error(t, err)
}

// Operator comments are NFC-normalized so the same text always produces
// the same bytes in the ledger.
func TestNewEntry_CommentNormalization(t *testing.T) {
	jobID := model.NewJobID()

	// "é" as 'e' + combining acute accent (NFD form).
	decomposed := "café"
	e, err := NewEntry(jobID, nil, phase.Submission, "alice", nil, model.OutcomeSucceeded, "", decomposed, "")
	require.NoError(t, err)
	assert.Equal(t, "café", e.Comment())
}

// ULID ids of later entries sort after earlier ones.
func TestEntryIDs_Sortable(t *testing.T) {
	jobID := model.NewJobID()

	first, err := NewEntry(jobID, nil, phase.Submission, "a", nil, model.OutcomeSucceeded, "", "", "")
	require.NoError(t, err)
	second, err := NewEntry(jobID, nil, phase.Submission, "a", nil, model.OutcomeSucceeded, "", "", "")
	require.NoError(t, err)

	assert.Less(t, first.ID(), second.ID())
}

func TestClassify(t *testing.T) {
	reg := phase.DefaultRegistry()
	jobID := model.NewJobID()

	mk := func(from *phase.Name, to phase.Name, outcome model.Outcome) *Entry {
		e, err := NewEntry(jobID, from, to, "a", nil, outcome, "", "", "")
		require.NoError(t, err)
		return e
	}

	submission := phase.Submission
	estimation := phase.Estimation
	execution := phase.Execution
	cancelled := phase.Cancelled

	assert.Equal(t, KindInitial, mk(nil, phase.Submission, model.OutcomeSucceeded).Classify(reg))
	assert.Equal(t, KindForward, mk(&submission, phase.Estimation, model.OutcomeSucceeded).Classify(reg))
	assert.Equal(t, KindBackward, mk(&estimation, phase.Submission, model.OutcomeSucceeded).Classify(reg))
	assert.Equal(t, KindCancellation, mk(&execution, phase.Cancelled, model.OutcomeSucceeded).Classify(reg))
	assert.Equal(t, KindReactivation, mk(&cancelled, phase.Execution, model.OutcomeSucceeded).Classify(reg))
	assert.Equal(t, KindEscalation, mk(&execution, phase.Execution, model.OutcomeEscalated).Classify(reg))
}
