package engine

import (
	"testing"

	"github.com/admitflow/admitflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialStage(t *testing.T) {
	// Non-contiguous sequences, declared out of order.
	late := testutil.CreateTestStage(testutil.WithStageName("Late"), testutil.WithSequence(40))
	entry := testutil.CreateTestStage(testutil.WithStageName("Entry"), testutil.WithSequence(5))
	middle := testutil.CreateTestStage(testutil.WithStageName("Middle"), testutil.WithSequence(20))

	workflow := testutil.CreateTestWorkflow("wf", "undergraduate", late, entry, middle)

	initial, err := InitialStage(workflow)
	require.NoError(t, err)
	assert.Equal(t, "Entry", initial.Name)
}

func TestInitialStage_EmptyWorkflow(t *testing.T) {
	workflow := testutil.CreateTestWorkflow("empty", "undergraduate")

	_, err := InitialStage(workflow)
	require.Error(t, err)
	assert.True(t, IsGraphIntegrity(err))
}

func TestTerminalStages(t *testing.T) {
	workflow := testutil.UndergradWorkflow()

	terminal := TerminalStages(workflow)
	require.Len(t, terminal, 1)
	assert.Equal(t, "Decision", terminal[0].Name)
}

func TestValidateGraph(t *testing.T) {
	workflow := testutil.UndergradWorkflow()
	require.NoError(t, ValidateGraph(workflow))

	// Point one transition at a stage outside the workflow.
	workflow.Stages[0].Transitions[0].TargetStageID = "stage-from-another-workflow"

	err := ValidateGraph(workflow)
	require.Error(t, err)
	assert.True(t, IsGraphIntegrity(err))
	assert.ErrorContains(t, err, "unknown target stage")
}

func TestDuplicate(t *testing.T) {
	source := testutil.UndergradWorkflow()
	source.Active = true

	duplicated, err := Duplicate(source, "Undergrad-2025")
	require.NoError(t, err)

	assert.Equal(t, "Undergrad-2025", duplicated.Name)
	assert.Equal(t, source.Category, duplicated.Category)
	assert.False(t, duplicated.Active, "duplicates are always inactive")
	assert.NotEqual(t, source.ID, duplicated.ID)

	require.Len(t, duplicated.Stages, len(source.Stages))
	assert.Len(t, duplicated.Transitions(), len(source.Transitions()))

	// Every transition in the copy connects two stages that both belong to the copy.
	require.NoError(t, ValidateGraph(duplicated))

	for _, transition := range duplicated.Transitions() {
		assert.Equal(t, duplicated.ID, transition.WorkflowID)

		_, sourceOK := duplicated.StageByID(transition.SourceStageID)
		_, targetOK := duplicated.StageByID(transition.TargetStageID)
		assert.True(t, sourceOK)
		assert.True(t, targetOK)
	}

	// No stage or transition ID is shared with the source.
	for _, stage := range duplicated.Stages {
		_, shared := source.StageByID(stage.ID)
		assert.False(t, shared)
	}

	// The source is untouched.
	assert.True(t, source.Active)
	assert.Equal(t, "Undergrad-2024", source.Name)
	require.NoError(t, ValidateGraph(source))
}

func TestDuplicate_CopiesConditionsIndependently(t *testing.T) {
	source := testutil.UndergradWorkflow()

	duplicated, err := Duplicate(source, "copy")
	require.NoError(t, err)

	original := source.Stages[0].Transitions[0].Condition
	copied := duplicated.Stages[0].Transitions[0].Condition

	require.NotNil(t, copied)
	assert.Equal(t, original.Clauses, copied.Clauses)

	copied.Clauses[0].Value = false
	assert.Equal(t, true, original.Clauses[0].Value, "mutating the copy must not touch the source")
}

func TestDuplicate_BrokenSource(t *testing.T) {
	workflow := testutil.UndergradWorkflow()
	workflow.Stages[0].Transitions[0].TargetStageID = "dangling"

	_, err := Duplicate(workflow, "copy")
	require.Error(t, err)
	assert.True(t, IsGraphIntegrity(err))
}

func TestOutgoingTransitions(t *testing.T) {
	workflow := testutil.UndergradWorkflow()
	submitted := workflow.Stages[0]

	outgoing := OutgoingTransitions(submitted)
	require.Len(t, outgoing, 1)
	assert.True(t, outgoing[0].Automatic)

	automatic := AutomaticOutgoingTransitions(submitted)
	assert.Equal(t, outgoing, automatic)

	decision := workflow.Stages[2]
	assert.Empty(t, OutgoingTransitions(decision))

	manual := workflow.Stages[1]
	assert.Len(t, OutgoingTransitions(manual), 1)
	assert.Empty(t, AutomaticOutgoingTransitions(manual))
}

func TestGraphIntegrityError(t *testing.T) {
	err := NewGraphIntegrityError("wf-1", "orphaned stage reference")

	assert.ErrorContains(t, err, "wf-1")
	assert.True(t, IsGraphIntegrity(err))
	assert.False(t, IsGraphIntegrity(assert.AnError))

	var integrity *GraphIntegrityError
	require.ErrorAs(t, error(err), &integrity)
	assert.Equal(t, "wf-1", integrity.WorkflowID)
}
