package engine

import (
	"testing"

	"github.com/admitflow/admitflow/pkg/persistence"
	"github.com/admitflow/admitflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle_SingleActiveInvariant(t *testing.T) {
	h := newTestHarness(t)
	ctx := t.Context()

	// h.workflow is already saved, inactive. Add two more definitions in the
	// same category and one in another.
	second := testutil.UndergradWorkflow()
	second.Name = "Undergrad-2025"
	third := testutil.UndergradWorkflow()
	third.Name = "Undergrad-2026"
	graduate := testutil.UndergradWorkflow()
	graduate.Name = "Graduate-2024"
	graduate.Category = "graduate"

	repo := h.store.WorkflowRepository()
	require.NoError(t, repo.Save(ctx, second))
	require.NoError(t, repo.Save(ctx, third))
	require.NoError(t, repo.Save(ctx, graduate))

	assertOneActive := func(category, wantID string) {
		t.Helper()

		active, err := repo.List(ctx, persistence.ListWorkflowsOptions{
			Category:   category,
			ActiveOnly: true,
		})
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, wantID, active[0].ID)
	}

	require.NoError(t, h.lifecycle.Activate(ctx, h.workflow.ID))
	assertOneActive("undergraduate", h.workflow.ID)

	require.NoError(t, h.lifecycle.Activate(ctx, second.ID))
	assertOneActive("undergraduate", second.ID)

	require.NoError(t, h.lifecycle.Activate(ctx, third.ID))
	require.NoError(t, h.lifecycle.Activate(ctx, second.ID))
	assertOneActive("undergraduate", second.ID)

	// Activation in another category does not disturb this one.
	require.NoError(t, h.lifecycle.Activate(ctx, graduate.ID))
	assertOneActive("undergraduate", second.ID)
	assertOneActive("graduate", graduate.ID)
}

func TestLifecycle_ActivateRefusesEmptyGraph(t *testing.T) {
	h := newTestHarness(t)
	ctx := t.Context()

	empty := testutil.CreateTestWorkflow("empty", "undergraduate")
	require.NoError(t, h.store.WorkflowRepository().Save(ctx, empty))

	err := h.lifecycle.Activate(ctx, empty.ID)
	require.Error(t, err)
	assert.True(t, IsGraphIntegrity(err))

	active, listErr := h.store.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{
		Category:   "undergraduate",
		ActiveOnly: true,
	})
	require.NoError(t, listErr)
	assert.Empty(t, active)
}

func TestLifecycle_Deactivate(t *testing.T) {
	h := newTestHarness(t)
	ctx := t.Context()

	require.NoError(t, h.lifecycle.Activate(ctx, h.workflow.ID))
	require.NoError(t, h.lifecycle.Deactivate(ctx, h.workflow.ID))

	_, err := h.store.WorkflowRepository().ActiveByCategory(ctx, "undergraduate")
	assert.True(t, persistence.IsNoActiveWorkflow(err))
}

func TestLifecycle_DuplicateIsInactiveAndPersisted(t *testing.T) {
	h := newTestHarness(t)
	ctx := t.Context()

	require.NoError(t, h.lifecycle.Activate(ctx, h.workflow.ID))

	duplicated, err := h.lifecycle.Duplicate(ctx, h.workflow.ID, "Undergrad-2025")
	require.NoError(t, err)
	assert.False(t, duplicated.Active, "duplicate of an active definition is still inactive")

	stored, err := h.store.WorkflowRepository().GetByID(ctx, duplicated.ID)
	require.NoError(t, err)
	assert.Equal(t, "Undergrad-2025", stored.Name)
	assert.Len(t, stored.Stages, len(h.workflow.Stages))
	assert.Len(t, stored.Transitions(), len(h.workflow.Transitions()))

	// The original stays active and untouched.
	original, err := h.store.WorkflowRepository().GetByID(ctx, h.workflow.ID)
	require.NoError(t, err)
	assert.True(t, original.Active)
}
