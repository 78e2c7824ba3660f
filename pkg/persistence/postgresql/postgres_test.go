package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/admitflow/admitflow/pkg/engine"
	"github.com/admitflow/admitflow/pkg/models"
	"github.com/admitflow/admitflow/pkg/persistence"
	"github.com/admitflow/admitflow/pkg/persistence/postgresql"
	"github.com/admitflow/admitflow/pkg/testutil"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDB(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"application_statuses", "transitions", "stages", "workflow_definitions", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	require.NoError(t, db.Close())
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("admitflow_test"),
			postgres.WithUsername("admitflow"),
			postgres.WithPassword("admitflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDB(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDB(ctx, t, databaseURL)
		require.NoError(t, store.Close(ctx))
		cancel()
	})

	return store, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, db.Close())
	}()

	for _, table := range []string{"workflow_definitions", "stages", "transitions", "application_statuses", "schema_migrations"} {
		var exists bool

		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}
}

func TestWorkflowRepository_RoundTrip(t *testing.T) {
	store, ctx, _ := setupTestDB(t)
	repo := store.WorkflowRepository()

	workflow := testutil.UndergradWorkflow()
	require.NoError(t, repo.Save(ctx, workflow))

	fetched, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.Name, fetched.Name)
	require.Len(t, fetched.Stages, 3)

	// Stages and their outgoing transitions come back in declaration order,
	// matching the file store.
	assert.Equal(t, "Submitted", fetched.Stages[0].Name)
	require.Len(t, fetched.Stages[0].Transitions, 1)
	assert.True(t, fetched.Stages[0].Transitions[0].Automatic)
	require.NotNil(t, fetched.Stages[0].Transitions[0].Condition)
	assert.Equal(t, "documents_complete", fetched.Stages[0].Transitions[0].Condition.Clauses[0].Field)

	assert.Equal(t, "DocsVerified", fetched.Stages[1].Name)
	assert.Equal(t, []string{"make_decision"}, fetched.Stages[1].Transitions[0].RequiredPermissions)
}

func TestWorkflowRepository_StageDeclarationOrderSurvives(t *testing.T) {
	store, ctx, _ := setupTestDB(t)
	repo := store.WorkflowRepository()

	// Equal sequence numbers: declaration order is the only tie-break, and
	// it must be stable across save/load so the graph's entry point does
	// not depend on generated stage IDs.
	first := testutil.CreateTestStage(testutil.WithStageName("First"), testutil.WithSequence(1))
	second := testutil.CreateTestStage(testutil.WithStageName("Second"), testutil.WithSequence(1))
	third := testutil.CreateTestStage(testutil.WithStageName("Third"), testutil.WithSequence(1))

	workflow := testutil.CreateTestWorkflow("tied", "undergraduate", first, second, third)
	require.NoError(t, repo.Save(ctx, workflow))

	fetched, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	require.Len(t, fetched.Stages, 3)
	assert.Equal(t, "First", fetched.Stages[0].Name)
	assert.Equal(t, "Second", fetched.Stages[1].Name)
	assert.Equal(t, "Third", fetched.Stages[2].Name)

	initial, err := engine.InitialStage(fetched)
	require.NoError(t, err)
	assert.Equal(t, first.ID, initial.ID)
}

func TestWorkflowRepository_SaveReplacesGraph(t *testing.T) {
	store, ctx, _ := setupTestDB(t)
	repo := store.WorkflowRepository()

	workflow := testutil.UndergradWorkflow()
	require.NoError(t, repo.Save(ctx, workflow))

	// Drop the Decision stage and rewrite.
	workflow.Stages = workflow.Stages[:2]
	workflow.Stages[1].Transitions = nil
	require.NoError(t, repo.Save(ctx, workflow))

	fetched, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Len(t, fetched.Stages, 2)
	assert.Empty(t, fetched.Stages[1].Transitions)
}

func TestWorkflowRepository_ActivateIsExclusivePerCategory(t *testing.T) {
	store, ctx, _ := setupTestDB(t)
	repo := store.WorkflowRepository()

	first := testutil.UndergradWorkflow()
	second := testutil.UndergradWorkflow()
	second.Name = "Undergrad-2025"
	graduate := testutil.UndergradWorkflow()
	graduate.Name = "Graduate-2024"
	graduate.Category = "graduate"

	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))
	require.NoError(t, repo.Save(ctx, graduate))

	require.NoError(t, repo.Activate(ctx, first.ID))
	require.NoError(t, repo.Activate(ctx, graduate.ID))
	require.NoError(t, repo.Activate(ctx, second.ID))

	active, err := repo.ActiveByCategory(ctx, "undergraduate")
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	active, err = repo.ActiveByCategory(ctx, "graduate")
	require.NoError(t, err)
	assert.Equal(t, graduate.ID, active.ID)

	actives, err := repo.List(ctx, persistence.ListWorkflowsOptions{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, actives, 2)
}

func TestWorkflowRepository_NotFound(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	_, err := store.WorkflowRepository().GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	_, err = store.WorkflowRepository().ActiveByCategory(ctx, "undergraduate")
	assert.True(t, persistence.IsNoActiveWorkflow(err))
}

func TestStatusRepository_AppendOnlyHistory(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	workflow := testutil.UndergradWorkflow()
	require.NoError(t, store.WorkflowRepository().Save(ctx, workflow))

	repo := store.StatusRepository()

	_, err := repo.Latest(ctx, "app-1")
	assert.True(t, persistence.IsStatusNotFound(err))

	for i, stage := range workflow.Stages {
		require.NoError(t, repo.Append(ctx, &models.ApplicationStatus{
			ApplicationID: "app-1",
			WorkflowID:    workflow.ID,
			StageID:       stage.ID,
			Status:        stage.Name,
			Actor:         models.SystemActor(),
			CreatedAt:     time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}

	latest, err := repo.Latest(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "Decision", latest.Status)

	history, err := repo.History(ctx, "app-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "Submitted", history[0].Status)
}

func TestStatusRepository_IdleSince(t *testing.T) {
	store, ctx, _ := setupTestDB(t)
	repo := store.StatusRepository()

	require.NoError(t, repo.Append(ctx, &models.ApplicationStatus{
		ApplicationID: "app-old",
		StageID:       "11111111-1111-1111-1111-111111111111",
		Status:        "Submitted",
		Actor:         models.SystemActor(),
		CreatedAt:     time.Now().UTC().Add(-48 * time.Hour),
	}))
	require.NoError(t, repo.Append(ctx, &models.ApplicationStatus{
		ApplicationID: "app-fresh",
		StageID:       "22222222-2222-2222-2222-222222222222",
		Status:        "Submitted",
		Actor:         models.SystemActor(),
	}))

	idle, err := repo.IdleSince(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, idle, 1)
	assert.Equal(t, "app-old", idle[0].ApplicationID)
}
