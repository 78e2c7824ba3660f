package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/admitflow/admitflow/pkg/models"
	"github.com/admitflow/admitflow/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRepository handles workflow definition database operations. The
// definition, its stages and its transitions are written in one transaction,
// so a reader never observes a partially saved graph.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `
	id
  , name
  , description
  , category
  , active
  , created_by
  , created_at
  , updated_at
`

func (r *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) ([]*models.WorkflowDefinition, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflow_definitions WHERE TRUE`
	args := make([]any, 0, 2)

	if opts.Category != "" {
		args = append(args, opts.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}

	if opts.ActiveOnly {
		query += " AND active"
	}

	query += " ORDER BY created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow definitions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow definition: %w", err)
		}

		if err := r.loadGraph(ctx, workflow); err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow definitions: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflow_definitions WHERE id = $1`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow definition: %w", err)
	}

	if err := r.loadGraph(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *WorkflowRepository) ActiveByCategory(ctx context.Context, category string) (*models.WorkflowDefinition, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflow_definitions WHERE category = $1 AND active`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, category))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewCategoryError("ActiveByCategory", category, persistence.ErrNoActiveWorkflow)
		}

		return nil, fmt.Errorf("failed to scan workflow definition: %w", err)
	}

	if err := r.loadGraph(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.WorkflowDefinition) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_definitions (id, name, description, category, active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , description = EXCLUDED.description
		  , category = EXCLUDED.category
		  , active = EXCLUDED.active
		  , created_by = EXCLUDED.created_by
		  , updated_at = EXCLUDED.updated_at
	`, workflow.ID, workflow.Name, workflow.Description, workflow.Category,
		workflow.Active, workflow.CreatedBy, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert workflow definition: %w", err)
	}

	// Rewrite the graph wholesale. Stages own transitions, so deleting
	// stages cascades to stale transitions.
	_, err = tx.ExecContext(ctx, `DELETE FROM stages WHERE workflow_id = $1`, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to clear stages: %w", err)
	}

	for position, stage := range workflow.Stages {
		if stage.ID == "" {
			stage.ID = uuid.New().String()
		}

		stage.WorkflowID = workflow.ID

		err = insertStage(ctx, tx, stage, position)
		if err != nil {
			return err
		}
	}

	for _, stage := range workflow.Stages {
		for position, transition := range stage.Transitions {
			if transition.ID == "" {
				transition.ID = uuid.New().String()
			}

			transition.WorkflowID = workflow.ID
			transition.SourceStageID = stage.ID
			transition.Position = position

			err = insertTransition(ctx, tx, transition)
			if err != nil {
				return err
			}
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit workflow definition: %w", err)
	}

	return nil
}

func insertStage(ctx context.Context, tx *sql.Tx, stage *models.Stage, position int) error {
	documentTypes, err := json.Marshal(stage.RequiredDocumentTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal required document types: %w", err)
	}

	actions, err := json.Marshal(stage.RequiredActions)
	if err != nil {
		return fmt.Errorf("failed to marshal required actions: %w", err)
	}

	notifications, err := json.Marshal(stage.NotificationTriggers)
	if err != nil {
		return fmt.Errorf("failed to marshal notification triggers: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stages (id, workflow_id, name, description, sequence,
			required_document_types, required_actions, notification_triggers, assigned_role, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, stage.ID, stage.WorkflowID, stage.Name, stage.Description, stage.Sequence,
		documentTypes, actions, notifications, stage.AssignedRole, position)
	if err != nil {
		return fmt.Errorf("failed to insert stage %s: %w", stage.ID, err)
	}

	return nil
}

func insertTransition(ctx context.Context, tx *sql.Tx, transition *models.Transition) error {
	condition, err := json.Marshal(transition.Condition)
	if err != nil {
		return fmt.Errorf("failed to marshal condition: %w", err)
	}

	permissions, err := json.Marshal(transition.RequiredPermissions)
	if err != nil {
		return fmt.Errorf("failed to marshal required permissions: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transitions (id, workflow_id, source_stage_id, target_stage_id,
			name, description, condition, required_permissions, automatic, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, transition.ID, transition.WorkflowID, transition.SourceStageID, transition.TargetStageID,
		transition.Name, transition.Description, condition, permissions,
		transition.Automatic, transition.Position)
	if err != nil {
		return fmt.Errorf("failed to insert transition %s: %w", transition.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflow_definitions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow definition: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// Activate swaps the active definition for the target's category inside one
// transaction. Readers at READ COMMITTED see either the previous active
// definition or the new one, never both and never neither.
func (r *WorkflowRepository) Activate(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var category string

	err = tx.QueryRowContext(ctx,
		`SELECT category FROM workflow_definitions WHERE id = $1 FOR UPDATE`, id,
	).Scan(&category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = persistence.NewWorkflowError("Activate", id, persistence.ErrWorkflowNotFound)
		}

		return err
	}

	// Deactivate-first ordering keeps the partial unique index on
	// (category) WHERE active satisfied row by row; transaction atomicity
	// hides the intermediate state from other sessions.
	_, err = tx.ExecContext(ctx, `
		UPDATE workflow_definitions
		SET active = FALSE, updated_at = NOW()
		WHERE category = $1 AND active AND id <> $2
	`, category, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate previous definition: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE workflow_definitions
		SET active = TRUE, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to activate definition: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit activation: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE workflow_definitions
		SET active = FALSE, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate definition: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read deactivate result: %w", err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Deactivate", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.WorkflowDefinition, error) {
	var workflow models.WorkflowDefinition

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Description,
		&workflow.Category,
		&workflow.Active,
		&workflow.CreatedBy,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}

func (r *WorkflowRepository) loadGraph(ctx context.Context, workflow *models.WorkflowDefinition) error {
	stages, err := r.loadStages(ctx, workflow.ID)
	if err != nil {
		return err
	}

	transitionsBySource, err := r.loadTransitions(ctx, workflow.ID)
	if err != nil {
		return err
	}

	for _, stage := range stages {
		stage.Transitions = transitionsBySource[stage.ID]
		if stage.Transitions == nil {
			stage.Transitions = []*models.Transition{}
		}
	}

	workflow.Stages = stages

	return nil
}

func (r *WorkflowRepository) loadStages(ctx context.Context, workflowID string) ([]*models.Stage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id
		  , workflow_id
		  , name
		  , description
		  , sequence
		  , required_document_types
		  , required_actions
		  , notification_triggers
		  , assigned_role
		FROM stages
		WHERE workflow_id = $1
		ORDER BY position
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stages: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	stages := make([]*models.Stage, 0)

	for rows.Next() {
		var (
			stage         models.Stage
			documentTypes []byte
			actions       []byte
			notifications []byte
		)

		err := rows.Scan(
			&stage.ID,
			&stage.WorkflowID,
			&stage.Name,
			&stage.Description,
			&stage.Sequence,
			&documentTypes,
			&actions,
			&notifications,
			&stage.AssignedRole,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}

		if err := unmarshalStrings(documentTypes, &stage.RequiredDocumentTypes); err != nil {
			return nil, err
		}

		if err := unmarshalStrings(actions, &stage.RequiredActions); err != nil {
			return nil, err
		}

		if err := unmarshalStrings(notifications, &stage.NotificationTriggers); err != nil {
			return nil, err
		}

		stages = append(stages, &stage)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stages: %w", err)
	}

	return stages, nil
}

func (r *WorkflowRepository) loadTransitions(ctx context.Context, workflowID string) (map[string][]*models.Transition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id
		  , workflow_id
		  , source_stage_id
		  , target_stage_id
		  , name
		  , description
		  , condition
		  , required_permissions
		  , automatic
		  , position
		FROM transitions
		WHERE workflow_id = $1
		ORDER BY source_stage_id, position, id
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	bySource := make(map[string][]*models.Transition)

	for rows.Next() {
		var (
			transition  models.Transition
			condition   []byte
			permissions []byte
		)

		err := rows.Scan(
			&transition.ID,
			&transition.WorkflowID,
			&transition.SourceStageID,
			&transition.TargetStageID,
			&transition.Name,
			&transition.Description,
			&condition,
			&permissions,
			&transition.Automatic,
			&transition.Position,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}

		if len(condition) > 0 && string(condition) != "null" {
			transition.Condition = &models.ConditionExpression{}
			if err := json.Unmarshal(condition, transition.Condition); err != nil {
				return nil, fmt.Errorf("failed to unmarshal condition: %w", err)
			}
		}

		if err := unmarshalStrings(permissions, &transition.RequiredPermissions); err != nil {
			return nil, err
		}

		bySource[transition.SourceStageID] = append(bySource[transition.SourceStageID], &transition)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}

	return bySource, nil
}

func unmarshalStrings(data []byte, target *[]string) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal string list: %w", err)
	}

	return nil
}
