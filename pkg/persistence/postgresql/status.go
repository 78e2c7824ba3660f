package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/admitflow/admitflow/pkg/models"
	"github.com/admitflow/admitflow/pkg/persistence"
	"github.com/google/uuid"
)

// StatusRepository persists the append-only application status history.
// There is deliberately no update or delete path.
type StatusRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStatusRepository creates a new status repository.
func NewStatusRepository(db *sql.DB, logger *slog.Logger) *StatusRepository {
	return &StatusRepository{db: db, logger: logger}
}

const statusColumns = `
	id
  , application_id
  , workflow_id
  , stage_id
  , status
  , notes
  , actor_kind
  , actor_user_id
  , created_at
`

func (r *StatusRepository) Append(ctx context.Context, status *models.ApplicationStatus) error {
	if status.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate status ID: %w", err)
		}

		status.ID = id.String()
	}

	if status.CreatedAt.IsZero() {
		status.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO application_statuses
			(id, application_id, workflow_id, stage_id, status, notes, actor_kind, actor_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, status.ID, status.ApplicationID, nullable(status.WorkflowID), nullable(status.StageID),
		status.Status, status.Notes, string(status.Actor.Kind), status.Actor.UserID, status.CreatedAt)
	if err != nil {
		return &persistence.StatusError{Op: "Append", ApplicationID: status.ApplicationID, Err: err}
	}

	return nil
}

func (r *StatusRepository) Latest(ctx context.Context, applicationID string) (*models.ApplicationStatus, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+statusColumns+`
		FROM application_statuses
		WHERE application_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, applicationID)

	status, err := scanStatus(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.StatusError{
				Op:            "Latest",
				ApplicationID: applicationID,
				Err:           persistence.ErrStatusNotFound,
			}
		}

		return nil, fmt.Errorf("failed to scan status: %w", err)
	}

	return status, nil
}

func (r *StatusRepository) History(ctx context.Context, applicationID string) ([]*models.ApplicationStatus, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+statusColumns+`
		FROM application_statuses
		WHERE application_id = $1
		ORDER BY created_at, id
	`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}

	return r.collect(ctx, rows)
}

func (r *StatusRepository) IdleSince(ctx context.Context, cutoff time.Time) ([]*models.ApplicationStatus, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+statusColumns+`
		FROM (
			SELECT DISTINCT ON (application_id) `+statusColumns+`
			FROM application_statuses
			ORDER BY application_id, created_at DESC, id DESC
		) latest
		WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query idle applications: %w", err)
	}

	return r.collect(ctx, rows)
}

func (r *StatusRepository) collect(ctx context.Context, rows *sql.Rows) ([]*models.ApplicationStatus, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	statuses := make([]*models.ApplicationStatus, 0)

	for rows.Next() {
		status, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}

		statuses = append(statuses, status)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating statuses: %w", err)
	}

	return statuses, nil
}

func scanStatus(row rowScanner) (*models.ApplicationStatus, error) {
	var (
		status     models.ApplicationStatus
		workflowID sql.NullString
		stageID    sql.NullString
		actorKind  string
	)

	err := row.Scan(
		&status.ID,
		&status.ApplicationID,
		&workflowID,
		&stageID,
		&status.Status,
		&status.Notes,
		&actorKind,
		&status.Actor.UserID,
		&status.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	status.WorkflowID = workflowID.String
	status.StageID = stageID.String
	status.Actor.Kind = models.ActorKind(actorKind)

	return &status, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}

	return value
}
