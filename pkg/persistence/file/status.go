package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sync"
	"time"

	"github.com/admitflow/admitflow/pkg/models"
	"github.com/admitflow/admitflow/pkg/persistence"
	"github.com/google/uuid"
)

// StatusRepository keeps one JSON file of history records per application
// under <root>/statuses. Records are only ever appended.
type StatusRepository struct {
	root string
	mu   *sync.Mutex
}

// NewStatusRepository creates a new status repository.
func NewStatusRepository(root string, mu *sync.Mutex) *StatusRepository {
	return &StatusRepository{root: root, mu: mu}
}

func (sr *StatusRepository) dir() string {
	return path.Join(sr.root, "statuses")
}

func (sr *StatusRepository) filePath(applicationID string) string {
	return path.Join(sr.dir(), applicationID+".json")
}

func (sr *StatusRepository) Append(ctx context.Context, status *models.ApplicationStatus) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

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

	history, err := sr.readHistory(status.ApplicationID)
	if err != nil {
		return err
	}

	history = append(history, status)

	if err := os.MkdirAll(sr.dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create statuses directory: %w", err)
	}

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status history: %w", err)
	}

	tmp := sr.filePath(status.ApplicationID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write status history: %w", err)
	}

	if err := os.Rename(tmp, sr.filePath(status.ApplicationID)); err != nil {
		return fmt.Errorf("failed to commit status history: %w", err)
	}

	return nil
}

func (sr *StatusRepository) readHistory(applicationID string) ([]*models.ApplicationStatus, error) {
	data, err := os.ReadFile(sr.filePath(applicationID))
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.ApplicationStatus{}, nil
		}

		return nil, fmt.Errorf("failed to read status history for %s: %w", applicationID, err)
	}

	var history []*models.ApplicationStatus
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to decode status history for %s: %w", applicationID, err)
	}

	return history, nil
}

func (sr *StatusRepository) Latest(ctx context.Context, applicationID string) (*models.ApplicationStatus, error) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	history, err := sr.readHistory(applicationID)
	if err != nil {
		return nil, err
	}

	if len(history) == 0 {
		return nil, &persistence.StatusError{
			Op:            "Latest",
			ApplicationID: applicationID,
			Err:           persistence.ErrStatusNotFound,
		}
	}

	return history[len(history)-1], nil
}

func (sr *StatusRepository) History(ctx context.Context, applicationID string) ([]*models.ApplicationStatus, error) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	return sr.readHistory(applicationID)
}

func (sr *StatusRepository) IdleSince(ctx context.Context, cutoff time.Time) ([]*models.ApplicationStatus, error) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if _, err := os.Stat(sr.dir()); os.IsNotExist(err) {
		return []*models.ApplicationStatus{}, nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(sr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list status files: %w", err)
	}

	idle := make([]*models.ApplicationStatus, 0)

	for _, file := range jsonFiles {
		history, err := sr.readHistory(file[:len(file)-len(".json")])
		if err != nil {
			return nil, err
		}

		if len(history) == 0 {
			continue
		}

		latest := history[len(history)-1]
		if latest.CreatedAt.Before(cutoff) {
			idle = append(idle, latest)
		}
	}

	return idle, nil
}
