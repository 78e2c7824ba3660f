package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/admitflow/admitflow/pkg/models"
	"github.com/admitflow/admitflow/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRepository stores each workflow definition aggregate as one JSON
// file under <root>/workflows. Writing a file is the atomicity unit, so a
// definition's stages and transitions always appear together.
type WorkflowRepository struct {
	root string
	mu   *sync.Mutex
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string, mu *sync.Mutex) *WorkflowRepository {
	return &WorkflowRepository{root: root, mu: mu}
}

func (wr *WorkflowRepository) dir() string {
	return path.Join(wr.root, "workflows")
}

func (wr *WorkflowRepository) filePath(id string) string {
	return path.Join(wr.dir(), id+".json")
}

func (wr *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) ([]*models.WorkflowDefinition, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	return wr.list(ctx, opts)
}

func (wr *WorkflowRepository) list(ctx context.Context, opts persistence.ListWorkflowsOptions) ([]*models.WorkflowDefinition, error) {
	if _, err := os.Stat(wr.dir()); os.IsNotExist(err) {
		return []*models.WorkflowDefinition{}, nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(wr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.WorkflowDefinition, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		workflow, err := wr.read(file[:len(file)-len(".json")])
		if err != nil {
			return nil, err
		}

		if opts.Category != "" && workflow.Category != opts.Category {
			continue
		}

		if opts.ActiveOnly && !workflow.Active {
			continue
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (wr *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	return wr.read(id)
}

func (wr *WorkflowRepository) read(id string) (*models.WorkflowDefinition, error) {
	data, err := os.ReadFile(wr.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to read workflow %s: %w", id, err)
	}

	var workflow models.WorkflowDefinition
	if err := json.Unmarshal(data, &workflow); err != nil {
		return nil, fmt.Errorf("failed to decode workflow %s: %w", id, err)
	}

	return &workflow, nil
}

func (wr *WorkflowRepository) ActiveByCategory(ctx context.Context, category string) (*models.WorkflowDefinition, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	workflows, err := wr.list(ctx, persistence.ListWorkflowsOptions{Category: category, ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	if len(workflows) == 0 {
		return nil, persistence.NewCategoryError("ActiveByCategory", category, persistence.ErrNoActiveWorkflow)
	}

	return workflows[0], nil
}

func (wr *WorkflowRepository) Save(ctx context.Context, workflow *models.WorkflowDefinition) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	return wr.write(workflow)
}

func (wr *WorkflowRepository) write(workflow *models.WorkflowDefinition) error {
	now := time.Now().UTC()

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if err := os.MkdirAll(wr.dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode workflow %s: %w", workflow.ID, err)
	}

	// Write-then-rename keeps readers from observing a partial aggregate.
	tmp := wr.filePath(workflow.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write workflow %s: %w", workflow.ID, err)
	}

	if err := os.Rename(tmp, wr.filePath(workflow.ID)); err != nil {
		return fmt.Errorf("failed to commit workflow %s: %w", workflow.ID, err)
	}

	return nil
}

func (wr *WorkflowRepository) Delete(ctx context.Context, id string) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	err := os.Remove(wr.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
		}

		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}

func (wr *WorkflowRepository) Activate(ctx context.Context, id string) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	target, err := wr.read(id)
	if err != nil {
		return err
	}

	siblings, err := wr.list(ctx, persistence.ListWorkflowsOptions{Category: target.Category, ActiveOnly: true})
	if err != nil {
		return err
	}

	// Activate the new definition first so the category is never left
	// without an active definition mid-switch.
	target.Active = true
	if err := wr.write(target); err != nil {
		return err
	}

	for _, sibling := range siblings {
		if sibling.ID == id {
			continue
		}

		sibling.Active = false
		if err := wr.write(sibling); err != nil {
			return err
		}
	}

	return nil
}

func (wr *WorkflowRepository) Deactivate(ctx context.Context, id string) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	workflow, err := wr.read(id)
	if err != nil {
		return err
	}

	workflow.Active = false

	return wr.write(workflow)
}
