// Package file provides file-based persistence for development and tests.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/admitflow/admitflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
// A single process-wide mutex stands in for the transactional guarantees a
// database gives the production implementation.
type Persistence struct {
	root         string
	workflowRepo *WorkflowRepository
	statusRepo   *StatusRepository
}

// NewPersistence creates file-based persistence rooted at the given directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)
	mu := &sync.Mutex{}

	return &Persistence{
		root:         cleanRoot,
		workflowRepo: NewWorkflowRepository(cleanRoot, mu),
		statusRepo:   NewStatusRepository(cleanRoot, mu),
	}
}

// Close performs any necessary cleanup. For file-based persistence there is nothing to do.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) StatusRepository() persistence.StatusRepository {
	return fp.statusRepo
}
