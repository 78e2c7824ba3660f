package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/admitflow/admitflow/pkg/models"
	"github.com/admitflow/admitflow/pkg/persistence"
)

// DefaultMaxCascadeDepth bounds one cascade pass. A legitimate admissions
// workflow is a handful of stages deep; anything past this is an automatic
// cycle in the graph.
const DefaultMaxCascadeDepth = 25

// Cascade reacts to a stage being completed for an application and drives as
// many automatic transitions as apply, depth-first, until a pass yields no
// further movement. Continuation is explicit: each successful execution
// returns a typed StageChanged value and the controller re-enters from its
// target stage, rather than relying on an ambient event registry.
type Cascade struct {
	workflows persistence.WorkflowRepository
	statuses  persistence.StatusRepository
	executor  *Executor
	maxDepth  int
	logger    *slog.Logger
}

// NewCascade creates a cascade controller. A non-positive maxDepth selects
// DefaultMaxCascadeDepth.
func NewCascade(store persistence.Persistence, executor *Executor, maxDepth int, logger *slog.Logger) *Cascade {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxCascadeDepth
	}

	return &Cascade{
		workflows: store.WorkflowRepository(),
		statuses:  store.StatusRepository(),
		executor:  executor,
		maxDepth:  maxDepth,
		logger:    logger,
	}
}

// OnStageCompleted is the inbound entry point: an external subsystem reports
// that the given stage's requirements are satisfied for the application.
func (c *Cascade) OnStageCompleted(
	ctx context.Context,
	application *models.Application,
	completedStageID string,
	contextData map[string]any,
) error {
	return c.run(ctx, application, completedStageID, contextData)
}

// OnStageChanged continues a cascade after a manual transition: the caller
// routes the executor's StageChanged message here so automatic follow-up
// transitions from the new stage are evaluated.
func (c *Cascade) OnStageChanged(
	ctx context.Context,
	application *models.Application,
	toStageID string,
	contextData map[string]any,
) error {
	return c.run(ctx, application, toStageID, contextData)
}

func (c *Cascade) run(
	ctx context.Context,
	application *models.Application,
	fromStageID string,
	contextData map[string]any,
) error {
	workflow, err := c.workflowFor(ctx, application)
	if err != nil {
		return err
	}

	if workflow == nil {
		c.logger.InfoContext(ctx, "Cascade skipped, application has no workflow history",
			"application_id", application.ID)

		return nil
	}

	stageID := fromStageID

	for depth := 0; ; depth++ {
		if depth >= c.maxDepth {
			c.logger.WarnContext(ctx, "Cascade depth exceeded, halting",
				"application_id", application.ID,
				"workflow_id", workflow.ID,
				"stage_id", stageID,
				"max_depth", c.maxDepth)

			return fmt.Errorf("cascade for application %s halted at stage %s: %w",
				application.ID, stageID, ErrCascadeDepthExceeded)
		}

		stage, ok := workflow.StageByID(stageID)
		if !ok {
			return NewGraphIntegrityError(workflow.ID, "cascade reached unknown stage "+stageID)
		}

		next, err := c.advance(ctx, application, stage, contextData)
		if err != nil {
			return err
		}

		if next == "" {
			return nil
		}

		stageID = next
	}
}

// advance runs one cascade step from the given stage: collect the automatic
// transitions whose conditions currently hold, then execute them in
// declaration order. Once one succeeds the application has moved, so no
// further transition from this stage is attempted; when several qualify at
// once, declaration order decides, which workflow authors should avoid by
// making automatic conditions mutually exclusive. Returns the new stage ID,
// or "" when the application did not move.
func (c *Cascade) advance(
	ctx context.Context,
	application *models.Application,
	stage *models.Stage,
	contextData map[string]any,
) (string, error) {
	qualifying := make([]*models.Transition, 0)

	for _, transition := range AutomaticOutgoingTransitions(stage) {
		available, err := c.executor.IsAvailableFor(ctx, application, transition, contextData)
		if err != nil {
			return "", err
		}

		if available {
			qualifying = append(qualifying, transition)
		}
	}

	for _, transition := range qualifying {
		result, err := c.executor.Execute(ctx, application, transition, models.SystemActor(), contextData)
		if err != nil {
			// A single broken automatic edge must not block the rest
			// of the pass.
			c.logger.ErrorContext(ctx, "Automatic transition failed",
				"application_id", application.ID,
				"transition_id", transition.ID,
				"error", err)

			continue
		}

		if result.Succeeded() {
			return result.Changed.ToStageID, nil
		}
	}

	return "", nil
}

// workflowFor resolves the definition the application is progressing under:
// the one named by its newest history record. Applications keep following
// the graph they started with even after a newer definition is activated.
func (c *Cascade) workflowFor(ctx context.Context, application *models.Application) (*models.WorkflowDefinition, error) {
	latest, err := c.statuses.Latest(ctx, application.ID)
	if err != nil {
		if persistence.IsStatusNotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to resolve application workflow: %w", err)
	}

	workflow, err := c.workflows.GetByID(ctx, latest.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", latest.WorkflowID, err)
	}

	return workflow, nil
}
