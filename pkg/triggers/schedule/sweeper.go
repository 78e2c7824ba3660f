// Package schedule periodically re-fires completion evaluation for stalled
// applications. An application can miss a completion trigger (a dropped
// message, a subsystem outage); the sweep finds applications whose newest
// history record is older than the idle threshold and asks the engine to
// re-evaluate their automatic transitions.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/admitflow/admitflow/pkg/models"
	"github.com/admitflow/admitflow/pkg/persistence"
	"github.com/robfig/cron/v3"
)

// DefaultIdleAfter is how long an application may sit still before the sweep
// reconsiders it.
const DefaultIdleAfter = 24 * time.Hour

// Callback re-evaluates one stalled application from its current stage.
type Callback func(ctx context.Context, status *models.ApplicationStatus) error

type Sweeper struct {
	CronExpr  string
	IdleAfter time.Duration

	statuses persistence.StatusRepository
	cron     *cron.Cron
	callback Callback
	logger   *slog.Logger
}

// NewSweeper creates a stalled-application sweeper. A non-positive idleAfter
// selects DefaultIdleAfter.
func NewSweeper(
	cronExpr string,
	idleAfter time.Duration,
	statuses persistence.StatusRepository,
	logger *slog.Logger,
) (*Sweeper, error) {
	if cronExpr == "" {
		return nil, errors.New("sweep cron expression is required")
	}

	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	if idleAfter <= 0 {
		idleAfter = DefaultIdleAfter
	}

	return &Sweeper{
		CronExpr:  cronExpr,
		IdleAfter: idleAfter,
		statuses:  statuses,
		logger: logger.With(
			"module", "stalled_sweep",
			"cron", cronExpr,
		),
	}, nil
}

// Start schedules the sweep. Overlapping runs are skipped rather than
// stacked.
func (s *Sweeper) Start(ctx context.Context, callback Callback) error {
	s.callback = callback

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := s.cron.AddFunc(s.CronExpr, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule stalled sweep: %w", err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Stalled application sweep scheduled")

	return nil
}

// Sweep runs one pass immediately. The cron schedule calls this; tests and
// operators can too.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.IdleAfter)

	stalled, err := s.statuses.IdleSince(ctx, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list stalled applications", "error", err)

		return
	}

	if len(stalled) == 0 {
		return
	}

	s.logger.InfoContext(ctx, "Re-evaluating stalled applications", "count", len(stalled))

	for _, status := range stalled {
		if err := s.callback(ctx, status); err != nil {
			s.logger.ErrorContext(ctx, "Failed to re-evaluate stalled application",
				"application_id", status.ApplicationID,
				"stage_id", status.StageID,
				"error", err)
		}
	}
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping stalled application sweep")

	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	return nil
}
