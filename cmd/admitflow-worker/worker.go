package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/admitflow/admitflow/pkg/engine"
	"github.com/admitflow/admitflow/pkg/eventbus"
	"github.com/admitflow/admitflow/pkg/events"
	"github.com/admitflow/admitflow/pkg/models"
	"github.com/admitflow/admitflow/pkg/otelhelper"
	"github.com/admitflow/admitflow/pkg/triggers/queue"
	"github.com/admitflow/admitflow/pkg/triggers/schedule"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Worker consumes completion triggers from every inbound path (event bus,
// Redis queue, stalled-application sweep) and hands them to the cascade
// controller.
type Worker struct {
	id       string
	cascade  *engine.Cascade
	eventBus eventbus.EventBus
	consumer *queue.Consumer
	sweeper  *schedule.Sweeper
	tracer   trace.Tracer
	logger   *slog.Logger
}

func NewWorker(
	id string,
	cascade *engine.Cascade,
	eventBus eventbus.EventBus,
	consumer *queue.Consumer,
	sweeper *schedule.Sweeper,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		id:       id,
		cascade:  cascade,
		eventBus: eventBus,
		consumer: consumer,
		sweeper:  sweeper,
		tracer:   tracer,
		logger:   logger,
	}
}

// Start registers every inbound path and blocks until SIGINT or SIGTERM.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.logger.InfoContext(ctx, "Starting worker subscriptions")

	completionEvents := []events.EventType{
		events.DocumentVerifiedEvent,
		events.FormSectionCompletedEvent,
		events.PaymentCompletedEvent,
		events.ManualDecisionRecordedEvent,
	}

	for _, eventType := range completionEvents {
		if err := w.eventBus.Handle(eventType, w.handleCompletion); err != nil {
			return err
		}
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		return err
	}

	if w.consumer != nil {
		if err := w.consumer.Start(ctx, w.handleQueueCompletion); err != nil {
			return err
		}
	}

	if w.sweeper != nil {
		if err := w.sweeper.Start(ctx, w.handleStalled); err != nil {
			return err
		}
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker")
	cancel()

	if w.consumer != nil {
		if err := w.consumer.Stop(ctx); err != nil {
			w.logger.ErrorContext(ctx, "Failed to stop queue consumer", "error", err)
		}
	}

	if w.sweeper != nil {
		if err := w.sweeper.Stop(ctx); err != nil {
			w.logger.ErrorContext(ctx, "Failed to stop sweeper", "error", err)
		}
	}

	return nil
}

// handleCompletion processes one inbound completion event from the bus.
func (w *Worker) handleCompletion(ctx context.Context, event any) error {
	completed, ok := stageCompletedOf(event)
	if !ok {
		w.logger.Error("Invalid event type for completion handler")

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "handle_completion",
		attribute.String(otelhelper.ApplicationIDKey, completed.ApplicationID),
		attribute.String(otelhelper.StageIDKey, completed.StageID),
		attribute.String(otelhelper.EventIDKey, completed.ID),
		attribute.String(otelhelper.WorkerIDKey, w.id),
	)
	defer span.End()

	w.logger.InfoContext(ctx, "Processing completion event",
		"application_id", completed.ApplicationID,
		"stage_id", completed.StageID,
		"event_type", completed.Type)

	application := &models.Application{ID: completed.ApplicationID}

	err := w.cascade.OnStageCompleted(ctx, application, completed.StageID, completed.ContextData)
	if err != nil {
		otelhelper.SetError(span, err)

		if terminalCascadeError(err) {
			w.logger.ErrorContext(ctx, "Cascade hit a broken graph, dropping event",
				"application_id", completed.ApplicationID, "error", err)

			return nil
		}

		w.logger.ErrorContext(ctx, "Cascade failed",
			"application_id", completed.ApplicationID, "error", err)

		return err
	}

	return nil
}

// handleQueueCompletion processes one validated payload from the Redis queue.
func (w *Worker) handleQueueCompletion(ctx context.Context, completion queue.Completion) error {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "handle_queue_completion",
		attribute.String(otelhelper.ApplicationIDKey, completion.ApplicationID),
		attribute.String(otelhelper.StageIDKey, completion.StageID),
		attribute.String(otelhelper.WorkerIDKey, w.id),
	)
	defer span.End()

	application := &models.Application{
		ID:       completion.ApplicationID,
		Category: completion.Category,
		Data:     completion.Data,
	}

	err := w.cascade.OnStageCompleted(ctx, application, completion.StageID, completion.ContextData)
	if err != nil {
		otelhelper.SetError(span, err)

		if terminalCascadeError(err) {
			w.logger.ErrorContext(ctx, "Cascade hit a broken graph, dropping completion",
				"application_id", completion.ApplicationID, "error", err)

			return nil
		}

		return err
	}

	return nil
}

// handleStalled re-evaluates one application the sweep found idle.
func (w *Worker) handleStalled(ctx context.Context, status *models.ApplicationStatus) error {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "handle_stalled",
		attribute.String(otelhelper.ApplicationIDKey, status.ApplicationID),
		attribute.String(otelhelper.StageIDKey, status.StageID),
		attribute.String(otelhelper.WorkerIDKey, w.id),
	)
	defer span.End()

	application := &models.Application{ID: status.ApplicationID}

	err := w.cascade.OnStageCompleted(ctx, application, status.StageID, nil)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	return nil
}

// terminalCascadeError reports failures rooted in the workflow graph itself.
// Redelivering the triggering message replays the same broken graph, so the
// handlers ack these instead of handing them back to the transport; only
// transient faults are returned for redelivery.
func terminalCascadeError(err error) bool {
	return engine.IsGraphIntegrity(err) || errors.Is(err, engine.ErrCascadeDepthExceeded)
}

// stageCompletedOf extracts the shared completion shape from any of the
// inbound trigger event types.
func stageCompletedOf(event any) (events.StageCompleted, bool) {
	switch typed := event.(type) {
	case *events.DocumentVerified:
		return typed.StageCompleted, true
	case *events.FormSectionCompleted:
		return typed.StageCompleted, true
	case *events.PaymentCompleted:
		return typed.StageCompleted, true
	case *events.ManualDecisionRecorded:
		return typed.StageCompleted, true
	default:
		return events.StageCompleted{}, false
	}
}
