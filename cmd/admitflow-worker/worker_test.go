package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/admitflow/admitflow/pkg/authz"
	"github.com/admitflow/admitflow/pkg/channels/gochannel"
	"github.com/admitflow/admitflow/pkg/engine"
	"github.com/admitflow/admitflow/pkg/eventbus"
	"github.com/admitflow/admitflow/pkg/events"
	"github.com/admitflow/admitflow/pkg/log"
	"github.com/admitflow/admitflow/pkg/models"
	"github.com/admitflow/admitflow/pkg/persistence"
	"github.com/admitflow/admitflow/pkg/persistence/file"
	"github.com/admitflow/admitflow/pkg/testutil"
	"github.com/admitflow/admitflow/pkg/triggers/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func newTestWorker(t *testing.T, bus eventbus.EventBus) (*Worker, persistence.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := log.WithModule("worker_test")
	executor := engine.NewExecutor(store, authz.NewStaticAuthorizer(nil), nil, logger)
	cascade := engine.NewCascade(store, executor, 4, logger)

	worker := NewWorker("worker-test", cascade, bus, nil, nil, otel.Tracer("worker_test"), logger)

	return worker, store
}

// saveCycleWorkflow persists an automatic ping/pong cycle and places the
// application at its first stage, so any cascade pass hits the depth guard.
func saveCycleWorkflow(t *testing.T, ctx context.Context, store persistence.Persistence, applicationID string) *models.Stage {
	t.Helper()

	ping := testutil.CreateTestStage(testutil.WithStageName("Ping"), testutil.WithSequence(1))
	pong := testutil.CreateTestStage(testutil.WithStageName("Pong"), testutil.WithSequence(2))
	testutil.CreateTestTransition(ping, pong, testutil.Automatic())
	testutil.CreateTestTransition(pong, ping, testutil.Automatic())

	workflow := testutil.CreateTestWorkflow("cycle", "transfer", ping, pong)
	require.NoError(t, store.WorkflowRepository().Save(ctx, workflow))

	require.NoError(t, store.StatusRepository().Append(ctx, &models.ApplicationStatus{
		ApplicationID: applicationID,
		WorkflowID:    workflow.ID,
		StageID:       ping.ID,
		Status:        ping.Name,
		Actor:         models.SystemActor(),
	}))

	return ping
}

func TestTerminalCascadeError(t *testing.T) {
	assert.True(t, terminalCascadeError(engine.ErrCascadeDepthExceeded))
	assert.True(t, terminalCascadeError(
		fmt.Errorf("cascade for application app-1 halted at stage s: %w", engine.ErrCascadeDepthExceeded)))
	assert.True(t, terminalCascadeError(engine.NewGraphIntegrityError("wf-1", "unknown stage")))
	assert.False(t, terminalCascadeError(errors.New("connection refused")))
	assert.False(t, terminalCascadeError(nil))
}

func TestWorker_HandleCompletionAcksBrokenGraphs(t *testing.T) {
	ctx := t.Context()

	publisher, subscriber, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(publisher, subscriber)

	t.Cleanup(func() {
		_ = bus.Close()
	})

	worker, store := newTestWorker(t, bus)
	stage := saveCycleWorkflow(t, ctx, store, "app-cycle")

	// Count deliveries: a handler error makes the bus nack, and the
	// transport redelivers nacked messages, so a graph defect returned as
	// an error would spin the same message forever.
	var deliveries int32

	err = bus.Handle(events.DocumentVerifiedEvent, func(ctx context.Context, event any) error {
		atomic.AddInt32(&deliveries, 1)

		return worker.handleCompletion(ctx, event)
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	event := events.DocumentVerified{
		StageCompleted: events.StageCompleted{
			BaseEvent: events.NewBaseEvent(events.DocumentVerifiedEvent, "app-cycle"),
			StageID:   stage.ID,
		},
	}

	require.NoError(t, bus.Publish(ctx, "app-cycle", event))

	time.Sleep(500 * time.Millisecond)

	assert.EqualValues(t, 1, atomic.LoadInt32(&deliveries),
		"a depth-exceeded cascade must be acked, not redelivered")
}

func TestWorker_HandleCompletionReturnsNilOnDepthGuard(t *testing.T) {
	ctx := t.Context()

	publisher, subscriber, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(publisher, subscriber)

	t.Cleanup(func() {
		_ = bus.Close()
	})

	worker, store := newTestWorker(t, bus)
	stage := saveCycleWorkflow(t, ctx, store, "app-cycle")

	event := &events.DocumentVerified{
		StageCompleted: events.StageCompleted{
			BaseEvent: events.NewBaseEvent(events.DocumentVerifiedEvent, "app-cycle"),
			StageID:   stage.ID,
		},
	}

	require.NoError(t, worker.handleCompletion(ctx, event))
}

func TestWorker_HandleQueueCompletionDropsBrokenGraphs(t *testing.T) {
	ctx := t.Context()

	publisher, subscriber, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(publisher, subscriber)

	t.Cleanup(func() {
		_ = bus.Close()
	})

	worker, store := newTestWorker(t, bus)

	// History pointing at a stage the stored graph no longer contains: the
	// cascade reports a graph integrity violation.
	workflow := testutil.UndergradWorkflow()
	require.NoError(t, store.WorkflowRepository().Save(ctx, workflow))
	require.NoError(t, store.StatusRepository().Append(ctx, &models.ApplicationStatus{
		ApplicationID: "app-orphan",
		WorkflowID:    workflow.ID,
		StageID:       "deleted-stage",
		Status:        "Removed",
		Actor:         models.SystemActor(),
	}))

	err = worker.handleQueueCompletion(ctx, queue.Completion{
		ApplicationID: "app-orphan",
		StageID:       "deleted-stage",
	})

	require.NoError(t, err)
}
