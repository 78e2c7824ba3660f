package main

import (
	"context"
	"os"

	"github.com/admitflow/admitflow/pkg/authz"
	"github.com/admitflow/admitflow/pkg/cmd"
	"github.com/admitflow/admitflow/pkg/engine"
	"github.com/admitflow/admitflow/pkg/log"
	"github.com/admitflow/admitflow/pkg/otelhelper"
	"github.com/admitflow/admitflow/pkg/triggers/queue"
	"github.com/admitflow/admitflow/pkg/triggers/schedule"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "admitflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Consume completion triggers and run automatic transition cascades",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "completion-queue",
				Usage:   "Redis queue name for inbound completion payloads (disabled if empty)",
				Sources: cli.EnvVars("COMPLETION_QUEUE"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the completion queue",
				Value:   "localhost:6379",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "sweep-cron",
				Usage:   "Cron schedule for the stalled-application sweep (disabled if empty)",
				Sources: cli.EnvVars("SWEEP_CRON"),
			},
			&cli.DurationFlag{
				Name:    "idle-after",
				Usage:   "How long an application may sit still before the sweep re-evaluates it",
				Value:   schedule.DefaultIdleAfter,
				Sources: cli.EnvVars("IDLE_AFTER"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	workerID := command.String("worker-id")
	if workerID == "" {
		workerID = "worker-" + uuid.New().String()[:8]
	}

	logger := log.WithModule("admitflow-worker").With("worker_id", workerID)
	logger.InfoContext(ctx, "Initializing AdmitFlow Worker")

	tracer, err := otelhelper.NewTracer(ctx, "admitflow-worker")
	if err != nil {
		return err
	}

	persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	// Automatic transitions run as the system actor, so the worker needs no
	// grants; the authorizer is still wired for graph configurations that
	// mark permission-gated transitions automatic by mistake.
	executor := engine.NewExecutor(persistence, authz.NewStaticAuthorizer(nil), eventBus, logger)
	cascade := engine.NewCascade(persistence, executor, 0, logger)

	var consumer *queue.Consumer

	if queueName := command.String("completion-queue"); queueName != "" {
		consumer, err = queue.NewConsumer(map[string]string{
			"addr": command.String("redis-addr"),
		}, queueName, logger)
		if err != nil {
			return err
		}
	}

	var sweeper *schedule.Sweeper

	if sweepCron := command.String("sweep-cron"); sweepCron != "" {
		sweeper, err = schedule.NewSweeper(
			sweepCron,
			command.Duration("idle-after"),
			persistence.StatusRepository(),
			logger,
		)
		if err != nil {
			return err
		}
	}

	worker := NewWorker(workerID, cascade, eventBus, consumer, sweeper, tracer, logger)

	if err := worker.Start(ctx); err != nil {
		logger.ErrorContext(ctx, "Failed to start worker", "error", err)
	}

	return nil
}
