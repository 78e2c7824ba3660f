// Package main provides the AdmitFlow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/admitflow/admitflow/pkg/authz"
	"github.com/admitflow/admitflow/pkg/engine"
	"github.com/admitflow/admitflow/pkg/eventbus"
	"github.com/admitflow/admitflow/pkg/persistence"
	"github.com/admitflow/admitflow/pkg/services"
	"github.com/admitflow/admitflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	authorizer  authz.Authorizer
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	authorizer authz.Authorizer,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		authorizer:  authorizer,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	executor := engine.NewExecutor(a.persistence, a.authorizer, a.eventBus, a.logger)
	cascade := engine.NewCascade(a.persistence, executor, 0, a.logger)

	workflowService := services.NewWorkflow(a.persistence)
	lifecycleService := services.NewLifecycle(a.persistence, a.logger)
	progressionService := services.NewProgression(a.persistence, executor, cascade, a.logger)

	handlers := web.NewAPIHandlers(workflowService, lifecycleService, progressionService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("AdmitFlow API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/activate", handlers.ActivateWorkflow)
	w.Post("/:id/deactivate", handlers.DeactivateWorkflow)
	w.Post("/:id/duplicate", handlers.DuplicateWorkflow)

	applications := app.Group("/applications")
	applications.Post("/:id/enroll", handlers.EnrollApplication)
	applications.Get("/:id/transitions", handlers.GetApplicationTransitions)
	applications.Post("/:id/transitions/:transitionId", handlers.ExecuteTransition)
	applications.Get("/:id/history", handlers.GetApplicationHistory)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
