// Package main provides the Credenflow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/credenflow/credenflow/pkg/engine"
	"github.com/credenflow/credenflow/pkg/eventbus"
	"github.com/credenflow/credenflow/pkg/persistence"
	"github.com/credenflow/credenflow/pkg/protocol"
	"github.com/credenflow/credenflow/pkg/registry"
	"github.com/credenflow/credenflow/pkg/services"
	"github.com/credenflow/credenflow/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	deps        protocol.Dependencies
	validate    *validator.Validate
}

// NewAPI assembles the HTTP surface. With an event bus the API only
// creates executions and hands the running to workers; without one the
// engine runs requests in-process.
func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	deps protocol.Dependencies,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		registry:    registry,
		eventBus:    eventBus,
		deps:        deps,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	options := []engine.Option{engine.WithDependencies(a.deps)}
	if a.eventBus != nil {
		options = append(options, engine.WithEventBus(a.eventBus))
	}

	eng := engine.New(a.logger, a.persistence, a.registry, options...)

	workflowService := services.NewWorkflow(a.persistence, a.registry)

	executionService := services.NewExecution(a.persistence, eng)
	if a.eventBus != nil {
		executionService = executionService.WithDispatcher(a.eventBus)
	}

	handlers := web.NewAPIHandlers(workflowService, executionService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Credenflow API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/execute", handlers.ExecuteWorkflow)
	w.Get("/:id/executions", handlers.GetWorkflowExecutions)

	e := app.Group("/executions")
	e.Get("/:id", handlers.GetExecution)
	e.Get("/:id/state", handlers.GetExecutionState)
	e.Get("/:id/steps", handlers.GetExecutionSteps)
	e.Post("/continue", handlers.ContinueExecution)
	e.Post("/:id/retry", handlers.RetryExecution)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
