// Package main provides the Journey API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/rsvphq/journey/pkg/automation"
	"github.com/rsvphq/journey/pkg/eventbus"
	"github.com/rsvphq/journey/pkg/persistence"
	"github.com/rsvphq/journey/pkg/protocol"
	"github.com/rsvphq/journey/pkg/services"
	"github.com/rsvphq/journey/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	validate    *validator.Validate
	engine      *automation.Engine
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
) *API {
	// Local collaborators stand in for the CRM's contact and email services.
	contacts := protocol.NewLocalDirectory()
	mailer := protocol.NewBreakerEmailDeliverer("email", &protocol.LogDeliverer{Logger: logger})
	segments := protocol.NewStaticSegments()

	executor := automation.NewExecutor(logger, persistence.Logs(), contacts, mailer, segments).WithTracer(tracer)
	matcher := automation.NewTriggerMatcher(logger)
	engine := automation.NewEngine(persistence, executor, matcher, logger).WithEventBus(eventBus)

	return &API{
		persistence: persistence,
		logger:      logger,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		engine:      engine,
	}
}

// Engine exposes the enrollment engine so trigger sources can feed it.
func (a *API) Engine() *automation.Engine {
	return a.engine
}

func (a *API) App() *fiber.App {
	automationService := services.NewAutomation(a.persistence)

	handlers := web.NewAPIHandlers(automationService, a.engine, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Journey API")
	})

	au := app.Group("/automations")
	au.Get("/", handlers.GetAutomations)
	au.Post("/", handlers.CreateAutomation)
	au.Get("/:id", handlers.GetAutomation)
	au.Patch("/:id", handlers.UpdateAutomation)
	au.Delete("/:id", handlers.DeleteAutomation)
	au.Post("/:id/activate", handlers.ActivateAutomation)
	au.Post("/:id/pause", handlers.PauseAutomation)

	// Step endpoints:
	au.Post("/:id/steps", handlers.CreateStep)
	au.Get("/:id/steps", handlers.GetSteps)
	au.Delete("/:id/steps/:stepId", handlers.DeleteStep)

	// Enrollment endpoints:
	au.Post("/:id/enrollments", handlers.CreateEnrollment)
	au.Get("/:id/enrollments", handlers.GetEnrollments)

	e := app.Group("/enrollments")
	e.Get("/:id", handlers.GetEnrollment)
	e.Post("/:id/exit", handlers.ExitEnrollment)
	e.Get("/:id/logs", handlers.GetEnrollmentLogs)

	app.Post("/triggers", handlers.HandleTrigger)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
