// Package main provides the wait-sweep daemon that resumes suspended enrollments.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/rsvphq/journey/pkg/automation"
	"github.com/rsvphq/journey/pkg/cmd"
	"github.com/rsvphq/journey/pkg/log"
	"github.com/rsvphq/journey/pkg/protocol"
)

const defaultInterval = 30 * time.Second

func main() {
	command := &cli.Command{
		Name:                  "journey-scheduler",
		Usage:                 "Resume enrollments whose wait has elapsed",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Sweep interval",
				Value:   defaultInterval,
				Sources: cli.EnvVars("SWEEP_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression for the sweep (overrides --interval)",
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single sweep and exit",
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

	logger := log.WithModule("scheduler")

	logger.InfoContext(ctx, "Initializing Journey Scheduler")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus := cmd.NewEventBus(command.String("event-bus"), "journey-scheduler", logger)
	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	contacts := protocol.NewLocalDirectory()
	mailer := protocol.NewBreakerEmailDeliverer("email", &protocol.LogDeliverer{Logger: logger})
	segments := protocol.NewStaticSegments()

	executor := automation.NewExecutor(logger, persistence.Logs(), contacts, mailer, segments)
	matcher := automation.NewTriggerMatcher(logger)
	engine := automation.NewEngine(persistence, executor, matcher, logger).WithEventBus(eventBus)

	if command.Bool("once") {
		resumed, err := engine.ResumeDue(ctx, time.Now().UTC())
		if err != nil {
			return err
		}

		logger.InfoContext(ctx, "Sweep completed", "resumed", resumed)

		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if expr := command.String("schedule"); expr != "" {
		return runCron(ctx, logger, engine, expr)
	}

	scheduler := automation.NewScheduler(engine, logger, command.Duration("interval"))

	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	return scheduler.Stop(context.Background())
}

func runCron(ctx context.Context, logger *slog.Logger, engine *automation.Engine, expr string) error {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	logger.InfoContext(ctx, "Scheduler started", "schedule", expr)

	for {
		next := schedule.Next(time.Now())

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Until(next)):
			resumed, err := engine.ResumeDue(ctx, time.Now().UTC())
			if err != nil {
				logger.ErrorContext(ctx, "Sweep failed", "error", err)

				continue
			}

			if resumed > 0 {
				logger.InfoContext(ctx, "Resumed enrollments", "count", resumed)
			}
		}
	}
}
