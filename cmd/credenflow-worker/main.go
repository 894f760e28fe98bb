package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/credenflow/credenflow/pkg/cmd"
	"github.com/credenflow/credenflow/pkg/engine"
	"github.com/credenflow/credenflow/pkg/log"
)

const defaultStaleAfter = 10 * time.Minute

func main() {
	command := &cli.Command{
		Name:                  "credenflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Start workers to run accreditation workflow executions",
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
				Usage:    "Database connection URL, or a directory for the file store",
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
				Name:    "mailer-endpoint",
				Usage:   "HTTP endpoint of the transactional mail service",
				Sources: cli.EnvVars("MAILER_ENDPOINT"),
			},
			&cli.StringFlag{
				Name:    "mailer-api-key",
				Usage:   "API key for the mail service",
				Sources: cli.EnvVars("MAILER_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for approval notifications",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "sweep-schedule",
				Usage:   "Cron schedule for the stale execution sweep",
				Value:   "*/5 * * * *",
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "stale-after",
				Usage:   "How long an execution may sit without progress before requeueing",
				Value:   defaultStaleAfter,
				Sources: cli.EnvVars("STALE_AFTER"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("credenflow-worker").With("workerId", workerID)

			logger.InfoContext(ctx, "Initializing Credenflow Worker")

			registry := cmd.NewRegistry(logger)

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "credenflow-worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			deps, err := cmd.NewDependencies(logger, persistence, cmd.CollaboratorConfig{
				MailerEndpoint: command.String("mailer-endpoint"),
				MailerAPIKey:   command.String("mailer-api-key"),
				RedisURL:       command.String("redis-url"),
			})
			if err != nil {
				return err
			}

			eng := engine.New(logger, persistence, registry,
				engine.WithEventBus(eventBus),
				engine.WithDependencies(deps),
			)

			sweeper := NewSweeper(logger, persistence, eventBus, command.Duration("stale-after"))

			worker := NewWorker(
				workerID,
				persistence,
				eventBus,
				eng,
				sweeper,
				command.String("sweep-schedule"),
				logger,
			)

			if err := worker.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
