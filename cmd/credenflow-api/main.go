package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/credenflow/credenflow/pkg/cmd"
	"github.com/credenflow/credenflow/pkg/eventbus"
	"github.com/credenflow/credenflow/pkg/log"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "credenflow-api",
		Usage:                 "Create and manage accreditation workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL, or a directory for the file store",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel); empty runs executions in-process",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
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
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing Credenflow API")

			registry := cmd.NewRegistry(logger)

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			var bus eventbus.EventBus
			if provider := command.String("event-bus"); provider != "" {
				bus, err = cmd.NewEventBus(provider, "credenflow-api", logger)
				if err != nil {
					return err
				}

				defer func() {
					if err := bus.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
					}
				}()
			}

			deps, err := cmd.NewDependencies(logger, persistence, cmd.CollaboratorConfig{
				MailerEndpoint: command.String("mailer-endpoint"),
				MailerAPIKey:   command.String("mailer-api-key"),
				RedisURL:       command.String("redis-url"),
			})
			if err != nil {
				return err
			}

			api := NewAPI(
				logger,
				persistence,
				registry,
				bus,
				deps,
			)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
