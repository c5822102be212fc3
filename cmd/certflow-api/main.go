package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/mbarrin/certflow/pkg/cmd"
	"github.com/mbarrin/certflow/pkg/log"
	"github.com/mbarrin/certflow/pkg/otelhelper"
	"github.com/mbarrin/certflow/pkg/services"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "certflow-api",
		Usage:                 "Create and track certification workflows",
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
				Name:    "database-url",
				Usage:   "Database connection URL (postgres://, redis://, memory://)",
				Value:   "memory://",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "execution-service-url",
				Usage:   "Base URL of the execution service; empty selects the simulated executor",
				Sources: cli.EnvVars("EXECUTION_SERVICE_URL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("TRACING_ENABLED"),
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

			logger.InfoContext(ctx, "Initializing certflow API")

			if command.Bool("tracing") {
				if _, err := otelhelper.NewTracer(ctx, "certflow-api"); err != nil {
					logger.ErrorContext(ctx, "Failed to initialize tracer", "error", err)
				}
			}

			repo := cmd.NewRepository(ctx, logger, command.String("database-url"))

			defer func() {
				if err := repo.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close repository", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			certification := services.NewCertification(
				repo,
				cmd.NewExecutor(command.String("execution-service-url"), logger),
				cmd.NewNotifier(logger),
				eventBus,
				logger,
			)

			api := NewAPI(logger, certification)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			certification.Join()

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
