package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/SoumadeepCh/FlowSync/pkg/log"
	"github.com/SoumadeepCh/FlowSync/pkg/observability"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

func main() {
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:                  "flowsync",
		EnableShellCompletion: true,
		Usage:                 "Run the FlowSync workflow orchestration engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "engine-id",
				Aliases: []string{"id"},
				Usage:   "Custom engine ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("ENGINE_ID"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Postgres connection URL for persistence and the job queue",
				Value:   "",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Optional Redis URL for the shared idempotency store",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "webhook-addr",
				Usage:   "Listen address for the webhook trigger ingress",
				Value:   ":8081",
				Sources: cli.EnvVars("WEBHOOK_ADDR"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export for handler dispatch",
				Value:   false,
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var logBuffer *observability.LogBuffer

			log.SetupWithHandler(cmd.String("log-level"), func(inner slog.Handler) slog.Handler {
				logBuffer = observability.NewLogBuffer(observability.DefaultLogBufferSize, inner)

				return logBuffer
			})

			engineID := cmd.String("engine-id")
			if engineID == "" {
				engineID = "engine-" + uuid.New().String()[:8]
			}

			manager, err := NewEngineManager(ctx, engineID, Options{
				DatabaseURL: cmd.String("database-url"),
				RedisURL:    cmd.String("redis-url"),
				WebhookAddr: cmd.String("webhook-addr"),
				Tracing:     cmd.Bool("tracing"),
				LogBuffer:   logBuffer,
			})
			if err != nil {
				return err
			}

			return manager.Run(ctx)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("Engine exited with error", "error", err)
		os.Exit(1)
	}
}
