package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/julekalender/internal/app"
	"github.com/florianilch/julekalender/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return rootCommand().Run(ctx, args)
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:  "julekalender",
		Usage: "command line client for the julekalender API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json|otel|otlp)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "server--base-url",
				Usage: "backend base URL",
				Value: app.DefaultConfigServerBaseURL,
			},
			&cli.DurationFlag{
				Name:  "server--timeout",
				Usage: "timeout for a single request",
				Value: app.DefaultConfigServerTimeout,
			},
			&cli.StringFlag{
				Name:  "auth--storage",
				Usage: "session storage (file|env|keyring|memory)",
				Value: string(app.DefaultConfigAuthStorage),
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			whoamiCommand(),
			requestCommand(),
			timeCommand(),
			mediaCommand(),
		},
	}
}

// action loads configuration, sets up logging and builds the App before
// handing over to run. Logging is flushed when run returns.
func action(run func(ctx context.Context, cmd *cli.Command, application *app.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		shutdown, err := observability.Instrument(ctx, cfg.LogLevel, string(cfg.LogFormat))
		if err != nil {
			return fmt.Errorf("failed to set up observability layer: %w", err)
		}
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				fmt.Fprintf(os.Stderr, "flushing logs: %v\n", err)
			}
		}()

		application, err := app.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to create app: %w", err)
		}

		slog.DebugContext(ctx, "configured", "base_url", cfg.Server.BaseURL, "session_storage", cfg.Auth.Storage)
		return run(ctx, cmd, application)
	}
}
