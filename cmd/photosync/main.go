package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pixelgrove/photosync/internal/config"
	"github.com/pixelgrove/photosync/internal/version"
	"github.com/pixelgrove/photosync/internal/worker"
)

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if root := c.String("root"); root != "" {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
		}
		cfg.PhotosBasePath = absRoot
	}
	if db := c.String("db"); db != "" {
		cfg.DBPath = db
	}
	if level := c.String("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if c.IsSet("port") {
		cfg.HealthCheckPort = c.Int("port")
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}

// workerCommand runs the sync daemon until SIGINT or SIGTERM.
func workerCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	logger.Info("starting photosync", "version", version.FullInfo())

	w, err := worker.New(cfg, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return w.Run(ctx)
}

func main() {
	app := &cli.App{
		Name:    "photosync",
		Usage:   "Keep a photo catalog in step with a directory tree",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (TOML)",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Photo storage root (overrides config)",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "SQLite catalog path (overrides config)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: DEBUG, INFO, WARN or ERROR",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Health server port (overrides config)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "worker",
				Aliases: []string{"w"},
				Usage:   "Run the sync worker daemon",
				Action:  workerCommand,
			},
			{
				Name:  "sync",
				Usage: "Run one full reconciliation pass and exit",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
				},
				Action: syncCommand,
			},
			{
				Name:  "status",
				Usage: "Show health and statistics of a running worker",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
				},
				Action: statusCommand,
			},
		},
		// Bare invocation runs the worker, matching the container
		// entrypoint.
		Action: workerCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}
