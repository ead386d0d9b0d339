package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pixelgrove/photosync/internal/catalog"
	"github.com/pixelgrove/photosync/internal/engine"
)

// syncCommand runs one full reconciliation pass against the catalog
// and exits. It works directly on the database, so it also serves as
// the repair path when the worker is down.
func syncCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	store, err := catalog.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	stats, err := engine.New(store, cfg, logger).FullSync(ctx)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(stats)
	}

	fmt.Printf("Full sync complete\n")
	fmt.Printf("  Files scanned:  %d\n", stats.Scanned)
	fmt.Printf("  Files added:    %d\n", stats.Added)
	fmt.Printf("  Files updated:  %d\n", stats.Updated)
	fmt.Printf("  Files removed:  %d\n", stats.Removed)
	fmt.Printf("  Errors:         %d\n", stats.Errors)
	return nil
}
