// Package worker assembles the sync daemon: catalog store, filesystem
// watcher, event pipeline, reconciliation engine and health server,
// supervised as one unit.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pixelgrove/photosync/internal/catalog"
	"github.com/pixelgrove/photosync/internal/config"
	"github.com/pixelgrove/photosync/internal/engine"
	"github.com/pixelgrove/photosync/internal/health"
	"github.com/pixelgrove/photosync/internal/pipeline"
	"github.com/pixelgrove/photosync/internal/types"
	"github.com/pixelgrove/photosync/internal/watcher"
)

// Worker owns every long-running component of the daemon.
type Worker struct {
	cfg     *config.Config
	log     *slog.Logger
	store   *catalog.Store
	queue   *pipeline.Queue
	engine  *engine.Engine
	watcher *watcher.Watcher
	monitor *health.Monitor
	pipe    *pipeline.Pipeline
	server  *health.Server

	syncMu sync.Mutex // serializes full syncs across triggers
}

// New opens the catalog and assembles the component graph. The worker
// owns the store; Close releases it after Run has returned.
func New(cfg *config.Config, logger *slog.Logger) (*Worker, error) {
	store, err := catalog.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		cfg:   cfg,
		log:   logger.With("component", "worker"),
		store: store,
	}
	w.queue = pipeline.NewQueue()
	w.engine = engine.New(store, cfg, logger)
	w.watcher = watcher.New(cfg, w.queue, logger)
	w.monitor = health.NewMonitor(store, w.watcher, w.queue)
	w.pipe = pipeline.New(w.queue, w.engine, w.monitor, cfg, logger)
	w.server = health.NewServer(cfg, w.monitor, w, logger)
	return w, nil
}

// Run migrates the catalog, performs the startup sync and supervises
// the watcher, pipeline, periodic sync and health server until ctx is
// cancelled. The first component failure takes the rest down.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.store.Migrate(ctx); err != nil {
		return err
	}

	if w.cfg.InitialSyncOnStartup {
		if _, err := w.FullSync(ctx); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.watcher.Run(ctx) })
	g.Go(func() error { return w.pipe.Run(ctx) })
	g.Go(func() error { return w.server.Run(ctx) })
	g.Go(func() error { return w.periodicSync(ctx) })

	w.log.Info("worker started",
		"root", w.cfg.PhotosBasePath,
		"db", w.cfg.DBPath)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	w.log.Info("worker stopped")
	return nil
}

// FullSync runs one full reconciliation pass. Concurrent triggers
// serialize; statistics fold into the health counters on success.
func (w *Worker) FullSync(ctx context.Context) (types.SyncStats, error) {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()

	stats, err := w.engine.FullSync(ctx)
	if err != nil {
		return stats, err
	}
	w.monitor.RecordFullSync(stats)
	return stats, nil
}

// periodicSync reruns the full reconciliation on a fixed interval to
// heal whatever the event stream missed.
func (w *Worker) periodicSync(ctx context.Context) error {
	if w.cfg.PeriodicSyncInterval <= 0 {
		w.log.Info("periodic sync disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(w.cfg.PeriodicSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.FullSync(ctx); err != nil {
				// The next tick or a manual trigger retries.
				w.log.Error("periodic sync failed", "error", err)
			}
		}
	}
}

// Close releases the catalog store.
func (w *Worker) Close() error {
	return w.store.Close()
}
