package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/pixelgrove/photosync/internal/config"
	"github.com/pixelgrove/photosync/internal/types"
)

// Applier reconciles one event batch transactionally; the engine
// implements it.
type Applier interface {
	ApplyBatch(ctx context.Context, events []types.FileEvent) error
}

// BatchRecorder absorbs batch outcomes for the stats surface.
type BatchRecorder interface {
	RecordBatch(events []types.FileEvent, elapsed time.Duration)
	RecordBatchFailure(count int)
}

// Pipeline drains the queue into batches and dispatches them to the
// engine with bounded retries. One batch is in flight at a time;
// ordering across batches is the queue's arrival order.
type Pipeline struct {
	queue    *Queue
	applier  Applier
	recorder BatchRecorder
	cfg      *config.Config
	log      *slog.Logger
}

func New(queue *Queue, applier Applier, recorder BatchRecorder, cfg *config.Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		queue:    queue,
		applier:  applier,
		recorder: recorder,
		cfg:      cfg,
		log:      logger.With("component", "pipeline"),
	}
}

// Run processes batches until ctx is cancelled, then drains whatever
// is left within the shutdown grace period.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		anchor, ok := p.queue.PopWait(ctx)
		if !ok {
			break
		}
		// Coalescing window: let the burst around the anchor land in
		// the queue before the batch is collected. A shutdown cuts the
		// window short and the batch goes straight to the drain path.
		sleep(ctx, p.cfg.EventDebounceDelay)
		batch := p.collect(anchor)
		if ctx.Err() != nil || !p.dispatch(ctx, batch) {
			p.shutdown(batch)
			return nil
		}
	}
	p.shutdown(nil)
	return nil
}

// collect drains queued events non-blockingly behind the anchor, up to
// the batch size cap, giving up after the batch timeout when the queue
// keeps refilling faster than it drains.
func (p *Pipeline) collect(anchor types.FileEvent) []types.FileEvent {
	batch := append(make([]types.FileEvent, 0, p.cfg.MaxBatchSize), anchor)
	deadline := time.Now().Add(p.cfg.BatchTimeout)
	for len(batch) < p.cfg.MaxBatchSize && time.Now().Before(deadline) {
		ev, ok := p.queue.TryPop()
		if !ok {
			break
		}
		batch = append(batch, ev)
	}
	return batch
}

// dispatch applies one batch with up to RetryAttempts total tries and
// RetryDelay between them. After the final failure the batch is
// dropped and counted; the next full sync reconverges the catalog.
// The false return means ctx died mid-dispatch and the caller still
// owns the batch.
func (p *Pipeline) dispatch(ctx context.Context, batch []types.FileEvent) bool {
	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= p.cfg.RetryAttempts; attempt++ {
		err := p.applier.ApplyBatch(ctx, batch)
		if err == nil {
			elapsed := time.Since(start)
			p.recorder.RecordBatch(batch, elapsed)
			p.log.Info("batch applied", "events", len(batch), "attempt", attempt, "elapsed", elapsed)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		lastErr = err
		if attempt < p.cfg.RetryAttempts {
			p.log.Warn("batch failed, retrying",
				"events", len(batch), "attempt", attempt, "retry_in", p.cfg.RetryDelay, "error", err)
			if !sleep(ctx, p.cfg.RetryDelay) {
				return false
			}
		}
	}
	p.recorder.RecordBatchFailure(len(batch))
	p.log.Error("dropping batch after repeated failures", "events", len(batch), "error", lastErr)
	return true
}

// shutdown closes the queue and drains it within the grace period.
// Each remaining batch gets a single attempt; retry cycles do not fit
// in a shutdown budget.
func (p *Pipeline) shutdown(carried []types.FileEvent) {
	p.queue.Close()
	graceCtx, cancel := context.WithTimeout(context.Background(), p.cfg.ShutdownGracePeriod)
	defer cancel()

	batch := carried
	for {
		if len(batch) == 0 {
			anchor, ok := p.queue.TryPop()
			if !ok {
				return
			}
			batch = p.collect(anchor)
		}
		if graceCtx.Err() != nil {
			dropped := len(batch) + p.queue.Len()
			p.recorder.RecordBatchFailure(dropped)
			p.log.Warn("shutdown grace period exhausted", "dropped_events", dropped)
			return
		}
		start := time.Now()
		if err := p.applier.ApplyBatch(graceCtx, batch); err != nil {
			p.recorder.RecordBatchFailure(len(batch))
			p.log.Error("dropping batch during shutdown", "events", len(batch), "error", err)
		} else {
			p.recorder.RecordBatch(batch, time.Since(start))
			p.log.Info("batch applied during shutdown", "events", len(batch))
		}
		batch = nil
	}
}

// sleep waits d or until ctx is done, reporting whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
