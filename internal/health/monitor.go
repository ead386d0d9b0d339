// Package health exposes worker liveness and statistics over HTTP and
// aggregates the counters behind them.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/pixelgrove/photosync/internal/types"
)

// DatabaseProber reports catalog connectivity; the store implements it.
type DatabaseProber interface {
	Health(ctx context.Context) error
}

// WatcherProber reports whether the watch loop is running.
type WatcherProber interface {
	Active() bool
}

// QueueProber reports the number of pending events.
type QueueProber interface {
	Len() int
}

// processingWindow bounds the rolling average on the stats endpoint.
const processingWindow = 1000

// Monitor aggregates worker state for the health endpoints. The daily
// counters reset on the first touch after a UTC date change, reads
// included, so a quiet day still reports zeros.
type Monitor struct {
	db      DatabaseProber
	watcher WatcherProber
	queue   QueueProber

	now func() time.Time // test seam

	mu              sync.Mutex
	started         time.Time
	statsDate       string
	processedToday  int64
	addedToday      int64
	updatedToday    int64
	removedToday    int64
	processedEvents int64
	failedEvents    int64
	lastSync        *time.Time
	lastFullSync    *time.Time
	durations       []float64 // ring of batch durations in ms
	durationIdx     int
}

func NewMonitor(db DatabaseProber, watcher WatcherProber, queue QueueProber) *Monitor {
	started := time.Now().UTC()
	return &Monitor{
		db:        db,
		watcher:   watcher,
		queue:     queue,
		now:       time.Now,
		started:   started,
		statsDate: started.Format("2006-01-02"),
	}
}

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status            string     `json:"status"`
	UptimeSeconds     float64    `json:"uptime_seconds"`
	DatabaseConnected bool       `json:"database_connected"`
	WatcherActive     bool       `json:"watcher_active"`
	LastSync          *time.Time `json:"last_sync"`
}

// StatsResponse is the GET /stats payload.
type StatsResponse struct {
	SyncStatistics SyncStatistics  `json:"sync_statistics"`
	EventQueue     EventQueueStats `json:"event_queue"`
	Uptime         float64         `json:"uptime"`
}

// SyncStatistics covers reconciliation work done today, UTC.
type SyncStatistics struct {
	FilesProcessedToday     int64      `json:"files_processed_today"`
	FilesAddedToday         int64      `json:"files_added_today"`
	FilesUpdatedToday       int64      `json:"files_updated_today"`
	FilesRemovedToday       int64      `json:"files_removed_today"`
	LastFullSync            *time.Time `json:"last_full_sync"`
	AverageProcessingTimeMs float64    `json:"average_processing_time_ms"`
}

// EventQueueStats covers the event pipeline since startup.
type EventQueueStats struct {
	PendingEvents   int   `json:"pending_events"`
	ProcessedEvents int64 `json:"processed_events"`
	FailedEvents    int64 `json:"failed_events"`
}

// Health probes the catalog and the watcher and assembles the liveness
// payload. Status is "healthy" only when both probes pass.
func (m *Monitor) Health(ctx context.Context) HealthResponse {
	dbOK := m.db.Health(ctx) == nil
	watcherOK := m.watcher.Active()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()

	status := "healthy"
	if !dbOK || !watcherOK {
		status = "unhealthy"
	}
	return HealthResponse{
		Status:            status,
		UptimeSeconds:     m.now().UTC().Sub(m.started).Seconds(),
		DatabaseConnected: dbOK,
		WatcherActive:     watcherOK,
		LastSync:          m.lastSync,
	}
}

// Stats assembles the statistics payload.
func (m *Monitor) Stats() StatsResponse {
	pending := m.queue.Len()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()

	return StatsResponse{
		SyncStatistics: SyncStatistics{
			FilesProcessedToday:     m.processedToday,
			FilesAddedToday:         m.addedToday,
			FilesUpdatedToday:       m.updatedToday,
			FilesRemovedToday:       m.removedToday,
			LastFullSync:            m.lastFullSync,
			AverageProcessingTimeMs: m.averageDuration(),
		},
		EventQueue: EventQueueStats{
			PendingEvents:   pending,
			ProcessedEvents: m.processedEvents,
			FailedEvents:    m.failedEvents,
		},
		Uptime: m.now().UTC().Sub(m.started).Seconds(),
	}
}

// RecordBatch counts one successfully applied event batch. The delete
// half of a move pair stays uncounted; its created twin already counts
// as an add.
func (m *Monitor) RecordBatch(events []types.FileEvent, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()

	m.processedEvents += int64(len(events))
	m.processedToday += int64(len(events))
	for _, ev := range events {
		switch ev.Kind {
		case types.EventCreated:
			m.addedToday++
		case types.EventModified:
			m.updatedToday++
		case types.EventDeleted:
			m.removedToday++
		}
	}
	now := m.now().UTC()
	m.lastSync = &now
	m.recordDuration(elapsed)
}

// RecordBatchFailure counts the events of a batch that was dropped
// after its final attempt.
func (m *Monitor) RecordBatchFailure(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedEvents += int64(count)
}

// RecordFullSync folds a completed full sync into the daily counters.
func (m *Monitor) RecordFullSync(stats types.SyncStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()

	m.processedToday += int64(stats.Scanned)
	m.addedToday += int64(stats.Added)
	m.updatedToday += int64(stats.Updated)
	m.removedToday += int64(stats.Removed)
	now := m.now().UTC()
	m.lastSync = &now
	m.lastFullSync = &now
}

// rollover zeroes the daily counters on the first touch after a UTC
// date change. Callers hold mu.
func (m *Monitor) rollover() {
	today := m.now().UTC().Format("2006-01-02")
	if today == m.statsDate {
		return
	}
	m.statsDate = today
	m.processedToday = 0
	m.addedToday = 0
	m.updatedToday = 0
	m.removedToday = 0
}

func (m *Monitor) recordDuration(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	if len(m.durations) < processingWindow {
		m.durations = append(m.durations, ms)
		return
	}
	m.durations[m.durationIdx] = ms
	m.durationIdx = (m.durationIdx + 1) % processingWindow
}

func (m *Monitor) averageDuration() float64 {
	if len(m.durations) == 0 {
		return 0
	}
	var sum float64
	for _, ms := range m.durations {
		sum += ms
	}
	return sum / float64(len(m.durations))
}
