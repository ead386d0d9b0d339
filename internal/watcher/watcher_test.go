package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelgrove/photosync/internal/config"
	"github.com/pixelgrove/photosync/internal/types"
)

type recordingSink struct {
	mu     sync.Mutex
	events []types.FileEvent
}

func (s *recordingSink) Push(ev types.FileEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) snapshot() []types.FileEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.FileEvent(nil), s.events...)
}

func (s *recordingSink) has(kind types.EventKind, path string) bool {
	for _, ev := range s.snapshot() {
		if ev.Kind == kind && ev.Path == path {
			return true
		}
	}
	return false
}

func (s *recordingSink) hasPath(path string) bool {
	for _, ev := range s.snapshot() {
		if ev.Path == path {
			return true
		}
	}
	return false
}

func (s *recordingSink) categoryOf(t *testing.T, path string) string {
	t.Helper()
	for _, ev := range s.snapshot() {
		if ev.Path == path {
			return ev.Category
		}
	}
	t.Fatalf("no event recorded for %s", path)
	return ""
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.PhotosBasePath = t.TempDir()
	cfg.DBPath = filepath.Join(t.TempDir(), "unused.db")
	require.NoError(t, config.ValidateConfig(cfg))
	return cfg
}

func startWatcher(t *testing.T, cfg *config.Config) (*Watcher, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	w := New(cfg, sink, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, w.Active, 2*time.Second, 10*time.Millisecond)
	return w, sink
}

func TestEmitsCreatedWithCategory(t *testing.T) {
	cfg := makeConfig(t)
	require.NoError(t, os.Mkdir(filepath.Join(cfg.PhotosBasePath, "cats"), 0o755))
	_, sink := startWatcher(t, cfg)

	path := filepath.Join(cfg.PhotosBasePath, "cats", "meow.jpg")
	require.NoError(t, os.WriteFile(path, []byte("img"), 0o644))

	require.Eventually(t, func() bool {
		return sink.has(types.EventCreated, path)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "cats", sink.categoryOf(t, path))
}

func TestEmitsModified(t *testing.T) {
	cfg := makeConfig(t)
	path := filepath.Join(cfg.PhotosBasePath, "cats", "meow.jpg")
	require.NoError(t, os.Mkdir(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	_, sink := startWatcher(t, cfg)

	require.NoError(t, os.WriteFile(path, []byte("v2 with more bytes"), 0o644))

	require.Eventually(t, func() bool {
		return sink.has(types.EventModified, path)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEmitsDeleted(t *testing.T) {
	cfg := makeConfig(t)
	path := filepath.Join(cfg.PhotosBasePath, "cats", "meow.jpg")
	require.NoError(t, os.Mkdir(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("img"), 0o644))
	_, sink := startWatcher(t, cfg)

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		return sink.has(types.EventDeleted, path)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRenameEmitsMovedAndCreated(t *testing.T) {
	cfg := makeConfig(t)
	oldPath := filepath.Join(cfg.PhotosBasePath, "cats", "IMG_0001.jpg")
	newPath := filepath.Join(cfg.PhotosBasePath, "cats", "sleepy.jpg")
	require.NoError(t, os.Mkdir(filepath.Dir(oldPath), 0o755))
	require.NoError(t, os.WriteFile(oldPath, []byte("img"), 0o644))
	_, sink := startWatcher(t, cfg)

	require.NoError(t, os.Rename(oldPath, newPath))

	require.Eventually(t, func() bool {
		return sink.has(types.EventMoved, oldPath) && sink.has(types.EventCreated, newPath)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIgnoresUnsupportedAndHidden(t *testing.T) {
	cfg := makeConfig(t)
	dir := filepath.Join(cfg.PhotosBasePath, "cats")
	require.NoError(t, os.Mkdir(dir, 0o755))
	_, sink := startWatcher(t, cfg)

	txt := filepath.Join(dir, "notes.txt")
	hidden := filepath.Join(dir, ".preview.jpg")
	marker := filepath.Join(dir, "marker.jpg")
	require.NoError(t, os.WriteFile(txt, []byte("text"), 0o644))
	require.NoError(t, os.WriteFile(hidden, []byte("img"), 0o644))
	require.NoError(t, os.WriteFile(marker, []byte("img"), 0o644))

	// Events for one directory arrive in order, so once the marker is
	// here the ignored files would have been too.
	require.Eventually(t, func() bool {
		return sink.has(types.EventCreated, marker)
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, sink.hasPath(txt))
	assert.False(t, sink.hasPath(hidden))
}

func TestWatchesNewDirectories(t *testing.T) {
	cfg := makeConfig(t)
	_, sink := startWatcher(t, cfg)

	dir := filepath.Join(cfg.PhotosBasePath, "newcat")
	require.NoError(t, os.Mkdir(dir, 0o755))
	path := filepath.Join(dir, "pic.jpg")

	// The watch on the new directory lands asynchronously; keep
	// touching the file until an event for it gets through.
	require.Eventually(t, func() bool {
		if err := os.WriteFile(path, []byte("img"), 0o644); err != nil {
			return false
		}
		return sink.hasPath(path)
	}, 3*time.Second, 50*time.Millisecond)

	assert.Equal(t, "newcat", sink.categoryOf(t, path))
	assert.False(t, sink.hasPath(dir), "directory events must not reach the sink")
}

func TestActiveLifecycle(t *testing.T) {
	cfg := makeConfig(t)
	w := New(cfg, &recordingSink{}, testLogger())
	assert.False(t, w.Active())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	require.Eventually(t, w.Active, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.False(t, w.Active())
}

func TestRunMissingRoot(t *testing.T) {
	cfg := makeConfig(t)
	cfg.PhotosBasePath = filepath.Join(cfg.PhotosBasePath, "missing")
	w := New(cfg, &recordingSink{}, testLogger())

	require.Error(t, w.Run(context.Background()))
	assert.False(t, w.Active())
}
