// Package watcher turns kernel filesystem notifications into typed
// file events for the sync pipeline.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pixelgrove/photosync/internal/config"
	"github.com/pixelgrove/photosync/internal/types"
)

// EventSink receives the events the watcher emits. Push must not
// block; the pipeline queue satisfies this.
type EventSink interface {
	Push(types.FileEvent)
}

// Watcher watches the photo tree recursively and pushes create,
// modify, delete and move events for supported image files into the
// sink. Directory notifications only manage watches and are never
// emitted as events.
type Watcher struct {
	cfg    *config.Config
	sink   EventSink
	log    *slog.Logger
	active atomic.Bool
}

func New(cfg *config.Config, sink EventSink, logger *slog.Logger) *Watcher {
	return &Watcher{
		cfg:  cfg,
		sink: sink,
		log:  logger.With("component", "watcher"),
	}
}

// Active reports whether the watch loop is running. Backs the watcher
// probe on the health endpoint.
func (w *Watcher) Active() bool {
	return w.active.Load()
}

// Run installs watches over the whole tree and processes notifications
// until ctx is cancelled. Failing to watch the root is fatal; deeper
// failures are logged and skipped.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := w.addWatches(fsw, w.cfg.PhotosBasePath); err != nil {
		return err
	}
	w.active.Store(true)
	defer w.active.Store(false)
	w.log.Info("watching photo tree", "root", w.cfg.PhotosBasePath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watch error", "error", err)
		}
	}
}

// addWatches walks root and registers a watch per directory; fsnotify
// does not recurse on its own. Directories are tracked by resolved
// path so symlink cycles cannot loop the walk.
func (w *Watcher) addWatches(fsw *fsnotify.Watcher, root string) error {
	visited := make(map[string]struct{})
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			w.log.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if rel := w.relPath(path); rel != "" && w.cfg.Excluded(rel) {
			return filepath.SkipDir
		}
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			w.log.Warn("cannot resolve directory", "path", path, "error", err)
			return nil
		}
		if _, ok := visited[real]; ok {
			return filepath.SkipDir
		}
		visited[real] = struct{}{}
		if err := fsw.Add(path); err != nil {
			if path == root {
				return err
			}
			w.log.Warn("cannot watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	kind, ok := mapOp(ev.Op)
	if !ok {
		return
	}

	if kind == types.EventCreated || kind == types.EventModified {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if kind == types.EventCreated {
				w.watchNewDirectory(fsw, ev.Name)
			}
			return
		}
	}

	if !w.cfg.IsSupportedFile(ev.Name) {
		return
	}
	if rel := w.relPath(ev.Name); rel != "" && w.cfg.Excluded(rel) {
		return
	}

	event := types.FileEvent{
		Kind:     kind,
		Path:     ev.Name,
		Category: w.categoryFor(ev.Name),
		At:       time.Now().UTC(),
	}
	w.log.Debug("file event", "kind", kind, "path", ev.Name, "category", event.Category)
	w.sink.Push(event)
}

// mapOp translates fsnotify bits in priority order; one notification
// can carry several. Chmod is noise for a catalog keyed on content
// changes.
func mapOp(op fsnotify.Op) (types.EventKind, bool) {
	switch {
	case op&fsnotify.Create != 0:
		return types.EventCreated, true
	case op&fsnotify.Write != 0:
		return types.EventModified, true
	case op&fsnotify.Remove != 0:
		return types.EventDeleted, true
	case op&fsnotify.Rename != 0:
		return types.EventMoved, true
	default:
		return "", false
	}
}

// watchNewDirectory extends coverage to directories created while
// running, typically a new category being uploaded. Files that land
// before the watch is in place are picked up by the next full sync.
func (w *Watcher) watchNewDirectory(fsw *fsnotify.Watcher, path string) {
	if rel := w.relPath(path); rel != "" && w.cfg.Excluded(rel) {
		return
	}
	if err := w.addWatches(fsw, path); err != nil {
		w.log.Warn("cannot watch new directory", "path", path, "error", err)
		return
	}
	w.log.Debug("watching new directory", "path", path)
}

// relPath returns path relative to the storage root, or "" when the
// path is the root itself or outside it.
func (w *Watcher) relPath(path string) string {
	rel, err := filepath.Rel(w.cfg.PhotosBasePath, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return rel
}

// categoryFor derives the category from the first path segment under
// the storage root. Files outside the root fall back to their parent
// directory name, then to "uncategorized". A file directly under the
// root yields its own name as category; the next full sync clears such
// rows out again.
func (w *Watcher) categoryFor(path string) string {
	if rel := w.relPath(path); rel != "" {
		parts := strings.SplitN(filepath.ToSlash(rel), "/", 2)
		if parts[0] != "" {
			return parts[0]
		}
	}
	parent := filepath.Base(filepath.Dir(path))
	if parent == "" || parent == "." || parent == string(filepath.Separator) {
		return "uncategorized"
	}
	return parent
}
