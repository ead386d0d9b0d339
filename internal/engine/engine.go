// Package engine reconciles filesystem state into the photo catalog.
// It applies debounced watcher batches transactionally and runs full
// scans of the two-level category tree.
package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pixelgrove/photosync/internal/catalog"
	"github.com/pixelgrove/photosync/internal/config"
	syncerrors "github.com/pixelgrove/photosync/internal/errors"
	"github.com/pixelgrove/photosync/internal/imagemeta"
	"github.com/pixelgrove/photosync/internal/types"
)

// Engine applies file events and full syncs to the catalog. Safe for
// concurrent use; every operation runs in its own catalog session.
type Engine struct {
	store *catalog.Store
	cfg   *config.Config
	log   *slog.Logger
}

func New(store *catalog.Store, cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		store: store,
		cfg:   cfg,
		log:   logger.With("component", "engine"),
	}
}

// Apply reconciles a single event in its own transaction.
func (e *Engine) Apply(ctx context.Context, event types.FileEvent) error {
	return e.ApplyBatch(ctx, []types.FileEvent{event})
}

// ApplyBatch reconciles a batch of events in one transaction. Events
// for unsupported extensions are dropped up front; an empty remainder
// opens no transaction at all. Per-event faults (a file vanishing
// mid-flight, an unreadable image) are logged and skipped, while a
// catalog fault rolls back and aborts the whole batch so the pipeline
// can retry it intact.
func (e *Engine) ApplyBatch(ctx context.Context, events []types.FileEvent) error {
	batch := make([]types.FileEvent, 0, len(events))
	for _, ev := range events {
		if e.cfg.IsSupportedFile(ev.Path) {
			batch = append(batch, ev)
		}
	}
	if len(batch) == 0 {
		return nil
	}

	sess, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer sess.Rollback()

	for _, ev := range batch {
		if err := e.applyEvent(ctx, sess, ev); err != nil {
			if syncerrors.IsCatalog(err) {
				return err
			}
			e.log.Warn("skipping event", "kind", ev.Kind, "path", ev.Path, "error", err)
		}
	}
	return sess.Commit()
}

func (e *Engine) applyEvent(ctx context.Context, sess *catalog.Session, ev types.FileEvent) error {
	switch ev.Kind {
	case types.EventCreated:
		return e.applyCreated(ctx, sess, ev)
	case types.EventModified:
		return e.applyModified(ctx, sess, ev)
	case types.EventDeleted, types.EventMoved:
		return e.applyDeleted(ctx, sess, ev)
	default:
		e.log.Warn("unknown event kind", "kind", ev.Kind, "path", ev.Path)
		return nil
	}
}

func (e *Engine) applyCreated(ctx context.Context, sess *catalog.Session, ev types.FileEvent) error {
	if _, err := os.Stat(ev.Path); err != nil {
		// Created and gone again before the batch ran. The matching
		// delete event will not find a row either.
		e.log.Debug("created file vanished", "path", ev.Path)
		return nil
	}
	path := resolvePath(ev.Path)
	existing, err := sess.GetByPath(ctx, path)
	if err != nil {
		return err
	}
	if existing != nil {
		e.log.Debug("already cataloged", "path", path)
		return nil
	}
	meta, err := imagemeta.Extract(ev.Path)
	if err != nil {
		return err
	}
	photo := newPhoto(path, filepath.Base(ev.Path), ev.Category, meta)
	if err := sess.Insert(ctx, photo); err != nil {
		return err
	}
	e.log.Info("photo added", "path", path, "category", photo.Category, "title", photo.Title)
	return nil
}

func (e *Engine) applyModified(ctx context.Context, sess *catalog.Session, ev types.FileEvent) error {
	if _, err := os.Stat(ev.Path); err != nil {
		e.log.Debug("modified file vanished", "path", ev.Path)
		return nil
	}
	path := resolvePath(ev.Path)
	photo, err := sess.GetByPath(ctx, path)
	if err != nil {
		return err
	}
	if photo == nil {
		// First write can arrive before the create, or the create was
		// lost; heal by treating the modify as one.
		return e.applyCreated(ctx, sess, ev)
	}
	meta, err := imagemeta.Extract(ev.Path)
	if err != nil {
		return err
	}
	if photo.FileModifiedAt.Equal(meta.ModifiedAt) {
		e.log.Debug("modify with unchanged mtime", "path", path)
		return nil
	}
	applyFileUpdate(photo, filepath.Base(ev.Path), ev.Category, meta)
	if err := sess.Update(ctx, photo); err != nil {
		return err
	}
	e.log.Info("photo updated", "path", path, "title", photo.Title)
	return nil
}

func (e *Engine) applyDeleted(ctx context.Context, sess *catalog.Session, ev types.FileEvent) error {
	path := resolvePath(ev.Path)
	photo, err := sess.GetByPath(ctx, path)
	if err != nil {
		return err
	}
	if photo == nil {
		e.log.Debug("delete for uncataloged file", "path", path)
		return nil
	}
	if err := sess.DeleteByIDs(ctx, []string{photo.ID}); err != nil {
		return err
	}
	e.log.Info("photo removed", "path", path)
	return nil
}

func newPhoto(path, filename, category string, meta imagemeta.Metadata) *catalog.Photo {
	return &catalog.Photo{
		ID:             catalog.NewID(),
		Filename:       filename,
		FilePath:       path,
		Category:       category,
		Title:          imagemeta.TitleFromFilename(filename),
		FileSize:       meta.FileSize,
		Width:          meta.Width,
		Height:         meta.Height,
		FileModifiedAt: meta.ModifiedAt,
	}
}

// applyFileUpdate folds fresh filesystem state into an existing row.
// A hand-edited title survives; a title still matching what its
// filename generates, or an empty one, is regenerated from the new
// name.
func applyFileUpdate(photo *catalog.Photo, filename, category string, meta imagemeta.Metadata) {
	titleWasAuto := photo.Title == "" || photo.Title == imagemeta.TitleFromFilename(photo.Filename)
	photo.Filename = filename
	photo.Category = category
	photo.FileSize = meta.FileSize
	photo.Width = meta.Width
	photo.Height = meta.Height
	photo.FileModifiedAt = meta.ModifiedAt
	if titleWasAuto {
		photo.Title = imagemeta.TitleFromFilename(filename)
	}
}

// resolvePath canonicalizes path the way the full sync stores it:
// absolute, symlinks expanded. When the final element no longer exists
// (the delete case) the parent is resolved instead so the lookup still
// hits the stored row.
func resolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(dir, filepath.Base(abs))
	}
	return abs
}
