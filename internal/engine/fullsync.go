package engine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pixelgrove/photosync/internal/catalog"
	syncerrors "github.com/pixelgrove/photosync/internal/errors"
	"github.com/pixelgrove/photosync/internal/imagemeta"
	"github.com/pixelgrove/photosync/internal/types"
)

// FullSync reconciles the whole category tree against the catalog in
// one transaction: files on disk but not in the catalog are added,
// files with changed mtimes updated, and rows whose files are gone
// removed. Only the two expected levels are walked, root/category/file;
// anything deeper is invisible to the catalog. Per-file faults are
// counted into the stats and skipped, catalog faults abort the pass.
func (e *Engine) FullSync(ctx context.Context) (types.SyncStats, error) {
	var stats types.SyncStats

	root := e.cfg.PhotosBasePath
	info, err := os.Stat(root)
	if err != nil {
		return stats, syncerrors.NewPreconditionError("photos_base_path", "storage root does not exist: "+root)
	}
	if !info.IsDir() {
		return stats, syncerrors.NewPreconditionError("photos_base_path", "storage root is not a directory: "+root)
	}

	e.log.Info("full sync started", "root", root)

	sess, err := e.store.Begin(ctx)
	if err != nil {
		return stats, err
	}
	defer sess.Rollback()

	photos, err := sess.ScanAll(ctx)
	if err != nil {
		return stats, err
	}
	byPath := make(map[string]*catalog.Photo, len(photos))
	for _, p := range photos {
		byPath[p.FilePath] = p
	}
	found := make(map[string]struct{}, len(photos))

	categories, err := os.ReadDir(root)
	if err != nil {
		return stats, syncerrors.NewFileError("readdir", root, err)
	}
	for _, dir := range categories {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if !dir.IsDir() || e.cfg.Excluded(dir.Name()) {
			continue
		}
		if err := e.syncCategory(ctx, sess, dir.Name(), byPath, found, &stats); err != nil {
			return stats, err
		}
	}

	var orphanIDs []string
	for path, photo := range byPath {
		if _, ok := found[path]; !ok {
			orphanIDs = append(orphanIDs, photo.ID)
			e.log.Info("removing orphaned photo", "path", path)
		}
	}
	if err := sess.DeleteByIDs(ctx, orphanIDs); err != nil {
		return stats, err
	}
	stats.Removed = len(orphanIDs)

	if err := sess.Commit(); err != nil {
		return stats, err
	}
	e.log.Info("full sync finished",
		"scanned", stats.Scanned, "added", stats.Added, "updated", stats.Updated,
		"removed", stats.Removed, "errors", stats.Errors)
	return stats, nil
}

func (e *Engine) syncCategory(ctx context.Context, sess *catalog.Session, category string, byPath map[string]*catalog.Photo, found map[string]struct{}, stats *types.SyncStats) error {
	categoryPath := filepath.Join(e.cfg.PhotosBasePath, category)
	entries, err := os.ReadDir(categoryPath)
	if err != nil {
		e.log.Warn("unreadable category directory", "path", categoryPath, "error", err)
		stats.Errors++
		return nil
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := entry.Name()
		if !e.cfg.IsSupportedFile(name) || e.cfg.Excluded(category+"/"+name) {
			continue
		}
		path := filepath.Join(categoryPath, name)
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			// Dangling symlinks and oddities are not scan errors, they
			// are simply not photos.
			continue
		}
		resolved := resolvePath(path)
		found[resolved] = struct{}{}
		stats.Scanned++
		e.syncFile(ctx, sess, byPath[resolved], resolved, name, category, stats)
	}
	return nil
}

// syncFile reconciles one on-disk file against its catalog row, if
// any. All faults are absorbed into the error counter so the scan
// keeps going.
func (e *Engine) syncFile(ctx context.Context, sess *catalog.Session, existing *catalog.Photo, path, filename, category string, stats *types.SyncStats) {
	meta, err := imagemeta.Extract(path)
	if err != nil {
		e.log.Warn("skipping unreadable file", "path", path, "error", err)
		stats.Errors++
		return
	}
	if existing == nil {
		photo := newPhoto(path, filename, category, meta)
		if err := sess.Insert(ctx, photo); err != nil {
			e.log.Warn("insert failed during full sync", "path", path, "error", err)
			stats.Errors++
			return
		}
		e.log.Info("photo added", "path", path, "category", category, "title", photo.Title)
		stats.Added++
		return
	}
	if existing.FileModifiedAt.Equal(meta.ModifiedAt) {
		return
	}
	applyFileUpdate(existing, filename, category, meta)
	if err := sess.Update(ctx, existing); err != nil {
		e.log.Warn("update failed during full sync", "path", path, "error", err)
		stats.Errors++
		return
	}
	e.log.Info("photo updated", "path", path, "title", existing.Title)
	stats.Updated++
}
