package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	syncerrors "github.com/pixelgrove/photosync/internal/errors"
)

// Session is one catalog transaction. It is not safe for concurrent
// use; every event batch and full sync runs its own session. Rollback
// after a successful Commit is a no-op, so callers can always
// "defer sess.Rollback()".
type Session struct {
	tx   *sql.Tx
	done bool
}

const photoColumns = "id, filename, file_path, category, title, file_size, width, height, file_modified_at, created_at, updated_at"

// GetByPath returns the photo stored under the given resolved path, or
// nil when no row exists.
func (s *Session) GetByPath(ctx context.Context, path string) (*Photo, error) {
	row := s.tx.QueryRowContext(ctx, "SELECT "+photoColumns+" FROM photos WHERE file_path = ?", path)
	photo, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, syncerrors.NewCatalogError("get", err)
	}
	return photo, nil
}

// ScanAll returns every catalog row. The full sync loads the whole
// catalog up front and diffs it against the filesystem in one pass.
func (s *Session) ScanAll(ctx context.Context) ([]*Photo, error) {
	rows, err := s.tx.QueryContext(ctx, "SELECT "+photoColumns+" FROM photos")
	if err != nil {
		return nil, syncerrors.NewCatalogError("scan", err)
	}
	defer rows.Close()

	var photos []*Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, syncerrors.NewCatalogError("scan", err)
		}
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, syncerrors.NewCatalogError("scan", err)
	}
	return photos, nil
}

// Insert adds a new photo row. The caller assigns the ID; Insert
// stamps created_at and updated_at with the same instant.
func (s *Session) Insert(ctx context.Context, p *Photo) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := s.tx.ExecContext(ctx,
		"INSERT INTO photos ("+photoColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?)",
		p.ID, p.Filename, p.FilePath, p.Category, p.Title, p.FileSize,
		nullableInt(p.Width), nullableInt(p.Height),
		p.FileModifiedAt.UnixNano(), now.UnixNano(), now.UnixNano())
	if err != nil {
		return syncerrors.NewCatalogError("insert", err)
	}
	return nil
}

// Update rewrites a photo row by ID and advances updated_at.
func (s *Session) Update(ctx context.Context, p *Photo) error {
	now := time.Now().UTC()
	p.UpdatedAt = now
	_, err := s.tx.ExecContext(ctx,
		`UPDATE photos SET filename = ?, file_path = ?, category = ?, title = ?,
			file_size = ?, width = ?, height = ?, file_modified_at = ?, updated_at = ?
		WHERE id = ?`,
		p.Filename, p.FilePath, p.Category, p.Title, p.FileSize,
		nullableInt(p.Width), nullableInt(p.Height),
		p.FileModifiedAt.UnixNano(), now.UnixNano(), p.ID)
	if err != nil {
		return syncerrors.NewCatalogError("update", err)
	}
	return nil
}

// DeleteByIDs removes the given rows in one statement. Empty input is
// a no-op.
func (s *Session) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.tx.ExecContext(ctx,
		"DELETE FROM photos WHERE id IN ("+placeholderList(len(ids))+")", args...)
	if err != nil {
		return syncerrors.NewCatalogError("delete", err)
	}
	return nil
}

// Commit commits the transaction.
func (s *Session) Commit() error {
	if err := s.tx.Commit(); err != nil {
		return syncerrors.NewCatalogError("commit", err)
	}
	s.done = true
	return nil
}

// Rollback aborts the transaction unless Commit already succeeded.
func (s *Session) Rollback() error {
	if s.done {
		return nil
	}
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return syncerrors.NewCatalogError("rollback", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (*Photo, error) {
	var (
		p                          Photo
		width, height              sql.NullInt64
		modified, created, updated int64
	)
	if err := row.Scan(&p.ID, &p.Filename, &p.FilePath, &p.Category, &p.Title,
		&p.FileSize, &width, &height, &modified, &created, &updated); err != nil {
		return nil, err
	}
	if width.Valid {
		w := int(width.Int64)
		p.Width = &w
	}
	if height.Valid {
		h := int(height.Int64)
		p.Height = &h
	}
	p.FileModifiedAt = time.Unix(0, modified).UTC()
	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()
	return &p, nil
}

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}
