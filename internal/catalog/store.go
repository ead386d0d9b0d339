package catalog

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	syncerrors "github.com/pixelgrove/photosync/internal/errors"
)

// Store owns the SQLite connection pool for the photo catalog.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite catalog at dbPath, creating the file if needed,
// with WAL mode enabled, and verifies connectivity. The busy timeout
// covers full syncs and event batches writing concurrently.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, syncerrors.NewCatalogError("open", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, syncerrors.NewCatalogError("ping", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the photos table and its indexes. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return syncerrors.NewCatalogError("migrate", err)
	}
	return nil
}

// Health verifies the catalog still answers queries. Backs the
// database probe on the health endpoint.
func (s *Store) Health(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return syncerrors.NewCatalogError("health", err)
	}
	return nil
}

// Begin opens a catalog session backed by a single transaction.
func (s *Store) Begin(ctx context.Context) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, syncerrors.NewCatalogError("begin", err)
	}
	return &Session{tx: tx}, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS photos (
  id               TEXT PRIMARY KEY,
  filename         TEXT NOT NULL,
  file_path        TEXT NOT NULL UNIQUE,
  category         TEXT NOT NULL,
  title            TEXT NOT NULL DEFAULT '',
  file_size        INTEGER NOT NULL,
  width            INTEGER,
  height           INTEGER,
  file_modified_at INTEGER NOT NULL,
  created_at       INTEGER NOT NULL,
  updated_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_photos_category ON photos(category);
`
