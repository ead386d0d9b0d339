// Package catalog persists the photo catalog in SQLite. All reads and
// writes go through a Session, which wraps exactly one transaction;
// the reconciliation engine opens one session per event batch and one
// per full sync so a batch either lands completely or not at all.
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Photo is one catalog row. FilePath is the absolute, symlink-resolved
// location on disk and is unique across the catalog.
type Photo struct {
	ID             string
	Filename       string
	FilePath       string
	Category       string
	Title          string
	FileSize       int64
	Width          *int
	Height         *int
	FileModifiedAt time.Time // UTC, nanosecond precision
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewID returns a fresh random photo identifier.
func NewID() string {
	return uuid.New().String()
}
