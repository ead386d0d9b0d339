package types

import "time"

// EventKind classifies a filesystem change for the reconciliation engine.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
	EventDeleted  EventKind = "deleted"
	// EventMoved carries the source path of a rename. The destination
	// side arrives separately as EventCreated, so moves reconcile as
	// delete-then-create.
	EventMoved EventKind = "moved"
)

// FileEvent is a single filesystem change observed by the watcher.
type FileEvent struct {
	Kind     EventKind
	Path     string
	Category string
	At       time.Time
}

// SyncStats summarizes one full reconciliation pass.
// JSON field names match the manual-sync response payload.
type SyncStats struct {
	Scanned int `json:"files_scanned"`
	Added   int `json:"files_added"`
	Updated int `json:"files_updated"`
	Removed int `json:"files_removed"`
	Errors  int `json:"errors"`
}

// Changed reports whether the pass mutated the catalog at all.
func (s SyncStats) Changed() bool {
	return s.Added > 0 || s.Updated > 0 || s.Removed > 0
}
