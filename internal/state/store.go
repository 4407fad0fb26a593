// Package state persists lensgrid state in SQLite: the last-used form
// inputs and the history of exports.
package state

import (
	"context"
	"errors"
	"time"
)

// DefaultPath is the default state database location.
const DefaultPath = ".lensgrid/state.db"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Export records one finished export.
type Export struct {
	ID        string            `json:"id"`
	Path      string            `json:"path"`
	Format    string            `json:"format"`
	Rows      int               `json:"rows"`
	Inputs    map[string]string `json:"inputs"`
	CreatedAt time.Time         `json:"created_at"`
}

// Store is the state persistence interface used by commands and the server.
type Store interface {
	// LoadInputs returns the stored inputs. It returns an empty map when
	// nothing has been saved yet.
	LoadInputs(ctx context.Context) (map[string]string, error)
	// SaveInputs replaces the stored inputs atomically.
	SaveInputs(ctx context.Context, inputs map[string]string) error
	// ClearInputs removes all stored inputs.
	ClearInputs(ctx context.Context) error

	// RecordExport stores e, assigning ID and CreatedAt when empty.
	RecordExport(ctx context.Context, e *Export) error
	// SaveExport replaces the stored inputs and records e atomically.
	SaveExport(ctx context.Context, inputs map[string]string, e *Export) error
	// ListExports returns the most recent exports first. limit <= 0 means all.
	ListExports(ctx context.Context, limit int) ([]*Export, error)
	// GetExport returns the export with the given ID or a unique ID prefix.
	GetExport(ctx context.Context, id string) (*Export, error)

	Close() error
}
