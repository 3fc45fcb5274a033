// Package store persists care records. It is the system of record for care
// data; the short-term cache only ever mirrors what resolution returned.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/plantcare/pkg/care"
)

// ErrNotFound is returned when no record exists for a scientific name.
var ErrNotFound = errors.New("care record not found")

// Store is the persistent record store keyed by scientific name.
type Store interface {
	// Get loads the record for name or returns ErrNotFound.
	Get(ctx context.Context, name string) (*care.Record, error)

	// FindOrCreate atomically inserts the record when absent, backfills any
	// null identity fields from identity and returns the stored row.
	FindOrCreate(ctx context.Context, name string, identity care.Identity) (*care.Record, error)

	// SaveCare writes details with their source and timestamp, creating
	// the record if needed. Identity is backfilled, never overwritten.
	SaveCare(ctx context.Context, name string, identity care.Identity, details *care.Details, source care.Source, at time.Time) (*care.Record, error)

	// ClearCare resets the cache metadata so the record reads as uncached.
	ClearCare(ctx context.Context, name string) error

	// ListNeedingRefresh returns records that are uncached or cached before
	// staleBefore, oldest first, uncached first.
	ListNeedingRefresh(ctx context.Context, staleBefore time.Time, limit int) ([]care.Record, error)

	// Close releases the underlying connection pool.
	Close() error
}
