package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Days() DayStore
}

// DayStore manages per-day activity records.
//
// The backend offers plain key-value reads and writes keyed by ISO date
// string. There are no transactions: Save is an unconditional overwrite and
// a concurrent read-modify-write for the same date can lose updates. The
// aggregation layer assumes a single logical writer per date key and does
// not add locking on top of this contract.
type DayStore interface {
	// Get returns the record stored for date, or ErrNotFound.
	Get(ctx context.Context, date string) (*DayRecord, error)
	// GetMany returns the records for the requested dates. Dates with no
	// stored record are simply absent from the result map.
	GetMany(ctx context.Context, dates []string) (map[string]*DayRecord, error)
	// All returns every stored record keyed by date.
	All(ctx context.Context) (map[string]*DayRecord, error)
	// Save overwrites the record at date. Last writer wins.
	Save(ctx context.Context, date string, rec *DayRecord) error
}
