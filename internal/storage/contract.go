// Package storage defines the external storage driver contract
// (spec.md §6): the engine requires exactly these operations from
// whatever wide-column/key-column backend sits behind it. The
// concrete driver lives in internal/storage/badgerstore; anything
// satisfying this interface is acceptable.
package storage

import (
	"context"
	"time"
)

// Driver is the storage contract the accumulator engine depends on.
type Driver interface {
	// Insert writes one item for (objkey, slotkey). Numeric values pass
	// through natively; everything else is JSON-encoded by the driver.
	// Idempotent: the engine may call this more than once for the same
	// (objkey, slotkey) after a retry.
	Insert(ctx context.Context, objkey, slotkey string, values map[string]any) error

	// InsertAvailabilityMarker writes the per-interval summary row
	// after a Slot finishes storing its data.
	InsertAvailabilityMarker(ctx context.Context, slotkey string, okCount, errCount int, downtime time.Duration) error

	// InsertCacheBackup writes the single well-known snapshot blob for
	// a site.
	InsertCacheBackup(ctx context.Context, site string, blob []byte) error

	// GetCacheBackup reads the snapshot blob and its write time, or
	// (nil, zero time, nil) if none exists.
	GetCacheBackup(ctx context.Context, site string) (blob []byte, writtenAt time.Time, err error)

	// IterateRows enumerates every non-internal stored object, grouped
	// by objkey. Implementations should sort each group's slot keys
	// descending, per spec.md §6.
	IterateRows(ctx context.Context, fn func(Row) error) error

	// Reset drops and recreates the underlying connection handle
	// (impress/cache.py calls storage.close() before any fork-isolated
	// write so the child gets a fresh connection).
	Reset(ctx context.Context) error
}

// Row is one stored object's slots, as read back by IterateRows.
type Row struct {
	Site   string
	Objkey string
	Slots  map[string]map[string]any // slotkey -> column values

	// Mutate applies an insert/remove column plan to this row. It is
	// nil on rows constructed outside of IterateRows (e.g. in tests).
	Mutate func(ctx context.Context, insert map[string]map[string]any, remove []string) error
}

// InternalKeyPrefix marks storage keys IterateRows must skip (the
// cache-backup item, any future internal bookkeeping key).
const InternalKeyPrefix = "_"
