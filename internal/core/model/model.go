// Package model describes the plugin contracts a model implementation
// must satisfy. The engine treats every model as an opaque,
// capability-bearing module resolved by the registry (spec.md §4.1,
// §9); this package only carries the interfaces (the counterparts of
// impress/model.py's AbstractCacheModel / AbstractTimelineModel) and
// provides no base implementation.
package model

import "time"

// CacheData is the per-object accumulation state a CacheModel produces
// and owns inside a Slot.
type CacheData interface {
	// Add folds params (a map or slice, shape defined by the model) into
	// the state at intra-interval offset. offset is now - interval.Start.
	Add(params any, offset time.Duration) error

	// Get returns the serialisable view of the accumulated state.
	Get() map[string]any

	// Upgrade is a one-shot hook invoked after deserialising a restored
	// snapshot, letting a model migrate an older on-disk shape.
	Upgrade()
}

// CacheModel constructs fresh CacheData for one object. Exactly one
// CacheModel is bound to any given object-key prefix (spec.md §3:
// "cachedata[k] is always the same model type for every object
// sharing the type prefix of k").
type CacheModel interface {
	// NewCacheData constructs empty state, or state seeded from a
	// decoded snapshot/storage row when items is non-nil.
	NewCacheData(items map[string]any) CacheData
}

// TimelineData is the per-object state used by the offline timeline
// merger (spec.md §4.6); a distinct contract from CacheData because it
// operates on whole stored slots rather than live intra-interval adds.
type TimelineData interface {
	// Merge folds other's state into the receiver, used when the
	// receiver's ModelSlot absorbs other's ModelSlot.
	Merge(other TimelineData)

	// Update rewrites the state in place for a slot that is not being
	// merged this round (e.g. to apply a schema migration or drop
	// expired sub-keys); it reports whether anything changed.
	Update() bool

	// Get returns the serialisable view of the state.
	Get() map[string]any
}

// TimelineModel constructs fresh TimelineData for one object, and may
// run a batch initialisation step across every slot of a timeline
// before merging begins.
type TimelineModel interface {
	// NewTimelineData constructs state seeded from items (a decoded
	// storage row value), or empty state when items is nil (used when
	// building the transient merge-candidate slot).
	NewTimelineData(items map[string]any) TimelineData

	// Prepare runs once per timeline, before any Merge/Update call, over
	// every already-constructed TimelineData in slot order.
	Prepare(slots []TimelineData)
}

