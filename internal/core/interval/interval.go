// Package interval defines the typed time interval used to key every
// Slot, and the day/hour variants that implement it.
//
// Grounded on impress/interval.py and impress/intervals/{day,hour}.py
// (see _examples/original_source): a half-open [start, start+delta)
// range with a canonical string key and a total order where, at equal
// start, the longer delta sorts first (a containing interval precedes
// the sub-intervals it will absorb during a timeline merge).
package interval

import "time"

// Interval is a half-open time range with a canonical key.
type Interval struct {
	Start time.Time
	Delta time.Duration
	Key   string
}

// Codec is implemented by each interval variant (day, hour, ...). The
// engine is configured with exactly one Codec for the lifetime of a
// process (spec.md §5: "a site cannot mix granularities within one
// run").
type Codec interface {
	// Name identifies the variant, e.g. "day" or "hour".
	Name() string

	// BasicDelta is the variant's default width.
	BasicDelta() time.Duration

	// New constructs the Interval containing t, at BasicDelta width.
	New(t time.Time) Interval

	// WithDelta constructs an Interval starting at start with the given
	// delta (used when rotating to a non-default width, or by the
	// timeline merger when building a candidate merge span).
	WithDelta(start time.Time, delta time.Duration) Interval

	// MakeKey renders the canonical key for (start, delta).
	MakeKey(start time.Time, delta time.Duration) string

	// Parse is the inverse of MakeKey.
	Parse(key string) (Interval, error)
}

// End returns the exclusive end of the interval.
func (iv Interval) End() time.Time {
	return iv.Start.Add(iv.Delta)
}

// Contains reports whether t falls within [Start, End).
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End())
}

// Less implements the total order from spec.md §3: earlier Start
// sorts first; at equal Start, longer Delta sorts first.
func (iv Interval) Less(other Interval) bool {
	if iv.Start.Before(other.Start) {
		return true
	}
	if iv.Start.After(other.Start) {
		return false
	}
	return iv.Delta > other.Delta
}

// Equal reports whether two intervals have the same start and delta.
func (iv Interval) Equal(other Interval) bool {
	return iv.Start.Equal(other.Start) && iv.Delta == other.Delta
}

// String returns the canonical key.
func (iv Interval) String() string {
	return iv.Key
}
