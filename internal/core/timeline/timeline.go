// Package timeline implements the offline merge engine that folds
// stored day/hour slots into larger intervals according to a
// configured Pattern (spec.md §4.6). Grounded on impress/timeline.py.
package timeline

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/yndnr/slotcache-go/internal/core/interval"
	"github.com/yndnr/slotcache-go/internal/core/model"
)

// ModelSlot pairs an Interval with the model state stored for it,
// mirroring impress/timeline.py's ModelSlot.
type ModelSlot struct {
	Interval interval.Interval
	Data     model.TimelineData
}

// Overlaps reports whether the receiver's end runs past other's start
// (impress/timeline.py's ModelSlot.overlaps).
func (s ModelSlot) Overlaps(other ModelSlot) bool {
	return s.Interval.End().After(other.Interval.Start)
}

// Contains reports whether the receiver's end reaches or passes
// other's end (ModelSlot.contains) — together with a shared/no-later
// start (guaranteed by caller usage: only adjacent bisected neighbours
// are compared), this means "entirely contains".
func (s ModelSlot) Contains(other ModelSlot) bool {
	return !s.Interval.End().Before(other.Interval.End())
}

// Row is the storage read view of one object's stored slots, used
// only by the timeline merger (spec.md §3).
type Row struct {
	Key   string // site_objkey storage key
	Slots map[string]map[string]any
}

// Timeline is the sorted list of ModelSlots for one object, plus the
// mutation plan accumulated while merging (impress/timeline.py's
// Timeline).
type Timeline struct {
	Label string // "<site> <objkey>", used only for log messages
	model model.TimelineModel
	codec interval.Codec

	slots   []ModelSlot
	Updated []ModelSlot
	Removed []ModelSlot

	logger *slog.Logger
}

// New constructs an empty Timeline for one object.
func New(label string, m model.TimelineModel, codec interval.Codec, logger *slog.Logger) *Timeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Timeline{Label: label, model: m, codec: codec, logger: logger}
}

// Len reports how many slots are currently in the timeline.
func (t *Timeline) Len() int { return len(t.slots) }

// Slots returns the current sorted slots (read-only view).
func (t *Timeline) Slots() []ModelSlot { return t.slots }

// Modified reports whether any merge/update call produced a mutation.
func (t *Timeline) Modified() bool {
	return len(t.Updated) > 0 || len(t.Removed) > 0
}

// Start returns the earliest slot's interval start. Callers must
// ensure the timeline is non-empty.
func (t *Timeline) Start() interval.Interval {
	return t.slots[0].Interval
}

func (t *Timeline) warn(format string, args ...any) {
	t.logger.Warn(fmt.Sprintf("%s: %s", t.Label, fmt.Sprintf(format, args...)))
}

func (t *Timeline) errorf(format string, args ...any) {
	t.logger.Error(fmt.Sprintf("%s: %s", t.Label, fmt.Sprintf(format, args...)))
}

// Add parses key and bisects the resulting slot into position,
// enforcing the "no two slots overlap partially" invariant
// (impress/timeline.py's Timeline.add). A containing/contained overlap
// is logged at warning level and accepted (it will be merged later by
// Merge); a straddling overlap is logged as an error and rejected —
// the slot is not inserted (a data defect, per spec.md §4.6 S6).
func (t *Timeline) Add(key string, items map[string]any) error {
	iv, err := t.codec.Parse(key)
	if err != nil {
		return fmt.Errorf("timeline: %s: %w", t.Label, err)
	}

	slot := ModelSlot{Interval: iv, Data: t.model.NewTimelineData(items)}
	i := t.bisectLeft(slot)

	if i < len(t.slots) && t.slots[i].Interval.Equal(slot.Interval) {
		t.errorf("duplicate slot %s", slot.Interval.Key)
		return fmt.Errorf("timeline: %s: duplicate slot %s", t.Label, slot.Interval.Key)
	}

	if i > 0 {
		left := t.slots[i-1]
		if left.Overlaps(slot) {
			if left.Contains(slot) {
				t.warn("slot %s contained in %s", slot.Interval.Key, left.Interval.Key)
			} else {
				t.errorf("slot %s overlaps with %s", slot.Interval.Key, left.Interval.Key)
				return fmt.Errorf("timeline: %s: slot %s overlaps %s", t.Label, slot.Interval.Key, left.Interval.Key)
			}
		}
	}

	if i < len(t.slots) {
		right := t.slots[i]
		if slot.Overlaps(right) {
			if slot.Contains(right) {
				t.warn("slot %s contains %s", slot.Interval.Key, right.Interval.Key)
			} else {
				t.errorf("slot %s overlaps with %s", slot.Interval.Key, right.Interval.Key)
				return fmt.Errorf("timeline: %s: slot %s overlaps %s", t.Label, slot.Interval.Key, right.Interval.Key)
			}
		}
	}

	t.slots = append(t.slots, ModelSlot{})
	copy(t.slots[i+1:], t.slots[i:])
	t.slots[i] = slot
	return nil
}

func (t *Timeline) bisectLeft(slot ModelSlot) int {
	return sort.Search(len(t.slots), func(i int) bool {
		return !t.slots[i].Interval.Less(slot.Interval)
	})
}

// Prepare runs the model's batch-init hook over every slot
// (impress/timeline.py's Timeline.prepare).
func (t *Timeline) Prepare() {
	datas := make([]model.TimelineData, len(t.slots))
	for i, s := range t.slots {
		datas[i] = s.Data
	}
	t.model.Prepare(datas)
}

// Merge constructs a candidate slot spanning [start, start+delta) and
// folds every slot it entirely contains into it (spec.md §4.6,
// impress/timeline.py's Timeline.merge). Fewer than two contained
// slots is a no-op. A straddling overlap on either side aborts the
// merge without mutating anything.
func (t *Timeline) Merge(start interval.Interval) {
	candidate := ModelSlot{Interval: start, Data: t.model.NewTimelineData(nil)}

	i := t.bisectLeft(candidate)

	if i > 0 {
		left := t.slots[i-1]
		if left.Overlaps(candidate) {
			if left.Contains(candidate) {
				t.warn("tried to create slot %s which is subset of %s", candidate.Interval.Key, left.Interval.Key)
			} else {
				t.warn("tried to create slot %s overlapping %s", candidate.Interval.Key, left.Interval.Key)
			}
			return
		}
	}

	var merged []ModelSlot
	for n := i; n < len(t.slots); n++ {
		right := t.slots[n]
		if !candidate.Contains(right) {
			if candidate.Overlaps(right) {
				t.warn("tried to create slot %s overlapping %s", candidate.Interval.Key, right.Interval.Key)
				return
			}
			break
		}
		merged = append(merged, right)
	}

	if len(merged) < 2 {
		return
	}

	for _, s := range merged {
		candidate.Data.Merge(s.Data)
	}

	j := i + len(merged)
	removed := append([]ModelSlot(nil), t.slots[i:j]...)

	rest := append([]ModelSlot(nil), t.slots[:i]...)
	rest = append(rest, candidate)
	rest = append(rest, t.slots[j:]...)
	t.slots = rest

	for k, r := range removed {
		if r.Interval.Equal(candidate.Interval) {
			t.warn("updating slot %s", candidate.Interval.Key)
			removed = append(removed[:k], removed[k+1:]...)
			break
		}
	}

	t.Updated = append(t.Updated, candidate)
	t.Removed = append(t.Removed, removed...)
}

// Update runs the model's in-place rewrite over every slot still in
// the timeline, recording changed non-empty slots as Updated and
// emptied ones as Removed (impress/timeline.py's Timeline.update).
func (t *Timeline) Update() {
	for _, slot := range t.slots {
		if !slot.Data.Update() {
			continue
		}
		if len(slot.Data.Get()) > 0 {
			if !containsSlot(t.Updated, slot) {
				t.Updated = append(t.Updated, slot)
			}
		} else {
			t.Removed = append(t.Removed, slot)
		}
	}
}

func containsSlot(slots []ModelSlot, slot ModelSlot) bool {
	for _, s := range slots {
		if s.Interval.Equal(slot.Interval) {
			return true
		}
	}
	return false
}

// Mutate builds the insert/remove column plan from Updated/Removed and,
// if store is true, applies it via row's mutation callback
// (impress/timeline.py's mutate()).
func Mutate(row *Row, t *Timeline, apply func(insert map[string]map[string]any, remove []string) error) error {
	insert := make(map[string]map[string]any, len(t.Updated))
	for _, slot := range t.Updated {
		insert[slot.Interval.Key] = slot.Data.Get()
	}

	remove := make([]string, 0, len(t.Removed))
	for _, slot := range t.Removed {
		remove = append(remove, slot.Interval.Key)
	}

	if apply == nil {
		return nil
	}
	return apply(insert, remove)
}

// Pattern is the offline rule invoked after Prepare to decide which
// ranges to Merge (spec.md §4.6's "Day->Month pattern" is the
// reference implementation, in internal/core/patterns/daymonth).
type Pattern interface {
	Merge(t *Timeline, today time.Time)
}
