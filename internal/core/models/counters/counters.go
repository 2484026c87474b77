// Package counters is the reference model plugin: a general-purpose
// accumulator of arbitrarily-named counters that may be incremented.
// Grounded on impress/models/counters.py.
package counters

import (
	"fmt"
	"time"

	"github.com/yndnr/slotcache-go/internal/core/model"
)

// ID is the identifier this plugin registers under in the `[type]`
// configuration section.
const ID = "counters"

// Model is the CacheModel/TimelineModel implementation for counters.
type Model struct{}

var (
	_ model.CacheModel    = Model{}
	_ model.TimelineModel = Model{}
)

// New returns the singleton Model (it carries no state of
// its own; all state lives in the CacheData/TimelineData it builds).
func New() Model { return Model{} }

func (Model) NewCacheData(items map[string]any) model.CacheData {
	return &cacheData{items: cloneOrNew(items)}
}

func (Model) NewTimelineData(items map[string]any) model.TimelineData {
	return &timelineData{items: cloneOrNew(items)}
}

func (Model) Prepare([]model.TimelineData) {
	// Counters need no batch preparation.
}

func cloneOrNew(items map[string]any) map[string]any {
	if items == nil {
		return make(map[string]any)
	}
	out := make(map[string]any, len(items))
	for k, v := range items {
		out[k] = v
	}
	return out
}

type cacheData struct {
	items map[string]any
}

// Add increments each named counter in params by its delta. params
// must be a map[string]any of numeric deltas (impress/models/counters.py
// ignores the offset entirely; counters are not time-bucketed within a
// slot).
func (d *cacheData) Add(params any, _ time.Duration) error {
	deltas, ok := params.(map[string]any)
	if !ok {
		return fmt.Errorf("counters: add: params must be an object, got %T", params)
	}
	for key, delta := range deltas {
		d.items[key] = numericAdd(d.items[key], delta)
	}
	return nil
}

func (d *cacheData) Get() map[string]any { return d.items }

func (d *cacheData) Upgrade() {}

type timelineData struct {
	items map[string]any
}

// Merge adds other's counters into the receiver's.
func (d *timelineData) Merge(other model.TimelineData) {
	o := other.(*timelineData)
	for key, value := range o.items {
		d.items[key] = numericAdd(d.items[key], value)
	}
}

// Update never rewrites counters in place; they only ever merge.
func (d *timelineData) Update() bool { return false }

func (d *timelineData) Get() map[string]any { return d.items }

func numericAdd(existing, delta any) float64 {
	return toFloat(existing) + toFloat(delta)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
