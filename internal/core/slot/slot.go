// Package slot implements the per-interval container of model state
// (spec.md §4.2), grounded on impress/slot.py's Slot.
package slot

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/slotcache-go/internal/core/interval"
	"github.com/yndnr/slotcache-go/internal/core/model"
	"github.com/yndnr/slotcache-go/internal/storage"
)

// BackupVersion is the snapshot record version this build writes.
// LoadBackup accepts 1, 2 and 3; only 3 is ever produced.
const BackupVersion = 3

// ModelLookup resolves the plugin responsible for one stored object
// key. It is supplied by the caller (ultimately the registry) rather
// than baked into Slot, since a Slot has no notion of `[type]`
// configuration of its own.
type ModelLookup func(objkey string) (model.CacheModel, error)

// Record is the serialisable snapshot of one Slot, versions 1-3.
// Field names follow impress/cache.py's backup dict layout.
type Record struct {
	Version     int                       `json:"backup_version"`
	Date        string                    `json:"date,omitempty"`         // v1 only
	IntervalKey string                    `json:"interval_key,omitempty"` // v2+
	Downtime    float64                   `json:"downtime_seconds"`       // seconds
	SnapshotEnd *time.Time                `json:"snapshot_end,omitempty"` // v2+, optional
	Cachedata   map[string]map[string]any `json:"cachedata"`
}

// entry pairs a CacheData with the CacheModel that produced it, so
// Clone can rebuild an independent copy without needing a registry
// lookup of its own.
type entry struct {
	model model.CacheModel
	data  model.CacheData
}

// Slot holds one interval's per-object model state.
type Slot struct {
	mu       sync.Mutex
	interval interval.Interval
	downtime time.Duration
	data     map[string]entry

	// restoreHook computes a staleness delta to be folded into
	// downtime the first time Init runs. Installed by LoadBackup or by
	// Active when no backup exists at all.
	restoreHook func(now time.Time) time.Duration
}

// New constructs an empty, uninitialised Slot for the given interval.
func New(iv interval.Interval) *Slot {
	return &Slot{interval: iv, data: make(map[string]entry)}
}

// Interval returns the interval this Slot covers.
func (s *Slot) Interval() interval.Interval {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Downtime returns the accumulated downtime charged to this Slot.
func (s *Slot) Downtime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downtime
}

// SetRestoreHook installs the staleness hook consumed by the next
// Init call. Must be called before Init.
func (s *Slot) SetRestoreHook(hook func(now time.Time) time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreHook = hook
}

// Init runs the one-time post-construction/restore step: if a
// restore hook is attached, it is invoked and its result folded into
// downtime, then cleared.
func (s *Slot) Init(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restoreHook == nil {
		return
	}
	s.downtime += s.restoreHook(now)
	s.restoreHook = nil
}

// Add accumulates params into the model state for objkey, creating it
// on first use via lookup. now is used to compute the in-slot offset
// passed to the model.
func (s *Slot) Add(objkey string, params any, lookup ModelLookup, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[objkey]
	if !ok {
		m, err := lookup(objkey)
		if err != nil {
			return fmt.Errorf("slot: add %s: %w", objkey, err)
		}
		e = entry{model: m, data: m.NewCacheData(nil)}
		s.data[objkey] = e
	}

	offset := now.Sub(s.interval.Start)
	if offset < 0 {
		offset = 0
	}
	if err := e.data.Add(params, offset); err != nil {
		return fmt.Errorf("slot: add %s: %w", objkey, err)
	}
	return nil
}

// Get invokes callback(slotKey, objkey, values) for every objkey
// present, or every objkey in objkeys when non-empty.
func (s *Slot) Get(objkeys []string, callback func(slotKey, objkey string, values map[string]any)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.interval.Key
	if len(objkeys) == 0 {
		for objkey, e := range s.data {
			callback(key, objkey, e.data.Get())
		}
		return
	}
	for _, objkey := range objkeys {
		if e, ok := s.data[objkey]; ok {
			callback(key, objkey, e.data.Get())
		}
	}
}

// IsActive reports whether now falls within this Slot's interval.
func (s *Slot) IsActive(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval.Contains(now)
}

// Clone returns a deep copy: same interval and downtime, independent
// cachedata. Used when a forced rotation must preserve the original
// Slot for a concurrent snapshot writer while the caller continues
// accumulating into a fresh one.
func (s *Slot) Clone() *Slot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := &Slot{interval: s.interval, downtime: s.downtime, data: make(map[string]entry, len(s.data))}
	for objkey, e := range s.data {
		out.data[objkey] = entry{model: e.model, data: e.model.NewCacheData(e.data.Get())}
	}
	return out
}

// availabilityRetries and availabilityBackoff implement spec.md
// §4.2's "up to 10 attempts, 1s sleep between tries" contract for the
// final availability-marker insert.
const (
	availabilityRetries = 10
	availabilityBackoff  = time.Second
)

// Store writes every (objkey, modelData) pair via storage.Insert,
// counting failures, then attempts the availability marker insert up
// to availabilityRetries times. Per-item insert failures never abort
// the iteration and are intentionally not returned to the caller --
// the availability marker is the source of truth for counts (spec.md
// §9's preserved split).
func (s *Slot) Store(ctx context.Context, driver storage.Driver) (ok bool) {
	s.mu.Lock()
	key := s.interval.Key
	downtime := s.downtime
	items := make(map[string]map[string]any, len(s.data))
	for objkey, e := range s.data {
		items[objkey] = e.data.Get()
	}
	s.mu.Unlock()

	okCount, errCount := 0, 0
	for _, objkey := range sortedKeys(items) {
		if err := driver.Insert(ctx, objkey, key, items[objkey]); err != nil {
			errCount++
			continue
		}
		okCount++
	}

	limiter := rate.NewLimiter(rate.Every(availabilityBackoff), 1)
	for attempt := 0; attempt < availabilityRetries; attempt++ {
		if attempt > 0 {
			if err := limiter.Wait(ctx); err != nil {
				return false
			}
		}
		if err := driver.InsertAvailabilityMarker(ctx, key, okCount, errCount, downtime); err == nil {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MakeBackup produces a version-3 snapshot record. snapshotEnd marks
// the wall-clock instant the snapshot was taken, used by the next
// process to charge staleness downtime on restore.
func (s *Slot) MakeBackup(snapshotEnd time.Time) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	cachedata := make(map[string]map[string]any, len(s.data))
	for objkey, e := range s.data {
		cachedata[objkey] = e.data.Get()
	}
	end := snapshotEnd
	return Record{
		Version:     BackupVersion,
		IntervalKey: s.interval.Key,
		Downtime:    s.downtime.Seconds(),
		SnapshotEnd: &end,
		Cachedata:   cachedata,
	}
}

// LoadBackup reconstructs a Slot from a Record, using codec to parse
// the interval key (or, for version 1, the bare date). lookup
// resolves the model plugin for each stored objkey so its CacheData
// can be rehydrated. siteOffset is needed to evaluate the
// snapshot_end staleness hook at Init time.
func LoadBackup(rec Record, codec interval.Codec, lookup ModelLookup, siteOffset time.Duration) (*Slot, error) {
	var iv interval.Interval
	var err error

	switch rec.Version {
	case 1:
		if rec.Date == "" {
			return nil, fmt.Errorf("slot: loadBackup: version 1 record missing date")
		}
		t, perr := time.Parse("20060102", rec.Date)
		if perr != nil {
			return nil, fmt.Errorf("slot: loadBackup: bad v1 date %q: %w", rec.Date, perr)
		}
		basic := codec.BasicDelta()
		iv = interval.Interval{Start: t, Delta: basic, Key: codec.MakeKey(t, basic)}
	case 2, 3:
		if rec.IntervalKey == "" {
			return nil, fmt.Errorf("slot: loadBackup: v%d record missing interval_key", rec.Version)
		}
		iv, err = codec.Parse(rec.IntervalKey)
		if err != nil {
			return nil, fmt.Errorf("slot: loadBackup: %w", err)
		}
	default:
		return nil, fmt.Errorf("slot: loadBackup: unknown backup_version %d", rec.Version)
	}

	s := New(iv)
	s.downtime = time.Duration(rec.Downtime * float64(time.Second))

	for objkey, values := range rec.Cachedata {
		m, err := lookup(objkey)
		if err != nil {
			return nil, fmt.Errorf("slot: loadBackup: %w", err)
		}
		s.data[objkey] = entry{model: m, data: m.NewCacheData(values)}
	}

	if rec.SnapshotEnd != nil {
		snapshotEnd := *rec.SnapshotEnd
		end := iv.End()
		s.SetRestoreHook(func(now time.Time) time.Duration {
			bound := now
			if end.Before(bound) {
				bound = end.Add(-siteOffset)
			}
			d := bound.Sub(snapshotEnd)
			if d < 0 {
				d = 0
			}
			return d
		})
	}

	return s, nil
}
