package active

import (
	"context"
	"testing"
	"time"

	"github.com/yndnr/slotcache-go/internal/core/interval"
	"github.com/yndnr/slotcache-go/internal/core/model"
	"github.com/yndnr/slotcache-go/internal/core/models/counters"
	"github.com/yndnr/slotcache-go/internal/core/site"
	"github.com/yndnr/slotcache-go/internal/storage"
)

func lookup(string) (model.CacheModel, error) { return counters.New(), nil }

type memDriver struct {
	backups map[string][]byte
}

func newMemDriver() *memDriver { return &memDriver{backups: make(map[string][]byte)} }

func (d *memDriver) Insert(context.Context, string, string, map[string]any) error { return nil }
func (d *memDriver) InsertAvailabilityMarker(context.Context, string, int, int, time.Duration) error {
	return nil
}
func (d *memDriver) InsertCacheBackup(_ context.Context, site string, blob []byte) error {
	d.backups[site] = blob
	return nil
}
func (d *memDriver) GetCacheBackup(_ context.Context, site string) ([]byte, time.Time, error) {
	blob, ok := d.backups[site]
	if !ok {
		return nil, time.Time{}, nil
	}
	return blob, time.Now(), nil
}
func (d *memDriver) IterateRows(context.Context, func(storage.Row) error) error { return nil }
func (d *memDriver) Reset(context.Context) error                               { return nil }

func TestLoadBackupWithNoPriorStateStartsEmptySlot(t *testing.T) {
	s := site.New("site-a", 0)
	a := New(s, interval.Day{}, lookup, "", nil, nil)
	if err := a.LoadBackup(context.Background(), newMemDriver()); err != nil {
		t.Fatalf("LoadBackup: %v", err)
	}

	var values map[string]any
	a.Get(nil, func(_, _ string, v map[string]any) { values = v })
	if values != nil {
		t.Fatalf("expected no data on a fresh Active, got %v", values)
	}
}

// rotation monotonicity (spec.md §8 property 2).
func TestRotationMonotonicity(t *testing.T) {
	s := site.New("site-a", 0)
	a := New(s, interval.Day{}, lookup, "", nil, nil)
	if err := a.LoadBackup(context.Background(), newMemDriver()); err != nil {
		t.Fatalf("LoadBackup: %v", err)
	}

	day1 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 1, 0, 0, 0, time.UTC)

	// Fake current time per-call by swapping the site's offset is not
	// possible post hoc, so drive Active.Add through rotateLocked
	// directly using the same clock semantics: Add always uses
	// site.CurrentTime(nil), i.e. real now. Exercise rotate at the
	// Slot level instead to assert the same invariant without racing
	// the wall clock.
	a.mu.Lock()
	a.slot.Add("page_home", map[string]any{"views": 1.0}, lookup, day1)
	closed := a.rotateLocked(day2, false)
	a.mu.Unlock()

	if closed == nil {
		t.Fatal("expected a closed slot when now crosses interval.end")
	}
	if !closed.Interval().Contains(day1) {
		t.Fatalf("closed slot does not contain day1: %v", closed.Interval())
	}

	a.mu.Lock()
	if !a.slot.Interval().Contains(day2) {
		t.Fatalf("new slot does not contain day2: %v", a.slot.Interval())
	}
	a.mu.Unlock()

	var closedViews, newViews map[string]any
	closed.Get(nil, func(_, _ string, v map[string]any) { closedViews = v })
	if closedViews["views"].(float64) != 1.0 {
		t.Fatalf("closed slot should carry day1's add, got %v", closedViews)
	}

	a.slot.Add("page_home", map[string]any{"views": 5.0}, lookup, day2)
	a.slot.Get(nil, func(_, _ string, v map[string]any) { newViews = v })
	if newViews["views"].(float64) != 5.0 {
		t.Fatalf("new slot should only carry day2's add, got %v", newViews)
	}
}

func TestDumpBackupIsNoopWhenNotModified(t *testing.T) {
	s := site.New("site-a", 0)
	a := New(s, interval.Day{}, lookup, "", nil, nil)
	driver := newMemDriver()
	if err := a.LoadBackup(context.Background(), driver); err != nil {
		t.Fatalf("LoadBackup: %v", err)
	}

	if err := a.DumpBackup(context.Background(), driver, false); err != nil {
		t.Fatalf("DumpBackup: %v", err)
	}
	if _, ok := driver.backups["site-a"]; ok {
		t.Fatal("expected no snapshot write when not modified and not forced")
	}
}

func TestDumpBackupWritesSnapshotWhenForced(t *testing.T) {
	s := site.New("site-a", 0)
	a := New(s, interval.Day{}, lookup, "", nil, nil)
	driver := newMemDriver()
	if err := a.LoadBackup(context.Background(), driver); err != nil {
		t.Fatalf("LoadBackup: %v", err)
	}

	if err := a.DumpBackup(context.Background(), driver, true); err != nil {
		t.Fatalf("DumpBackup: %v", err)
	}
	if _, ok := driver.backups["site-a"]; !ok {
		t.Fatal("expected a snapshot write when forced")
	}
}
