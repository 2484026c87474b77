package slot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yndnr/slotcache-go/internal/core/interval"
	"github.com/yndnr/slotcache-go/internal/core/model"
	"github.com/yndnr/slotcache-go/internal/core/models/counters"
	"github.com/yndnr/slotcache-go/internal/storage"
)

func countersLookup(objkey string) (model.CacheModel, error) {
	return counters.New(), nil
}

func dayInterval(t time.Time) interval.Interval {
	return interval.Day{}.New(t)
}

// accumulation commutativity (spec.md §8 property 1): add order does
// not affect the final accumulated value.
func TestAddAccumulatesRegardlessOfOrder(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	iv := dayInterval(start)

	s1 := New(iv)
	s1.Add("page_home", map[string]any{"views": 1.0}, countersLookup, start.Add(time.Hour))
	s1.Add("page_home", map[string]any{"views": 2.0}, countersLookup, start.Add(2*time.Hour))

	s2 := New(iv)
	s2.Add("page_home", map[string]any{"views": 2.0}, countersLookup, start.Add(2*time.Hour))
	s2.Add("page_home", map[string]any{"views": 1.0}, countersLookup, start.Add(time.Hour))

	var got1, got2 map[string]any
	s1.Get(nil, func(_, _ string, values map[string]any) { got1 = values })
	s2.Get(nil, func(_, _ string, values map[string]any) { got2 = values })

	if got1["views"] != got2["views"] {
		t.Fatalf("order-dependent result: %v vs %v", got1, got2)
	}
	if got1["views"].(float64) != 3.0 {
		t.Fatalf("want 3.0 views, got %v", got1["views"])
	}
}

func TestIsActive(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	iv := dayInterval(start)
	s := New(iv)

	if s.IsActive(start.Add(-time.Second)) {
		t.Fatal("should not be active before start")
	}
	if !s.IsActive(start) {
		t.Fatal("should be active at start")
	}
	if !s.IsActive(start.Add(23 * time.Hour)) {
		t.Fatal("should be active within interval")
	}
	if s.IsActive(start.Add(24 * time.Hour)) {
		t.Fatal("should not be active at end (half-open)")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	iv := dayInterval(start)
	s := New(iv)
	s.Add("page_home", map[string]any{"views": 5.0}, countersLookup, start)

	clone := s.Clone()
	clone.Add("page_home", map[string]any{"views": 100.0}, countersLookup, start)

	var original map[string]any
	s.Get(nil, func(_, _ string, values map[string]any) { original = values })
	if original["views"].(float64) != 5.0 {
		t.Fatalf("mutating the clone affected the original: %v", original)
	}
}

type fakeDriver struct {
	failObjkey     string
	markerFailures int
	markerCalls    int
	okCount        int
	errCount       int
	downtime       time.Duration
}

func (f *fakeDriver) Insert(_ context.Context, objkey, _ string, _ map[string]any) error {
	if objkey == f.failObjkey {
		return errors.New("insert failed")
	}
	return nil
}

func (f *fakeDriver) InsertAvailabilityMarker(_ context.Context, _ string, okCount, errCount int, downtime time.Duration) error {
	f.markerCalls++
	if f.markerCalls <= f.markerFailures {
		return errors.New("marker failed")
	}
	f.okCount, f.errCount, f.downtime = okCount, errCount, downtime
	return nil
}

func (f *fakeDriver) InsertCacheBackup(context.Context, string, []byte) error { return nil }
func (f *fakeDriver) GetCacheBackup(context.Context, string) ([]byte, time.Time, error) {
	return nil, time.Time{}, nil
}
func (f *fakeDriver) IterateRows(context.Context, func(storage.Row) error) error { return nil }
func (f *fakeDriver) Reset(context.Context) error                                { return nil }

// availability marker count property (spec.md §8 property 5):
// ok_count + err_count == len(cachedata).
func TestStoreAvailabilityMarkerCounts(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := New(dayInterval(start))
	s.Add("page_home", map[string]any{"views": 1.0}, countersLookup, start)
	s.Add("page_about", map[string]any{"views": 1.0}, countersLookup, start)

	driver := &fakeDriver{failObjkey: "page_about"}
	if ok := s.Store(context.Background(), driver); !ok {
		t.Fatal("expected Store to report ok")
	}
	if driver.okCount+driver.errCount != 2 {
		t.Fatalf("want ok+err == 2, got ok=%d err=%d", driver.okCount, driver.errCount)
	}
	if driver.errCount != 1 {
		t.Fatalf("want 1 failed insert, got %d", driver.errCount)
	}
}

func TestStoreFailsWhenMarkerNeverSucceeds(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := New(dayInterval(start))
	s.Add("page_home", map[string]any{"views": 1.0}, countersLookup, start)

	driver := &fakeDriver{markerFailures: availabilityRetries}
	if ok := s.Store(context.Background(), driver); ok {
		t.Fatal("expected Store to report failure when marker insert never succeeds")
	}
}

// snapshot round-trip (spec.md §8 property 3).
func TestBackupRoundTrip(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := New(dayInterval(start))
	s.Add("page_home", map[string]any{"views": 7.0}, countersLookup, start.Add(time.Hour))

	rec := s.MakeBackup(start.Add(2 * time.Hour))
	if rec.Version != BackupVersion {
		t.Fatalf("want version %d, got %d", BackupVersion, rec.Version)
	}

	restored, err := LoadBackup(rec, interval.Day{}, countersLookup, 0)
	if err != nil {
		t.Fatalf("LoadBackup: %v", err)
	}
	if restored.Interval().Key != s.Interval().Key {
		t.Fatalf("interval mismatch: %s vs %s", restored.Interval().Key, s.Interval().Key)
	}

	var values map[string]any
	restored.Get(nil, func(_, _ string, v map[string]any) { values = v })
	if values["views"].(float64) != 7.0 {
		t.Fatalf("want 7.0 views restored, got %v", values["views"])
	}
}

// staleness downtime (spec.md §8 property 4): a snapshot_end hook
// charges the gap between snapshot_end and the bounded "now" as
// downtime, and the charge is non-negative.
func TestLoadBackupStalenessDowntime(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := New(dayInterval(start))
	snapshotEnd := start.Add(10 * time.Hour)
	rec := s.MakeBackup(snapshotEnd)

	restored, err := LoadBackup(rec, interval.Day{}, countersLookup, 0)
	if err != nil {
		t.Fatalf("LoadBackup: %v", err)
	}

	restartAt := start.Add(12 * time.Hour)
	restored.Init(restartAt)
	if restored.Downtime() != 2*time.Hour {
		t.Fatalf("want 2h downtime, got %v", restored.Downtime())
	}
}

func TestLoadBackupRejectsUnknownVersion(t *testing.T) {
	rec := Record{Version: 99, IntervalKey: "20240301", Cachedata: map[string]map[string]any{}}
	if _, err := LoadBackup(rec, interval.Day{}, countersLookup, 0); err == nil {
		t.Fatal("expected error for unknown backup version")
	}
}

func TestLoadBackupVersion1UsesDateOnly(t *testing.T) {
	rec := Record{Version: 1, Date: "20240301", Cachedata: map[string]map[string]any{
		"page_home": {"views": 3.0},
	}}
	restored, err := LoadBackup(rec, interval.Day{}, countersLookup, 0)
	if err != nil {
		t.Fatalf("LoadBackup: %v", err)
	}
	want := interval.Day{}.New(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if restored.Interval().Key != want.Key {
		t.Fatalf("want interval key %s, got %s", want.Key, restored.Interval().Key)
	}
}
