package badgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/yndnr/slotcache-go/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Dir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertAndIterateRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, "page_home", "20240301", map[string]any{"views": 3.0}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Insert(ctx, "page_home", "20240302", map[string]any{"views": 4.0}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	var rows []storage.Row
	if err := s.IterateRows(ctx, func(r storage.Row) error {
		rows = append(rows, r)
		return nil
	}); err != nil {
		t.Fatalf("IterateRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("want 1 row, got %d", len(rows))
	}
	if len(rows[0].Slots) != 2 {
		t.Fatalf("want 2 slots, got %d", len(rows[0].Slots))
	}
}

func TestCacheBackupRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, _, err := s.GetCacheBackup(ctx, "site-a"); err != nil {
		t.Fatalf("GetCacheBackup (empty): %v", err)
	}

	blob := []byte(`{"backup_version":3}`)
	if err := s.InsertCacheBackup(ctx, "site-a", blob); err != nil {
		t.Fatalf("InsertCacheBackup: %v", err)
	}

	got, writtenAt, err := s.GetCacheBackup(ctx, "site-a")
	if err != nil {
		t.Fatalf("GetCacheBackup: %v", err)
	}
	if string(got) != string(blob) {
		t.Fatalf("blob mismatch: %s", got)
	}
	if time.Since(writtenAt) > time.Minute {
		t.Fatalf("unexpected writtenAt: %v", writtenAt)
	}
}

func TestMutateAppliesInsertAndRemove(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, "page_home", "20240301", map[string]any{"views": 1.0}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Insert(ctx, "page_home", "20240302", map[string]any{"views": 2.0}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	var row storage.Row
	if err := s.IterateRows(ctx, func(r storage.Row) error {
		row = r
		return nil
	}); err != nil {
		t.Fatalf("IterateRows: %v", err)
	}

	if err := row.Mutate(ctx, map[string]map[string]any{
		"20240301_2": {"views": 3.0},
	}, []string{"20240301", "20240302"}); err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	var after storage.Row
	if err := s.IterateRows(ctx, func(r storage.Row) error {
		after = r
		return nil
	}); err != nil {
		t.Fatalf("IterateRows after mutate: %v", err)
	}
	if len(after.Slots) != 1 {
		t.Fatalf("want 1 surviving slot, got %d", len(after.Slots))
	}
	if _, ok := after.Slots["20240301_2"]; !ok {
		t.Fatalf("expected merged slot to be present, got %#v", after.Slots)
	}
}
