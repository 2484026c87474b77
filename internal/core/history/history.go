// Package history implements History, the FIFO queue of closed Slots
// awaiting a store pass (spec.md §4.4), grounded on impress/cache.py's
// SiteCache history handling.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yndnr/slotcache-go/internal/core/site"
	"github.com/yndnr/slotcache-go/internal/core/slot"
	"github.com/yndnr/slotcache-go/internal/storage"
	"github.com/yndnr/slotcache-go/pkg/jsonenc"
)

// History is a FIFO queue of closed Slots for one site.
type History struct {
	mu sync.Mutex

	site                site.Site
	localHistoryPathFmt string // path template; "{site}" and "{slot}" are replaced by site name and slot key
	logger              *slog.Logger

	queue []*slot.Slot
}

// New constructs an empty History for site.
func New(s site.Site, localHistoryPathFmt string, logger *slog.Logger) *History {
	if logger == nil {
		logger = slog.Default()
	}
	return &History{site: s, localHistoryPathFmt: localHistoryPathFmt, logger: logger}
}

// Enqueue appends a just-closed Slot to the tail of the queue.
func (h *History) Enqueue(s *slot.Slot) {
	if s == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queue = append(h.queue, s)
}

// Len reports the current queue depth.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue)
}

// Get reads every queued Slot, in FIFO order, under lock.
func (h *History) Get(objkeys []string, callback func(slotKey, objkey string, values map[string]any)) {
	h.mu.Lock()
	snapshot := append([]*slot.Slot(nil), h.queue...)
	h.mu.Unlock()

	for _, s := range snapshot {
		s.Get(objkeys, callback)
	}
}

// Store runs spec.md §4.4's store pass: reset the storage connection,
// take a stable snapshot of the current queue length under lock, then
// store each queued Slot off the lock (the Go equivalent of the
// fork-isolated child -- slots enqueued while this runs stay in the
// parent's queue for the next flush). Any Slot whose Store call
// reports failure is written to a local history file as a recovery
// channel; per the existing contract both succeeding and failing
// slots are removed from the queue once the pass completes.
func (h *History) Store(ctx context.Context, driver storage.Driver) error {
	if err := driver.Reset(ctx); err != nil {
		h.logger.Warn("history: storage reset failed", "site", h.site.Name, "error", err)
	}

	h.mu.Lock()
	n := len(h.queue)
	batch := append([]*slot.Slot(nil), h.queue[:n]...)
	h.mu.Unlock()

	if n == 0 {
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, s := range batch {
			if s.Store(ctx, driver) {
				continue
			}
			if err := h.writeLocalFile(s); err != nil {
				h.logger.Error("history: local fallback write failed", "site", h.site.Name, "slot", s.Interval().Key, "error", err)
			}
		}
	}()
	wg.Wait()

	h.mu.Lock()
	h.queue = h.queue[n:]
	h.mu.Unlock()
	return nil
}

func (h *History) writeLocalFile(s *slot.Slot) error {
	if h.localHistoryPathFmt == "" {
		return fmt.Errorf("history: no local history path configured")
	}
	path := strings.ReplaceAll(h.localHistoryPathFmt, "{site}", h.site.Name)
	path = strings.ReplaceAll(path, "{slot}", s.Interval().Key)
	rec := s.MakeBackup(s.Interval().End())
	blob := jsonenc.MustMarshal(rec)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	partial := path + ".partial"
	if err := os.WriteFile(partial, blob, 0o644); err != nil {
		return err
	}
	return os.Rename(partial, path)
}
