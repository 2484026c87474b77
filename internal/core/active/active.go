// Package active implements Active, the owner of one site's open
// Slot (spec.md §4.3), grounded on impress/cache.py's SiteCache
// active-slot handling.
package active

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yndnr/slotcache-go/internal/backup"
	"github.com/yndnr/slotcache-go/internal/core/interval"
	"github.com/yndnr/slotcache-go/internal/core/site"
	"github.com/yndnr/slotcache-go/internal/core/slot"
	"github.com/yndnr/slotcache-go/internal/storage"
)

// Active owns the open Slot for one site.
type Active struct {
	mu sync.Mutex

	site            site.Site
	codec           interval.Codec
	lookup          slot.ModelLookup
	localBackupPath string // already-rendered path (e.g. config's LocalCachePath(site.Name))
	snapCodec       *backup.Codec
	logger          *slog.Logger

	slot     *slot.Slot
	modified bool
}

// New constructs an Active for site with the given interval codec,
// model lookup, and local snapshot fallback path. A nil snapCodec
// defaults to backup.NewPlainCodec() (no encryption).
func New(s site.Site, codec interval.Codec, lookup slot.ModelLookup, localBackupPath string, snapCodec *backup.Codec, logger *slog.Logger) *Active {
	if logger == nil {
		logger = slog.Default()
	}
	if snapCodec == nil {
		snapCodec = backup.NewPlainCodec()
	}
	return &Active{site: s, codec: codec, lookup: lookup, localBackupPath: localBackupPath, snapCodec: snapCodec, logger: logger}
}

// LoadBackup runs the startup restore sequence (spec.md §4.3): try
// the remote snapshot, try the local fallback file, prefer whichever
// is newer, and fall back to an empty Slot charging the not-yet-
// elapsed portion of the current interval as downtime.
func (a *Active) LoadBackup(ctx context.Context, driver storage.Driver) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.site.CurrentTime(nil)

	remoteBlob, remoteAt, err := driver.GetCacheBackup(ctx, a.site.Name)
	if err != nil {
		a.logger.Warn("active: remote snapshot fetch failed", "site", a.site.Name, "error", err)
	}

	localBlob, localAt, err := a.readLocalFile()
	if err != nil {
		a.logger.Warn("active: local snapshot read failed", "site", a.site.Name, "error", err)
	}

	var blob []byte
	switch {
	case remoteBlob != nil && localBlob != nil:
		if remoteAt.After(localAt) {
			a.logger.Warn("active: remote snapshot newer than local fallback; local cleanup likely failed", "site", a.site.Name)
			blob = remoteBlob
		} else {
			blob = localBlob
		}
	case remoteBlob != nil:
		blob = remoteBlob
	case localBlob != nil:
		blob = localBlob
	default:
		iv := a.codec.New(now)
		s := slot.New(iv)
		s.SetRestoreHook(func(now time.Time) time.Duration {
			if iv.Contains(now) {
				return now.Sub(iv.Start)
			}
			return iv.Delta
		})
		s.Init(now)
		a.slot = s
		return nil
	}

	var rec slot.Record
	if err := a.snapCodec.Decode(a.site.Name, blob, &rec); err != nil {
		return fmt.Errorf("active: loadBackup: decode snapshot: %w", err)
	}
	s, err := slot.LoadBackup(rec, a.codec, a.lookup, a.site.Offset)
	if err != nil {
		return fmt.Errorf("active: loadBackup: %w", err)
	}
	s.Init(now)
	a.slot = s
	return nil
}

func (a *Active) readLocalFile() (blob []byte, mtime time.Time, err error) {
	if a.localBackupPath == "" {
		return nil, time.Time{}, nil
	}
	info, err := os.Stat(a.localBackupPath)
	if os.IsNotExist(err) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	blob, err = os.ReadFile(a.localBackupPath)
	if err != nil {
		return nil, time.Time{}, err
	}
	return blob, info.ModTime(), nil
}

// Add runs the full §4.3 add sequence under lock: compute site-local
// now, rotate (never forced), apply objkey/params to the (possibly
// new) Slot, and return whatever Slot was just closed, if any.
func (a *Active) Add(objkey string, params any) (*slot.Slot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.site.CurrentTime(nil)
	closed := a.rotateLocked(now, false)

	if err := a.slot.Add(objkey, params, a.lookup, now); err != nil {
		return closed, err
	}
	a.modified = true
	return closed, nil
}

// Rotate exposes the rotate step on its own, used by SiteCache.flush
// for force_rotate.
func (a *Active) Rotate(force bool) *slot.Slot {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.site.CurrentTime(nil)
	return a.rotateLocked(now, force)
}

// rotateLocked must be called with a.mu held.
func (a *Active) rotateLocked(now time.Time, force bool) *slot.Slot {
	if a.slot == nil {
		a.slot = slot.New(a.codec.New(now))
		a.modified = true
		return nil
	}

	if a.slot.IsActive(now) && !force {
		return nil
	}

	old := a.slot
	if a.slot.IsActive(now) {
		// Forced rotation while still inside the interval: hand the
		// caller an independent copy to persist and keep accumulating
		// into a clone of the same interval (spec.md §4.3).
		a.slot = old.Clone()
	} else {
		a.slot = slot.New(a.codec.New(now))
	}
	a.modified = true
	return old
}

// Get reads the live Slot under lock.
func (a *Active) Get(objkeys []string, callback func(slotKey, objkey string, values map[string]any)) {
	a.mu.Lock()
	s := a.slot
	a.mu.Unlock()
	if s == nil {
		return
	}
	s.Get(objkeys, callback)
}

// DumpBackup implements spec.md §4.3's dump_backup: if not forced and
// nothing changed since the last snapshot, it is a no-op. Otherwise it
// resets the storage connection, takes a brief critical section to
// snapshot the Slot's state, and writes from that snapshot off the
// lock -- the Go equivalent of the fork-isolated writer described in
// the design notes (Go cannot safely fork a multi-threaded process).
func (a *Active) DumpBackup(ctx context.Context, driver storage.Driver, force bool) error {
	a.mu.Lock()
	if !force && !a.modified {
		a.mu.Unlock()
		return nil
	}
	if err := driver.Reset(ctx); err != nil {
		a.logger.Warn("active: storage reset failed before snapshot", "site", a.site.Name, "error", err)
	}

	snapshotEnd := a.site.CurrentTime(nil)
	rec := a.slot.MakeBackup(snapshotEnd)
	a.mu.Unlock()

	var wg sync.WaitGroup
	var writeErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		writeErr = a.writeSnapshot(ctx, driver, rec)
	}()
	wg.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	if writeErr != nil {
		a.modified = true
		a.logger.Error("active: snapshot write failed", "site", a.site.Name, "error", writeErr)
		return writeErr
	}
	_ = os.Remove(a.localBackupPath)
	a.modified = false
	return nil
}

func (a *Active) writeSnapshot(ctx context.Context, driver storage.Driver, rec slot.Record) error {
	blob, err := a.snapCodec.Encode(a.site.Name, rec)
	if err != nil {
		return fmt.Errorf("active: encode snapshot: %w", err)
	}
	if err := driver.InsertCacheBackup(ctx, a.site.Name, blob); err != nil {
		if localErr := a.writeLocalFile(blob); localErr != nil {
			return fmt.Errorf("remote snapshot failed (%v) and local fallback failed: %w", err, localErr)
		}
		return fmt.Errorf("remote snapshot failed, wrote local fallback: %w", err)
	}
	return nil
}

// writeLocalFile writes blob atomically via tmp -> rename.
func (a *Active) writeLocalFile(blob []byte) error {
	if a.localBackupPath == "" {
		return fmt.Errorf("active: no local_backup_path configured")
	}
	if err := os.MkdirAll(filepath.Dir(a.localBackupPath), 0o755); err != nil {
		return err
	}
	tmp := a.localBackupPath + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, a.localBackupPath)
}
