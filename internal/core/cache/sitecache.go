// Package cache implements SiteCache and Cache (spec.md §4.5), the
// per-site pairing of Active+History and the fan-out registry across
// sites. Grounded on impress/cache.py's SiteCache and Cache classes.
package cache

import (
	"context"
	"log/slog"

	"github.com/yndnr/slotcache-go/internal/core/active"
	"github.com/yndnr/slotcache-go/internal/core/history"
	"github.com/yndnr/slotcache-go/internal/core/site"
	"github.com/yndnr/slotcache-go/internal/eventlog"
	"github.com/yndnr/slotcache-go/internal/storage"
	"github.com/yndnr/slotcache-go/pkg/jsonenc"
)

// SiteCache pairs one site's Active and History.
type SiteCache struct {
	site    site.Site
	active  *active.Active
	history *history.History
	events  eventlog.Sink
	logger  *slog.Logger
}

// NewSite constructs a SiteCache from an already-built Active/History
// pair (the caller is responsible for wiring the shared model lookup,
// interval codec and local path templates). A nil events sink is
// replaced with eventlog.Null.
func NewSite(s site.Site, a *active.Active, h *history.History, events eventlog.Sink, logger *slog.Logger) *SiteCache {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = eventlog.Null
	}
	return &SiteCache{site: s, active: a, history: h, events: events, logger: logger}
}

// Init restores Active from whichever snapshot is newer.
func (sc *SiteCache) Init(ctx context.Context, driver storage.Driver) error {
	return sc.active.LoadBackup(ctx, driver)
}

// Add decodes data as JSON, folds it into Active, and -- if a Slot
// rotated out -- enqueues it into History.
func (sc *SiteCache) Add(objkey string, data []byte) error {
	var params any
	if err := jsonenc.Unmarshal(data, &params); err != nil {
		sc.events.Add(sc.site.Name, eventlog.ErrorOther, len(data), 1)
		return err
	}
	closed, err := sc.active.Add(objkey, params)
	sc.history.Enqueue(closed)

	errCode := eventlog.ErrorNone
	if err != nil {
		errCode = eventlog.ErrorOther
	}
	sc.events.Add(sc.site.Name, errCode, len(data), 1)
	return err
}

// Get builds the slotkey -> objkey -> values document: History first,
// then Active, so a live Active entry overrides any coincident
// History entry for the same slot/object.
func (sc *SiteCache) Get(objkeys []string) map[string]map[string]any {
	out := make(map[string]map[string]any)
	set := func(slotKey, objkey string, values map[string]any) {
		row, ok := out[slotKey]
		if !ok {
			row = make(map[string]any)
			out[slotKey] = row
		}
		row[objkey] = values
	}

	sc.history.Get(objkeys, set)
	sc.active.Get(objkeys, set)
	sc.events.Get(sc.site.Name, eventlog.ErrorNone, len(out), len(objkeys))
	return out
}

// Flush rotates (optionally forced), enqueues the closed Slot if any,
// stores History, and snapshots Active (optionally forced). Storage
// and snapshot errors are logged, not propagated, per spec.md §4.5.
func (sc *SiteCache) Flush(ctx context.Context, driver storage.Driver, forceRotate, forceBackup bool) {
	closed := sc.active.Rotate(forceRotate)
	sc.history.Enqueue(closed)

	if err := sc.history.Store(ctx, driver); err != nil {
		sc.logger.Error("sitecache: history store failed", "site", sc.site.Name, "error", err)
		sc.events.Store(sc.site.Name, eventlog.ErrorStorage, 0, "history")
	} else {
		sc.events.Store(sc.site.Name, eventlog.ErrorNone, 0, "history")
	}
	if err := sc.active.DumpBackup(ctx, driver, forceBackup); err != nil {
		sc.logger.Error("sitecache: active snapshot failed", "site", sc.site.Name, "error", err)
		sc.events.CacheBackup(sc.site.Name, eventlog.ErrorStorage, 0, true)
	} else {
		sc.events.CacheBackup(sc.site.Name, eventlog.ErrorNone, 0, false)
	}
}
