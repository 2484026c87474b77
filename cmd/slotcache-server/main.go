// Package main provides the entry point for slotcache-server.
//
// slotcache-server is the accumulator process: it loads its
// configuration, restores every configured site from its last
// snapshot, and then runs the control loop that drives periodic
// flushes and reacts to signals until terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/yndnr/slotcache-go/internal/config"
	"github.com/yndnr/slotcache-go/internal/core/active"
	"github.com/yndnr/slotcache-go/internal/core/cache"
	"github.com/yndnr/slotcache-go/internal/core/history"
	"github.com/yndnr/slotcache-go/internal/core/interval"
	"github.com/yndnr/slotcache-go/internal/core/model"
	"github.com/yndnr/slotcache-go/internal/core/models/counters"
	"github.com/yndnr/slotcache-go/internal/core/patterns/daymonth"
	"github.com/yndnr/slotcache-go/internal/core/registry"
	"github.com/yndnr/slotcache-go/internal/core/site"
	"github.com/yndnr/slotcache-go/internal/core/timeline"
	"github.com/yndnr/slotcache-go/internal/eventlog"
	"github.com/yndnr/slotcache-go/internal/infra/buildinfo"
	"github.com/yndnr/slotcache-go/internal/server/controlloop"
	"github.com/yndnr/slotcache-go/internal/server/httpserver"
	"github.com/yndnr/slotcache-go/internal/storage/badgerstore"
	"github.com/yndnr/slotcache-go/internal/telemetry/logger"
	"github.com/yndnr/slotcache-go/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "path to configuration file")
		dataDir     = flag.String("data-dir", "./data", "badger data directory")
		metricsAddr = flag.String("metrics-addr", "", "address to serve /metrics on (disabled if empty)")
		logLevel    = flag.String("log-level", "info", "minimum log level (debug, info, warn, error)")
		showVersion = flag.Bool("version", false, "show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.String())
		return nil
	}

	loader := config.NewLoader(*configFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.CheckDirnames(); err != nil {
		return fmt.Errorf("check backup directories: %w", err)
	}

	log, slogLogger, err := logger.NewPair(logger.Config{
		Level:  *logLevel,
		Format: "json",
		Output: os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	log.Info("starting slotcache-server", "version", buildinfo.Version, "config", *configFile)

	metrics := metric.Global()

	driver, err := badgerstore.Open(badgerstore.Config{Dir: *dataDir}, slogLogger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	driver.RegisterMetrics(metrics)
	defer driver.Close()

	reg := registry.New(modelFactory, patternFactory)
	if err := reg.Reconfigure(cfg.BuildRegistryLines()); err != nil {
		return fmt.Errorf("configure type registry: %w", err)
	}

	intervalCodec, err := interval.ByName(cfg.Interval.Module)
	if err != nil {
		return fmt.Errorf("configure interval: %w", err)
	}

	snapCodec, err := cfg.Backup.SnapshotCodec()
	if err != nil {
		return fmt.Errorf("configure backup encryption: %w", err)
	}

	events := eventlog.NewLogSink(log)

	sites := make(map[string]*cache.SiteCache, len(cfg.Site))
	for _, sc := range cfg.Site {
		s := site.New(sc.Name, sc.Offset)
		a := active.New(s, intervalCodec, reg.ModelLookup(), cfg.Backup.LocalCachePath(sc.Name), snapCodec, slogLogger)
		h := history.New(s, cfg.Backup.LocalHistoryFormat, slogLogger)
		sites[sc.Name] = cache.NewSite(s, a, h, events, slogLogger)
	}

	c := cache.New(sites, driver, slogLogger)
	metrics.MustRegister(metric.NewCollector("history_queue_length_pull", "Closed slots awaiting a durable store, by site.", c.HistoryQueueLengths))

	ctx := context.Background()
	if err := c.Init(ctx); err != nil {
		log.Error("cache init reported errors, continuing with whatever sites recovered", "error", err)
	}

	var metricsServer *httpserver.Server
	if *metricsAddr != "" {
		mux := newMetricsMux(metrics)
		metricsServer = httpserver.New(*metricsAddr, mux)
		go func() {
			log.Info("metrics server listening", "addr", *metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil {
				log.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	loop := controlloop.New(cfg.Backup.Interval(), slogLogger)
	loop.OnFlush(func() {
		c.Flush(ctx, false, false)
	})
	loop.OnReload(func() error {
		newCfg, err := loader.Load()
		if err != nil {
			return err
		}
		if err := reg.Reconfigure(newCfg.BuildRegistryLines()); err != nil {
			return err
		}
		cfg = newCfg
		log.Info("reloaded configuration")
		return nil
	})
	loop.OnForceRotate(func() {
		if cfg.Debug.ForceCacheRotation {
			c.Flush(ctx, true, true)
		}
	})

	log.Info("server started")
	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("control loop: %w", err)
	}

	log.Info("shutting down, running final flush")
	c.Flush(ctx, false, true)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	log.Info("server stopped gracefully")
	return nil
}

func modelFactory(id string) (model.CacheModel, model.TimelineModel, error) {
	switch id {
	case counters.ID:
		m := counters.New()
		return m, m, nil
	default:
		return nil, nil, fmt.Errorf("unknown model %q", id)
	}
}

func patternFactory(id string) (timeline.Pattern, error) {
	switch id {
	case daymonth.ID:
		return daymonth.Pattern{}, nil
	default:
		return nil, fmt.Errorf("unknown pattern %q", id)
	}
}

func newMetricsMux(registry *metric.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
