// Package command provides CLI command definitions for slotcache-cli.
//
// It uses urfave/cli/v2 for command parsing, operating directly
// against a local Badger data directory rather than a remote API --
// this tool is the accumulator's offline admin surface, not a client
// of the running server.
package command

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/slotcache-go/internal/backup"
	"github.com/yndnr/slotcache-go/internal/config"
	"github.com/yndnr/slotcache-go/internal/core/interval"
	"github.com/yndnr/slotcache-go/internal/core/model"
	"github.com/yndnr/slotcache-go/internal/core/models/counters"
	"github.com/yndnr/slotcache-go/internal/core/patterns/daymonth"
	"github.com/yndnr/slotcache-go/internal/core/registry"
	"github.com/yndnr/slotcache-go/internal/core/site"
	"github.com/yndnr/slotcache-go/internal/core/slot"
	"github.com/yndnr/slotcache-go/internal/core/timeline"
	"github.com/yndnr/slotcache-go/internal/progress"
	"github.com/yndnr/slotcache-go/internal/storage"
	"github.com/yndnr/slotcache-go/internal/storage/badgerstore"
)

// Build information, set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// App creates the CLI application.
func App() *cli.App {
	app := &cli.App{
		Name:    "slotcache-cli",
		Usage:   "slotcache admin tool: inspect and repair site backups and history",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			ExportCommand(),
			ExportJSONCommand(),
			ConvertToJSONCommand(),
			RestoreCommand(),
			ResetCommand(),
			ExportHistoryCommand(),
			ExportObjectHistoryCommand(),
			PrintObjectHistoryCommand(),
			RestoreHistoryCommand(),
		},
		Before: func(c *cli.Context) error {
			if c.Bool("progress") {
				progress.SetOutput(os.Stderr)
				progress.Enable()
			}
			ac, err := newAppContext(c)
			if err != nil {
				return err
			}
			c.App.Metadata["appctx"] = ac
			return nil
		},
		After: func(c *cli.Context) error {
			if ac := getAppContext(c); ac != nil && ac.driver != nil {
				return ac.driver.Close()
			}
			return nil
		},
	}
	return app
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to configuration file",
			EnvVars: []string{"SLOTCACHE_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "badger data directory",
			EnvVars: []string{"SLOTCACHE_DATA_DIR"},
			Value:   "./data",
		},
		&cli.StringFlag{
			Name:     "site",
			Aliases:  []string{"s"},
			Usage:    "site name to operate on",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "progress",
			Usage: "report progress on long-running commands",
		},
	}
}

// appContext bundles everything a command needs to touch storage:
// the open driver, the site it was invoked for, and the codecs
// required to make sense of a cache backup blob.
type appContext struct {
	driver        *badgerstore.Store
	intervalCodec interval.Codec
	snapCodec     *backup.Codec
	lookup        slot.ModelLookup
	site          site.Site
	logger        *slog.Logger
}

func newAppContext(c *cli.Context) (*appContext, error) {
	logger := slog.Default()

	cfg, err := config.NewLoader(c.String("config")).Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var sc *config.SiteConfig
	for i := range cfg.Site {
		if cfg.Site[i].Name == c.String("site") {
			sc = &cfg.Site[i]
			break
		}
	}
	if sc == nil {
		return nil, fmt.Errorf("no [site] entry named %q in configuration", c.String("site"))
	}

	reg := registry.New(modelFactory, patternFactory)
	if err := reg.Reconfigure(cfg.BuildRegistryLines()); err != nil {
		return nil, fmt.Errorf("configure type registry: %w", err)
	}

	intervalCodec, err := interval.ByName(cfg.Interval.Module)
	if err != nil {
		return nil, fmt.Errorf("configure interval: %w", err)
	}

	snapCodec, err := cfg.Backup.SnapshotCodec()
	if err != nil {
		return nil, fmt.Errorf("configure backup encryption: %w", err)
	}

	driver, err := badgerstore.Open(badgerstore.Config{Dir: c.String("data-dir")}, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	return &appContext{
		driver:        driver,
		intervalCodec: intervalCodec,
		snapCodec:     snapCodec,
		lookup:        reg.ModelLookup(),
		site:          site.New(sc.Name, sc.Offset),
		logger:        logger,
	}, nil
}

func getAppContext(c *cli.Context) *appContext {
	ac, _ := c.App.Metadata["appctx"].(*appContext)
	return ac
}

// driverFor exposes the storage.Driver interface the engine depends
// on, so command bodies never need to reference badgerstore directly.
func (ac *appContext) driverFor() storage.Driver {
	return ac.driver
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

// checkForce exits the command with an error unless --force was
// passed, mirroring impress/tool.py's ForceMixin.check_force gate on
// destructive operations.
func checkForce(c *cli.Context) error {
	if !c.Bool("force") {
		return fmt.Errorf("refusing to proceed without --force")
	}
	return nil
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
