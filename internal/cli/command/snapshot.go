package command

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/slotcache-go/internal/core/slot"
	"github.com/yndnr/slotcache-go/pkg/jsonenc"
)

// ExportCommand dumps a site's raw cache backup blob to stdout,
// exactly as stored -- the blob is not decoded or re-encoded, so a
// re-imported export is byte-for-byte what storage held.
func ExportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write a site's raw cache backup blob to stdout",
		Action: func(c *cli.Context) error {
			ac := getAppContext(c)
			blob, _, err := ac.driver.GetCacheBackup(context.Background(), ac.site.Name)
			if err != nil {
				return fmt.Errorf("fetch cache backup: %w", err)
			}
			if blob == nil {
				return fmt.Errorf("no cache backup for site %q", ac.site.Name)
			}
			_, err = os.Stdout.Write(blob)
			return err
		},
	}
}

// ExportJSONCommand writes a site's cache backup as human-readable
// JSON: the interval key mapped to its objkey -> values document.
func ExportJSONCommand() *cli.Command {
	return &cli.Command{
		Name:  "export-json",
		Usage: "write a site's cache backup as JSON",
		Action: func(c *cli.Context) error {
			ac := getAppContext(c)
			blob, _, err := ac.driver.GetCacheBackup(context.Background(), ac.site.Name)
			if err != nil {
				return fmt.Errorf("fetch cache backup: %w", err)
			}
			if blob == nil {
				return fmt.Errorf("no cache backup for site %q", ac.site.Name)
			}
			return decodeAndPrintRecord(ac, blob)
		},
	}
}

// ConvertToJSONCommand is ExportJSONCommand's offline twin: it reads
// an already-exported backup FILE instead of querying storage, for
// inspecting a file handed over outside of the running deployment.
func ConvertToJSONCommand() *cli.Command {
	return &cli.Command{
		Name:      "convert-to-json",
		Usage:     "convert an exported cache backup FILE to JSON",
		ArgsUsage: "FILE",
		Action: func(c *cli.Context) error {
			ac := getAppContext(c)
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("FILE argument required")
			}
			blob, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			return decodeAndPrintRecord(ac, blob)
		},
	}
}

func decodeAndPrintRecord(ac *appContext, blob []byte) error {
	var rec slot.Record
	if err := ac.snapCodec.Decode(ac.site.Name, blob, &rec); err != nil {
		return fmt.Errorf("decode cache backup: %w", err)
	}
	key := rec.IntervalKey
	if key == "" {
		key = rec.Date
	}
	doc := map[string]map[string]any{key: rec.Cachedata}
	out, err := jsonenc.Marshal(doc)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// RestoreCommand loads a previously exported backup FILE and restores
// it: if the interval it covers is still the live one, the cache
// backup record is simply re-inserted; otherwise its rows are stored
// the same way a normal rotation would have stored them.
func RestoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "restore a site from an exported cache backup FILE",
		ArgsUsage: "FILE",
		Flags:     []cli.Flag{forceFlag()},
		Action: func(c *cli.Context) error {
			if err := checkForce(c); err != nil {
				return err
			}
			ac := getAppContext(c)
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("FILE argument required")
			}
			blob, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			var rec slot.Record
			if err := ac.snapCodec.Decode(ac.site.Name, blob, &rec); err != nil {
				return fmt.Errorf("decode cache backup: %w", err)
			}
			s, err := slot.LoadBackup(rec, ac.intervalCodec, ac.lookup, ac.site.Offset)
			if err != nil {
				return fmt.Errorf("rebuild slot: %w", err)
			}

			ctx := context.Background()
			now := ac.site.CurrentTime(nil)
			if s.IsActive(now) {
				if err := ac.driver.InsertCacheBackup(ctx, ac.site.Name, blob); err != nil {
					return fmt.Errorf("reinsert cache backup: %w", err)
				}
				return nil
			}
			if !s.Store(ctx, ac.driverFor()) {
				return fmt.Errorf("store restored slot: availability marker write failed")
			}
			return nil
		},
	}
}

// ResetCommand overwrites a site's cache backup with an empty slot,
// discarding whatever state it currently holds.
func ResetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "overwrite a site's cache backup with an empty slot",
		Flags: []cli.Flag{forceFlag()},
		Action: func(c *cli.Context) error {
			if err := checkForce(c); err != nil {
				return err
			}
			ac := getAppContext(c)
			now := ac.site.CurrentTime(nil)
			empty := slot.New(ac.intervalCodec.New(now))
			rec := empty.MakeBackup(now)
			blob, err := ac.snapCodec.Encode(ac.site.Name, rec)
			if err != nil {
				return fmt.Errorf("encode empty backup: %w", err)
			}
			return ac.driver.InsertCacheBackup(context.Background(), ac.site.Name, blob)
		},
	}
}

func forceFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "force",
		Usage: "required to actually perform this destructive operation",
	}
}
