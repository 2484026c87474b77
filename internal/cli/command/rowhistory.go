package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/slotcache-go/internal/progress"
	"github.com/yndnr/slotcache-go/internal/storage"
	"github.com/yndnr/slotcache-go/pkg/jsonenc"
)

// rowRecord is the newline-delimited JSON wire format export-history
// writes and restore-history reads back: one line per object, its
// slotkey -> column-values map.
type rowRecord struct {
	Objkey string                    `json:"objkey"`
	Slots  map[string]map[string]any `json:"slots"`
}

// ExportHistoryCommand streams every stored object's row, one JSON
// document per line, for offline backup or inspection.
func ExportHistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "export-history",
		Usage: "stream every stored object's row history as JSON lines",
		Action: func(c *cli.Context) error {
			ac := getAppContext(c)
			w := bufio.NewWriter(os.Stdout)
			defer w.Flush()
			return ac.driver.IterateRows(context.Background(), func(row storage.Row) error {
				return writeRowLine(w, row)
			})
		},
	}
}

// ExportObjectHistoryCommand writes a single object's row as one JSON
// document.
func ExportObjectHistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "export-object-history",
		Usage: "write one object's row history as JSON",
		Flags: []cli.Flag{objkeyFlag()},
		Action: func(c *cli.Context) error {
			ac := getAppContext(c)
			objkey := c.String("objkey")
			row, found, err := findRow(ac, objkey)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no stored row for object %q", objkey)
			}
			return writeRowLine(os.Stdout, row)
		},
	}
}

// PrintObjectHistoryCommand prints one object's row in a
// human-readable form, slot keys sorted descending and value keys
// sorted ascending within each slot.
func PrintObjectHistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "print-object-history",
		Usage: "print one object's row history for a person to read",
		Flags: []cli.Flag{objkeyFlag()},
		Action: func(c *cli.Context) error {
			ac := getAppContext(c)
			objkey := c.String("objkey")
			row, found, err := findRow(ac, objkey)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no stored row for object %q", objkey)
			}

			fmt.Println(row.Objkey)
			slotkeys := make([]string, 0, len(row.Slots))
			for k := range row.Slots {
				slotkeys = append(slotkeys, k)
			}
			sort.Sort(sort.Reverse(sort.StringSlice(slotkeys)))
			for _, slotkey := range slotkeys {
				fmt.Printf("  %s:\n", slotkey)
				values := row.Slots[slotkey]
				valkeys := make([]string, 0, len(values))
				for k := range values {
					valkeys = append(valkeys, k)
				}
				sort.Strings(valkeys)
				for _, k := range valkeys {
					fmt.Printf("    %s = %v\n", k, values[k])
				}
			}
			return nil
		},
	}
}

// RestoreHistoryCommand reads a file of rowRecord JSON lines (the
// format export-history produces) and replays each object's columns
// back into storage via storage.Driver.Insert -- idempotent per the
// driver contract, so replaying an already-stored row is harmless.
func RestoreHistoryCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore-history",
		Usage:     "replay a row-history FILE of JSON lines back into storage",
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
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer f.Close()

			ctx := context.Background()
			counter := progress.NewCounter(-1, 100, "restoring ")

			scanner := bufio.NewScanner(f)
			scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
			for scanner.Scan() {
				line := scanner.Bytes()
				if len(line) == 0 {
					continue
				}
				var rec rowRecord
				if err := jsonenc.Unmarshal(line, &rec); err != nil {
					return fmt.Errorf("decode row: %w", err)
				}
				for slotkey, values := range rec.Slots {
					if err := ac.driver.Insert(ctx, rec.Objkey, slotkey, values); err != nil {
						return fmt.Errorf("restore %s/%s: %w", rec.Objkey, slotkey, err)
					}
				}
				counter.Increment(1)
			}
			counter.Finish()
			return scanner.Err()
		},
	}
}

func objkeyFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "objkey",
		Usage:    "object key to look up",
		Required: true,
	}
}

func findRow(ac *appContext, objkey string) (storage.Row, bool, error) {
	var found storage.Row
	var ok bool
	err := ac.driver.IterateRows(context.Background(), func(row storage.Row) error {
		if row.Objkey == objkey {
			found = row
			ok = true
		}
		return nil
	})
	return found, ok, err
}

func writeRowLine(w io.Writer, row storage.Row) error {
	rec := rowRecord{Objkey: row.Objkey, Slots: row.Slots}
	blob, err := jsonenc.Marshal(rec)
	if err != nil {
		return err
	}
	blob = append(blob, '\n')
	_, err = w.Write(blob)
	return err
}
