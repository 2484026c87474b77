package timeline

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/yndnr/slotcache-go/internal/core/interval"
	"github.com/yndnr/slotcache-go/internal/core/model"
)

// MergeRow runs the full offline merge pass over one stored Row:
// build the Timeline, Prepare, apply pattern.Merge, Update, and -- if
// anything changed -- apply the resulting mutation through apply.
// Mirrors impress/timeline.py's module-level merge().
func MergeRow(row *Row, label string, tm model.TimelineModel, pattern Pattern, codec interval.Codec, today func() interval.Interval, apply func(insert map[string]map[string]any, remove []string) error, logger *slog.Logger) (bool, error) {
	t := New(label, tm, codec, logger)

	for key, items := range row.Slots {
		if err := t.Add(key, cloneItems(items)); err != nil {
			return false, err
		}
	}

	if t.Len() == 0 {
		return false, nil
	}

	t.Prepare()

	if pattern != nil {
		pattern.Merge(t, today().Start)
	}

	t.Update()

	if !t.Modified() {
		return false, nil
	}

	if err := Mutate(row, t, apply); err != nil {
		return false, err
	}
	return true, nil
}

func cloneItems(items map[string]any) map[string]any {
	out := make(map[string]any, len(items))
	for k, v := range items {
		out[k] = v
	}
	return out
}

// DumpMutation writes the impress/timeline.py dump_mutation-style
// before/after report for one row's merge to w.
func DumpMutation(row *Row, t *Timeline, w io.Writer) {
	fmt.Fprintf(w, "Key: %s\n", row.Key)

	changed := make(map[string]bool)

	printGroup := func(title string, keys []string, values map[string]map[string]any, olds map[string]map[string]any) {
		if len(keys) == 0 {
			return
		}
		sort.Strings(keys)
		fmt.Fprintf(w, "%s:\n", title)
		for _, k := range keys {
			fmt.Fprintf(w, "  Slot: %s\n", k)
			if old, ok := olds[k]; ok {
				printValues(w, "Old", old)
			}
			if val, ok := values[k]; ok {
				printValues(w, "New", val)
			}
		}
	}

	updatedNew := make(map[string]map[string]any)
	updatedOld := make(map[string]map[string]any)
	var updatedKeys, insertedKeys []string
	for _, slot := range t.Updated {
		k := slot.Interval.Key
		updatedNew[k] = slot.Data.Get()
		if old, ok := row.Slots[k]; ok {
			updatedOld[k] = old
			updatedKeys = append(updatedKeys, k)
		} else {
			insertedKeys = append(insertedKeys, k)
		}
		changed[k] = true
	}

	removedOld := make(map[string]map[string]any)
	var removedKeys []string
	for _, slot := range t.Removed {
		k := slot.Interval.Key
		removedOld[k] = row.Slots[k]
		removedKeys = append(removedKeys, k)
		changed[k] = true
	}

	var unchangedKeys []string
	unchangedOld := make(map[string]map[string]any)
	for k, v := range row.Slots {
		if !changed[k] {
			unchangedKeys = append(unchangedKeys, k)
			unchangedOld[k] = v
		}
	}

	printGroup("Updated", updatedKeys, updatedNew, updatedOld)
	printGroup("Inserted", insertedKeys, updatedNew, nil)
	printGroup("Removed", removedKeys, nil, removedOld)
	printGroup("Unchanged", unchangedKeys, nil, unchangedOld)

	fmt.Fprintln(w)
}

func printValues(w io.Writer, title string, values map[string]any) {
	if values == nil {
		return
	}
	fmt.Fprintf(w, "    %s:\n", title)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "      %s: %v\n", k, values[k])
	}
}
