package interval

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayBasicDelta is the default width of a day interval.
const DayBasicDelta = 24 * time.Hour

// Day is the day-granularity Codec. Keys look like "20240115", or
// "20240115_31" when Delta spans more than one basic unit.
type Day struct{}

var _ Codec = Day{}

func (Day) Name() string { return "day" }

func (Day) BasicDelta() time.Duration { return DayBasicDelta }

func (d Day) New(t time.Time) Interval {
	start := truncateToDay(t)
	return d.WithDelta(start, DayBasicDelta)
}

func (d Day) WithDelta(start time.Time, delta time.Duration) Interval {
	start = truncateToDay(start)
	return Interval{Start: start, Delta: delta, Key: d.MakeKey(start, delta)}
}

func (Day) MakeKey(start time.Time, delta time.Duration) string {
	key := start.Format("20060102")
	if delta != DayBasicDelta {
		days := int64(delta / (24 * time.Hour))
		key += "_" + strconv.FormatInt(days, 10)
	}
	return key
}

func (d Day) Parse(key string) (Interval, error) {
	startStr, delta, err := splitKey(key, DayBasicDelta, func(n int64) time.Duration {
		return time.Duration(n) * 24 * time.Hour
	})
	if err != nil {
		return Interval{}, err
	}
	if len(startStr) != 8 {
		return Interval{}, fmt.Errorf("interval: bad day key %q", key)
	}
	year, month, day, err := parseYMD(startStr)
	if err != nil {
		return Interval{}, fmt.Errorf("interval: bad day key %q: %w", key, err)
	}
	start := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return Interval{Start: start, Delta: delta, Key: d.MakeKey(start, delta)}, nil
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func splitKey(key string, basic time.Duration, fromUnits func(int64) time.Duration) (string, time.Duration, error) {
	if i := strings.IndexByte(key, '_'); i >= 0 {
		n, err := strconv.ParseInt(key[i+1:], 10, 64)
		if err != nil {
			return "", 0, fmt.Errorf("interval: bad suffix in key %q: %w", key, err)
		}
		return key[:i], fromUnits(n), nil
	}
	return key, basic, nil
}

func parseYMD(s string) (year, month, day int, err error) {
	year, err = strconv.Atoi(s[0:4])
	if err != nil {
		return
	}
	month, err = strconv.Atoi(s[4:6])
	if err != nil {
		return
	}
	day, err = strconv.Atoi(s[6:8])
	return
}
