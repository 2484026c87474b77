package interval

import (
	"fmt"
	"strconv"
	"time"
)

// HourBasicDelta is the default width of an hour interval.
const HourBasicDelta = time.Hour

// Hour is the hour-granularity Codec. Keys look like "2024011509", or
// "2024011509_6" when Delta spans more than one basic unit.
type Hour struct{}

var _ Codec = Hour{}

func (Hour) Name() string { return "hour" }

func (Hour) BasicDelta() time.Duration { return HourBasicDelta }

func (h Hour) New(t time.Time) Interval {
	start := truncateToHour(t)
	return h.WithDelta(start, HourBasicDelta)
}

func (h Hour) WithDelta(start time.Time, delta time.Duration) Interval {
	start = truncateToHour(start)
	return Interval{Start: start, Delta: delta, Key: h.MakeKey(start, delta)}
}

func (Hour) MakeKey(start time.Time, delta time.Duration) string {
	key := start.Format("2006010215")
	if delta != HourBasicDelta {
		hours := int64(delta / time.Hour)
		key += "_" + strconv.FormatInt(hours, 10)
	}
	return key
}

func (h Hour) Parse(key string) (Interval, error) {
	startStr, delta, err := splitKey(key, HourBasicDelta, func(n int64) time.Duration {
		return time.Duration(n) * time.Hour
	})
	if err != nil {
		return Interval{}, err
	}
	if len(startStr) != 10 {
		return Interval{}, fmt.Errorf("interval: bad hour key %q", key)
	}
	year, month, day, err := parseYMD(startStr)
	if err != nil {
		return Interval{}, fmt.Errorf("interval: bad hour key %q: %w", key, err)
	}
	hour, err := strconv.Atoi(startStr[8:10])
	if err != nil {
		return Interval{}, fmt.Errorf("interval: bad hour key %q: %w", key, err)
	}
	start := time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC)
	return Interval{Start: start, Delta: delta, Key: h.MakeKey(start, delta)}, nil
}

func truncateToHour(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location())
}
