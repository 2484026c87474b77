// Package daymonth implements the reference TimelinePattern that
// merges day slots into month slots once a month has fully elapsed.
// Grounded on impress/patterns/days_months.py.
package daymonth

import (
	"time"

	"github.com/yndnr/slotcache-go/internal/core/interval"
	"github.com/yndnr/slotcache-go/internal/core/timeline"
)

// ID is the identifier this plugin registers under in the `[type]`
// configuration section.
const ID = "daymonth"

// Pattern merges complete months of daily slots, skipping the most
// recently ended month because it "may only just have ended"
// (impress/patterns/days_months.py's comment, preserved verbatim in
// spirit).
type Pattern struct{}

var _ timeline.Pattern = Pattern{}

// Merge walks backward from two months before today's month to the
// month containing the timeline's earliest slot, merging one calendar
// month at a time.
func (Pattern) Merge(t *timeline.Timeline, today time.Time) {
	if t.Len() == 0 {
		return
	}

	month := previousMonth(monthStart(today))
	begin := previousMonth(month) // skip last month: it might have just ended

	earliestMonth := monthStart(t.Start().Start)

	for date := begin; !date.Before(earliestMonth); date = previousMonth(date) {
		delta := monthLength(date)
		t.Merge(interval.Day{}.WithDelta(date, delta))
	}
}

func monthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

func nextMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, t.Location())
}

func previousMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m-1, 1, 0, 0, 0, 0, t.Location())
}

func monthLength(t time.Time) time.Duration {
	return nextMonth(t).Sub(monthStart(t))
}
