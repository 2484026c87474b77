// Package site holds the per-site configuration the rest of the
// engine consults for wall-clock offsetting, grounded on
// impress/site.py's Site.
package site

import "time"

// Site names one configured site and its wall-clock offset.
type Site struct {
	Name   string
	Offset time.Duration
}

// New constructs a Site.
func New(name string, offset time.Duration) Site {
	return Site{Name: name, Offset: offset}
}

// CurrentTime returns the site-local wall-clock time (impress/site.py's
// current_datetime: the real wall clock plus the site's configured
// offset).
func (s Site) CurrentTime(now func() time.Time) time.Time {
	if now == nil {
		now = time.Now
	}
	return now().Add(s.Offset)
}

func (s Site) String() string { return s.Name }
