// Package progress implements opt-in textual progress reporting for
// long-running CLI operations (export/restore over many slots or
// objects), gated by a --progress flag so the accumulator stays quiet
// by default.
package progress

import (
	"fmt"
	"io"
	"strconv"
	"sync"
)

var (
	mu      sync.Mutex
	enabled bool
	out     io.Writer
)

// Enable turns on progress reporting. Call once at startup, typically
// from a --progress CLI flag.
func Enable() {
	mu.Lock()
	defer mu.Unlock()
	enabled = true
}

// Enabled reports whether progress reporting is on and has somewhere
// to write.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled && out != nil
}

// SetOutput sets the destination progress lines are written to. With
// no output set, Enable has no visible effect.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

func write(data string, done bool) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled || out == nil {
		return
	}
	fmt.Fprint(out, "\r", data)
	if done {
		fmt.Fprint(out, "\n")
	}
}

// Done writes a final progress line terminated with a newline.
func Done(data string) {
	write(data, true)
}

// Counter tracks progress against an optional total, writing an
// updated line every interval increments.
type Counter struct {
	mu       sync.Mutex
	count    int
	total    int // negative means unknown
	interval int
	prefix   string
}

// NewCounter creates a Counter. A negative total means the total is
// unknown ahead of time; interval <= 0 is treated as 1.
func NewCounter(total, interval int, prefix string) *Counter {
	if interval <= 0 {
		interval = 1
	}
	return &Counter{total: total, interval: interval, prefix: prefix}
}

// String renders the counter's current line.
func (c *Counter) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.format()
}

func (c *Counter) format() string {
	if c.total < 0 {
		return fmt.Sprintf("%s%d ", c.prefix, c.count)
	}
	width := len(strconv.Itoa(c.total))
	return fmt.Sprintf("%s%*d / %d ", c.prefix, width, c.count, c.total)
}

// Increment advances the counter by n (n <= 0 treated as 1) and
// writes an updated line whenever it crosses an interval boundary.
func (c *Counter) Increment(n int) {
	if n <= 0 {
		n = 1
	}
	c.mu.Lock()
	c.count += n
	line := c.format()
	shouldWrite := (c.count % c.interval) < n
	c.mu.Unlock()
	if shouldWrite {
		write(line, false)
	}
}

// Poke writes the current line unconditionally, useful before a long
// gap between increments.
func (c *Counter) Poke() {
	write(c.String(), false)
}

// Finish writes a final line terminated with a newline.
func (c *Counter) Finish() {
	Done(c.String())
}
