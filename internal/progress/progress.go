// Package progress provides a per-host progress display for fan-out runs.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const barWidth = 40

// Tracker counts completed hosts and redraws a single-line progress bar.
// Update is safe to call from every worker goroutine.
type Tracker struct {
	total     int
	completed int
	failed    int
	startTime time.Time
	mu        sync.Mutex
	writer    io.Writer
	enabled   bool
	lastDraw  time.Time
}

// NewTracker creates a tracker for total hosts. When enabled is false every
// call is a no-op, so callers never need to branch.
func NewTracker(total int, writer io.Writer, enabled bool) *Tracker {
	return &Tracker{
		total:     total,
		startTime: time.Now(),
		writer:    writer,
		enabled:   enabled,
	}
}

// Update records one finished host and redraws the bar.
func (t *Tracker) Update(failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if failed {
		t.failed++
	} else {
		t.completed++
	}

	if t.enabled {
		t.draw()
	}
}

// Finish clears the bar and prints the run summary.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.enabled {
		return
	}

	elapsed := time.Since(t.startTime).Round(time.Second)
	fmt.Fprintf(t.writer, "\r%s\r", strings.Repeat(" ", barWidth+40))

	done := t.completed + t.failed
	if t.failed == 0 {
		fmt.Fprintf(t.writer, "finished %d/%d hosts in %v\n", t.completed, t.total, elapsed)
	} else {
		fmt.Fprintf(t.writer, "finished %d/%d hosts (%d failed) in %v\n", done, t.total, t.failed, elapsed)
	}
}

// draw renders the bar, throttled so rapid completions do not spam the
// terminal.
func (t *Tracker) draw() {
	now := time.Now()
	if now.Sub(t.lastDraw) < 100*time.Millisecond {
		return
	}
	t.lastDraw = now

	if t.total == 0 {
		return
	}

	done := t.completed + t.failed
	filled := barWidth * done / t.total
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)

	fmt.Fprintf(t.writer, "\r[%s] %d/%d", bar, done, t.total)
	if t.failed > 0 {
		fmt.Fprintf(t.writer, " (%d failed)", t.failed)
	}
}

// Stats returns the current counters.
func (t *Tracker) Stats() (completed, failed, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed, t.failed, t.total
}
