package pipeline

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker reports per-phase progress to a writer, typically
// os.Stderr. Reports are rate-limited to every reportInterval items.
type ProgressTracker struct {
	writer         io.Writer
	phase          string
	total          int
	current        int
	reportInterval int
	lastReported   int
	startTime      time.Time
	mu             sync.Mutex
}

// NewProgressTracker creates a tracker for one phase of one batch.
func NewProgressTracker(writer io.Writer, phase string, total, reportInterval int) *ProgressTracker {
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		phase:          phase,
		total:          total,
		reportInterval: reportInterval,
		startTime:      time.Now(),
	}
}

// Increment advances progress by delta, reporting when an interval boundary
// is crossed.
func (p *ProgressTracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current += delta
	if p.current > p.total {
		p.current = p.total
	}
	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
}

// Finish prints the final progress line and a trailing newline.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = p.total
	p.report()
	fmt.Fprintln(p.writer)
}

// report prints the current progress. Must be called with the lock held.
func (p *ProgressTracker) report() {
	elapsed := time.Since(p.startTime)
	rate := float64(p.current) / elapsed.Seconds()

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\r  %s: %d/%d (%.1f%%) - %.1f items/s",
		p.phase, p.current, p.total, percentage, rate)
}
