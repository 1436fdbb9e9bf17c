// Package ui renders terminal feedback for the command line tools.
package ui

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
)

// ProgressBar shows byte progress with percentage and throughput.
// Add is safe for concurrent use.
type ProgressBar struct {
	bar       *progressbar.ProgressBar
	total     int64
	current   atomic.Int64
	startTime time.Time
}

// NewProgressBar creates a byte progress bar writing to w
// Updates every 500ms to provide timely feedback to users
func NewProgressBar(total int64, description string, w io.Writer) *ProgressBar {
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(500*time.Millisecond),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionEnableColorCodes(false),
	)

	return &ProgressBar{
		bar:       bar,
		total:     total,
		startTime: time.Now(),
	}
}

// Add advances the bar by n bytes
func (p *ProgressBar) Add(n int64) {
	p.current.Add(n)
	_ = p.bar.Add64(n)
}

// Finish completes the bar
func (p *ProgressBar) Finish() error {
	return p.bar.Finish()
}

// Current returns the bytes counted so far
func (p *ProgressBar) Current() int64 {
	return p.current.Load()
}

// GetPercentage returns current completion percentage (0-100)
func (p *ProgressBar) GetPercentage() float64 {
	if p.total == 0 {
		return 0
	}
	return (float64(p.current.Load()) / float64(p.total)) * 100
}

// GetElapsedTime returns time elapsed since progress bar was created
func (p *ProgressBar) GetElapsedTime() time.Duration {
	return time.Since(p.startTime)
}

// Spinner reports the start and end of an operation of unknown duration
type Spinner struct {
	description string
	out         io.Writer
	startTime   time.Time
}

// NewSpinner creates a spinner writing to out
func NewSpinner(description string, out io.Writer) *Spinner {
	return &Spinner{description: description, out: out, startTime: time.Now()}
}

// Start announces the operation
func (s *Spinner) Start() {
	s.startTime = time.Now()
	fmt.Fprintf(s.out, "%s...\n", s.description)
}

// Stop reports the result and elapsed time
func (s *Spinner) Stop(success bool) {
	elapsed := time.Since(s.startTime)
	if success {
		fmt.Fprintf(s.out, "✓ %s (completed in %v)\n", s.description, elapsed.Round(time.Millisecond))
	} else {
		fmt.Fprintf(s.out, "✗ %s (failed after %v)\n", s.description, elapsed.Round(time.Millisecond))
	}
}
