package ui

import (
	"fmt"
	"time"
)

// ThroughputCalculator tracks files and bytes processed over time
type ThroughputCalculator struct {
	startTime  time.Time
	totalItems int64
	totalBytes int64
}

// NewThroughputCalculator creates a new throughput calculator
func NewThroughputCalculator() *ThroughputCalculator {
	return &ThroughputCalculator{startTime: time.Now()}
}

// Update records the running totals
func (t *ThroughputCalculator) Update(items int64, bytes int64) {
	t.totalItems = items
	t.totalBytes = bytes
}

// GetAverageBytesPerSecond returns overall average bytes per second
func (t *ThroughputCalculator) GetAverageBytesPerSecond() float64 {
	return t.bytesPerSecond(time.Since(t.startTime))
}

func (t *ThroughputCalculator) bytesPerSecond(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(t.totalBytes) / elapsed.Seconds()
}

// FormatBytesPerSecond formats bytes/sec rate as human-readable string
func FormatBytesPerSecond(bytesPerSec float64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	if bytesPerSec >= GB {
		return fmt.Sprintf("%.2f GB/sec", bytesPerSec/GB)
	} else if bytesPerSec >= MB {
		return fmt.Sprintf("%.2f MB/sec", bytesPerSec/MB)
	} else if bytesPerSec >= KB {
		return fmt.Sprintf("%.2f KB/sec", bytesPerSec/KB)
	}
	return fmt.Sprintf("%.0f B/sec", bytesPerSec)
}

// FormatBytes formats bytes as human-readable size
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	fbytes := float64(bytes)

	if bytes >= TB {
		return fmt.Sprintf("%.2f TB", fbytes/TB)
	} else if bytes >= GB {
		return fmt.Sprintf("%.2f GB", fbytes/GB)
	} else if bytes >= MB {
		return fmt.Sprintf("%.2f MB", fbytes/MB)
	} else if bytes >= KB {
		return fmt.Sprintf("%.2f KB", fbytes/KB)
	}
	return fmt.Sprintf("%d B", bytes)
}

// FormatDuration formats a duration as a human-readable string
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

// Summary returns a formatted summary of throughput metrics
func (t *ThroughputCalculator) Summary() string {
	elapsed := time.Since(t.startTime)
	return t.summary(elapsed)
}

func (t *ThroughputCalculator) summary(elapsed time.Duration) string {
	return fmt.Sprintf(
		"%d files (%s) in %s | Avg: %s",
		t.totalItems,
		FormatBytes(t.totalBytes),
		FormatDuration(elapsed),
		FormatBytesPerSecond(t.bytesPerSecond(elapsed)),
	)
}
