// Package common provides shared timing utilities for the training loop.
package common

import (
	"fmt"
	"log/slog"
	"time"
)

// Timer measures a named span such as an epoch or a single batch step.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
	laps     int
}

// NewTimer creates a new unnamed timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// NewNamedTimer creates a new timer with the given name.
func NewNamedTimer(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Lap returns the time since the previous lap (or start) and restarts the clock,
// accumulating the total duration.
func (t *Timer) Lap() time.Duration {
	now := time.Now()
	d := now.Sub(t.start)
	t.start = now
	t.duration += d
	t.laps++
	return d
}

// Duration returns the recorded duration (valid after Stop or Lap).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Average returns the mean lap duration; zero when no lap was taken.
func (t *Timer) Average() time.Duration {
	if t.laps == 0 {
		return 0
	}
	return t.duration / time.Duration(t.laps)
}

// Name returns the timer name (empty string if unnamed).
func (t *Timer) Name() string {
	return t.name
}

// LogValue renders the timer as a slog group.
func (t *Timer) LogValue() slog.Value {
	attrs := []slog.Attr{slog.Duration("elapsed", t.duration)}
	if t.name != "" {
		attrs = append(attrs, slog.String("name", t.name))
	}
	if t.laps > 0 {
		attrs = append(attrs, slog.Int("laps", t.laps), slog.Duration("avg", t.Average()))
	}
	return slog.GroupValue(attrs...)
}

// String returns a formatted string representation of the timer.
func (t *Timer) String() string {
	if t.name != "" {
		return fmt.Sprintf("%s: %v", t.name, t.duration)
	}
	return t.duration.String()
}
