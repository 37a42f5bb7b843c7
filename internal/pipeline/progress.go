package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Phase names the loop a progress event belongs to.
type Phase string

const (
	PhaseTrain    Phase = "train"
	PhaseValidate Phase = "validate"
)

// ProgressCallback receives batch-level progress of training and validation passes.
type ProgressCallback interface {
	// OnStart is called when a pass begins with its epoch and batch count.
	OnStart(phase Phase, epoch, total int)

	// OnBatch is called after every batch; loss is zero during validation.
	OnBatch(phase Phase, current, total int, loss float64)

	// OnComplete is called when the pass is finished.
	OnComplete(phase Phase)

	// OnError is called when a batch fails.
	OnError(phase Phase, current int, err error)
}

// NoOpProgressCallback implements ProgressCallback but does nothing.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(Phase, int, int)          {}
func (NoOpProgressCallback) OnBatch(Phase, int, int, float64) {}
func (NoOpProgressCallback) OnComplete(Phase)                 {}
func (NoOpProgressCallback) OnError(Phase, int, error)        {}

// ConsoleProgressCallback draws a per-pass progress bar with the running loss.
type ConsoleProgressCallback struct {
	writer         io.Writer
	width          int
	lastUpdate     time.Time
	updateInterval time.Duration
	mutex          sync.Mutex
	startTime      time.Time
	epoch          int
}

// NewConsoleProgressCallback creates a console progress reporter.
func NewConsoleProgressCallback(writer io.Writer) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{
		writer:         writer,
		width:          40,
		updateInterval: 100 * time.Millisecond,
	}
}

// WithWidth sets the progress bar width.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	c.width = width
	return c
}

// WithUpdateInterval sets how frequently the progress bar updates.
func (c *ConsoleProgressCallback) WithUpdateInterval(interval time.Duration) *ConsoleProgressCallback {
	c.updateInterval = interval
	return c
}

func (c *ConsoleProgressCallback) OnStart(phase Phase, epoch, total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	c.epoch = epoch

	_, _ = fmt.Fprintf(c.writer, "Epoch %d %s: 0/%d batches\n", epoch, phase, total)
}

func (c *ConsoleProgressCallback) OnBatch(phase Phase, current, total int, loss float64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	if now.Sub(c.lastUpdate) < c.updateInterval && current < total {
		return
	}
	c.lastUpdate = now

	if total <= 0 {
		return
	}
	filled := min(c.width, c.width*current/total)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	status := fmt.Sprintf("\rEpoch %d %s [%s] %d/%d", c.epoch, phase, bar, current, total)
	if phase == PhaseTrain {
		status += fmt.Sprintf(" loss %.4f", loss)
	}
	if elapsed := now.Sub(c.startTime); elapsed > 0 && current > 0 && current < total {
		eta := time.Duration(elapsed.Seconds() * float64(total-current) / float64(current) * float64(time.Second))
		status += fmt.Sprintf(" ETA: %v", eta.Round(time.Second))
	}
	_, _ = fmt.Fprint(c.writer, status)
}

func (c *ConsoleProgressCallback) OnComplete(phase Phase) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	elapsed := time.Since(c.startTime)
	_, _ = fmt.Fprintf(c.writer, "\nEpoch %d %s completed in %v\n", c.epoch, phase, elapsed.Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) OnError(phase Phase, current int, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\nEpoch %d %s: error at batch %d: %v\n", c.epoch, phase, current, err)
}

// LogProgressCallback logs every batch through slog, matching the
// "Epoch: e Batch: i/n Loss: l" training log.
type LogProgressCallback struct {
	logger    *slog.Logger
	level     slog.Level
	epoch     int
	startTime time.Time
}

// NewLogProgressCallback creates a log-based progress reporter.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level}
}

func (l *LogProgressCallback) OnStart(phase Phase, epoch, total int) {
	l.startTime = time.Now()
	l.epoch = epoch
	l.logger.Log(nil, l.level, "Pass started", "phase", phase, "epoch", epoch, "batches", total)
}

func (l *LogProgressCallback) OnBatch(phase Phase, current, total int, loss float64) {
	if phase == PhaseTrain {
		l.logger.Log(nil, l.level, "Batch trained", "epoch", l.epoch, "batch", current, "total", total, "loss", loss)
		return
	}
	l.logger.Log(nil, l.level, "Batch validated", "epoch", l.epoch, "batch", current, "total", total)
}

func (l *LogProgressCallback) OnComplete(phase Phase) {
	l.logger.Log(nil, l.level, "Pass completed", "phase", phase, "epoch", l.epoch,
		"elapsed", time.Since(l.startTime).Round(time.Millisecond))
}

func (l *LogProgressCallback) OnError(phase Phase, current int, err error) {
	l.logger.Log(nil, slog.LevelError, "Batch failed", "phase", phase, "epoch", l.epoch, "batch", current, "error", err)
}

// MultiProgressCallback combines multiple progress callbacks.
type MultiProgressCallback struct {
	callbacks []ProgressCallback
}

// NewMultiProgressCallback creates a progress callback that reports to multiple callbacks.
func NewMultiProgressCallback(callbacks ...ProgressCallback) *MultiProgressCallback {
	return &MultiProgressCallback{callbacks: callbacks}
}

// Add adds another progress callback.
func (m *MultiProgressCallback) Add(callback ProgressCallback) {
	m.callbacks = append(m.callbacks, callback)
}

func (m *MultiProgressCallback) OnStart(phase Phase, epoch, total int) {
	for _, cb := range m.callbacks {
		cb.OnStart(phase, epoch, total)
	}
}

func (m *MultiProgressCallback) OnBatch(phase Phase, current, total int, loss float64) {
	for _, cb := range m.callbacks {
		cb.OnBatch(phase, current, total, loss)
	}
}

func (m *MultiProgressCallback) OnComplete(phase Phase) {
	for _, cb := range m.callbacks {
		cb.OnComplete(phase)
	}
}

func (m *MultiProgressCallback) OnError(phase Phase, current int, err error) {
	for _, cb := range m.callbacks {
		cb.OnError(phase, current, err)
	}
}
