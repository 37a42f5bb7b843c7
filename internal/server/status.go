package server

import (
	"sync"
	"time"

	"github.com/MeKo-Tech/gohtr/internal/pipeline"
)

// StatusTracker records the latest training progress. It implements
// pipeline.ProgressCallback and is safe for concurrent reads from handlers.
type StatusTracker struct {
	mu        sync.RWMutex
	now       func() time.Time
	started   time.Time
	updated   time.Time
	phase     pipeline.Phase
	epoch     int
	batch     int
	batches   int
	loss      float64
	errors    int
	lastError string
	passes    int
}

var _ pipeline.ProgressCallback = (*StatusTracker)(nil)

// NewStatusTracker creates an idle tracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{now: time.Now, started: time.Now()}
}

func (s *StatusTracker) OnStart(phase pipeline.Phase, epoch, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
	s.epoch = epoch
	s.batch = 0
	s.batches = total
	s.updated = s.now()
}

func (s *StatusTracker) OnBatch(phase pipeline.Phase, current, total int, loss float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
	s.batch = current
	s.batches = total
	if phase == pipeline.PhaseTrain {
		s.loss = loss
	}
	s.updated = s.now()
}

func (s *StatusTracker) OnComplete(pipeline.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passes++
	s.updated = s.now()
}

func (s *StatusTracker) OnError(phase pipeline.Phase, current int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
	s.batch = current
	s.errors++
	if err != nil {
		s.lastError = err.Error()
	}
	s.updated = s.now()
}

// Snapshot returns the current status.
func (s *StatusTracker) Snapshot() StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp := StatusResponse{
		Phase:           string(s.phase),
		Epoch:           s.epoch,
		Batch:           s.batch,
		Batches:         s.batches,
		Loss:            s.loss,
		Errors:          s.errors,
		LastError:       s.lastError,
		StartedAt:       s.started.UTC().Format(time.RFC3339),
		CompletedPasses: s.passes,
		ElapsedSeconds:  s.now().Sub(s.started).Seconds(),
	}
	if !s.updated.IsZero() {
		resp.UpdatedAt = s.updated.UTC().Format(time.RFC3339)
	}
	return resp
}
