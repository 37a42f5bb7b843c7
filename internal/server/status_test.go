package server

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/gohtr/internal/pipeline"
	"github.com/stretchr/testify/assert"
)

func TestStatusTracker(t *testing.T) {
	tracker := NewStatusTracker()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tracker.started = base
	tracker.now = func() time.Time { return base.Add(90 * time.Second) }

	idle := tracker.Snapshot()
	assert.Empty(t, idle.Phase)
	assert.Empty(t, idle.UpdatedAt)

	tracker.OnStart(pipeline.PhaseTrain, 2, 5)
	tracker.OnBatch(pipeline.PhaseTrain, 1, 5, 3.25)
	tracker.OnComplete(pipeline.PhaseTrain)
	tracker.OnStart(pipeline.PhaseValidate, 2, 1)
	tracker.OnBatch(pipeline.PhaseValidate, 1, 1, 0)
	tracker.OnError(pipeline.PhaseValidate, 1, errors.New("broken image"))

	s := tracker.Snapshot()
	assert.Equal(t, "validate", s.Phase)
	assert.Equal(t, 2, s.Epoch)
	assert.Equal(t, 1, s.Batch)
	assert.Equal(t, 1, s.Batches)
	assert.InDelta(t, 3.25, s.Loss, 1e-12, "validation does not overwrite the training loss")
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, "broken image", s.LastError)
	assert.Equal(t, 1, s.CompletedPasses)
	assert.Equal(t, "2024-01-01T12:00:00Z", s.StartedAt)
	assert.Equal(t, "2024-01-01T12:01:30Z", s.UpdatedAt)
	assert.InDelta(t, 90.0, s.ElapsedSeconds, 1e-9)
}

func TestStatusTracker_ConcurrentReads(t *testing.T) {
	tracker := NewStatusTracker()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 100 {
			tracker.OnBatch(pipeline.PhaseTrain, i, 100, float64(i))
		}
	}()
	go func() {
		defer wg.Done()
		for range 100 {
			_ = tracker.Snapshot()
		}
	}()
	wg.Wait()
	assert.Equal(t, 99, tracker.Snapshot().Batch)
}
