package pipeline

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/gohtr/internal/dataset"
	"github.com/MeKo-Tech/gohtr/internal/preprocess"
)

// fakeSource serves fixed batches with the loader's iteration contract.
type fakeSource struct {
	train      []dataset.Batch
	validation []dataset.Batch

	active    []dataset.Batch
	cursor    int
	trainSets int
	validSets int
}

func textBatch(texts ...string) dataset.Batch {
	return dataset.Batch{Images: make([]*image.Gray, len(texts)), Texts: texts, Size: len(texts)}
}

func (s *fakeSource) TrainSet() {
	s.trainSets++
	s.active, s.cursor = s.train, 0
}

func (s *fakeSource) ValidationSet() {
	s.validSets++
	s.active, s.cursor = s.validation, 0
}

func (s *fakeSource) HasNext() bool { return s.cursor < len(s.active) }

func (s *fakeSource) IteratorInfo() (int, int) { return s.cursor + 1, len(s.active) }

func (s *fakeSource) Next() dataset.Batch {
	b := s.active[s.cursor]
	s.cursor++
	return b
}

// fakeModel returns scripted losses and recognitions. recognize receives the
// zero-based number of the InferBatch call.
type fakeModel struct {
	losses    []float64
	trainErr  error
	recognize func(call int, texts []string) []string
	inferErr  error

	trainCalls int
	inferCalls int
	saves      int
	saveErr    error
	widths     []int
}

func (m *fakeModel) TrainBatch(batch preprocess.Batch) (float64, error) {
	m.widths = append(m.widths, batch.Width())
	if m.trainErr != nil {
		return 0, m.trainErr
	}
	loss := 1.0
	if m.trainCalls < len(m.losses) {
		loss = m.losses[m.trainCalls]
	}
	m.trainCalls++
	return loss, nil
}

func (m *fakeModel) InferBatch(batch preprocess.Batch, calcProbability bool) ([]string, []float64, error) {
	if m.inferErr != nil {
		return nil, nil, m.inferErr
	}
	call := m.inferCalls
	m.inferCalls++
	var out []string
	if m.recognize != nil {
		out = m.recognize(call, batch.Texts)
	} else {
		out = append([]string(nil), batch.Texts...)
	}
	var probs []float64
	if calcProbability {
		probs = make([]float64, len(out))
		for i := range probs {
			probs[i] = 0.5
		}
	}
	return out, probs, nil
}

func (m *fakeModel) Save() (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.saves++
	return fmt.Sprintf("snapshot-%d", m.saves), nil
}

var errBoom = errors.New("boom")

// recordingProgress records every callback as a short string.
type recordingProgress struct {
	events []string
}

func (r *recordingProgress) OnStart(phase Phase, epoch, total int) {
	r.events = append(r.events, fmt.Sprintf("start %s %d %d", phase, epoch, total))
}

func (r *recordingProgress) OnBatch(phase Phase, current, total int, _ float64) {
	r.events = append(r.events, fmt.Sprintf("batch %s %d/%d", phase, current, total))
}

func (r *recordingProgress) OnComplete(phase Phase) {
	r.events = append(r.events, fmt.Sprintf("complete %s", phase))
}

func (r *recordingProgress) OnError(phase Phase, current int, _ error) {
	r.events = append(r.events, fmt.Sprintf("error %s %d", phase, current))
}
