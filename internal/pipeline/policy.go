package pipeline

import "math"

// StopReason tells why training ended.
type StopReason string

const (
	StopNone          StopReason = ""
	StopEarlyStopping StopReason = "early_stopping"
	StopMaxEpochs     StopReason = "max_epochs"
	StopCancelled     StopReason = "cancelled"
)

// EarlyStopping is the model-selection and termination state of the epoch
// loop. An epoch improves when its character error rate is strictly below
// the best so far.
type EarlyStopping struct {
	Patience  int // epochs without improvement before stopping
	MaxEpochs int // 0 = unbounded

	Epoch int
	Best  float64
	Stall int
}

// NewEarlyStopping returns a policy with no epochs observed.
func NewEarlyStopping(patience, maxEpochs int) *EarlyStopping {
	return &EarlyStopping{Patience: patience, MaxEpochs: maxEpochs, Best: math.Inf(1)}
}

// Observe records an epoch's character error rate. It reports whether the
// epoch improved on the best rate and why training should stop, if at all.
func (p *EarlyStopping) Observe(charErrorRate float64) (improved bool, stop StopReason) {
	p.Epoch++
	if charErrorRate < p.Best {
		p.Best = charErrorRate
		p.Stall = 0
		improved = true
	} else {
		p.Stall++
	}
	switch {
	case p.Stall >= p.Patience:
		stop = StopEarlyStopping
	case p.MaxEpochs > 0 && p.Epoch >= p.MaxEpochs:
		stop = StopMaxEpochs
	}
	return improved, stop
}
