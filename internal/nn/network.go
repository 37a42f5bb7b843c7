package nn

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Network is the CNN + bidirectional LSTM + CTC recognizer. It is not safe
// for concurrent use.
type Network struct {
	arch    Architecture
	classes int

	blocks []*cnnBlock
	rnn    *biLSTM
	proj   *Param // 2*hidden x classes
	opt    *Adam

	// forward caches for backpropagation
	seq      Sequence
	cnnShape [4]int
}

// NewNetwork builds a network emitting numChars character classes plus the
// CTC blank, which takes the last class index.
func NewNetwork(arch Architecture, numChars int) (*Network, error) {
	if err := arch.Validate(); err != nil {
		return nil, err
	}
	if numChars <= 0 {
		return nil, fmt.Errorf("%w: need at least one character class", ErrShapeMismatch)
	}
	seed := arch.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // weight init only

	n := &Network{arch: arch, classes: numChars + 1, opt: NewAdam(arch.LearningRate)}
	inC := 1
	for i, k := range arch.Kernels {
		name := fmt.Sprintf("cnn/%d", i)
		n.blocks = append(n.blocks, &cnnBlock{
			conv: newConv2D(name, k, inC, arch.Features[i], i > 0, rng),
			bn:   newBatchNorm(name+"/bn", arch.Features[i]),
			pool: &maxPool{pw: arch.Pools[i].W, ph: arch.Pools[i].H},
		})
		inC = arch.Features[i]
	}
	n.rnn = newBiLSTM(inC, arch.Hidden, arch.Layers, rng)
	n.proj = newParam("proj/kernel", 2*arch.Hidden, n.classes)
	n.proj.initTruncatedNormal(rng, 0.1)

	slog.Debug("Network built",
		"stages", len(arch.Kernels), "hidden", arch.Hidden, "layers", arch.Layers,
		"classes", n.classes, "params", n.ParamCount())
	return n, nil
}

// Architecture returns the layer configuration.
func (n *Network) Architecture() Architecture { return n.arch }

// Classes returns the number of output classes including the blank.
func (n *Network) Classes() int { return n.classes }

// Blank returns the CTC blank class index.
func (n *Network) Blank() int { return n.classes - 1 }

// Steps returns the number of optimizer updates applied so far.
func (n *Network) Steps() int { return n.opt.Steps() }

// Params returns all trainable parameters in a stable order.
func (n *Network) Params() []*Param {
	var ps []*Param
	for _, b := range n.blocks {
		ps = append(ps, b.params()...)
	}
	ps = append(ps, n.rnn.params()...)
	return append(ps, n.proj)
}

// ParamCount returns the number of trainable scalars.
func (n *Network) ParamCount() int {
	total := 0
	for _, p := range n.Params() {
		total += len(p.Value)
	}
	return total
}

func (n *Network) checkInput(in *Tensor) error {
	if in == nil || in.N <= 0 || in.W <= 0 {
		return fmt.Errorf("%w: empty input", ErrShapeMismatch)
	}
	if in.C != 1 || in.H != n.arch.Height || len(in.Data) != in.N*in.W*in.H {
		return fmt.Errorf("%w: input %s, want height %d and one channel", ErrShapeMismatch, in, n.arch.Height)
	}
	if n.arch.TimeSteps(in.W) < 1 {
		return fmt.Errorf("%w: width %d is below the downsample factor %d", ErrShapeMismatch, in.W, n.arch.Downsample())
	}
	return nil
}

func (n *Network) forward(in *Tensor, training bool) Logits {
	t := in
	for _, b := range n.blocks {
		t = b.forward(t, training)
	}
	// t is N x T x 1 x F: one feature vector per batch element and time step.
	steps, feat := t.W, t.C
	xs := make(Sequence, steps)
	for s := range steps {
		x := make([]float64, in.N*feat)
		for r := range in.N {
			off := t.Index(r, s, 0, 0)
			copy(x[r*feat:(r+1)*feat], t.Data[off:off+feat])
		}
		xs[s] = x
	}

	seq := n.rnn.forward(xs, in.N, training)
	if training {
		n.seq = seq
		n.cnnShape = [4]int{t.N, t.W, t.H, t.C}
	}

	logits := Logits{N: in.N, T: steps, K: n.classes, Data: make([]float64, in.N*steps*n.classes)}
	proj := n.proj.Matrix()
	width := 2 * n.arch.Hidden
	for s, h := range seq {
		var out mat.Dense
		out.Mul(mat.NewDense(in.N, width, h), proj)
		for r := range in.N {
			copy(logits.Step(r, s), out.RawRowView(r))
		}
	}
	return logits
}

func (n *Network) backward(dLogits Logits) {
	width := 2 * n.arch.Hidden
	proj := n.proj.Matrix()
	dSeq := make(Sequence, len(n.seq))
	for s, h := range n.seq {
		d := mat.NewDense(dLogits.N, n.classes, nil)
		for r := range dLogits.N {
			d.SetRow(r, dLogits.Step(r, s))
		}
		var dP mat.Dense
		dP.Mul(mat.NewDense(dLogits.N, width, h).T(), d)
		floats.Add(n.proj.Grad, dP.RawMatrix().Data)

		var dh mat.Dense
		dh.Mul(d, proj.T())
		dSeq[s] = dh.RawMatrix().Data
	}

	dxs := n.rnn.backward(dSeq)
	sh := n.cnnShape
	dt := NewTensor(sh[0], sh[1], sh[2], sh[3])
	for s, dx := range dxs {
		for r := range sh[0] {
			off := dt.Index(r, s, 0, 0)
			copy(dt.Data[off:off+sh[3]], dx[r*sh[3]:(r+1)*sh[3]])
		}
	}
	for i := len(n.blocks) - 1; i >= 0; i-- {
		dt = n.blocks[i].backward(dt)
	}
	n.seq = nil
}

// lossAndGrad runs a training-mode forward and backward pass, leaving the
// gradients of the mean batch loss in the parameters.
func (n *Network) lossAndGrad(in *Tensor, labels [][]int) (float64, error) {
	if err := n.checkInput(in); err != nil {
		return 0, err
	}
	if len(labels) != in.N {
		return 0, fmt.Errorf("%w: %d labels for batch of %d", ErrShapeMismatch, len(labels), in.N)
	}
	for _, p := range n.Params() {
		p.ZeroGrad()
	}

	logits := n.forward(in, true)
	dLogits := Logits{N: logits.N, T: logits.T, K: logits.K, Data: make([]float64, len(logits.Data))}
	scale := 1 / float64(in.N)
	var total float64
	for i, label := range labels {
		loss, grad, err := CTC(logits.Sample(i), logits.T, logits.K, label, n.Blank(), true)
		if err != nil {
			n.seq = nil
			return 0, fmt.Errorf("batch element %d: %w", i, err)
		}
		total += loss
		floats.AddScaled(dLogits.Sample(i), scale, grad)
	}
	n.backward(dLogits)
	return total * scale, nil
}

// TrainStep performs one optimizer update on a batch and returns the mean
// CTC loss before the update. Labels hold class indices below Blank().
func (n *Network) TrainStep(in *Tensor, labels [][]int) (float64, error) {
	loss, err := n.lossAndGrad(in, labels)
	if err != nil {
		return 0, err
	}
	n.opt.Step(n.Params())
	return loss, nil
}

// Infer returns the logits for a batch using the moving batch statistics.
func (n *Network) Infer(in *Tensor) (Logits, error) {
	if err := n.checkInput(in); err != nil {
		return Logits{}, err
	}
	return n.forward(in, false), nil
}

// Loss returns the per-element CTC loss of labels under previously computed
// logits.
func (n *Network) Loss(logits Logits, labels [][]int) ([]float64, error) {
	if len(labels) != logits.N {
		return nil, fmt.Errorf("%w: %d labels for batch of %d", ErrShapeMismatch, len(labels), logits.N)
	}
	if logits.K != n.classes {
		return nil, fmt.Errorf("%w: logits have %d classes, network %d", ErrShapeMismatch, logits.K, n.classes)
	}
	out := make([]float64, len(labels))
	for i, label := range labels {
		loss, _, err := CTC(logits.Sample(i), logits.T, logits.K, label, n.Blank(), false)
		if err != nil {
			return nil, fmt.Errorf("batch element %d: %w", i, err)
		}
		out[i] = loss
	}
	return out, nil
}
