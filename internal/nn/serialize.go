package nn

import (
	"encoding/gob"
	"fmt"
	"io"
)

// state is the gob-encoded form of a network: architecture, parameters,
// moving batch statistics and optimizer slots.
type state struct {
	Arch       Architecture
	Classes    int
	AdamSteps  int
	Params     map[string]paramState
	MovingMean [][]float64
	MovingVar  [][]float64
}

type paramState struct {
	Value, M, V []float64
}

// Save writes the complete network state to w.
func (n *Network) Save(w io.Writer) error {
	st := state{
		Arch:      n.arch,
		Classes:   n.classes,
		AdamSteps: n.opt.step,
		Params:    make(map[string]paramState),
	}
	for _, p := range n.Params() {
		st.Params[p.Name] = paramState{Value: p.Value, M: p.m, V: p.v}
	}
	for _, b := range n.blocks {
		st.MovingMean = append(st.MovingMean, b.bn.movingMean)
		st.MovingVar = append(st.MovingVar, b.bn.movingVar)
	}
	if err := gob.NewEncoder(w).Encode(&st); err != nil {
		return fmt.Errorf("encode network state: %w", err)
	}
	return nil
}

// Load replaces the network state with one previously written by Save. The
// stored architecture and class count must match this network.
func (n *Network) Load(r io.Reader) error {
	var st state
	if err := gob.NewDecoder(r).Decode(&st); err != nil {
		return fmt.Errorf("decode network state: %w", err)
	}
	if st.Classes != n.classes {
		return fmt.Errorf("%w: stored %d, network %d", ErrClassMismatch, st.Classes, n.classes)
	}
	if !st.Arch.sameShape(n.arch) {
		return fmt.Errorf("%w: stored architecture differs", ErrShapeMismatch)
	}
	if len(st.MovingMean) != len(n.blocks) || len(st.MovingVar) != len(n.blocks) {
		return fmt.Errorf("%w: stored %d batch norm layers, network %d", ErrShapeMismatch, len(st.MovingMean), len(n.blocks))
	}

	params := n.Params()
	for _, p := range params {
		ps, ok := st.Params[p.Name]
		if !ok {
			return fmt.Errorf("%w: parameter %s missing", ErrShapeMismatch, p.Name)
		}
		if len(ps.Value) != len(p.Value) || len(ps.M) != len(p.m) || len(ps.V) != len(p.v) {
			return fmt.Errorf("%w: parameter %s has %d values, want %d", ErrShapeMismatch, p.Name, len(ps.Value), len(p.Value))
		}
	}
	for i, b := range n.blocks {
		if len(st.MovingMean[i]) != b.bn.c || len(st.MovingVar[i]) != b.bn.c {
			return fmt.Errorf("%w: batch norm %d statistics", ErrShapeMismatch, i)
		}
	}

	for _, p := range params {
		ps := st.Params[p.Name]
		copy(p.Value, ps.Value)
		copy(p.m, ps.M)
		copy(p.v, ps.V)
	}
	for i, b := range n.blocks {
		copy(b.bn.movingMean, st.MovingMean[i])
		copy(b.bn.movingVar, st.MovingVar[i])
	}
	n.opt.step = st.AdamSteps
	return nil
}
