package nn

// maxPool takes the maximum over non-overlapping W x H windows (VALID).
type maxPool struct {
	pw, ph int
	argmax []int
	in     *Tensor
}

func (l *maxPool) forward(in *Tensor, keep bool) *Tensor {
	ow, oh := in.W/l.pw, in.H/l.ph
	out := NewTensor(in.N, ow, oh, in.C)
	var argmax []int
	if keep {
		argmax = make([]int, len(out.Data))
	}
	for n := range in.N {
		for x := range ow {
			for y := range oh {
				for c := range in.C {
					best := -1
					for dx := range l.pw {
						for dy := range l.ph {
							idx := in.Index(n, x*l.pw+dx, y*l.ph+dy, c)
							if best < 0 || in.Data[idx] > in.Data[best] {
								best = idx
							}
						}
					}
					o := out.Index(n, x, y, c)
					out.Data[o] = in.Data[best]
					if argmax != nil {
						argmax[o] = best
					}
				}
			}
		}
	}
	l.argmax = argmax
	if keep {
		l.in = in
	}
	return out
}

func (l *maxPool) backward(dOut *Tensor) *Tensor {
	dIn := NewTensor(l.in.N, l.in.W, l.in.H, l.in.C)
	for o, src := range l.argmax {
		dIn.Data[src] += dOut.Data[o]
	}
	l.argmax, l.in = nil, nil
	return dIn
}

// cnnBlock is conv -> batch norm -> ReLU -> max pool.
type cnnBlock struct {
	conv *conv2D
	bn   *batchNorm
	pool *maxPool
	act  *Tensor
}

func (b *cnnBlock) forward(in *Tensor, training bool) *Tensor {
	t := b.conv.forward(in, training)
	t = b.bn.forward(t, training)
	for i, v := range t.Data {
		if v < 0 {
			t.Data[i] = 0
		}
	}
	if training {
		b.act = t
	}
	return b.pool.forward(t, training)
}

func (b *cnnBlock) backward(d *Tensor) *Tensor {
	d = b.pool.backward(d)
	for i, v := range b.act.Data {
		if v <= 0 {
			d.Data[i] = 0
		}
	}
	b.act = nil
	d = b.bn.backward(d)
	return b.conv.backward(d)
}

func (b *cnnBlock) params() []*Param {
	return []*Param{b.conv.weight, b.bn.gamma, b.bn.beta}
}
