package nn

import "math"

const (
	bnMomentum = 0.99
	bnEpsilon  = 1e-3
)

// batchNorm normalizes each channel over all batch and spatial positions.
type batchNorm struct {
	c           int
	gamma, beta *Param
	movingMean  []float64
	movingVar   []float64

	xhat   []float64
	invStd []float64
}

func newBatchNorm(name string, c int) *batchNorm {
	gamma := newParam(name+"/gamma", 1, c)
	gamma.fill(1)
	beta := newParam(name+"/beta", 1, c)
	mv := make([]float64, c)
	for i := range mv {
		mv[i] = 1
	}
	return &batchNorm{c: c, gamma: gamma, beta: beta, movingMean: make([]float64, c), movingVar: mv}
}

// forward normalizes in place. Training mode uses batch statistics and
// updates the moving averages; inference uses the moving averages.
func (l *batchNorm) forward(t *Tensor, training bool) *Tensor {
	rows, c := t.Rows(), l.c
	mean := make([]float64, c)
	variance := make([]float64, c)

	if training {
		for r := range rows {
			row := t.Data[r*c : (r+1)*c]
			for j, v := range row {
				mean[j] += v
			}
		}
		for j := range mean {
			mean[j] /= float64(rows)
		}
		for r := range rows {
			row := t.Data[r*c : (r+1)*c]
			for j, v := range row {
				d := v - mean[j]
				variance[j] += d * d
			}
		}
		for j := range variance {
			variance[j] /= float64(rows)
			unbiased := variance[j]
			if rows > 1 {
				unbiased *= float64(rows) / float64(rows-1)
			}
			l.movingMean[j] = bnMomentum*l.movingMean[j] + (1-bnMomentum)*mean[j]
			l.movingVar[j] = bnMomentum*l.movingVar[j] + (1-bnMomentum)*unbiased
		}
	} else {
		copy(mean, l.movingMean)
		copy(variance, l.movingVar)
	}

	invStd := make([]float64, c)
	for j := range invStd {
		invStd[j] = 1 / math.Sqrt(variance[j]+bnEpsilon)
	}

	var xhat []float64
	if training {
		xhat = make([]float64, len(t.Data))
	}
	g, b := l.gamma.Value, l.beta.Value
	for r := range rows {
		base := r * c
		for j := range c {
			xh := (t.Data[base+j] - mean[j]) * invStd[j]
			if xhat != nil {
				xhat[base+j] = xh
			}
			t.Data[base+j] = g[j]*xh + b[j]
		}
	}
	l.xhat, l.invStd = xhat, invStd
	return t
}

// backward computes the input gradient in place and accumulates gamma/beta.
func (l *batchNorm) backward(d *Tensor) *Tensor {
	rows, c := d.Rows(), l.c
	sumD := make([]float64, c)
	sumDX := make([]float64, c)
	g := l.gamma.Value
	for r := range rows {
		base := r * c
		for j := range c {
			dy := d.Data[base+j]
			l.beta.Grad[j] += dy
			l.gamma.Grad[j] += dy * l.xhat[base+j]
			dxh := dy * g[j]
			sumD[j] += dxh
			sumDX[j] += dxh * l.xhat[base+j]
		}
	}
	m := float64(rows)
	for r := range rows {
		base := r * c
		for j := range c {
			dxh := d.Data[base+j] * g[j]
			d.Data[base+j] = l.invStd[j] / m * (m*dxh - sumD[j] - l.xhat[base+j]*sumDX[j])
		}
	}
	l.xhat = nil
	return d
}
