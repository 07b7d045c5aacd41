package sequence

import (
	"math"
	"math/rand/v2"
)

// lstm is a single-layer LSTM with a dense output head, sized for one
// multi-asset feature vector per time step. Weights are stored
// row-major; the four gates are stacked in i, f, g, o order.
//
// gonum provides the surrounding statistics but no automatic
// differentiation, so backpropagation through time is written out
// explicitly here.
type lstm struct {
	inSize  int
	hidden  int
	outSize int

	wx []float64 // 4H x In
	wh []float64 // 4H x H
	b  []float64 // 4H
	wy []float64 // Out x H
	by []float64 // Out
}

// lstmCache holds per-timestep activations for backpropagation.
type lstmCache struct {
	inputs  [][]float64
	gates   [][]float64 // 4H per step, post-activation
	cells   [][]float64
	hiddens [][]float64
	tanhC   [][]float64
	pred    []float64
}

// lstmGrads mirrors the weight layout.
type lstmGrads struct {
	wx, wh, b, wy, by []float64
}

func newLSTM(inSize, hidden, outSize int, rng *rand.Rand) *lstm {
	n := &lstm{
		inSize:  inSize,
		hidden:  hidden,
		outSize: outSize,
		wx:      make([]float64, 4*hidden*inSize),
		wh:      make([]float64, 4*hidden*hidden),
		b:       make([]float64, 4*hidden),
		wy:      make([]float64, outSize*hidden),
		by:      make([]float64, outSize),
	}

	// Xavier-style uniform initialization.
	initUniform(n.wx, math.Sqrt(6.0/float64(inSize+hidden)), rng)
	initUniform(n.wh, math.Sqrt(6.0/float64(hidden+hidden)), rng)
	initUniform(n.wy, math.Sqrt(6.0/float64(hidden+outSize)), rng)

	// Positive forget-gate bias keeps early gradients flowing.
	for j := n.hidden; j < 2*n.hidden; j++ {
		n.b[j] = 1
	}
	return n
}

func initUniform(w []float64, bound float64, rng *rand.Rand) {
	for i := range w {
		w[i] = (2*rng.Float64() - 1) * bound
	}
}

func (n *lstm) newGrads() *lstmGrads {
	return &lstmGrads{
		wx: make([]float64, len(n.wx)),
		wh: make([]float64, len(n.wh)),
		b:  make([]float64, len(n.b)),
		wy: make([]float64, len(n.wy)),
		by: make([]float64, len(n.by)),
	}
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// forward runs the sequence and returns the dense-head prediction with
// the cache needed for backward.
func (n *lstm) forward(seq [][]float64) (*lstmCache, []float64) {
	H := n.hidden
	steps := len(seq)
	cache := &lstmCache{
		inputs:  seq,
		gates:   make([][]float64, steps),
		cells:   make([][]float64, steps),
		hiddens: make([][]float64, steps),
		tanhC:   make([][]float64, steps),
	}

	hPrev := make([]float64, H)
	cPrev := make([]float64, H)

	for t, x := range seq {
		z := make([]float64, 4*H)
		copy(z, n.b)
		for r := 0; r < 4*H; r++ {
			rowX := r * n.inSize
			s := z[r]
			for j, xv := range x {
				s += n.wx[rowX+j] * xv
			}
			rowH := r * H
			for j := 0; j < H; j++ {
				s += n.wh[rowH+j] * hPrev[j]
			}
			z[r] = s
		}

		gates := make([]float64, 4*H)
		cell := make([]float64, H)
		hidden := make([]float64, H)
		tc := make([]float64, H)
		for j := 0; j < H; j++ {
			ig := sigmoid(z[j])
			fg := sigmoid(z[H+j])
			gg := math.Tanh(z[2*H+j])
			og := sigmoid(z[3*H+j])
			gates[j], gates[H+j], gates[2*H+j], gates[3*H+j] = ig, fg, gg, og

			cell[j] = fg*cPrev[j] + ig*gg
			tc[j] = math.Tanh(cell[j])
			hidden[j] = og * tc[j]
		}

		cache.gates[t] = gates
		cache.cells[t] = cell
		cache.hiddens[t] = hidden
		cache.tanhC[t] = tc
		hPrev, cPrev = hidden, cell
	}

	pred := make([]float64, n.outSize)
	copy(pred, n.by)
	for r := 0; r < n.outSize; r++ {
		row := r * H
		s := pred[r]
		for j := 0; j < H; j++ {
			s += n.wy[row+j] * hPrev[j]
		}
		pred[r] = s
	}
	cache.pred = pred
	return cache, pred
}

// backward accumulates gradients of the mean-squared error against the
// target into grads, backpropagating through every timestep.
func (n *lstm) backward(cache *lstmCache, target []float64, grads *lstmGrads) float64 {
	H := n.hidden
	steps := len(cache.inputs)
	hLast := cache.hiddens[steps-1]

	loss := 0.0
	dy := make([]float64, n.outSize)
	for r := 0; r < n.outSize; r++ {
		diff := cache.pred[r] - target[r]
		loss += diff * diff
		dy[r] = 2 * diff / float64(n.outSize)
	}
	loss /= float64(n.outSize)

	dh := make([]float64, H)
	for r := 0; r < n.outSize; r++ {
		row := r * H
		grads.by[r] += dy[r]
		for j := 0; j < H; j++ {
			grads.wy[row+j] += dy[r] * hLast[j]
			dh[j] += n.wy[row+j] * dy[r]
		}
	}

	dc := make([]float64, H)
	for t := steps - 1; t >= 0; t-- {
		gates := cache.gates[t]
		tc := cache.tanhC[t]

		var cPrev []float64
		if t > 0 {
			cPrev = cache.cells[t-1]
		} else {
			cPrev = make([]float64, H)
		}
		var hPrev []float64
		if t > 0 {
			hPrev = cache.hiddens[t-1]
		} else {
			hPrev = make([]float64, H)
		}

		dz := make([]float64, 4*H)
		for j := 0; j < H; j++ {
			ig, fg, gg, og := gates[j], gates[H+j], gates[2*H+j], gates[3*H+j]

			do := dh[j] * tc[j]
			dct := dc[j] + dh[j]*og*(1-tc[j]*tc[j])

			di := dct * gg
			df := dct * cPrev[j]
			dg := dct * ig

			dz[j] = di * ig * (1 - ig)
			dz[H+j] = df * fg * (1 - fg)
			dz[2*H+j] = dg * (1 - gg*gg)
			dz[3*H+j] = do * og * (1 - og)

			dc[j] = dct * fg
		}

		x := cache.inputs[t]
		dhNext := make([]float64, H)
		for r := 0; r < 4*H; r++ {
			grads.b[r] += dz[r]
			rowX := r * n.inSize
			for j, xv := range x {
				grads.wx[rowX+j] += dz[r] * xv
			}
			rowH := r * H
			for j := 0; j < H; j++ {
				grads.wh[rowH+j] += dz[r] * hPrev[j]
				dhNext[j] += n.wh[rowH+j] * dz[r]
			}
		}
		dh = dhNext
	}

	return loss
}

// adam is the Adam optimizer state over the network's weight groups.
type adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	t     int
	m     *lstmGrads
	v     *lstmGrads
}

func newAdam(n *lstm, lr float64) *adam {
	return &adam{
		lr:    lr,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
		m:     n.newGrads(),
		v:     n.newGrads(),
	}
}

// step applies one Adam update from accumulated gradients scaled by
// 1/batchSize.
func (a *adam) step(n *lstm, grads *lstmGrads, batchSize int) {
	a.t++
	scale := 1.0 / float64(batchSize)
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))

	update := func(w, g, m, v []float64) {
		for i := range w {
			gi := g[i] * scale
			m[i] = a.beta1*m[i] + (1-a.beta1)*gi
			v[i] = a.beta2*v[i] + (1-a.beta2)*gi*gi
			w[i] -= a.lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + a.eps)
		}
	}
	update(n.wx, grads.wx, a.m.wx, a.v.wx)
	update(n.wh, grads.wh, a.m.wh, a.v.wh)
	update(n.b, grads.b, a.m.b, a.v.b)
	update(n.wy, grads.wy, a.m.wy, a.v.wy)
	update(n.by, grads.by, a.m.by, a.v.by)
}

func (g *lstmGrads) zero() {
	for _, s := range [][]float64{g.wx, g.wh, g.b, g.wy, g.by} {
		for i := range s {
			s[i] = 0
		}
	}
}
