// Package model implements a mean-aggregator GraphSAGE network over the
// layered blocks produced by the sampler, together with its loss and
// optimizer. Parameters and gradients live in flat backing slices so that
// data-parallel workers can average gradients with a single collective.
package model

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/distml/distsage/sampler"
)

// Config describes a SAGE network.
type Config struct {
	// InDim is the node feature width.
	InDim int

	// HiddenDim is the width of every hidden layer.
	HiddenDim int

	// NumClasses is the output width.
	NumClasses int

	// NumLayers is the number of SAGE layers, which must match the number
	// of sampling fanouts.
	NumLayers int

	// Dropout is the drop probability applied after each hidden layer
	// during training. Zero disables dropout.
	Dropout float64

	// Seed seeds weight initialization and dropout masks.
	Seed int64
}

// SAGE is a GraphSAGE network with mean neighbor aggregation.
// It is not safe for concurrent use; each worker goroutine owns one.
type SAGE struct {
	layers  []*sageLayer
	dropout float64
	rng     *rand.Rand

	params []float64
	grads  []float64
}

// sageLayer computes z = h_dst*wSelf + mean(h_neigh)*wNeigh + bias.
// The weight and gradient matrices are views into the network's flat
// parameter and gradient slices.
type sageLayer struct {
	in, out int

	wSelf, wNeigh *mat.Dense
	bias          []float64

	gSelf, gNeigh *mat.Dense
	gBias         []float64

	// forward caches consumed by backward
	block  sampler.Block
	h      *mat.Dense
	hNeigh *mat.Dense
	z      *mat.Dense
	mask   []float64
}

// New creates a SAGE network with Glorot-initialized weights.
func New(cfg Config) (*SAGE, error) {
	if cfg.InDim <= 0 || cfg.NumClasses <= 0 {
		return nil, errors.New("input and output dimensions must be positive")
	}
	if cfg.NumLayers <= 0 {
		return nil, errors.New("at least one layer is required")
	}
	if cfg.NumLayers > 1 && cfg.HiddenDim <= 0 {
		return nil, errors.New("hidden dimension must be positive")
	}
	if cfg.Dropout < 0 || cfg.Dropout >= 1 {
		return nil, errors.Errorf("dropout %v outside [0, 1)", cfg.Dropout)
	}

	dims := make([]int, cfg.NumLayers+1)
	dims[0] = cfg.InDim
	for l := 1; l < cfg.NumLayers; l++ {
		dims[l] = cfg.HiddenDim
	}
	dims[cfg.NumLayers] = cfg.NumClasses

	total := 0
	for l := 0; l < cfg.NumLayers; l++ {
		total += 2*dims[l]*dims[l+1] + dims[l+1]
	}

	m := &SAGE{
		dropout: cfg.Dropout,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		params:  make([]float64, total),
		grads:   make([]float64, total),
	}

	off := 0
	carve := func(r, c int) (p, g []float64) {
		p = m.params[off : off+r*c]
		g = m.grads[off : off+r*c]
		off += r * c
		return p, g
	}
	for l := 0; l < cfg.NumLayers; l++ {
		in, out := dims[l], dims[l+1]
		sp, sg := carve(in, out)
		np, ng := carve(in, out)
		bp, bg := carve(1, out)
		layer := &sageLayer{
			in:     in,
			out:    out,
			wSelf:  mat.NewDense(in, out, sp),
			wNeigh: mat.NewDense(in, out, np),
			bias:   bp,
			gSelf:  mat.NewDense(in, out, sg),
			gNeigh: mat.NewDense(in, out, ng),
			gBias:  bg,
		}
		m.glorotInit(layer.wSelf, in, out)
		m.glorotInit(layer.wNeigh, in, out)
		m.layers = append(m.layers, layer)
	}
	return m, nil
}

func (m *SAGE) glorotInit(w *mat.Dense, in, out int) {
	limit := math.Sqrt(6.0 / float64(in+out))
	data := w.RawMatrix().Data
	for i := range data {
		data[i] = (2*m.rng.Float64() - 1) * limit
	}
}

// NumLayers returns the number of SAGE layers.
func (m *SAGE) NumLayers() int { return len(m.layers) }

// Params returns the flat parameter slice. Mutations apply to the network.
func (m *SAGE) Params() []float64 { return m.params }

// Grads returns the flat gradient slice filled by Backward. Mutations
// apply to the network, so it can be averaged in place across workers.
func (m *SAGE) Grads() []float64 { return m.grads }

// Forward runs the network over one batch. features holds one row per node
// of blocks[0].Src. When train is set, hidden activations are dropped out
// and the caches needed by Backward are retained.
func (m *SAGE) Forward(blocks []sampler.Block, features *mat.Dense, train bool) (*mat.Dense, error) {
	if len(blocks) != len(m.layers) {
		return nil, errors.Errorf("got %d blocks for %d layers", len(blocks), len(m.layers))
	}

	h := features
	for l, layer := range m.layers {
		rows, cols := h.Dims()
		if rows != len(blocks[l].Src) {
			return nil, errors.Errorf("layer %d input has %d rows, block has %d sources", l, rows, len(blocks[l].Src))
		}
		if cols != layer.in {
			return nil, errors.Errorf("layer %d input width %d, expected %d", l, cols, layer.in)
		}

		z := layer.forward(blocks[l], h)
		if l == len(m.layers)-1 {
			h = z
			break
		}

		a := mat.DenseCopyOf(z)
		a.Apply(func(_, _ int, v float64) float64 { return math.Max(v, 0) }, a)
		layer.mask = nil
		if train && m.dropout > 0 {
			layer.mask = m.dropoutMask(a)
		}
		h = a
	}
	return h, nil
}

// dropoutMask zeroes entries of a in place with probability m.dropout and
// scales survivors by 1/keep, returning the applied per-entry scale.
func (m *SAGE) dropoutMask(a *mat.Dense) []float64 {
	rows, cols := a.Dims()
	keep := 1 - m.dropout
	mask := make([]float64, rows*cols)
	data := a.RawMatrix().Data
	for i := range data {
		if m.rng.Float64() < keep {
			mask[i] = 1 / keep
		}
		data[i] *= mask[i]
	}
	return mask
}

func (l *sageLayer) forward(block sampler.Block, h *mat.Dense) *mat.Dense {
	n := block.NumDst
	hNeigh := mat.NewDense(n, l.in, nil)
	row := make([]float64, l.in)
	for i := 0; i < n; i++ {
		idxs := block.Neighbors[i]
		if len(idxs) == 0 {
			continue
		}
		for k := range row {
			row[k] = 0
		}
		for _, j := range idxs {
			for k := 0; k < l.in; k++ {
				row[k] += h.At(j, k)
			}
		}
		inv := 1 / float64(len(idxs))
		for k := range row {
			row[k] *= inv
		}
		hNeigh.SetRow(i, row)
	}

	hDst := h.Slice(0, n, 0, l.in)
	z := mat.NewDense(n, l.out, nil)
	z.Mul(hDst, l.wSelf)

	var zn mat.Dense
	zn.Mul(hNeigh, l.wNeigh)
	z.Add(z, &zn)
	for i := 0; i < n; i++ {
		for j := 0; j < l.out; j++ {
			z.Set(i, j, z.At(i, j)+l.bias[j])
		}
	}

	l.block = block
	l.h = h
	l.hNeigh = hNeigh
	l.z = z
	return z
}

// Backward accumulates gradients for the batch last passed to Forward with
// train set. dOut is the gradient of the loss with respect to the output
// logits. Previous gradients are discarded.
func (m *SAGE) Backward(dOut *mat.Dense) error {
	last := len(m.layers) - 1
	if m.layers[last].z == nil {
		return errors.New("backward called before a training forward pass")
	}
	rows, cols := dOut.Dims()
	if zr, zc := m.layers[last].z.Dims(); rows != zr || cols != zc {
		return errors.Errorf("gradient is %dx%d, logits are %dx%d", rows, cols, zr, zc)
	}

	for i := range m.grads {
		m.grads[i] = 0
	}

	grad := dOut
	for l := last; l >= 0; l-- {
		layer := m.layers[l]
		dZ := grad
		if l < last {
			dZ = mat.DenseCopyOf(grad)
			data := dZ.RawMatrix().Data
			zData := layer.z.RawMatrix().Data
			for i := range data {
				if layer.mask != nil {
					data[i] *= layer.mask[i]
				}
				if zData[i] <= 0 {
					data[i] = 0
				}
			}
		}
		grad = layer.backward(dZ)
	}
	return nil
}

// backward fills this layer's gradient views and returns the gradient with
// respect to its input rows.
func (l *sageLayer) backward(dZ *mat.Dense) *mat.Dense {
	n := l.block.NumDst

	hDst := l.h.Slice(0, n, 0, l.in)
	l.gSelf.Mul(hDst.T(), dZ)
	l.gNeigh.Mul(l.hNeigh.T(), dZ)
	for j := 0; j < l.out; j++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += dZ.At(i, j)
		}
		l.gBias[j] = sum
	}

	srcRows, _ := l.h.Dims()
	dH := mat.NewDense(srcRows, l.in, nil)

	var dDst mat.Dense
	dDst.Mul(dZ, l.wSelf.T())
	for i := 0; i < n; i++ {
		for k := 0; k < l.in; k++ {
			dH.Set(i, k, dDst.At(i, k))
		}
	}

	var dNeigh mat.Dense
	dNeigh.Mul(dZ, l.wNeigh.T())
	for i := 0; i < n; i++ {
		idxs := l.block.Neighbors[i]
		if len(idxs) == 0 {
			continue
		}
		inv := 1 / float64(len(idxs))
		for _, j := range idxs {
			for k := 0; k < l.in; k++ {
				dH.Set(j, k, dH.At(j, k)+dNeigh.At(i, k)*inv)
			}
		}
	}
	return dH
}
