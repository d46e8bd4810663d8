package gnn

import (
	"fmt"
	"math"
)

// -------- ATTENTION VARIANTS -------- //
// Two learned-weighting alternatives to the fixed aggregation of GraphConv.
// Both score node pairs with scaled dot-product attention and mask the score
// matrix to the graph neighborhood (plus self) before the row softmax, so a
// node can only attend to nodes it is actually connected to.

const maskValue = -1e9 // drives masked scores to ~0 after softmax

// applyNeighborMask scales kept scores and masks node pairs without an edge.
// Self-scores are always kept: attention needs at least one valid entry per
// row, and the self-loop mirrors the A+I convention of the normalized
// adjacency.
func applyNeighborMask(scores, adj *Matrix, scale float64) {
	n := scores.rows
	for i := 0; i < n; i++ {
		rowOffset := i * n
		for j := 0; j < n; j++ {
			if adj.data[rowOffset+j] == 0 && i != j {
				scores.data[rowOffset+j] = maskValue
			} else {
				scores.data[rowOffset+j] *= scale
			}
		}
	}
}

// softmaxBackwardRows turns dRaw (gradient w.r.t. the softmax output) into
// the gradient w.r.t. the pre-softmax scores, in place:
// dS_ij = S_ij * (dRaw_ij - dot(S_i, dRaw_i)) * scale.
// Masked entries have S ~ 0, so their gradient vanishes without re-masking.
func softmaxBackwardRows(s, dRaw *Matrix, scale float64) {
	n := s.rows
	for r := 0; r < n; r++ {
		start := r * n
		end := start + n

		dot := 0.0
		for k := start; k < end; k++ {
			dot += s.data[k] * dRaw.data[k]
		}
		for k := start; k < end; k++ {
			dRaw.data[k] = s.data[k] * (dRaw.data[k] - dot) * scale
		}
	}
}

// AttentionConv projects node features once (P = X·W) and re-weights each
// neighborhood by the softmax of scaled dot-product scores P·P^T:
// H = softmax(mask(P·P^T / sqrt(d))) · P. One head, shared projection for
// queries, keys and values.
type AttentionConv struct {
	Weights *Matrix
	Bias    *Matrix

	dW *Matrix
	dB *Matrix

	// Forward cache
	x *Matrix
	p *Matrix
	s *Matrix
}

func NewAttentionConv(inputDim, outputDim int, opts ...ConvOption) *AttentionConv {
	var cfg convConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	layer := &AttentionConv{
		Weights: NewMatrix(inputDim, outputDim),
		dW:      NewMatrix(inputDim, outputDim),
	}
	layer.Weights.Randomize()
	if !cfg.noBias {
		layer.Bias = NewMatrix(1, outputDim)
		layer.dB = NewMatrix(1, outputDim)
	}
	return layer
}

func (l *AttentionConv) Forward(adj, X *Matrix) (*Matrix, error) {
	if err := checkForwardShapes(adj, X, l.Weights); err != nil {
		return nil, fmt.Errorf("AttentionConv.Forward: %w", err)
	}

	n := X.rows
	scale := 1.0 / math.Sqrt(float64(l.Weights.cols))

	l.x = X
	l.p = NewMatrix(n, l.Weights.cols)
	MatMul(X.dense, l.Weights.dense, l.p)

	l.s = NewMatrix(n, n)
	MatMul(l.p.dense, l.p.dense.T(), l.s)
	applyNeighborMask(l.s, adj, scale)
	SoftmaxRow(l.s)

	h := NewMatrix(n, l.Weights.cols)
	MatMul(l.s.dense, l.p.dense, h)
	if l.Bias != nil {
		h.AddVector(l.Bias)
	}
	return h, nil
}

func (l *AttentionConv) Backward(adj, dH *Matrix) (*Matrix, error) {
	if l.s == nil {
		return nil, fmt.Errorf("AttentionConv.Backward before Forward: %w", ErrDegenerateInput)
	}
	n := l.s.rows
	if dH.rows != n || dH.cols != l.Weights.cols {
		return nil, fmt.Errorf("AttentionConv.Backward: dH %dx%d vs %dx%d: %w",
			dH.rows, dH.cols, n, l.Weights.cols, ErrShapeMismatch)
	}
	scale := 1.0 / math.Sqrt(float64(l.Weights.cols))

	// Value path: dP = S^T · dH
	dP := NewMatrix(n, l.Weights.cols)
	MatMul(l.s.dense.T(), dH.dense, dP)

	// Score path: dRaw = dH · P^T, then softmax derivative
	dRaw := NewMatrix(n, n)
	MatMul(dH.dense, l.p.dense.T(), dRaw)
	softmaxBackwardRows(l.s, dRaw, scale)

	// Raw scores were P·P^T, so P receives gradient from both sides:
	// dP += dRaw·P + dRaw^T·P
	tmp := NewMatrix(n, l.Weights.cols)
	MatMul(dRaw.dense, l.p.dense, tmp)
	dP.Add(tmp)
	MatMul(dRaw.dense.T(), l.p.dense, tmp)
	dP.Add(tmp)

	// dW = X^T · dP
	MatMul(l.x.dense.T(), dP.dense, l.dW)

	if l.Bias != nil {
		l.dB.Reset()
		for r := 0; r < dH.rows; r++ {
			rowOffset := r * dH.cols
			for c := 0; c < dH.cols; c++ {
				l.dB.data[c] += dH.data[rowOffset+c]
			}
		}
	}

	dX := NewMatrix(n, l.Weights.rows)
	MatMul(dP.dense, l.Weights.dense.T(), dX)
	return dX, nil
}

func (l *AttentionConv) Params() []*Param {
	params := []*Param{{Name: "attn.W", W: l.Weights, Grad: l.dW}}
	if l.Bias != nil {
		params = append(params, &Param{Name: "attn.b", W: l.Bias, Grad: l.dB})
	}
	return params
}

// TransformerConv is the transformer-style convolution: separate learned
// projections for queries, keys and values, neighborhood-masked scaled
// dot-product attention, and an output projection:
// H = (softmax(mask(Q·K^T / sqrt(d))) · V) · W_O.
type TransformerConv struct {
	WQ, WK, WV *Matrix // input_dim x output_dim
	WO         *Matrix // output_dim x output_dim
	Bias       *Matrix

	dWQ, dWK, dWV *Matrix
	dWO           *Matrix
	dB            *Matrix

	// Forward cache
	x       *Matrix
	q, k, v *Matrix
	s       *Matrix
	attnOut *Matrix
}

func NewTransformerConv(inputDim, outputDim int, opts ...ConvOption) *TransformerConv {
	var cfg convConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	layer := &TransformerConv{
		WQ:  NewMatrix(inputDim, outputDim),
		WK:  NewMatrix(inputDim, outputDim),
		WV:  NewMatrix(inputDim, outputDim),
		WO:  NewMatrix(outputDim, outputDim),
		dWQ: NewMatrix(inputDim, outputDim),
		dWK: NewMatrix(inputDim, outputDim),
		dWV: NewMatrix(inputDim, outputDim),
		dWO: NewMatrix(outputDim, outputDim),
	}
	layer.WQ.Randomize()
	layer.WK.Randomize()
	layer.WV.Randomize()
	layer.WO.Randomize()
	if !cfg.noBias {
		layer.Bias = NewMatrix(1, outputDim)
		layer.dB = NewMatrix(1, outputDim)
	}
	return layer
}

func (l *TransformerConv) Forward(adj, X *Matrix) (*Matrix, error) {
	if err := checkForwardShapes(adj, X, l.WQ); err != nil {
		return nil, fmt.Errorf("TransformerConv.Forward: %w", err)
	}

	n := X.rows
	d := l.WQ.cols
	scale := 1.0 / math.Sqrt(float64(d))

	l.x = X
	l.q = NewMatrix(n, d)
	l.k = NewMatrix(n, d)
	l.v = NewMatrix(n, d)
	MatMul(X.dense, l.WQ.dense, l.q)
	MatMul(X.dense, l.WK.dense, l.k)
	MatMul(X.dense, l.WV.dense, l.v)

	l.s = NewMatrix(n, n)
	MatMul(l.q.dense, l.k.dense.T(), l.s)
	applyNeighborMask(l.s, adj, scale)
	SoftmaxRow(l.s)

	l.attnOut = NewMatrix(n, d)
	MatMul(l.s.dense, l.v.dense, l.attnOut)

	h := NewMatrix(n, d)
	MatMul(l.attnOut.dense, l.WO.dense, h)
	if l.Bias != nil {
		h.AddVector(l.Bias)
	}
	return h, nil
}

func (l *TransformerConv) Backward(adj, dH *Matrix) (*Matrix, error) {
	if l.s == nil {
		return nil, fmt.Errorf("TransformerConv.Backward before Forward: %w", ErrDegenerateInput)
	}
	n := l.s.rows
	d := l.WQ.cols
	if dH.rows != n || dH.cols != d {
		return nil, fmt.Errorf("TransformerConv.Backward: dH %dx%d vs %dx%d: %w",
			dH.rows, dH.cols, n, d, ErrShapeMismatch)
	}
	scale := 1.0 / math.Sqrt(float64(d))

	// Output projection
	MatMul(l.attnOut.dense.T(), dH.dense, l.dWO)
	dAttnOut := NewMatrix(n, d)
	MatMul(dH.dense, l.WO.dense.T(), dAttnOut)

	if l.Bias != nil {
		l.dB.Reset()
		for r := 0; r < dH.rows; r++ {
			rowOffset := r * dH.cols
			for c := 0; c < dH.cols; c++ {
				l.dB.data[c] += dH.data[rowOffset+c]
			}
		}
	}

	// Value path: dV = S^T · dAttnOut
	dV := NewMatrix(n, d)
	MatMul(l.s.dense.T(), dAttnOut.dense, dV)

	// Score path: dRaw = dAttnOut · V^T, then softmax derivative
	dRaw := NewMatrix(n, n)
	MatMul(dAttnOut.dense, l.v.dense.T(), dRaw)
	softmaxBackwardRows(l.s, dRaw, scale)

	// dQ = dRaw · K, dK = dRaw^T · Q
	dQ := NewMatrix(n, d)
	dK := NewMatrix(n, d)
	MatMul(dRaw.dense, l.k.dense, dQ)
	MatMul(dRaw.dense.T(), l.q.dense, dK)

	// Projection weight gradients
	MatMul(l.x.dense.T(), dQ.dense, l.dWQ)
	MatMul(l.x.dense.T(), dK.dense, l.dWK)
	MatMul(l.x.dense.T(), dV.dense, l.dWV)

	// dX = dQ·WQ^T + dK·WK^T + dV·WV^T
	dX := NewMatrix(n, l.WQ.rows)
	tmp := NewMatrix(n, l.WQ.rows)
	MatMul(dQ.dense, l.WQ.dense.T(), dX)
	MatMul(dK.dense, l.WK.dense.T(), tmp)
	dX.Add(tmp)
	MatMul(dV.dense, l.WV.dense.T(), tmp)
	dX.Add(tmp)

	return dX, nil
}

func (l *TransformerConv) Params() []*Param {
	params := []*Param{
		{Name: "tconv.WQ", W: l.WQ, Grad: l.dWQ},
		{Name: "tconv.WK", W: l.WK, Grad: l.dWK},
		{Name: "tconv.WV", W: l.WV, Grad: l.dWV},
		{Name: "tconv.WO", W: l.WO, Grad: l.dWO},
	}
	if l.Bias != nil {
		params = append(params, &Param{Name: "tconv.b", W: l.Bias, Grad: l.dB})
	}
	return params
}
