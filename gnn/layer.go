package gnn

import "fmt"

// -------- TYPE DEFINITIONS -------- //

// Aggregation selects how a GraphConv combines neighbor features.
type Aggregation int

const (
	// AggSum is the raw-sum variant: H = (A·X)·W. Each node's new
	// representation is the unweighted sum of its neighbors' feature vectors,
	// linearly projected. Representations in high-degree regions grow
	// unboundedly across layers.
	AggSum Aggregation = iota

	// AggNormalized is the symmetric-normalized variant: H = (Â·X)·W with
	// Â = D^{-1/2}(A+I)D^{-1/2}. Each neighbor's contribution is rescaled by
	// the inverse square root of both endpoints' degrees, which bounds the
	// spectral norm of the aggregation operator.
	AggNormalized
)

// Param pairs a weight matrix with its gradient accumulator so optimizers can
// update any layer without knowing its type.
type Param struct {
	Name string
	W    *Matrix
	Grad *Matrix
}

// Aggregator is one round of "aggregate-and-project": it consumes the node
// feature matrix X plus a dense adjacency (or mask) and produces the next
// representation H. Model wrappers are generic over this capability and never
// need to know which variant they hold.
//
// Forward is a pure function of (adj, X, parameters). Backward consumes
// dLoss/dH, accumulates parameter gradients into Params(), and returns
// dLoss/dX. Parameters are mutated only by the optimizer between passes.
type Aggregator interface {
	Forward(adj, X *Matrix) (*Matrix, error)
	Backward(adj, dH *Matrix) (*Matrix, error)
	Params() []*Param
}

// ConvOption configures layer construction.
type ConvOption func(*convConfig)

type convConfig struct {
	noBias bool
}

// NoBias disables the additive bias row after the linear projection.
func NoBias() ConvOption {
	return func(c *convConfig) {
		c.noBias = true
	}
}

// -------- GRAPH CONVOLUTION LAYER -------- //

// GraphConv is the atomic building block of every GNN variant in scope: one
// step of neighbor aggregation followed by a learned linear projection.
// The adjacency is supplied per Forward call, so one layer instance serves
// both a fixed graph (node classification) and per-batch block-diagonal
// graphs (graph regression).
type GraphConv struct {
	Weights *Matrix // input_dim x output_dim
	Bias    *Matrix // 1 x output_dim, nil when disabled

	dW *Matrix
	dB *Matrix

	// Forward cache for the backward pass
	agg *Matrix // adj·X
}

// NewGraphConv creates a convolution layer projecting inputDim features to
// outputDim. Weights are He-initialized; bias starts at zero.
func NewGraphConv(inputDim, outputDim int, opts ...ConvOption) *GraphConv {
	var cfg convConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	layer := &GraphConv{
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

// checkForwardShapes validates the operands of one aggregation step.
// adj must be square with the same node count as X; X's feature dimension
// must match W's input dimension. Both mismatches are fatal.
func checkForwardShapes(adj, X, W *Matrix) error {
	if adj.rows != adj.cols {
		return fmt.Errorf("adjacency %dx%d not square: %w", adj.rows, adj.cols, ErrShapeMismatch)
	}
	if adj.rows != X.rows {
		return fmt.Errorf("adjacency nodes %d vs feature rows %d: %w", adj.rows, X.rows, ErrShapeMismatch)
	}
	if X.cols != W.rows {
		return fmt.Errorf("feature dim %d vs weight input dim %d: %w", X.cols, W.rows, ErrShapeMismatch)
	}
	return nil
}

// Forward computes H = (adj·X)·W (+ bias). Pass a plain adjacency for the
// raw-sum variant or a normalized one for the Kipf-Welling variant; the layer
// itself is aggregation-agnostic.
func (l *GraphConv) Forward(adj, X *Matrix) (*Matrix, error) {
	if err := checkForwardShapes(adj, X, l.Weights); err != nil {
		return nil, fmt.Errorf("GraphConv.Forward: %w", err)
	}

	l.agg = NewMatrix(adj.rows, X.cols)
	MatMul(adj.dense, X.dense, l.agg)

	h := NewMatrix(X.rows, l.Weights.cols)
	MatMul(l.agg.dense, l.Weights.dense, h)
	if l.Bias != nil {
		h.AddVector(l.Bias)
	}
	return h, nil
}

// Backward consumes dLoss/dH from the layer above, accumulates dW (and dB),
// and returns dLoss/dX. Relies on adj being symmetric, which the adjacency
// builder guarantees for undirected input.
func (l *GraphConv) Backward(adj, dH *Matrix) (*Matrix, error) {
	if l.agg == nil {
		return nil, fmt.Errorf("GraphConv.Backward before Forward: %w", ErrDegenerateInput)
	}
	if dH.rows != l.agg.rows || dH.cols != l.Weights.cols {
		return nil, fmt.Errorf("GraphConv.Backward: dH %dx%d vs %dx%d: %w",
			dH.rows, dH.cols, l.agg.rows, l.Weights.cols, ErrShapeMismatch)
	}

	// dW = (adj·X)^T · dH
	MatMul(l.agg.dense.T(), dH.dense, l.dW)

	// dB = column sums of dH
	if l.Bias != nil {
		l.dB.Reset()
		for r := 0; r < dH.rows; r++ {
			rowOffset := r * dH.cols
			for c := 0; c < dH.cols; c++ {
				l.dB.data[c] += dH.data[rowOffset+c]
			}
		}
	}

	// dX = adj^T · (dH · W^T); adj is symmetric so no explicit transpose
	tmp := NewMatrix(dH.rows, l.Weights.rows)
	MatMul(dH.dense, l.Weights.dense.T(), tmp)
	dX := NewMatrix(adj.rows, l.Weights.rows)
	MatMul(adj.dense, tmp.dense, dX)

	return dX, nil
}

func (l *GraphConv) Params() []*Param {
	params := []*Param{{Name: "conv.W", W: l.Weights, Grad: l.dW}}
	if l.Bias != nil {
		params = append(params, &Param{Name: "conv.b", W: l.Bias, Grad: l.dB})
	}
	return params
}
