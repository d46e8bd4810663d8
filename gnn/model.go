package gnn

import (
	"fmt"
	"math"
)

// -------- MODEL WRAPPERS -------- //
// Thin heads over a single Aggregator: log-softmax per node for
// classification, ReLU + sum-pool + linear projection for whole-graph
// regression. Neither wrapper knows which convolution variant it holds.

// NodeClassifier wraps one convolution layer for node classification on a
// fixed graph. The adjacency is derived once at construction and is immutable
// for the lifetime of a training run.
type NodeClassifier struct {
	Conv Aggregator
	Adj  *Matrix

	logProbs *Matrix // cache of the last forward pass
}

// NewNodeClassifier builds a GraphConv-backed classifier for g, projecting
// inputDim features onto numClasses scores per node.
func NewNodeClassifier(g Graph, inputDim, numClasses int, mode Aggregation, opts ...ConvOption) (*NodeClassifier, error) {
	var (
		adj *Matrix
		err error
	)
	switch mode {
	case AggSum:
		adj, err = NewAdjacency(g)
	case AggNormalized:
		adj, err = NewNormalizedAdjacency(g)
	default:
		return nil, fmt.Errorf("NewNodeClassifier: unknown aggregation %d: %w", mode, ErrDegenerateInput)
	}
	if err != nil {
		return nil, fmt.Errorf("NewNodeClassifier: %w", err)
	}

	return &NodeClassifier{
		Conv: NewGraphConv(inputDim, numClasses, opts...),
		Adj:  adj,
	}, nil
}

// NewNodeClassifierFrom wraps an already-built adjacency and convolution
// variant. This is the polymorphism seam: pass an AttentionConv or
// TransformerConv to swap the aggregation without touching the head.
func NewNodeClassifierFrom(adj *Matrix, conv Aggregator) *NodeClassifier {
	return &NodeClassifier{Conv: conv, Adj: adj}
}

// Forward returns per-node log-probabilities: num_nodes x num_classes, each
// row summing to 1 after exponentiation.
func (m *NodeClassifier) Forward(X *Matrix) (*Matrix, error) {
	h, err := m.Conv.Forward(m.Adj, X)
	if err != nil {
		return nil, fmt.Errorf("NodeClassifier.Forward: %w", err)
	}
	LogSoftmaxRow(h)
	m.logProbs = h
	return h, nil
}

// LossAndAccuracy computes the negative log-likelihood and argmax accuracy of
// logProbs over the rows selected by mask.
func LossAndAccuracy(logProbs *Matrix, labels []int, mask []bool) (loss, acc float64, err error) {
	if len(labels) != logProbs.rows || len(mask) != logProbs.rows {
		return 0, 0, fmt.Errorf("LossAndAccuracy: %d labels, %d mask entries for %d rows: %w",
			len(labels), len(mask), logProbs.rows, ErrShapeMismatch)
	}

	count, correct := 0, 0
	for i := 0; i < logProbs.rows; i++ {
		if !mask[i] {
			continue
		}
		if labels[i] < 0 || labels[i] >= logProbs.cols {
			return 0, 0, fmt.Errorf("LossAndAccuracy: label %d at row %d: %w", labels[i], i, ErrIndexOutOfRange)
		}
		count++
		loss -= logProbs.data[i*logProbs.cols+labels[i]]

		best, bestVal := 0, math.Inf(-1)
		for j := 0; j < logProbs.cols; j++ {
			if v := logProbs.data[i*logProbs.cols+j]; v > bestVal {
				bestVal, best = v, j
			}
		}
		if best == labels[i] {
			correct++
		}
	}
	if count == 0 {
		return 0, 0, fmt.Errorf("LossAndAccuracy: empty mask: %w", ErrDegenerateInput)
	}
	return loss / float64(count), float64(correct) / float64(count), nil
}

// Backward seeds the classification gradient from the cached forward pass and
// pushes it through the convolution. For log-softmax + NLL the seed is the
// classic softmax-minus-one-hot, averaged over the masked rows.
func (m *NodeClassifier) Backward(labels []int, mask []bool) error {
	if m.logProbs == nil {
		return fmt.Errorf("NodeClassifier.Backward before Forward: %w", ErrDegenerateInput)
	}
	if len(labels) != m.logProbs.rows || len(mask) != m.logProbs.rows {
		return fmt.Errorf("NodeClassifier.Backward: %d labels, %d mask entries for %d rows: %w",
			len(labels), len(mask), m.logProbs.rows, ErrShapeMismatch)
	}

	count := 0
	for i := range mask {
		if mask[i] {
			count++
		}
	}
	if count == 0 {
		return fmt.Errorf("NodeClassifier.Backward: empty mask: %w", ErrDegenerateInput)
	}
	invCount := 1.0 / float64(count)

	dH := NewMatrix(m.logProbs.rows, m.logProbs.cols)
	for i := 0; i < m.logProbs.rows; i++ {
		if !mask[i] {
			continue
		}
		rowOffset := i * m.logProbs.cols
		for j := 0; j < m.logProbs.cols; j++ {
			dH.data[rowOffset+j] = math.Exp(m.logProbs.data[rowOffset+j]) * invCount
		}
		dH.data[rowOffset+labels[i]] -= invCount
	}

	if _, err := m.Conv.Backward(m.Adj, dH); err != nil {
		return fmt.Errorf("NodeClassifier.Backward: %w", err)
	}
	return nil
}

func (m *NodeClassifier) Params() []*Param {
	return m.Conv.Params()
}

// Batch is a block of graphs packed into one node matrix. Graph k's nodes
// occupy rows [Ptr[k], Ptr[k+1]) of X, and Adj is the block-diagonal
// normalized adjacency of the packed graphs, so one forward pass handles the
// whole batch.
type Batch struct {
	Adj     *Matrix
	X       *Matrix
	Ptr     []int
	Targets []float64
}

// GraphRegressor wraps one convolution layer for whole-graph scalar
// regression: conv -> ReLU -> sum-pool per graph -> linear projection.
// The convolution is the normalized variant, since it has to generalize
// across many graphs of different sizes in a batch.
type GraphRegressor struct {
	Conv     Aggregator
	Head     *Matrix // hidden_dim x 1
	HeadBias *Matrix // 1 x 1

	dHead     *Matrix
	dHeadBias *Matrix

	// Forward cache
	z      *Matrix // conv output, pre-ReLU
	hidden *Matrix // post-ReLU
	pooled *Matrix
}

func NewGraphRegressor(inputDim, hiddenDim int) *GraphRegressor {
	m := &GraphRegressor{
		Conv:      NewGraphConv(inputDim, hiddenDim),
		Head:      NewMatrix(hiddenDim, 1),
		HeadBias:  NewMatrix(1, 1),
		dHead:     NewMatrix(hiddenDim, 1),
		dHeadBias: NewMatrix(1, 1),
	}
	m.Head.RandomizeXavier()
	return m
}

// Forward returns one prediction per graph in the batch (B x 1).
func (m *GraphRegressor) Forward(b Batch) (*Matrix, error) {
	z, err := m.Conv.Forward(b.Adj, b.X)
	if err != nil {
		return nil, fmt.Errorf("GraphRegressor.Forward: %w", err)
	}
	m.z = z

	m.hidden = z.Clone()
	m.hidden.ApplyRelu()

	m.pooled, err = SumPool(m.hidden, b.Ptr)
	if err != nil {
		return nil, fmt.Errorf("GraphRegressor.Forward: %w", err)
	}

	pred := NewMatrix(m.pooled.rows, 1)
	MatMul(m.pooled.dense, m.Head.dense, pred)
	pred.AddVector(m.HeadBias)
	return pred, nil
}

// MSEAndMAE computes mean squared and mean absolute error of pred against
// the per-graph targets.
func MSEAndMAE(pred *Matrix, targets []float64) (mse, mae float64, err error) {
	if pred.cols != 1 || pred.rows != len(targets) {
		return 0, 0, fmt.Errorf("MSEAndMAE: pred %dx%d vs %d targets: %w",
			pred.rows, pred.cols, len(targets), ErrShapeMismatch)
	}
	if len(targets) == 0 {
		return 0, 0, fmt.Errorf("MSEAndMAE: empty batch: %w", ErrDegenerateInput)
	}
	for k, t := range targets {
		diff := pred.data[k] - t
		mse += diff * diff
		mae += math.Abs(diff)
	}
	n := float64(len(targets))
	return mse / n, mae / n, nil
}

// Backward propagates the MSE gradient of the last forward pass down to the
// convolution parameters.
func (m *GraphRegressor) Backward(b Batch, pred *Matrix) error {
	if m.pooled == nil {
		return fmt.Errorf("GraphRegressor.Backward before Forward: %w", ErrDegenerateInput)
	}
	if pred.rows != len(b.Targets) || pred.cols != 1 {
		return fmt.Errorf("GraphRegressor.Backward: pred %dx%d vs %d targets: %w",
			pred.rows, pred.cols, len(b.Targets), ErrShapeMismatch)
	}

	// dMSE/dPred_k = 2 (pred_k - y_k) / B
	numGraphs := pred.rows
	dPred := NewMatrix(numGraphs, 1)
	for k := 0; k < numGraphs; k++ {
		dPred.data[k] = 2.0 * (pred.data[k] - b.Targets[k]) / float64(numGraphs)
	}

	// Head gradients
	MatMul(m.pooled.dense.T(), dPred.dense, m.dHead)
	m.dHeadBias.data[0] = 0
	for k := 0; k < numGraphs; k++ {
		m.dHeadBias.data[0] += dPred.data[k]
	}

	// Back through pooling: every node of graph k inherits its graph's
	// gradient row, then the ReLU gate of the conv output applies.
	dPooled := NewMatrix(numGraphs, m.Head.rows)
	MatMul(dPred.dense, m.Head.dense.T(), dPooled)
	dHidden := sumPoolBackward(dPooled, b.Ptr, m.hidden.rows)
	for i, v := range m.z.data {
		if v <= 0 {
			dHidden.data[i] = 0
		}
	}

	if _, err := m.Conv.Backward(b.Adj, dHidden); err != nil {
		return fmt.Errorf("GraphRegressor.Backward: %w", err)
	}
	return nil
}

func (m *GraphRegressor) Params() []*Param {
	params := m.Conv.Params()
	params = append(params,
		&Param{Name: "head.W", W: m.Head, Grad: m.dHead},
		&Param{Name: "head.b", W: m.HeadBias, Grad: m.dHeadBias},
	)
	return params
}
