package gnn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoTriangles is a toy community graph: nodes 0-2 and 3-5 form two cliques
// joined by a single bridge edge. With one-hot node features a single
// normalized convolution separates the communities easily.
func twoTriangles() (Graph, *Matrix, []int) {
	g := Graph{NumNodes: 6, Edges: [][2]int{
		{0, 1}, {1, 2}, {0, 2},
		{3, 4}, {4, 5}, {3, 5},
		{2, 3},
	}}
	X := NewMatrix(6, 6)
	for i := 0; i < 6; i++ {
		X.Set(i, i, 1)
	}
	labels := []int{0, 0, 0, 1, 1, 1}
	return g, X, labels
}

func allTrue(n int) []bool {
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}
	return mask
}

func TestNodeClassifierLogProbRows(t *testing.T) {
	g, X, _ := twoTriangles()
	m, err := NewNodeClassifier(g, 6, 2, AggNormalized)
	require.NoError(t, err)

	logProbs, err := m.Forward(X)
	require.NoError(t, err)

	for i := 0; i < logProbs.Rows(); i++ {
		sum := 0.0
		for j := 0; j < logProbs.Cols(); j++ {
			sum += math.Exp(logProbs.At(i, j))
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "row %d", i)
	}
}

func TestNodeClassifierTrainingReducesLoss(t *testing.T) {
	g, X, labels := twoTriangles()
	m, err := NewNodeClassifier(g, 6, 2, AggNormalized)
	require.NoError(t, err)

	split := Split{Train: allTrue(6), Val: allTrue(6), Test: allTrue(6)}
	hist, err := TrainNodeClassifier(m, X, labels, split, TrainConfig{
		Epochs:       100,
		LearningRate: 0.05,
		Optimizer:    OptAdam,
	})
	require.NoError(t, err)
	require.Len(t, hist.Loss, 100)

	assert.Less(t, hist.Loss[99], hist.Loss[0], "loss should decrease")
	assert.GreaterOrEqual(t, hist.Acc[99], 5.0/6.0, "toy problem should be nearly fully learnable")
}

func TestNodeClassifierWithTransformerConv(t *testing.T) {
	// The wrapper is generic over the convolution variant.
	g, X, labels := twoTriangles()
	adj, err := NewAdjacency(g)
	require.NoError(t, err)

	m := NewNodeClassifierFrom(adj, NewTransformerConv(6, 2))
	split := Split{Train: allTrue(6), Val: allTrue(6)}
	hist, err := TrainNodeClassifier(m, X, labels, split, TrainConfig{
		Epochs:       150,
		LearningRate: 0.01,
		Optimizer:    OptAdam,
	})
	require.NoError(t, err)
	assert.Less(t, hist.Loss[len(hist.Loss)-1], hist.Loss[0])
}

func TestNodeClassifierMaskAndLabelErrors(t *testing.T) {
	g, X, labels := twoTriangles()
	m, err := NewNodeClassifier(g, 6, 2, AggNormalized)
	require.NoError(t, err)

	logProbs, err := m.Forward(X)
	require.NoError(t, err)

	t.Run("label out of range", func(t *testing.T) {
		bad := append([]int(nil), labels...)
		bad[0] = 9
		_, _, err := LossAndAccuracy(logProbs, bad, allTrue(6))
		require.ErrorIs(t, err, ErrIndexOutOfRange)
	})

	t.Run("empty mask", func(t *testing.T) {
		_, _, err := LossAndAccuracy(logProbs, labels, make([]bool, 6))
		require.ErrorIs(t, err, ErrDegenerateInput)
	})

	t.Run("mask length mismatch", func(t *testing.T) {
		_, _, err := LossAndAccuracy(logProbs, labels, allTrue(4))
		require.ErrorIs(t, err, ErrShapeMismatch)
	})
}

// packedPair returns a two-graph batch: an edge pair and a path of three.
func packedPair(t *testing.T) Batch {
	t.Helper()
	merged := Graph{NumNodes: 5, Edges: [][2]int{{0, 1}, {2, 3}, {3, 4}}}
	adj, err := NewNormalizedAdjacency(merged)
	require.NoError(t, err)

	X := NewMatrix(5, 3)
	X.Randomize()
	return Batch{
		Adj:     adj,
		X:       X,
		Ptr:     []int{0, 2, 5},
		Targets: []float64{1.0, -0.5},
	}
}

func TestGraphRegressorForwardShape(t *testing.T) {
	b := packedPair(t)
	m := NewGraphRegressor(3, 4)

	pred, err := m.Forward(b)
	require.NoError(t, err)
	assert.Equal(t, 2, pred.Rows())
	assert.Equal(t, 1, pred.Cols())
}

func TestGraphRegressorGradientCheck(t *testing.T) {
	b := packedPair(t)
	m := NewGraphRegressor(3, 4)

	loss := func() float64 {
		pred, err := m.Forward(b)
		require.NoError(t, err)
		mse, _, err := MSEAndMAE(pred, b.Targets)
		require.NoError(t, err)
		return mse
	}

	loss()
	pred, err := m.Forward(b)
	require.NoError(t, err)
	require.NoError(t, m.Backward(b, pred))

	for _, p := range m.Params() {
		want := numericalGrad(t, loss, p.W)
		for i := range want.data {
			assert.InDelta(t, want.data[i], p.Grad.data[i], 1e-5, "%s[%d]", p.Name, i)
		}
	}
}

func TestGraphRegressorTrainingReducesMSE(t *testing.T) {
	b := packedPair(t)
	m := NewGraphRegressor(3, 4)

	hist, err := TrainGraphRegressor(m, []Batch{b}, TrainConfig{
		Epochs:       200,
		LearningRate: 0.01,
		Optimizer:    OptAdam,
	})
	require.NoError(t, err)
	assert.Less(t, hist.Loss[len(hist.Loss)-1], hist.Loss[0])
}

func TestGraphRegressorTargetMismatch(t *testing.T) {
	b := packedPair(t)
	b.Targets = []float64{1.0} // batch has two graphs
	m := NewGraphRegressor(3, 4)

	pred, err := m.Forward(Batch{Adj: b.Adj, X: b.X, Ptr: b.Ptr, Targets: []float64{1, 2}})
	require.NoError(t, err)
	_, _, err = MSEAndMAE(pred, b.Targets)
	require.ErrorIs(t, err, ErrShapeMismatch)
}
