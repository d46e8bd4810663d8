package gnn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttentionConvScoresRespectNeighborhood(t *testing.T) {
	g := Graph{NumNodes: 4, Edges: [][2]int{{0, 1}, {1, 2}}}
	adj, err := NewAdjacency(g)
	require.NoError(t, err)

	X := NewMatrix(4, 3)
	X.Randomize()
	layer := NewAttentionConv(3, 2)

	_, err = layer.Forward(adj, X)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		rowSum := 0.0
		for j := 0; j < 4; j++ {
			if adj.At(i, j) == 0 && i != j {
				// Masked scores underflow to exactly zero after softmax.
				assert.Equal(t, 0.0, layer.s.At(i, j), "score[%d][%d]", i, j)
			}
			rowSum += layer.s.At(i, j)
		}
		assert.InDelta(t, 1.0, rowSum, 1e-9, "row %d", i)
	}

	// Node 3 is isolated: it can only attend to itself.
	assert.InDelta(t, 1.0, layer.s.At(3, 3), 1e-12)
}

func TestAttentionConvGradientCheck(t *testing.T) {
	g := Graph{NumNodes: 5, Edges: [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 0}, {1, 3}}}
	adj, err := NewAdjacency(g)
	require.NoError(t, err)

	X := NewMatrix(5, 3)
	X.Randomize()
	layer := NewAttentionConv(3, 2)

	R := NewMatrix(5, 2)
	R.Randomize()
	loss := func() float64 {
		h, err := layer.Forward(adj, X)
		require.NoError(t, err)
		sum := 0.0
		for i := range h.data {
			sum += h.data[i] * R.data[i]
		}
		return sum
	}

	loss()
	_, err = layer.Backward(adj, R)
	require.NoError(t, err)

	wantW := numericalGrad(t, loss, layer.Weights)
	for i := range wantW.data {
		assert.InDelta(t, wantW.data[i], layer.dW.data[i], 1e-5, "dW[%d]", i)
	}
	wantB := numericalGrad(t, loss, layer.Bias)
	for i := range wantB.data {
		assert.InDelta(t, wantB.data[i], layer.dB.data[i], 1e-5, "dB[%d]", i)
	}
}

func TestTransformerConvGradientCheck(t *testing.T) {
	g := Graph{NumNodes: 5, Edges: [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 0}}}
	adj, err := NewAdjacency(g)
	require.NoError(t, err)

	X := NewMatrix(5, 3)
	X.Randomize()
	layer := NewTransformerConv(3, 2)

	R := NewMatrix(5, 2)
	R.Randomize()
	loss := func() float64 {
		h, err := layer.Forward(adj, X)
		require.NoError(t, err)
		sum := 0.0
		for i := range h.data {
			sum += h.data[i] * R.data[i]
		}
		return sum
	}

	loss()
	_, err = layer.Backward(adj, R)
	require.NoError(t, err)

	checks := []struct {
		name    string
		w, grad *Matrix
	}{
		{"WQ", layer.WQ, layer.dWQ},
		{"WK", layer.WK, layer.dWK},
		{"WV", layer.WV, layer.dWV},
		{"WO", layer.WO, layer.dWO},
		{"bias", layer.Bias, layer.dB},
	}
	for _, c := range checks {
		want := numericalGrad(t, loss, c.w)
		for i := range want.data {
			assert.InDelta(t, want.data[i], c.grad.data[i], 1e-5, "%s[%d]", c.name, i)
		}
	}
}

func TestTransformerConvShapeError(t *testing.T) {
	g := ringGraph()
	adj, err := NewAdjacency(g)
	require.NoError(t, err)

	layer := NewTransformerConv(3, 2)
	_, err = layer.Forward(adj, NewMatrix(5, 7))
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestAggregatorPolymorphism(t *testing.T) {
	// The model wrapper is generic over the aggregate-and-project capability;
	// every variant must satisfy it.
	variants := []Aggregator{
		NewGraphConv(3, 2),
		NewAttentionConv(3, 2),
		NewTransformerConv(3, 2),
	}

	g := ringGraph()
	adj, err := NewNormalizedAdjacency(g)
	require.NoError(t, err)
	X := NewMatrix(5, 3)
	X.Randomize()

	for _, v := range variants {
		h, err := v.Forward(adj, X)
		require.NoError(t, err)
		assert.Equal(t, 5, h.Rows())
		assert.Equal(t, 2, h.Cols())
		assert.NotEmpty(t, v.Params())
	}
}
