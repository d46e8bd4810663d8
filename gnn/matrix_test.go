package gnn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSoftmaxRowSumsToOne(t *testing.T) {
	// Arbitrary finite input, including large magnitudes that would overflow
	// a naive exp-sum.
	m := NewMatrixFromSlice(3, 4, []float64{
		0.5, -1.2, 3.3, 0.0,
		1000, 1001, 999, 1000.5,
		-7, -7, -7, -7,
	})
	LogSoftmaxRow(m)

	for i := 0; i < m.rows; i++ {
		sum := 0.0
		for j := 0; j < m.cols; j++ {
			require.False(t, math.IsNaN(m.At(i, j)), "row %d col %d is NaN", i, j)
			sum += math.Exp(m.At(i, j))
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "row %d", i)
	}
}

func TestSoftmaxRowMatchesLogSoftmax(t *testing.T) {
	data := []float64{0.1, 2.0, -0.7, 1.3, 0.0, 0.6}
	a := NewMatrixFromSlice(2, 3, append([]float64(nil), data...))
	b := NewMatrixFromSlice(2, 3, append([]float64(nil), data...))

	SoftmaxRow(a)
	LogSoftmaxRow(b)

	for i := range a.data {
		assert.InDelta(t, a.data[i], math.Exp(b.data[i]), 1e-12)
	}
}

func TestFlatten(t *testing.T) {
	flat := Flatten([][]float64{{1, 2}, {3, 4}, {5, 6}})
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, flat)
	assert.Nil(t, Flatten(nil))
}

func TestMatrixCloneIndependent(t *testing.T) {
	m := NewMatrixFromSlice(2, 2, []float64{1, 2, 3, 4})
	c := m.Clone()
	c.Set(0, 0, 99)
	assert.Equal(t, 1.0, m.At(0, 0))
	assert.Equal(t, 99.0, c.At(0, 0))
}

func TestNewMatrixFromSlicePanicsOnLengthMismatch(t *testing.T) {
	assert.Panics(t, func() {
		NewMatrixFromSlice(2, 3, []float64{1, 2, 3})
	})
}

// --- Benchmarks ---

var resultMat *Matrix // prevents compiler optimizations

func benchmarkMatMul(b *testing.B, size int) {
	m1 := NewMatrix(size, size)
	m2 := NewMatrix(size, size)
	out := NewMatrix(size, size)
	m1.Randomize()
	m2.Randomize()

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		MatMul(m1.dense, m2.dense, out)
	}
	resultMat = out
}

func BenchmarkMatMul_64(b *testing.B)  { benchmarkMatMul(b, 64) }
func BenchmarkMatMul_256(b *testing.B) { benchmarkMatMul(b, 256) }
