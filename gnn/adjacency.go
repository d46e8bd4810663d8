package gnn

import (
	"fmt"
	"math"
)

// -------- ADJACENCY BUILDER -------- //
// Converts a sparse edge list into the dense matrices the convolution layers
// consume: the plain 0/1 adjacency A, and the Kipf-Welling normalized
// variant D^{-1/2} (A+I) D^{-1/2}.

// AdjOption configures adjacency construction.
type AdjOption func(*adjConfig)

type adjConfig struct {
	counts bool
}

// Counts switches adjacency entries from boolean saturation to edge
// multiplicity counts. Default is boolean: duplicate edges in the input list
// are absorbed idempotently and entries saturate at 1.
func Counts() AdjOption {
	return func(c *adjConfig) {
		c.counts = true
	}
}

// NewAdjacency builds the dense symmetric adjacency matrix A for g.
// Every edge (i,j) sets both A[i][j] and A[j][i]; the result is invariant to
// the order edges appear in the input list.
// Returns ErrIndexOutOfRange for endpoints outside [0, NumNodes).
func NewAdjacency(g Graph, opts ...AdjOption) (*Matrix, error) {
	var cfg adjConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("NewAdjacency: %w", err)
	}

	n := g.NumNodes
	a := NewMatrix(n, n)
	for _, e := range g.Edges {
		i, j := e[0], e[1]
		if cfg.counts {
			a.data[i*n+j]++
			if i != j {
				a.data[j*n+i]++
			}
		} else {
			a.data[i*n+j] = 1
			a.data[j*n+i] = 1
		}
	}
	return a, nil
}

// NewNormalizedAdjacency builds Â = D^{-1/2} (A+I) D^{-1/2}, where D is the
// diagonal degree matrix of A+I. The self-loops guarantee every diagonal
// degree is at least 1, so the normalization is always well-defined - no
// division-by-zero branch needed. Â stays symmetric and its diagonal entries
// are strictly positive.
func NewNormalizedAdjacency(g Graph, opts ...AdjOption) (*Matrix, error) {
	a, err := NewAdjacency(g, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewNormalizedAdjacency: %w", err)
	}

	n := g.NumNodes

	// A + I
	for i := 0; i < n; i++ {
		a.data[i*n+i]++
	}

	// invSqrtDeg[i] = 1 / sqrt(sum of row i)
	invSqrtDeg := make([]float64, n)
	for i := 0; i < n; i++ {
		rowSum := 0.0
		for j := 0; j < n; j++ {
			rowSum += a.data[i*n+j]
		}
		invSqrtDeg[i] = 1.0 / math.Sqrt(rowSum)
	}

	// Â[i][j] = (A+I)[i][j] / (sqrt(deg_i) * sqrt(deg_j))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.data[i*n+j] *= invSqrtDeg[i] * invSqrtDeg[j]
		}
	}
	return a, nil
}
