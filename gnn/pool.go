package gnn

import "fmt"

// validatePtr checks the batch boundary array: len B+1, ptr[0] = 0, strictly
// non-decreasing, ptr[B] = totalNodes. Violations are fatal input errors.
func validatePtr(ptr []int, totalNodes int) error {
	if len(ptr) < 2 {
		return fmt.Errorf("ptr length %d, need at least 2: %w", len(ptr), ErrIndexOutOfRange)
	}
	if ptr[0] != 0 {
		return fmt.Errorf("ptr[0] = %d, want 0: %w", ptr[0], ErrIndexOutOfRange)
	}
	for k := 1; k < len(ptr); k++ {
		if ptr[k] < ptr[k-1] {
			return fmt.Errorf("ptr not monotonic at %d (%d < %d): %w", k, ptr[k], ptr[k-1], ErrIndexOutOfRange)
		}
	}
	if last := ptr[len(ptr)-1]; last != totalNodes {
		return fmt.Errorf("ptr[%d] = %d, want total nodes %d: %w", len(ptr)-1, last, totalNodes, ErrIndexOutOfRange)
	}
	return nil
}

// SumPool reduces a batched node matrix to one row per graph: output row k is
// the sum of rows [ptr[k], ptr[k+1]) of X. Summation is the contract - no
// averaging by graph size.
func SumPool(X *Matrix, ptr []int) (*Matrix, error) {
	if err := validatePtr(ptr, X.rows); err != nil {
		return nil, fmt.Errorf("SumPool: %w", err)
	}

	numGraphs := len(ptr) - 1
	out := NewMatrix(numGraphs, X.cols)
	for k := 0; k < numGraphs; k++ {
		outOffset := k * X.cols
		for i := ptr[k]; i < ptr[k+1]; i++ {
			rowOffset := i * X.cols
			for c := 0; c < X.cols; c++ {
				out.data[outOffset+c] += X.data[rowOffset+c]
			}
		}
	}
	return out, nil
}

// sumPoolBackward scatters the pooled gradient back to node rows: every node
// of graph k receives dPooled row k unchanged.
func sumPoolBackward(dPooled *Matrix, ptr []int, totalNodes int) *Matrix {
	dX := NewMatrix(totalNodes, dPooled.cols)
	for k := 0; k < dPooled.rows; k++ {
		srcOffset := k * dPooled.cols
		for i := ptr[k]; i < ptr[k+1]; i++ {
			copy(dX.data[i*dX.cols:(i+1)*dX.cols], dPooled.data[srcOffset:srcOffset+dPooled.cols])
		}
	}
	return dX
}
