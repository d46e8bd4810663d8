package gnn

import (
	"encoding/gob"
	"fmt"
	"os"
)

// savedParam is the on-disk form of one parameter matrix.
type savedParam struct {
	Name string
	W    *Matrix
}

// SaveParams writes a model's parameters to a gob file. Pass the result of
// any model's Params().
func SaveParams(filename string, params []*Param) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	saved := make([]savedParam, len(params))
	for i, p := range params {
		saved[i] = savedParam{Name: p.Name, W: p.W}
	}
	return gob.NewEncoder(file).Encode(saved)
}

// LoadParams restores parameters saved by SaveParams into an already-built
// model. Every name and shape is validated before anything is overwritten, so
// an architecture mismatch leaves the model untouched.
func LoadParams(filename string, params []*Param) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	var saved []savedParam
	if err := gob.NewDecoder(file).Decode(&saved); err != nil {
		return fmt.Errorf("failed to decode gob file: %v", err)
	}

	// --- VALIDATION STEP ---
	if len(saved) != len(params) {
		return fmt.Errorf("architecture mismatch: model has %d parameters, file has %d: %w",
			len(params), len(saved), ErrShapeMismatch)
	}
	for i, p := range params {
		if saved[i].Name != p.Name {
			return fmt.Errorf("parameter %d mismatch: expected %q, got %q: %w",
				i, p.Name, saved[i].Name, ErrShapeMismatch)
		}
		if saved[i].W.rows != p.W.rows || saved[i].W.cols != p.W.cols {
			return fmt.Errorf("parameter %q shape mismatch: expected [%d, %d], got [%d, %d]: %w",
				p.Name, p.W.rows, p.W.cols, saved[i].W.rows, saved[i].W.cols, ErrShapeMismatch)
		}
	}

	// --- APPLICATION STEP ---
	// Safe to overwrite now
	for i, p := range params {
		copy(p.W.data, saved[i].W.data)
	}
	return nil
}
