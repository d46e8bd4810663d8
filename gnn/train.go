package gnn

import (
	"fmt"
	"time"
)

type TrainConfig struct {
	Epochs       int
	LearningRate float64
	VerboseEvery int // how often to log progress (in epochs), 0 = silent

	// Optimizer selection
	Optimizer OptimizerType

	// Optimizer hyperparameters (zero values use defaults)
	MomentumMu float64 // for Momentum (usually 0.9)
	AdamBeta1  float64 // for Adam (usually 0.9)
	AdamBeta2  float64 // for Adam (usually 0.999)
	AdamEps    float64 // for Adam (usually 1e-8)
}

// Split holds the boolean node masks of a train/validation/test split.
// Masks are disjoint; nodes in none of them are ignored entirely.
type Split struct {
	Train []bool
	Val   []bool
	Test  []bool
}

// History records per-epoch bookkeeping for plotting and reporting.
type History struct {
	Loss    []float64
	Acc     []float64
	ValLoss []float64
	ValAcc  []float64
}

// TrainNodeClassifier runs full-batch gradient descent on a fixed graph:
// one forward pass over all nodes per epoch, loss and gradient taken over the
// train mask only, validation bookkeeping on the val mask.
func TrainNodeClassifier(m *NodeClassifier, X *Matrix, labels []int, split Split, cfg TrainConfig) (History, error) {
	optimizer := NewOptimizer(cfg)
	var hist History

	start := time.Now()
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		logProbs, err := m.Forward(X)
		if err != nil {
			return hist, fmt.Errorf("TrainNodeClassifier: epoch %d: %w", epoch, err)
		}

		loss, acc, err := LossAndAccuracy(logProbs, labels, split.Train)
		if err != nil {
			return hist, fmt.Errorf("TrainNodeClassifier: epoch %d: %w", epoch, err)
		}
		valLoss, valAcc, err := LossAndAccuracy(logProbs, labels, split.Val)
		if err != nil {
			return hist, fmt.Errorf("TrainNodeClassifier: epoch %d: %w", epoch, err)
		}

		if err := m.Backward(labels, split.Train); err != nil {
			return hist, fmt.Errorf("TrainNodeClassifier: epoch %d: %w", epoch, err)
		}
		optimizer.Update(m.Params())

		hist.Loss = append(hist.Loss, loss)
		hist.Acc = append(hist.Acc, acc)
		hist.ValLoss = append(hist.ValLoss, valLoss)
		hist.ValAcc = append(hist.ValAcc, valAcc)

		if cfg.VerboseEvery > 0 && (epoch%cfg.VerboseEvery == 0 || epoch == 1) {
			fmt.Printf("Epoch %d | Loss: %.4f | Acc: %.2f%% | Val Acc: %.2f%% | Time: %v\n",
				epoch, loss, acc*100, valAcc*100, time.Since(start))
		}
	}
	return hist, nil
}

// EvaluateNodeClassifier runs one forward pass and reports loss/accuracy over
// the given mask (typically the test mask).
func EvaluateNodeClassifier(m *NodeClassifier, X *Matrix, labels []int, mask []bool) (loss, acc float64, err error) {
	logProbs, err := m.Forward(X)
	if err != nil {
		return 0, 0, fmt.Errorf("EvaluateNodeClassifier: %w", err)
	}
	return LossAndAccuracy(logProbs, labels, mask)
}

// TrainGraphRegressor iterates mini-batches of packed graphs sequentially.
// Graphs in a batch share no state, so batch order carries no semantics.
func TrainGraphRegressor(m *GraphRegressor, batches []Batch, cfg TrainConfig) (History, error) {
	if len(batches) == 0 {
		return History{}, fmt.Errorf("TrainGraphRegressor: no batches: %w", ErrDegenerateInput)
	}

	optimizer := NewOptimizer(cfg)
	var hist History

	start := time.Now()
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		var epochMSE, epochMAE float64

		for _, b := range batches {
			pred, err := m.Forward(b)
			if err != nil {
				return hist, fmt.Errorf("TrainGraphRegressor: epoch %d: %w", epoch, err)
			}
			mse, mae, err := MSEAndMAE(pred, b.Targets)
			if err != nil {
				return hist, fmt.Errorf("TrainGraphRegressor: epoch %d: %w", epoch, err)
			}
			if err := m.Backward(b, pred); err != nil {
				return hist, fmt.Errorf("TrainGraphRegressor: epoch %d: %w", epoch, err)
			}
			optimizer.Update(m.Params())

			epochMSE += mse
			epochMAE += mae
		}

		epochMSE /= float64(len(batches))
		epochMAE /= float64(len(batches))
		hist.Loss = append(hist.Loss, epochMSE)
		hist.Acc = append(hist.Acc, epochMAE) // MAE stands in for accuracy on regression

		if cfg.VerboseEvery > 0 && (epoch%cfg.VerboseEvery == 0 || epoch == 1) {
			fmt.Printf("Epoch %d | MSE: %.4f | MAE: %.4f | Time: %v\n",
				epoch, epochMSE, epochMAE, time.Since(start))
		}
	}
	return hist, nil
}
