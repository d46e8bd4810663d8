package gnn

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	OptSGD      OptimizerType = "sgd"
	OptMomentum OptimizerType = "momentum"
	OptAdam     OptimizerType = "adam"
)

type OptimizerType string

// Optimizer applies one first-order update step to a parameter set. Updates
// run strictly between forward/backward passes; the training loop enforces
// that ordering, not the optimizer.
type Optimizer interface {
	Update(params []*Param)
}

type SGDOptimizer struct {
	LearningRate float64
}

type MomentumOptimizer struct {
	LearningRate float64
	Mu           float64 // momentum factor (usually 0.9)

	velocity []*Matrix // one per param, lazily sized
}

type AdamConfig struct {
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	LearningRate float64
}

type AdamOptimizer struct {
	cfg      AdamConfig
	m, v     []*Matrix // first and second moment estimates per param
	timeStep int       // 't' in the Adam paper, tracks number of updates
}

func NewOptimizer(cfg TrainConfig) Optimizer {
	switch cfg.Optimizer {
	case OptAdam:
		// Set defaults if 0
		beta1 := cfg.AdamBeta1
		if beta1 == 0 {
			beta1 = 0.9
		}
		beta2 := cfg.AdamBeta2
		if beta2 == 0 {
			beta2 = 0.999
		}
		eps := cfg.AdamEps
		if eps == 0 {
			eps = 1e-8
		}
		return &AdamOptimizer{cfg: AdamConfig{
			Beta1:        beta1,
			Beta2:        beta2,
			Epsilon:      eps,
			LearningRate: cfg.LearningRate,
		}}

	case OptMomentum:
		mu := cfg.MomentumMu
		if mu == 0 {
			mu = 0.9
		}
		return &MomentumOptimizer{LearningRate: cfg.LearningRate, Mu: mu}

	default:
		return &SGDOptimizer{LearningRate: cfg.LearningRate}
	}
}

// ------ SGD ------ //
// Simple update: W = W - lr * gradient
func (opt *SGDOptimizer) Update(params []*Param) {
	for _, p := range params {
		floats.AddScaled(p.W.data, -opt.LearningRate, p.Grad.data)
	}
}

// ------ MOMENTUM ------ //
// v = mu * v - lr * grad
// w = w + v
func (opt *MomentumOptimizer) Update(params []*Param) {
	if len(opt.velocity) != len(params) {
		opt.velocity = make([]*Matrix, len(params))
		for i, p := range params {
			opt.velocity[i] = NewMatrix(p.W.rows, p.W.cols)
		}
	}

	for i, p := range params {
		vel := opt.velocity[i].data
		for k := range p.W.data {
			vel[k] = opt.Mu*vel[k] - opt.LearningRate*p.Grad.data[k]
			p.W.data[k] += vel[k]
		}
	}
}

// ------ ADAM ------ //
func (opt *AdamOptimizer) Update(params []*Param) {
	opt.timeStep++
	t := float64(opt.timeStep)

	// correction1 = 1 - beta1^t
	// correction2 = 1 - beta2^t
	correction1 := 1.0 - math.Pow(opt.cfg.Beta1, t)
	correction2 := 1.0 - math.Pow(opt.cfg.Beta2, t)

	if len(opt.m) != len(params) {
		opt.m = make([]*Matrix, len(params))
		opt.v = make([]*Matrix, len(params))
		for i, p := range params {
			opt.m[i] = NewMatrix(p.W.rows, p.W.cols)
			opt.v[i] = NewMatrix(p.W.rows, p.W.cols)
		}
	}

	beta1 := opt.cfg.Beta1
	beta2 := opt.cfg.Beta2
	eps := opt.cfg.Epsilon
	lr := opt.cfg.LearningRate

	for i, p := range params {
		m, v := opt.m[i].data, opt.v[i].data
		for k := range p.W.data {
			g := p.Grad.data[k]

			// m_t = beta1 * m_{t-1} + (1 - beta1) * g
			m[k] = beta1*m[k] + (1.0-beta1)*g

			// v_t = beta2 * v_{t-1} + (1 - beta2) * g^2
			v[k] = beta2*v[k] + (1.0-beta2)*(g*g)

			// Bias correction, then theta = theta - lr * mHat / (sqrt(vHat) + eps)
			mHat := m[k] / correction1
			vHat := v[k] / correction2
			p.W.data[k] -= lr * mHat / (math.Sqrt(vHat) + eps)
		}
	}
}
