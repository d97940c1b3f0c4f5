// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package fdr

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/optimize"
)

// l2Penalty regularizes the logistic fit so separable training sets do
// not drive the weights to infinity
const l2Penalty = 1e-3

// logisticModel is a trained classifier: standardized features, linear
// weights plus intercept, probabilities through the logistic function
type logisticModel struct {
	mean, scale []float64
	weights     []float64 // len(features)+1, last element is the intercept
}

// trainLogistic fits a logistic regression on a deterministic training
// subset of the data. The training fraction is drawn with a seeded
// shuffle so repeated runs produce identical models.
func trainLogistic(features [][]float64, labels []float64,
	trainingFraction float64, seed int64) *logisticModel {

	nFeat := len(features[0])
	m := &logisticModel{
		mean:  make([]float64, nFeat),
		scale: make([]float64, nFeat),
	}

	// Standardize on the full set
	for j := 0; j < nFeat; j++ {
		sum := 0.0
		for _, x := range features {
			sum += x[j]
		}
		m.mean[j] = sum / float64(len(features))
		varSum := 0.0
		for _, x := range features {
			d := x[j] - m.mean[j]
			varSum += d * d
		}
		m.scale[j] = math.Sqrt(varSum / float64(len(features)))
		if m.scale[j] == 0 {
			m.scale[j] = 1
		}
	}

	// Deterministic training subset
	idx := make([]int, len(features))
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	nTrain := int(float64(len(idx)) * trainingFraction)
	if nTrain < 2 {
		nTrain = len(idx)
	}
	trainIdx := idx[:nTrain]

	x := make([][]float64, len(trainIdx))
	y := make([]float64, len(trainIdx))
	for i, t := range trainIdx {
		x[i] = m.standardize(features[t])
		y[i] = labels[t]
	}

	problem := optimize.Problem{
		Func: func(w []float64) float64 {
			loss := 0.0
			for i := range x {
				z := dotWithIntercept(w, x[i])
				// log(1+exp(z)) - y*z, numerically stable
				loss += logOnePlusExp(z) - y[i]*z
			}
			for _, wj := range w[:nFeat] {
				loss += l2Penalty * wj * wj
			}
			return loss
		},
		Grad: func(grad, w []float64) {
			for j := range grad {
				grad[j] = 0
			}
			for i := range x {
				p := sigmoid(dotWithIntercept(w, x[i]))
				d := p - y[i]
				for j := 0; j < nFeat; j++ {
					grad[j] += d * x[i][j]
				}
				grad[nFeat] += d
			}
			for j := 0; j < nFeat; j++ {
				grad[j] += 2 * l2Penalty * w[j]
			}
		},
	}

	w0 := make([]float64, nFeat+1)
	result, err := optimize.Minimize(problem, w0, nil, nil)
	if err != nil || result == nil {
		// Fall back to the zero model: every peak gets PEP 0.5
		m.weights = w0
		return m
	}
	m.weights = result.X
	return m
}

// predict returns the posterior error probability of one feature vector
func (m *logisticModel) predict(features []float64) float64 {
	return sigmoid(dotWithIntercept(m.weights, m.standardize(features)))
}

func (m *logisticModel) standardize(features []float64) []float64 {
	out := make([]float64, len(features))
	for j, v := range features {
		out[j] = (v - m.mean[j]) / m.scale[j]
	}
	return out
}

func dotWithIntercept(w, x []float64) float64 {
	z := w[len(w)-1]
	for j, xj := range x {
		z += w[j] * xj
	}
	return z
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func logOnePlusExp(z float64) float64 {
	if z > 30 {
		return z
	}
	return math.Log1p(math.Exp(z))
}
