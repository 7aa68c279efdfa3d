package scoring

import (
	"fmt"
	"math"
)

// RiskModel estimates the probability of default for an encoded, scaled feature vector.
// Implementations must be safe for concurrent Predict calls.
type RiskModel interface {
	Predict(features FeatureVector) (float64, error)
	InputWidth() int
}

// Closer is implemented by models holding resources outside the Go heap.
type Closer interface {
	Close() error
}

// LogisticModel is a linear scorer passed through the logistic function.
type LogisticModel struct {
	intercept float64
	weights   []float64
}

// NewLogisticModel builds a model whose weights are in schema column order.
func NewLogisticModel(intercept float64, weights []float64) (*LogisticModel, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: logistic model has no weights", ErrModelArtifactMissing)
	}
	if !finite(intercept) {
		return nil, fmt.Errorf("%w: intercept is not finite", ErrModelArtifactCorrupt)
	}
	for i, w := range weights {
		if !finite(w) {
			return nil, fmt.Errorf("%w: weight %d is not finite", ErrModelArtifactCorrupt, i)
		}
	}
	return &LogisticModel{
		intercept: intercept,
		weights:   append([]float64(nil), weights...),
	}, nil
}

// InputWidth returns the number of weights.
func (m *LogisticModel) InputWidth() int {
	return len(m.weights)
}

// Predict returns sigmoid(intercept + w·x).
func (m *LogisticModel) Predict(features FeatureVector) (float64, error) {
	if len(features) != len(m.weights) {
		return 0, fmt.Errorf("%w: expected %d features, got %d", ErrModelArtifactCorrupt, len(m.weights), len(features))
	}
	z := m.intercept
	for i, x := range features {
		z += m.weights[i] * x
	}
	return sigmoid(z), nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
