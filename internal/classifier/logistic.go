// Package classifier holds the probabilistic scorers behind the inference
// policy: a trained logistic regression and a fixed-weight heuristic.
package classifier

import (
	"math"
	"sort"

	"github.com/sells-group/naf-analyzer/internal/model"
)

// Scorer maps a feature vector to a positive-class probability.
type Scorer interface {
	Probability(v model.FeatureVector) (float64, error)
}

// Logistic is a binary logistic regression over the fixed feature vector.
type Logistic struct {
	Weights [model.NumFeatures]float64
	Bias    float64
}

// Probability implements Scorer as sigmoid(bias + w·x).
func (m *Logistic) Probability(v model.FeatureVector) (float64, error) {
	if err := v.Validate(); err != nil {
		return 0, err
	}
	return sigmoid(m.logit(v)), nil
}

func (m *Logistic) logit(v model.FeatureVector) float64 {
	z := m.Bias
	for i, x := range v {
		z += m.Weights[i] * float64(x)
	}
	return z
}

// Coefficient is a named model weight.
type Coefficient struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// Coefficients returns the weights sorted from most positive to most
// negative.
func (m *Logistic) Coefficients() []Coefficient {
	out := make([]Coefficient, model.NumFeatures)
	for i, w := range m.Weights {
		out[i] = Coefficient{Feature: model.FeatureNames[i], Weight: w}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus is log(1+e^z) without overflow.
func softplus(z float64) float64 {
	return math.Max(z, 0) + math.Log1p(math.Exp(-math.Abs(z)))
}
