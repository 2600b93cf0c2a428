// Package inference turns profiles into classification decisions: feature
// engineering, the definite-membership override, and thresholded model
// scores.
package inference

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/naf-analyzer/internal/classifier"
	"github.com/sells-group/naf-analyzer/internal/model"
)

// Policy decides a label from a feature vector. The rule_definite feature
// short-circuits to a positive decision; anything else is scored and
// compared against Threshold, inclusive.
type Policy struct {
	Scorer    classifier.Scorer
	Threshold float64
}

// NewPolicy validates the scorer and threshold.
func NewPolicy(scorer classifier.Scorer, threshold float64) (Policy, error) {
	if scorer == nil {
		return Policy{}, eris.New("inference: nil scorer")
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return Policy{}, eris.Errorf("inference: threshold %v outside [0,1]", threshold)
	}
	return Policy{Scorer: scorer, Threshold: threshold}, nil
}

// Decide applies the policy to v.
func (p Policy) Decide(v model.FeatureVector) (model.Decision, error) {
	if err := v.Validate(); err != nil {
		return model.Decision{}, err
	}
	if v[model.FeatRuleDefinite] == 1 {
		return model.Decision{Label: 1, Confidence: 1.0, Source: model.SourceRule}, nil
	}

	prob, err := p.Scorer.Probability(v)
	if err != nil {
		return model.Decision{}, eris.Wrap(err, "inference: score")
	}
	d := model.Decision{Confidence: prob, Source: model.SourceModel}
	if prob >= p.Threshold {
		d.Label = 1
	}
	return d, nil
}
