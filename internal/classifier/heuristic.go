package classifier

import (
	"math"

	"github.com/sells-group/naf-analyzer/internal/model"
)

// HeuristicWeights are the additive evidence weights of the rule scorer.
type HeuristicWeights struct {
	HighSchool float64 `json:"high_school" mapstructure:"high_school"`
	Internship float64 `json:"internship" mapstructure:"internship"`
	Job        float64 `json:"job" mapstructure:"job"`
	ProxStrong float64 `json:"prox_strong" mapstructure:"prox_strong"`
	ProxWeak   float64 `json:"prox_weak" mapstructure:"prox_weak"`
}

// DefaultHeuristicWeights returns the weights used before a model is trained.
func DefaultHeuristicWeights() HeuristicWeights {
	return HeuristicWeights{
		HighSchool: 0.25,
		Internship: 0.20,
		Job:        0.15,
		ProxStrong: 0.10,
		ProxWeak:   0.05,
	}
}

// Heuristic scores by summing the weights of the present features, capped
// at 1. It serves when no trained artifact is configured.
type Heuristic struct {
	Weights HeuristicWeights
}

// Probability implements Scorer.
func (h Heuristic) Probability(v model.FeatureVector) (float64, error) {
	if err := v.Validate(); err != nil {
		return 0, err
	}
	w := h.Weights
	score := w.HighSchool*float64(v[model.FeatHighSchoolMatch]) +
		w.Internship*float64(v[model.FeatInternshipMatch]) +
		w.Job*float64(v[model.FeatJobMatch]) +
		w.ProxStrong*float64(v[model.FeatProxStrong]) +
		w.ProxWeak*float64(v[model.FeatProxWeak])
	return math.Min(score, 1), nil
}
