package model

import "time"

// DecisionSource records which path of the inference policy produced a
// decision.
type DecisionSource string

const (
	SourceRule  DecisionSource = "rule"  // definite-membership override
	SourceModel DecisionSource = "model" // scored against the threshold
)

// Decision is the outcome of the inference policy for one feature vector.
type Decision struct {
	Label      int            `json:"label"`
	Confidence float64        `json:"confidence"`
	Source     DecisionSource `json:"source"`
}

// Positive reports whether the decision labels the profile a participant.
func (d Decision) Positive() bool {
	return d.Label == 1
}

// Classification is a classified profile as written to output and storage.
type Classification struct {
	ID          string         `json:"id"`
	Row         int            `json:"row"`
	Ref         string         `json:"ref,omitempty"`
	Label       int            `json:"label"`
	Confidence  float64        `json:"confidence"`
	Source      DecisionSource `json:"source,omitempty"`
	Probability *float64       `json:"probability,omitempty"`
	Features    FeatureVector  `json:"features"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Failed reports whether the record could not be classified.
func (c Classification) Failed() bool {
	return c.Error != ""
}
