package model

import "github.com/rotisserie/eris"

// Feature positions within a FeatureVector. The order is part of the model
// contract and must not change.
const (
	FeatRuleDefinite = iota
	FeatHasAcademy
	FeatTrackCertified
	FeatHighSchoolMatch
	FeatInternshipMatch
	FeatJobMatch
	FeatProxStrong
	FeatProxWeak

	NumFeatures
)

// FeatureNames holds the feature names in vector order.
var FeatureNames = [NumFeatures]string{
	"rule_definite",
	"has_academy",
	"track_certified_flag",
	"hs_match",
	"intern_cmp",
	"job_cmp",
	"prox_strong",
	"prox_weak",
}

// FeatureVector is the fixed-order binary feature vector of one profile.
type FeatureVector [NumFeatures]int

// FeatureVectorFromInts copies xs into a FeatureVector after checking its
// length and values.
func FeatureVectorFromInts(xs []int) (FeatureVector, error) {
	var v FeatureVector
	if len(xs) != NumFeatures {
		return v, eris.Wrapf(ErrInvalidFeatureVector, "expected %d features, got %d", NumFeatures, len(xs))
	}
	copy(v[:], xs)
	return v, v.Validate()
}

// Validate checks that every entry is 0 or 1.
func (v FeatureVector) Validate() error {
	for i, x := range v {
		if x != 0 && x != 1 {
			return eris.Wrapf(ErrInvalidFeatureVector, "feature %s = %d", FeatureNames[i], x)
		}
	}
	return nil
}

// Floats returns the vector as float64 values for scoring.
func (v FeatureVector) Floats() []float64 {
	out := make([]float64, NumFeatures)
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Map returns the vector keyed by feature name.
func (v FeatureVector) Map() map[string]int {
	out := make(map[string]int, NumFeatures)
	for i, x := range v {
		out[FeatureNames[i]] = x
	}
	return out
}

// Set returns a copy of v with feature i set to 1 when cond holds.
func (v FeatureVector) Set(i int, cond bool) FeatureVector {
	if cond {
		v[i] = 1
	} else {
		v[i] = 0
	}
	return v
}
