package model

import "github.com/rotisserie/eris"

var (
	// ErrMalformedLabel is returned when a labelled record set has a missing
	// or non-binary target.
	ErrMalformedLabel = eris.New("malformed label")

	// ErrInvalidFeatureVector is returned when a vector with the wrong shape
	// or a non-binary entry reaches a scorer.
	ErrInvalidFeatureVector = eris.New("invalid feature vector")

	// ErrCorruptArtifact is returned when a stored model cannot be used.
	ErrCorruptArtifact = eris.New("corrupt model artifact")
)
