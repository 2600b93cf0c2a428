// Package store persists classification results and reads crawled
// profiles.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/naf-analyzer/internal/model"
)

// Filter narrows ListClassifications.
type Filter struct {
	Label  *int                 `json:"label,omitempty"`
	Source model.DecisionSource `json:"source,omitempty"`
	Ref    string               `json:"ref,omitempty"`
	Failed *bool                `json:"failed,omitempty"`
	Limit  int                  `json:"limit,omitempty"`
	Offset int                  `json:"offset,omitempty"`
}

// DefaultListLimit caps ListClassifications when Filter.Limit is unset.
const DefaultListLimit = 100

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Store persists classification results.
type Store interface {
	// SaveClassifications writes results, replacing rows with the same ID.
	SaveClassifications(ctx context.Context, results []model.Classification) (int, error)
	// ListClassifications returns results newest first.
	ListClassifications(ctx context.Context, filter Filter) ([]model.Classification, error)

	Migrate(ctx context.Context) error
	Close() error
}

// ProfileSource yields raw profile records from an upstream table.
type ProfileSource interface {
	FetchProfiles(ctx context.Context, limit, offset int) (model.RecordSet, error)
}

// classificationColumns is the column order used by every insert and select.
var classificationColumns = []string{
	"id", "row_index", "ref", "label", "confidence", "source", "probability", "features", "error", "created_at",
}

func encodeFeatures(v model.FeatureVector) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "store: encode features")
	}
	return string(data), nil
}

func decodeFeatures(s string) (model.FeatureVector, error) {
	var v model.FeatureVector
	if s == "" {
		return v, nil
	}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return v, eris.Wrap(err, "store: decode features")
	}
	return v, nil
}
