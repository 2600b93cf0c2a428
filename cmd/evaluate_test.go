package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/naf-analyzer/internal/classifier"
	"github.com/sells-group/naf-analyzer/internal/inference"
	"github.com/sells-group/naf-analyzer/internal/model"
)

func TestEvaluatePolicy(t *testing.T) {
	policy, err := inference.NewPolicy(classifier.Heuristic{Weights: classifier.DefaultHeuristicWeights()}, 0.3)
	require.NoError(t, err)

	X := []model.FeatureVector{
		{1, 1, 0, 0, 0, 0, 0, 0}, // rule
		{0, 0, 0, 1, 1, 0, 0, 0}, // 0.45
		{0, 0, 0, 0, 0, 1, 0, 0}, // 0.15
		{0, 0, 0, 0, 0, 0, 0, 0}, // 0
	}
	y := []int{1, 1, 1, 0}

	out, err := evaluatePolicy(policy, X, y)
	require.NoError(t, err)

	assert.Equal(t, 4, out.Samples)
	assert.Equal(t, 1, out.RuleCount)
	assert.Equal(t, [2][2]int{{1, 0}, {1, 2}}, out.Metrics.Confusion)
	require.NotNil(t, out.Metrics.Threshold)
	assert.InDelta(t, 0.3, *out.Metrics.Threshold, 1e-12)
	// AUC ranks raw heuristic scores: 0, 0.45, 0.15 positive vs 0 negative.
	require.NotNil(t, out.Metrics.AUC)
	assert.InDelta(t, 5.0/6.0, *out.Metrics.AUC, 1e-12)
}

func TestEvaluatePolicy_BadLabels(t *testing.T) {
	policy, err := inference.NewPolicy(classifier.Heuristic{}, 0.5)
	require.NoError(t, err)

	_, err = evaluatePolicy(policy, []model.FeatureVector{{}}, []int{3})
	assert.Error(t, err)
}

func TestLoadLabelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labelled.csv")
	csvData := "NAFAcademy,City,State,Company_internship,Target\n" +
		"yes,,,,1\n" +
		",Miami,FL,Verizon,1\n" +
		",Seattle,WA,,0\n"
	require.NoError(t, os.WriteFile(path, []byte(csvData), 0o644))

	cl := newTestClassifier(t, nil)
	X, y, err := loadLabelled(context.Background(), cl.Engineer, path, 2)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 1, 0}, y)
	require.Len(t, X, 3)
	assert.Equal(t, 1, X[0][model.FeatRuleDefinite])
	assert.Equal(t, 1, X[1][model.FeatInternshipMatch])
	assert.Equal(t, 1, X[1][model.FeatProxStrong])
	assert.Equal(t, model.FeatureVector{}, X[2])
}

func TestLoadLabelled_MissingTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unlabelled.csv")
	require.NoError(t, os.WriteFile(path, []byte("city,state\nMiami,FL\n"), 0o644))

	cl := newTestClassifier(t, nil)
	_, _, err := loadLabelled(context.Background(), cl.Engineer, path, 1)
	assert.ErrorIs(t, err, model.ErrMalformedLabel)
}
