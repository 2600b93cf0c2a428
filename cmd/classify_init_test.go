package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/naf-analyzer/internal/classifier"
	"github.com/sells-group/naf-analyzer/internal/metrics"
	"github.com/sells-group/naf-analyzer/internal/model"
	"github.com/sells-group/naf-analyzer/internal/store"
)

func TestInitScorer_HeuristicFallback(t *testing.T) {
	withConfig(t, testConfig(t))

	s, thr, a, err := initScorer()
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.IsType(t, classifier.Heuristic{}, s)
	assert.InDelta(t, 0.4, thr, 1e-12)

	cfg.Model.Threshold = 0.7
	_, thr, _, err = initScorer()
	require.NoError(t, err)
	assert.InDelta(t, 0.7, thr, 1e-12)
}

func TestInitScorer_Artifact(t *testing.T) {
	c := testConfig(t)
	withConfig(t, c)

	m := &classifier.Logistic{Bias: -2}
	m.Weights[model.FeatHighSchoolMatch] = 3
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, classifier.SaveArtifact(path, classifier.NewArtifact(m, 0.62)))
	c.Model.ArtifactPath = path

	s, thr, a, err := initScorer()
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.IsType(t, &classifier.Logistic{}, s)
	assert.InDelta(t, 0.62, thr, 1e-12)

	c.Model.Threshold = 0
	_, thr, _, err = initScorer()
	require.NoError(t, err)
	assert.Zero(t, thr)

	c.Model.ArtifactPath = filepath.Join(t.TempDir(), "missing.json")
	_, _, _, err = initScorer()
	assert.Error(t, err)
}

func TestInitClassifier_Offline(t *testing.T) {
	c := testConfig(t)
	c.Geocode.CachePath = filepath.Join(t.TempDir(), "geocode.db")
	withConfig(t, c)

	m := metrics.New()
	env, err := initClassifier(context.Background(), envOptions{Offline: true, Metrics: m})
	require.NoError(t, err)
	defer env.Close()

	assert.Nil(t, env.Artifact)
	assert.Equal(t, 3, env.Refs.Companies.Len())

	// No places are configured, so offline lookups stay unresolved.
	cl := env.Classifier.Classify(context.Background(), model.Profile{
		City:  model.Text("Miami"),
		State: model.Text("FL"),
	})
	assert.Empty(t, cl.Error)
	assert.Equal(t, 0, cl.Features[model.FeatProxStrong])
}

func TestInitStore_SQLite(t *testing.T) {
	withConfig(t, testConfig(t))

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, ok := st.(*store.SQLiteStore)
	assert.True(t, ok)

	n, err := st.SaveClassifications(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInitStore_UnknownDriver(t *testing.T) {
	c := testConfig(t)
	c.Store.Driver = "mysql"
	withConfig(t, c)

	_, err := initStore(context.Background())
	assert.Error(t, err)
}

func TestInitProfileSource_RequiresURL(t *testing.T) {
	withConfig(t, testConfig(t))

	_, err := initProfileSource(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")
}
