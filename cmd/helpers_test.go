package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/naf-analyzer/internal/classifier"
	"github.com/sells-group/naf-analyzer/internal/config"
	"github.com/sells-group/naf-analyzer/internal/features"
	"github.com/sells-group/naf-analyzer/internal/inference"
	"github.com/sells-group/naf-analyzer/internal/metrics"
	"github.com/sells-group/naf-analyzer/internal/refdata"
	"github.com/sells-group/naf-analyzer/internal/store"
	"github.com/sells-group/naf-analyzer/pkg/geocode"
)

var testPlaces = []geocode.Place{
	{City: "Miami", State: "FL", Lat: 25.7617, Lon: -80.1918},
	{City: "West Palm Beach", State: "FL", Lat: 26.7153, Lon: -80.0534},
	{City: "Seattle", State: "WA", Lat: 47.6062, Lon: -122.3321},
}

// testConfig returns the loaded defaults, offline, with a temp SQLite store.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Reference: config.ReferenceConfig{MatchThreshold: 90},
		Model: config.ModelConfig{
			Threshold:          -1,
			HeuristicThreshold: 0.4,
			Heuristic:          classifier.DefaultHeuristicWeights(),
			C:                  1,
		},
		Geocode: config.GeocodeConfig{
			Offline:             true,
			TimeoutSecs:         5,
			BreakerThreshold:    5,
			BreakerCooldownSecs: 60,
		},
		Proximity: config.ProximityConfig{StrongKM: 80, WeakKM: 160},
		Store:     config.StoreConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "naf.db")},
		Server:    config.ServerConfig{Port: 8080, MaxBatch: 10, ShutdownTimeoutSecs: 1},
		Log:       config.LogConfig{Level: "info", Format: "json"},
	}
}

// withConfig installs c as the global config for the duration of the test.
func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

// newTestClassifier builds a heuristic classifier over the built-in
// reference data and a static geocoder.
func newTestClassifier(t *testing.T, m *metrics.Metrics) *inference.Classifier {
	t.Helper()
	refs, err := refdata.Load(context.Background(), refdata.Paths{}, 0)
	require.NoError(t, err)

	eng := features.New(features.Deps{
		Schools:   refs.Schools,
		Companies: refs.Companies,
		Academies: refs.Academies,
		Geocoder:  geocode.NewCache(geocode.NewStaticProvider(testPlaces)),
	})
	policy, err := inference.NewPolicy(classifier.Heuristic{Weights: classifier.DefaultHeuristicWeights()}, 0.4)
	require.NoError(t, err)

	return &inference.Classifier{Engineer: eng, Policy: policy, Metrics: m}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "naf.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}
