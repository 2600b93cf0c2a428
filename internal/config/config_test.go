package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/naf-analyzer/internal/classifier"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml or .env is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "naf.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1000, cfg.Server.MaxBatch)
	assert.Equal(t, 90, cfg.Reference.MatchThreshold)
	assert.InDelta(t, 80.0, cfg.Proximity.StrongKM, 0.001)
	assert.InDelta(t, 160.0, cfg.Proximity.WeakKM, 0.001)
	assert.InDelta(t, -1.0, cfg.Model.Threshold, 0.001)
	assert.InDelta(t, 0.5, cfg.Model.HeuristicThreshold, 0.001)
	assert.InDelta(t, 0.25, cfg.Model.Heuristic.HighSchool, 0.001)
	assert.InDelta(t, 0.05, cfg.Model.Heuristic.ProxWeak, 0.001)
	assert.InDelta(t, 1.0, cfg.Model.C, 0.001)
	assert.Equal(t, 300, cfg.Model.MaxIter)
	assert.Equal(t, classifier.DefaultTrainOptions().MaxIter, cfg.Model.MaxIter)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Geocode.BaseURL)
	assert.Equal(t, []string{"us"}, cfg.Geocode.CountryCodes)
	assert.Equal(t, 10, cfg.Geocode.TimeoutSecs)
	assert.False(t, cfg.Geocode.Offline)

	assert.NoError(t, cfg.Validate("classify"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/naf
log:
  level: debug
  format: console
reference:
  high_schools: schools.yaml
proximity:
  strong_km: 50
batch:
  concurrency: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/naf", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, "schools.yaml", cfg.Reference.Paths().HighSchools)
	assert.InDelta(t, 50.0, cfg.Proximity.Tiers().StrongKM, 0.001)
	// Defaults still apply for unset values
	assert.InDelta(t, 160.0, cfg.Proximity.Tiers().WeakKM, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("NAF_STORE_DRIVER", "sqlite")
	t.Setenv("NAF_LOG_LEVEL", "warn")
	t.Setenv("NAF_MODEL_THRESHOLD", "0.35")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.InDelta(t, 0.35, cfg.Model.Threshold, 0.001)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NAF_SERVER_PORT=3000\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("NAF_SERVER_PORT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("NAF_GEOCODE_OFFLINE", "true")
	t.Setenv("NAF_PROXIMITY_WEAK_KM", "200")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Geocode.Offline)
	assert.InDelta(t, 200.0, cfg.Proximity.WeakKM, 0.001)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Reference.MatchThreshold = 90
	cfg.Model.Threshold = -1
	cfg.Model.HeuristicThreshold = 0.5
	cfg.Geocode.RateLimit = 1
	cfg.Proximity.StrongKM = 80
	cfg.Proximity.WeakKM = 160
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = "naf.db"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("classify"))
	assert.NoError(t, validDefaults().Validate("serve"))
}

func TestValidate_CollectsProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Proximity.StrongKM = 200
	cfg.Reference.MatchThreshold = 0
	cfg.Model.Threshold = 1.5
	cfg.Batch.Concurrency = -1

	err := cfg.Validate("classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strong tier")
	assert.Contains(t, err.Error(), "reference.match_threshold")
	assert.Contains(t, err.Error(), "model.threshold")
	assert.Contains(t, err.Error(), "batch.concurrency")
}

func TestValidate_ThresholdBoundaries(t *testing.T) {
	for _, thr := range []float64{-1, 0, 1} {
		cfg := validDefaults()
		cfg.Model.Threshold = thr
		assert.NoError(t, cfg.Validate("classify"), "threshold %v", thr)
	}
}

func TestValidate_OfflineSkipsRateLimit(t *testing.T) {
	cfg := validDefaults()
	cfg.Geocode.RateLimit = 0
	assert.Error(t, cfg.Validate("classify"))

	cfg.Geocode.Offline = true
	assert.NoError(t, cfg.Validate("classify"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")

	// Port is only checked for serve
	assert.NoError(t, cfg.Validate("classify"))
}

func TestValidatePersist_Store(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("persist")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url")

	cfg.Store.DatabaseURL = "postgres://localhost/naf"
	assert.NoError(t, cfg.Validate("persist"))

	cfg.Store.Driver = "mysql"
	err = cfg.Validate("persist")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}
