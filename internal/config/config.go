package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/naf-analyzer/internal/classifier"
	"github.com/sells-group/naf-analyzer/internal/proximity"
	"github.com/sells-group/naf-analyzer/internal/refdata"
)

// Config holds the full application configuration.
type Config struct {
	Reference ReferenceConfig `yaml:"reference" mapstructure:"reference"`
	Model     ModelConfig     `yaml:"model" mapstructure:"model"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Proximity ProximityConfig `yaml:"proximity" mapstructure:"proximity"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ReferenceConfig locates the reference lists and sets the fuzzy match cut-off.
type ReferenceConfig struct {
	HighSchools    string `yaml:"high_schools" mapstructure:"high_schools"`
	Companies      string `yaml:"companies" mapstructure:"companies"`
	Academies      string `yaml:"academies" mapstructure:"academies"`
	Places         string `yaml:"places" mapstructure:"places"`
	MatchThreshold int    `yaml:"match_threshold" mapstructure:"match_threshold"`
}

// Paths returns the reference file locations.
func (r ReferenceConfig) Paths() refdata.Paths {
	return refdata.Paths{
		HighSchools: r.HighSchools,
		Companies:   r.Companies,
		Academies:   r.Academies,
		Places:      r.Places,
	}
}

// ModelConfig selects the scorer and its decision threshold.
type ModelConfig struct {
	ArtifactPath string `yaml:"artifact_path" mapstructure:"artifact_path"`
	// Threshold overrides the artifact's threshold when in [0,1]. A negative
	// value keeps the artifact's.
	Threshold          float64                     `yaml:"threshold" mapstructure:"threshold"`
	HeuristicThreshold float64                     `yaml:"heuristic_threshold" mapstructure:"heuristic_threshold"`
	Heuristic          classifier.HeuristicWeights `yaml:"heuristic" mapstructure:"heuristic"`
	C                  float64                     `yaml:"c" mapstructure:"c"`
	MaxIter            int                         `yaml:"max_iter" mapstructure:"max_iter"`
}

// GeocodeConfig configures the geocoding chain.
type GeocodeConfig struct {
	Offline             bool     `yaml:"offline" mapstructure:"offline"`
	BaseURL             string   `yaml:"base_url" mapstructure:"base_url"`
	UserAgent           string   `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit           float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	CountryCodes        []string `yaml:"country_codes" mapstructure:"country_codes"`
	TimeoutSecs         int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CachePath           string   `yaml:"cache_path" mapstructure:"cache_path"`
	BreakerThreshold    int      `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int      `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// ProximityConfig sets the distance tiers and the academy search radius.
type ProximityConfig struct {
	StrongKM       float64 `yaml:"strong_km" mapstructure:"strong_km"`
	WeakKM         float64 `yaml:"weak_km" mapstructure:"weak_km"`
	SearchRadiusKM float64 `yaml:"search_radius_km" mapstructure:"search_radius_km"`
}

// Tiers returns the proximity cut-offs.
func (p ProximityConfig) Tiers() proximity.Tiers {
	return proximity.Tiers{StrongKM: p.StrongKM, WeakKM: p.WeakKM}
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// StoreConfig configures the classification store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
	MaxBatch            int      `yaml:"max_batch" mapstructure:"max_batch"`
	CORSOrigins         []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NAF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key is registered so AutomaticEnv can override it.
	v.SetDefault("reference.high_schools", "")
	v.SetDefault("reference.companies", "")
	v.SetDefault("reference.academies", "")
	v.SetDefault("reference.places", "")
	v.SetDefault("reference.match_threshold", 90)
	v.SetDefault("model.artifact_path", "")
	v.SetDefault("model.threshold", -1.0)
	v.SetDefault("model.heuristic_threshold", 0.5)
	hw := classifier.DefaultHeuristicWeights()
	v.SetDefault("model.heuristic.high_school", hw.HighSchool)
	v.SetDefault("model.heuristic.internship", hw.Internship)
	v.SetDefault("model.heuristic.job", hw.Job)
	v.SetDefault("model.heuristic.prox_strong", hw.ProxStrong)
	v.SetDefault("model.heuristic.prox_weak", hw.ProxWeak)
	v.SetDefault("model.c", 1.0)
	v.SetDefault("model.max_iter", 300)
	v.SetDefault("geocode.offline", false)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "naf-analyzer/1.0")
	v.SetDefault("geocode.rate_limit", 1.0)
	v.SetDefault("geocode.country_codes", []string{"us"})
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.cache_path", "")
	v.SetDefault("geocode.breaker_threshold", 5)
	v.SetDefault("geocode.breaker_cooldown_secs", 60)
	v.SetDefault("proximity.strong_km", 80.0)
	v.SetDefault("proximity.weak_km", 160.0)
	v.SetDefault("proximity.search_radius_km", 0.0)
	v.SetDefault("batch.concurrency", 0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.path", "naf.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout_secs", 15)
	v.SetDefault("server.max_batch", 1000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is the command name;
// "serve" additionally checks the listener, "persist" the store.
func (c *Config) Validate(mode string) error {
	var problems []string

	if err := c.Proximity.Tiers().Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Proximity.SearchRadiusKM < 0 {
		problems = append(problems, "proximity.search_radius_km must not be negative")
	}
	if c.Reference.MatchThreshold <= 0 || c.Reference.MatchThreshold > 100 {
		problems = append(problems, "reference.match_threshold must be in (0,100]")
	}
	if c.Model.Threshold > 1 {
		problems = append(problems, "model.threshold must be at most 1 (negative keeps the artifact's)")
	}
	if c.Model.HeuristicThreshold < 0 || c.Model.HeuristicThreshold > 1 {
		problems = append(problems, "model.heuristic_threshold must be in [0,1]")
	}
	if c.Batch.Concurrency < 0 {
		problems = append(problems, "batch.concurrency must not be negative")
	}
	if !c.Geocode.Offline && c.Geocode.RateLimit <= 0 {
		problems = append(problems, "geocode.rate_limit must be positive")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be in 1-65535")
		}
		problems = append(problems, c.validateStore()...)
	case "persist":
		problems = append(problems, c.validateStore()...)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return []string{"store.path is required for sqlite"}
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required for postgres"}
		}
	default:
		return []string{"store.driver must be sqlite or postgres"}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
