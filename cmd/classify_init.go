package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/naf-analyzer/internal/classifier"
	"github.com/sells-group/naf-analyzer/internal/features"
	"github.com/sells-group/naf-analyzer/internal/fuzzy"
	"github.com/sells-group/naf-analyzer/internal/inference"
	"github.com/sells-group/naf-analyzer/internal/metrics"
	"github.com/sells-group/naf-analyzer/internal/refdata"
	"github.com/sells-group/naf-analyzer/internal/store"
	"github.com/sells-group/naf-analyzer/pkg/geocode"
)

// featureEnv holds the reference data and geocoder behind the feature
// engineer. Callers should defer env.Close().
type featureEnv struct {
	Refs     *refdata.Set
	Geocoder *geocode.Cache
	Engineer *features.Engineer
	Metrics  *metrics.Metrics // may be nil

	persister *geocode.BoltPersister
}

// Close releases the persistent geocode cache.
func (fe *featureEnv) Close() {
	if fe.persister != nil {
		if err := fe.persister.Close(); err != nil {
			zap.L().Warn("close geocode cache", zap.Error(err))
		}
	}
}

// classifyEnv adds the scorer and inference policy to a featureEnv.
type classifyEnv struct {
	*featureEnv
	Classifier *inference.Classifier
	Artifact   *classifier.Artifact // nil when the heuristic scorer is used
}

// envOptions tunes initFeatures for a command.
type envOptions struct {
	Offline bool
	Metrics *metrics.Metrics
}

// initFeatures loads reference data and builds the geocode chain and the
// feature engineer.
func initFeatures(ctx context.Context, opts envOptions) (*featureEnv, error) {
	refs, err := refdata.Load(ctx, cfg.Reference.Paths(), cfg.Proximity.SearchRadiusKM)
	if err != nil {
		return nil, eris.Wrap(err, "load reference data")
	}
	m := opts.Metrics
	m.SetReferenceSize("high_schools", refs.Schools.Len())
	m.SetReferenceSize("companies", refs.Companies.Len())
	m.SetReferenceSize("academies", refs.Academies.Len())
	m.SetReferenceSize("places", len(refs.Places))

	cache, persister, err := initGeocoder(refs.Places, opts.Offline || cfg.Geocode.Offline, m)
	if err != nil {
		return nil, err
	}

	eng := features.New(features.Deps{
		Schools:   refs.Schools,
		Companies: refs.Companies,
		Academies: refs.Academies,
		Tiers:     cfg.Proximity.Tiers(),
		Matcher:   fuzzy.NewMatcher(float64(cfg.Reference.MatchThreshold)),
		Geocoder:  cache,
	})

	return &featureEnv{
		Refs:      refs,
		Geocoder:  cache,
		Engineer:  eng,
		Metrics:   m,
		persister: persister,
	}, nil
}

// initGeocoder builds the coordinate cache. Offline mode resolves from the
// static place list only; otherwise Nominatim backs the static list.
func initGeocoder(places []geocode.Place, offline bool, m *metrics.Metrics) (*geocode.Cache, *geocode.BoltPersister, error) {
	timeout := time.Duration(cfg.Geocode.TimeoutSecs) * time.Second
	providers := []geocode.Provider{geocode.NewStaticProvider(places)}
	if !offline {
		providers = append(providers, geocode.NewNominatimProvider(
			geocode.WithHTTPClient(&http.Client{Timeout: timeout}),
			geocode.WithBaseURL(cfg.Geocode.BaseURL),
			geocode.WithUserAgent(cfg.Geocode.UserAgent),
			geocode.WithRateLimit(cfg.Geocode.RateLimit),
			geocode.WithCountryCodes(cfg.Geocode.CountryCodes...),
		))
	} else {
		zap.L().Info("geocoding offline, static places only", zap.Int("places", len(places)))
	}

	cascadeOpts := []geocode.CascadeOption{
		geocode.WithBreaker(cfg.Geocode.BreakerThreshold, time.Duration(cfg.Geocode.BreakerCooldownSecs)*time.Second),
	}
	cacheOpts := []geocode.CacheOption{
		geocode.WithTimeout(timeout),
	}
	if m != nil {
		cascadeOpts = append(cascadeOpts, geocode.WithCascadeObserver(m))
		cacheOpts = append(cacheOpts, geocode.WithObserver(m))
	}

	var persister *geocode.BoltPersister
	if cfg.Geocode.CachePath != "" {
		p, err := geocode.OpenBoltPersister(cfg.Geocode.CachePath)
		if err != nil {
			return nil, nil, eris.Wrap(err, "open geocode cache")
		}
		persister = p
		cacheOpts = append(cacheOpts, geocode.WithPersister(p))
	}

	cascade := geocode.NewCascadeClient(providers, cascadeOpts...)
	return geocode.NewCache(cascade, cacheOpts...), persister, nil
}

// initScorer loads the configured artifact, or falls back to the heuristic
// scorer when none is configured. The returned threshold already has the
// config override applied.
func initScorer() (classifier.Scorer, float64, *classifier.Artifact, error) {
	if cfg.Model.ArtifactPath == "" {
		threshold := cfg.Model.HeuristicThreshold
		if cfg.Model.Threshold >= 0 {
			threshold = cfg.Model.Threshold
		}
		zap.L().Warn("no model artifact configured, using heuristic scorer",
			zap.Float64("threshold", threshold),
		)
		return classifier.Heuristic{Weights: cfg.Model.Heuristic}, threshold, nil, nil
	}

	a, err := classifier.LoadArtifact(cfg.Model.ArtifactPath)
	if err != nil {
		return nil, 0, nil, eris.Wrap(err, "load model artifact")
	}
	m, err := a.Model()
	if err != nil {
		return nil, 0, nil, eris.Wrap(err, "load model artifact")
	}
	threshold := a.Threshold
	if cfg.Model.Threshold >= 0 {
		threshold = cfg.Model.Threshold
	}
	zap.L().Info("model artifact loaded",
		zap.String("path", cfg.Model.ArtifactPath),
		zap.Time("trained_at", a.TrainedAt),
		zap.Float64("threshold", threshold),
	)
	return m, threshold, a, nil
}

// initClassifier builds the full classification environment. Callers should
// defer env.Close().
func initClassifier(ctx context.Context, opts envOptions) (*classifyEnv, error) {
	scorer, threshold, artifact, err := initScorer()
	if err != nil {
		return nil, err
	}
	policy, err := inference.NewPolicy(scorer, threshold)
	if err != nil {
		return nil, err
	}

	fe, err := initFeatures(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &classifyEnv{
		featureEnv: fe,
		Classifier: &inference.Classifier{
			Engineer: fe.Engineer,
			Policy:   policy,
			Metrics:  opts.Metrics,
		},
		Artifact: artifact,
	}, nil
}

// initStore opens the configured classification store and applies its
// schema. Callers should defer st.Close().
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.Path)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initProfileSource connects to the crawler database. It always uses
// Postgres, whatever the result store driver.
func initProfileSource(ctx context.Context) (*store.PostgresStore, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("store.database_url is required to read crawler profiles (NAF_STORE_DATABASE_URL)")
	}
	ps, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "connect crawler database")
	}
	return ps, nil
}
