package geocode

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/naf-analyzer/internal/resilience"
)

// CascadeClient tries providers in order until one resolves the location.
// Each provider sits behind its own circuit breaker.
type CascadeClient struct {
	providers []Provider
	breakers  []*resilience.Breaker
	observer  Observer
}

// CascadeOption configures a CascadeClient.
type CascadeOption func(*cascadeConfig)

type cascadeConfig struct {
	threshold int
	cooldown  time.Duration
	observer  Observer
}

// WithBreaker sets the failure threshold and cool-down of every provider's
// breaker.
func WithBreaker(threshold int, cooldown time.Duration) CascadeOption {
	return func(c *cascadeConfig) {
		c.threshold = threshold
		c.cooldown = cooldown
	}
}

// WithCascadeObserver reports provider latency.
func WithCascadeObserver(o Observer) CascadeOption {
	return func(c *cascadeConfig) {
		c.observer = o
	}
}

// NewCascadeClient builds a cascade over providers.
func NewCascadeClient(providers []Provider, opts ...CascadeOption) *CascadeClient {
	cfg := cascadeConfig{threshold: 5, cooldown: time.Minute}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &CascadeClient{
		providers: providers,
		breakers:  make([]*resilience.Breaker, len(providers)),
		observer:  cfg.observer,
	}
	for i, p := range providers {
		c.breakers[i] = resilience.NewBreaker("geocode."+p.Name(), cfg.threshold, cfg.cooldown)
	}
	return c
}

// Name implements Provider.
func (c *CascadeClient) Name() string { return "cascade" }

// Resolve implements Provider. The first resolved answer wins. When every
// provider answered without a match the result is a definitive miss; when
// at least one provider failed and none matched, the last failure is
// returned.
func (c *CascadeClient) Resolve(ctx context.Context, city, state string) (Location, error) {
	if len(c.providers) == 0 {
		return Unresolved, eris.New("geocode: no providers configured")
	}

	var lastErr error
	for i, p := range c.providers {
		start := time.Now()
		loc, err := resilience.Call(ctx, c.breakers[i], func(ctx context.Context) (Location, error) {
			return p.Resolve(ctx, city, state)
		})
		if c.observer != nil {
			c.observer.ProviderLatency(p.Name(), time.Since(start))
		}
		if err != nil {
			zap.L().Debug("geocode: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		if loc.Valid() {
			return loc, nil
		}
	}

	if lastErr != nil {
		return Unresolved, lastErr
	}
	return Unresolved, nil
}
