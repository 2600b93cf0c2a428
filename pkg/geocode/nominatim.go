package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/naf-analyzer/internal/resilience"
)

const (
	defaultNominatimURL = "https://nominatim.openstreetmap.org"
	defaultUserAgent    = "naf-analyzer/1.0"
)

// nominatimPlace is one element of the search response.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NominatimOption configures a NominatimProvider.
type NominatimOption func(*NominatimProvider)

// WithBaseURL points the provider at a different Nominatim instance.
func WithBaseURL(u string) NominatimOption {
	return func(p *NominatimProvider) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// WithUserAgent sets the User-Agent header required by the public service.
func WithUserAgent(ua string) NominatimOption {
	return func(p *NominatimProvider) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) NominatimOption {
	return func(p *NominatimProvider) {
		p.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second budget.
func WithRateLimit(rps float64) NominatimOption {
	return func(p *NominatimProvider) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCountryCodes restricts matches to the given ISO 3166-1 codes.
func WithCountryCodes(codes ...string) NominatimOption {
	return func(p *NominatimProvider) {
		p.countryCodes = strings.ToLower(strings.Join(codes, ","))
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(b resilience.Backoff) NominatimOption {
	return func(p *NominatimProvider) {
		p.backoff = b
	}
}

// NominatimProvider geocodes through the OpenStreetMap Nominatim search API.
type NominatimProvider struct {
	baseURL      string
	userAgent    string
	countryCodes string
	httpClient   *http.Client
	limiter      *rate.Limiter
	backoff      resilience.Backoff
}

// NewNominatimProvider returns a provider limited to 1 request per second and
// US results, per the public service's usage policy.
func NewNominatimProvider(opts ...NominatimOption) *NominatimProvider {
	p := &NominatimProvider{
		baseURL:      defaultNominatimURL,
		userAgent:    defaultUserAgent,
		countryCodes: "us",
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		limiter:      rate.NewLimiter(1, 1),
		backoff:      resilience.DefaultBackoff(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.backoff.Name = "nominatim"
	return p
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Resolve implements Provider. Time spent queued behind the rate limiter
// does not count against ctx's deadline; each request instead gets the
// budget ctx had on entry.
func (p *NominatimProvider) Resolve(ctx context.Context, city, state string) (Location, error) {
	q := Query(city, state)
	if q == "" {
		return Unresolved, nil
	}

	var budget time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		budget = max(time.Until(deadline), time.Millisecond)
	}
	queued, stop := withoutDeadline(ctx)
	defer stop()

	return resilience.Retry(queued, p.backoff, func(ctx context.Context) (Location, error) {
		if err := p.limiter.Wait(ctx); err != nil {
			return Unresolved, resilience.Skipped(eris.Wrap(err, "geocode: nominatim rate limit"))
		}
		if budget > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, budget)
			defer cancel()
		}
		return p.search(ctx, q)
	})
}

// withoutDeadline returns a context that ignores parent's deadline but is
// still cancelled when parent is cancelled for any other reason.
func withoutDeadline(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(parent, func() {
		if !errors.Is(parent.Err(), context.DeadlineExceeded) {
			cancel()
		}
	})
	return ctx, func() {
		stop()
		cancel()
	}
}

func (p *NominatimProvider) search(ctx context.Context, q string) (Location, error) {
	params := url.Values{
		"q":      {q},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}
	if p.countryCodes != "" {
		params.Set("countrycodes", p.countryCodes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return Unresolved, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Unresolved, resilience.Transient(eris.Wrap(err, "geocode: nominatim request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
		if resilience.IsTransientStatus(resp.StatusCode) {
			return Unresolved, resilience.Transient(err, resp.StatusCode)
		}
		return Unresolved, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Unresolved, eris.Wrap(err, "geocode: nominatim read body")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return Unresolved, eris.Wrap(err, "geocode: nominatim parse response")
	}
	if len(places) == 0 {
		return Unresolved, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return Unresolved, eris.Wrapf(err, "geocode: nominatim bad latitude %q", places[0].Lat)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return Unresolved, eris.Wrapf(err, "geocode: nominatim bad longitude %q", places[0].Lon)
	}
	return Resolved(lat, lon), nil
}
