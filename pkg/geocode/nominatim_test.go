package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/naf-analyzer/internal/resilience"
)

func newTestNominatim(url string, opts ...NominatimOption) *NominatimProvider {
	base := []NominatimOption{WithBaseURL(url), WithRetry(noRetry())}
	p := NewNominatimProvider(append(base, opts...)...)
	p.limiter = rate.NewLimiter(rate.Inf, 1)
	return p
}

func TestNominatim_Match(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Miami, FL", r.URL.Query().Get("q"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "us", r.URL.Query().Get("countrycodes"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"25.7616798","lon":"-80.1917902","display_name":"Miami, Florida"}]`))
	}))
	defer srv.Close()

	p := newTestNominatim(srv.URL, WithUserAgent("test-agent"))
	loc, err := p.Resolve(context.Background(), "Miami", "FL")
	require.NoError(t, err)
	assert.True(t, loc.Resolved)
	assert.InDelta(t, 25.7616798, loc.Lat, 1e-9)
	assert.InDelta(t, -80.1917902, loc.Lon, 1e-9)
	assert.Equal(t, "nominatim", p.Name())
}

func TestNominatim_NoMatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	loc, err := newTestNominatim(srv.URL).Resolve(context.Background(), "Nowhere", "ZZ")
	require.NoError(t, err)
	assert.False(t, loc.Resolved)
}

func TestNominatim_EmptyQuery(t *testing.T) {
	t.Parallel()

	p := newTestNominatim("http://127.0.0.1:0")
	loc, err := p.Resolve(context.Background(), " ", "")
	require.NoError(t, err)
	assert.Equal(t, Unresolved, loc)
}

func TestNominatim_PermanentStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := newTestNominatim(srv.URL, WithRetry(fastRetry(3)))
	_, err := p.Resolve(context.Background(), "Miami", "FL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Equal(t, int64(1), calls.Load())
}

func TestNominatim_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[{"lat":"31.02","lon":"-87.49"}]`))
	}))
	defer srv.Close()

	p := newTestNominatim(srv.URL, WithRetry(fastRetry(3)))
	loc, err := p.Resolve(context.Background(), "Atmore", "AL")
	require.NoError(t, err)
	assert.True(t, loc.Resolved)
	assert.Equal(t, int64(2), calls.Load())
}

func TestNominatim_QueueingDoesNotSpendDeadline(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":"31.02","lon":"-87.49"}]`))
	}))
	defer srv.Close()

	p := newTestNominatim(srv.URL)
	p.limiter = rate.NewLimiter(rate.Every(200*time.Millisecond), 1)
	require.True(t, p.limiter.Allow())

	// The next token is 200ms away, past the 50ms deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	loc, err := p.Resolve(ctx, "Atmore", "AL")
	require.NoError(t, err)
	assert.True(t, loc.Resolved)
}

func TestNominatim_CancelledWhileQueued(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	p := newTestNominatim(srv.URL)
	p.limiter = rate.NewLimiter(rate.Every(time.Minute), 1)
	require.True(t, p.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := p.Resolve(ctx, "Atmore", "AL")
	require.Error(t, err)
	assert.True(t, resilience.IsSkipped(err))
	assert.Zero(t, calls.Load())
}

func TestNominatim_BadPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>`},
		{"bad lat", `[{"lat":"north","lon":"1"}]`},
		{"bad lon", `[{"lat":"1","lon":"west"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestNominatim(srv.URL).Resolve(context.Background(), "Miami", "FL")
			assert.Error(t, err)
		})
	}
}

func TestQueryAndKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Miami, FL", Query(" Miami ", "FL"))
	assert.Equal(t, "Miami", Query("Miami", ""))
	assert.Equal(t, "FL", Query("", "FL"))
	assert.Equal(t, "miami,fl", Key(" Miami", "FL "))
}

func TestLocation_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, Resolved(10, 20).Valid())
	assert.False(t, Unresolved.Valid())
	assert.False(t, Resolved(91, 0).Valid())
	assert.False(t, Resolved(0, 181).Valid())
}

func TestStaticProvider(t *testing.T) {
	t.Parallel()

	p := NewStaticProvider([]Place{{City: "Atmore", State: "AL", Lat: 31.02, Lon: -87.49}})
	assert.Equal(t, 1, p.Len())

	loc, err := p.Resolve(context.Background(), "atmore", "al")
	require.NoError(t, err)
	assert.True(t, loc.Resolved)

	loc, err = p.Resolve(context.Background(), "Mobile", "AL")
	require.NoError(t, err)
	assert.False(t, loc.Resolved)
}
