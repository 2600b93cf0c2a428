package geocode

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sells-group/naf-analyzer/internal/resilience"
)

// noRetry keeps provider tests to a single attempt with no sleeping.
func noRetry() resilience.Backoff {
	return resilience.Backoff{Attempts: 1}
}

// fastRetry retries quickly for transient-status tests.
func fastRetry(n int) resilience.Backoff {
	return resilience.Backoff{Attempts: n, Initial: time.Millisecond, Max: time.Millisecond}
}

// mockProvider is a scripted Provider that counts calls.
type mockProvider struct {
	name  string
	loc   Location
	err   error
	delay time.Duration
	calls atomic.Int64
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Resolve(ctx context.Context, _, _ string) (Location, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return Unresolved, ctx.Err()
		}
	}
	return m.loc, m.err
}

// recordingObserver captures observer events.
type recordingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
	latency  map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{outcomes: map[string]int{}, latency: map[string]int{}}
}

func (r *recordingObserver) CacheLookup(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[outcome]++
}

func (r *recordingObserver) ProviderLatency(provider string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latency[provider]++
}

func (r *recordingObserver) count(outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcomes[outcome]
}

// memPersister is an in-memory Persister.
type memPersister struct {
	mu   sync.Mutex
	data map[string]Location
	err  error
}

func newMemPersister() *memPersister {
	return &memPersister{data: map[string]Location{}}
}

func (m *memPersister) Get(key string) (Location, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Unresolved, false, m.err
	}
	loc, ok := m.data[key]
	return loc, ok, nil
}

func (m *memPersister) Put(key string, loc Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = loc
	return nil
}
