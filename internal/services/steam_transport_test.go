package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// startRecorder wraps a RoundTripper and records when each attempt starts.
type startRecorder struct {
	next   http.RoundTripper
	mu     sync.Mutex
	starts []time.Time
}

func (r *startRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	r.mu.Lock()
	r.starts = append(r.starts, time.Now())
	r.mu.Unlock()
	return r.next.RoundTrip(req)
}

func (r *startRecorder) sortedStarts() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]time.Time(nil), r.starts...)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Timer wake-ups can land a little after the reserved slot for one request
// and right on it for the next; the tolerance absorbs that scheduling jitter.
const spacingTolerance = 5 * time.Millisecond

func assertSpacing(t *testing.T, starts []time.Time, interval time.Duration) {
	t.Helper()
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.GreaterOrEqual(t, gap, interval-spacingTolerance, "gap between request %d and %d", i-1, i)
	}
}

func newTestTransport(next http.RoundTripper, interval, retryDelay time.Duration, attempts int) *SteamTransport {
	return NewSteamTransport(next, SteamTransportConfig{
		MinInterval: interval,
		RetryDelay:  retryDelay,
		MaxAttempts: attempts,
	}, zap.NewNop())
}

func TestSteamTransportSpacesSequentialRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	interval := 100 * time.Millisecond
	recorder := &startRecorder{next: http.DefaultTransport}
	client := newTestTransport(recorder, interval, 10*time.Millisecond, 3).Client()

	for i := 0; i < 4; i++ {
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}

	starts := recorder.sortedStarts()
	require.Len(t, starts, 4)
	assertSpacing(t, starts, interval)
}

func TestSteamTransportSpacesConcurrentRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	interval := 80 * time.Millisecond
	recorder := &startRecorder{next: http.DefaultTransport}
	client := newTestTransport(recorder, interval, 10*time.Millisecond, 3).Client()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Get(server.URL)
			if err == nil {
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	starts := recorder.sortedStarts()
	require.Len(t, starts, 6)
	assertSpacing(t, starts, interval)
	assert.GreaterOrEqual(t, starts[5].Sub(starts[0]), 5*interval-spacingTolerance)
}

func TestSteamTransportRetriesThrottledThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestTransport(nil, time.Millisecond, 20*time.Millisecond, 3).Client()

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSteamTransportReturnsLastThrottledResponse(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	retryDelay := 40 * time.Millisecond
	recorder := &startRecorder{next: http.DefaultTransport}
	client := newTestTransport(recorder, time.Millisecond, retryDelay, 3).Client()

	resp, err := client.Get(server.URL)
	require.NoError(t, err, "exhausted retries must not be reported as an error")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())

	starts := recorder.sortedStarts()
	require.Len(t, starts, 3)
	assertSpacing(t, starts, retryDelay)
}

func TestSteamTransportDoesNotRetryOtherErrors(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusForbidden, http.StatusInternalServerError} {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(status)
		}))

		client := newTestTransport(nil, time.Millisecond, time.Millisecond, 3).Client()
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, status, resp.StatusCode)
		assert.Equal(t, int32(1), calls.Load(), "status %d", status)
		server.Close()
	}
}

func TestSteamTransportHonoursCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := newTestTransport(nil, time.Hour, time.Millisecond, 3)
	client := transport.Client()

	// First request consumes the only token
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	_, err = client.Do(req)
	assert.Error(t, err)
}

func TestSteamTransportReportsUnreachableSlotAsDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := newTestTransport(nil, time.Hour, time.Millisecond, 3)
	client := transport.Client()

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	// The next slot is an hour away, far past this deadline
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Do(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "fails without waiting for the deadline")
}

func TestSteamTransportDefaults(t *testing.T) {
	transport := NewSteamTransport(nil, SteamTransportConfig{}, nil)
	assert.Equal(t, DefaultSteamMaxAttempts, transport.maxAttempts)
	assert.Equal(t, DefaultSteamRetryDelay, transport.retryDelay)
	assert.InDelta(t, 1/DefaultSteamMinInterval.Seconds(), float64(transport.limiter.Limit()), 1e-9)
}

func TestSteamEndpoint(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://steamcommunity.com/inventory/76561198000000001/730/2", "inventory"},
		{"https://steamcommunity.com/market/priceoverview/?appid=730", "priceoverview"},
		{"https://steamcommunity.com/id/gaben?xml=1", "profile"},
		{"https://steamcommunity.com/profiles/76561198000000001?xml=1", "profile"},
		{"https://steamcommunity.com/", "other"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.url, nil)
		assert.Equal(t, tt.expected, steamEndpoint(req), tt.url)
	}
}
