package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/codyseavey/inventory-valuator/internal/metrics"
)

const (
	DefaultSteamMinInterval = 1500 * time.Millisecond
	DefaultSteamRetryDelay  = 3 * time.Second
	DefaultSteamMaxAttempts = 3
)

// SteamTransportConfig tunes the shared Steam gate. Zero values fall back to
// the defaults above.
type SteamTransportConfig struct {
	MinInterval time.Duration
	RetryDelay  time.Duration
	MaxAttempts int
	// ResponseTimeout bounds each attempt's wait for response headers. It
	// does not include time spent queued behind the limiter.
	ResponseTimeout time.Duration
}

// SteamTransport is an http.RoundTripper shared by every Steam client in the
// process. It spaces request starts at least MinInterval apart across all
// callers and retries 429 responses after a fixed delay.
//
// When every attempt is throttled, the last 429 response is returned with a
// nil error; callers inspect the status code.
type SteamTransport struct {
	next        http.RoundTripper
	limiter     *rate.Limiter
	retryDelay  time.Duration
	maxAttempts int
	logger      *zap.Logger
}

// NewSteamTransport wraps next. When next is nil a clone of
// http.DefaultTransport with cfg.ResponseTimeout is used.
func NewSteamTransport(next http.RoundTripper, cfg SteamTransportConfig, logger *zap.Logger) *SteamTransport {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultSteamMinInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultSteamRetryDelay
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultSteamMaxAttempts
	}
	if next == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		base.ResponseHeaderTimeout = cfg.ResponseTimeout
		next = base
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SteamTransport{
		next: next,
		// Burst 1: the first request goes out immediately, every following
		// start is reserved MinInterval after the previous reservation.
		limiter:     rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		retryDelay:  cfg.RetryDelay,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger.Named("SteamTransport"),
	}
}

// Client returns an http.Client that sends through this transport. It has no
// overall timeout because queueing behind the limiter can legitimately take
// long; callers bound the whole operation with their context.
func (t *SteamTransport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// RoundTrip implements http.RoundTripper.
func (t *SteamTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := steamEndpoint(req)

	for attempt := 1; ; attempt++ {
		// The limiter reserves the slot under its own lock; the sleep
		// happens outside it
		waitStart := time.Now()
		if err := t.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("waiting for steam rate limiter: %w", ctxErr)
			}
			// Wait fails early when the reserved slot lies past the deadline
			return nil, fmt.Errorf("waiting for steam rate limiter: %w (%v)", context.DeadlineExceeded, err)
		}
		metrics.SteamRateLimitWait.Observe(time.Since(waitStart).Seconds())

		attemptReq := req
		if attempt > 1 {
			var err error
			if attemptReq, err = rewindRequest(req); err != nil {
				return nil, err
			}
		}

		resp, err := t.next.RoundTrip(attemptReq)
		if err != nil {
			metrics.SteamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
			return nil, err
		}
		metrics.SteamRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		metrics.SteamThrottledTotal.Inc()
		t.logger.Warn("Steam returned 429 (Too Many Requests)",
			zap.String("method", req.Method),
			zap.String("url", req.URL.Redacted()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", t.maxAttempts))

		if attempt >= t.maxAttempts {
			metrics.SteamRetriesExhaustedTotal.Inc()
			t.logger.Error("Steam still returned 429 after all attempts",
				zap.String("method", req.Method),
				zap.String("url", req.URL.Redacted()),
				zap.Int("max_attempts", t.maxAttempts))
			return resp, nil
		}

		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		timer := time.NewTimer(t.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// rewindRequest clones req for another attempt, restoring its body if any.
func rewindRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("cannot retry %s %s: request body is not rewindable", req.Method, req.URL.Redacted())
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to rewind request body: %w", err)
	}
	clone.Body = body
	return clone, nil
}

func steamEndpoint(req *http.Request) string {
	path := req.URL.Path
	switch {
	case strings.Contains(path, "/inventory/"):
		return "inventory"
	case strings.Contains(path, "/market/priceoverview"):
		return "priceoverview"
	case strings.HasPrefix(path, "/id/"), strings.HasPrefix(path, "/profiles/"):
		return "profile"
	default:
		return "other"
	}
}
