package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/codyseavey/inventory-valuator/internal/metrics"
	"github.com/codyseavey/inventory-valuator/internal/models"
)

const (
	defaultRevalueBatchSize  = 5
	defaultRevalueStaleAfter = 24 * time.Hour
	defaultRevalueBackoff    = 6 * time.Hour

	// maxRecentFailures bounds the failure list reported by GetStatus
	maxRecentFailures = 20
)

type AccountValuer interface {
	ValueAccount(ctx context.Context, steamID string) (*models.ValuationResult, error)
}

type StaleValuationLister interface {
	Stale(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
}

// FailedRevaluation is an account whose background revaluation failed
type FailedRevaluation struct {
	SteamID64 string    `json:"steam_id64"`
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failed_at"`
}

type RevaluationConfig struct {
	// Interval between periodic refreshes of stale valuations. Zero
	// disables them; queued refreshes still run.
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int

	// FailureBackoff keeps an account that failed out of stale picks for
	// this long. Queued refreshes ignore it.
	FailureBackoff time.Duration
}

// RevaluationWorker keeps stored valuations fresh in the background. Users
// can push accounts to the front through QueueRefresh.
type RevaluationWorker struct {
	valuer     AccountValuer
	store      StaleValuationLister
	interval   time.Duration
	staleAfter time.Duration
	batchSize  int
	backoff    time.Duration
	logger     *zap.Logger

	// Priority queue for user-requested refreshes
	urgentQueue []string
	urgentMu    sync.Mutex
	wake        chan struct{}

	// Stats (reset at midnight)
	mu             sync.RWMutex
	valuedToday    int
	lastRunTime    time.Time
	lastStatsDay   time.Time
	recentFailures []FailedRevaluation
	retryAfter     map[string]time.Time
}

type RevaluationStatus struct {
	LastRunTime    time.Time           `json:"last_run_time"`
	NextRunTime    *time.Time          `json:"next_run_time,omitempty"`
	ValuedToday    int                 `json:"valued_today"`
	BatchSize      int                 `json:"batch_size"`
	QueueSize      int                 `json:"queue_size"`
	StaleAfter     string              `json:"stale_after"`
	RecentFailures []FailedRevaluation `json:"recent_failures,omitempty"`
}

func NewRevaluationWorker(valuer AccountValuer, store StaleValuationLister, cfg RevaluationConfig, logger *zap.Logger) *RevaluationWorker {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = defaultRevalueBatchSize
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultRevalueStaleAfter
	}
	if cfg.FailureBackoff <= 0 {
		cfg.FailureBackoff = defaultRevalueBackoff
	}
	if cfg.Interval < 0 {
		cfg.Interval = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RevaluationWorker{
		valuer:     valuer,
		store:      store,
		interval:   cfg.Interval,
		staleAfter: cfg.StaleAfter,
		batchSize:  cfg.BatchSize,
		backoff:    cfg.FailureBackoff,
		logger:     logger.Named("RevaluationWorker"),
		wake:       make(chan struct{}, 1),
		retryAfter: make(map[string]time.Time),
	}
}

// QueueRefresh adds an account to the high-priority queue and returns its
// 1-indexed position.
func (w *RevaluationWorker) QueueRefresh(steamID string) (int, error) {
	if !models.IsValidSteamID64(steamID) {
		return 0, ErrInvalidAccountID
	}

	w.urgentMu.Lock()
	position := 0
	for i, id := range w.urgentQueue {
		if id == steamID {
			position = i + 1
			break
		}
	}
	if position == 0 {
		w.urgentQueue = append(w.urgentQueue, steamID)
		position = len(w.urgentQueue)
		w.logger.Info("Queued revaluation", zap.String("steam_id", steamID), zap.Int("queue_size", position))
	}
	size := len(w.urgentQueue)
	w.urgentMu.Unlock()

	metrics.RevaluationQueueSize.Set(float64(size))

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return position, nil
}

// GetQueueSize returns current urgent queue size
func (w *RevaluationWorker) GetQueueSize() int {
	w.urgentMu.Lock()
	defer w.urgentMu.Unlock()
	return len(w.urgentQueue)
}

// Start runs until ctx is cancelled. Stale valuations are refreshed on
// startup and every interval; queued accounts are processed as they arrive.
func (w *RevaluationWorker) Start(ctx context.Context) {
	var tick <-chan time.Time
	if w.interval > 0 {
		w.logger.Info("Revaluation worker started",
			zap.Duration("interval", w.interval),
			zap.Duration("stale_after", w.staleAfter),
			zap.Int("batch_size", w.batchSize))

		if _, err := w.RunBatch(ctx, true); err != nil {
			w.logger.Error("Initial revaluation batch failed", zap.Error(err))
		}

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	} else {
		w.logger.Info("Revaluation worker started: periodic refresh disabled, serving queued refreshes only")
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Revaluation worker stopping...")
			return
		case <-tick:
			if _, err := w.RunBatch(ctx, true); err != nil {
				w.logger.Error("Revaluation batch failed", zap.Error(err))
			}
		case <-w.wake:
			// Drain the queue before waiting again
			for w.GetQueueSize() > 0 && ctx.Err() == nil {
				if _, err := w.RunBatch(ctx, false); err != nil {
					w.logger.Error("Queued revaluation failed", zap.Error(err))
					break
				}
			}
		}
	}
}

// RunBatch revalues up to one batch of accounts with priority ordering:
// 1. User-requested refreshes
// 2. Stored valuations older than StaleAfter, oldest first (when includeStale)
func (w *RevaluationWorker) RunBatch(ctx context.Context, includeStale bool) (int, error) {
	w.resetDailyStatsIfNeeded()

	w.urgentMu.Lock()
	ids := w.urgentQueue
	if len(ids) > w.batchSize {
		ids = append([]string(nil), ids[:w.batchSize]...)
		w.urgentQueue = w.urgentQueue[w.batchSize:]
	} else {
		w.urgentQueue = nil
	}
	w.urgentMu.Unlock()
	metrics.RevaluationQueueSize.Set(float64(w.GetQueueSize()))

	if remaining := w.batchSize - len(ids); includeStale && remaining > 0 {
		backingOff := w.backingOff(time.Now())
		// Over-fetch so accounts in backoff do not starve the rest
		limit := remaining + len(ids) + len(backingOff)
		stale, err := w.store.Stale(ctx, time.Now().UTC().Add(-w.staleAfter), limit)
		if err != nil {
			return 0, fmt.Errorf("listing stale valuations: %w", err)
		}
		candidates := make([]string, 0, len(stale))
		for _, id := range stale {
			if !backingOff[id] {
				candidates = append(candidates, id)
			}
		}
		ids = appendMissing(ids, candidates, w.batchSize)
	}

	if len(ids) == 0 {
		return 0, nil
	}

	w.logger.Info("Revaluing accounts", zap.Int("count", len(ids)))

	updated := 0
	for _, id := range ids {
		if _, err := w.valuer.ValueAccount(ctx, id); err != nil {
			if ctx.Err() != nil {
				return updated, ctx.Err()
			}
			metrics.RevaluationsTotal.WithLabelValues("failed").Inc()
			w.recordFailure(id, err)
			continue
		}
		metrics.RevaluationsTotal.WithLabelValues("success").Inc()
		w.mu.Lock()
		delete(w.retryAfter, id)
		w.mu.Unlock()
		updated++
	}

	w.mu.Lock()
	w.valuedToday += updated
	w.lastRunTime = time.Now()
	w.mu.Unlock()

	return updated, nil
}

// appendMissing adds candidates not already in ids until ids holds limit entries.
func appendMissing(ids, candidates []string, limit int) []string {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range candidates {
		if len(ids) >= limit {
			break
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func (w *RevaluationWorker) recordFailure(steamID string, err error) {
	reason := err.Error()
	switch {
	case errors.Is(err, ErrInventoryInaccessible):
		w.logger.Info("Inventory no longer accessible", zap.String("steam_id", steamID))
	case errors.Is(err, ErrUpstreamThrottled):
		w.logger.Warn("Revaluation throttled by Steam", zap.String("steam_id", steamID))
	default:
		w.logger.Error("Revaluation failed", zap.String("steam_id", steamID), zap.Error(err))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.retryAfter[steamID] = time.Now().Add(w.backoff)
	w.recentFailures = append(w.recentFailures, FailedRevaluation{
		SteamID64: steamID,
		Reason:    reason,
		FailedAt:  time.Now(),
	})
	if len(w.recentFailures) > maxRecentFailures {
		w.recentFailures = w.recentFailures[len(w.recentFailures)-maxRecentFailures:]
	}
}

// backingOff returns accounts whose last failure is more recent than the
// backoff, pruning expired entries.
func (w *RevaluationWorker) backingOff(now time.Time) map[string]bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make(map[string]bool, len(w.retryAfter))
	for id, until := range w.retryAfter {
		if now.Before(until) {
			out[id] = true
		} else {
			delete(w.retryAfter, id)
		}
	}
	return out
}

// resetDailyStatsIfNeeded resets valuedToday at midnight
func (w *RevaluationWorker) resetDailyStatsIfNeeded() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if w.lastStatsDay.Before(today) {
		if !w.lastStatsDay.IsZero() {
			w.logger.Info("Daily stats reset", zap.Int("valued_previous_day", w.valuedToday))
		}
		w.valuedToday = 0
		w.lastStatsDay = today
	}
}

// GetStatus returns the current status
func (w *RevaluationWorker) GetStatus() RevaluationStatus {
	queueSize := w.GetQueueSize()

	w.mu.RLock()
	defer w.mu.RUnlock()

	status := RevaluationStatus{
		LastRunTime:    w.lastRunTime,
		ValuedToday:    w.valuedToday,
		BatchSize:      w.batchSize,
		QueueSize:      queueSize,
		StaleAfter:     w.staleAfter.String(),
		RecentFailures: append([]FailedRevaluation(nil), w.recentFailures...),
	}
	if w.interval > 0 && !w.lastRunTime.IsZero() {
		next := w.lastRunTime.Add(w.interval)
		status.NextRunTime = &next
	}
	return status
}
