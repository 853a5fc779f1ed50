package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/core/port"
)

// AdmissionConfig tunes the GCRA limiter. Limit requests are allowed per Period; StateTTL,
// when positive, expires idle TAT keys.
type AdmissionConfig struct {
	Limit    int
	Period   time.Duration
	StateTTL time.Duration
}

// AdmissionController admits requests with the generic cell rate algorithm. The theoretical
// arrival time of each key is kept in the shared store as unix milliseconds.
type AdmissionController struct {
	store        port.KeyValueStore
	limit        int
	periodMs     int64
	separationMs int64
	stateTTL     time.Duration
	metrics      port.AuthMetrics
	logger       *zap.Logger
	warn         rate.Sometimes
	now          func() time.Time
}

var _ port.Admitter = (*AdmissionController)(nil)

// NewAdmissionController validates cfg and builds a controller on top of the rate limit keyspace.
func NewAdmissionController(store port.KeyValueStore, cfg AdmissionConfig, logger *zap.Logger) (*AdmissionController, error) {
	if store == nil {
		return nil, errors.New("admission store is required")
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("admission limit must be positive, got %d", cfg.Limit)
	}
	periodMs := cfg.Period.Milliseconds()
	if periodMs <= 0 {
		return nil, fmt.Errorf("admission period must be at least 1ms, got %s", cfg.Period)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	separation := int64(math.Round(float64(periodMs) / float64(cfg.Limit)))
	if separation < 1 {
		separation = 1
	}

	return &AdmissionController{
		store:        store,
		limit:        cfg.Limit,
		periodMs:     periodMs,
		separationMs: separation,
		stateTTL:     cfg.StateTTL,
		metrics:      port.NopAuthMetrics{},
		logger:       logger,
		warn:         rate.Sometimes{Interval: 10 * time.Second},
		now:          time.Now,
	}, nil
}

// WithClock overrides the internal clock for deterministic tests.
func (c *AdmissionController) WithClock(clock func() time.Time) {
	if clock != nil {
		c.now = clock
	}
}

// WithMetrics records admission decisions.
func (c *AdmissionController) WithMetrics(metrics port.AuthMetrics) *AdmissionController {
	if metrics != nil {
		c.metrics = metrics
	}
	return c
}

// AdmissionKey builds the TAT key. Anonymous callers share the per-endpoint key.
func AdmissionKey(scope, operation, identity string) string {
	parts := []string{scope, operation}
	if identity = strings.TrimSpace(identity); identity != "" {
		parts = append(parts, identity)
	}
	return strings.Join(parts, ":")
}

// Admit runs a single GCRA check for key. Rejections return an error matching domain.ErrRateLimited.
// Store failures reject as well and additionally match domain.ErrStoreUnavailable.
func (c *AdmissionController) Admit(ctx context.Context, key string) (domain.AdmissionDecision, error) {
	scope, _, _ := strings.Cut(key, ":")
	decision := domain.AdmissionDecision{Limit: c.limit}
	now := c.now().UnixMilli()

	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		return c.failClosed(scope, key, decision, err)
	}

	var stored int64
	if found {
		stored, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.logger.Warn("discarding unparsable rate limit state", zap.String("key", key), zap.Error(err))
			stored = 0
		}
	}

	tat := max(stored, now)
	threshold := c.periodMs - c.separationMs
	if tat-now > threshold {
		decision.RetryAfter = time.Duration(tat-now-threshold) * time.Millisecond
		decision.ResetAfter = time.Duration(tat-now) * time.Millisecond
		c.metrics.ObserveAdmission(scope, false)
		return decision, fmt.Errorf("%w: retry after %s", domain.ErrRateLimited, decision.RetryAfter)
	}

	newTat := tat + c.separationMs
	if err := c.store.Put(ctx, key, strconv.FormatInt(newTat, 10), c.stateTTL); err != nil {
		return c.failClosed(scope, key, decision, err)
	}

	decision.Allowed = true
	decision.Remaining = int((c.periodMs - (newTat - now)) / c.separationMs)
	decision.ResetAfter = time.Duration(newTat-now) * time.Millisecond
	c.metrics.ObserveAdmission(scope, true)
	return decision, nil
}

func (c *AdmissionController) failClosed(scope, key string, decision domain.AdmissionDecision, err error) (domain.AdmissionDecision, error) {
	c.warn.Do(func() {
		c.logger.Warn("rate limit store unavailable, rejecting request", zap.String("key", key), zap.Error(err))
	})
	c.metrics.ObserveAdmission(scope, false)

	if !errors.Is(err, domain.ErrStoreUnavailable) {
		err = fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	decision.RetryAfter = time.Duration(c.separationMs) * time.Millisecond
	return decision, fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
}
