package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shop_rate_limit_remaining",
		Help: "Requests remaining in the current shop API rate limit window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_rate_limit_blocks_total",
		Help: "Total number of requests blocked because the rate limit budget is critical",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_rate_limit_throttles_total",
		Help: "Total number of requests throttled because the rate limit budget is low",
	})
)

// DefaultThrottleDelay is how long a request waits when the budget is low.
const DefaultThrottleDelay = 1 * time.Second

// Header names, in order of preference.
var (
	remainingHeaders = []string{"RateLimit-Remaining", "X-RateLimit-Remaining"}
	resetHeaders     = []string{"RateLimit-Reset", "X-RateLimit-Reset"}
)

// Tracker monitors the shop API request budget and gates requests.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger

	// ThrottleDelay is the wait applied in the warning range.
	ThrottleDelay time.Duration
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:         redisClient,
		logger:        logger,
		ThrottleDelay: DefaultThrottleDelay,
	}
}

// GetState retrieves the current state from Redis.
// Returns a default healthy state if nothing has been recorded yet.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	remaining, err := t.redis.Get(ctx, RedisKeyRemaining).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get remaining: %w", err)
	}
	missing := errors.Is(err, redis.Nil)

	resetTimestamp, err := t.redis.Get(ctx, RedisKeyResetTimestamp).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get reset timestamp: %w", err)
	}

	lastUpdateStr, err := t.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	if missing || errors.Is(err, redis.Nil) {
		t.logger.Debug().Msg("No rate limit state in Redis, assuming healthy")
		return &State{
			Remaining:  ThresholdHealthy * 2,
			ResetAt:    time.Now().Add(60 * time.Second),
			LastUpdate: time.Now(),
			IsHealthy:  true,
		}, nil
	}

	var lastUpdate time.Time
	if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
		return nil, fmt.Errorf("parse last update: %w", err)
	}

	state := &State{
		Remaining:  remaining,
		ResetAt:    time.Unix(resetTimestamp, 0),
		LastUpdate: lastUpdate,
	}
	state.UpdateHealth()

	return state, nil
}

// ParseHeaders extracts the budget from response headers. ok is false when
// the response carries no rate limit headers at all.
func ParseHeaders(headers http.Header) (state *State, ok bool, err error) {
	remainStr, remainName := firstHeader(headers, remainingHeaders)
	if remainStr == "" {
		return nil, false, nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return nil, true, fmt.Errorf("parse %s header: %w", remainName, err)
	}

	resetStr, resetName := firstHeader(headers, resetHeaders)
	if resetStr == "" {
		return nil, true, fmt.Errorf("%s header missing", resetHeaders[0])
	}

	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return nil, true, fmt.Errorf("parse %s header: %w", resetName, err)
	}

	now := time.Now()
	state = &State{
		Remaining:  remain,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
	}
	state.UpdateHealth()
	return state, true, nil
}

func firstHeader(headers http.Header, names []string) (string, string) {
	for _, name := range names {
		if v := headers.Get(name); v != "" {
			return v, name
		}
	}
	return "", ""
}

// UpdateFromHeaders parses rate limit headers and stores the state in Redis.
// Responses without rate limit headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	state, ok, err := ParseHeaders(headers)
	if err != nil || !ok {
		return err
	}

	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyRemaining, state.Remaining, 0)
	pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), 0)
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	rateLimitRemaining.Set(float64(state.Remaining))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit CRITICAL - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Bool("is_healthy", state.IsHealthy).
			Msg("Rate limit state updated")
	}

	return nil
}

// ShouldAllowRequest reports whether a request may be sent now. In the
// warning range it waits ThrottleDelay first; the wait honours ctx.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Rate limit critical - blocking request")
		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() && t.ThrottleDelay > 0 {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("Rate limit low - throttling request")
		rateLimitThrottlesTotal.Inc()

		timer := time.NewTimer(t.ThrottleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}
