// Package ratelimit tracks the shop API request budget and gates requests.
// It reads the RateLimit-Remaining and RateLimit-Reset response headers
// (X-RateLimit-* as a fallback) and shares the state through Redis so that
// every client instance backs off together.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyRemaining      = "shop:rate_limit:remaining"
	RedisKeyResetTimestamp = "shop:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "shop:rate_limit:last_update"
)

// Thresholds for rate limit decisions.
const (
	// ThresholdCritical blocks requests when the remaining budget falls below it.
	ThresholdCritical = 2

	// ThresholdWarning throttles requests when the remaining budget falls below it.
	ThresholdWarning = 10

	// ThresholdHealthy marks the budget as healthy at or above it.
	ThresholdHealthy = 50
)

// State is the last known request budget of the shop API.
type State struct {
	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the state was last written.
	LastUpdate time.Time `json:"last_update"`

	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock reports whether requests must be refused until reset.
// An expired window never blocks.
func (s *State) NeedsCriticalBlock() bool {
	return s.Remaining < ThresholdCritical && s.TimeUntilReset() > 0
}

// NeedsThrottling reports whether requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.Remaining < ThresholdWarning && !s.NeedsCriticalBlock() && s.TimeUntilReset() > 0
}

// TimeUntilReset returns the duration until the window resets, or 0.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth recomputes IsHealthy from Remaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ThresholdHealthy
}
