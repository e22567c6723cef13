package client

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts includes the initial request.
	MaxAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// ForClass returns the config adjusted for an error class. Rate limited
// requests back off five times longer, network failures twice as long.
func (c RetryConfig) ForClass(class ErrorClass) RetryConfig {
	out := c
	switch class {
	case ErrorClassRateLimit:
		out.InitialBackoff = c.InitialBackoff * 5
	case ErrorClassNetwork:
		out.InitialBackoff = c.InitialBackoff * 2
	}
	if out.MaxBackoff > 0 && out.InitialBackoff > out.MaxBackoff {
		out.InitialBackoff = out.MaxBackoff
	}
	return out
}

// retryable narrows class for a request of the given method. Only GET and
// HEAD are replayed after a failure the server may already have acted on;
// other methods are retried on 429 alone.
func retryable(method string, class ErrorClass) ErrorClass {
	switch method {
	case http.MethodGet, http.MethodHead:
		return class
	}
	if class == ErrorClassRateLimit {
		return class
	}
	return ""
}

// retryWithBackoff calls fn until it succeeds, returns a non-transient
// class, or the attempts run out. fn reports the class of its failure so
// the backoff can follow it. Backoff is exponential with ±20% jitter and
// honours ctx.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, fn func(attempt int) (ErrorClass, error)) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var (
		lastErr   error
		lastClass ErrorClass
		backoff   time.Duration
	)

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		class, err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("error_class", string(lastClass)).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr, lastClass = err, class
		if !shouldRetry(class) {
			return err
		}
		if attempt >= cfg.MaxAttempts {
			break
		}

		classCfg := cfg.ForClass(class)
		if backoff == 0 {
			backoff = classCfg.InitialBackoff
		}

		retriesTotal.WithLabelValues(string(class)).Inc()

		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(jitter.Seconds())

		log.Debug().
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Warn().
				Str("error_class", string(class)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * classCfg.BackoffMultiplier)
		if classCfg.MaxBackoff > 0 && backoff > classCfg.MaxBackoff {
			backoff = classCfg.MaxBackoff
		}
	}

	retryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	log.Warn().
		Str("error_class", string(lastClass)).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, cfg.MaxAttempts, lastErr)
}
