// Package optimistic applies local-first edits and reconciles them with the
// result of the corresponding request.
//
// Mutations on the same key are serialized: the second waits for the first
// to commit or roll back. Mutations on different keys run in parallel.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrSkip returned by Apply means there is nothing to do; no request is sent.
	ErrSkip = errors.New("mutation skipped")

	// ErrTimeout is returned when Send does not resolve within the engine timeout.
	ErrTimeout = errors.New("mutation timed out")
)

var mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "shop_mutations_total",
	Help: "Optimistic mutations by kind and outcome",
}, []string{"kind", "outcome"})

// Mutation describes one local-first edit.
type Mutation struct {
	// Kind labels the mutation in logs and metrics (e.g. "transition").
	Kind string

	// Apply performs the local edit before the request is sent and returns
	// the func that reverts it. A nil undo means there is nothing to revert.
	// Returning ErrSkip ends the mutation without sending anything.
	Apply func() (undo func(), err error)

	// Send issues the request. A non-nil error triggers the undo.
	Send func(ctx context.Context) error

	// Commit runs after Send succeeded.
	Commit func()
}

// Config holds engine configuration.
type Config struct {
	// Timeout bounds each Send. A timeout counts as a failure.
	Timeout time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 15 * time.Second,
	}
}

// Engine runs mutations with per-key serialization.
type Engine struct {
	config Config
	logger zerolog.Logger

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewEngine creates an engine.
func NewEngine(cfg Config) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Engine{
		config: cfg,
		logger: log.With().Str("component", "optimistic").Logger(),
		locks:  make(map[string]*keyLock),
	}
}

// Do runs m for key. It waits (honouring ctx) for earlier mutations on the
// same key, applies the local edit, sends the request and then commits or
// reverts. The returned error is the Apply or Send error; ErrSkip is
// reported as nil.
func (e *Engine) Do(ctx context.Context, key string, m Mutation) error {
	if m.Send == nil {
		return fmt.Errorf("mutation %q for %s has no Send", m.Kind, key)
	}

	release, err := e.acquire(ctx, key)
	if err != nil {
		mutationsTotal.WithLabelValues(m.Kind, "cancelled").Inc()
		return fmt.Errorf("wait for pending mutation on %s: %w", key, err)
	}
	defer release()

	var undo func()
	if m.Apply != nil {
		undo, err = m.Apply()
		if errors.Is(err, ErrSkip) {
			mutationsTotal.WithLabelValues(m.Kind, "skipped").Inc()
			e.logger.Debug().Str("kind", m.Kind).Str("key", key).Msg("Mutation skipped")
			return nil
		}
		if err != nil {
			mutationsTotal.WithLabelValues(m.Kind, "rejected").Inc()
			return err
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	err = m.Send(sendCtx)
	timedOut := errors.Is(sendCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()

	if err != nil && timedOut {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	if err != nil {
		if undo != nil {
			undo()
		}
		mutationsTotal.WithLabelValues(m.Kind, "rolled_back").Inc()
		e.logger.Warn().
			Err(err).
			Str("kind", m.Kind).
			Str("key", key).
			Msg("Mutation failed, local state reverted")
		return err
	}

	if m.Commit != nil {
		m.Commit()
	}
	mutationsTotal.WithLabelValues(m.Kind, "committed").Inc()
	e.logger.Debug().Str("kind", m.Kind).Str("key", key).Msg("Mutation committed")
	return nil
}

// Pending returns the number of mutations running or waiting on key.
func (e *Engine) Pending(key string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if l, ok := e.locks[key]; ok {
		return l.refs
	}
	return 0
}

func (e *Engine) acquire(ctx context.Context, key string) (func(), error) {
	e.mu.Lock()
	l, ok := e.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		e.locks[key] = l
	}
	l.refs++
	e.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		return func() {
			<-l.sem
			e.unref(key, l)
		}, nil
	case <-ctx.Done():
		e.unref(key, l)
		return nil, ctx.Err()
	}
}

func (e *Engine) unref(key string, l *keyLock) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(e.locks, key)
	}
}
