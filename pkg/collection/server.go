package collection

import (
	"context"
	"slices"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Fetcher fetches one page of a server-paginated collection.
type Fetcher[T any] interface {
	FetchPage(ctx context.Context, f FilterState) (Page[T], error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc[T any] func(ctx context.Context, f FilterState) (Page[T], error)

// FetchPage calls fn.
func (fn FetcherFunc[T]) FetchPage(ctx context.Context, f FilterState) (Page[T], error) {
	return fn(ctx, f)
}

// ServerController keeps one server-computed page in sync with a
// FilterState. Every filter change issues exactly one fetch; only the
// response to the latest issued fetch is committed.
type ServerController[T any] struct {
	name    string
	fetcher Fetcher[T]
	store   *Store[T]
	logger  zerolog.Logger

	// seq and shown are guarded by the store lock. shown is the filter
	// of the last committed page.
	seq   uint64
	shown FilterState
}

// NewServerController creates a controller with the given initial filter.
// Nothing is fetched until SetFilter or Refresh is called.
func NewServerController[T any](name string, fetcher Fetcher[T], initial FilterState) *ServerController[T] {
	return &ServerController[T]{
		name:    name,
		fetcher: fetcher,
		shown:   initial,
		store: NewStore(Snapshot[T]{
			Filter: initial,
			Window: ComputeWindow(initial.Page, 0, initial.Limit),
		}),
		logger: log.With().Str("component", "collection").Str("collection", name).Logger(),
	}
}

// Snapshot returns the current state.
func (c *ServerController[T]) Snapshot() Snapshot[T] { return c.store.Snapshot() }

// Subscribe registers a listener for state changes.
func (c *ServerController[T]) Subscribe(l Listener[T]) func() { return c.store.Subscribe(l) }

// Filter returns the current FilterState.
func (c *ServerController[T]) Filter() FilterState { return c.store.Snapshot().Filter }

// Refresh re-fetches the current filter.
func (c *ServerController[T]) Refresh(ctx context.Context) error {
	return c.SetFilter(ctx, c.Filter())
}

// SetFilter replaces the FilterState and fetches the matching page. It
// blocks until the fetch resolves. If a newer SetFilter was issued in the
// meantime the result is discarded and nil is returned. A failed fetch
// restores the filter of the page still on display.
func (c *ServerController[T]) SetFilter(ctx context.Context, f FilterState) error {
	if err := f.Validate(); err != nil {
		return err
	}

	var seq uint64
	c.store.Apply(func(s *Snapshot[T]) bool {
		c.seq++
		seq = c.seq
		s.Filter = f
		s.Loading = true
		s.Window = ComputeWindow(f.Page, s.TotalCount, f.Limit)
		return true
	})

	c.logger.Debug().
		Uint64("seq", seq).
		Int("page", f.Page).
		Int("limit", f.Limit).
		Str("id_filter", f.IDFilter).
		Msg("Fetching page")

	page, err := c.fetcher.FetchPage(ctx, f)

	stale := false
	c.store.Apply(func(s *Snapshot[T]) bool {
		if seq != c.seq {
			stale = true
			return false
		}
		s.Loading = false
		if err != nil {
			s.Filter = c.shown
			s.Window = ComputeWindow(c.shown.Page, s.TotalCount, c.shown.Limit)
			s.Err = err
			return true
		}
		items := page.Items
		if len(items) > f.Limit {
			c.logger.Warn().
				Int("items", len(items)).
				Int("limit", f.Limit).
				Msg("Backend returned more items than requested, truncating")
			items = items[:f.Limit]
		}
		s.Items = slices.Clone(items)
		s.TotalCount = max(page.TotalCount, 0)
		s.Window = ComputeWindow(f.Page, s.TotalCount, f.Limit)
		s.Loaded = true
		s.Degraded = false
		s.Err = nil
		c.shown = f
		return true
	})

	switch {
	case stale:
		collectionStaleTotal.WithLabelValues(c.name).Inc()
		c.logger.Warn().
			Uint64("seq", seq).
			Int("page", f.Page).
			Bool("failed", err != nil).
			Msg("Discarding superseded response")
		return nil
	case err != nil:
		collectionFetchesTotal.WithLabelValues(c.name, "error").Inc()
		c.logger.Error().Err(err).Int("page", f.Page).Msg("Could not load page")
		return err
	default:
		collectionFetchesTotal.WithLabelValues(c.name, "committed").Inc()
		c.logger.Debug().
			Uint64("seq", seq).
			Int("items", len(page.Items)).
			Int("total", page.TotalCount).
			Msg("Page committed")
		return nil
	}
}

// Update applies fn to a copy of the visible items and publishes the result.
func (c *ServerController[T]) Update(fn func([]T) []T) {
	c.store.Apply(func(s *Snapshot[T]) bool {
		s.Items = fn(slices.Clone(s.Items))
		return true
	})
}

// MarkDegraded flags TotalCount and Window as possibly stale until the next
// committed fetch.
func (c *ServerController[T]) MarkDegraded() {
	c.store.Apply(func(s *Snapshot[T]) bool {
		if s.Degraded {
			return false
		}
		s.Degraded = true
		return true
	})
}
