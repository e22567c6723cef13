package collection

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Loader fetches a whole collection in one request.
type Loader[T any] interface {
	LoadAll(ctx context.Context) ([]T, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc[T any] func(ctx context.Context) ([]T, error)

// LoadAll calls fn.
func (fn LoaderFunc[T]) LoadAll(ctx context.Context) ([]T, error) { return fn(ctx) }

// Compare orders two items: negative if a sorts before b.
type Compare[T any] func(a, b T) int

// DeriveOptions describes how a ClientController sorts, searches and keys
// its items.
type DeriveOptions[T any] struct {
	// Comparators maps each supported SortKey to a comparator.
	Comparators map[SortKey]Compare[T]

	// SearchText returns the text the search term is matched against.
	SearchText func(T) string

	// Key returns an item's identity, used by Replace.
	Key func(T) string
}

// Derive computes the visible page of all for filter f: sort, then search,
// then slice. all is never modified. It returns the page and the number of
// items matching the search.
func Derive[T any](all []T, f FilterState, opts DeriveOptions[T]) ([]T, int) {
	view := slices.Clone(all)

	if cmp, ok := opts.Comparators[f.Sort]; ok {
		slices.SortStableFunc(view, cmp)
	}

	if f.Search != "" && opts.SearchText != nil {
		needle := strings.ToLower(f.Search)
		view = slices.DeleteFunc(view, func(item T) bool {
			return !strings.Contains(strings.ToLower(opts.SearchText(item)), needle)
		})
	}

	total := len(view)
	start := min(f.Offset(), total)
	end := min(start+f.Limit, total)
	return view[start:end:end], total
}

// ClientController loads the full collection once and derives the visible
// page from the cached copy on every filter change, without network access.
type ClientController[T any] struct {
	name   string
	loader Loader[T]
	opts   DeriveOptions[T]
	store  *Store[T]
	logger zerolog.Logger

	// seq and all are guarded by the store lock.
	seq uint64
	all []T
}

// NewClientController creates a controller. Call Load to fetch the collection.
func NewClientController[T any](name string, loader Loader[T], opts DeriveOptions[T], initial FilterState) *ClientController[T] {
	return &ClientController[T]{
		name:   name,
		loader: loader,
		opts:   opts,
		store: NewStore(Snapshot[T]{
			Filter: initial,
			Window: ComputeWindow(initial.Page, 0, initial.Limit),
		}),
		logger: log.With().Str("component", "collection").Str("collection", name).Logger(),
	}
}

// Snapshot returns the current state.
func (c *ClientController[T]) Snapshot() Snapshot[T] { return c.store.Snapshot() }

// Subscribe registers a listener for state changes.
func (c *ClientController[T]) Subscribe(l Listener[T]) func() { return c.store.Subscribe(l) }

// Filter returns the current FilterState.
func (c *ClientController[T]) Filter() FilterState { return c.store.Snapshot().Filter }

// Load fetches the full collection and derives the current page. A load
// superseded by a newer one is discarded. On failure the previously cached
// collection stays in place and the snapshot carries the error.
func (c *ClientController[T]) Load(ctx context.Context) error {
	var seq uint64
	c.store.Apply(func(s *Snapshot[T]) bool {
		c.seq++
		seq = c.seq
		s.Loading = true
		return true
	})

	items, err := c.loader.LoadAll(ctx)

	stale := false
	c.store.Apply(func(s *Snapshot[T]) bool {
		if seq != c.seq {
			stale = true
			return false
		}
		s.Loading = false
		if err != nil {
			s.Err = err
			return true
		}
		c.all = slices.Clone(items)
		s.Loaded = true
		s.Err = nil
		c.derive(s)
		return true
	})

	switch {
	case stale:
		collectionStaleTotal.WithLabelValues(c.name).Inc()
		c.logger.Warn().Uint64("seq", seq).Msg("Discarding superseded collection load")
		return nil
	case err != nil:
		collectionFetchesTotal.WithLabelValues(c.name, "error").Inc()
		c.logger.Error().Err(err).Msg("Could not load collection")
		return err
	default:
		collectionFetchesTotal.WithLabelValues(c.name, "committed").Inc()
		c.logger.Info().Int("items", len(items)).Msg("Collection loaded")
		return nil
	}
}

// Refresh re-fetches the full collection.
func (c *ClientController[T]) Refresh(ctx context.Context) error {
	return c.Load(ctx)
}

// SetFilter replaces the FilterState and re-derives the visible page from
// the cached collection. It never touches the network.
func (c *ClientController[T]) SetFilter(_ context.Context, f FilterState) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if len(c.opts.Comparators) > 0 && f.Sort != "" {
		if _, ok := c.opts.Comparators[f.Sort]; !ok {
			return fmt.Errorf("%w: unsupported sort key %q", ErrInvalidFilter, f.Sort)
		}
	}

	c.store.Apply(func(s *Snapshot[T]) bool {
		s.Filter = f
		c.derive(s)
		return true
	})
	return nil
}

// Update applies fn to a copy of the cached collection and re-derives.
func (c *ClientController[T]) Update(fn func([]T) []T) {
	c.store.Apply(func(s *Snapshot[T]) bool {
		c.all = fn(slices.Clone(c.all))
		c.derive(s)
		return true
	})
}

// Replace swaps the cached item with the same key as item and re-derives.
func (c *ClientController[T]) Replace(item T) error {
	if c.opts.Key == nil {
		return fmt.Errorf("%s: replace needs a key function", c.name)
	}
	key := c.opts.Key(item)

	var err error
	c.store.Apply(func(s *Snapshot[T]) bool {
		if !s.Loaded {
			err = ErrNotLoaded
			return false
		}
		idx := slices.IndexFunc(c.all, func(cur T) bool { return c.opts.Key(cur) == key })
		if idx < 0 {
			err = fmt.Errorf("%w: %s", ErrItemNotFound, key)
			return false
		}
		all := slices.Clone(c.all)
		all[idx] = item
		c.all = all
		c.derive(s)
		return true
	})
	return err
}

// All returns a copy of the cached collection in fetch order.
func (c *ClientController[T]) All() []T {
	var all []T
	c.store.Apply(func(*Snapshot[T]) bool {
		all = slices.Clone(c.all)
		return false
	})
	return all
}

// derive must run under the store lock.
func (c *ClientController[T]) derive(s *Snapshot[T]) {
	if !s.Loaded {
		s.Window = ComputeWindow(s.Filter.Page, 0, s.Filter.Limit)
		return
	}
	s.Items, s.TotalCount = Derive(c.all, s.Filter, c.opts)
	s.Window = ComputeWindow(s.Filter.Page, s.TotalCount, s.Filter.Limit)
}
