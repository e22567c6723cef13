package collection

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrInvalidFilter is returned for a FilterState that cannot drive a view.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrPageOutOfRange is returned when navigating outside 1..TotalPages.
	ErrPageOutOfRange = errors.New("page out of range")

	// ErrNotLoaded is returned when an operation needs a committed collection.
	ErrNotLoaded = errors.New("collection not loaded")

	// ErrItemNotFound is returned when a keyed item is not in the collection.
	ErrItemNotFound = errors.New("item not found")

	// ErrStaleResponse marks a response superseded by a newer request. It is
	// never returned to callers; stale responses are dropped silently.
	ErrStaleResponse = errors.New("stale response")
)

// Prometheus metrics for collection controllers.
var (
	collectionFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_collection_fetches_total",
		Help: "Collection fetches by controller and outcome",
	}, []string{"collection", "outcome"})

	collectionStaleTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_collection_stale_responses_total",
		Help: "Responses discarded because a newer request superseded them",
	}, []string{"collection"})
)

// Controller is the capability set shared by the server-paginated and the
// client-filtered variants.
type Controller[T any] interface {
	// Snapshot returns the current state.
	Snapshot() Snapshot[T]

	// Subscribe registers a listener for state changes.
	Subscribe(Listener[T]) func()

	// Filter returns the current FilterState.
	Filter() FilterState

	// SetFilter replaces the FilterState and re-derives the visible page.
	SetFilter(ctx context.Context, f FilterState) error

	// Refresh re-derives the visible page from the backend.
	Refresh(ctx context.Context) error

	// Update applies an immutable replace-and-rebuild edit to the items.
	Update(fn func([]T) []T)
}

// GoTo navigates c to page. Once a total is known, pages outside
// 1..TotalPages are rejected with ErrPageOutOfRange.
func GoTo[T any](ctx context.Context, c Controller[T], page int) error {
	snap := c.Snapshot()
	if page < 1 {
		return fmt.Errorf("%w: %d", ErrPageOutOfRange, page)
	}
	if snap.Loaded && page > 1 && page > snap.Window.TotalPages {
		return fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, page, snap.Window.TotalPages)
	}
	if page == snap.Filter.Page {
		return nil
	}
	return c.SetFilter(ctx, snap.Filter.WithPage(page))
}

// First navigates to page 1 when the window allows it.
func First[T any](ctx context.Context, c Controller[T]) error {
	if !c.Snapshot().Window.CanFirst {
		return nil
	}
	return GoTo(ctx, c, 1)
}

// Prev navigates one page back when the window allows it.
func Prev[T any](ctx context.Context, c Controller[T]) error {
	w := c.Snapshot().Window
	if !w.CanPrev {
		return nil
	}
	return GoTo(ctx, c, w.CurrentPage-1)
}

// Next navigates one page forward when the window allows it.
func Next[T any](ctx context.Context, c Controller[T]) error {
	w := c.Snapshot().Window
	if !w.CanNext {
		return nil
	}
	return GoTo(ctx, c, w.CurrentPage+1)
}

// Last navigates to the last page when the window allows it.
func Last[T any](ctx context.Context, c Controller[T]) error {
	w := c.Snapshot().Window
	if !w.CanLast {
		return nil
	}
	return GoTo(ctx, c, w.TotalPages)
}

var (
	_ Controller[struct{}] = (*ServerController[struct{}])(nil)
	_ Controller[struct{}] = (*ClientController[struct{}])(nil)
)
