// Package collection keeps a paged, filtered view of a remote collection
// consistent under overlapping asynchronous requests.
//
// Every view is driven by an immutable FilterState. Two controller variants
// share the Controller capability set:
//
//   - ServerController asks the backend for exactly one page per filter
//     change (offset/limit/id filter) and commits only the response that
//     belongs to the latest issued request.
//   - ClientController loads the full collection once and derives the
//     visible page in memory (sort, then search, then slice) on every
//     filter change.
//
// State is published as immutable Snapshot values through a Store; any
// consumer recomputes its view from the latest snapshot.
//
// # Basic Usage
//
//	ctrl := collection.NewServerController[orders.Order]("orders", api, collection.DefaultFilter())
//	unsubscribe := ctrl.Subscribe(func(s collection.Snapshot[orders.Order]) {
//		render(s.Items, s.Window)
//	})
//	defer unsubscribe()
//
//	if err := ctrl.SetFilter(ctx, ctrl.Filter().WithIDFilter("65f1")); err != nil {
//		// snapshot keeps the previous page and carries the error
//	}
//
// # Ordering
//
// Each fetch is tagged with a sequence number under the store lock. A
// response whose sequence is no longer the latest is discarded (and counted
// in shop_collection_stale_responses_total); the committed page always
// reflects the newest FilterState, regardless of arrival order.
//
// # Degraded Consistency
//
// Local removals rebuild the visible items without re-fetching. TotalCount
// and the page window are then stale until the next committed fetch; the
// snapshot reports this with Degraded=true.
package collection
