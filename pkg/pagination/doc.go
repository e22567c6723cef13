// Package pagination walks every page of an offset/limit paginated
// endpoint in parallel and returns the items in server order.
//
// The first page is fetched alone to learn the total count; the remaining
// pages are fetched by a bounded errgroup. The first failing page cancels
// the rest and the walk returns that error.
//
//	items, err := pagination.Walk(ctx, pagination.DefaultConfig(),
//		func(ctx context.Context, offset, limit int) ([]orders.Order, int, error) {
//			res, err := api.List(ctx, limit, offset, "")
//			return res.Orders, res.Total, err
//		})
package pagination
