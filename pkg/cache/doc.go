// Package cache provides a Redis-backed revalidation cache for shop API
// GET responses.
//
// Entries are never served blind. The client always revalidates a cached
// entry with a conditional request (If-None-Match / If-Modified-Since) and
// only serves the stored body when the API answers 304 Not Modified. This
// keeps admin views consistent with mutations made by other sessions while
// saving the transfer of unchanged order and product pages.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Endpoint:    "/orders",
//		QueryParams: url.Values{"limit": {"10"}, "offset": {"0"}},
//		Scope:       cache.Scope(token),
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// plain request
//	}
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// # Metrics
//
//   - shop_cache_hits_total{layer="redis"}
//   - shop_cache_misses_total
//   - shop_cache_size_bytes{layer="redis"}
//   - shop_cache_conditional_requests_total
//   - shop_cache_304_responses_total
//   - shop_cache_errors_total{operation}
package cache
