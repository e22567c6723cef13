package products

import (
	"context"
	"errors"

	"github.com/Sternrassler/shop-admin-client/pkg/collection"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Catalog is the product admin view. The whole catalogue is loaded once;
// search, sort and paging then run against the cached copy.
type Catalog struct {
	api    *API
	list   *collection.ClientController[Product]
	logger zerolog.Logger
}

// NewCatalog creates a catalog starting from initial. A zero filter means
// collection.DefaultFilter.
func NewCatalog(api *API, initial collection.FilterState) *Catalog {
	if initial.Limit == 0 {
		initial = collection.DefaultFilter()
	}
	return &Catalog{
		api:    api,
		list:   collection.NewClientController[Product]("products", api, DeriveOptions(), initial),
		logger: log.With().Str("component", "products").Logger(),
	}
}

// List returns the underlying collection controller.
func (c *Catalog) List() *collection.ClientController[Product] { return c.list }

// Snapshot returns the current view.
func (c *Catalog) Snapshot() collection.Snapshot[Product] { return c.list.Snapshot() }

// Load fetches the catalogue.
func (c *Catalog) Load(ctx context.Context) error { return c.list.Load(ctx) }

// Search filters titles by a case-insensitive substring.
func (c *Catalog) Search(ctx context.Context, term string) error {
	return c.list.SetFilter(ctx, c.list.Filter().WithSearch(term))
}

// SortBy changes the ordering.
func (c *Catalog) SortBy(ctx context.Context, key collection.SortKey) error {
	return c.list.SetFilter(ctx, c.list.Filter().WithSort(key))
}

// SetLimit changes the page size.
func (c *Catalog) SetLimit(ctx context.Context, limit int) error {
	return c.list.SetFilter(ctx, c.list.Filter().WithLimit(limit))
}

// GoTo navigates to page.
func (c *Catalog) GoTo(ctx context.Context, page int) error {
	return collection.GoTo[Product](ctx, c.list, page)
}

// Replace puts an edited product into the cached catalogue.
func (c *Catalog) Replace(p Product) error {
	return c.list.Replace(p)
}

// Get fetches one product from the API. A cached copy, if any, is
// replaced with the fresh one.
func (c *Catalog) Get(ctx context.Context, id string) (Product, error) {
	p, err := c.api.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}

	err = c.list.Replace(p)
	switch {
	case err == nil:
		c.logger.Debug().Str("product_id", id).Msg("Cached product refreshed")
	case errors.Is(err, collection.ErrNotLoaded), errors.Is(err, collection.ErrItemNotFound):
	default:
		c.logger.Warn().Err(err).Str("product_id", id).Msg("Could not refresh cached product")
	}
	return p, nil
}
