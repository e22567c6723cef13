package products

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// ErrMissingID is returned by Get for an empty product ID.
var ErrMissingID = errors.New("product id is required")

// Transport is the subset of *client.Client the product API needs.
type Transport interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// API wraps the product endpoints of the shop API.
type API struct {
	t Transport
}

// NewAPI creates a product API on top of t.
func NewAPI(t Transport) *API {
	return &API{t: t}
}

// List fetches the whole catalogue.
func (a *API) List(ctx context.Context) ([]Product, error) {
	var out []Product
	if err := a.t.GetJSON(ctx, "/products", nil, &out); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if out == nil {
		out = []Product{}
	}
	return out, nil
}

// LoadAll implements collection.Loader.
func (a *API) LoadAll(ctx context.Context) ([]Product, error) {
	return a.List(ctx)
}

// Get fetches one product.
func (a *API) Get(ctx context.Context, id string) (Product, error) {
	if id == "" {
		return Product{}, ErrMissingID
	}
	var p Product
	if err := a.t.GetJSON(ctx, "/products/"+url.PathEscape(id), nil, &p); err != nil {
		return Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}
