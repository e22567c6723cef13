package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/shop-admin-client/pkg/collection"
	"github.com/Sternrassler/shop-admin-client/pkg/money"
	"github.com/Sternrassler/shop-admin-client/pkg/pagination"
)

// Transport is the subset of *client.Client the order API needs.
type Transport interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
	PatchJSON(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) ([]byte, error)
}

// DefaultDeleteMessage is used when a successful delete returns no text.
const DefaultDeleteMessage = "Order deleted"

// API wraps the order endpoints of the shop API.
type API struct {
	t Transport
}

// NewAPI creates an order API on top of t.
func NewAPI(t Transport) *API {
	return &API{t: t}
}

// ListResult is the response of GET /orders.
type ListResult struct {
	Orders []Order `json:"orders"`
	Total  int     `json:"totalOrder"`
}

// List fetches one page of orders. idFilter matches order IDs by substring;
// empty means no filter.
func (a *API) List(ctx context.Context, limit, offset int, idFilter string) (ListResult, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	if idFilter != "" {
		q.Set("id", idFilter)
	}

	var res ListResult
	if err := a.t.GetJSON(ctx, "/orders", q, &res); err != nil {
		return ListResult{}, fmt.Errorf("list orders: %w", err)
	}
	if res.Orders == nil {
		res.Orders = []Order{}
	}
	return res, nil
}

// FetchPage implements collection.Fetcher.
func (a *API) FetchPage(ctx context.Context, f collection.FilterState) (collection.Page[Order], error) {
	res, err := a.List(ctx, f.Limit, f.Offset(), f.IDFilter)
	if err != nil {
		return collection.Page[Order]{}, err
	}
	return collection.Page[Order]{
		Items:      res.Orders,
		TotalCount: res.Total,
		SourcePage: f.Page,
	}, nil
}

// ListAll walks every page of orders matching idFilter.
func (a *API) ListAll(ctx context.Context, cfg pagination.Config, idFilter string) ([]Order, error) {
	return pagination.Walk(ctx, cfg, func(ctx context.Context, offset, limit int) ([]Order, int, error) {
		res, err := a.List(ctx, limit, offset, idFilter)
		return res.Orders, res.Total, err
	})
}

// DeliveredIncome fetches the server's delivered income total.
func (a *API) DeliveredIncome(ctx context.Context) (money.Cents, error) {
	var res struct {
		Total money.Cents `json:"totalDeliveredIncome"`
	}
	if err := a.t.GetJSON(ctx, "/orders/income/delivered", nil, &res); err != nil {
		return 0, fmt.Errorf("delivered income: %w", err)
	}
	return res.Total, nil
}

// UpdateStatus sets the status of order id. The updated order is returned
// when the API echoes it back, nil for a bare acknowledgement.
func (a *API) UpdateStatus(ctx context.Context, id string, s Status) (*Order, error) {
	var raw json.RawMessage
	body := map[string]Status{"status": s}
	if err := a.t.PatchJSON(ctx, "/orders/"+url.PathEscape(id), body, &raw); err != nil {
		return nil, fmt.Errorf("update order %s: %w", id, err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, nil
	}
	var o Order
	if err := json.Unmarshal(raw, &o); err != nil || o.ID == "" {
		return nil, nil
	}
	return &o, nil
}

// Delete removes order id and returns the server's confirmation text.
func (a *API) Delete(ctx context.Context, id string) (string, error) {
	body, err := a.t.Delete(ctx, "/orders/"+url.PathEscape(id))
	if err != nil {
		return "", fmt.Errorf("delete order %s: %w", id, err)
	}
	return deleteMessage(body), nil
}

// deleteMessage understands a JSON string, {"message": ...} or plain text.
func deleteMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return DefaultDeleteMessage
	}

	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		if s == "" {
			return DefaultDeleteMessage
		}
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		return DefaultDeleteMessage
	}
	return string(body)
}
