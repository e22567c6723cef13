package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Sternrassler/shop-admin-client/pkg/client"
	"github.com/Sternrassler/shop-admin-client/pkg/collection"
	"github.com/Sternrassler/shop-admin-client/pkg/money"
	"github.com/Sternrassler/shop-admin-client/pkg/optimistic"
	"github.com/Sternrassler/shop-admin-client/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrOrderNotFound is returned when an order is not in the visible page.
var ErrOrderNotFound = errors.New("order not found")

// StatusUpdatedMessage is the success notice of an advance.
const StatusUpdatedMessage = "Order status updated"

// IncomeEdge selects the transition that books an order's amount into the
// delivered income total.
type IncomeEdge int

const (
	// BookOnConfirm books on pending to confirmed.
	BookOnConfirm IncomeEdge = iota

	// BookOnDelivery books on confirmed to delivered.
	BookOnDelivery
)

func (e IncomeEdge) books(prev, next Status) bool {
	switch e {
	case BookOnDelivery:
		return next == StatusDelivered && prev != StatusDelivered
	default:
		return prev == StatusPending && next == StatusConfirmed
	}
}

// Config holds the order manager configuration.
type Config struct {
	// Filter is the initial FilterState of the order list.
	Filter collection.FilterState

	IncomeEdge IncomeEdge

	Mutation optimistic.Config

	// Export configures ListAll walks.
	Export pagination.Config
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		Filter:     collection.DefaultFilter(),
		IncomeEdge: BookOnConfirm,
		Mutation:   optimistic.DefaultConfig(),
		Export:     pagination.DefaultConfig(),
	}
}

// Manager is the order admin view: a server-paginated order list, the
// delivered income total and the optimistic status/delete mutations that
// keep both in step.
type Manager struct {
	api      *API
	list     *collection.ServerController[Order]
	income   Accumulator
	engine   *optimistic.Engine
	notifier Notifier
	config   Config
	logger   zerolog.Logger

	seedMu sync.Mutex
}

// NewManager creates a manager. A nil notifier logs notices.
func NewManager(api *API, notifier Notifier, cfg Config) *Manager {
	logger := log.With().Str("component", "orders").Logger()
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	if cfg.Filter.Limit == 0 {
		cfg.Filter = collection.DefaultFilter()
	}

	return &Manager{
		api:      api,
		list:     collection.NewServerController[Order]("orders", api, cfg.Filter),
		engine:   optimistic.NewEngine(cfg.Mutation),
		notifier: notifier,
		config:   cfg,
		logger:   logger,
	}
}

// List returns the underlying collection controller, for navigation and
// subscriptions.
func (m *Manager) List() *collection.ServerController[Order] { return m.list }

// Snapshot returns the current list state.
func (m *Manager) Snapshot() collection.Snapshot[Order] { return m.list.Snapshot() }

// Income returns the delivered income total.
func (m *Manager) Income() money.Cents { return m.income.Value() }

// Mount seeds the income total and fetches the current page
// concurrently. The income is seeded only once per manager; a failed seed
// is retried by the next Mount. The list error, if any, is also visible in
// Snapshot.
func (m *Manager) Mount(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		return m.seedIncome(ctx)
	})
	g.Go(func() error {
		return m.list.Refresh(ctx)
	})
	return g.Wait()
}

func (m *Manager) seedIncome(ctx context.Context) error {
	m.seedMu.Lock()
	defer m.seedMu.Unlock()

	if m.income.Seeded() {
		return nil
	}
	v, err := m.api.DeliveredIncome(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("Could not load delivered income")
		return err
	}
	m.income.Seed(v)
	m.logger.Info().Str("income", v.String()).Msg("Delivered income seeded")
	return nil
}

// Search filters by order ID substring and returns to page 1.
func (m *Manager) Search(ctx context.Context, idFilter string) error {
	return m.list.SetFilter(ctx, m.list.Filter().WithIDFilter(idFilter))
}

// SetLimit changes the page size and returns to page 1.
func (m *Manager) SetLimit(ctx context.Context, limit int) error {
	return m.list.SetFilter(ctx, m.list.Filter().WithLimit(limit))
}

// GoTo navigates to page.
func (m *Manager) GoTo(ctx context.Context, page int) error {
	return collection.GoTo[Order](ctx, m.list, page)
}

// Export returns every order matching the current ID filter.
func (m *Manager) Export(ctx context.Context) ([]Order, error) {
	return m.api.ListAll(ctx, m.config.Export, m.list.Filter().IDFilter)
}

// Advance moves order id one step along pending, confirmed, delivered. The
// new status and, when the configured edge is crossed, the income are
// applied before the request is sent and reverted if it fails. Advancing a
// delivered order does nothing and sends nothing. It returns the status
// the order ends up with.
func (m *Manager) Advance(ctx context.Context, id string) (Status, error) {
	var (
		prev, next Status
		amount     money.Cents
		booked     bool
		found      bool
		updated    *Order
	)

	err := m.engine.Do(ctx, id, optimistic.Mutation{
		Kind: "advance",
		Apply: func() (func(), error) {
			current, ok := m.visible(id)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
			}
			if _, ok := current.Status.Next(); !ok {
				prev = current.Status
				return nil, optimistic.ErrSkip
			}

			m.list.Update(func(items []Order) []Order {
				for i, o := range items {
					if o.ID != id {
						continue
					}
					found = true
					prev = o.Status
					n, ok := o.Status.Next()
					if !ok {
						return items
					}
					next, amount = n, o.Amount
					items[i] = o.WithStatus(n)
					return items
				}
				return items
			})

			switch {
			case !found:
				return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
			case next == "":
				return nil, optimistic.ErrSkip
			}

			booked = m.config.IncomeEdge.books(prev, next)
			if booked {
				m.income.Add(amount)
			}

			return func() {
				m.list.Update(func(items []Order) []Order {
					for i, o := range items {
						if o.ID == id && o.Status == next {
							items[i] = o.WithStatus(prev)
						}
					}
					return items
				})
				if booked {
					m.income.Sub(amount)
				}
			}, nil
		},
		Send: func(ctx context.Context) error {
			o, err := m.api.UpdateStatus(ctx, id, next)
			updated = o
			return err
		},
		Commit: func() {
			if updated != nil && updated.Status == next {
				m.list.Update(func(items []Order) []Order {
					for i, o := range items {
						if o.ID == id {
							items[i] = *updated
						}
					}
					return items
				})
			}
		},
	})

	switch {
	case err != nil:
		m.notifyFailure(id, err)
		if errors.Is(err, ErrOrderNotFound) {
			return "", err
		}
		return prev, err
	case next == "":
		return prev, nil
	}

	m.logger.Info().
		Str("order_id", id).
		Str("from", string(prev)).
		Str("to", string(next)).
		Bool("income_booked", booked).
		Msg("Order advanced")

	if next != StatusDelivered {
		m.notifier.Notify(Notice{Level: LevelSuccess, Message: StatusUpdatedMessage, OrderID: id})
	}
	return next, nil
}

// Remove deletes order id. Nothing changes locally until the server has
// accepted the delete; then the order is dropped from the visible page
// and the page is marked degraded because TotalCount is now stale. It
// returns the server's confirmation text.
func (m *Manager) Remove(ctx context.Context, id string) (string, error) {
	var msg string

	err := m.engine.Do(ctx, id, optimistic.Mutation{
		Kind: "remove",
		Send: func(ctx context.Context) error {
			var err error
			msg, err = m.api.Delete(ctx, id)
			return err
		},
		Commit: func() {
			m.list.Update(func(items []Order) []Order {
				out := make([]Order, 0, len(items))
				for _, o := range items {
					if o.ID != id {
						out = append(out, o)
					}
				}
				return out
			})
			m.list.MarkDegraded()
		},
	})
	if err != nil {
		m.notifyFailure(id, err)
		return "", err
	}

	m.logger.Info().Str("order_id", id).Msg("Order removed")
	m.notifier.Notify(Notice{Level: LevelSuccess, Message: msg, OrderID: id})
	return msg, nil
}

func (m *Manager) visible(id string) (Order, bool) {
	for _, o := range m.list.Snapshot().Items {
		if o.ID == id {
			return o, true
		}
	}
	return Order{}, false
}

func (m *Manager) notifyFailure(id string, err error) {
	m.notifier.Notify(Notice{
		Level:   LevelError,
		Message: client.UserMessage(err),
		OrderID: id,
	})
}
