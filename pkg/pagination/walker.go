package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrTooManyPages is returned when a walk would exceed Config.MaxPages.
var ErrTooManyPages = errors.New("too many pages")

// Config holds walker configuration.
type Config struct {
	// PageSize is the limit sent with every page request.
	PageSize int

	// MaxConcurrency is the maximum number of parallel page requests.
	MaxConcurrency int

	// Timeout per page fetch.
	Timeout time.Duration

	// MaxPages guards against runaway totals.
	MaxPages int
}

// DefaultConfig returns a configuration that is gentle on the shop API.
func DefaultConfig() Config {
	return Config{
		PageSize:       50,
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
		MaxPages:       1000,
	}
}

// PageFunc fetches limit items starting at offset and reports the total
// number of items across all pages.
type PageFunc[T any] func(ctx context.Context, offset, limit int) (items []T, total int, err error)

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = d.MaxConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxPages <= 0 {
		c.MaxPages = d.MaxPages
	}
	return c
}

// Walk fetches every page and returns all items in page order.
func Walk[T any](ctx context.Context, cfg Config, fetch PageFunc[T]) ([]T, error) {
	cfg = cfg.withDefaults()
	start := time.Now()

	first, total, err := fetchPage(ctx, cfg, fetch, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch first page: %w", err)
	}

	totalPages := (total + cfg.PageSize - 1) / cfg.PageSize
	if totalPages > cfg.MaxPages {
		return nil, fmt.Errorf("%w: %d pages of %d exceed the limit of %d", ErrTooManyPages, totalPages, cfg.PageSize, cfg.MaxPages)
	}

	log.Debug().
		Int("total", total).
		Int("total_pages", totalPages).
		Int("page_size", cfg.PageSize).
		Msg("Starting parallel page walk")

	if totalPages <= 1 {
		return first, nil
	}

	pages := make([][]T, totalPages)
	pages[0] = first

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.MaxConcurrency)
	for i := 1; i < totalPages; i++ {
		g.Go(func() error {
			items, _, err := fetchPage(gctx, cfg, fetch, i*cfg.PageSize)
			if err != nil {
				log.Warn().Err(err).Int("page", i+1).Msg("Page fetch failed")
				return fmt.Errorf("fetch page %d: %w", i+1, err)
			}
			pages[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]T, 0, total)
	for _, p := range pages {
		out = append(out, p...)
	}

	log.Info().
		Int("pages", totalPages).
		Int("items", len(out)).
		Dur("duration", time.Since(start)).
		Msg("Page walk complete")

	return out, nil
}

func fetchPage[T any](ctx context.Context, cfg Config, fetch PageFunc[T], offset int) ([]T, int, error) {
	pageCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	items, total, err := fetch(pageCtx, offset, cfg.PageSize)
	if err != nil {
		return nil, 0, err
	}
	if len(items) > cfg.PageSize {
		items = items[:cfg.PageSize]
	}
	return items, max(total, 0), nil
}
