package main

import (
	"context"
	"fmt"
	"io"

	"github.com/Sternrassler/shop-admin-client/pkg/client"
	"github.com/Sternrassler/shop-admin-client/pkg/collection"
	"github.com/Sternrassler/shop-admin-client/pkg/logging"
	"github.com/Sternrassler/shop-admin-client/pkg/orders"
	"github.com/Sternrassler/shop-admin-client/pkg/products"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app carries the resolved configuration and the lazily built clients
// shared by all subcommands.
type app struct {
	configPath string
	apiURL     string
	token      string
	redisURL   string
	logLevel   string
	pretty     bool

	cfg    Config
	logger zerolog.Logger
	redis  *redis.Client
	client *client.Client
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "shopadmin",
		Short: "Administer orders and products of the shop",
		Long: "shopadmin lists, confirms, delivers and deletes orders, tracks the delivered " +
			"income and browses the product catalogue through the shop API.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		SilenceUsage: true,
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "YAML config file")
	f.StringVar(&a.apiURL, "api-url", "", "Shop API base URL (or SHOP_API_URL env)")
	f.StringVar(&a.token, "token", "", "Bearer token (or SHOP_API_TOKEN env)")
	f.StringVar(&a.redisURL, "redis", "", "Redis URL or host:port for cache and rate limit state (or REDIS_URL env)")
	f.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (or LOG_LEVEL env)")
	f.BoolVar(&a.pretty, "pretty", false, "Human readable logs")

	root.AddCommand(
		newOrdersCmd(a),
		newIncomeCmd(a),
		newProductsCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.API.URL = a.apiURL
	}
	if flags.Changed("token") {
		cfg.API.Token = a.token
	}
	if flags.Changed("redis") {
		cfg.Redis.URL = a.redisURL
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logging.LogLevel(a.logLevel)
	}
	if flags.Changed("pretty") {
		cfg.Log.Pretty = a.pretty
	}
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.Log.Output = cmd.ErrOrStderr()
	a.cfg = cfg
	a.logger = logging.Setup(cfg.Log).With().Str("component", "shopadmin").Logger()
	return nil
}

// shopClient builds the API client on first use, connecting Redis when
// configured.
func (a *app) shopClient(ctx context.Context) (*client.Client, error) {
	if a.client != nil {
		return a.client, nil
	}

	cc := a.cfg.clientConfig()
	if a.cfg.Redis.URL != "" {
		opts, err := redisOptions(a.cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}
		a.logger.Debug().Str("addr", opts.Addr).Msg("Connected to Redis")
		a.redis = rdb
		cc.Redis = rdb
	}

	c, err := client.New(cc)
	if err != nil {
		return nil, err
	}
	a.client = c
	return c, nil
}

// listFilter is the configured starting filter of list views.
func (a *app) listFilter() collection.FilterState {
	return collection.DefaultFilter().WithLimit(a.cfg.Orders.Limit)
}

func (a *app) orderManager(ctx context.Context, out io.Writer, f collection.FilterState) (*orders.Manager, error) {
	c, err := a.shopClient(ctx)
	if err != nil {
		return nil, err
	}
	notify := orders.NotifierFunc(func(n orders.Notice) {
		fmt.Fprintf(out, "[%s] %s\n", n.Level, n.Message)
	})
	oc := a.cfg.ordersConfig()
	oc.Filter = f
	return orders.NewManager(orders.NewAPI(c), notify, oc), nil
}

func (a *app) catalog(ctx context.Context) (*products.Catalog, error) {
	c, err := a.shopClient(ctx)
	if err != nil {
		return nil, err
	}
	return products.NewCatalog(products.NewAPI(c), a.listFilter()), nil
}

func (a *app) close() {
	if a.client != nil {
		a.client.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
