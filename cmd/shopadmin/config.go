package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/shop-admin-client/pkg/client"
	"github.com/Sternrassler/shop-admin-client/pkg/logging"
	"github.com/Sternrassler/shop-admin-client/pkg/orders"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Config is the CLI configuration. It is resolved from defaults, then the
// YAML file, then the environment, then flags.
type Config struct {
	API struct {
		URL     string        `yaml:"url"`
		Token   string        `yaml:"token"`
		Timeout time.Duration `yaml:"timeout"`
		Retries int           `yaml:"retries"`
	} `yaml:"api"`

	Redis struct {
		// URL is either redis://... or host:port. Empty disables the
		// response cache and the shared rate limit state.
		URL string `yaml:"url"`
	} `yaml:"redis"`

	Log logging.Config `yaml:"log"`

	Orders struct {
		Limit           int           `yaml:"limit"`
		IncomeEdge      string        `yaml:"income_edge"`
		MutationTimeout time.Duration `yaml:"mutation_timeout"`
	} `yaml:"orders"`

	Serve struct {
		Addr string `yaml:"addr"`
	} `yaml:"serve"`
}

func defaultConfig() Config {
	var cfg Config
	cfg.API.URL = "http://localhost:4000/api"
	cfg.API.Timeout = 30 * time.Second
	cfg.API.Retries = client.DefaultRetryConfig().MaxAttempts
	cfg.Log = logging.DefaultConfig()
	cfg.Orders.Limit = 10
	cfg.Orders.IncomeEdge = "confirm"
	cfg.Orders.MutationTimeout = 15 * time.Second
	cfg.Serve.Addr = ":8080"
	return cfg
}

// loadConfig reads path (if not empty) over the defaults and applies the
// environment.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.API.URL = getEnv("SHOP_API_URL", cfg.API.URL)
	cfg.API.Token = getEnv("SHOP_API_TOKEN", cfg.API.Token)
	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)
	cfg.Log.Level = logging.LogLevel(getEnv("LOG_LEVEL", string(cfg.Log.Level)))
	cfg.Serve.Addr = getEnv("SHOP_LISTEN_ADDR", cfg.Serve.Addr)

	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.API.URL == "" {
		errs = append(errs, errors.New("api.url is required"))
	}
	if c.API.Retries < 1 {
		errs = append(errs, fmt.Errorf("api.retries must be >= 1 (got %d)", c.API.Retries))
	}
	if c.Orders.Limit <= 0 {
		errs = append(errs, fmt.Errorf("orders.limit must be > 0 (got %d)", c.Orders.Limit))
	}
	if _, err := c.incomeEdge(); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseLevel(string(c.Log.Level)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) incomeEdge() (orders.IncomeEdge, error) {
	switch strings.ToLower(c.Orders.IncomeEdge) {
	case "", "confirm", "confirmed":
		return orders.BookOnConfirm, nil
	case "deliver", "delivered", "delivery":
		return orders.BookOnDelivery, nil
	default:
		return 0, fmt.Errorf("orders.income_edge must be confirm or delivery (got %q)", c.Orders.IncomeEdge)
	}
}

func (c Config) clientConfig() client.Config {
	cc := client.DefaultConfig(c.API.URL)
	cc.Token = c.API.Token
	if c.API.Timeout > 0 {
		cc.RequestTimeout = c.API.Timeout
	}
	cc.Retry.MaxAttempts = c.API.Retries
	return cc
}

func (c Config) ordersConfig() orders.Config {
	oc := orders.DefaultConfig()
	oc.Filter = oc.Filter.WithLimit(c.Orders.Limit)
	oc.IncomeEdge, _ = c.incomeEdge()
	if c.Orders.MutationTimeout > 0 {
		oc.Mutation.Timeout = c.Orders.MutationTimeout
	}
	return oc
}

// redisOptions accepts a redis:// URL or a bare host:port.
func redisOptions(raw string) (*redis.Options, error) {
	if strings.Contains(raw, "://") {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: raw}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
