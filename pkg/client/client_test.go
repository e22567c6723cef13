package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis connects to a local Redis on DB 15 or skips the test.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func testConfig(baseURL string) Config {
	cfg := DefaultConfig(baseURL)
	cfg.Retry = fastRetry()
	return cfg
}

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing base url", func(c *Config) { c.BaseURL = "" }, true},
		{"non-http base url", func(c *Config) { c.BaseURL = "ftp://shop" }, true},
		{"unparsable base url", func(c *Config) { c.BaseURL = "http://[::1" }, true},
		{"missing user agent", func(c *Config) { c.UserAgent = "" }, true},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, true},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("https://shop.example.com/api")
			tt.mutate(&cfg)

			c, err := New(cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Nil(t, c.cache, "cache needs Redis")
			assert.Nil(t, c.rateLimiter, "rate limiter needs Redis")
		})
	}
}

func TestURL(t *testing.T) {
	c := newTestClient(t, testConfig("https://shop.example.com/api/"))

	assert.Equal(t, "https://shop.example.com/api/orders", c.URL("/orders", nil))
	assert.Equal(t,
		"https://shop.example.com/api/orders?limit=10&offset=20",
		c.URL("/orders", url.Values{"offset": {"20"}, "limit": {"10"}}))
	assert.Equal(t, "https://shop.example.com/api/orders/income/delivered", c.URL("orders/income/delivered", nil))
}

func TestDo_SetsHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Token = "secret"
	cfg.UserAgent = "TestApp/1.0"
	c := newTestClient(t, cfg)

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/orders", nil)
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "TestApp/1.0", got.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "Bearer secret", got.Get("Authorization"))
	_, err = uuid.Parse(got.Get("X-Request-ID"))
	assert.NoError(t, err, "X-Request-ID should be a UUID")
}

func TestDo_KeepsCallerRequestID(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
	}))
	defer server.Close()

	c := newTestClient(t, testConfig(server.URL))
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/orders", nil)
	req.Header.Set("X-Request-ID", "trace-1")
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "trace-1", got)
}

func TestDo_RetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	c := newTestClient(t, testConfig(server.URL))
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/orders", nil)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, attempts.Load())
}

func TestDo_RetryOnTooManyRequests(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(t, testConfig(server.URL))
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/orders", nil)
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.EqualValues(t, 2, attempts.Load())
}

func TestDo_NoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Order not found"}`))
	}))
	defer server.Close()

	c := newTestClient(t, testConfig(server.URL))
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/orders/abc", nil)
	_, err := c.Do(req)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, ErrorClassClient, apiErr.Class)
	assert.Equal(t, "Order not found", apiErr.Message)
	assert.Equal(t, "Order not found", UserMessage(err))
	assert.EqualValues(t, 1, attempts.Load())
}

func TestDo_RetryExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(t, testConfig(server.URL))
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/orders", nil)
	_, err := c.Do(req)

	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.True(t, IsClass(err, ErrorClassServer))
	assert.Equal(t, GenericFailureMessage, UserMessage(err))
	assert.EqualValues(t, 3, attempts.Load())
}

func TestDo_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	c := newTestClient(t, testConfig(addr))
	req, _ := http.NewRequest(http.MethodGet, addr+"/orders", nil)
	_, err := c.Do(req)

	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.True(t, IsClass(err, ErrorClassNetwork))
}

func TestDo_TimeoutIsNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RequestTimeout = 20 * time.Millisecond
	cfg.Retry.MaxAttempts = 1
	c := newTestClient(t, cfg)

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/orders", nil)
	_, err := c.Do(req)

	require.Error(t, err)
	assert.True(t, IsClass(err, ErrorClassNetwork))
}

func TestDo_CancelledContextIsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		cancel()
		<-r.Context().Done()
	}))
	defer server.Close()

	c := newTestClient(t, testConfig(server.URL))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/orders", nil)
	_, err := c.Do(req)

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrContextCancelled)
	assert.EqualValues(t, 1, attempts.Load())
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"orders":[{"_id":"a"}],"totalOrder":1}`))
	}))
	defer server.Close()

	c := newTestClient(t, testConfig(server.URL))

	var out struct {
		Orders []struct {
			ID string `json:"_id"`
		} `json:"orders"`
		Total int `json:"totalOrder"`
	}
	require.NoError(t, c.GetJSON(context.Background(), "/orders", url.Values{"limit": {"5"}}, &out))
	assert.Equal(t, 1, out.Total)
	require.Len(t, out.Orders, 1)
	assert.Equal(t, "a", out.Orders[0].ID)
}

func TestGetJSON_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer server.Close()

	c := newTestClient(t, testConfig(server.URL))
	var out map[string]any
	err := c.GetJSON(context.Background(), "/orders", nil, &out)
	assert.ErrorContains(t, err, "decode GET /orders response")
}

func TestPatchJSON_ResendsBodyAfterTooManyRequests(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"_id":"o1","status":"confirmed"}`))
	}))
	defer server.Close()

	c := newTestClient(t, testConfig(server.URL))

	var out struct {
		Status string `json:"status"`
	}
	err := c.PatchJSON(context.Background(), "/orders/o1", map[string]string{"status": "confirmed"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", out.Status)
	assert.Equal(t, []string{`{"status":"confirmed"}`, `{"status":"confirmed"}`}, bodies)
}

func TestMutations_NotRetriedAfterServerError(t *testing.T) {
	tests := []struct {
		name string
		send func(c *Client) error
	}{
		{
			name: "delete",
			send: func(c *Client) error {
				_, err := c.Delete(context.Background(), "/orders/o1")
				return err
			},
		},
		{
			name: "patch",
			send: func(c *Client) error {
				return c.PatchJSON(context.Background(), "/orders/o1", map[string]string{"status": "confirmed"}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The first request is applied but its reply is a 502; a
			// replay would only find the order gone.
			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				if attempts.Add(1) == 1 {
					w.WriteHeader(http.StatusBadGateway)
					return
				}
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"message":"Order not found"}`))
			}))
			defer server.Close()

			c := newTestClient(t, testConfig(server.URL))
			err := tt.send(c)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
			assert.Equal(t, ErrorClassServer, apiErr.Class)
			assert.NotErrorIs(t, err, ErrRetryExhausted)
			assert.EqualValues(t, 1, attempts.Load())
		})
	}
}

func TestDelete_NotRetriedAfterNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	c := newTestClient(t, testConfig(addr))
	_, err := c.Delete(context.Background(), "/orders/o1")

	assert.True(t, IsClass(err, ErrorClassNetwork))
	assert.NotErrorIs(t, err, ErrRetryExhausted)
}

func TestPatchJSON_EmptyAck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(t, testConfig(server.URL))
	var out struct{ Status string }
	require.NoError(t, c.PatchJSON(context.Background(), "/orders/o1", map[string]string{"status": "delivered"}, &out))
	assert.Empty(t, out.Status)
}

func TestDelete_ReturnsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.Write([]byte(`"Order deleted"`))
	}))
	defer server.Close()

	c := newTestClient(t, testConfig(server.URL))
	body, err := c.Delete(context.Background(), "/orders/o1")
	require.NoError(t, err)
	assert.Equal(t, `"Order deleted"`, string(body))
}

func TestDo_RateLimitBlock(t *testing.T) {
	redisClient := setupTestRedis(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("RateLimit-Remaining", "0")
		w.Header().Set("RateLimit-Reset", "60")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Redis = redisClient
	c := newTestClient(t, cfg)

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/orders", nil)
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	req, _ = http.NewRequest(http.MethodGet, server.URL+"/orders", nil)
	_, err = c.Do(req)

	assert.ErrorIs(t, err, ErrRateLimited)
	assert.True(t, IsClass(err, ErrorClassRateLimit))
	assert.EqualValues(t, 1, attempts.Load(), "blocked request must not reach the server")
}

func TestDo_RevalidatesCachedResponse(t *testing.T) {
	redisClient := setupTestRedis(t)

	var conditional atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"totalDeliveredIncome": 99.5}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Redis = redisClient
	c := newTestClient(t, cfg)

	for i := 0; i < 2; i++ {
		var out struct {
			Total float64 `json:"totalDeliveredIncome"`
		}
		require.NoError(t, c.GetJSON(context.Background(), "/orders/income/delivered", nil, &out))
		assert.Equal(t, 99.5, out.Total, "request %d", i)
	}
	assert.EqualValues(t, 1, conditional.Load())
}

func TestDo_MutationsAreNotCached(t *testing.T) {
	redisClient := setupTestRedis(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != "" {
			t.Error("PATCH must not be sent as a conditional request")
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Redis = redisClient
	c := newTestClient(t, cfg)

	for i := 0; i < 2; i++ {
		require.NoError(t, c.PatchJSON(context.Background(), "/orders/o1", map[string]string{"status": "confirmed"}, nil))
	}

	keys, err := redisClient.Keys(context.Background(), "shop:orders*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestEndpointLabel(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/orders", "/orders"},
		{"/orders/", "/orders"},
		{"/orders/income/delivered", "/orders/income/delivered"},
		{"/orders/64f1c2aa9e", "/orders/:id"},
		{"/products/abcdefabcdefabcdefabcdef", "/products/:id"},
	}

	for _, tt := range tests {
		if got := endpointLabel(tt.path); got != tt.want {
			t.Errorf("endpointLabel(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestAPIErrorIsReturnedForBlockedRequest(t *testing.T) {
	err := &APIError{Class: ErrorClassRateLimit, Err: ErrRateLimited}
	assert.True(t, errors.Is(err, ErrRateLimited))
}
