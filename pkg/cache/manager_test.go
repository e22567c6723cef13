package cache

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

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

func ordersKey() Key {
	return Key{
		Endpoint:    "/orders",
		QueryParams: url.Values{"limit": {"10"}, "offset": {"0"}},
		Scope:       Scope("token-a"),
	}
}

func TestNewManager_Panic(t *testing.T) {
	assert.Panics(t, func() { NewManager(nil) })
}

func TestManager_SetAndGet(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	entry := &Entry{
		Data:       []byte(`{"orders":[],"totalOrder":0}`),
		ETag:       `"v1"`,
		Expires:    time.Now().Add(5 * time.Minute),
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": []string{"application/json"}},
		CachedAt:   time.Now(),
	}
	require.NoError(t, manager.Set(ctx, ordersKey(), entry))

	got, err := manager.Get(ctx, ordersKey())
	require.NoError(t, err)
	assert.Equal(t, entry.Data, got.Data)
	assert.Equal(t, entry.ETag, got.ETag)
	assert.Equal(t, entry.StatusCode, got.StatusCode)
}

func TestManager_ScopesDoNotShareEntries(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	entry := &Entry{Data: []byte(`[]`), Expires: time.Now().Add(time.Minute)}
	require.NoError(t, manager.Set(ctx, ordersKey(), entry))

	other := ordersKey()
	other.Scope = Scope("token-b")
	_, err := manager.Get(ctx, other)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_Get_CacheMiss(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	_, err := manager.Get(context.Background(), Key{Endpoint: "/products/missing"})
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_Set_ExpiredEntryIsNotStored(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	entry := &Entry{Data: []byte(`{}`), Expires: time.Now().Add(-time.Hour)}
	require.NoError(t, manager.Set(ctx, ordersKey(), entry))

	_, err := manager.Get(ctx, ordersKey())
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_Get_CorruptEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, ordersKey().String(), "not json", time.Minute).Err())

	_, err := manager.Get(ctx, ordersKey())
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	entry := &Entry{Data: []byte(`{}`), Expires: time.Now().Add(5 * time.Minute)}
	require.NoError(t, manager.Set(ctx, ordersKey(), entry))
	_, err := manager.Get(ctx, ordersKey())
	require.NoError(t, err)

	require.NoError(t, manager.Delete(ctx, ordersKey()))
	_, err = manager.Get(ctx, ordersKey())
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_UpdateTTL(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	entry := &Entry{Data: []byte(`{}`), Expires: time.Now().Add(5 * time.Minute)}
	require.NoError(t, manager.Set(ctx, ordersKey(), entry))

	newExpires := time.Now().Add(10 * time.Minute)
	require.NoError(t, manager.UpdateTTL(ctx, ordersKey(), newExpires))

	got, err := manager.Get(ctx, ordersKey())
	require.NoError(t, err)
	assert.WithinDuration(t, newExpires, got.Expires, time.Second)
}

func TestManager_UpdateTTL_Missing(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	err := manager.UpdateTTL(context.Background(), ordersKey(), time.Now().Add(time.Minute))
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_Set_NilEntry(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	assert.Error(t, manager.Set(context.Background(), ordersKey(), nil))
}
