package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireready/backend/internal/logger"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := New(context.Background(), Config{Addr: mr.Addr()}, logger.New(io.Discard, logger.LevelError, "test"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestNewFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), Config{Addr: addr}, logger.New(io.Discard, logger.LevelError, "test"))
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	var got payload
	hit, err := c.GetJSON(ctx, "stats:admin", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.SetJSON(ctx, "stats:admin", payload{Name: "a", Count: 3}, 30*time.Second))

	hit, err = c.GetJSON(ctx, "stats:admin", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, payload{Name: "a", Count: 3}, got)

	mr.FastForward(31 * time.Second)
	hit, err = c.GetJSON(ctx, "stats:admin", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestDelete(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "stats:admin", payload{Name: "a"}, time.Minute))
	require.NoError(t, c.Delete(ctx, "stats:admin"))
	require.NoError(t, c.Delete(ctx))

	var got payload
	hit, err := c.GetJSON(ctx, "stats:admin", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestAllowFixedWindow(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := c.Allow(ctx, "login:10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "hit %d", i+1)
	}

	ok, err := c.Allow(ctx, "login:10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"ratelimit:login:10.0.0.1"))

	ok, err = c.Allow(ctx, "login:10.0.0.2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(time.Minute + time.Second)
	ok, err = c.Allow(ctx, "login:10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllowWindowStartsAtFirstHit(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()
	key := keyPrefix + "ratelimit:register:10.0.0.1"

	ok, err := c.Allow(ctx, "register:10.0.0.1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL(key))

	mr.FastForward(40 * time.Second)
	ok, err = c.Allow(ctx, "register:10.0.0.1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 20*time.Second, mr.TTL(key))

	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

func TestAllowFailsWhenServerDown(t *testing.T) {
	c, mr := setupTestCache(t)
	mr.Close()

	_, err := c.Allow(context.Background(), "login:10.0.0.1", 3, time.Minute)
	assert.Error(t, err)
}

func TestCacheName(t *testing.T) {
	assert.Equal(t, "stats", cacheName("stats:admin"))
	assert.Equal(t, "plain", cacheName("plain"))
}
