package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kpiSnapshot struct {
	Occupancy float64 `json:"occupancy"`
	ADR       float64 `json:"adr"`
}

func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rc := NewRedisCacheFromClient(client, "test")
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestMemoryCache_TypedRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "kpi", kpiSnapshot{Occupancy: 72.5, ADR: 110}, time.Minute))

	var got kpiSnapshot
	require.NoError(t, mc.Get(ctx, "kpi", &got))
	assert.Equal(t, kpiSnapshot{Occupancy: 72.5, ADR: 110}, got)

	var missing kpiSnapshot
	assert.True(t, errors.Is(mc.Get(ctx, "nope", &missing), ErrCacheMiss))
}

func TestMemoryCache_ExpiryAndEviction(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "short", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	ok, err := mc.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Set(ctx, "a", "1", time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", "2", time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "c", "3", time.Minute))

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "a", &s), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "c", &s))
	assert.Equal(t, "3", s)
}

func TestMemoryCache_TryLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "run", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "run", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "run"))
	ok, err = mc.TryLock(ctx, "run", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	rc, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "kpi", kpiSnapshot{Occupancy: 50, ADR: 90}, time.Minute))
	assert.True(t, mr.Exists("test:kpi"))

	var got kpiSnapshot
	require.NoError(t, rc.Get(ctx, "kpi", &got))
	assert.Equal(t, 90.0, got.ADR)

	require.NoError(t, rc.Delete(ctx, "kpi"))
	assert.ErrorIs(t, rc.Get(ctx, "kpi", &got), ErrCacheMiss)
}

func TestRedisCache_LockExpires(t *testing.T) {
	rc, mr := newTestRedis(t)
	ctx := context.Background()

	ok, err := rc.TryLock(ctx, "revenue:run", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rc.TryLock(ctx, "revenue:run", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(11 * time.Second)
	ok, err = rc.TryLock(ctx, "revenue:run", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLayeredCache_FallsBackToRedis(t *testing.T) {
	rc, _ := newTestRedis(t)
	other := NewRedisCacheFromClient(rc.Client(), "test")
	lc := NewLayeredCache(rc)
	ctx := context.Background()

	require.NoError(t, other.Set(ctx, "k", kpiSnapshot{ADR: 120}, time.Minute))

	var got kpiSnapshot
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, 120.0, got.ADR)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &got), ErrCacheMiss)
	_ = lc.mem.Close()
}

func TestGenerateKeyWithParams(t *testing.T) {
	var room *string
	code := "DBL"
	assert.Equal(t, "kpis:2024-01-01:all", GenerateKeyWithParams("kpis", "2024-01-01", room))
	assert.Equal(t, "kpis:2024-01-01:DBL", GenerateKeyWithParams("kpis", "2024-01-01", &code))
}

func TestNewRedisCache_DialsAndPrefixes(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port := mr.Host(), 0
	_, err := fmt.Sscanf(mr.Port(), "%d", &port)
	require.NoError(t, err)

	rc, err := NewRedisCache(context.Background(), RedisConfig{Host: host, Port: port, Prefix: "hotel"})
	require.NoError(t, err)
	defer rc.Close()

	require.NoError(t, rc.Set(context.Background(), "kpi:2024-06-01", kpiSnapshot{ADR: 95}, time.Minute))
	assert.True(t, mr.Exists("hotel:kpi:2024-06-01"))

	mr.Close()
	_, err = NewRedisCache(context.Background(), RedisConfig{Host: host, Port: port})
	assert.Error(t, err)
}
