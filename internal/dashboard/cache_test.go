package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateCache_Expiry(t *testing.T) {
	ctx := context.Background()
	cache := NewAggregateCache(time.Minute)
	defer cache.Stop()

	require.NoError(t, cache.Set(ctx, "a", []byte("1")))
	require.NoError(t, cache.SetWithTTL(ctx, "b", []byte("2"), -time.Second))

	value, ok, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), value)

	_, ok, _ = cache.Get(ctx, "b")
	assert.False(t, ok)

	cache.removeExpired()
	assert.Equal(t, 1, cache.Size())
}

func TestAggregateCache_DeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	cache := NewAggregateCache(time.Minute)
	defer cache.Stop()

	a, b := uuid.New(), uuid.New()
	require.NoError(t, cache.Set(ctx, CompanyKey(a, "summary"), []byte("{}")))
	require.NoError(t, cache.Set(ctx, CompanyKey(a, "forecast", 10), []byte("{}")))
	require.NoError(t, cache.Set(ctx, CompanyKey(b, "summary"), []byte("{}")))

	require.NoError(t, cache.DeleteByPrefix(ctx, CompanyPrefix(a)))
	assert.Equal(t, 1, cache.Size())

	_, ok, _ := cache.Get(ctx, CompanyKey(b, "summary"))
	assert.True(t, ok)
}

func TestGetOrSet(t *testing.T) {
	ctx := context.Background()
	cache := NewAggregateCache(time.Minute)
	defer cache.Stop()

	calls := 0
	compute := func() ([]float64, error) {
		calls++
		return []float64{1, 2, 3}, nil
	}

	value, hit, err := GetOrSet(ctx, cache, "k", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []float64{1, 2, 3}, value)

	value, hit, err = GetOrSet(ctx, cache, "k", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []float64{1, 2, 3}, value)
	assert.Equal(t, 1, calls)

	// errors are not cached
	_, _, err = GetOrSet(ctx, cache, "bad", func() (int, error) { return 0, errors.New("boom") })
	assert.Error(t, err)
	_, ok, _ := cache.Get(ctx, "bad")
	assert.False(t, ok)

	// a nil cache always computes
	_, hit, err = GetOrSet[int](ctx, nil, "k", func() (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestStatsCache(t *testing.T) {
	ctx := context.Background()
	inner := NewAggregateCache(time.Minute)
	defer inner.Stop()

	var observed []bool
	cache := NewStatsCache(inner, func(hit bool) { observed = append(observed, hit) })

	require.NoError(t, cache.Set(ctx, "k", []byte("v")))
	cache.Get(ctx, "k")
	cache.Get(ctx, "missing")
	cache.Get(ctx, "k")

	stats := cache.GetStats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
	assert.Equal(t, []bool{true, false, true}, observed)
}

func TestKey(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	assert.Equal(t, "company:00000000-0000-0000-0000-000000000001:forecast:10", CompanyKey(id, "forecast", 10))
	assert.Equal(t, "company:00000000-0000-0000-0000-000000000001:", CompanyPrefix(id))
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(client, 5*time.Minute, "co2:")

	mock.ExpectGet("co2:summary").RedisNil()
	_, ok, err := cache.Get(ctx, "summary")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectSet("co2:summary", `{"total":1500}`, 5*time.Minute).SetVal("OK")
	require.NoError(t, cache.Set(ctx, "summary", []byte(`{"total":1500}`)))

	mock.ExpectGet("co2:summary").SetVal(`{"total":1500}`)
	value, ok, err := cache.Get(ctx, "summary")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"total":1500}`, string(value))

	mock.ExpectGet("co2:broken").SetErr(errors.New("connection refused"))
	_, _, err = cache.Get(ctx, "broken")
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_DeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(client, time.Minute, "co2:")

	mock.ExpectScan(0, "co2:company:abc:*", 100).SetVal([]string{"co2:company:abc:summary"}, 7)
	mock.ExpectDel("co2:company:abc:summary").SetVal(1)
	mock.ExpectScan(7, "co2:company:abc:*", 100).SetVal([]string{}, 0)

	require.NoError(t, cache.DeleteByPrefix(ctx, "company:abc:"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
