package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/reservation-backend/internal/metrics"
)

type entry struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, metrics.New(prometheus.NewRegistry()), nil), mr
}

func TestKey(t *testing.T) {
	assert.Equal(t, "Reservation.Reservation.42", Key(EntityReservation, "42"))
	assert.Equal(t, "Reservation.Ticket.RES-AB12C", Key(EntityTicket, "RES-AB12C"))
}

func TestGetOrCreateCachesValue(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := Key(EntityReservation, "r1")

	var calls int32
	factory := func(ctx context.Context) (*entry, error) {
		atomic.AddInt32(&calls, 1)
		return &entry{ID: "r1", Code: "RES-AAAAA"}, nil
	}

	first, err := GetOrCreate(ctx, c, key, time.Hour, factory)
	require.NoError(t, err)
	second, err := GetOrCreate(ctx, c, key, time.Hour, factory)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, mr.Exists(key))

	mr.FastForward(2 * time.Hour)
	_, err = GetOrCreate(ctx, c, key, time.Hour, factory)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "expired entries reload")
}

func TestGetOrCreateDoesNotCacheErrors(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := Key(EntityReservation, "missing")

	notFound := errors.New("reservation not found")
	_, err := GetOrCreate(ctx, c, key, time.Hour, func(ctx context.Context) (*entry, error) {
		return nil, notFound
	})
	require.ErrorIs(t, err, notFound)
	assert.False(t, mr.Exists(key))
}

func TestInvalidateForcesReload(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	key := Key(EntityTicket, "RES-AAAAA")

	version := "v1"
	load := func(ctx context.Context) (string, error) { return version, nil }

	got, err := GetOrCreate(ctx, c, key, time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, "v1", got)

	version = "v2"
	got, _ = GetOrCreate(ctx, c, key, time.Hour, load)
	assert.Equal(t, "v1", got, "cached value served until invalidated")

	require.NoError(t, c.Invalidate(ctx, key, ""))
	got, _ = GetOrCreate(ctx, c, key, time.Hour, load)
	assert.Equal(t, "v2", got)
}

func TestInvalidatePrefix(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for _, k := range []string{Key(EntityStats, "a"), Key(EntityStats, "b"), Key(EntityReservation, "r1")} {
		require.NoError(t, mr.Set(k, `"x"`))
	}

	require.NoError(t, c.InvalidatePrefix(ctx, Key(EntityStats, "")))
	assert.False(t, mr.Exists(Key(EntityStats, "a")))
	assert.False(t, mr.Exists(Key(EntityStats, "b")))
	assert.True(t, mr.Exists(Key(EntityReservation, "r1")))
}

func TestConcurrentMissesShareFactory(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	key := Key(EntityReservation, "hot")

	release := make(chan struct{})
	var calls int32
	factory := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = GetOrCreate(ctx, c, key, time.Hour, factory)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, 7, r)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(5))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestNilCachePassesThrough(t *testing.T) {
	var c *Cache
	got, err := GetOrCreate(context.Background(), c, "k", time.Hour, func(ctx context.Context) (string, error) {
		return "direct", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "direct", got)
	assert.NoError(t, c.Invalidate(context.Background(), "k"))
}

func TestRedisDownDegradesToFactory(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	got, err := GetOrCreate(context.Background(), c, Key(EntityReservation, "r1"), time.Hour, func(ctx context.Context) (string, error) {
		return "from-store", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "from-store", got)
}
