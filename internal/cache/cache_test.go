package cache

import (
	"context"
	"testing"
	"time"

	"slotbook/internal/ledger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

func newTestCache(t *testing.T, ttl, lockTTL time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, ttl, lockTTL), mr
}

func TestRanges_RoundTripAndInvalidate(t *testing.T) {
	c, mr := newTestCache(t, time.Minute, time.Second)
	ctx := context.Background()

	_, gen, ok := c.Ranges(ctx, "wedding", day)
	assert.False(t, ok)
	assert.Equal(t, "0", gen)

	ranges := []ledger.ReservedRange{{ReservationID: "r1", ResourceID: "wedding", Date: day, Start: 2, End: 4}}
	c.StoreRanges(ctx, "wedding", day, gen, ranges)

	got, _, ok := c.Ranges(ctx, "wedding", day)
	require.True(t, ok)
	assert.Equal(t, ranges, got)
	assert.True(t, mr.Exists("slotbook:ranges:wedding:2026-09-01"))

	c.Invalidate(ctx, "wedding", day)
	_, gen, ok = c.Ranges(ctx, "wedding", day)
	assert.False(t, ok)
	assert.Equal(t, "1", gen)

	c.StoreRanges(ctx, "wedding", day, gen, nil)
	got, _, ok = c.Ranges(ctx, "wedding", day)
	require.True(t, ok)
	assert.Empty(t, got)
}

func TestStoreRanges_DiscardsFillAfterInvalidate(t *testing.T) {
	c, mr := newTestCache(t, time.Minute, time.Second)
	ctx := context.Background()

	// A reader misses and loads the day before a writer commits.
	_, gen, ok := c.Ranges(ctx, "wedding", day)
	require.False(t, ok)
	stale := []ledger.ReservedRange{}

	// The writer commits and invalidates before the reader fills.
	c.Invalidate(ctx, "wedding", day)
	c.StoreRanges(ctx, "wedding", day, gen, stale)

	_, _, ok = c.Ranges(ctx, "wedding", day)
	assert.False(t, ok)
	assert.False(t, mr.Exists("slotbook:ranges:wedding:2026-09-01"))
	assert.Greater(t, mr.TTL("slotbook:gen:wedding:2026-09-01"), time.Duration(0))

	// The next reader sees the new generation and fills fresh ranges.
	_, gen, _ = c.Ranges(ctx, "wedding", day)
	fresh := []ledger.ReservedRange{{ReservationID: "r2", Start: 3, End: 5}}
	c.StoreRanges(ctx, "wedding", day, gen, fresh)
	got, _, ok := c.Ranges(ctx, "wedding", day)
	require.True(t, ok)
	assert.Equal(t, fresh, got)
}

func TestRanges_EmptyDayIsCached(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, time.Second)
	ctx := context.Background()

	c.StoreRanges(ctx, "wedding", day, "0", nil)

	got, _, ok := c.Ranges(ctx, "wedding", day)
	require.True(t, ok)
	assert.Empty(t, got)
}

func TestRanges_Expire(t *testing.T) {
	c, mr := newTestCache(t, time.Minute, time.Second)
	ctx := context.Background()

	c.StoreRanges(ctx, "wedding", day, "0", []ledger.ReservedRange{{Start: 0, End: 1}})
	mr.FastForward(2 * time.Minute)

	_, _, ok := c.Ranges(ctx, "wedding", day)
	assert.False(t, ok)
}

func TestLock(t *testing.T) {
	c, mr := newTestCache(t, time.Minute, 200*time.Millisecond)
	ctx := context.Background()

	unlock, err := c.Lock(ctx, "wedding", day)
	require.NoError(t, err)
	assert.True(t, mr.Exists("slotbook:lock:wedding:2026-09-01"))

	// A second writer gives up after the wait window.
	_, err = c.Lock(ctx, "wedding", day)
	assert.ErrorIs(t, err, ErrLockTimeout)

	// Other dates are independent.
	unlockOther, err := c.Lock(ctx, "wedding", day.AddDate(0, 0, 1))
	require.NoError(t, err)
	unlockOther()

	unlock()
	assert.False(t, mr.Exists("slotbook:lock:wedding:2026-09-01"))

	unlock, err = c.Lock(ctx, "wedding", day)
	require.NoError(t, err)
	unlock()
}

func TestLock_ReleaseKeepsForeignLock(t *testing.T) {
	c, mr := newTestCache(t, time.Minute, time.Second)
	ctx := context.Background()

	unlock, err := c.Lock(ctx, "wedding", day)
	require.NoError(t, err)

	// Our lock expired and another process took it.
	require.NoError(t, mr.Set("slotbook:lock:wedding:2026-09-01", "someone-else"))
	unlock()

	val, err := mr.Get("slotbook:lock:wedding:2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

func TestNilCache(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	_, _, ok := c.Ranges(ctx, "wedding", day)
	assert.False(t, ok)
	c.StoreRanges(ctx, "wedding", day, "0", nil)
	c.Invalidate(ctx, "wedding", day)

	unlock, err := c.Lock(ctx, "wedding", day)
	require.NoError(t, err)
	unlock()
}
