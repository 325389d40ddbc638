// Package cache keeps short-lived copies of reserved ranges in Redis and
// serialises writers of the same event and date across processes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/ledger"
	"slotbook/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("timed out waiting for booking lock")

// genTTL outlives any read-then-fill of the range cache.
const genTTL = 24 * time.Hour

var storeScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[2])
if not gen then
    gen = "0"
end
if gen ~= ARGV[1] then
    return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

var invalidateScript = redis.NewScript(`
redis.call("INCR", KEYS[2])
redis.call("PEXPIRE", KEYS[2], ARGV[1])
return redis.call("DEL", KEYS[1])
`)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// Cache is a Redis-backed range cache. A nil *Cache or one without a client
// misses every read and grants every lock.
type Cache struct {
	rdb       *redis.Client
	ttl       time.Duration
	lockTTL   time.Duration
	lockWait  time.Duration
	retryStep time.Duration
}

// New returns a cache that keeps ranges for ttl and holds locks for lockTTL.
func New(rdb *redis.Client, ttl, lockTTL time.Duration) *Cache {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &Cache{
		rdb:       rdb,
		ttl:       ttl,
		lockTTL:   lockTTL,
		lockWait:  lockTTL,
		retryStep: 25 * time.Millisecond,
	}
}

func (c *Cache) enabled() bool {
	return c != nil && c.rdb != nil
}

func rangesKey(eventID string, date time.Time) string {
	return fmt.Sprintf("slotbook:ranges:%s:%s", eventID, date.Format(model.DateLayout))
}

func genKey(eventID string, date time.Time) string {
	return fmt.Sprintf("slotbook:gen:%s:%s", eventID, date.Format(model.DateLayout))
}

func lockKey(eventID string, date time.Time) string {
	return fmt.Sprintf("slotbook:lock:%s:%s", eventID, date.Format(model.DateLayout))
}

// Ranges returns cached ranges for an event and date. On a miss it still
// returns the generation of the key, which StoreRanges needs to fill it.
func (c *Cache) Ranges(ctx context.Context, eventID string, date time.Time) ([]ledger.ReservedRange, string, bool) {
	if !c.enabled() || c.ttl <= 0 {
		return nil, "", false
	}
	vals, err := c.rdb.MGet(ctx, rangesKey(eventID, date), genKey(eventID, date)).Result()
	if err != nil || len(vals) != 2 {
		return nil, "", false
	}

	gen := "0"
	if g, ok := vals[1].(string); ok {
		gen = g
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, gen, false
	}
	var out []ledger.ReservedRange
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, gen, false
	}
	return out, gen, true
}

// StoreRanges caches ranges read from the store at generation gen. Nothing is
// stored when the key was invalidated since gen was read.
func (c *Cache) StoreRanges(ctx context.Context, eventID string, date time.Time, gen string, ranges []ledger.ReservedRange) {
	if !c.enabled() || c.ttl <= 0 || gen == "" {
		return
	}
	if ranges == nil {
		ranges = []ledger.ReservedRange{}
	}
	data, err := json.Marshal(ranges)
	if err != nil {
		return
	}
	keys := []string{rangesKey(eventID, date), genKey(eventID, date)}
	_ = storeScript.Run(ctx, c.rdb, keys, gen, data, c.ttl.Milliseconds()).Err()
}

// Invalidate drops the cached ranges of an event and date and bumps its
// generation, so fills started before the call are discarded.
func (c *Cache) Invalidate(ctx context.Context, eventID string, date time.Time) {
	if !c.enabled() {
		return
	}
	keys := []string{rangesKey(eventID, date), genKey(eventID, date)}
	_ = invalidateScript.Run(ctx, c.rdb, keys, genTTL.Milliseconds()).Err()
}

// Lock acquires the writer lock of an event and date, waiting up to the lock
// TTL. The returned func releases it only if it is still ours.
func (c *Cache) Lock(ctx context.Context, eventID string, date time.Time) (func(), error) {
	if !c.enabled() {
		return func() {}, nil
	}

	key := lockKey(eventID, date)
	token := uuid.NewString()
	deadline := time.Now().Add(c.lockWait)

	for {
		ok, err := c.rdb.SetNX(ctx, key, token, c.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func() {
				// Release even when the request context is already done.
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = unlockScript.Run(releaseCtx, c.rdb, []string{key}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryStep):
		}
	}
}
