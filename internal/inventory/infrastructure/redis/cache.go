package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmehra2102/Ticket-Booking-System/internal/inventory/application"
)

var getScript = goredis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return false end
redis.call('PEXPIRE', KEYS[1], ARGV[1])
return v
`)

var populateScript = goredis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v then return tonumber(v) end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return tonumber(ARGV[1])
`)

// -1: key missing, -2: result out of [0, max].
var adjustScript = goredis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return -1 end
local n = tonumber(v) + tonumber(ARGV[1])
local max = tonumber(ARGV[2])
if n < 0 or (max >= 0 and n > max) then return -2 end
redis.call('INCRBY', KEYS[1], ARGV[1])
return n
`)

// Cache keeps availability counters in Redis.
type Cache struct {
	rdb goredis.Cmdable
}

func NewCache(rdb goredis.Cmdable) *Cache {
	return &Cache{rdb: rdb}
}

func (c *Cache) Get(ctx context.Context, key string, ttl time.Duration) (int, bool, error) {
	v, err := getScript.Run(ctx, c.rdb, []string{key}, ttl.Milliseconds()).Int()
	if errors.Is(err, goredis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (c *Cache) Populate(ctx context.Context, key string, value int, ttl time.Duration) (int, error) {
	return populateScript.Run(ctx, c.rdb, []string{key}, value, ttl.Milliseconds()).Int()
}

func (c *Cache) Adjust(ctx context.Context, key string, delta, max int) (application.AdjustResult, error) {
	n, err := adjustScript.Run(ctx, c.rdb, []string{key}, delta, max).Int()
	if err != nil {
		return application.Missing, err
	}
	switch n {
	case -1:
		return application.Missing, nil
	case -2:
		return application.Refused, nil
	default:
		return application.Adjusted, nil
	}
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}
