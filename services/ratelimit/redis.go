// Package ratelimit provides fixed-window limiters, on redis or in process memory.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/campus/core"
)

const keyPrefix = "rate:fw:"

// fixedWindow counts the hit & returns {count, ttl in ms} atomically.
var fixedWindow = redis.NewScript(`
local key = KEYS[1]
local window = tonumber(ARGV[1])

if redis.call('SET', key, 1, 'NX', 'PX', window) then
	return {1, window}
end

local count = redis.call('INCR', key)
local ttl = redis.call('PTTL', key)
if ttl < 0 then
	-- the key lost its expiry; start a new window
	redis.call('PEXPIRE', key, window)
	ttl = window
end
return {count, ttl}
`)

type RedisLimiter struct {
	rdb *redis.Client
}

// NewRedisClient connects to the configured redis server.
func NewRedisClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	res, err := fixedWindow.Run(ctx, l.rdb, []string{keyPrefix + key}, window.Milliseconds()).Slice()
	if err != nil {
		return false, 0, errors.Wrap(err, "running fixed window script")
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("unexpected fixed window reply: %v", res)
	}
	count, ok1 := res[0].(int64)
	ttl, ok2 := res[1].(int64)
	if !ok1 || !ok2 {
		return false, 0, fmt.Errorf("unexpected fixed window reply: %v", res)
	}

	if count > int64(limit) {
		return false, time.Duration(ttl) * time.Millisecond, nil
	}
	return true, 0, nil
}
