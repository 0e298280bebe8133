package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sandeepkv93/sitedeck/internal/security"
)

// attemptFailScript bumps one counter hash and returns the cooldown in ms.
// Fields: n (failures), last (ms), until (ms).
var attemptFailScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local base = tonumber(ARGV[2])
local mult = tonumber(ARGV[3])
local cap = tonumber(ARGV[4])
local window = tonumber(ARGV[5])
local free = tonumber(ARGV[6])

local n = tonumber(redis.call("HGET", KEYS[1], "n") or "0")
local last = tonumber(redis.call("HGET", KEYS[1], "last") or "0")
if last == 0 or (now - last) > window then
  n = 0
end
n = n + 1

local delay = 0
if n > free then
  delay = math.floor(base * (mult ^ (n - free - 1)))
  if delay > cap then
    delay = cap
  end
end

redis.call("HSET", KEYS[1], "n", tostring(n), "last", tostring(now), "until", tostring(now + delay))
redis.call("PEXPIRE", KEYS[1], window + delay + 60000)
return delay
`)

type RedisAttemptGuard struct {
	client redis.UniversalClient
	prefix string
	policy AttemptPolicy
	now    func() time.Time
}

func NewRedisAttemptGuard(client redis.UniversalClient, prefix string, policy AttemptPolicy) *RedisAttemptGuard {
	if prefix == "" {
		prefix = "sitedeck"
	}
	return &RedisAttemptGuard{
		client: client,
		prefix: prefix + ":attempts",
		policy: policy.normalized(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (g *RedisAttemptGuard) Wait(ctx context.Context, scope AttemptScope, subject, ip string) (time.Duration, error) {
	nowMS := g.now().UnixMilli()
	var wait time.Duration
	for _, k := range attemptKeys(scope, subject, ip) {
		vals, err := g.client.HMGet(ctx, g.key(k), "last", "until").Result()
		if err != nil {
			return 0, fmt.Errorf("read attempt state: %w", err)
		}
		if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
			continue
		}
		last, err1 := redisInt(vals[0])
		until, err2 := redisInt(vals[1])
		if err := errors.Join(err1, err2); err != nil {
			return 0, err
		}
		if nowMS-last > g.policy.ResetWindow.Milliseconds() || until <= nowMS {
			continue
		}
		wait = max(wait, time.Duration(until-nowMS)*time.Millisecond)
	}
	return wait, nil
}

func (g *RedisAttemptGuard) Fail(ctx context.Context, scope AttemptScope, subject, ip string) (time.Duration, error) {
	nowMS := g.now().UnixMilli()
	var wait time.Duration
	for _, k := range attemptKeys(scope, subject, ip) {
		res, err := attemptFailScript.Run(ctx, g.client, []string{g.key(k)},
			nowMS,
			g.policy.BaseDelay.Milliseconds(),
			g.policy.Multiplier,
			g.policy.MaxDelay.Milliseconds(),
			g.policy.ResetWindow.Milliseconds(),
			g.policy.FreeAttempts,
		).Int64()
		if err != nil {
			return 0, fmt.Errorf("record attempt failure: %w", err)
		}
		wait = max(wait, time.Duration(res)*time.Millisecond)
	}
	return wait, nil
}

func (g *RedisAttemptGuard) Clear(ctx context.Context, scope AttemptScope, subject, ip string) error {
	keys := attemptKeys(scope, subject, ip)
	return g.client.Del(ctx, g.key(keys[0]), g.key(keys[1])).Err()
}

// key hashes the value so raw emails never appear in redis.
func (g *RedisAttemptGuard) key(k attemptKey) string {
	return g.prefix + ":" + string(k.scope) + ":" + k.dim + ":" + security.HashToken(k.value)
}

// redisInt parses HMGET values, which come back as strings.
func redisInt(v any) (int64, error) {
	switch n := v.(type) {
	case string:
		return strconv.ParseInt(n, 10, 64)
	case int64:
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected redis value type %T", v)
	}
}
