package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefixes and idle expiry of rate limit buckets.
const (
	userBucketPrefix = "ratelimit:user:"
	ipBucketPrefix   = "ratelimit:ip:"
	userBucketTTL    = 2 * time.Minute
	ipBucketTTL      = 30 * time.Second
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// bucketScript refills and takes one token atomically.
// KEYS[1] bucket; ARGV rate (tokens/ms), capacity, now (ms), ttl (ms).
// Returns {allowed, retry_after_ms, remaining}.
var bucketScript = redis.NewScript(`
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1]) or capacity
local ts = tonumber(state[2]) or now

tokens = math.min(capacity, tokens + math.max(0, now - ts) * rate)

local allowed = 0
local wait = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
else
	wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', now)
redis.call('PEXPIRE', KEYS[1], ARGV[4])

return {allowed, wait, math.floor(tokens)}
`)

// CheckUserRateLimit takes one request from the user's bucket, refilled at
// ratePerMinute and holding at most burst requests. Zero rate is unlimited.
func (c *Cache) CheckUserRateLimit(ctx context.Context, userID int64, ratePerMinute, burst int) (*RateLimitResult, error) {
	if ratePerMinute <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst), ResetAt: time.Now()}, nil
	}
	key := userBucketPrefix + strconv.FormatInt(userID, 10)
	return c.take(ctx, key, float64(ratePerMinute)/float64(time.Minute.Milliseconds()), burst, userBucketTTL)
}

// CheckIPRateLimit is CheckUserRateLimit for anonymous callers, keyed by a
// hash of the client IP.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	if ratePerSecond <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst), ResetAt: time.Now()}, nil
	}
	return c.take(ctx, ipBucketPrefix+hashIP(ip), float64(ratePerSecond)/1000, burst, ipBucketTTL)
}

func (c *Cache) take(ctx context.Context, key string, perMs float64, burst int, ttl time.Duration) (*RateLimitResult, error) {
	if burst < 1 {
		burst = 1
	}
	now := time.Now()

	res, err := bucketScript.Run(ctx, c.client, []string{key},
		perMs, burst, now.UnixMilli(), ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("rate limit %s: unexpected reply %v", key, res)
	}

	remaining := res[2]
	untilFull := time.Duration(math.Ceil(float64(int64(burst)-remaining)/perMs)) * time.Millisecond

	return &RateLimitResult{
		Allowed:    res[0] == 1,
		Remaining:  remaining,
		ResetAt:    now.Add(untilFull),
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
	}, nil
}

// hashIP keeps raw client addresses out of Redis.
func hashIP(ip string) string {
	sum := sha256.Sum256([]byte("ip:" + ip))
	return hex.EncodeToString(sum[:8])
}
