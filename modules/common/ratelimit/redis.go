package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript - 오래된 항목 제거, 개수 확인, 허용 시 추가
// 반환: {allowed, count, oldest_ms}
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < max then
  redis.call('ZADD', key, now, member)
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = now
if oldest[2] then
  oldestScore = tonumber(oldest[2])
end
return {allowed, count, oldestScore}
`)

// RedisLimiter - 여러 인스턴스가 공유하는 window limiter
type RedisLimiter struct {
	rdb    redis.Scripter
	max    int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisLimiter - RedisLimiter 생성
func NewRedisLimiter(rdb redis.Scripter, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		max:    max,
		window: window,
		prefix: "razza:ratelimit:",
		now:    time.Now,
	}
}

// Check - Lua 스크립트 한 번으로 검사/기록
func (l *RedisLimiter) Check(ctx context.Context, userID string) (Result, error) {
	now := l.now()
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	raw, err := slidingWindowScript.Run(ctx, l.rdb,
		[]string{l.prefix + userID},
		nowMs, l.window.Milliseconds(), l.max, member,
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(raw) != 3 {
		return Result{}, fmt.Errorf("unexpected rate limit reply: %v", raw)
	}

	allowed := raw[0] == 1
	count := int(raw[1])
	resetTime := time.UnixMilli(raw[2]).Add(l.window)

	remaining := l.max - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: allowed, Remaining: remaining, ResetTime: resetTime}, nil
}
