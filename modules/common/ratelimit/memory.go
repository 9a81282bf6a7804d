package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryLimiter - 프로세스 메모리 기반 window limiter
// 인스턴스 간에 공유되지 않음, 여러 대로 띄우면 RedisLimiter 사용
type MemoryLimiter struct {
	max    int
	window time.Duration
	store  *cache.Cache
	mu     sync.Mutex
	now    func() time.Time
}

// NewMemoryLimiter - cleanup 주기마다 만료된 사용자 기록을 go-cache janitor 가 제거
func NewMemoryLimiter(max int, window, cleanup time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:    max,
		window: window,
		store:  cache.New(window, cleanup),
		now:    time.Now,
	}
}

// Check - window 밖 타임스탬프를 버리고 남은 개수로 허용 여부 판단
func (l *MemoryLimiter) Check(_ context.Context, userID string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	var timestamps []time.Time
	if v, ok := l.store.Get(userID); ok {
		timestamps = v.([]time.Time)
	}

	kept := timestamps[:0:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.max {
		l.store.Set(userID, kept, l.window)
		return Result{
			Allowed:   false,
			Remaining: 0,
			ResetTime: kept[0].Add(l.window),
		}, nil
	}

	kept = append(kept, now)
	l.store.Set(userID, kept, l.window)

	return Result{
		Allowed:   true,
		Remaining: l.max - len(kept),
		ResetTime: kept[0].Add(l.window),
	}, nil
}

// Tracked - 기록이 남아있는 사용자 수
func (l *MemoryLimiter) Tracked() int {
	return l.store.ItemCount()
}
