package ratelimit

import (
	"context"
	"math"
	"time"
)

// Result - 한 번의 검사 결과
type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

// WaitSeconds - ResetTime 까지 남은 초 (올림, 최소 1)
func (r Result) WaitSeconds(now time.Time) int {
	if r.Allowed {
		return 0
	}
	wait := int(math.Ceil(r.ResetTime.Sub(now).Seconds()))
	if wait < 1 {
		wait = 1
	}
	return wait
}

// Limiter - 사용자별 요청 제한
type Limiter interface {
	Check(ctx context.Context, userID string) (Result, error)
}
