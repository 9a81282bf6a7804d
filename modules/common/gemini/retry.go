package gemini

import (
	"context"
	"strings"
	"time"
)

// IsRateLimitError - 429 / RESOURCE_EXHAUSTED / quota 에러인지 확인
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "quota")
}

// RetryWithin - budget 안에서 interval 간격으로 fn 을 반복 호출
// 성공하면 즉시 반환, budget 이 끝나면 마지막 에러와 시도 횟수를 반환
func RetryWithin[T any](ctx context.Context, budget, interval time.Duration, fn func(ctx context.Context) (T, error)) (T, int, error) {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	var zero T
	var lastErr error
	attempts := 0

	for {
		attempts++
		result, err := fn(ctx)
		if err == nil {
			return result, attempts, nil
		}
		lastErr = err

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, attempts, lastErr
		case <-timer.C:
		}
	}
}
