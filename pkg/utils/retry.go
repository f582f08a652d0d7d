package utils

import (
	"context"
	"time"
)

// RetryFunc 重试函数类型
type RetryFunc func(attempt int) error

// BackoffFunc 根据尝试次数(从1开始)计算等待时间
type BackoffFunc func(attempt int) time.Duration

// LinearBackoff 线性退避: base, 2*base, 3*base...
func LinearBackoff(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * base
	}
}

// WithRetry 最多执行maxAttempts次fn，仅当isRetryable返回true时重试
// 返回最后一次的错误，或ctx被取消时的ctx.Err()
func WithRetry(ctx context.Context, maxAttempts int, backoff BackoffFunc, isRetryable func(error) bool, fn RetryFunc) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}

		// 不可重试或已是最后一次
		if !isRetryable(err) || attempt == maxAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}

	return err
}
