package collector

import (
	"context"
	"time"

	"fin-research-api/pkg/errors"
	"fin-research-api/pkg/logger"
)

// WithRetry 执行数据源调用并按策略重试，只有瞬时错误才会触发重试
func WithRetry[T any](ctx context.Context, source string, policy RetryPolicy, fn func(ctx context.Context) (T, error)) Result[T] {
	policy = policy.normalize()
	start := time.Now()

	var (
		data    T
		lastErr error
	)

	wait := policy.MinWait
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		data, lastErr = fn(ctx)
		if lastErr == nil {
			return Result[T]{
				Success:    true,
				Data:       data,
				Source:     source,
				DurationMs: time.Since(start).Milliseconds(),
			}
		}

		if !errors.IsTransient(lastErr) || attempt == policy.MaxAttempts {
			break
		}

		logger.Warn(ctx, "数据源调用失败，准备重试",
			"source", source,
			"attempt", attempt,
			"wait", wait.String(),
			"error", lastErr.Error(),
		)

		select {
		case <-ctx.Done():
			lastErr = errors.Wrap(errors.CodeTimeout, ctx.Err())
			return Result[T]{
				Err:        lastErr,
				Source:     source,
				DurationMs: time.Since(start).Milliseconds(),
			}
		case <-time.After(wait):
		}

		wait *= 2
		if wait > policy.MaxWait {
			wait = policy.MaxWait
		}
	}

	return Result[T]{
		Err:        lastErr,
		Source:     source,
		DurationMs: time.Since(start).Milliseconds(),
	}
}
