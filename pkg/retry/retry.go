// Package retry 提供了对外部调用统一的重试策略。
// 向量化等可重试的外部调用共用这一个实现，避免在各调用点重复手写重试循环。
package retry

import (
	"context"
	"time"
)

// Policy 描述一次可重试调用的策略。
type Policy struct {
	// MaxAttempts 为最大尝试次数（含首次调用），至少为 1。
	MaxAttempts int
	// BaseDelay 为首次重试前的等待时间，之后按指数退避增长。
	BaseDelay time.Duration
	// MaxDelay 为单次退避的上限，0 表示不设上限。
	MaxDelay time.Duration
	// OnFinalAttempt 在进入最后一次尝试前调用，
	// 调用方可以借此收缩输入（例如向量化前截短文本）争取最后一次成功机会。
	OnFinalAttempt func()
}

// Default 返回向量化调用使用的默认策略。
func Default(maxAttempts int) Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// Do 按策略执行 fn，直到成功、尝试耗尽或 ctx 取消。
// 返回最后一次的错误；ctx 取消时返回 ctx.Err()。
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoff(attempt - 1)):
			}
		}
		if attempt == attempts && p.OnFinalAttempt != nil {
			p.OnFinalAttempt()
		}

		if lastErr = fn(ctx, attempt); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

// backoff 计算第 n 次重试前的指数退避时长。
func (p Policy) backoff(n int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
