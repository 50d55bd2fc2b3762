// Package retry 提供有界的指数退避重试。
package retry

import (
	"context"
	"time"

	"medisecure-go/internal/errs"
	"medisecure-go/pkg/log"
)

// Do 执行 fn，失败时按指数退避重试，最多 attempts 次。
// 只有 errs.KindUpstream 类错误会被重试，其余错误立即返回。
// ctx 取消时停止等待并返回 ctx.Err()。
func Do(ctx context.Context, attempts int, baseWait time.Duration, op string, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	wait := baseWait
	for i := 1; i <= attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !errs.IsRetryable(err) || i == attempts {
			return err
		}

		log.Warnf("[Retry] %s 第 %d/%d 次失败，%v 后重试: %v", op, i, attempts, wait, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}
