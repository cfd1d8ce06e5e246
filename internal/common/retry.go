package common

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// retryBackoff 是两次重试之间的基础等待时间，按尝试次数线性增长
const retryBackoff = 5 * time.Millisecond

// IsTemporary 判断是否为临时性错误
func IsTemporary(err error) bool {
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return false
}

// IsRetryable 判断是否可重试
func IsRetryable(err error) bool {
	return IsTemporary(err) || errors.Is(err, sql.ErrConnDone)
}

// WithRetry 通用重试机制。retryable 为空时使用 IsRetryable。
// 返回最后一次的错误；ctx 取消时立即返回 ctx.Err()。
func WithRetry(ctx context.Context, maxRetries int, operation func(attempt int) error, retryable func(error) bool) error {
	if retryable == nil {
		retryable = IsRetryable
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	var err error
	for i := 0; i < maxRetries; i++ {
		if err = operation(i); err == nil {
			return nil
		}
		if !retryable(err) || i == maxRetries-1 {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff * time.Duration(i+1)):
		}
	}
	return err
}
