package utils

import (
	"context"
	"time"

	"devconnect/pkg/config"
	apperrors "devconnect/pkg/errors"
	"devconnect/pkg/logger"
	"devconnect/pkg/metrics"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Retry 对瞬时错误做有限次数的指数退避重试, 其它错误立即返回
func Retry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	cfg := config.GlobalConfig.Retry
	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = 3
	}

	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	b.MaxInterval = time.Second

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !apperrors.IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(attempts), backoff.WithNotify(func(err error, next time.Duration) {
		metrics.StoreRetries.Inc()
		logger.L.Warn("Retrying transient store failure", zap.Duration("next", next), zap.Error(err))
	}))
}
