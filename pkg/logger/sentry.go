package logger

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// InitSentry dsn 为空时不上报
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}
	L.Info("Sentry initialized", zap.String("environment", environment))
	return nil
}

// CaptureError 上报到给定 hub, hub 为空时使用全局 hub
func CaptureError(hub *sentry.Hub, err error) {
	if err == nil {
		return
	}
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}

// FlushSentry 退出前发送缓冲的事件
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
