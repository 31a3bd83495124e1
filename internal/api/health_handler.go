package api

import (
	"context"
	"net/http"
	"time"

	"devconnect/pkg/cache"
	"devconnect/pkg/db"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	presence *cache.Presence
}

func NewHealthHandler(presence *cache.Presence) *HealthHandler {
	return &HealthHandler{presence: presence}
}

// Healthz 数据库不可用时返回 503, redis 只报告状态
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{"database": "ok"}

	sqlDB, err := db.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		status = http.StatusServiceUnavailable
		checks["database"] = err.Error()
	}

	switch {
	case !h.presence.Enabled():
		checks["presence"] = "disabled"
	case h.presence.Ping(ctx) != nil:
		checks["presence"] = "unavailable"
	default:
		checks["presence"] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "unavailable"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}
