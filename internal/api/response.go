package api

import (
	"net/http"
	"strconv"
	"strings"

	"devconnect/internal/middleware"
	apperrors "devconnect/pkg/errors"
	"devconnect/pkg/logger"
	"devconnect/pkg/utils"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError 渲染 {"error": {code, message, retryable}}, 内部错误上报 sentry
func respondError(c *gin.Context, err error) {
	status, body := apperrors.ToResponse(err)
	if status >= http.StatusInternalServerError {
		logger.L.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Error(err))
		if status != http.StatusServiceUnavailable {
			logger.CaptureError(sentrygin.GetHubFromContext(c), err)
		}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	return middleware.CurrentUserID(c)
}

// requireUser 未登录时直接返回 401
func requireUser(c *gin.Context) (uint, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("not authenticated", nil))
	}
	return userID, ok
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		respondError(c, apperrors.Validation("invalid "+name+" parameter", err))
		return 0, false
	}
	return uint(id), true
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.L.Debug("Failed to bind request body", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, apperrors.Validation("invalid request body", err))
		return false
	}
	return true
}

// splitList 解析逗号分隔的查询参数, 例如 ?tags=go,rust
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func pagination(c *gin.Context) utils.PaginationParams {
	return utils.GetPaginationParams(c, utils.DefaultPageSize)
}

func parseQueryID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Query(name), 10, 32)
	if err != nil || id == 0 {
		respondError(c, apperrors.Validation("invalid "+name+" parameter", err))
		return 0, false
	}
	return uint(id), true
}
