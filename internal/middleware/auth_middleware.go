package middleware

import (
	"strings"

	"devconnect/internal/repository"
	apperrors "devconnect/pkg/errors"
	"devconnect/pkg/logger"
	"devconnect/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 上下文中保存当前用户ID的键
const UserIDKey = "userID"

// 验证JWT中间件
// 令牌来自 Authorization: Bearer <token>, 浏览器 WebSocket 无法设置请求头时使用 ?token=
func AuthMiddleware(userRepo *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractToken(c)
		if err != nil {
			abortWithError(c, err)
			return
		}

		// 解析token
		claims, err := utils.ParseToken(token)
		if err != nil {
			abortWithError(c, apperrors.Unauthorized("invalid or expired token", err))
			return
		}

		// 确认用户仍然存在
		exists, err := userRepo.Exists(c.Request.Context(), claims.UserID)
		if err != nil {
			logger.L.Error("Failed to load authenticated user", zap.Uint("userID", claims.UserID), zap.Error(err))
			abortWithError(c, apperrors.FromStore("load user", err))
			return
		}
		if !exists {
			abortWithError(c, apperrors.Unauthorized("user not found", nil))
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
		return "", apperrors.Unauthorized("authorization header is required", nil)
	}

	// 通常Authorization格式为: "Bearer token"
	parts := strings.SplitN(authHeader, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "") {
		return "", apperrors.Unauthorized("invalid authorization format", nil)
	}
	return parts[1], nil
}

func abortWithError(c *gin.Context, err error) {
	status, body := apperrors.ToResponse(err)
	c.AbortWithStatusJSON(status, body)
}

// CurrentUserID 读取 AuthMiddleware 写入的用户ID
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}

// OptionalAuth 令牌有效时写入用户ID, 否则按匿名访问继续
func OptionalAuth(userRepo *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractToken(c)
		if err != nil {
			c.Next()
			return
		}
		claims, err := utils.ParseToken(token)
		if err != nil {
			c.Next()
			return
		}
		if exists, err := userRepo.Exists(c.Request.Context(), claims.UserID); err == nil && exists {
			c.Set(UserIDKey, claims.UserID)
		}
		c.Next()
	}
}
