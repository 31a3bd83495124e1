package api

import (
	"net/http"

	"devconnect/internal/model"
	"devconnect/internal/service"
	"devconnect/pkg/logger"
	"devconnect/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 处理认证相关的HTTP请求
type AuthHandler struct {
	authService *service.AuthService
}

// 创建一个新的认证处理器实例
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func account(u *model.User) service.AccountView {
	return service.AccountView{User: u, Email: u.Email}
}

// 处理用户注册请求, 注册成功后直接返回令牌
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := utils.GenerateToken(user.ID)
	if err != nil {
		logger.L.Error("Failed to generate token after registration", zap.Uint("userID", user.ID), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Register successful",
		"token":   token,
		"user":    account(user),
	})
}

// 处理用户登陆请求
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  account(user),
	})
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	user, err := h.authService.Me(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": account(user)})
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req service.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.authService.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": account(user)})
}
