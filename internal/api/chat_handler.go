package api

import (
	"net/http"
	"strconv"

	"devconnect/internal/service"
	"devconnect/pkg/logger"
	"devconnect/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConversationPageSize = 50

// 处理私信相关的HTTP请求
type ChatHandler struct {
	chatService *service.ChatService
}

// 创建一个新的聊天处理器实例
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// 发送消息
func (h *ChatHandler) SendMessage(c *gin.Context) {
	senderID, ok := requireUser(c)
	if !ok {
		return
	}

	var req service.SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	message, err := h.chatService.SendMessage(c.Request.Context(), senderID, req)
	if err != nil {
		logger.L.Debug("SendMessage rejected", zap.Uint("senderID", senderID), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": message})
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversations, err := h.chatService.ListConversations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// 获取会话消息, 默认同时确认对方发来的未读消息, ?peek=true 时只读取
func (h *ChatHandler) GetConversation(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	otherID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	peek, _ := strconv.ParseBool(c.DefaultQuery("peek", "false"))

	page, err := h.chatService.ListMessages(c.Request.Context(), userID, otherID,
		utils.GetPaginationParams(c, defaultConversationPageSize), !peek)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ChatHandler) AckConversation(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	otherID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	receipt, err := h.chatService.AckConversation(c.Request.Context(), userID, otherID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *ChatHandler) UnreadCount(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	count, err := h.chatService.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func (h *ChatHandler) RecentUnread(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	messages, err := h.chatService.RecentUnread(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recent_messages": messages})
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	messageID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.chatService.MarkRead(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message marked as read"})
}

func (h *ChatHandler) EditMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	messageID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req service.EditMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	message, err := h.chatService.EditMessage(c.Request.Context(), messageID, userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	messageID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.chatService.DeleteMessage(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message deleted successfully"})
}
