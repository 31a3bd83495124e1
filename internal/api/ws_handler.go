package api

import (
	"net/http"
	"net/url"

	"devconnect/internal/interfaces"
	internalws "devconnect/internal/websocket"
	"devconnect/pkg/config"
	"devconnect/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// checkOrigin 未配置 allowed_origins 时允许所有来源
func checkOrigin(r *http.Request) bool {
	allowed := config.GlobalConfig.Server.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin || a == u.Host {
			return true
		}
	}
	return false
}

type WSHandler struct {
	hub        interfaces.ConnectionManager
	msgHandler interfaces.MessageHandler
}

func NewWSHandler(hub interfaces.ConnectionManager, msgHandler interfaces.MessageHandler) *WSHandler {
	return &WSHandler{
		hub:        hub,
		msgHandler: msgHandler,
	}
}

func (h *WSHandler) HandleConnection(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		logger.L.Error("userID not found in context for WebSocket")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.L.Error("Failed to upgrade WebSocket connection", zap.Uint("userID", userID), zap.Error(err))
		return
	}
	logger.L.Info("WebSocket connection upgraded", zap.Uint("userID", userID))

	client := internalws.NewClient(userID, conn, h.msgHandler, h.hub)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
