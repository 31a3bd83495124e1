package websocket

import (
	"errors"
	"sync"
	"time"

	"devconnect/internal/interfaces"
	"devconnect/pkg/config"
	"devconnect/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultWriteWait      = 10 * time.Second // 写超时
	defaultPongWait       = 60 * time.Second // 等待pong的最大时间
	defaultMaxMessageSize = 4096             // 消息最大长度
	sendBufferSize        = 256
)

var (
	ErrSendBufferFull = errors.New("client send buffer full")
	ErrClientClosed   = errors.New("client closed")
)

type Client struct {
	UserID uint
	Conn   *websocket.Conn
	Send   chan []byte

	mu        sync.Mutex // 保护 Conn 写
	sendMu    sync.Mutex // 保护 Send 的关闭
	closed    bool
	handler   interfaces.MessageHandler
	manager   interfaces.ConnectionManager
	writeWait time.Duration
	pongWait  time.Duration
	readLimit int64
}

func NewClient(userID uint, conn *websocket.Conn, handler interfaces.MessageHandler, manager interfaces.ConnectionManager) *Client {
	wsConfig := config.GlobalConfig.WebSocket

	writeWait := time.Duration(wsConfig.WriteWaitSeconds) * time.Second
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	pongWait := time.Duration(wsConfig.PongWaitSeconds) * time.Second
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	readLimit := int64(wsConfig.MaxMessageSize)
	if readLimit <= 0 {
		readLimit = defaultMaxMessageSize
	}

	return &Client{
		UserID:    userID,
		Conn:      conn,
		Send:      make(chan []byte, sendBufferSize),
		handler:   handler,
		manager:   manager,
		writeWait: writeWait,
		pongWait:  pongWait,
		readLimit: readLimit,
	}
}

func (c *Client) GetUserID() uint {
	return c.UserID
}

// QueueBytes 非阻塞入队, 缓冲区满时返回 ErrSendBufferFull
func (c *Client) QueueBytes(data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close 关闭发送通道, WritePump 随后发送关闭帧并退出, 可重复调用
func (c *Client) Close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.manager.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.pongWait))
		c.handler.HandleHeartbeat(c.UserID)
		return nil
	})

	for {
		messageType, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.L.Warn("Unexpected websocket close", zap.Uint("userID", c.UserID), zap.Error(err))
			} else {
				logger.L.Debug("Websocket read finished", zap.Uint("userID", c.UserID), zap.Error(err))
			}
			break
		}

		if messageType == websocket.BinaryMessage {
			c.handler.HandleMessage(messageBytes, c.UserID)
		} else {
			logger.L.Warn("Ignoring non-binary websocket message",
				zap.Uint("userID", c.UserID),
				zap.Int("messageType", messageType))
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker((c.pongWait * 9) / 10)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case messageBytes, ok := <-c.Send:
			c.mu.Lock()
			c.Conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				// Send 通道已关闭
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				c.mu.Unlock()
				return
			}

			if err := c.Conn.WriteMessage(websocket.BinaryMessage, messageBytes); err != nil {
				c.mu.Unlock()
				logger.L.Warn("Failed to write websocket frame", zap.Uint("userID", c.UserID), zap.Error(err))
				return
			}

			// 顺带写出已排队的帧
			n := len(c.Send)
			for range n {
				batchBytes, ok := <-c.Send
				if !ok {
					c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
					c.mu.Unlock()
					return
				}
				if err := c.Conn.WriteMessage(websocket.BinaryMessage, batchBytes); err != nil {
					c.mu.Unlock()
					logger.L.Warn("Failed to write batched websocket frame", zap.Uint("userID", c.UserID), zap.Error(err))
					return
				}
			}
			c.mu.Unlock()

		case <-ticker.C:
			c.mu.Lock()
			c.Conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			err := c.Conn.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				logger.L.Debug("Failed to send ping", zap.Uint("userID", c.UserID), zap.Error(err))
				return
			}
		}
	}
}
