package websocket

import (
	"errors"
	"time"

	"devconnect/internal/interfaces"
	internalProto "devconnect/internal/proto"
	"devconnect/pkg/config"
	"devconnect/pkg/logger"
	"devconnect/pkg/metrics"

	"go.uber.org/zap"
)

var ErrHubBusy = errors.New("hub delivery channel is full")

type delivery struct {
	userID    uint
	eventType string
	data      []byte
}

type presenceQuery struct {
	userID uint
	reply  chan bool
}

// Hub 单进程实现, clients 仅由 Run 所在的 goroutine 访问
type Hub struct {
	clients    map[uint]interfaces.Client
	deliveries chan delivery
	register   chan interfaces.Client
	unregister chan interfaces.Client
	queries    chan presenceQuery
	done       chan struct{}

	eventHandler interfaces.ConnectionEventHandler
	connEvents   *connEventQueue

	retryCount    int
	retryInterval time.Duration
}

func NewHub(eventHandler interfaces.ConnectionEventHandler) *Hub {
	wsConfig := config.GlobalConfig.WebSocket

	retryCount := wsConfig.MessageRetryCount
	if retryCount <= 0 {
		retryCount = 3
		logger.L.Warn("Invalid retryCount, using default", zap.Int("default", retryCount))
	}

	retryInterval := time.Duration(wsConfig.MessageRetryIntervalMs) * time.Millisecond
	if retryInterval <= 0 {
		retryInterval = 100 * time.Millisecond
		logger.L.Warn("Invalid retryInterval, using default", zap.Duration("default", retryInterval))
	}

	bufferSize := wsConfig.BroadcastBufferSize
	if bufferSize <= 0 {
		bufferSize = 256
		logger.L.Warn("Invalid BroadcastBufferSize, using default", zap.Int("default", bufferSize))
	}

	h := &Hub{
		clients:       make(map[uint]interfaces.Client),
		deliveries:    make(chan delivery, bufferSize),
		register:      make(chan interfaces.Client),
		unregister:    make(chan interfaces.Client),
		queries:       make(chan presenceQuery),
		done:          make(chan struct{}),
		eventHandler:  eventHandler,
		retryCount:    retryCount,
		retryInterval: retryInterval,
	}
	h.connEvents = newConnEventQueue(func() interfaces.ConnectionEventHandler { return h.eventHandler })
	return h
}

func (h *Hub) Register(client interfaces.Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *Hub) Unregister(client interfaces.Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// SetEventHandler 必须在 Run 之前调用
func (h *Hub) SetEventHandler(handler interfaces.ConnectionEventHandler) {
	h.eventHandler = handler
}

// Notify 编码事件并排队投递给指定用户, 不阻塞调用方
func (h *Hub) Notify(userID uint, event internalProto.Event) error {
	data, err := internalProto.EncodeEvent(event, time.Now())
	if err != nil {
		return err
	}
	select {
	case h.deliveries <- delivery{userID: userID, eventType: event.Type, data: data}:
		return nil
	default:
		metrics.RelayEvents.WithLabelValues(event.Type, "dropped").Inc()
		logger.L.Warn("Hub delivery channel full, dropping event",
			zap.Uint("userID", userID), zap.String("type", event.Type))
		return ErrHubBusy
	}
}

func (h *Hub) IsClientConnected(userID uint) bool {
	q := presenceQuery{userID: userID, reply: make(chan bool, 1)}
	select {
	case h.queries <- q:
		return <-q.reply
	case <-h.done:
		return false
	}
}

func (h *Hub) Close() error {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
	h.connEvents.close()
	return nil
}

func (h *Hub) trySendMessage(client interfaces.Client, data []byte) bool {
	if err := client.QueueBytes(data); err == nil {
		return true
	} else if !errors.Is(err, ErrSendBufferFull) {
		return false
	}

	for i := 0; i < h.retryCount; i++ {
		logger.L.Warn("Client send buffer full, retry attempt",
			zap.Uint("userID", client.GetUserID()),
			zap.Int("attempt", i+1))
		time.Sleep(h.retryInterval)
		if err := client.QueueBytes(data); err == nil {
			return true
		}
	}

	// 所有重试失败 关闭连接
	logger.L.Error("Client send buffer still full after retries, closing connection",
		zap.Uint("userID", client.GetUserID()),
		zap.Int("attempts", h.retryCount))
	h.remove(client)
	return false
}

func (h *Hub) remove(client interfaces.Client) {
	userID := client.GetUserID()
	if current, ok := h.clients[userID]; ok && current == client {
		delete(h.clients, userID)
		client.Close()
		metrics.RelayConnections.Set(float64(len(h.clients)))
		h.connEvents.push(userID, false)
	}
}

func (h *Hub) Run() {
	go h.connEvents.run()
	for {
		select {
		case <-h.done:
			for _, client := range h.clients {
				client.Close()
			}
			h.clients = make(map[uint]interfaces.Client)
			metrics.RelayConnections.Set(0)
			return

		case client := <-h.register:
			// 同一用户的新连接替换旧连接
			userID := client.GetUserID()
			if old, ok := h.clients[userID]; ok && old != client {
				old.Close()
			}
			h.clients[userID] = client
			metrics.RelayConnections.Set(float64(len(h.clients)))
			logger.L.Info("Client registered", zap.Uint("userID", userID))
			h.connEvents.push(userID, true)

		case client := <-h.unregister:
			h.remove(client)
			logger.L.Info("Client unregistered", zap.Uint("userID", client.GetUserID()))

		case q := <-h.queries:
			_, ok := h.clients[q.userID]
			q.reply <- ok

		case d := <-h.deliveries:
			client, ok := h.clients[d.userID]
			if !ok {
				// 离线用户只持久化, 不推送
				metrics.RelayEvents.WithLabelValues(d.eventType, "offline").Inc()
				continue
			}
			if h.trySendMessage(client, d.data) {
				metrics.RelayEvents.WithLabelValues(d.eventType, "delivered").Inc()
			} else {
				metrics.RelayEvents.WithLabelValues(d.eventType, "dropped").Inc()
			}
		}
	}
}
