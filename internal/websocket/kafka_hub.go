package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"devconnect/internal/interfaces"
	internalProto "devconnect/internal/proto"
	"devconnect/pkg/config"
	"devconnect/pkg/logger"
	"devconnect/pkg/metrics"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// KafkaHub 实现interfaces.ConnectionManager接口的Kafka版本
// 本地未连接的用户通过 direct 主题转发给其他实例
type KafkaHub struct {
	clients    map[uint]interfaces.Client
	clientsMu  sync.RWMutex
	producer   sarama.SyncProducer
	consumer   sarama.ConsumerGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once

	eventHandler interfaces.ConnectionEventHandler
	handlerMu    sync.RWMutex
	connEvents   *connEventQueue
	cfg          *config.KafkaConfig
}

// 创建一个新的KafkaHub
func NewKafkaHub(eventHandler interfaces.ConnectionEventHandler) (*KafkaHub, error) {
	cfg := &config.GlobalConfig.Messaging.Kafka

	// 配置Kafka
	kConfig := sarama.NewConfig()
	kConfig.Producer.RequiredAcks = sarama.WaitForAll
	kConfig.Producer.Return.Successes = true
	kConfig.Producer.Retry.Max = 3
	kConfig.Consumer.Return.Errors = true
	kConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	kConfig.Version = sarama.V2_8_0_0 // 使用一个稳定版本

	// 创建生产者
	producer, err := sarama.NewSyncProducer(cfg.Brokers, kConfig)
	if err != nil {
		logger.L.Error("Failed to start Kafka producer", zap.Error(err))
		return nil, fmt.Errorf("failed to start Kafka producer: %w", err)
	}

	// 每个实例独占一个消费者组, 否则同一 key 的记录只会落到组内某一个实例
	groupID := instanceGroupID(cfg.ConsumerGroup, cfg.InstanceID)
	logger.L.Info("Joining Kafka consumer group", zap.String("group", groupID))
	consumer, err := sarama.NewConsumerGroup(cfg.Brokers, groupID, kConfig)
	if err != nil {
		logger.L.Error("Failed to start Kafka consumer group", zap.Error(err))
		producer.Close()
		return nil, fmt.Errorf("failed to start Kafka consumer group: %w", err)
	}

	return newKafkaHub(producer, consumer, cfg, eventHandler), nil
}

// instanceGroupID 组合实例专属的消费者组名, instanceID 为空时使用主机名加随机后缀
func instanceGroupID(base, instanceID string) string {
	if instanceID == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "relay"
		}
		instanceID = host + "-" + uuid.NewString()[:8]
	}
	return base + "-" + instanceID
}

func newKafkaHub(producer sarama.SyncProducer, consumer sarama.ConsumerGroup, cfg *config.KafkaConfig, eventHandler interfaces.ConnectionEventHandler) *KafkaHub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &KafkaHub{
		clients:      make(map[uint]interfaces.Client),
		producer:     producer,
		consumer:     consumer,
		ctx:          ctx,
		cancelFunc:   cancel,
		eventHandler: eventHandler,
		cfg:          cfg,
	}
	h.connEvents = newConnEventQueue(func() interfaces.ConnectionEventHandler {
		h.handlerMu.RLock()
		defer h.handlerMu.RUnlock()
		return h.eventHandler
	})
	go h.connEvents.run()
	return h
}

func (h *KafkaHub) StartConsumer() {
	go h.consumeMessages()
}

// 关闭KafkaHub
func (h *KafkaHub) Close() error {
	h.closeOnce.Do(func() {
		h.cancelFunc()
		h.connEvents.close()

		h.clientsMu.Lock()
		for _, client := range h.clients {
			client.Close()
		}
		h.clients = make(map[uint]interfaces.Client)
		h.clientsMu.Unlock()
		metrics.RelayConnections.Set(0)

		if err := h.producer.Close(); err != nil {
			logger.L.Error("Failed to close Kafka producer", zap.Error(err))
		}
		if h.consumer != nil {
			if err := h.consumer.Close(); err != nil {
				logger.L.Error("Failed to close Kafka consumer group", zap.Error(err))
			}
		}
	})
	return nil
}

// Register 在Hub中注册客户端
func (h *KafkaHub) Register(client interfaces.Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	userID := client.GetUserID()
	if old, ok := h.clients[userID]; ok && old != client {
		old.Close()
	}
	h.clients[userID] = client
	metrics.RelayConnections.Set(float64(len(h.clients)))
	logger.L.Info("Client registered with KafkaHub", zap.Uint("userID", userID))

	// 持锁入队, 事件顺序与连接表的变更顺序一致
	h.connEvents.push(userID, true)
}

// Unregister 从Hub中注销客户端
func (h *KafkaHub) Unregister(client interfaces.Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	userID := client.GetUserID()
	if registeredClient, ok := h.clients[userID]; ok && registeredClient == client {
		client.Close()
		delete(h.clients, userID)
		metrics.RelayConnections.Set(float64(len(h.clients)))
		logger.L.Info("Client unregistered from KafkaHub", zap.Uint("userID", userID))

		h.connEvents.push(userID, false)
	}
}

// 构建Kafka主题名称
func (h *KafkaHub) buildTopicName(messageType string) string {
	return fmt.Sprintf("%s_%s", h.cfg.TopicPrefix, messageType)
}

// Notify 本地在线则直接入队, 否则发送到Kafka由持有连接的实例投递
func (h *KafkaHub) Notify(userID uint, event internalProto.Event) error {
	data, err := internalProto.EncodeEvent(event, time.Now())
	if err != nil {
		return err
	}

	delivered, err := h.SendMessageToUser(userID, data)
	switch {
	case err != nil:
		metrics.RelayEvents.WithLabelValues(event.Type, "dropped").Inc()
	case delivered:
		metrics.RelayEvents.WithLabelValues(event.Type, "delivered").Inc()
	default:
		metrics.RelayEvents.WithLabelValues(event.Type, "forwarded").Inc()
	}
	return err
}

// 发送消息给指定用户
func (h *KafkaHub) SendMessageToUser(userID uint, data []byte) (bool, error) {
	// 先检查用户是否在线（本地连接）
	h.clientsMu.RLock()
	client, online := h.clients[userID]
	h.clientsMu.RUnlock()

	// 如果用户已在本地连接，直接发送
	if online {
		err := client.QueueBytes(data)
		if err != nil {
			logger.L.Warn("Failed to queue message to local client",
				zap.Uint("targetUserID", userID), zap.Error(err))
			return false, fmt.Errorf("failed to queue message: %w", err)
		}
		return true, nil
	}

	// 否则发送到Kafka，让其他服务器的客户端接收
	directMsg := &KafkaDirectMessage{
		UserID:  userID,
		Payload: data,
	}

	msgBytes, err := json.Marshal(directMsg)
	if err != nil {
		return false, fmt.Errorf("failed to marshal direct message: %w", err)
	}

	kafkaMsg := &sarama.ProducerMessage{
		Topic: h.buildTopicName("direct"),
		Key:   sarama.StringEncoder(fmt.Sprintf("%d", userID)),
		Value: sarama.ByteEncoder(msgBytes),
	}

	_, _, err = h.producer.SendMessage(kafkaMsg)
	if err != nil {
		logger.L.Error("Failed to send direct message to Kafka",
			zap.Uint("userID", userID), zap.Error(err))
		return false, fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	// 消息已发送到Kafka，但用户可能不在线，返回false
	return false, nil
}

// 检查客户端是否连接
func (h *KafkaHub) IsClientConnected(userID uint) bool {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// 设置事件处理器
func (h *KafkaHub) SetEventHandler(handler interfaces.ConnectionEventHandler) {
	h.handlerMu.Lock()
	defer h.handlerMu.Unlock()
	h.eventHandler = handler
}

// 消费Kafka消息
func (h *KafkaHub) consumeMessages() {
	handler := &kafkaConsumerHandler{
		hub: h,
	}
	topics := []string{h.buildTopicName("direct")}

	// 启动消费循环
	for {
		select {
		case <-h.ctx.Done():
			logger.L.Info("Stopping Kafka consumer")
			return
		default:
			err := h.consumer.Consume(h.ctx, topics, handler)
			if err != nil {
				logger.L.Error("Kafka consumer error", zap.Error(err))
				select {
				case <-h.ctx.Done():
				case <-time.After(5 * time.Second): // 失败时等待一段时间再重试
				}
			}
		}
	}
}

// Kafka直接消息的结构
type KafkaDirectMessage struct {
	UserID  uint   `json:"user_id"`
	Payload []byte `json:"payload"` // 编码后的事件帧
}

// Kafka消费者处理器
type kafkaConsumerHandler struct {
	hub *KafkaHub
}

// Setup 实现sarama.ConsumerGroupHandler接口
func (h *kafkaConsumerHandler) Setup(_ sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup 实现sarama.ConsumerGroupHandler接口
func (h *kafkaConsumerHandler) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim 实现sarama.ConsumerGroupHandler接口
func (h *kafkaConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		h.handleDirectMessage(message.Value)
		// 标记消息已处理
		session.MarkMessage(message, "")
	}
	return nil
}

// 处理直接消息, 只投递给本实例上的连接
func (h *kafkaConsumerHandler) handleDirectMessage(data []byte) {
	var directMsg KafkaDirectMessage
	if err := json.Unmarshal(data, &directMsg); err != nil {
		logger.L.Error("Failed to unmarshal direct message", zap.Error(err))
		return
	}

	h.hub.clientsMu.RLock()
	client, online := h.hub.clients[directMsg.UserID]
	h.hub.clientsMu.RUnlock()

	if online {
		if err := client.QueueBytes(directMsg.Payload); err != nil {
			logger.L.Warn("Failed to queue direct message to client",
				zap.Uint("userID", directMsg.UserID), zap.Error(err))
		}
	}
}
