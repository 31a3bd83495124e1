package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"devconnect/internal/model"
	internalProto "devconnect/internal/proto"
	"devconnect/internal/repository"
	"devconnect/pkg/cache"
	apperrors "devconnect/pkg/errors"
	"devconnect/pkg/logger"
	"devconnect/pkg/utils"

	"go.uber.org/zap"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 50
	wsOpTimeout        = 10 * time.Second
)

type ChatService struct {
	notifier    Notifier
	presence    *cache.Presence
	messageRepo *repository.MessageRepository
	userRepo    *repository.UserRepository
}

func NewChatService(notifier Notifier, presence *cache.Presence, messageRepo *repository.MessageRepository, userRepo *repository.UserRepository) *ChatService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &ChatService{
		notifier:    notifier,
		presence:    presence,
		messageRepo: messageRepo,
		userRepo:    userRepo,
	}
}

// SetNotifier 在 hub 创建之后注入
func (s *ChatService) SetNotifier(notifier Notifier) {
	if notifier != nil {
		s.notifier = notifier
	}
}

type SendMessageRequest struct {
	RecipientID uint               `json:"recipient_id" validate:"required"`
	Content     string             `json:"content" validate:"required,max=1000"`
	ReplyToID   *uint              `json:"reply_to_id"`
	Attachments []model.Attachment `json:"attachments" validate:"omitempty,max=5"`
}

type EditMessageRequest struct {
	Content string `json:"content" validate:"required,max=1000"`
}

// MessagePage 会话消息分页, 消息按时间正序
type MessagePage struct {
	Messages    []MessageView `json:"messages"`
	Total       int64         `json:"total"`
	TotalPages  int           `json:"total_pages"`
	CurrentPage int           `json:"current_page"`
}

type ReadReceipt struct {
	ConversationID string `json:"conversation_id"`
	ReaderID       uint   `json:"reader_id"`
	Count          int64  `json:"count"`
}

type typingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         uint   `json:"user_id"`
}

type deletedPayload struct {
	ID             uint   `json:"id"`
	ConversationID string `json:"conversation_id"`
}

// 发送私信并推送给接收方
func (s *ChatService) SendMessage(ctx context.Context, senderID uint, req SendMessageRequest) (*MessageView, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.RecipientID == senderID {
		return nil, apperrors.Validation("cannot send a message to yourself", nil)
	}

	users, err := s.userRepo.FindByIDs(ctx, []uint{senderID, req.RecipientID})
	if err != nil {
		return nil, apperrors.FromStore("load users", err)
	}
	if users[req.RecipientID] == nil {
		return nil, apperrors.NotFound("recipient", nil)
	}
	if users[senderID] == nil {
		return nil, apperrors.Unauthorized("sender no longer exists", nil)
	}

	if req.ReplyToID != nil {
		parent, err := s.messageRepo.FindByID(ctx, *req.ReplyToID)
		if err != nil {
			return nil, apperrors.FromStore("load reply target", err)
		}
		if parent == nil || parent.ConversationID() != model.ConversationID(senderID, req.RecipientID) {
			return nil, apperrors.NotFound("reply message", nil)
		}
	}

	message := &model.Message{
		SenderID:    senderID,
		RecipientID: req.RecipientID,
		Content:     req.Content,
		ReplyToID:   req.ReplyToID,
		Attachments: req.Attachments,
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		logger.L.Error("Error saving message to DB", zap.Uint("senderID", senderID), zap.Error(err))
		return nil, apperrors.FromStore("save message", err)
	}
	logger.L.Debug("Message saved to DB", zap.Uint("messageID", message.ID))

	view := messageView(*message, users)
	s.notify(req.RecipientID, internalProto.EventMessageNew, view)
	return &view, nil
}

// ListConversations 返回 viewer 的会话列表, 按最后一条消息倒序
func (s *ChatService) ListConversations(ctx context.Context, viewerID uint) ([]ConversationSummary, error) {
	heads, err := s.messageRepo.FindConversations(ctx, viewerID)
	if err != nil {
		return nil, apperrors.FromStore("list conversations", err)
	}
	if len(heads) == 0 {
		return []ConversationSummary{}, nil
	}

	unread, err := s.messageRepo.UnreadBySender(ctx, viewerID)
	if err != nil {
		return nil, apperrors.FromStore("count unread", err)
	}

	ids := make([]uint, 0, len(heads))
	for _, h := range heads {
		ids = append(ids, h.CounterpartID)
	}
	users, err := s.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.FromStore("load users", err)
	}
	statuses := s.lookupPresence(ctx, ids)

	summaries := make([]ConversationSummary, 0, len(heads))
	for _, h := range heads {
		user, ok := users[h.CounterpartID]
		if !ok {
			// 对方账号已不存在
			continue
		}
		counterpart := user.Summary()
		if st, ok := statuses[h.CounterpartID]; ok {
			counterpart.IsOnline = st.Online
			counterpart.LastSeen = st.LastSeen
		}
		summaries = append(summaries, ConversationSummary{
			ConversationID: model.ConversationID(viewerID, h.CounterpartID),
			Counterpart:    counterpart,
			LastMessage:    h.LastMessage,
			UnreadCount:    unread[h.CounterpartID],
		})
	}
	return summaries, nil
}

// ListMessages 分页读取会话, markRead 为 true 时同时确认对方发来的未读消息
func (s *ChatService) ListMessages(ctx context.Context, viewerID, counterpartID uint, page utils.PaginationParams, markRead bool) (*MessagePage, error) {
	if viewerID == counterpartID {
		return nil, apperrors.Validation("cannot fetch a conversation with yourself", nil)
	}
	users, err := s.userRepo.FindByIDs(ctx, []uint{viewerID, counterpartID})
	if err != nil {
		return nil, apperrors.FromStore("load users", err)
	}
	if users[counterpartID] == nil {
		return nil, apperrors.NotFound("user", nil)
	}

	messages, total, err := s.messageRepo.FindMessagesBetweenUsers(ctx, viewerID, counterpartID, page.PageSize, page.Offset)
	if err != nil {
		logger.L.Error("Error fetching chat history", zap.Error(err),
			zap.Uint("viewerID", viewerID), zap.Uint("counterpartID", counterpartID))
		return nil, apperrors.FromStore("load messages", err)
	}

	if markRead {
		n, err := s.ack(ctx, viewerID, counterpartID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			for i := range messages {
				if messages[i].SenderID == counterpartID {
					messages[i].IsRead = true
				}
			}
		}
	}

	// 查询为倒序, 返回时按时间正序
	views := make([]MessageView, len(messages))
	for i, m := range messages {
		views[len(messages)-1-i] = messageView(m, users)
	}
	return &MessagePage{
		Messages:    views,
		Total:       total,
		TotalPages:  utils.TotalPages(total, page.PageSize),
		CurrentPage: page.Page,
	}, nil
}

// AckConversation 确认 counterpart 发给 viewer 的全部未读消息
func (s *ChatService) AckConversation(ctx context.Context, viewerID, counterpartID uint) (*ReadReceipt, error) {
	if viewerID == counterpartID {
		return nil, apperrors.Validation("cannot acknowledge a conversation with yourself", nil)
	}
	n, err := s.ack(ctx, viewerID, counterpartID)
	if err != nil {
		return nil, err
	}
	return &ReadReceipt{ConversationID: model.ConversationID(viewerID, counterpartID), ReaderID: viewerID, Count: n}, nil
}

func (s *ChatService) ack(ctx context.Context, viewerID, counterpartID uint) (int64, error) {
	n, err := s.messageRepo.MarkConversationRead(ctx, viewerID, counterpartID)
	if err != nil {
		return 0, apperrors.FromStore("mark conversation read", err)
	}
	if n > 0 {
		s.notify(counterpartID, internalProto.EventConversationRead, ReadReceipt{
			ConversationID: model.ConversationID(viewerID, counterpartID),
			ReaderID:       viewerID,
			Count:          n,
		})
	}
	return n, nil
}

// MarkRead 仅接收方可以标记已读
func (s *ChatService) MarkRead(ctx context.Context, messageID, viewerID uint) error {
	message, err := s.findMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if message.RecipientID != viewerID {
		return apperrors.Forbidden("not authorized to mark this message", nil)
	}
	if message.IsRead {
		return nil
	}
	if err := s.messageRepo.MarkRead(ctx, messageID); err != nil {
		return apperrors.FromStore("mark message read", err)
	}
	return nil
}

// EditMessage 仅发送方可编辑, 已删除的消息不可编辑
func (s *ChatService) EditMessage(ctx context.Context, messageID, actorID uint, req EditMessageRequest) (*MessageView, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	message, err := s.findMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != actorID {
		return nil, apperrors.Forbidden("not authorized to edit this message", nil)
	}
	if message.IsDeleted {
		return nil, apperrors.Validation("cannot edit a deleted message", nil)
	}

	now := time.Now()
	if err := s.messageRepo.UpdateContent(ctx, messageID, req.Content, now); err != nil {
		return nil, apperrors.FromStore("edit message", err)
	}
	message.Content = req.Content
	message.IsEdited = true
	message.EditedAt = &now

	users, err := s.userRepo.FindByIDs(ctx, []uint{message.SenderID, message.RecipientID})
	if err != nil {
		return nil, apperrors.FromStore("load users", err)
	}
	view := messageView(*message, users)
	s.notify(message.RecipientID, internalProto.EventMessageEdited, view)
	return &view, nil
}

// DeleteMessage 软删除, 内容被覆盖, 重复删除无副作用
func (s *ChatService) DeleteMessage(ctx context.Context, messageID, actorID uint) error {
	message, err := s.findMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if message.SenderID != actorID {
		return apperrors.Forbidden("not authorized to delete this message", nil)
	}
	if message.IsDeleted {
		return nil
	}
	if err := s.messageRepo.SoftDelete(ctx, messageID, time.Now()); err != nil {
		return apperrors.FromStore("delete message", err)
	}
	s.notify(message.RecipientID, internalProto.EventMessageDeleted, deletedPayload{
		ID:             message.ID,
		ConversationID: message.ConversationID(),
	})
	return nil
}

func (s *ChatService) UnreadCount(ctx context.Context, viewerID uint) (int64, error) {
	count, err := s.messageRepo.UnreadCount(ctx, viewerID)
	if err != nil {
		return 0, apperrors.FromStore("count unread", err)
	}
	return count, nil
}

// RecentUnread 最近的未读消息, 用于通知列表
func (s *ChatService) RecentUnread(ctx context.Context, viewerID uint, limit int) ([]MessageView, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	messages, err := s.messageRepo.RecentUnread(ctx, viewerID, limit)
	if err != nil {
		return nil, apperrors.FromStore("load recent messages", err)
	}
	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		sender := m.Sender
		views = append(views, MessageView{Message: m, Sender: sender.Summary()})
	}
	return views, nil
}

// HandleMessage 处理 WebSocket 上行帧
func (s *ChatService) HandleMessage(message []byte, senderID uint) {
	frame, err := internalProto.DecodeClientFrame(message)
	if err != nil {
		logger.L.Warn("Failed to decode websocket frame", zap.Uint("senderID", senderID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()

	switch frame.Type {
	case internalProto.FrameMessageSend:
		_, err := s.SendMessage(ctx, senderID, SendMessageRequest{
			RecipientID: frame.RecipientID,
			Content:     frame.Content,
			ReplyToID:   frame.ReplyToID,
		})
		if err != nil {
			logger.L.Warn("Error processing message received via WebSocket",
				zap.Uint("senderID", senderID),
				zap.Uint("recipientID", frame.RecipientID),
				zap.Error(err))
		}
	case internalProto.EventTypingStart, internalProto.EventTypingStop:
		// 输入状态只转发, 不落库
		if frame.RecipientID == 0 || frame.RecipientID == senderID {
			return
		}
		s.notify(frame.RecipientID, frame.Type, typingPayload{
			ConversationID: model.ConversationID(senderID, frame.RecipientID),
			UserID:         senderID,
		})
	default:
		logger.L.Warn("Unknown websocket frame type", zap.Uint("senderID", senderID), zap.String("type", frame.Type))
	}
}

func (s *ChatService) HandleHeartbeat(userID uint) {
	s.setOnline(userID)
}

func (s *ChatService) HandleUserConnected(userID uint) {
	s.setOnline(userID)
}

func (s *ChatService) HandleUserDisconnected(userID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()
	if err := s.presence.SetOffline(ctx, userID); err != nil {
		logger.L.Warn("Failed to update presence", zap.Uint("userID", userID), zap.Error(err))
	}
}

func (s *ChatService) setOnline(userID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()
	if err := s.presence.SetOnline(ctx, userID); err != nil {
		logger.L.Warn("Failed to update presence", zap.Uint("userID", userID), zap.Error(err))
	}
}

func (s *ChatService) lookupPresence(ctx context.Context, ids []uint) map[uint]cache.Status {
	statuses, err := s.presence.Lookup(ctx, ids)
	if err != nil {
		// 在线状态不可用时按离线展示
		logger.L.Warn("Presence lookup failed", zap.Error(err))
		return map[uint]cache.Status{}
	}
	return statuses
}

func (s *ChatService) findMessage(ctx context.Context, messageID uint) (*model.Message, error) {
	message, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, apperrors.FromStore("load message", err)
	}
	if message == nil {
		return nil, apperrors.NotFound("message", nil)
	}
	return message, nil
}

// notify 推送失败只记录日志, 不影响已提交的写操作
func (s *ChatService) notify(userID uint, eventType string, data interface{}) {
	err := s.notifier.Notify(userID, internalProto.Event{Type: eventType, Data: data})
	if err != nil {
		level := logger.L.Warn
		if errors.Is(err, internalProto.ErrInvalidFrame) {
			level = logger.L.Error
		}
		level("Failed to relay event",
			zap.Uint("userID", userID), zap.String("type", eventType), zap.Error(err))
	}
}

func messageView(m model.Message, users map[uint]*model.User) MessageView {
	return MessageView{
		Message:   m,
		Sender:    users[m.SenderID].Summary(),
		Recipient: users[m.RecipientID].Summary(),
	}
}
