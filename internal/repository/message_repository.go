package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"devconnect/internal/model"
	"devconnect/pkg/db"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{db: db.DB}
}

// ConversationHead 一个会话的对方与最后一条消息
type ConversationHead struct {
	CounterpartID uint
	LastMessage   model.Message
}

// 每个对方只保留最新一条, 时间相同按ID取大
const lastMessagePerCounterpartSQL = `
SELECT id, counterpart_id FROM (
	SELECT id,
		CASE WHEN sender_id = @viewer THEN recipient_id ELSE sender_id END AS counterpart_id,
		ROW_NUMBER() OVER (
			PARTITION BY CASE WHEN sender_id = @viewer THEN recipient_id ELSE sender_id END
			ORDER BY created_at DESC, id DESC
		) AS rn
	FROM messages
	WHERE sender_id = @viewer OR recipient_id = @viewer
) ranked
WHERE rn = 1`

// 保存新消息
func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *MessageRepository) FindByID(ctx context.Context, id uint) (*model.Message, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var message model.Message
	if err := r.db.WithContext(ctx).First(&message, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

// FindConversations 按最后一条消息时间倒序返回用户参与的所有会话
func (r *MessageRepository) FindConversations(ctx context.Context, viewerID uint) ([]ConversationHead, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var rows []struct {
		ID            uint
		CounterpartID uint
	}
	if err := r.db.WithContext(ctx).
		Raw(lastMessagePerCounterpartSQL, map[string]interface{}{"viewer": viewerID}).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []ConversationHead{}, nil
	}

	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	var messages []model.Message
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&messages).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]model.Message, len(messages))
	for _, m := range messages {
		byID[m.ID] = m
	}

	heads := make([]ConversationHead, 0, len(rows))
	for _, row := range rows {
		m, ok := byID[row.ID]
		if !ok {
			continue
		}
		heads = append(heads, ConversationHead{CounterpartID: row.CounterpartID, LastMessage: m})
	}
	sort.SliceStable(heads, func(i, j int) bool {
		a, b := heads[i].LastMessage, heads[j].LastMessage
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return heads, nil
}

// UnreadBySender 统计发给 viewer 的未读消息, 按发送者分组
func (r *MessageRepository) UnreadBySender(ctx context.Context, viewerID uint) (map[uint]int64, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var rows []struct {
		SenderID uint
		Count    int64
	}
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Select("sender_id, COUNT(*) AS count").
		Where("recipient_id = ? AND is_read = ?", viewerID, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.SenderID] = row.Count
	}
	return counts, nil
}

// 获取两个用户之间的聊天记录, 最新的在前
func (r *MessageRepository) FindMessagesBetweenUsers(ctx context.Context, userID1, userID2 uint, limit, offset int) ([]model.Message, int64, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	query := r.db.WithContext(ctx).Model(&model.Message{}).Where(
		"(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
		userID1, userID2, userID2, userID1,
	).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []model.Message
	err := query.Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	return messages, total, err
}

// MarkConversationRead 将 counterpart 发给 viewer 的未读消息一次性标为已读
func (r *MessageRepository) MarkConversationRead(ctx context.Context, viewerID, counterpartID uint) (int64, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	result := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("sender_id = ? AND recipient_id = ? AND is_read = ?", counterpartID, viewerID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

func (r *MessageRepository) MarkRead(ctx context.Context, messageID uint) error {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()
	return r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ?", messageID).
		Update("is_read", true).Error
}

func (r *MessageRepository) UpdateContent(ctx context.Context, messageID uint, content string, editedAt time.Time) error {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()
	return r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{
			"content":   content,
			"is_edited": true,
			"edited_at": editedAt,
		}).Error
}

// SoftDelete 覆盖内容并打删除标记, 记录保留
func (r *MessageRepository) SoftDelete(ctx context.Context, messageID uint, deletedAt time.Time) error {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()
	return r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{
			"content":    model.DeletedMessageContent,
			"is_deleted": true,
			"deleted_at": deletedAt,
		}).Error
}

func (r *MessageRepository) UnreadCount(ctx context.Context, viewerID uint) (int64, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var count int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("recipient_id = ? AND is_read = ?", viewerID, false).
		Count(&count).Error
	return count, err
}

// 最近的未读消息, 附带发送者
func (r *MessageRepository) RecentUnread(ctx context.Context, viewerID uint, limit int) ([]model.Message, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND is_read = ?", viewerID, false).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Preload("Sender").
		Find(&messages).Error
	return messages, err
}
