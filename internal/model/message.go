package model

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

const (
	MaxMessageLength      = 1000
	DeletedMessageContent = "[Message deleted]"
)

type Message struct {
	ID          uint                            `gorm:"primaryKey" json:"id"`
	SenderID    uint                            `gorm:"not null;index:idx_msg_pair,priority:1" json:"sender_id"`
	RecipientID uint                            `gorm:"not null;index:idx_msg_pair,priority:2;index:idx_msg_unread,priority:1" json:"recipient_id"`
	Content     string                          `gorm:"type:text;not null" json:"content"`
	IsRead      bool                            `gorm:"default:false;index:idx_msg_unread,priority:2" json:"is_read"`
	IsEdited    bool                            `gorm:"default:false" json:"is_edited"`
	EditedAt    *time.Time                      `json:"edited_at,omitempty"`
	IsDeleted   bool                            `gorm:"default:false" json:"is_deleted"`
	DeletedAt   *time.Time                      `json:"deleted_at,omitempty"`
	ReplyToID   *uint                           `gorm:"index" json:"reply_to_id,omitempty"`
	Attachments datatypes.JSONSlice[Attachment] `json:"attachments"`
	CreatedAt   time.Time                       `gorm:"index:idx_msg_pair,priority:3;index" json:"created_at"`
	UpdatedAt   time.Time                       `json:"updated_at"`

	Sender    User `gorm:"foreignKey:SenderID" json:"-"`
	Recipient User `gorm:"foreignKey:RecipientID" json:"-"`
}

type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// ConversationID 两个参与者ID升序拼接, 与发送方向无关
func ConversationID(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d_%d", a, b)
}

func (m *Message) ConversationID() string {
	return ConversationID(m.SenderID, m.RecipientID)
}

// Counterpart 返回相对于 viewer 的另一方
func (m *Message) Counterpart(viewerID uint) uint {
	if m.SenderID == viewerID {
		return m.RecipientID
	}
	return m.SenderID
}
