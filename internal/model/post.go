package model

import (
	"time"

	"gorm.io/datatypes"
)

type Post struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	AuthorID    uint                        `gorm:"not null;index:idx_post_author_created,priority:1" json:"author_id"`
	Content     string                      `gorm:"type:text;not null" json:"content"`
	CodeSnippet CodeSnippet                 `gorm:"embedded;embeddedPrefix:snippet_" json:"code_snippet"`
	Tags        datatypes.JSONSlice[string] `json:"tags"`
	Images      datatypes.JSONSlice[string] `json:"images"`
	IsEdited    bool                        `gorm:"default:false" json:"is_edited"`
	EditedAt    *time.Time                  `json:"edited_at,omitempty"`
	CreatedAt   time.Time                   `gorm:"index:idx_post_author_created,priority:2;index" json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`

	Author User `gorm:"foreignKey:AuthorID" json:"-"`
}

type CodeSnippet struct {
	Language string `gorm:"type:varchar(50)" json:"language,omitempty"`
	Code     string `gorm:"type:text" json:"code,omitempty"`
}

// PostLike 点赞, (post_id, user_id) 唯一
type PostLike struct {
	PostID    uint `gorm:"primaryKey;autoIncrement:false"`
	UserID    uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}

type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	UserID    uint      `gorm:"not null" json:"user_id"`
	Content   string    `gorm:"type:varchar(1000);not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}
