package service

import (
	"time"

	"devconnect/internal/model"
	"devconnect/pkg/utils"
)

// Page 分页结果
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func newPage[T any](items []T, total int64, p utils.PaginationParams) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Total:      total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: utils.TotalPages(total, p.PageSize),
	}
}

type MessageView struct {
	model.Message
	Sender    model.UserSummary `json:"sender"`
	Recipient model.UserSummary `json:"recipient"`
}

type ConversationSummary struct {
	ConversationID string            `json:"conversation_id"`
	Counterpart    model.UserSummary `json:"user"`
	LastMessage    model.Message     `json:"last_message"`
	UnreadCount    int64             `json:"unread_count"`
}

type CommentView struct {
	ID        uint              `json:"id"`
	User      model.UserSummary `json:"user"`
	Content   string            `json:"content"`
	CreatedAt time.Time         `json:"created_at"`
}

type PostView struct {
	model.Post
	Author     model.UserSummary `json:"author"`
	LikesCount int64             `json:"likes_count"`
	IsLiked    bool              `json:"is_liked"`
	Comments   []CommentView     `json:"comments"`
}

// ProfileView 用户资料及关注统计
type ProfileView struct {
	*model.User
	FollowersCount int64 `json:"followers_count"`
	FollowingCount int64 `json:"following_count"`
	IsFollowing    bool  `json:"is_following"`
}

func commentView(c model.Comment) CommentView {
	return CommentView{ID: c.ID, User: c.User.Summary(), Content: c.Content, CreatedAt: c.CreatedAt}
}

// AccountView 当前登录用户视图, 额外包含邮箱
type AccountView struct {
	*model.User
	Email string `json:"email"`
}
