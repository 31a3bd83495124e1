package model

import (
	"time"

	"gorm.io/datatypes"
)

type User struct {
	ID         uint                        `gorm:"primaryKey" json:"id"`
	Name       string                      `gorm:"type:varchar(100);not null" json:"name"`
	Username   string                      `gorm:"type:varchar(30);uniqueIndex;not null" json:"username"`
	Email      string                      `gorm:"type:varchar(255);uniqueIndex;not null" json:"-"`
	Password   string                      `gorm:"type:varchar(255);not null" json:"-"`
	Avatar     string                      `gorm:"type:varchar(512)" json:"avatar"`
	Cover      string                      `gorm:"type:varchar(512)" json:"cover"`
	Bio        string                      `gorm:"type:varchar(500)" json:"bio"`
	Role       string                      `gorm:"type:varchar(100)" json:"role"`
	Company    string                      `gorm:"type:varchar(100)" json:"company"`
	Location   string                      `gorm:"type:varchar(100)" json:"location"`
	Skills     datatypes.JSONSlice[string] `json:"skills"`
	Social     SocialLinks                 `gorm:"embedded;embeddedPrefix:social_" json:"social_links"`
	IsVerified bool                        `gorm:"default:false" json:"is_verified"`
	CreatedAt  time.Time                   `json:"created_at"`
	UpdatedAt  time.Time                   `json:"updated_at"`
}

type SocialLinks struct {
	Github   string `gorm:"type:varchar(255)" json:"github,omitempty"`
	Linkedin string `gorm:"type:varchar(255)" json:"linkedin,omitempty"`
	Twitter  string `gorm:"type:varchar(255)" json:"twitter,omitempty"`
	Website  string `gorm:"type:varchar(255)" json:"website,omitempty"`
}

// UserSummary 是嵌入到消息、帖子、会话中的用户精简信息
type UserSummary struct {
	ID       uint       `json:"id"`
	Name     string     `json:"name"`
	Username string     `json:"username"`
	Avatar   string     `json:"avatar"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

func (u *User) Summary() UserSummary {
	if u == nil {
		return UserSummary{}
	}
	return UserSummary{ID: u.ID, Name: u.Name, Username: u.Username, Avatar: u.Avatar}
}
