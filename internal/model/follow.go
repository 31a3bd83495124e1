package model

import "time"

// Follow 关注关系（A 关注 B）, 即 A 的 following 集合
type Follow struct {
	FollowerID uint `gorm:"primaryKey;autoIncrement:false"`
	FolloweeID uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt  time.Time
}

func (Follow) TableName() string { return "follows" }

// Fan 粉丝关系（B 被 A 关注）, 即 B 的 followers 集合
// 必须与 Follow 在同一事务中成对写入
type Fan struct {
	UserID    uint `gorm:"primaryKey;autoIncrement:false"`
	FanID     uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}

func (Fan) TableName() string { return "fans" }
