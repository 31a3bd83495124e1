package repository

import (
	"context"

	"devconnect/internal/model"
	"devconnect/pkg/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository 维护关注图: follows(关注者->被关注者) 与 fans(被关注者<-关注者)
type FollowRepository struct {
	db *gorm.DB
}

func NewFollowRepository() *FollowRepository {
	return &FollowRepository{db: db.DB}
}

// SetFollow 在同一事务中把 follows 与 fans 两侧设置为目标状态, 重复执行结果不变
func (r *FollowRepository) SetFollow(ctx context.Context, actorID, targetID uint, follow bool) error {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !follow {
			if err := tx.Where("follower_id = ? AND followee_id = ?", actorID, targetID).
				Delete(&model.Follow{}).Error; err != nil {
				return err
			}
			return tx.Where("user_id = ? AND fan_id = ?", targetID, actorID).
				Delete(&model.Fan{}).Error
		}

		// 唯一主键下的幂等插入, 已存在的记录保持不变
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.Follow{FollowerID: actorID, FolloweeID: targetID}).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.Fan{UserID: targetID, FanID: actorID}).Error
	})
}

func (r *FollowRepository) IsFollowing(ctx context.Context, actorID, targetID uint) (bool, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var count int64
	err := r.db.WithContext(ctx).Model(&model.Follow{}).
		Where("follower_id = ? AND followee_id = ?", actorID, targetID).
		Count(&count).Error
	return count > 0, err
}

// 用户关注的人
func (r *FollowRepository) FollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("followee_id", &ids).Error
	return ids, err
}

// 用户的粉丝
func (r *FollowRepository) FollowerIDs(ctx context.Context, userID uint) ([]uint, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.Fan{}).
		Where("user_id = ?", userID).
		Pluck("fan_id", &ids).Error
	return ids, err
}

func (r *FollowRepository) Following(ctx context.Context, userID uint) ([]model.User, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var users []model.User
	err := r.db.WithContext(ctx).
		Select("users.*").
		Joins("JOIN follows ON follows.followee_id = users.id").
		Where("follows.follower_id = ?", userID).
		Order("follows.created_at DESC").
		Find(&users).Error
	return users, err
}

func (r *FollowRepository) Followers(ctx context.Context, userID uint) ([]model.User, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var users []model.User
	err := r.db.WithContext(ctx).
		Select("users.*").
		Joins("JOIN fans ON fans.fan_id = users.id").
		Where("fans.user_id = ?", userID).
		Order("fans.created_at DESC").
		Find(&users).Error
	return users, err
}

// Counts 返回粉丝数与关注数
func (r *FollowRepository) Counts(ctx context.Context, userID uint) (followers, following int64, err error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	if err = r.db.WithContext(ctx).Model(&model.Fan{}).Where("user_id = ?", userID).Count(&followers).Error; err != nil {
		return 0, 0, err
	}
	err = r.db.WithContext(ctx).Model(&model.Follow{}).Where("follower_id = ?", userID).Count(&following).Error
	return followers, following, err
}
