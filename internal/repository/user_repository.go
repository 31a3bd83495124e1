package repository

import (
	"context"
	"errors"
	"strings"

	"devconnect/internal/model"
	"devconnect/pkg/db"

	"gorm.io/gorm"
)

// UserRepository 处理用户数据持久化
type UserRepository struct {
	db *gorm.DB
}

// 创建一个新的用户存储库实例
func NewUserRepository() *UserRepository {
	return &UserRepository{db: db.DB}
}

// UserFilter 用户列表过滤条件
type UserFilter struct {
	Search    string
	Skills    []string
	ExcludeID uint
	Limit     int
	Offset    int
}

// 新建用户
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()
	return r.db.WithContext(ctx).Create(user).Error
}

// 保存资料变更
func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()
	return r.db.WithContext(ctx).Save(user).Error
}

// 通过用户名查找用户
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

// 通过邮箱查找用户
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

// 通过ID查找用户
func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg interface{}) (*model.User, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var user model.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 用户不存在
		}
		return nil, err
	}
	return &user, nil
}

// 批量加载, 不存在的ID被忽略
func (r *UserRepository) FindByIDs(ctx context.Context, ids []uint) (map[uint]*model.User, error) {
	result := make(map[uint]*model.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var users []model.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for i := range users {
		result[users[i].ID] = &users[i]
	}
	return result, nil
}

func (r *UserRepository) Exists(ctx context.Context, id uint) (bool, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var count int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// 按名称/用户名/简介模糊搜索, 技能命中任意一个即可
func (r *UserRepository) Search(ctx context.Context, f UserFilter) ([]model.User, int64, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	query := r.db.WithContext(ctx).Model(&model.User{})
	if s := strings.TrimSpace(strings.ToLower(f.Search)); s != "" {
		like := "%" + s + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(bio) LIKE ?", like, like, like)
	}
	if cond := anyOf(r.db, "skills", f.Skills); cond != nil {
		query = query.Where(cond)
	}
	if f.ExcludeID != 0 {
		query = query.Where("id <> ?", f.ExcludeID)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []model.User
	err := query.Order("created_at DESC").Order("id DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&users).Error
	return users, total, err
}

// 推荐关注: 排除自己与已关注的人, 按粉丝数降序
func (r *UserRepository) Suggested(ctx context.Context, viewerID uint, limit int) ([]model.User, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var users []model.User
	err := r.db.WithContext(ctx).
		Select("users.*, COUNT(fans.fan_id) AS fan_count").
		Joins("LEFT JOIN fans ON fans.user_id = users.id").
		Where("users.id <> ?", viewerID).
		Where("users.id NOT IN (?)", r.db.Model(&model.Follow{}).Select("followee_id").Where("follower_id = ?", viewerID)).
		Group("users.id").
		Order("fan_count DESC").
		Order("users.id ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}
