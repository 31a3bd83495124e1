package repository

import (
	"context"
	"errors"

	"devconnect/internal/model"
	"devconnect/pkg/db"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository() *PostRepository {
	return &PostRepository{db: db.DB}
}

// PostFilter 帖子列表条件, AuthorIDs 非空时只返回这些作者的帖子, Tags 命中任意一个即可
type PostFilter struct {
	AuthorIDs []uint
	Tags      []string
	Limit     int
	Offset    int
}

func (r *PostRepository) Create(ctx context.Context, post *model.Post) error {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *PostRepository) Update(ctx context.Context, post *model.Post) error {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(post).Error
}

func (r *PostRepository) FindByID(ctx context.Context, id uint) (*model.Post, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var post model.Post
	if err := r.db.WithContext(ctx).Preload("Author").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// Delete 删除帖子及其点赞和评论
func (r *PostRepository) Delete(ctx context.Context, id uint) error {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&model.PostLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Post{}, id).Error
	})
}

// List 按创建时间倒序分页, 时间相同按ID倒序
func (r *PostRepository) List(ctx context.Context, f PostFilter) ([]model.Post, int64, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	query := r.db.WithContext(ctx).Model(&model.Post{})
	if len(f.AuthorIDs) > 0 {
		query = query.Where("author_id IN ?", f.AuthorIDs)
	}
	if cond := anyOf(r.db, "tags", f.Tags); cond != nil {
		query = query.Where(cond)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []model.Post
	err := query.Preload("Author").
		Order("created_at DESC").Order("id DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&posts).Error
	return posts, total, err
}

// ToggleLike 翻转点赞状态, 返回翻转后的状态和最新点赞数
func (r *PostRepository) ToggleLike(ctx context.Context, postID, userID uint) (bool, int64, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var liked bool
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&model.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&model.PostLike{PostID: postID, UserID: userID}).Error; err != nil {
				return err
			}
			liked = true
		}
		return tx.Model(&model.PostLike{}).Where("post_id = ?", postID).Count(&count).Error
	})
	return liked, count, err
}

// LikeStats 批量统计点赞数以及 viewer 是否点过赞
func (r *PostRepository) LikeStats(ctx context.Context, postIDs []uint, viewerID uint) (map[uint]int64, map[uint]bool, error) {
	counts := make(map[uint]int64, len(postIDs))
	liked := make(map[uint]bool)
	if len(postIDs) == 0 {
		return counts, liked, nil
	}
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var rows []struct {
		PostID uint
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&model.PostLike{}).
		Select("post_id, COUNT(*) AS count").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error; err != nil {
		return nil, nil, err
	}
	for _, row := range rows {
		counts[row.PostID] = row.Count
	}

	if viewerID != 0 {
		var likedIDs []uint
		if err := r.db.WithContext(ctx).Model(&model.PostLike{}).
			Where("post_id IN ? AND user_id = ?", postIDs, viewerID).
			Pluck("post_id", &likedIDs).Error; err != nil {
			return nil, nil, err
		}
		for _, id := range likedIDs {
			liked[id] = true
		}
	}
	return counts, liked, nil
}

func (r *PostRepository) CreateComment(ctx context.Context, comment *model.Comment) error {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *PostRepository) FindComment(ctx context.Context, postID, commentID uint) (*model.Comment, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var comment model.Comment
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &comment, nil
}

func (r *PostRepository) DeleteComment(ctx context.Context, commentID uint) error {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()
	return r.db.WithContext(ctx).Delete(&model.Comment{}, commentID).Error
}

// CommentsByPost 批量加载评论(含评论者), 旧的在前
func (r *PostRepository) CommentsByPost(ctx context.Context, postIDs []uint) (map[uint][]model.Comment, error) {
	result := make(map[uint][]model.Comment, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var comments []model.Comment
	if err := r.db.WithContext(ctx).
		Where("post_id IN ?", postIDs).
		Preload("User").
		Order("created_at ASC").Order("id ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	for _, c := range comments {
		result[c.PostID] = append(result[c.PostID], c)
	}
	return result, nil
}

// anyOf JSON 数组列包含 values 中任意一个值
func anyOf(db *gorm.DB, column string, values []string) *gorm.DB {
	var cond *gorm.DB
	for _, v := range values {
		if v == "" {
			continue
		}
		expr := datatypes.JSONArrayQuery(column).Contains(v)
		if cond == nil {
			cond = db.Where(expr)
		} else {
			cond = cond.Or(expr)
		}
	}
	return cond
}
