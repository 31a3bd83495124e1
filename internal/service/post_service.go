package service

import (
	"context"
	"strings"
	"time"

	"devconnect/internal/model"
	"devconnect/internal/repository"
	apperrors "devconnect/pkg/errors"
	"devconnect/pkg/utils"
)

type PostService struct {
	postRepo   *repository.PostRepository
	followRepo *repository.FollowRepository
	userRepo   *repository.UserRepository
}

func NewPostService(postRepo *repository.PostRepository, followRepo *repository.FollowRepository, userRepo *repository.UserRepository) *PostService {
	return &PostService{postRepo: postRepo, followRepo: followRepo, userRepo: userRepo}
}

type CreatePostRequest struct {
	Content     string             `json:"content" validate:"required,max=5000"`
	CodeSnippet *model.CodeSnippet `json:"code_snippet"`
	Tags        []string           `json:"tags" validate:"omitempty,max=10,dive,min=1,max=30"`
	Images      []string           `json:"images" validate:"omitempty,max=5,dive,required,max=512"`
}

// UpdatePostRequest 仅更新提供的字段
type UpdatePostRequest struct {
	Content     *string            `json:"content" validate:"omitempty,min=1,max=5000"`
	CodeSnippet *model.CodeSnippet `json:"code_snippet"`
	Tags        []string           `json:"tags" validate:"omitempty,max=10,dive,min=1,max=30"`
}

type ListPostsRequest struct {
	AuthorID uint
	Tags     []string
	Page     utils.PaginationParams
}

type AddCommentRequest struct {
	Content string `json:"content" validate:"required,max=1000"`
}

type LikeResult struct {
	IsLiked    bool  `json:"is_liked"`
	LikesCount int64 `json:"likes_count"`
}

func (s *PostService) CreatePost(ctx context.Context, authorID uint, req CreatePostRequest) (*PostView, error) {
	req.Content = strings.TrimSpace(req.Content)
	req.Tags = normalizeTags(req.Tags)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	post := &model.Post{
		AuthorID: authorID,
		Content:  req.Content,
		Tags:     nonNil(req.Tags),
		Images:   nonNil(req.Images),
	}
	if req.CodeSnippet != nil {
		post.CodeSnippet = *req.CodeSnippet
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, apperrors.FromStore("create post", err)
	}
	return s.GetPost(ctx, post.ID, authorID)
}

// GetFeed 关注的人与自己的帖子, 按时间倒序分页
func (s *PostService) GetFeed(ctx context.Context, viewerID uint, page utils.PaginationParams) (Page[PostView], error) {
	following, err := s.followRepo.FollowingIDs(ctx, viewerID)
	if err != nil {
		return Page[PostView]{}, apperrors.FromStore("load following", err)
	}
	authors := append(following, viewerID)
	return s.list(ctx, viewerID, repository.PostFilter{AuthorIDs: authors}, page)
}

func (s *PostService) ListPosts(ctx context.Context, viewerID uint, req ListPostsRequest) (Page[PostView], error) {
	filter := repository.PostFilter{Tags: normalizeTags(req.Tags)}
	if req.AuthorID != 0 {
		filter.AuthorIDs = []uint{req.AuthorID}
	}
	return s.list(ctx, viewerID, filter, req.Page)
}

func (s *PostService) list(ctx context.Context, viewerID uint, filter repository.PostFilter, page utils.PaginationParams) (Page[PostView], error) {
	filter.Limit = page.PageSize
	filter.Offset = page.Offset
	posts, total, err := s.postRepo.List(ctx, filter)
	if err != nil {
		return Page[PostView]{}, apperrors.FromStore("list posts", err)
	}
	views, err := s.decorate(ctx, posts, viewerID)
	if err != nil {
		return Page[PostView]{}, err
	}
	return newPage(views, total, page), nil
}

func (s *PostService) GetPost(ctx context.Context, postID, viewerID uint) (*PostView, error) {
	post, err := s.findPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	views, err := s.decorate(ctx, []model.Post{*post}, viewerID)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *PostService) UpdatePost(ctx context.Context, postID, actorID uint, req UpdatePostRequest) (*PostView, error) {
	if req.Content != nil {
		trimmed := strings.TrimSpace(*req.Content)
		req.Content = &trimmed
	}
	req.Tags = normalizeTags(req.Tags)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	post, err := s.findPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actorID {
		return nil, apperrors.Forbidden("not authorized to update this post", nil)
	}

	if req.Content != nil {
		post.Content = *req.Content
	}
	if req.CodeSnippet != nil {
		post.CodeSnippet = *req.CodeSnippet
	}
	if req.Tags != nil {
		post.Tags = req.Tags
	}
	now := time.Now()
	post.IsEdited = true
	post.EditedAt = &now

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, apperrors.FromStore("update post", err)
	}
	return s.GetPost(ctx, postID, actorID)
}

func (s *PostService) DeletePost(ctx context.Context, postID, actorID uint) error {
	post, err := s.findPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != actorID {
		return apperrors.Forbidden("not authorized to delete this post", nil)
	}
	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return apperrors.FromStore("delete post", err)
	}
	return nil
}

func (s *PostService) ToggleLike(ctx context.Context, postID, userID uint) (*LikeResult, error) {
	if _, err := s.findPost(ctx, postID); err != nil {
		return nil, err
	}
	type likeState struct {
		liked bool
		count int64
	}
	state, err := utils.Retry(ctx, func() (likeState, error) {
		liked, count, err := s.postRepo.ToggleLike(ctx, postID, userID)
		return likeState{liked, count}, apperrors.FromStore("toggle like", err)
	})
	if err != nil {
		return nil, err
	}
	return &LikeResult{IsLiked: state.liked, LikesCount: state.count}, nil
}

func (s *PostService) AddComment(ctx context.Context, postID, userID uint, req AddCommentRequest) (*CommentView, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if _, err := s.findPost(ctx, postID); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.FromStore("find user", err)
	}
	if user == nil {
		return nil, apperrors.Unauthorized("user no longer exists", nil)
	}

	comment := &model.Comment{PostID: postID, UserID: userID, Content: req.Content}
	if err := s.postRepo.CreateComment(ctx, comment); err != nil {
		return nil, apperrors.FromStore("create comment", err)
	}
	comment.User = *user
	view := commentView(*comment)
	return &view, nil
}

// DeleteComment 仅评论作者可删除
func (s *PostService) DeleteComment(ctx context.Context, postID, commentID, actorID uint) error {
	if _, err := s.findPost(ctx, postID); err != nil {
		return err
	}
	comment, err := s.postRepo.FindComment(ctx, postID, commentID)
	if err != nil {
		return apperrors.FromStore("find comment", err)
	}
	if comment == nil {
		return apperrors.NotFound("comment", nil)
	}
	if comment.UserID != actorID {
		return apperrors.Forbidden("not authorized to delete this comment", nil)
	}
	if err := s.postRepo.DeleteComment(ctx, commentID); err != nil {
		return apperrors.FromStore("delete comment", err)
	}
	return nil
}

func (s *PostService) findPost(ctx context.Context, postID uint) (*model.Post, error) {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, apperrors.FromStore("find post", err)
	}
	if post == nil {
		return nil, apperrors.NotFound("post", nil)
	}
	return post, nil
}

// decorate 批量附加作者、点赞和评论
func (s *PostService) decorate(ctx context.Context, posts []model.Post, viewerID uint) ([]PostView, error) {
	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	counts, liked, err := s.postRepo.LikeStats(ctx, ids, viewerID)
	if err != nil {
		return nil, apperrors.FromStore("load likes", err)
	}
	comments, err := s.postRepo.CommentsByPost(ctx, ids)
	if err != nil {
		return nil, apperrors.FromStore("load comments", err)
	}

	views := make([]PostView, 0, len(posts))
	for _, p := range posts {
		cs := make([]CommentView, 0, len(comments[p.ID]))
		for _, c := range comments[p.ID] {
			cs = append(cs, commentView(c))
		}
		author := p.Author
		views = append(views, PostView{
			Post:       p,
			Author:     author.Summary(),
			LikesCount: counts[p.ID],
			IsLiked:    liked[p.ID],
			Comments:   cs,
		})
	}
	return views, nil
}

func normalizeTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
