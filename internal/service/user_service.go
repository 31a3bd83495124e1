package service

import (
	"context"
	"strings"

	"devconnect/internal/model"
	"devconnect/internal/repository"
	apperrors "devconnect/pkg/errors"
	"devconnect/pkg/logger"
	"devconnect/pkg/utils"

	"go.uber.org/zap"
)

const suggestedUsersLimit = 5

type UserService struct {
	userRepo   *repository.UserRepository
	followRepo *repository.FollowRepository
}

func NewUserService(userRepo *repository.UserRepository, followRepo *repository.FollowRepository) *UserService {
	return &UserService{userRepo: userRepo, followRepo: followRepo}
}

// ListUsersRequest 搜索条件, Skills 为逗号分隔后的技能列表
type ListUsersRequest struct {
	Search string
	Skills []string
	Page   utils.PaginationParams
}

type FollowResult struct {
	IsFollowing bool `json:"is_following"`
}

// ToggleFollow 关注或取消关注. 目标状态在重试前确定, 重试只重放幂等的 SetFollow
func (s *UserService) ToggleFollow(ctx context.Context, actorID, targetID uint) (*FollowResult, error) {
	if actorID == targetID {
		return nil, apperrors.Validation("cannot follow yourself", nil)
	}
	exists, err := s.userRepo.Exists(ctx, targetID)
	if err != nil {
		return nil, apperrors.FromStore("find user", err)
	}
	if !exists {
		return nil, apperrors.NotFound("user", nil)
	}

	current, err := s.followRepo.IsFollowing(ctx, actorID, targetID)
	if err != nil {
		return nil, apperrors.FromStore("check follow", err)
	}
	want := !current

	_, err = utils.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, apperrors.FromStore("set follow", s.followRepo.SetFollow(ctx, actorID, targetID, want))
	})
	if err != nil {
		logger.L.Error("Failed to toggle follow",
			zap.Uint("actorID", actorID), zap.Uint("targetID", targetID), zap.Error(err))
		return nil, err
	}

	logger.L.Debug("Follow toggled",
		zap.Uint("actorID", actorID), zap.Uint("targetID", targetID), zap.Bool("following", want))
	return &FollowResult{IsFollowing: want}, nil
}

// GetUser 返回资料及关注统计, viewerID 为 0 表示匿名访问
func (s *UserService) GetUser(ctx context.Context, id, viewerID uint) (*ProfileView, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.FromStore("find user", err)
	}
	if user == nil {
		return nil, apperrors.NotFound("user", nil)
	}
	return s.profile(ctx, user, viewerID)
}

func (s *UserService) GetUserByUsername(ctx context.Context, username string, viewerID uint) (*ProfileView, error) {
	user, err := s.userRepo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, apperrors.FromStore("find user", err)
	}
	if user == nil {
		return nil, apperrors.NotFound("user", nil)
	}
	return s.profile(ctx, user, viewerID)
}

func (s *UserService) profile(ctx context.Context, user *model.User, viewerID uint) (*ProfileView, error) {
	followers, following, err := s.followRepo.Counts(ctx, user.ID)
	if err != nil {
		return nil, apperrors.FromStore("count follows", err)
	}
	view := &ProfileView{User: user, FollowersCount: followers, FollowingCount: following}
	if viewerID != 0 && viewerID != user.ID {
		if view.IsFollowing, err = s.followRepo.IsFollowing(ctx, viewerID, user.ID); err != nil {
			return nil, apperrors.FromStore("load follow state", err)
		}
	}
	return view, nil
}

func (s *UserService) ListUsers(ctx context.Context, req ListUsersRequest) (Page[model.User], error) {
	users, total, err := s.userRepo.Search(ctx, repository.UserFilter{
		Search: req.Search,
		Skills: req.Skills,
		Limit:  req.Page.PageSize,
		Offset: req.Page.Offset,
	})
	if err != nil {
		return Page[model.User]{}, apperrors.FromStore("search users", err)
	}
	return newPage(users, total, req.Page), nil
}

func (s *UserService) Followers(ctx context.Context, userID uint) ([]model.User, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.followRepo.Followers(ctx, userID)
	if err != nil {
		return nil, apperrors.FromStore("list followers", err)
	}
	return nonNil(users), nil
}

func (s *UserService) Following(ctx context.Context, userID uint) ([]model.User, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.followRepo.Following(ctx, userID)
	if err != nil {
		return nil, apperrors.FromStore("list following", err)
	}
	return nonNil(users), nil
}

// Suggested 未关注且非本人的用户, 按粉丝数降序
func (s *UserService) Suggested(ctx context.Context, viewerID uint) ([]model.User, error) {
	users, err := s.userRepo.Suggested(ctx, viewerID, suggestedUsersLimit)
	if err != nil {
		return nil, apperrors.FromStore("suggest users", err)
	}
	return nonNil(users), nil
}

func (s *UserService) ensureUser(ctx context.Context, userID uint) error {
	exists, err := s.userRepo.Exists(ctx, userID)
	if err != nil {
		return apperrors.FromStore("find user", err)
	}
	if !exists {
		return apperrors.NotFound("user", nil)
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
