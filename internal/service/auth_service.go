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
	"golang.org/x/crypto/bcrypt"
)

// 处理认证相关业务逻辑
type AuthService struct {
	userRepo *repository.UserRepository
}

// 创建一个新的认证服务实例
func NewAuthService(userRepo *repository.UserRepository) *AuthService {
	return &AuthService{
		userRepo: userRepo,
	}
}

// 用户注册请求
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Username string `json:"username" validate:"required,min=3,max=30,alphanum"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Email    string `json:"email" validate:"required,email"`
}

// 用户登陆请求
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// 资料更新请求, 仅更新非空字段
type UpdateProfileRequest struct {
	Name     *string            `json:"name" validate:"omitempty,min=1,max=100"`
	Bio      *string            `json:"bio" validate:"omitempty,max=500"`
	Role     *string            `json:"role" validate:"omitempty,max=100"`
	Company  *string            `json:"company" validate:"omitempty,max=100"`
	Location *string            `json:"location" validate:"omitempty,max=100"`
	Avatar   *string            `json:"avatar" validate:"omitempty,max=512"`
	Cover    *string            `json:"cover" validate:"omitempty,max=512"`
	Skills   []string           `json:"skills" validate:"omitempty,max=30,dive,min=1,max=40"`
	Social   *model.SocialLinks `json:"social_links"`
}

// 注册新用户
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	// 检查用户名是否已存在
	existingUser, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperrors.FromStore("find user", err)
	}
	if existingUser != nil {
		return nil, apperrors.Conflict("username already exists")
	}

	// 检查邮箱是否已存在
	existingEmail, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperrors.FromStore("find user", err)
	}
	if existingEmail != nil {
		return nil, apperrors.Conflict("email already exists")
	}

	// 加密密码
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("hash password", err)
	}

	user := &model.User{
		Name:     req.Name,
		Username: req.Username,
		Password: string(hashedPassword),
		Email:    req.Email,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, apperrors.FromStore("create user", err)
	}

	logger.L.Info("User registered", zap.Uint("userID", user.ID), zap.String("username", user.Username))
	return user, nil
}

// 用户登陆
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (string, *model.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateStruct(req); err != nil {
		return "", nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return "", nil, apperrors.FromStore("find user", err)
	}
	if user == nil {
		return "", nil, apperrors.Unauthorized("invalid email or password", nil)
	}

	// 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return "", nil, apperrors.Unauthorized("invalid email or password", nil)
	}

	// 生成JWT令牌
	token, err := utils.GenerateToken(user.ID)
	if err != nil {
		return "", nil, apperrors.Internal("generate token", err)
	}
	return token, user, nil
}

// Me 返回当前用户
func (s *AuthService) Me(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.FromStore("find user", err)
	}
	if user == nil {
		return nil, apperrors.NotFound("user", nil)
	}
	return user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID uint, req UpdateProfileRequest) (*model.User, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	assign := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	assign(&user.Name, req.Name)
	assign(&user.Bio, req.Bio)
	assign(&user.Role, req.Role)
	assign(&user.Company, req.Company)
	assign(&user.Location, req.Location)
	assign(&user.Avatar, req.Avatar)
	assign(&user.Cover, req.Cover)
	if req.Skills != nil {
		user.Skills = req.Skills
	}
	if req.Social != nil {
		user.Social = *req.Social
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, apperrors.FromStore("update user", err)
	}
	return user, nil
}
