package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"devconnect/internal/model"
	internalProto "devconnect/internal/proto"
	"devconnect/internal/repository"
	"devconnect/pkg/config"
	"devconnect/pkg/db"
	apperrors "devconnect/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) {
	if err := config.InitTest(); err != nil {
		t.Fatalf("Failed to initialize config: %v", err)
	}

	// 配置测试数据库连接
	if err := db.InitDB(); err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	cleanupTables(t)
}

// 帮助函数：清空所有表中的数据
func cleanupTables(t *testing.T) {
	for _, m := range []interface{}{
		&model.Message{}, &model.Comment{}, &model.PostLike{}, &model.Post{},
		&model.Fan{}, &model.Follow{}, &model.User{},
	} {
		if err := db.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(m).Error; err != nil {
			t.Logf("Failed to cleanup table for %T: %v", m, err)
		}
	}
}

func createUser(t *testing.T, username string) *model.User {
	t.Helper()
	user := &model.User{
		Name:     "User " + username,
		Username: username,
		Email:    fmt.Sprintf("%s@example.com", username),
		Password: "hashed",
	}
	require.NoError(t, repository.NewUserRepository().Create(context.Background(), user))
	return user
}

type sentEvent struct {
	userID uint
	event  internalProto.Event
}

// recordingNotifier 记录推送的事件
type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) Notify(userID uint, event internalProto.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{userID: userID, event: event})
	return nil
}

func (n *recordingNotifier) ofType(eventType string) []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentEvent
	for _, e := range n.events {
		if e.event.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, code), "expected %s, got %v", code, err)
}

func TestAuthService_Register(t *testing.T) {
	setupTestDB(t)
	service := NewAuthService(repository.NewUserRepository())
	ctx := context.Background()

	tests := []struct {
		name     string
		req      RegisterRequest
		wantCode string
	}{
		{
			name: "Valid registration",
			req: RegisterRequest{
				Name:     "Test User",
				Username: "testuser",
				Password: "password123",
				Email:    "Test@Example.com",
			},
		},
		{
			name: "Duplicate username",
			req: RegisterRequest{
				Name:     "Other",
				Username: "testuser",
				Password: "password123",
				Email:    "another@example.com",
			},
			wantCode: apperrors.CodeConflict,
		},
		{
			name: "Duplicate email",
			req: RegisterRequest{
				Name:     "Other",
				Username: "anotheruser",
				Password: "password123",
				Email:    "test@example.com",
			},
			wantCode: apperrors.CodeConflict,
		},
		{
			name: "Short password",
			req: RegisterRequest{
				Name:     "New",
				Username: "newuser",
				Password: "123",
				Email:    "new@example.com",
			},
			wantCode: apperrors.CodeValidation,
		},
		{
			name: "Invalid email",
			req: RegisterRequest{
				Name:     "New",
				Username: "newuser",
				Password: "password123",
				Email:    "not-an-email",
			},
			wantCode: apperrors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := service.Register(ctx, tt.req)
			if tt.wantCode != "" {
				assertCode(t, err, tt.wantCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.req.Username, user.Username)
			assert.Equal(t, "test@example.com", user.Email)
			assert.NotEqual(t, tt.req.Password, user.Password)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	setupTestDB(t)
	service := NewAuthService(repository.NewUserRepository())
	ctx := context.Background()

	_, err := service.Register(ctx, RegisterRequest{
		Name:     "Login Test",
		Username: "logintest",
		Password: "password123",
		Email:    "login@example.com",
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		req      LoginRequest
		wantCode string
	}{
		{name: "Valid login", req: LoginRequest{Email: "login@example.com", Password: "password123"}},
		{name: "Unknown email", req: LoginRequest{Email: "nobody@example.com", Password: "password123"}, wantCode: apperrors.CodeUnauthorized},
		{name: "Wrong password", req: LoginRequest{Email: "login@example.com", Password: "wrongpassword"}, wantCode: apperrors.CodeUnauthorized},
		{name: "Empty email", req: LoginRequest{Password: "password123"}, wantCode: apperrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, user, err := service.Login(ctx, tt.req)
			if tt.wantCode != "" {
				assertCode(t, err, tt.wantCode)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, token)
			assert.Equal(t, "logintest", user.Username)
		})
	}
}

func TestAuthService_UpdateProfile(t *testing.T) {
	setupTestDB(t)
	service := NewAuthService(repository.NewUserRepository())
	ctx := context.Background()
	user := createUser(t, "profile")

	bio := "  Go developer  "
	updated, err := service.UpdateProfile(ctx, user.ID, UpdateProfileRequest{
		Bio:    &bio,
		Skills: []string{"go", "postgres"},
		Social: &model.SocialLinks{Github: "https://github.com/profile"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Go developer", updated.Bio)
	assert.Equal(t, "User profile", updated.Name)

	me, err := service.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "postgres"}, []string(me.Skills))
	assert.Equal(t, "https://github.com/profile", me.Social.Github)

	_, err = service.Me(ctx, 999999)
	assertCode(t, err, apperrors.CodeNotFound)
}
