package repository

import (
	"context"
	"fmt"
	"testing"

	"devconnect/internal/model"
	"devconnect/pkg/config"
	"devconnect/pkg/db"

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

func createTestUser(t *testing.T, repo *UserRepository, username string) *model.User {
	t.Helper()
	user := &model.User{
		Name:     "User " + username,
		Username: username,
		Email:    fmt.Sprintf("%s@example.com", username),
		Password: "hashed",
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestUserRepository_Create(t *testing.T) {
	setupTestDB(t)
	repo := NewUserRepository()
	ctx := context.Background()

	user := &model.User{
		Name:     "Test User",
		Username: "testuser",
		Password: "testpass",
		Email:    "test@example.com",
		Skills:   []string{"go", "sql"},
	}
	require.NoError(t, repo.Create(ctx, user))

	found, err := repo.FindByUsername(ctx, "testuser")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.Email, found.Email)
	assert.Equal(t, []string{"go", "sql"}, []string(found.Skills))
}

func TestUserRepository_FindNotFound(t *testing.T) {
	setupTestDB(t)
	repo := NewUserRepository()
	ctx := context.Background()

	// 不存在时返回 nil, nil
	user, err := repo.FindByUsername(ctx, "nonexistent")
	assert.NoError(t, err)
	assert.Nil(t, user)

	user, err = repo.FindByEmail(ctx, "none@example.com")
	assert.NoError(t, err)
	assert.Nil(t, user)

	user, err = repo.FindByID(ctx, 999999)
	assert.NoError(t, err)
	assert.Nil(t, user)

	exists, err := repo.Exists(ctx, 999999)
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestUserRepository_FindByIDs(t *testing.T) {
	setupTestDB(t)
	repo := NewUserRepository()

	a := createTestUser(t, repo, "alice")
	b := createTestUser(t, repo, "bob")

	users, err := repo.FindByIDs(context.Background(), []uint{a.ID, b.ID, 424242})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, "alice", users[a.ID].Username)
	assert.Equal(t, "bob", users[b.ID].Username)
}

func TestUserRepository_Search(t *testing.T) {
	setupTestDB(t)
	repo := NewUserRepository()
	ctx := context.Background()

	gopher := createTestUser(t, repo, "gopher")
	gopher.Skills = []string{"go", "kafka"}
	require.NoError(t, repo.Update(ctx, gopher))

	rustacean := createTestUser(t, repo, "rustacean")
	rustacean.Skills = []string{"rust"}
	require.NoError(t, repo.Update(ctx, rustacean))

	createTestUser(t, repo, "gordon")

	users, total, err := repo.Search(ctx, UserFilter{Search: "GO", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, users, 2)

	users, total, err = repo.Search(ctx, UserFilter{Skills: []string{"go"}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, users, 1)
	assert.Equal(t, gopher.ID, users[0].ID)

	_, total, err = repo.Search(ctx, UserFilter{Skills: []string{"rust", "kafka"}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	users, _, err = repo.Search(ctx, UserFilter{ExcludeID: gopher.ID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.NotEqual(t, gopher.ID, users[0].ID)
}

func TestUserRepository_Suggested(t *testing.T) {
	setupTestDB(t)
	users := NewUserRepository()
	follows := NewFollowRepository()
	ctx := context.Background()

	viewer := createTestUser(t, users, "viewer")
	popular := createTestUser(t, users, "popular")
	quiet := createTestUser(t, users, "quiet")
	followed := createTestUser(t, users, "followed")

	err := follows.SetFollow(ctx, viewer.ID, followed.ID, true)
	require.NoError(t, err)
	err = follows.SetFollow(ctx, quiet.ID, popular.ID, true)
	require.NoError(t, err)
	err = follows.SetFollow(ctx, followed.ID, popular.ID, true)
	require.NoError(t, err)

	suggested, err := users.Suggested(ctx, viewer.ID, 5)
	require.NoError(t, err)

	ids := make([]uint, 0, len(suggested))
	for _, u := range suggested {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []uint{popular.ID, quiet.ID}, ids)
}
