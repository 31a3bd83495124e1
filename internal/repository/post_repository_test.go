package repository

import (
	"context"
	"testing"
	"time"

	"devconnect/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestPost(t *testing.T, repo *PostRepository, author uint, content string, at time.Time, tags ...string) *model.Post {
	t.Helper()
	p := &model.Post{AuthorID: author, Content: content, Tags: tags, CreatedAt: at}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestPostRepository_ListByAuthors(t *testing.T) {
	setupTestDB(t)
	users := NewUserRepository()
	repo := NewPostRepository()
	ctx := context.Background()

	a := createTestUser(t, users, "alice")
	b := createTestUser(t, users, "bob")
	c := createTestUser(t, users, "carol")
	base := time.Now().Add(-time.Hour)

	createTestPost(t, repo, a.ID, "a1", base)
	createTestPost(t, repo, b.ID, "b1", base.Add(time.Second), "go")
	createTestPost(t, repo, c.ID, "c1", base.Add(2*time.Second), "go")
	createTestPost(t, repo, a.ID, "a2", base.Add(3*time.Second))

	posts, total, err := repo.List(ctx, PostFilter{AuthorIDs: []uint{a.ID, b.ID}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, posts, 3)
	assert.Equal(t, "a2", posts[0].Content)
	assert.Equal(t, "b1", posts[1].Content)
	assert.Equal(t, "a1", posts[2].Content)
	assert.Equal(t, "alice", posts[0].Author.Username)

	posts, total, err = repo.List(ctx, PostFilter{Tags: []string{"go"}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, posts, 2)
}

func TestPostRepository_ToggleLike(t *testing.T) {
	setupTestDB(t)
	users := NewUserRepository()
	repo := NewPostRepository()
	ctx := context.Background()

	a := createTestUser(t, users, "alice")
	b := createTestUser(t, users, "bob")
	post := createTestPost(t, repo, a.ID, "hello", time.Now())

	liked, count, err := repo.ToggleLike(ctx, post.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, int64(1), count)

	counts, likedBy, err := repo.LikeStats(ctx, []uint{post.ID}, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[post.ID])
	assert.True(t, likedBy[post.ID])

	liked, count, err = repo.ToggleLike(ctx, post.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, int64(0), count)
}

func TestPostRepository_CommentsAndDelete(t *testing.T) {
	setupTestDB(t)
	users := NewUserRepository()
	repo := NewPostRepository()
	ctx := context.Background()

	a := createTestUser(t, users, "alice")
	post := createTestPost(t, repo, a.ID, "hello", time.Now())

	comment := &model.Comment{PostID: post.ID, UserID: a.ID, Content: "nice"}
	require.NoError(t, repo.CreateComment(ctx, comment))

	found, err := repo.FindComment(ctx, post.ID, comment.ID)
	require.NoError(t, err)
	require.NotNil(t, found)

	// 评论不属于该帖子时视为不存在
	found, err = repo.FindComment(ctx, post.ID+1, comment.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	comments, err := repo.CommentsByPost(ctx, []uint{post.ID})
	require.NoError(t, err)
	require.Len(t, comments[post.ID], 1)
	assert.Equal(t, "alice", comments[post.ID][0].User.Username)

	_, _, err = repo.ToggleLike(ctx, post.ID, a.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, post.ID))
	gone, err := repo.FindByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.Equal(t, int64(0), countRows(t, &model.Comment{}, "post_id = ?", post.ID))
	assert.Equal(t, int64(0), countRows(t, &model.PostLike{}, "post_id = ?", post.ID))
}
