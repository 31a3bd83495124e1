package repository

import (
	"context"
	"testing"
	"time"

	"devconnect/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestMessages(t *testing.T) (*MessageRepository, *UserRepository, *model.User, *model.User) {
	setupTestDB(t)

	userRepo := NewUserRepository()
	messageRepo := NewMessageRepository()

	user1 := createTestUser(t, userRepo, "testuser1")
	user2 := createTestUser(t, userRepo, "testuser2")

	return messageRepo, userRepo, user1, user2
}

func sendTestMessage(t *testing.T, repo *MessageRepository, from, to uint, content string, at time.Time) *model.Message {
	t.Helper()
	m := &model.Message{SenderID: from, RecipientID: to, Content: content, CreatedAt: at}
	require.NoError(t, repo.Create(context.Background(), m))
	return m
}

func TestMessageRepository_Create(t *testing.T) {
	messageRepo, _, user1, user2 := setupTestMessages(t)
	ctx := context.Background()

	message := &model.Message{
		Content:     "Test message",
		SenderID:    user1.ID,
		RecipientID: user2.ID,
		Attachments: []model.Attachment{{URL: "/uploads/a.png", Filename: "a.png", Size: 12, MimeType: "image/png"}},
	}
	require.NoError(t, messageRepo.Create(ctx, message))
	assert.NotZero(t, message.ID)

	found, err := messageRepo.FindByID(ctx, message.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.False(t, found.IsRead)
	require.Len(t, found.Attachments, 1)
	assert.Equal(t, "image/png", found.Attachments[0].MimeType)

	missing, err := messageRepo.FindByID(ctx, 999999)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMessageRepository_FindConversations(t *testing.T) {
	repo, users, a, b := setupTestMessages(t)
	c := createTestUser(t, users, "carol")
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	sendTestMessage(t, repo, a.ID, b.ID, "hi", base)
	sendTestMessage(t, repo, a.ID, b.ID, "there", base.Add(time.Second))
	sendTestMessage(t, repo, c.ID, a.ID, "from carol", base.Add(2*time.Second))
	last := sendTestMessage(t, repo, b.ID, a.ID, "hey", base.Add(3*time.Second))

	heads, err := repo.FindConversations(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, heads, 2)
	assert.Equal(t, b.ID, heads[0].CounterpartID)
	assert.Equal(t, last.ID, heads[0].LastMessage.ID)
	assert.Equal(t, c.ID, heads[1].CounterpartID)

	unread, err := repo.UnreadBySender(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread[b.ID])
	assert.Equal(t, int64(1), unread[c.ID])

	unread, err = repo.UnreadBySender(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread[a.ID])

	// 没有消息的用户返回空列表
	heads, err = repo.FindConversations(ctx, 999999)
	require.NoError(t, err)
	assert.Empty(t, heads)
}

func TestMessageRepository_FindConversationsTieBreaksByID(t *testing.T) {
	repo, _, a, b := setupTestMessages(t)
	at := time.Now().Add(-time.Minute)

	sendTestMessage(t, repo, a.ID, b.ID, "first", at)
	second := sendTestMessage(t, repo, b.ID, a.ID, "second", at)

	heads, err := repo.FindConversations(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, heads, 1)
	assert.Equal(t, second.ID, heads[0].LastMessage.ID)
}

func TestMessageRepository_FindMessagesBetweenUsers(t *testing.T) {
	repo, _, a, b := setupTestMessages(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		from, to := a.ID, b.ID
		if i%2 == 1 {
			from, to = to, from
		}
		sendTestMessage(t, repo, from, to, "msg", base.Add(time.Duration(i)*time.Second))
	}

	page1, total, err := repo.FindMessagesBetweenUsers(ctx, a.ID, b.ID, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page1, 3)
	assert.True(t, page1[0].CreatedAt.After(page1[1].CreatedAt))

	page2, _, err := repo.FindMessagesBetweenUsers(ctx, b.ID, a.ID, 3, 3)
	require.NoError(t, err)
	assert.Len(t, page2, 2)
}

func TestMessageRepository_MarkConversationRead(t *testing.T) {
	repo, _, a, b := setupTestMessages(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	sendTestMessage(t, repo, a.ID, b.ID, "hi", base)
	sendTestMessage(t, repo, a.ID, b.ID, "there", base.Add(time.Second))
	sendTestMessage(t, repo, b.ID, a.ID, "hey", base.Add(2*time.Second))

	n, err := repo.MarkConversationRead(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// 幂等
	n, err = repo.MarkConversationRead(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	// 反方向的消息不受影响
	count, err := repo.UnreadCount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMessageRepository_EditAndSoftDelete(t *testing.T) {
	repo, _, a, b := setupTestMessages(t)
	ctx := context.Background()
	m := sendTestMessage(t, repo, a.ID, b.ID, "secret", time.Now())

	require.NoError(t, repo.UpdateContent(ctx, m.ID, "edited", time.Now()))
	found, err := repo.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", found.Content)
	assert.True(t, found.IsEdited)
	assert.NotNil(t, found.EditedAt)

	require.NoError(t, repo.SoftDelete(ctx, m.ID, time.Now()))
	found, err = repo.FindByID(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, model.DeletedMessageContent, found.Content)
	assert.True(t, found.IsDeleted)
	assert.NotNil(t, found.DeletedAt)
}

func TestMessageRepository_RecentUnread(t *testing.T) {
	repo, _, a, b := setupTestMessages(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	first := sendTestMessage(t, repo, a.ID, b.ID, "one", base)
	second := sendTestMessage(t, repo, a.ID, b.ID, "two", base.Add(time.Second))
	require.NoError(t, repo.MarkRead(ctx, first.ID))

	recent, err := repo.RecentUnread(ctx, b.ID, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, second.ID, recent[0].ID)
	assert.Equal(t, a.Username, recent[0].Sender.Username)

	count, err := repo.UnreadCount(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
