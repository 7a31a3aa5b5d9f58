package database

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetUser(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	created := createTestUser(t, repo, "alice")
	assert.NotZero(t, created.Id, "expected id to be assigned")
	assert.Equal(t, RoleGuest, created.Role, "expected default role to be guest")

	got, err := repo.GetUserById(ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, created.Username, got.Username)
	assert.Equal(t, created.EmailAddress, got.EmailAddress)
	assert.Equal(t, RoleGuest, got.Role)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt), "expected created_at to round trip")

	_, err = repo.GetUserById(ctx, created.Id+100)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCreateUser_RejectsInvalidRole(t *testing.T) {
	repo := openTestRepository(t)

	_, err := repo.CreateUser(context.Background(), CreateUserParams{
		Username:     "mallory",
		EmailAddress: "mallory@example.com",
		Role:         Role("superuser"),
	})
	assert.Error(t, err, "expected role check constraint to reject unknown role")
}

func TestGetMessageById_JoinsUsers(t *testing.T) {
	repo := openTestRepository(t)
	alice := createTestUser(t, repo, "alice")
	bob := createTestUser(t, repo, "bob")
	root := createTestMessage(t, repo, alice, bob, "Hi", nil)
	reply := createTestMessage(t, repo, bob, alice, "Hello", &root.Id)

	got, err := repo.GetMessageById(context.Background(), reply.Id)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Content)
	assert.Equal(t, "bob", got.Sender.Username, "expected sender identity to be joined")
	assert.Equal(t, "alice", got.Receiver.Username, "expected receiver identity to be joined")
	require.NotNil(t, got.ParentId)
	assert.Equal(t, root.Id, *got.ParentId)
	assert.False(t, got.Edited)
	assert.False(t, got.Read)

	_, err = repo.GetMessageById(context.Background(), reply.Id+100)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCreateNotification_IsIdempotent(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()
	alice := createTestUser(t, repo, "alice")
	bob := createTestUser(t, repo, "bob")
	msg := createTestMessage(t, repo, alice, bob, "Hi", nil)

	params := CreateNotificationParams{UserId: bob.Id, MessageId: &msg.Id, Content: "new message"}

	first, created, err := repo.CreateNotification(ctx, params)
	require.NoError(t, err)
	assert.True(t, created, "expected first insert to create a row")
	assert.NotZero(t, first.Id)

	_, created, err = repo.CreateNotification(ctx, params)
	require.NoError(t, err)
	assert.False(t, created, "expected duplicate insert to be ignored")

	assert.Equal(t, 1, countRows(t, repo, "SELECT COUNT(*) FROM notifications WHERE user_id = ?", bob.Id))
}

func TestUnreadQueries(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()
	alice := createTestUser(t, repo, "alice")
	bob := createTestUser(t, repo, "bob")

	first := createTestMessage(t, repo, alice, bob, "first", nil)
	second := createTestMessage(t, repo, alice, bob, "second", nil)
	third := createTestMessage(t, repo, alice, bob, "third", nil)
	createTestMessage(t, repo, bob, alice, "to alice", nil)

	affected, err := repo.MarkMessageRead(ctx, second.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	count, err := repo.CountUnread(ctx, bob.Id)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	unread, err := repo.ListUnread(ctx, bob.Id)
	require.NoError(t, err)
	require.Len(t, unread, 2)
	assert.Equal(t, third.Id, unread[0].Id, "expected newest message first")
	assert.Equal(t, first.Id, unread[1].Id)
	assert.Equal(t, "alice", unread[0].Sender.Username)

	affected, err = repo.MarkMessageRead(ctx, third.Id+100)
	require.NoError(t, err)
	assert.Zero(t, affected, "expected no rows for unknown message")
}

func TestGetThreadMessages(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()
	alice := createTestUser(t, repo, "alice")
	bob := createTestUser(t, repo, "bob")

	root := createTestMessage(t, repo, alice, bob, "root", nil)
	a := createTestMessage(t, repo, bob, alice, "a", &root.Id)
	b := createTestMessage(t, repo, alice, bob, "b", &root.Id)
	aa := createTestMessage(t, repo, alice, bob, "aa", &a.Id)
	createTestMessage(t, repo, alice, bob, "unrelated", nil)

	rows, err := repo.GetThreadMessages(ctx, root.Id, 10)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	depths := map[int]int{}
	for _, row := range rows {
		depths[row.Id] = row.Depth
	}
	assert.Equal(t, map[int]int{root.Id: 0, a.Id: 1, b.Id: 1, aa.Id: 2}, depths)
	assert.Equal(t, "bob", rows[1].Sender.Username, "expected reply sender to be joined")

	limited, err := repo.GetThreadMessages(ctx, root.Id, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 3, "expected walk to stop at the depth limit")

	missing, err := repo.GetThreadMessages(ctx, root.Id+100, 10)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestGetThreadMessages_CycleTerminates(t *testing.T) {
	repo := openTestRepository(t)
	alice := createTestUser(t, repo, "alice")
	bob := createTestUser(t, repo, "bob")

	root := createTestMessage(t, repo, alice, bob, "root", nil)
	child := createTestMessage(t, repo, bob, alice, "child", &root.Id)
	_, err := repo.DB().Exec("UPDATE messages SET parent_id = ? WHERE id = ?", child.Id, root.Id)
	require.NoError(t, err)

	rows, err := repo.GetThreadMessages(context.Background(), root.Id, 5)
	require.NoError(t, err)
	assert.Len(t, rows, 6, "expected the cycle to be walked exactly up to the depth limit")
}

func TestGetConversationMessages(t *testing.T) {
	repo := openTestRepository(t)
	alice := createTestUser(t, repo, "alice")
	bob := createTestUser(t, repo, "bob")
	carol := createTestUser(t, repo, "carol")

	r1 := createTestMessage(t, repo, alice, bob, "r1", nil)
	r2 := createTestMessage(t, repo, bob, alice, "r2", nil)
	reply := createTestMessage(t, repo, bob, alice, "reply", &r1.Id)
	createTestMessage(t, repo, alice, carol, "other conversation", nil)

	rows, err := repo.GetConversationMessages(context.Background(), alice.Id, bob.Id, 10)
	require.NoError(t, err)

	ids := make([]int, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.Id)
	}
	assert.Equal(t, []int{r1.Id, r2.Id, reply.Id}, ids, "expected rows ordered by id")
}

func TestListHistory(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()
	alice := createTestUser(t, repo, "alice")
	bob := createTestUser(t, repo, "bob")
	moderator := createTestUser(t, repo, "moderator")
	msg := createTestMessage(t, repo, alice, bob, "v1", nil)

	_, err := repo.CreateHistory(ctx, CreateHistoryParams{MessageId: msg.Id, OldContent: "v1", EditedById: &alice.Id})
	require.NoError(t, err)
	_, err = repo.CreateHistory(ctx, CreateHistoryParams{MessageId: msg.Id, OldContent: "v2", EditedById: &moderator.Id})
	require.NoError(t, err)

	history, err := repo.ListHistory(ctx, msg.Id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "v2", history[0].OldContent, "expected newest entry first")
	require.NotNil(t, history[0].EditedBy)
	assert.Equal(t, "moderator", history[0].EditedBy.Username)

	_, err = repo.DeleteUser(ctx, moderator.Id)
	require.NoError(t, err)

	history, err = repo.ListHistory(ctx, msg.Id)
	require.NoError(t, err)
	require.Len(t, history, 2, "expected history to survive the editor's deletion")
	assert.Nil(t, history[0].EditedById)
	assert.Nil(t, history[0].EditedBy)
}

func TestDeleteUserData_Converges(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()
	alice := createTestUser(t, repo, "alice")
	bob := createTestUser(t, repo, "bob")
	carol := createTestUser(t, repo, "carol")

	toBob := createTestMessage(t, repo, alice, bob, "to bob", nil)
	createTestMessage(t, repo, bob, alice, "to alice", nil)
	kept := createTestMessage(t, repo, alice, carol, "to carol", nil)
	// a reply between two other users beneath one of bob's messages goes with it
	createTestMessage(t, repo, carol, alice, "nested", &toBob.Id)

	_, _, err := repo.CreateNotification(ctx, CreateNotificationParams{UserId: bob.Id, MessageId: &toBob.Id, Content: "n"})
	require.NoError(t, err)
	_, _, err = repo.CreateNotification(ctx, CreateNotificationParams{UserId: bob.Id, Content: "system"})
	require.NoError(t, err)
	_, _, err = repo.CreateNotification(ctx, CreateNotificationParams{UserId: carol.Id, MessageId: &kept.Id, Content: "n"})
	require.NoError(t, err)
	_, err = repo.CreateHistory(ctx, CreateHistoryParams{MessageId: toBob.Id, OldContent: "old", EditedById: &alice.Id})
	require.NoError(t, err)

	result, err := repo.DeleteUserData(ctx, bob.Id)
	require.NoError(t, err)
	assert.Equal(t, CleanupResult{HistoryRows: 1, Notifications: 2, Messages: 3}, result)

	again, err := repo.DeleteUserData(ctx, bob.Id)
	require.NoError(t, err)
	assert.Equal(t, CleanupResult{}, again, "expected a second cleanup to find nothing")

	assert.Equal(t, 1, countRows(t, repo, "SELECT COUNT(*) FROM messages"))
	assert.Equal(t, 1, countRows(t, repo, "SELECT COUNT(*) FROM notifications WHERE user_id = ?", carol.Id))

	affected, err := repo.DeleteUser(ctx, bob.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
}

func TestDeleteUserData_CountsCascadedReplies(t *testing.T) {
	tcases := []struct {
		name       string
		replyDepth int
	}{
		{name: "single reply", replyDepth: 1},
		{name: "reply chain", replyDepth: 4},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			repo := openTestRepository(t)
			alice := createTestUser(t, repo, "alice")
			bob := createTestUser(t, repo, "bob")

			parent := createTestMessage(t, repo, alice, bob, "Hi", nil)
			for i := 0; i < tc.replyDepth; i++ {
				parent = createTestMessage(t, repo, bob, alice, "Hello", &parent.Id)
			}

			before := countRows(t, repo, "SELECT COUNT(*) FROM messages")
			result, err := repo.DeleteUserData(context.Background(), bob.Id)
			require.NoError(t, err)
			removed := before - countRows(t, repo, "SELECT COUNT(*) FROM messages")

			assert.Equal(t, tc.replyDepth+1, removed)
			assert.Equal(t, int64(removed), result.Messages, "expected every removed message to be counted")
		})
	}
}
