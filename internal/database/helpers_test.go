package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestRepository(t *testing.T) *SQLRepository {
	t.Helper()
	url := "sqlite3://" + filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, Migrate(url), "migrate")

	repo, err := Open(context.Background(), url)
	require.NoError(t, err, "open")
	t.Cleanup(func() { repo.Close() })
	return repo
}

func createTestUser(t *testing.T, repo *SQLRepository, username string) User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), CreateUserParams{
		Username:     username,
		EmailAddress: username + "@example.com",
		FirstName:    username,
		LastName:     "Test",
	})
	require.NoError(t, err, "create user %s", username)
	return u
}

func createTestMessage(t *testing.T, repo *SQLRepository, sender, receiver User, content string, parentId *int) Message {
	t.Helper()
	msg, err := repo.CreateMessage(context.Background(), CreateMessageParams{
		SenderId:   sender.Id,
		ReceiverId: receiver.Id,
		ParentId:   parentId,
		Content:    content,
	})
	require.NoError(t, err, "create message %q", content)
	return msg
}

func countRows(t *testing.T, repo *SQLRepository, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, repo.DB().QueryRow(query, args...).Scan(&n))
	return n
}
