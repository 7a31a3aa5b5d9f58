package testutil

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/npezzotti/go-messaging/internal/database"
)

func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[test] ", log.LstdFlags)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}

// NewTestRepository returns a migrated SQLite repository stored in the
// test's temporary directory.
func NewTestRepository(t *testing.T) *database.SQLRepository {
	t.Helper()
	url := "sqlite3://" + filepath.Join(t.TempDir(), "messaging.db")
	if err := database.Migrate(url); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	repo, err := database.Open(context.Background(), url)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

// CreateUser inserts a user named username with a matching email address.
func CreateUser(t *testing.T, repo database.Querier, username, firstName, lastName string) database.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), database.CreateUserParams{
		Username:     username,
		EmailAddress: username + "@example.com",
		FirstName:    firstName,
		LastName:     lastName,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}
