package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/npezzotti/go-messaging/internal/database"
	"github.com/npezzotti/go-messaging/internal/stats"
	"github.com/npezzotti/go-messaging/internal/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected failure")

func newMockStats() *stats.MockStatsUpdater {
	sp := &stats.MockStatsUpdater{}
	sp.On("RegisterMetric", mock.Anything).Return()
	sp.On("Incr", mock.Anything).Return()
	sp.On("Add", mock.Anything, mock.Anything).Return()
	return sp
}

type testEnv struct {
	engine *Engine
	repo   *database.SQLRepository
	stats  *stats.MockStatsUpdater
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	repo := testutil.NewTestRepository(t)
	sp := newMockStats()
	return &testEnv{
		engine: NewEngine(testutil.TestLogger(t), repo, sp, opts...),
		repo:   repo,
		stats:  sp,
	}
}

func (env *testEnv) user(t *testing.T, username string) database.User {
	t.Helper()
	return testutil.CreateUser(t, env.repo, username, username, "Test")
}

func (env *testEnv) send(t *testing.T, sender, receiver database.User, content string, parentId *int) database.Message {
	t.Helper()
	msg, err := env.engine.CreateMessage(context.Background(), sender.Id, receiver.Id, content, parentId)
	require.NoError(t, err, "send %q", content)
	return msg
}

func (env *testEnv) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, env.repo.DB().QueryRow(query, args...).Scan(&n))
	return n
}

// failingRepository runs real transactions but lets a test make selected
// derived writes fail inside them.
type failingRepository struct {
	*database.SQLRepository
	failNotification bool
	failHistory      bool
	failCleanup      bool
}

func (r *failingRepository) WithTx(ctx context.Context, fn func(q database.Querier) error) error {
	return r.SQLRepository.WithTx(ctx, func(q database.Querier) error {
		return fn(&failingQuerier{Querier: q, repo: r})
	})
}

type failingQuerier struct {
	database.Querier
	repo *failingRepository
}

func (q *failingQuerier) CreateNotification(ctx context.Context, params database.CreateNotificationParams) (database.Notification, bool, error) {
	if q.repo.failNotification {
		return database.Notification{}, false, errInjected
	}
	return q.Querier.CreateNotification(ctx, params)
}

func (q *failingQuerier) CreateHistory(ctx context.Context, params database.CreateHistoryParams) (database.MessageHistory, error) {
	if q.repo.failHistory {
		return database.MessageHistory{}, errInjected
	}
	return q.Querier.CreateHistory(ctx, params)
}

func (q *failingQuerier) DeleteUserData(ctx context.Context, userId int) (database.CleanupResult, error) {
	if q.repo.failCleanup {
		return database.CleanupResult{}, errInjected
	}
	return q.Querier.DeleteUserData(ctx, userId)
}
