package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/npezzotti/go-messaging/internal/database"
	"github.com/npezzotti/go-messaging/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func replyIds(n *ThreadNode) []int {
	ids := make([]int, 0, len(n.Replies))
	for _, reply := range n.Replies {
		ids = append(ids, reply.Message.Id)
	}
	return ids
}

func TestGetThread(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	carol := env.user(t, "carol")

	root := env.send(t, alice, bob, "root", nil)
	a := env.send(t, bob, alice, "a", &root.Id)
	b := env.send(t, carol, alice, "b", &root.Id)
	aa := env.send(t, alice, bob, "aa", &a.Id)
	ab := env.send(t, bob, alice, "ab", &a.Id)
	aaa := env.send(t, alice, bob, "aaa", &aa.Id)
	env.send(t, alice, bob, "another root", nil)

	thread, err := env.engine.GetThread(ctx, root.Id)
	require.NoError(t, err)

	assert.Equal(t, 6, thread.Size(), "expected root plus every transitive reply")
	assert.Equal(t, 0, thread.Depth)
	assert.Equal(t, []int{a.Id, b.Id}, replyIds(thread), "expected siblings in insertion order")
	assert.Equal(t, []int{aa.Id, ab.Id}, replyIds(thread.Replies[0]))
	assert.Equal(t, []int{aaa.Id}, replyIds(thread.Replies[0].Replies[0]))
	assert.Equal(t, 3, thread.Replies[0].Replies[0].Replies[0].Depth)
	assert.Equal(t, "carol", thread.Replies[1].Message.Sender.Username, "expected each node to carry sender identity")
	assert.Equal(t, "alice", thread.Replies[1].Message.Receiver.Username, "expected each node to carry receiver identity")

	sub, err := env.engine.GetThread(ctx, a.Id)
	require.NoError(t, err)
	assert.Equal(t, 4, sub.Size(), "expected a reply to be usable as a thread root")
	assert.Equal(t, 0, sub.Depth)

	env.stats.AssertNumberOfCalls(t, "Incr", 2*7+2)
}

func TestGetThread_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.GetThread(context.Background(), 12345)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 12345, notFound.Id)
}

func TestGetThread_Cycle(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	root := env.send(t, alice, bob, "root", nil)
	child := env.send(t, bob, alice, "child", &root.Id)

	_, err := env.repo.DB().Exec("UPDATE messages SET parent_id = ? WHERE id = ?", child.Id, root.Id)
	require.NoError(t, err)

	_, err = env.engine.GetThread(context.Background(), root.Id)

	var corrupt *CorruptThreadError
	require.ErrorAs(t, err, &corrupt, "expected a cycle to fail the read")
	assert.Equal(t, root.Id, corrupt.RootId)
	env.stats.AssertNotCalled(t, "Incr", MetricThreadsAssembled)
}

func TestGetThread_DepthLimit(t *testing.T) {
	env := newTestEnv(t, WithMaxThreadDepth(2))
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")

	root := env.send(t, alice, bob, "root", nil)
	level1 := env.send(t, bob, alice, "1", &root.Id)
	level2 := env.send(t, alice, bob, "2", &level1.Id)

	thread, err := env.engine.GetThread(context.Background(), root.Id)
	require.NoError(t, err, "expected a thread at the depth limit to load")
	assert.Equal(t, 3, thread.Size())

	env.send(t, bob, alice, "3", &level2.Id)

	_, err = env.engine.GetThread(context.Background(), root.Id)
	var corrupt *CorruptThreadError
	assert.ErrorAs(t, err, &corrupt, "expected a thread deeper than the limit to fail closed")
}

func TestGetThread_SingleQuery(t *testing.T) {
	rows := []database.ThreadRow{
		{Message: database.Message{Id: 1, Content: "root"}, Depth: 0},
		{Message: database.Message{Id: 2, ParentId: intPtr(1)}, Depth: 1},
		{Message: database.Message{Id: 3, ParentId: intPtr(2)}, Depth: 2},
	}
	repo := &database.MockMessagingRepository{}
	defer repo.AssertExpectations(t)
	repo.On("GetThreadMessages", mock.Anything, 1, DefaultMaxThreadDepth+1).Return(rows, nil).Once()
	e := NewEngine(testutil.TestLogger(t), repo, newMockStats())

	thread, err := e.GetThread(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, thread.Size())
	repo.AssertNumberOfCalls(t, "GetThreadMessages", 1)
}

func TestGetThread_StorageError(t *testing.T) {
	dbErr := errors.New("timeout")
	repo := &database.MockMessagingRepository{}
	defer repo.AssertExpectations(t)
	repo.On("GetThreadMessages", mock.Anything, 1, mock.Anything).Return([]database.ThreadRow(nil), dbErr).Once()
	e := NewEngine(testutil.TestLogger(t), repo, newMockStats())

	_, err := e.GetThread(context.Background(), 1)
	assert.ErrorIs(t, err, dbErr)
}

func intPtr(i int) *int {
	return &i
}

func Test_linkThreadRows(t *testing.T) {
	msg := func(id int, parentId *int) database.Message {
		return database.Message{Id: id, ParentId: parentId}
	}

	tcases := []struct {
		name    string
		rows    []database.ThreadRow
		roots   int
		size    int
		corrupt bool
	}{
		{
			name:  "empty",
			rows:  nil,
			roots: 0,
		},
		{
			name: "nested replies",
			rows: []database.ThreadRow{
				{Message: msg(1, nil), Depth: 0},
				{Message: msg(2, intPtr(1)), Depth: 1},
				{Message: msg(3, intPtr(1)), Depth: 1},
				{Message: msg(4, intPtr(3)), Depth: 2},
			},
			roots: 1,
			size:  4,
		},
		{
			name: "several roots",
			rows: []database.ThreadRow{
				{Message: msg(1, nil), Depth: 0},
				{Message: msg(2, nil), Depth: 0},
				{Message: msg(3, intPtr(2)), Depth: 1},
			},
			roots: 2,
		},
		{
			name: "repeated message",
			rows: []database.ThreadRow{
				{Message: msg(1, intPtr(2)), Depth: 0},
				{Message: msg(1, intPtr(2)), Depth: 2},
				{Message: msg(2, intPtr(1)), Depth: 1},
			},
			corrupt: true,
		},
		{
			name: "too deep",
			rows: []database.ThreadRow{
				{Message: msg(1, nil), Depth: 0},
				{Message: msg(2, intPtr(1)), Depth: 1},
				{Message: msg(3, intPtr(2)), Depth: 2},
				{Message: msg(4, intPtr(3)), Depth: 3},
			},
			corrupt: true,
		},
		{
			name: "reply without parent",
			rows: []database.ThreadRow{
				{Message: msg(1, nil), Depth: 0},
				{Message: msg(2, nil), Depth: 1},
			},
			corrupt: true,
		},
		{
			name: "detached reply",
			rows: []database.ThreadRow{
				{Message: msg(1, nil), Depth: 0},
				{Message: msg(3, intPtr(2)), Depth: 1},
			},
			corrupt: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			roots, err := linkThreadRows(1, tc.rows, 2)
			if tc.corrupt {
				var corrupt *CorruptThreadError
				assert.ErrorAs(t, err, &corrupt)
				return
			}
			require.NoError(t, err)
			assert.Len(t, roots, tc.roots)
			if tc.size > 0 {
				assert.Equal(t, tc.size, roots[0].Size())
			}
		})
	}
}
