package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockMessagingRepository struct {
	mock.Mock
}

// WithTx records the call and, unless an error is configured, runs fn with
// the mock itself standing in for the transaction.
func (m *MockMessagingRepository) WithTx(ctx context.Context, fn func(q Querier) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m)
}
func (m *MockMessagingRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockMessagingRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockMessagingRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockMessagingRepository) GetUserById(ctx context.Context, userId int) (User, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockMessagingRepository) DeleteUser(ctx context.Context, userId int) (int64, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockMessagingRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockMessagingRepository) GetMessageById(ctx context.Context, messageId int) (Message, error) {
	args := m.Called(ctx, messageId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockMessagingRepository) GetMessageForUpdate(ctx context.Context, messageId int) (Message, error) {
	args := m.Called(ctx, messageId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockMessagingRepository) MessageExists(ctx context.Context, messageId int) (bool, error) {
	args := m.Called(ctx, messageId)
	return args.Bool(0), args.Error(1)
}
func (m *MockMessagingRepository) UpdateMessageContent(ctx context.Context, messageId int, content string, edited bool) error {
	args := m.Called(ctx, messageId, content, edited)
	return args.Error(0)
}
func (m *MockMessagingRepository) MarkMessageRead(ctx context.Context, messageId int) (int64, error) {
	args := m.Called(ctx, messageId)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockMessagingRepository) CountUnread(ctx context.Context, userId int) (int, error) {
	args := m.Called(ctx, userId)
	return args.Int(0), args.Error(1)
}
func (m *MockMessagingRepository) ListUnread(ctx context.Context, userId int) ([]Message, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockMessagingRepository) GetThreadMessages(ctx context.Context, rootId, depthLimit int) ([]ThreadRow, error) {
	args := m.Called(ctx, rootId, depthLimit)
	return args.Get(0).([]ThreadRow), args.Error(1)
}
func (m *MockMessagingRepository) GetConversationMessages(ctx context.Context, userId, otherUserId, depthLimit int) ([]ThreadRow, error) {
	args := m.Called(ctx, userId, otherUserId, depthLimit)
	return args.Get(0).([]ThreadRow), args.Error(1)
}
func (m *MockMessagingRepository) CreateNotification(ctx context.Context, params CreateNotificationParams) (Notification, bool, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Notification), args.Bool(1), args.Error(2)
}
func (m *MockMessagingRepository) ListNotifications(ctx context.Context, userId int) ([]Notification, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).([]Notification), args.Error(1)
}
func (m *MockMessagingRepository) MarkNotificationRead(ctx context.Context, notificationId int) (int64, error) {
	args := m.Called(ctx, notificationId)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockMessagingRepository) CreateHistory(ctx context.Context, params CreateHistoryParams) (MessageHistory, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(MessageHistory), args.Error(1)
}
func (m *MockMessagingRepository) ListHistory(ctx context.Context, messageId int) ([]MessageHistory, error) {
	args := m.Called(ctx, messageId)
	return args.Get(0).([]MessageHistory), args.Error(1)
}
func (m *MockMessagingRepository) DeleteUserData(ctx context.Context, userId int) (CleanupResult, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(CleanupResult), args.Error(1)
}
