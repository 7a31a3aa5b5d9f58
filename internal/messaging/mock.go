package messaging

import (
	"context"

	"github.com/npezzotti/go-messaging/internal/database"
	"github.com/stretchr/testify/mock"
)

type MockMessagingService struct {
	mock.Mock
}

func (m *MockMessagingService) CreateMessage(ctx context.Context, senderId, receiverId int, content string, parentId *int) (database.Message, error) {
	args := m.Called(ctx, senderId, receiverId, content, parentId)
	return args.Get(0).(database.Message), args.Error(1)
}
func (m *MockMessagingService) GetMessage(ctx context.Context, messageId int) (database.Message, error) {
	args := m.Called(ctx, messageId)
	return args.Get(0).(database.Message), args.Error(1)
}
func (m *MockMessagingService) EditMessageContent(ctx context.Context, messageId int, newContent string, editorId int) (database.Message, error) {
	args := m.Called(ctx, messageId, newContent, editorId)
	return args.Get(0).(database.Message), args.Error(1)
}
func (m *MockMessagingService) DeleteUser(ctx context.Context, userId int) error {
	args := m.Called(ctx, userId)
	return args.Error(0)
}
func (m *MockMessagingService) PurgeUserData(ctx context.Context, userId int) (database.CleanupResult, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(database.CleanupResult), args.Error(1)
}
func (m *MockMessagingService) GetThread(ctx context.Context, rootId int) (*ThreadNode, error) {
	args := m.Called(ctx, rootId)
	node, _ := args.Get(0).(*ThreadNode)
	return node, args.Error(1)
}
func (m *MockMessagingService) ListConversation(ctx context.Context, userId, otherUserId int) ([]*ThreadNode, error) {
	args := m.Called(ctx, userId, otherUserId)
	roots, _ := args.Get(0).([]*ThreadNode)
	return roots, args.Error(1)
}
func (m *MockMessagingService) CountUnread(ctx context.Context, userId int) (int, error) {
	args := m.Called(ctx, userId)
	return args.Int(0), args.Error(1)
}
func (m *MockMessagingService) ListUnread(ctx context.Context, userId int) ([]database.Message, error) {
	args := m.Called(ctx, userId)
	messages, _ := args.Get(0).([]database.Message)
	return messages, args.Error(1)
}
func (m *MockMessagingService) MarkRead(ctx context.Context, messageId int) error {
	args := m.Called(ctx, messageId)
	return args.Error(0)
}
func (m *MockMessagingService) GetHistory(ctx context.Context, messageId int) ([]database.MessageHistory, error) {
	args := m.Called(ctx, messageId)
	history, _ := args.Get(0).([]database.MessageHistory)
	return history, args.Error(1)
}
func (m *MockMessagingService) ListNotifications(ctx context.Context, userId int) ([]database.Notification, error) {
	args := m.Called(ctx, userId)
	notifications, _ := args.Get(0).([]database.Notification)
	return notifications, args.Error(1)
}
func (m *MockMessagingService) MarkNotificationRead(ctx context.Context, notificationId int) error {
	args := m.Called(ctx, notificationId)
	return args.Error(0)
}
