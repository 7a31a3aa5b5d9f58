package database

import "context"

// Querier is the set of statements the messaging engine issues. It is
// implemented both outside and inside a transaction.
type Querier interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserById(ctx context.Context, userId int) (User, error)
	DeleteUser(ctx context.Context, userId int) (int64, error)

	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	GetMessageById(ctx context.Context, messageId int) (Message, error)
	GetMessageForUpdate(ctx context.Context, messageId int) (Message, error)
	MessageExists(ctx context.Context, messageId int) (bool, error)
	UpdateMessageContent(ctx context.Context, messageId int, content string, edited bool) error
	MarkMessageRead(ctx context.Context, messageId int) (int64, error)

	CountUnread(ctx context.Context, userId int) (int, error)
	ListUnread(ctx context.Context, userId int) ([]Message, error)

	GetThreadMessages(ctx context.Context, rootId, maxDepth int) ([]ThreadRow, error)
	GetConversationMessages(ctx context.Context, userId, otherUserId, maxDepth int) ([]ThreadRow, error)

	CreateNotification(ctx context.Context, params CreateNotificationParams) (Notification, bool, error)
	ListNotifications(ctx context.Context, userId int) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, notificationId int) (int64, error)

	CreateHistory(ctx context.Context, params CreateHistoryParams) (MessageHistory, error)
	ListHistory(ctx context.Context, messageId int) ([]MessageHistory, error)

	DeleteUserData(ctx context.Context, userId int) (CleanupResult, error)
}

type MessagingRepository interface {
	Querier
	// WithTx runs fn inside a single transaction. The transaction is committed
	// when fn returns nil and rolled back otherwise.
	WithTx(ctx context.Context, fn func(q Querier) error) error
	Ping(ctx context.Context) error
	Close() error
}
