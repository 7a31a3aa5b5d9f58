package messaging

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/npezzotti/go-messaging/internal/database"
	"github.com/npezzotti/go-messaging/internal/stats"
)

const DefaultMaxThreadDepth = 64

const (
	MetricMessagesCreated       = "MessagesCreated"
	MetricNotificationsCreated  = "NotificationsCreated"
	MetricHistoryEntriesWritten = "HistoryEntriesWritten"
	MetricMessagesEdited        = "MessagesEdited"
	MetricUsersDeleted          = "UsersDeleted"
	MetricMessagesDeleted       = "MessagesDeleted"
	MetricThreadsAssembled      = "ThreadsAssembled"
)

var engineMetrics = []string{
	MetricMessagesCreated,
	MetricNotificationsCreated,
	MetricHistoryEntriesWritten,
	MetricMessagesEdited,
	MetricUsersDeleted,
	MetricMessagesDeleted,
	MetricThreadsAssembled,
}

// MessagingService is the set of operations exposed to the HTTP adapter and
// the admin CLI.
type MessagingService interface {
	CreateMessage(ctx context.Context, senderId, receiverId int, content string, parentId *int) (database.Message, error)
	GetMessage(ctx context.Context, messageId int) (database.Message, error)
	EditMessageContent(ctx context.Context, messageId int, newContent string, editorId int) (database.Message, error)
	DeleteUser(ctx context.Context, userId int) error
	PurgeUserData(ctx context.Context, userId int) (database.CleanupResult, error)
	GetThread(ctx context.Context, rootId int) (*ThreadNode, error)
	ListConversation(ctx context.Context, userId, otherUserId int) ([]*ThreadNode, error)
	CountUnread(ctx context.Context, userId int) (int, error)
	ListUnread(ctx context.Context, userId int) ([]database.Message, error)
	MarkRead(ctx context.Context, messageId int) error
	GetHistory(ctx context.Context, messageId int) ([]database.MessageHistory, error)
	ListNotifications(ctx context.Context, userId int) ([]database.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationId int) error
}

// Engine applies message lifecycle operations together with the
// notifications, history rows and cleanup derived from them. One Engine is
// built per process and shared by every caller.
type Engine struct {
	log      *log.Logger
	repo     database.MessagingRepository
	stats    stats.StatsProvider
	cache    ConversationCache
	maxDepth int
}

type Option func(*Engine)

// WithConversationCache enables read-through caching of conversations.
func WithConversationCache(c ConversationCache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithMaxThreadDepth sets how many reply levels a thread may have before it
// is treated as corrupt. Non-positive values are ignored.
func WithMaxThreadDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

func NewEngine(logger *log.Logger, repo database.MessagingRepository, sp stats.StatsProvider, opts ...Option) *Engine {
	e := &Engine{
		log:      logger,
		repo:     repo,
		stats:    sp,
		maxDepth: DefaultMaxThreadDepth,
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, name := range engineMetrics {
		sp.RegisterMetric(name)
	}

	return e
}

func (e *Engine) MaxThreadDepth() int {
	return e.maxDepth
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	return nil
}

func validateId(field string, id int) error {
	if id <= 0 {
		return &ValidationError{Field: field, Reason: "must be a positive id"}
	}
	return nil
}

func (e *Engine) CreateMessage(ctx context.Context, senderId, receiverId int, content string, parentId *int) (database.Message, error) {
	if err := validateId("sender", senderId); err != nil {
		return database.Message{}, err
	}
	if err := validateId("receiver", receiverId); err != nil {
		return database.Message{}, err
	}
	if parentId != nil {
		if err := validateId("parent", *parentId); err != nil {
			return database.Message{}, err
		}
	}
	if err := validateContent(content); err != nil {
		return database.Message{}, err
	}

	var (
		msg      database.Message
		parent   *database.Message
		notified bool
	)
	err := e.repo.WithTx(ctx, func(q database.Querier) error {
		sender, err := e.referencedUser(ctx, q, "sender", senderId)
		if err != nil {
			return err
		}
		receiver, err := e.referencedUser(ctx, q, "receiver", receiverId)
		if err != nil {
			return err
		}

		if parentId != nil {
			p, err := q.GetMessageById(ctx, *parentId)
			if errors.Is(err, sql.ErrNoRows) {
				return &ValidationError{Field: "parent", Reason: fmt.Sprintf("message %d does not exist", *parentId)}
			}
			if err != nil {
				return fmt.Errorf("get parent message: %w", err)
			}
			parent = &p
		}

		msg, err = q.CreateMessage(ctx, database.CreateMessageParams{
			SenderId:   senderId,
			ReceiverId: receiverId,
			ParentId:   parentId,
			Content:    content,
		})
		if err != nil {
			return err
		}
		msg.Sender = sender
		msg.Receiver = receiver

		notified, err = e.onMessageCreated(ctx, q, msg)
		return err
	})
	if err != nil {
		return database.Message{}, err
	}

	e.stats.Incr(MetricMessagesCreated)
	if notified {
		e.stats.Incr(MetricNotificationsCreated)
	}

	e.invalidateConversation(ctx, senderId, receiverId)
	if parent != nil {
		e.invalidateConversation(ctx, parent.SenderId, parent.ReceiverId)
	}

	return msg, nil
}

// GetMessage returns a single message with its sender and receiver.
func (e *Engine) GetMessage(ctx context.Context, messageId int) (database.Message, error) {
	msg, err := e.repo.GetMessageById(ctx, messageId)
	if errors.Is(err, sql.ErrNoRows) {
		return database.Message{}, &NotFoundError{Entity: "message", Id: messageId}
	}
	if err != nil {
		return database.Message{}, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

func (e *Engine) referencedUser(ctx context.Context, q database.Querier, field string, userId int) (database.User, error) {
	u, err := q.GetUserById(ctx, userId)
	if errors.Is(err, sql.ErrNoRows) {
		return database.User{}, &ValidationError{Field: field, Reason: fmt.Sprintf("user %d does not exist", userId)}
	}
	if err != nil {
		return database.User{}, fmt.Errorf("get %s: %w", field, err)
	}
	return u, nil
}

// EditMessageContent replaces a message's content. The stored row is locked
// for the duration of the compare and write so concurrent edits of the same
// message each record the content they replaced.
func (e *Engine) EditMessageContent(ctx context.Context, messageId int, newContent string, editorId int) (database.Message, error) {
	if err := validateId("message", messageId); err != nil {
		return database.Message{}, err
	}
	if err := validateContent(newContent); err != nil {
		return database.Message{}, err
	}

	var (
		msg     database.Message
		changed bool
	)
	err := e.repo.WithTx(ctx, func(q database.Querier) error {
		current, err := q.GetMessageForUpdate(ctx, messageId)
		if errors.Is(err, sql.ErrNoRows) {
			return &NotFoundError{Entity: "message", Id: messageId}
		}
		if err != nil {
			return fmt.Errorf("get message: %w", err)
		}

		changed, err = e.onMessageContentChanging(ctx, q, current, newContent)
		if err != nil {
			return err
		}

		if changed {
			if err := q.UpdateMessageContent(ctx, messageId, newContent, true); err != nil {
				return err
			}
		}

		msg, err = q.GetMessageById(ctx, messageId)
		if err != nil {
			return fmt.Errorf("reload message: %w", err)
		}
		return nil
	})
	if err != nil {
		return database.Message{}, err
	}

	if !changed {
		return msg, nil
	}

	e.log.Printf("message %d edited by user %d", messageId, editorId)
	e.stats.Incr(MetricMessagesEdited)
	e.stats.Incr(MetricHistoryEntriesWritten)
	e.invalidateConversation(ctx, msg.SenderId, msg.ReceiverId)

	return msg, nil
}

// DeleteUser removes a user together with every message they sent or
// received and everything derived from those messages.
func (e *Engine) DeleteUser(ctx context.Context, userId int) error {
	var result database.CleanupResult
	err := e.repo.WithTx(ctx, func(q database.Querier) error {
		if err := e.requireUser(ctx, q, userId); err != nil {
			return err
		}

		var err error
		if result, err = e.onUserDeleted(ctx, q, userId); err != nil {
			return err
		}

		if _, err := q.DeleteUser(ctx, userId); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.log.Printf("deleted user %d: %d messages, %d notifications, %d history rows removed",
		userId, result.Messages, result.Notifications, result.HistoryRows)
	e.stats.Incr(MetricUsersDeleted)
	e.stats.Add(MetricMessagesDeleted, int(result.Messages))
	e.invalidateUser(ctx, userId)

	return nil
}

// PurgeUserData runs the same cleanup as DeleteUser but keeps the user row.
// Running it again removes nothing further.
func (e *Engine) PurgeUserData(ctx context.Context, userId int) (database.CleanupResult, error) {
	var result database.CleanupResult
	err := e.repo.WithTx(ctx, func(q database.Querier) error {
		if err := e.requireUser(ctx, q, userId); err != nil {
			return err
		}

		var err error
		result, err = e.onUserDeleted(ctx, q, userId)
		return err
	})
	if err != nil {
		return database.CleanupResult{}, err
	}

	e.stats.Add(MetricMessagesDeleted, int(result.Messages))
	e.invalidateUser(ctx, userId)

	return result, nil
}

func (e *Engine) requireUser(ctx context.Context, q database.Querier, userId int) error {
	if _, err := q.GetUserById(ctx, userId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &NotFoundError{Entity: "user", Id: userId}
		}
		return fmt.Errorf("get user: %w", err)
	}
	return nil
}

func (e *Engine) GetHistory(ctx context.Context, messageId int) ([]database.MessageHistory, error) {
	exists, err := e.repo.MessageExists(ctx, messageId)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &NotFoundError{Entity: "message", Id: messageId}
	}

	return e.repo.ListHistory(ctx, messageId)
}

func (e *Engine) ListNotifications(ctx context.Context, userId int) ([]database.Notification, error) {
	return e.repo.ListNotifications(ctx, userId)
}

func (e *Engine) MarkNotificationRead(ctx context.Context, notificationId int) error {
	affected, err := e.repo.MarkNotificationRead(ctx, notificationId)
	if err != nil {
		return err
	}
	if affected == 0 {
		return &NotFoundError{Entity: "notification", Id: notificationId}
	}
	return nil
}
