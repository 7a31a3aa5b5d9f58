package messaging

import (
	"context"
	"fmt"

	"github.com/npezzotti/go-messaging/internal/database"
)

const previewLength = 50

// notificationContent builds the text of the notification a receiver gets
// for an inbound message.
func notificationContent(sender database.User, content string) string {
	return fmt.Sprintf("You received a new message from %s: %s", sender.DisplayName(), preview(content))
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "..."
}

// onMessageCreated runs inside the create transaction once the message row
// exists. It reports whether a notification row was written.
func (e *Engine) onMessageCreated(ctx context.Context, q database.Querier, msg database.Message) (bool, error) {
	if msg.ReceiverId == msg.SenderId {
		return false, nil
	}

	messageId := msg.Id
	_, created, err := q.CreateNotification(ctx, database.CreateNotificationParams{
		UserId:    msg.ReceiverId,
		MessageId: &messageId,
		Content:   notificationContent(msg.Sender, msg.Content),
	})
	if err != nil {
		return false, &ConsistencyError{Op: "notify receiver", Err: err}
	}

	return created, nil
}

// onMessageContentChanging runs inside the edit transaction with current
// holding the locked, stored row. When the content differs it appends the
// stored content to the message history and reports true.
func (e *Engine) onMessageContentChanging(ctx context.Context, q database.Querier, current database.Message, newContent string) (bool, error) {
	if current.Content == newContent {
		return false, nil
	}

	senderId := current.SenderId
	_, err := q.CreateHistory(ctx, database.CreateHistoryParams{
		MessageId:  current.Id,
		OldContent: current.Content,
		EditedById: &senderId,
	})
	if err != nil {
		return false, &ConsistencyError{Op: "record message history", Err: err}
	}

	return true, nil
}

// onUserDeleted removes every message the user sent or received, the
// replies beneath them, and all history and notification rows tied to those
// messages or owned by the user.
func (e *Engine) onUserDeleted(ctx context.Context, q database.Querier, userId int) (database.CleanupResult, error) {
	result, err := q.DeleteUserData(ctx, userId)
	if err != nil {
		return database.CleanupResult{}, &ConsistencyError{Op: "clean up user data", Err: err}
	}
	return result, nil
}
