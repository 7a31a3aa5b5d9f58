package messaging

import (
	"context"

	"github.com/npezzotti/go-messaging/internal/database"
)

// CountUnread counts a user's unread inbound messages without loading them.
func (e *Engine) CountUnread(ctx context.Context, userId int) (int, error) {
	return e.repo.CountUnread(ctx, userId)
}

// ListUnread returns a user's unread inbound messages, newest first. Replies
// are not loaded.
func (e *Engine) ListUnread(ctx context.Context, userId int) ([]database.Message, error) {
	return e.repo.ListUnread(ctx, userId)
}

func (e *Engine) MarkRead(ctx context.Context, messageId int) error {
	msg, err := e.GetMessage(ctx, messageId)
	if err != nil {
		return err
	}

	if msg.Read {
		return nil
	}

	affected, err := e.repo.MarkMessageRead(ctx, messageId)
	if err != nil {
		return err
	}
	if affected == 0 {
		return &NotFoundError{Entity: "message", Id: messageId}
	}

	e.invalidateConversation(ctx, msg.SenderId, msg.ReceiverId)
	return nil
}
