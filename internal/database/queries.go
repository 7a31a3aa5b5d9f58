package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries issues statements against either a connection pool or a single
// transaction.
//
// SQLite numbers "$n" parameters in order of first appearance, so every
// statement below introduces $1, $2, ... in ascending order.
type Queries struct {
	db      dbtx
	dialect dialect
}

type rowScanner interface {
	Scan(dest ...any) error
}

const (
	userColumns    = "id, username, email, first_name, last_name, role, created_at, updated_at"
	messageColumns = "m.id, m.sender_id, m.receiver_id, m.parent_id, m.content, m.edited, m.read, m.created_at"

	joinedMessageColumns = messageColumns + `,
		s.id, s.username, s.email, s.first_name, s.last_name, s.role, s.created_at, s.updated_at,
		r.id, r.username, r.email, r.first_name, r.last_name, r.role, r.created_at, r.updated_at`

	messageUserJoins = `
		JOIN users s ON s.id = m.sender_id
		JOIN users r ON r.id = m.receiver_id`

	notificationColumns = "id, user_id, message_id, content, read, created_at"

	// doomedMessagesQuery selects every message a user sent or received
	// together with all replies beneath them.
	doomedMessagesQuery = `
		WITH RECURSIVE doomed(id) AS (
			SELECT id FROM messages WHERE sender_id = $1 OR receiver_id = $1
			UNION
			SELECT c.id FROM messages c JOIN doomed d ON c.parent_id = d.id
		)
		SELECT id FROM doomed`
)

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(userDest(&u)...)
	return u, err
}

func messageDest(m *Message, parentId *sql.NullInt64) []any {
	return []any{
		&m.Id,
		&m.SenderId,
		&m.ReceiverId,
		parentId,
		&m.Content,
		&m.Edited,
		&m.Read,
		&m.CreatedAt,
	}
}

func userDest(u *User) []any {
	return []any{
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.FirstName,
		&u.LastName,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	}
}

func scanMessage(row rowScanner) (Message, error) {
	var (
		m        Message
		parentId sql.NullInt64
	)
	if err := row.Scan(messageDest(&m, &parentId)...); err != nil {
		return Message{}, err
	}
	m.ParentId = nullIntPtr(parentId)
	return m, nil
}

// scanJoinedMessage scans joinedMessageColumns followed by any extra
// destinations.
func scanJoinedMessage(row rowScanner, extra ...any) (Message, error) {
	var (
		m        Message
		parentId sql.NullInt64
	)
	dest := messageDest(&m, &parentId)
	dest = append(dest, userDest(&m.Sender)...)
	dest = append(dest, userDest(&m.Receiver)...)
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return Message{}, err
	}
	m.ParentId = nullIntPtr(parentId)
	return m, nil
}

func scanNotification(row rowScanner) (Notification, error) {
	var (
		n         Notification
		messageId sql.NullInt64
	)
	err := row.Scan(
		&n.Id,
		&n.UserId,
		&messageId,
		&n.Content,
		&n.Read,
		&n.CreatedAt,
	)
	if err != nil {
		return Notification{}, err
	}
	n.MessageId = nullIntPtr(messageId)
	return n, nil
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

// now is truncated to the precision Postgres keeps so values written and
// values read back compare equal.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func intPtrArg(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func (q *Queries) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	u := User{
		Username:     params.Username,
		EmailAddress: params.EmailAddress,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Role:         params.Role,
		CreatedAt:    now(),
	}
	if u.Role == "" {
		u.Role = RoleGuest
	}
	u.UpdatedAt = u.CreatedAt

	err := q.db.QueryRowContext(ctx,
		"INSERT INTO users (username, email, first_name, last_name, role, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id",
		u.Username,
		u.EmailAddress,
		u.FirstName,
		u.LastName,
		string(u.Role),
		u.CreatedAt,
	).Scan(&u.Id)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (q *Queries) GetUserById(ctx context.Context, userId int) (User, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1",
		userId,
	)
	return scanUser(row)
}

func (q *Queries) DeleteUser(ctx context.Context, userId int) (int64, error) {
	res, err := q.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", userId)
	if err != nil {
		return 0, fmt.Errorf("delete user: %w", err)
	}
	return res.RowsAffected()
}

func (q *Queries) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	msg := Message{
		SenderId:   params.SenderId,
		ReceiverId: params.ReceiverId,
		ParentId:   params.ParentId,
		Content:    params.Content,
		CreatedAt:  now(),
	}

	err := q.db.QueryRowContext(ctx,
		"INSERT INTO messages (sender_id, receiver_id, parent_id, content, edited, read, created_at) "+
			"VALUES ($1, $2, $3, $4, FALSE, FALSE, $5) RETURNING id",
		msg.SenderId,
		msg.ReceiverId,
		intPtrArg(msg.ParentId),
		msg.Content,
		msg.CreatedAt,
	).Scan(&msg.Id)
	if err != nil {
		return Message{}, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

func (q *Queries) GetMessageById(ctx context.Context, messageId int) (Message, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+joinedMessageColumns+" FROM messages m"+messageUserJoins+" WHERE m.id = $1",
		messageId,
	)
	return scanJoinedMessage(row)
}

// GetMessageForUpdate reads a message and, on Postgres, holds its row lock
// until the enclosing transaction ends.
func (q *Queries) GetMessageForUpdate(ctx context.Context, messageId int) (Message, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages m WHERE m.id = $1"+q.dialect.forUpdate,
		messageId,
	)
	return scanMessage(row)
}

func (q *Queries) MessageExists(ctx context.Context, messageId int) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM messages WHERE id = $1)",
		messageId,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check message %d: %w", messageId, err)
	}
	return exists, nil
}

func (q *Queries) UpdateMessageContent(ctx context.Context, messageId int, content string, edited bool) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE messages SET content = $1, edited = $2 WHERE id = $3",
		content,
		edited,
		messageId,
	)
	if err != nil {
		return fmt.Errorf("update message content: %w", err)
	}
	return nil
}

func (q *Queries) MarkMessageRead(ctx context.Context, messageId int) (int64, error) {
	res, err := q.db.ExecContext(ctx, "UPDATE messages SET read = TRUE WHERE id = $1", messageId)
	if err != nil {
		return 0, fmt.Errorf("mark message read: %w", err)
	}
	return res.RowsAffected()
}

func (q *Queries) CountUnread(ctx context.Context, userId int) (int, error) {
	var count int
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND read = FALSE",
		userId,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (q *Queries) ListUnread(ctx context.Context, userId int) ([]Message, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+joinedMessageColumns+" FROM messages m"+messageUserJoins+
			" WHERE m.receiver_id = $1 AND m.read = FALSE ORDER BY m.created_at DESC, m.id DESC",
		userId,
	)
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		msg, err := scanJoinedMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return messages, nil
}

// GetThreadMessages returns the message rootId and every reply beneath it in
// a single round trip. The walk stops after depthLimit levels, so a cyclic
// parent chain yields repeated ids rather than an endless query.
func (q *Queries) GetThreadMessages(ctx context.Context, rootId, depthLimit int) ([]ThreadRow, error) {
	query := `
		WITH RECURSIVE thread(id, depth) AS (
			SELECT id, 0 FROM messages WHERE id = $1
			UNION ALL
			SELECT c.id, t.depth + 1 FROM messages c JOIN thread t ON c.parent_id = t.id
			WHERE t.depth < $2
		)
		SELECT ` + joinedMessageColumns + `, t.depth
		FROM thread t
		JOIN messages m ON m.id = t.id` + messageUserJoins + `
		ORDER BY m.id, t.depth`

	return q.queryThreadRows(ctx, query, rootId, depthLimit)
}

// GetConversationMessages returns every top-level message exchanged between
// two users plus all of their replies in a single round trip.
func (q *Queries) GetConversationMessages(ctx context.Context, userId, otherUserId, depthLimit int) ([]ThreadRow, error) {
	query := `
		WITH RECURSIVE thread(id, depth) AS (
			SELECT id, 0 FROM messages
			WHERE parent_id IS NULL
				AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
			UNION ALL
			SELECT c.id, t.depth + 1 FROM messages c JOIN thread t ON c.parent_id = t.id
			WHERE t.depth < $3
		)
		SELECT ` + joinedMessageColumns + `, t.depth
		FROM thread t
		JOIN messages m ON m.id = t.id` + messageUserJoins + `
		ORDER BY m.id, t.depth`

	return q.queryThreadRows(ctx, query, userId, otherUserId, depthLimit)
}

func (q *Queries) queryThreadRows(ctx context.Context, query string, args ...any) ([]ThreadRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch thread: %w", err)
	}
	defer rows.Close()

	result := make([]ThreadRow, 0)
	for rows.Next() {
		var depth int
		msg, err := scanJoinedMessage(rows, &depth)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		result = append(result, ThreadRow{Message: msg, Depth: depth})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

// CreateNotification inserts a notification unless one already exists for
// the same user and message. The boolean reports whether a row was written.
func (q *Queries) CreateNotification(ctx context.Context, params CreateNotificationParams) (Notification, bool, error) {
	n := Notification{
		UserId:    params.UserId,
		MessageId: params.MessageId,
		Content:   params.Content,
		CreatedAt: now(),
	}

	err := q.db.QueryRowContext(ctx,
		"INSERT INTO notifications (user_id, message_id, content, read, created_at) "+
			"VALUES ($1, $2, $3, FALSE, $4) "+
			"ON CONFLICT (user_id, message_id) DO NOTHING RETURNING id",
		n.UserId,
		intPtrArg(n.MessageId),
		n.Content,
		n.CreatedAt,
	).Scan(&n.Id)
	if errors.Is(err, sql.ErrNoRows) {
		return Notification{}, false, nil
	}
	if err != nil {
		return Notification{}, false, fmt.Errorf("create notification: %w", err)
	}
	return n, true, nil
}

func (q *Queries) ListNotifications(ctx context.Context, userId int) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+notificationColumns+" FROM notifications WHERE user_id = $1 ORDER BY created_at DESC, id DESC",
		userId,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return notifications, nil
}

func (q *Queries) MarkNotificationRead(ctx context.Context, notificationId int) (int64, error) {
	res, err := q.db.ExecContext(ctx, "UPDATE notifications SET read = TRUE WHERE id = $1", notificationId)
	if err != nil {
		return 0, fmt.Errorf("mark notification read: %w", err)
	}
	return res.RowsAffected()
}

func (q *Queries) CreateHistory(ctx context.Context, params CreateHistoryParams) (MessageHistory, error) {
	h := MessageHistory{
		MessageId:  params.MessageId,
		OldContent: params.OldContent,
		EditedById: params.EditedById,
		EditedAt:   now(),
	}

	err := q.db.QueryRowContext(ctx,
		"INSERT INTO message_history (message_id, old_content, edited_by, edited_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id",
		h.MessageId,
		h.OldContent,
		intPtrArg(h.EditedById),
		h.EditedAt,
	).Scan(&h.Id)
	if err != nil {
		return MessageHistory{}, fmt.Errorf("create history: %w", err)
	}
	return h, nil
}

func (q *Queries) ListHistory(ctx context.Context, messageId int) ([]MessageHistory, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT h.id, h.message_id, h.old_content, h.edited_by, h.edited_at,
			u.username, u.email, u.first_name, u.last_name, u.role
		FROM message_history h
		LEFT JOIN users u ON u.id = h.edited_by
		WHERE h.message_id = $1
		ORDER BY h.edited_at DESC, h.id DESC`,
		messageId,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	history := make([]MessageHistory, 0)
	for rows.Next() {
		var (
			h                                  MessageHistory
			editedBy                           sql.NullInt64
			username, email, first, last, role sql.NullString
		)
		err := rows.Scan(
			&h.Id,
			&h.MessageId,
			&h.OldContent,
			&editedBy,
			&h.EditedAt,
			&username,
			&email,
			&first,
			&last,
			&role,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		h.EditedById = nullIntPtr(editedBy)
		if h.EditedById != nil && username.Valid {
			h.EditedBy = &User{
				Id:           *h.EditedById,
				Username:     username.String,
				EmailAddress: email.String,
				FirstName:    first.String,
				LastName:     last.String,
				Role:         Role(role.String),
			}
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return history, nil
}

// DeleteUserData removes every message the user sent or received, all replies
// beneath those messages, their history and notifications, and the user's own
// notifications. Rows already removed by a foreign key cascade are simply not
// counted, so repeated calls converge.
//
// The message count is taken before the delete. SQLite does not report rows
// removed by the parent_id cascade, so RowsAffected would miss nested replies.
func (q *Queries) DeleteUserData(ctx context.Context, userId int) (CleanupResult, error) {
	var result CleanupResult

	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ("+doomedMessagesQuery+") d",
		userId,
	).Scan(&result.Messages)
	if err != nil {
		return result, fmt.Errorf("count doomed messages: %w", err)
	}

	res, err := q.db.ExecContext(ctx,
		"DELETE FROM message_history WHERE message_id IN ("+doomedMessagesQuery+")",
		userId,
	)
	if err != nil {
		return result, fmt.Errorf("delete message history: %w", err)
	}
	if result.HistoryRows, err = res.RowsAffected(); err != nil {
		return result, err
	}

	res, err = q.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE message_id IN ("+doomedMessagesQuery+") OR user_id = $1",
		userId,
	)
	if err != nil {
		return result, fmt.Errorf("delete notifications: %w", err)
	}
	if result.Notifications, err = res.RowsAffected(); err != nil {
		return result, err
	}

	_, err = q.db.ExecContext(ctx,
		"DELETE FROM messages WHERE id IN ("+doomedMessagesQuery+")",
		userId,
	)
	if err != nil {
		return result, fmt.Errorf("delete messages: %w", err)
	}

	return result, nil
}
