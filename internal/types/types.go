package types

import (
	"time"

	"github.com/npezzotti/go-messaging/internal/database"
	"github.com/npezzotti/go-messaging/internal/messaging"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Role         string    `json:"role,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Message struct {
	Id        int       `json:"id"`
	Sender    User      `json:"sender"`
	Receiver  User      `json:"receiver"`
	ParentId  *int      `json:"parent_id,omitempty"`
	Content   string    `json:"content"`
	Edited    bool      `json:"edited"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type ThreadNode struct {
	Message Message      `json:"message"`
	Depth   int          `json:"depth"`
	Replies []ThreadNode `json:"replies"`
}

type UnreadMessages struct {
	Count    int       `json:"count"`
	Messages []Message `json:"messages"`
}

type Notification struct {
	Id        int       `json:"id"`
	MessageId *int      `json:"message_id,omitempty"`
	Content   string    `json:"content"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type HistoryEntry struct {
	Id         int       `json:"id"`
	MessageId  int       `json:"message_id"`
	OldContent string    `json:"old_content"`
	EditedBy   *User     `json:"edited_by"`
	EditedAt   time.Time `json:"edited_at"`
}

type CleanupResult struct {
	Messages      int64 `json:"messages"`
	Notifications int64 `json:"notifications"`
	HistoryRows   int64 `json:"history_rows"`
}

func NewUser(u database.User) User {
	return User{
		Id:           u.Id,
		Username:     u.Username,
		EmailAddress: u.EmailAddress,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// NewMessage converts a stored message. Sender and receiver carry only their
// ids when the message was not loaded with its users.
func NewMessage(m database.Message) Message {
	msg := Message{
		Id:        m.Id,
		Sender:    NewUser(m.Sender),
		Receiver:  NewUser(m.Receiver),
		ParentId:  m.ParentId,
		Content:   m.Content,
		Edited:    m.Edited,
		Read:      m.Read,
		CreatedAt: m.CreatedAt,
	}
	msg.Sender.Id = m.SenderId
	msg.Receiver.Id = m.ReceiverId
	return msg
}

func NewMessages(messages []database.Message) []Message {
	result := make([]Message, 0, len(messages))
	for _, m := range messages {
		result = append(result, NewMessage(m))
	}
	return result
}

func NewThreadNode(n *messaging.ThreadNode) ThreadNode {
	node := ThreadNode{
		Message: NewMessage(n.Message),
		Depth:   n.Depth,
		Replies: make([]ThreadNode, 0, len(n.Replies)),
	}
	for _, reply := range n.Replies {
		node.Replies = append(node.Replies, NewThreadNode(reply))
	}
	return node
}

func NewThreadNodes(roots []*messaging.ThreadNode) []ThreadNode {
	result := make([]ThreadNode, 0, len(roots))
	for _, root := range roots {
		result = append(result, NewThreadNode(root))
	}
	return result
}

func NewNotifications(notifications []database.Notification) []Notification {
	result := make([]Notification, 0, len(notifications))
	for _, n := range notifications {
		result = append(result, Notification{
			Id:        n.Id,
			MessageId: n.MessageId,
			Content:   n.Content,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	return result
}

func NewHistory(history []database.MessageHistory) []HistoryEntry {
	result := make([]HistoryEntry, 0, len(history))
	for _, h := range history {
		entry := HistoryEntry{
			Id:         h.Id,
			MessageId:  h.MessageId,
			OldContent: h.OldContent,
			EditedAt:   h.EditedAt,
		}
		if h.EditedBy != nil {
			u := NewUser(*h.EditedBy)
			entry.EditedBy = &u
		}
		result = append(result, entry)
	}
	return result
}

func NewCleanupResult(r database.CleanupResult) CleanupResult {
	return CleanupResult{
		Messages:      r.Messages,
		Notifications: r.Notifications,
		HistoryRows:   r.HistoryRows,
	}
}
