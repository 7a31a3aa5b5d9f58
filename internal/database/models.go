package database

import "time"

type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleHost, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	Id           int
	Username     string
	EmailAddress string
	FirstName    string
	LastName     string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName returns the user's full name, falling back to the username
// when no name parts are set.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Username
}

type Message struct {
	Id         int
	SenderId   int
	ReceiverId int
	ParentId   *int
	Content    string
	Edited     bool
	Read       bool
	CreatedAt  time.Time

	// Sender and Receiver are only populated by queries that join users.
	Sender   User
	Receiver User
}

// ThreadRow is a message returned by a recursive thread walk together with
// its distance from the seed message(s).
type ThreadRow struct {
	Message
	Depth int
}

type Notification struct {
	Id        int
	UserId    int
	MessageId *int
	Content   string
	Read      bool
	CreatedAt time.Time
}

type MessageHistory struct {
	Id         int
	MessageId  int
	OldContent string
	EditedById *int
	EditedAt   time.Time

	// EditedBy is populated when the editing user still exists.
	EditedBy *User
}

type CreateUserParams struct {
	Username     string
	EmailAddress string
	FirstName    string
	LastName     string
	Role         Role
}

type CreateMessageParams struct {
	SenderId   int
	ReceiverId int
	ParentId   *int
	Content    string
}

type CreateNotificationParams struct {
	UserId    int
	MessageId *int
	Content   string
}

type CreateHistoryParams struct {
	MessageId  int
	OldContent string
	EditedById *int
}

// CleanupResult reports how many rows each step of a user cleanup removed.
type CleanupResult struct {
	HistoryRows   int64
	Notifications int64
	Messages      int64
}
