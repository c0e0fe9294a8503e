package rest

import "time"

// Presence is a user's visibility state.
type Presence int

const (
	PresenceOffline Presence = 0
	PresenceOnline  Presence = 1
	PresenceAway    Presence = 2
)

func (p Presence) String() string {
	switch p {
	case PresenceOffline:
		return "offline"
	case PresenceOnline:
		return "online"
	case PresenceAway:
		return "away"
	default:
		return "unknown"
	}
}

// ParsePresence converts "online", "away" or "offline".
func ParsePresence(s string) (Presence, bool) {
	switch s {
	case "offline":
		return PresenceOffline, true
	case "online":
		return PresenceOnline, true
	case "away":
		return PresenceAway, true
	default:
		return 0, false
	}
}

// UserType distinguishes people from bots.
type UserType int

const (
	UserTypeStandard UserType = 0
	UserTypeBot      UserType = 1
)

// User is a registered account.
type User struct {
	ID            string   `json:"id"`
	DisplayName   string   `json:"displayName"`
	Description   *string  `json:"description,omitempty"`
	Type          UserType `json:"type"`
	Presence      Presence `json:"presence"`
	Permissions   int64    `json:"permissions"`
	CurrentRoomID *string  `json:"currentRoomId,omitempty"`
}

// Room is a chat room. Rooms connect to each other to form a map users walk.
type Room struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description,omitempty"`
	IsEntrance   bool      `json:"isEntrance"`
	ConnectedTo  []string  `json:"connectedRoomIds,omitempty"`
	CreationDate time.Time `json:"creationDate"`
}

// MessageType selects how a message is rendered.
type MessageType int

const (
	MessageTypeStandard  MessageType = 0
	MessageTypeUserJoin  MessageType = 1
	MessageTypeUserLeave MessageType = 2
)

// MessageFlags modify message behavior.
type MessageFlags int

const (
	MessageFlagHideAuthor MessageFlags = 1 << 0
)

// Message is a message posted in a room.
type Message struct {
	ID           string       `json:"id"`
	Type         MessageType  `json:"type"`
	Flags        MessageFlags `json:"flags"`
	AuthorID     *string      `json:"authorId,omitempty"`
	RoomID       string       `json:"roomId"`
	Content      *string      `json:"content,omitempty"`
	CreationDate time.Time    `json:"creationDate"`
}

// LogInResponse carries the token issued by LogIn.
type LogInResponse struct {
	Token string `json:"token"`
}

// ModifyCurrentUserRequest changes the authenticated user's profile.
// Nil fields are left unchanged.
type ModifyCurrentUserRequest struct {
	DisplayName *string `json:"displayName,omitempty"`
	Description *string `json:"description,omitempty"`
}

// CreateRoomRequest describes a new room.
type CreateRoomRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	IsEntrance  bool    `json:"isEntrance,omitempty"`
}

// ModifyRoomRequest changes a room. Nil fields are left unchanged.
type ModifyRoomRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsEntrance  *bool   `json:"isEntrance,omitempty"`
}

// SendMessageRequest posts a message.
type SendMessageRequest struct {
	Type    MessageType  `json:"type"`
	Flags   MessageFlags `json:"flags,omitempty"`
	Content string       `json:"content,omitempty"`
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	UserName    string  `json:"userName"`
	DisplayName *string `json:"displayName,omitempty"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
}

// LogInRequest exchanges credentials for a token.
type LogInRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

// BanUserRequest bans a user.
type BanUserRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// PageQuery selects a page of a listing. Zero values are omitted.
type PageQuery struct {
	Count  int
	After  string
	Before string
}
