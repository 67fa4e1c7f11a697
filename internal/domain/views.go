package domain

import (
	"time"

	"github.com/tbourn/go-chat-rooms/internal/permission"
)

// MemberView is a user seen through one membership: the role and composite
// it holds in a specific room. The User value is a copy and is never
// annotated in place.
type MemberView struct {
	MembershipID string         `json:"-"`
	User         User           `json:"user"`
	Role         Role           `json:"role"`
	Permission   permission.Set `json:"action_permission"`
	JoinedAt     time.Time      `json:"joined_at"`
}

// Has reports whether the member holds capability c.
func (v MemberView) Has(c permission.Capability) bool { return v.Permission.Has(c) }

// UnreadEntry is one row of a user's unread summary. The JSON shape is the
// payload of the unread stream.
type UnreadEntry struct {
	RoomID    string       `json:"chat_room"`
	RoomName  string       `json:"-"`
	RoomKind  RoomKind     `json:"-"`
	Text      *string      `json:"text"`
	Type      *MessageType `json:"type"`
	CreatedAt *time.Time   `json:"created_at"`
	Unread    int64        `json:"unread_messages"`
}

// SenderView is the public part of a message author.
type SenderView struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Photo    *string `json:"photo"`
}

// MessageView is the client projection of a stored message: the file is
// resolved and the sender is inlined.
type MessageView struct {
	ID        string      `json:"id"`
	RoomID    string      `json:"chat_room"`
	Type      MessageType `json:"type"`
	Text      *string     `json:"text"`
	File      *FileUpload `json:"file"`
	Sender    SenderView  `json:"sender"`
	ReplyTo   *string     `json:"reply_to"`
	Seen      bool        `json:"seen"`
	SeenAt    *time.Time  `json:"seen_at"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewMessageView projects m. file may be nil.
func NewMessageView(m Message, sender User, file *FileUpload) MessageView {
	return MessageView{
		ID:        m.ID,
		RoomID:    m.RoomID,
		Type:      m.Type,
		Text:      m.Text,
		File:      file,
		Sender:    SenderView{ID: sender.ID, Username: sender.Username, Photo: sender.Photo},
		ReplyTo:   m.ReplyToID,
		Seen:      m.Seen,
		SeenAt:    m.SeenAt,
		CreatedAt: m.CreatedAt,
	}
}
