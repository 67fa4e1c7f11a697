// Package domain defines the persistence models for rooms, memberships,
// messages and their side tables. These types are mapped with GORM and form
// the core data layer of the chat service.
package domain

import (
	"time"

	"github.com/tbourn/go-chat-rooms/internal/permission"
)

// RoomKind distinguishes the room families. The string values are part of
// the client contract.
type RoomKind string

const (
	RoomTicket       RoomKind = "USER_TICKET"
	RoomPrivateChat  RoomKind = "PRIVATE_CHAT"
	RoomPublicGroup  RoomKind = "PUBLIC_GROUPE"
	RoomPrivateGroup RoomKind = "PRIVATE_GROUPE"
)

// Valid reports whether k is a known room kind.
func (k RoomKind) Valid() bool {
	switch k {
	case RoomTicket, RoomPrivateChat, RoomPublicGroup, RoomPrivateGroup:
		return true
	}
	return false
}

// IsGroup reports whether k is a public or private group.
func (k RoomKind) IsGroup() bool { return k == RoomPublicGroup || k == RoomPrivateGroup }

// Priority applies to tickets only.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// RoomNameMaxLen caps Room.Name in runes.
const RoomNameMaxLen = 32

// User mirrors the identity known to the verifier. Rows are upserted when a
// principal is first seen so that staff routing and mentions can join on it.
//
// Fields:
//   - ID: identity subject from the verifier.
//   - Username: display handle, used for @mentions and private chat names.
//   - IsStaff: staff users take part in ticket routing.
//   - Photo: optional blob key.
type User struct {
	ID        string    `json:"id"         gorm:"type:varchar(64);primaryKey"`
	Username  string    `json:"username"   gorm:"type:varchar(150);not null;index"`
	IsStaff   bool      `json:"is_staff"   gorm:"not null;default:false;index"`
	Photo     *string   `json:"photo"      gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Room is a conversation container: a support ticket, a private 1:1 chat or
// a group.
//
// Fields:
//   - ID: UUID primary key.
//   - Name: display name (at most RoomNameMaxLen runes).
//   - Kind: one of the RoomKind values.
//   - Priority: tickets only.
//   - Closed / ClosedAt: set together by a close transition.
//   - ReadOnly: locked rooms reject new messages.
//   - Deleted: soft deletion; rooms are never hard deleted.
//   - Photo: optional blob key.
//   - DedupKey: natural key of private chats; NULL for other kinds.
type Room struct {
	ID        string     `json:"id"         gorm:"type:char(36);primaryKey"`
	Name      string     `json:"name"       gorm:"type:varchar(32);not null"`
	Kind      RoomKind   `json:"type"       gorm:"type:varchar(16);not null;index;check:kind IN ('USER_TICKET','PRIVATE_CHAT','PUBLIC_GROUPE','PRIVATE_GROUPE')"`
	Priority  *Priority  `json:"priority"   gorm:"type:varchar(8)"`
	Closed    bool       `json:"closed"     gorm:"not null;default:false"`
	ClosedAt  *time.Time `json:"closed_at"`
	ReadOnly  bool       `json:"read_only"  gorm:"not null;default:false"`
	Deleted   bool       `json:"-"          gorm:"not null;default:false;index"`
	Photo     *string    `json:"photo"      gorm:"type:varchar(255)"`
	DedupKey  *string    `json:"-"          gorm:"type:varchar(160);uniqueIndex:ux_rooms_dedup"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Room.
func (Room) TableName() string { return "rooms" }

// Frozen reports whether generic updates must be ignored: tickets and
// groups stop accepting saves once a close has been recorded.
func (r Room) Frozen() bool { return r.ClosedAt != nil && r.Kind != RoomPrivateChat }

// Writable reports whether new messages may be posted.
func (r Room) Writable() bool { return !r.Closed && !r.ReadOnly && !r.Deleted }

// Role is derived from membership flags.
type Role string

const (
	RoleCreator Role = "creator"
	RoleAdmin   Role = "admin"
	RoleMember  Role = "member"
)

// Membership links a user to a room. There is exactly one row per
// (room, user) for the lifetime of the room: leaving or being removed sets
// Deleted, re-joining clears it.
//
// Fields:
//   - ActionPermission: composite capability set (see package permission).
//   - IsCreator / IsAdmin: role flags.
//   - Deleted: soft deletion marker.
type Membership struct {
	ID               string         `json:"id"                gorm:"type:char(36);primaryKey"`
	RoomID           string         `json:"chat_room"         gorm:"type:char(36);not null;uniqueIndex:ux_membership_room_user,priority:1"`
	UserID           string         `json:"user"              gorm:"type:varchar(64);not null;index;uniqueIndex:ux_membership_room_user,priority:2"`
	IsCreator        bool           `json:"is_creator"        gorm:"not null;default:false"`
	IsAdmin          bool           `json:"is_admin"          gorm:"not null;default:false"`
	ActionPermission permission.Set `json:"action_permission" gorm:"type:integer;not null;default:2"`
	Deleted          bool           `json:"-"                 gorm:"not null;default:false;index"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`

	// Room is the owning room. Memberships are cascade-deleted with it.
	Room Room `json:"-" gorm:"foreignKey:RoomID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Membership.
func (Membership) TableName() string { return "memberships" }

// Role derives the role from the flags.
func (m Membership) Role() Role {
	switch {
	case m.IsCreator:
		return RoleCreator
	case m.IsAdmin:
		return RoleAdmin
	default:
		return RoleMember
	}
}

// MessageType discriminates messages. Only TEXT and FILE are stored; the
// other values travel over the room channel only.
type MessageType string

const (
	MessageText    MessageType = "TEXT"
	MessageFile    MessageType = "FILE"
	MessageOnline  MessageType = "ONLINE"
	MessageNotice  MessageType = "NOTICE"
	MessageTyping  MessageType = "TYPING"
	MessageSending MessageType = "SENDING"
)

// Persisted reports whether messages of type t are written to the store.
func (t MessageType) Persisted() bool { return t == MessageText || t == MessageFile }

// Valid reports whether t is a known type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageFile, MessageOnline, MessageNotice, MessageTyping, MessageSending:
		return true
	}
	return false
}

// Message is a stored chat message.
//
// Fields:
//   - MembershipID: sender membership, so the sender role is derivable.
//   - SenderID: denormalized sender user id.
//   - Text / FileID: exactly one is set.
//   - ReplyToID: optional message in the same room.
//   - Seen / SeenAt: customer-visible seen state; SeenAt is stamped once.
type Message struct {
	ID           string      `json:"id"          gorm:"type:char(36);primaryKey"`
	RoomID       string      `json:"chat_room"   gorm:"type:char(36);not null;index:idx_room_msgs,priority:1"`
	MembershipID string      `json:"member"      gorm:"type:char(36);not null;index"`
	SenderID     string      `json:"sender"      gorm:"type:varchar(64);not null;index"`
	Type         MessageType `json:"type"        gorm:"type:varchar(8);not null;check:type IN ('TEXT','FILE')"`
	Text         *string     `json:"text"        gorm:"type:text"`
	FileID       *string     `json:"file"        gorm:"type:char(36)"`
	ReplyToID    *string     `json:"reply_to"    gorm:"type:char(36);index"`
	Seen         bool        `json:"seen"        gorm:"not null;default:false"`
	SeenAt       *time.Time  `json:"seen_at"`
	CreatedAt    time.Time   `json:"created_at"  gorm:"index:idx_room_msgs,priority:2"`

	// Room is the owning room. Messages are cascade-deleted with it.
	Room Room `json:"-" gorm:"foreignKey:RoomID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// UnseenMessage records that UserID has not yet seen MessageID. RoomID is
// denormalized so unread counts are a single indexed scan.
type UnseenMessage struct {
	MessageID string `gorm:"type:char(36);primaryKey"`
	UserID    string `gorm:"type:varchar(64);primaryKey;index:idx_unseen_user_room,priority:1"`
	RoomID    string `gorm:"type:char(36);not null;index:idx_unseen_user_room,priority:2"`

	Message Message `gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for UnseenMessage.
func (UnseenMessage) TableName() string { return "message_unseen" }

// MessageMention records an @mention of UserID in MessageID.
type MessageMention struct {
	MessageID string `gorm:"type:char(36);primaryKey"`
	UserID    string `gorm:"type:varchar(64);primaryKey;index"`

	Message Message `gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for MessageMention.
func (MessageMention) TableName() string { return "message_mentions" }

// FileKind is detected from the upload extension.
type FileKind string

const (
	FileImage FileKind = "IMAGE"
	FileVideo FileKind = "VIDEO"
	FileAudio FileKind = "AUDIO"
	FileOther FileKind = "FILE"
)

// Thumbnailable reports whether a thumbnail is generated for k.
func (k FileKind) Thumbnailable() bool { return k == FileImage || k == FileVideo }

// FileUpload is a blob owned by the uploading user until it is attached to
// a message or predefined message.
type FileUpload struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	OwnerID      string    `json:"owner"         gorm:"type:varchar(64);not null;index"`
	Name         string    `json:"name"          gorm:"type:varchar(255);not null"`
	BlobKey      string    `json:"file"          gorm:"type:varchar(255);not null"`
	ThumbnailKey *string   `json:"file_pic"      gorm:"type:varchar(255)"`
	Kind         FileKind  `json:"file_type"     gorm:"type:varchar(8);not null"`
	Size         int64     `json:"size"          gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for FileUpload.
func (FileUpload) TableName() string { return "file_uploads" }

// PredefinedMessage is a canned message a user can resend.
type PredefinedMessage struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user"       gorm:"type:varchar(64);not null;index"`
	Text      *string   `json:"text"       gorm:"type:text"`
	FileID    *string   `json:"file"       gorm:"type:char(36)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for PredefinedMessage.
func (PredefinedMessage) TableName() string { return "predefined_messages" }

// Report is a member's complaint about a message. One per (message, reporter).
type Report struct {
	ID         string    `json:"id"         gorm:"type:char(36);primaryKey"`
	MessageID  string    `json:"message"    gorm:"type:char(36);not null;uniqueIndex:ux_report_message_reporter,priority:1"`
	ReporterID string    `json:"reporter"   gorm:"type:varchar(64);not null;uniqueIndex:ux_report_message_reporter,priority:2"`
	RoomID     string    `json:"group"      gorm:"type:char(36);not null;index"`
	Reason     string    `json:"reason"     gorm:"type:varchar(255)"`
	CreatedAt  time.Time `json:"created_at"`

	Message Message `json:"-" gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Report.
func (Report) TableName() string { return "reports" }
