// Package realtime delivers room events and unread summaries to connected
// clients. A Hub keeps the room channels and unread streams of this
// process; a RedisBus relays the same payloads to the other instances.
//
// This file defines the wire events. Their JSON shape is consumed by
// existing clients and must not change.
package realtime

import (
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tbourn/go-chat-rooms/internal/domain"
)

// Event discriminators of room channel frames.
const (
	EventChatMessage = "chat_message"
	EventUserTyping  = "user_typing"
	EventUserOnline  = "user_online"
	EventUserNotice  = "user_notice"
)

// chatMessageEvent is the message projection with type set to
// chat_message.
type chatMessageEvent struct {
	ID        string             `json:"id"`
	RoomID    string             `json:"chat_room"`
	Type      string             `json:"type"`
	Text      *string            `json:"text"`
	File      *domain.FileUpload `json:"file"`
	Sender    domain.SenderView  `json:"sender"`
	ReplyTo   *string            `json:"reply_to"`
	Seen      bool               `json:"seen"`
	SeenAt    *time.Time         `json:"seen_at"`
	CreatedAt time.Time          `json:"created_at"`
}

type typingEvent struct {
	Type string `json:"type"`
	User string `json:"user"`
}

// OnlineUser is one entry of a user_online detail list.
type OnlineUser struct {
	ID string `json:"id"`
}

type onlineEvent struct {
	Type   string       `json:"type"`
	Detail []OnlineUser `json:"detail"`
}

// Notice is the validation error object of a user_notice frame.
type Notice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type noticeEvent struct {
	Type   string   `json:"type"`
	Detail []Notice `json:"detail"`
}

// EncodeChatMessage renders a chat_message frame.
func EncodeChatMessage(m domain.MessageView) ([]byte, error) {
	return json.Marshal(chatMessageEvent{
		ID:        m.ID,
		RoomID:    m.RoomID,
		Type:      EventChatMessage,
		Text:      m.Text,
		File:      m.File,
		Sender:    m.Sender,
		ReplyTo:   m.ReplyTo,
		Seen:      m.Seen,
		SeenAt:    m.SeenAt,
		CreatedAt: m.CreatedAt,
	})
}

// EncodeTyping renders a user_typing frame.
func EncodeTyping(userID string) ([]byte, error) {
	return json.Marshal(typingEvent{Type: EventUserTyping, User: userID})
}

// EncodeOnline renders a user_online frame listing ids.
func EncodeOnline(ids []string) ([]byte, error) {
	detail := make([]OnlineUser, 0, len(ids))
	for _, id := range ids {
		detail = append(detail, OnlineUser{ID: id})
	}
	return json.Marshal(onlineEvent{Type: EventUserOnline, Detail: detail})
}

// EncodeNotice renders a user_notice frame.
func EncodeNotice(code, msg string) ([]byte, error) {
	return json.Marshal(noticeEvent{Type: EventUserNotice, Detail: []Notice{{Code: code, Message: msg}}})
}

// EncodeUnread renders an unread stream payload. A nil summary encodes as
// an empty list.
func EncodeUnread(entries []domain.UnreadEntry) ([]byte, error) {
	if entries == nil {
		entries = []domain.UnreadEntry{}
	}
	return json.Marshal(entries)
}

// Inbound is a frame sent by a client on a room channel.
type Inbound struct {
	Type           string  `json:"type"`
	Text           string  `json:"text"`
	File           *string `json:"file"`
	ReplyTo        *string `json:"reply_to"`
	IdempotencyKey string  `json:"idempotency_key"`
}

// ErrBadFrame is returned for frames that are not a JSON object with a
// known type.
var ErrBadFrame = errors.New("malformed frame")

// DecodeInbound parses a client frame. Only chat_message and user_typing
// are accepted from clients.
func DecodeInbound(b []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(b, &in); err != nil {
		return Inbound{}, ErrBadFrame
	}
	in.Type = strings.TrimSpace(in.Type)
	switch in.Type {
	case EventChatMessage, EventUserTyping:
		return in, nil
	}
	return Inbound{}, ErrBadFrame
}
