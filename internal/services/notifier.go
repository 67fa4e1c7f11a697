package services

import "github.com/tbourn/go-chat-rooms/internal/domain"

// Notifier receives the realtime side effects of service operations.
// Implementations must return without waiting for subscribers: delivery is
// best effort and never fails the operation that triggered it.
type Notifier interface {
	// PublishMessage broadcasts a persisted message to the room channel.
	PublishMessage(roomID string, m domain.MessageView)
	// PublishTyping broadcasts a typing indicator to the room channel.
	PublishTyping(roomID, userID string)
	// PublishOnline broadcasts the online member ids of the room.
	PublishOnline(roomID string, ids []string)
	// PublishNotice broadcasts a notice to the room channel.
	PublishNotice(roomID, code, msg string)
	// PublishUnread pushes a fresh unread summary to userID's stream.
	PublishUnread(userID string, entries []domain.UnreadEntry)
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) PublishMessage(string, domain.MessageView)  {}
func (NopNotifier) PublishTyping(string, string)               {}
func (NopNotifier) PublishOnline(string, []string)             {}
func (NopNotifier) PublishNotice(string, string, string)       {}
func (NopNotifier) PublishUnread(string, []domain.UnreadEntry) {}

var _ Notifier = NopNotifier{}
