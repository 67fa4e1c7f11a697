package realtime

import (
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/services"
)

// DefaultStreamBuffer is the queue length of one unread stream.
const DefaultStreamBuffer = 16

// Subscriber receives room channel frames. Send must not block; it
// reports whether the frame was queued.
type Subscriber interface {
	Send(payload []byte) bool
}

// Relay forwards envelopes to the other instances.
type Relay interface {
	Publish(env Envelope)
}

// Envelope is a payload addressed to a room channel or to a user's unread
// streams. Exactly one of Room and User is set.
type Envelope struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room,omitempty"`
	User    string          `json:"user,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Hub holds the room channels and unread streams of this process.
//
// Delivery never blocks: room subscribers decide themselves what to do
// with a full queue, and a full unread stream drops the frame. The next
// summary push supersedes it.
type Hub struct {
	id           string
	streamBuffer int

	mu      sync.RWMutex
	rooms   map[string]map[Subscriber]struct{}
	streams map[string]map[chan []byte]struct{}
	relay   Relay
}

// NewHub returns an empty hub with a fresh instance id.
func NewHub() *Hub {
	return &Hub{
		id:           uuid.NewString(),
		streamBuffer: DefaultStreamBuffer,
		rooms:        make(map[string]map[Subscriber]struct{}),
		streams:      make(map[string]map[chan []byte]struct{}),
	}
}

// ID identifies this process on the relay.
func (h *Hub) ID() string { return h.id }

// SetRelay attaches the cross-instance relay.
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	h.relay = r
	h.mu.Unlock()
}

// Join subscribes s to roomID.
func (h *Hub) Join(roomID string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.rooms[roomID]
	if subs == nil {
		subs = make(map[Subscriber]struct{})
		h.rooms[roomID] = subs
	}
	subs[s] = struct{}{}
}

// Leave unsubscribes s from roomID.
func (h *Hub) Leave(roomID string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.rooms[roomID]
	delete(subs, s)
	if len(subs) == 0 {
		delete(h.rooms, roomID)
	}
}

// Subscribers returns the local subscriber count of roomID.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Subscribe opens an unread stream for userID. The returned cancel
// function removes the stream and closes the channel; it is idempotent.
func (h *Hub) Subscribe(userID string) (<-chan []byte, func()) {
	ch := make(chan []byte, h.streamBuffer)
	h.mu.Lock()
	subs := h.streams[userID]
	if subs == nil {
		subs = make(map[chan []byte]struct{})
		h.streams[userID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()
	unreadStreams.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			subs := h.streams[userID]
			delete(subs, ch)
			if len(subs) == 0 {
				delete(h.streams, userID)
			}
			close(ch)
			h.mu.Unlock()
			unreadStreams.Dec()
		})
	}
}

// BroadcastRoom delivers payload to the local subscribers of roomID and
// relays it to the other instances.
func (h *Hub) BroadcastRoom(roomID string, payload []byte) {
	h.deliverRoom(roomID, payload)
	h.forward(Envelope{Origin: h.id, Room: roomID, Payload: payload})
}

// NotifyUser delivers payload to the local unread streams of userID and
// relays it to the other instances.
func (h *Hub) NotifyUser(userID string, payload []byte) {
	h.deliverUser(userID, payload)
	h.forward(Envelope{Origin: h.id, User: userID, Payload: payload})
}

// Deliver hands a relayed envelope to local subscribers. Envelopes that
// originated here were already delivered and are ignored.
func (h *Hub) Deliver(env Envelope) {
	if env.Origin == h.id {
		return
	}
	switch {
	case env.Room != "":
		h.deliverRoom(env.Room, env.Payload)
	case env.User != "":
		h.deliverUser(env.User, env.Payload)
	}
}

func (h *Hub) deliverRoom(roomID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.rooms[roomID] {
		if s.Send(payload) {
			framesSent.WithLabelValues("room").Inc()
		} else {
			framesDropped.WithLabelValues("room").Inc()
		}
	}
}

func (h *Hub) deliverUser(userID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.streams[userID] {
		select {
		case ch <- payload:
			framesSent.WithLabelValues("unread").Inc()
		default:
			framesDropped.WithLabelValues("unread").Inc()
		}
	}
}

func (h *Hub) forward(env Envelope) {
	h.mu.RLock()
	r := h.relay
	h.mu.RUnlock()
	if r != nil {
		r.Publish(env)
	}
}

// PublishMessage broadcasts a stored message as chat_message.
func (h *Hub) PublishMessage(roomID string, m domain.MessageView) {
	b, err := EncodeChatMessage(m)
	if err != nil {
		log.Error().Err(err).Str("component", "realtime").Str("room_id", roomID).Msg("encode chat_message")
		return
	}
	h.BroadcastRoom(roomID, b)
}

// PublishTyping broadcasts user_typing.
func (h *Hub) PublishTyping(roomID, userID string) {
	b, err := EncodeTyping(userID)
	if err != nil {
		log.Error().Err(err).Str("component", "realtime").Str("room_id", roomID).Msg("encode user_typing")
		return
	}
	h.BroadcastRoom(roomID, b)
}

// PublishOnline broadcasts the online member ids of roomID.
func (h *Hub) PublishOnline(roomID string, ids []string) {
	b, err := EncodeOnline(ids)
	if err != nil {
		log.Error().Err(err).Str("component", "realtime").Str("room_id", roomID).Msg("encode user_online")
		return
	}
	h.BroadcastRoom(roomID, b)
}

// PublishNotice broadcasts a user_notice frame to roomID.
func (h *Hub) PublishNotice(roomID, code, msg string) {
	b, err := EncodeNotice(code, msg)
	if err != nil {
		log.Error().Err(err).Str("component", "realtime").Str("room_id", roomID).Msg("encode user_notice")
		return
	}
	h.BroadcastRoom(roomID, b)
}

// PublishUnread pushes a fresh unread summary to userID.
func (h *Hub) PublishUnread(userID string, entries []domain.UnreadEntry) {
	b, err := EncodeUnread(entries)
	if err != nil {
		log.Error().Err(err).Str("component", "realtime").Str("user_id", userID).Msg("encode unread summary")
		return
	}
	h.NotifyUser(userID, b)
}

var _ services.Notifier = (*Hub)(nil)
