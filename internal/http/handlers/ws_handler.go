// Room channel websocket endpoint.
//
//	GET /ws/chat/{room_id}/?token=<jwt>
//
// The socket is upgraded before authentication so that every refusal
// (anonymous caller, unknown room, not a member) is reported with close code
// 4004 rather than an HTTP status the browser API cannot read.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-chat-rooms/internal/auth"
	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/http/middleware"
	"github.com/tbourn/go-chat-rooms/internal/realtime"
	"github.com/tbourn/go-chat-rooms/internal/services"
)

// NewUpgrader returns an upgrader accepting the listed origins. An empty
// list accepts any origin; "*" in the list does too.
func NewUpgrader(allowed []string) websocket.Upgrader {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	_, wildcard := set["*"]
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			if len(set) == 0 || wildcard {
				return true
			}
			origin := r.Header.Get("Origin")
			if _, ok := set[origin]; ok {
				return true
			}
			log.Warn().Str("component", "realtime").Str("origin", origin).Msg("websocket origin rejected")
			return false
		},
	}
}

// ChatSocket godoc
// @ID          chatSocket
// @Summary     Room channel (websocket)
// @Description Upgrades to a websocket joined to the room channel. Inbound frames are chat_message and user_typing; outbound frames are chat_message, user_typing, user_online and user_notice. Refusals close with 4004.
// @Tags        Realtime
// @Param       room_id  path   string  true   "Room ID"
// @Param       token    query  string  false  "Bearer token (browsers cannot set headers on websockets)"
// @Success     101  {string} string "Switching Protocols"
// @Router      /ws/chat/{room_id}/ [get]
func (h *Handlers) ChatSocket(c *gin.Context) {
	ws, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already answered with an HTTP error.
		return
	}

	// The hijacked connection outlives request cancellation semantics;
	// keep the request values (trace, logger) and manage lifetime here.
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	roomID := c.Param("room_id")
	lg := middleware.LoggerFrom(c).With().Str("component", "realtime").Str("room_id", roomID).Logger()

	p, reason := h.admit(ctx, c, roomID)
	if reason != "" {
		lg.Info().Str("reason", reason).Msg("websocket refused")
		realtime.Reject(ws, reason)
		return
	}
	lg = lg.With().Str("user_id", p.ID).Logger()
	ctx = lg.WithContext(ctx)

	conn := realtime.NewConn(ws, p.ID, roomID, h.Conn)
	h.connect(ctx, conn, p, roomID)
	defer h.disconnect(ctx, conn, p, roomID)

	var mu sync.Mutex
	lastBeat := time.Now()
	conn.Serve(
		func(frame []byte) { h.onFrame(ctx, conn, p, roomID, frame) },
		func() {
			mu.Lock()
			due := time.Since(lastBeat) >= h.HeartbeatInterval
			if due {
				lastBeat = time.Now()
			}
			mu.Unlock()
			if due && h.Presence != nil {
				if err := h.Presence.Heartbeat(ctx, roomID, p.ID); err != nil {
					lg.Warn().Err(err).Msg("presence heartbeat failed")
				}
			}
		},
	)
}

// admit authenticates the caller and checks membership. A non-empty reason
// means the connection is refused.
func (h *Handlers) admit(ctx context.Context, c *gin.Context, roomID string) (auth.Principal, string) {
	if strings.TrimSpace(roomID) == "" {
		return auth.Principal{}, "invalid route"
	}
	token := c.Query("token")
	if token == "" {
		token = auth.BearerToken(c.GetHeader("Authorization"))
	}
	p, err := h.Verifier.Verify(token)
	if err != nil || p.Anonymous() {
		return auth.Principal{}, "authentication required"
	}
	if h.SyncUser != nil {
		if err := h.SyncUser(ctx, p); err != nil {
			return auth.Principal{}, "unavailable"
		}
	}
	v, err := h.Rooms.View(ctx, roomID)
	if err != nil {
		return auth.Principal{}, "room not found"
	}
	member, err := v.HasMember(ctx, p.ID)
	if err != nil || !member {
		return auth.Principal{}, "not a member"
	}
	return p, ""
}

func (h *Handlers) connect(ctx context.Context, conn *realtime.Conn, p auth.Principal, roomID string) {
	h.Hub.Join(roomID, conn)
	if h.Presence != nil {
		if err := h.Presence.Join(ctx, roomID, p.ID); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("presence join failed")
		}
	}
	h.publishOnline(ctx, roomID)
	if _, err := h.Messages.MarkSeen(ctx, p, roomID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("mark seen on connect failed")
	}
}

// disconnect leaves the hub and the presence set before announcing the new
// online list, so the announcement never includes the leaving user.
func (h *Handlers) disconnect(ctx context.Context, conn *realtime.Conn, p auth.Principal, roomID string) {
	h.Hub.Leave(roomID, conn)
	if h.Presence != nil {
		if err := h.Presence.Leave(ctx, roomID, p.ID); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("presence leave failed")
		}
	}
	h.publishOnline(ctx, roomID)
}

func (h *Handlers) publishOnline(ctx context.Context, roomID string) {
	if h.Presence == nil {
		return
	}
	ids, err := h.Presence.Online(ctx, roomID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("presence read failed")
		return
	}
	h.Hub.PublishOnline(roomID, ids)
}

// onFrame handles one inbound frame. Errors are reported to the sender only.
func (h *Handlers) onFrame(ctx context.Context, conn *realtime.Conn, p auth.Principal, roomID string, frame []byte) {
	if h.Limiter != nil && !h.Limiter.Allow(middleware.UserKey(p.ID)) {
		notice(ctx, conn, ErrCodeRateLimited, "rate limit exceeded")
		return
	}
	in, err := realtime.DecodeInbound(frame)
	if err != nil {
		notice(ctx, conn, ErrCodeBadRequest, err.Error())
		return
	}

	send := services.SendInput{
		Text:           sanitizeContent(in.Text),
		FileID:         in.File,
		ReplyToID:      in.ReplyTo,
		IdempotencyKey: in.IdempotencyKey,
	}
	if in.Type == realtime.EventUserTyping {
		send = services.SendInput{Type: domain.MessageTyping}
	}
	if _, err := h.Messages.Send(ctx, p, roomID, send); err != nil {
		code := services.ReasonCode(err)
		msg := err.Error()
		if code == "" {
			zerolog.Ctx(ctx).Error().Err(err).Msg("websocket send failed")
			code, msg = ErrCodeInternal, "internal server error"
		}
		notice(ctx, conn, code, msg)
	}
}

func notice(ctx context.Context, conn *realtime.Conn, code, msg string) {
	b, err := realtime.EncodeNotice(code, msg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("encode notice")
		return
	}
	conn.Send(b)
}
