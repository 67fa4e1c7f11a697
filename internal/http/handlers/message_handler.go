// Message HTTP handlers.
//
// This file exposes REST endpoints for room messages and the seen state:
//   - POST /rooms/{id}/messages   (send; TYPING is broadcast only)
//   - GET  /rooms/{id}/messages   (paginated history, ETag support)
//   - POST /rooms/{id}/seen       (mark the room as read)
//   - GET  /rooms/{id}/offset     (offset of the first unseen message)
//   - GET  /unread                (per-room unread summary)
//
// Idempotency:
// A send carrying an Idempotency-Key that was already used by the caller in
// the same room returns the stored message with `Idempotency-Replayed: true`
// and status 200 instead of 201.
package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/http/middleware"
	"github.com/tbourn/go-chat-rooms/internal/repo"
	"github.com/tbourn/go-chat-rooms/internal/services"
)

//
// DTOs
//

// PostMessageRequest is the JSON payload for sending a message. Exactly one
// of Text and File is set for stored messages.
type PostMessageRequest struct {
	// Type is TEXT or FILE, or one of the broadcast-only TYPING, SENDING,
	// ONLINE and NOTICE. Empty derives it from the content.
	Type    domain.MessageType `json:"type" example:"TEXT"`
	Text    string             `json:"text" example:"hello @bob"`
	File    *string            `json:"file"`
	ReplyTo *string            `json:"reply_to"`
}

// ListMessagesResponse contains a page of messages and pagination metadata.
type ListMessagesResponse struct {
	Messages   []domain.MessageView `json:"messages"`
	Pagination Pagination           `json:"pagination"`
}

// SeenResponse reports how many messages were flipped to seen.
type SeenResponse struct {
	Updated int64 `json:"updated"`
}

// OffsetResponse is the start offset of the page to open first.
type OffsetResponse struct {
	Offset int `json:"offset"`
}

// UnreadResponse is the caller's unread summary.
type UnreadResponse struct {
	Rooms []domain.UnreadEntry `json:"rooms"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text: CRLF/CR become LF, runs of 3+ LFs
// collapse to two, surrounding whitespace is trimmed.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

//
// Handlers
//

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a message
// @Description Posts a text or file message to the room. TYPING is broadcast to the room and answered with 202.
// @Description Supports idempotency via the Idempotency-Key header (same key in the same room → same message).
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"
// @Param       room_id          path    string  true  "Room ID"  format(uuid)
// @Param       body             body    handlers.PostMessageRequest  true  "Message"
// @Success     201  {object}  domain.MessageView  "Created"
// @Success     200  {object}  domain.MessageView  "Replayed"
// @Success     202  {string}  string              "Typing broadcast"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /rooms/{room_id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)

	view, err := h.Messages.Send(c.Request.Context(), principal(c), c.Param("room_id"), services.SendInput{
		Type:           req.Type,
		Text:           sanitizeContent(req.Text),
		FileID:         req.File,
		ReplyToID:      req.ReplyTo,
		IdempotencyKey: key,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	if view == nil {
		c.Status(http.StatusAccepted)
		return
	}
	if middleware.IsReplay(c) {
		c.Header("Idempotency-Replayed", "true")
		ok(c, http.StatusOK, view)
		return
	}
	ok(c, http.StatusCreated, view)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages (paginated)
// @Description Returns a page of the room's messages, oldest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       room_id        path    string  true  "Room ID"  format(uuid)
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListMessagesResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     403  {object} handlers.ErrorResponse
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("room_id")
	p := principal(c)
	page, pageSize := clampPagination(c)

	items, total, err := h.Messages.ListPage(ctx, p, roomID, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}

	// ETag after the membership check so that it never leaks room activity.
	var db *gorm.DB
	if svc, ok := h.Messages.(*services.MessageService); ok {
		db = svc.DB
	}
	if db != nil {
		if count, maxTS, err := repo.MessagesStats(ctx, db, roomID); err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"msgs:%s:%d:%d:%d:%d:%d"`, roomID, count, ts, seenCount(items), page, pageSize)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	ok(c, http.StatusOK, ListMessagesResponse{Messages: items, Pagination: newPagination(page, pageSize, total)})
}

// seenCount folds the seen flags of a page into the ETag, since marking a
// room read changes a page without adding rows.
func seenCount(items []domain.MessageView) int {
	n := 0
	for _, m := range items {
		if m.Seen {
			n++
		}
	}
	return n
}

// MarkSeen godoc
// @ID          markSeen
// @Summary     Mark a room as read
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       room_id  path  string  true  "Room ID"
// @Success     200  {object} handlers.SeenResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/seen [post]
func (h *Handlers) MarkSeen(c *gin.Context) {
	n, err := h.Messages.MarkSeen(c.Request.Context(), principal(c), c.Param("room_id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SeenResponse{Updated: n})
}

// MessageOffset godoc
// @ID          messageOffset
// @Summary     Offset of the page holding the first unseen message
// @Description Falls back to the last page when nothing is unseen.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       room_id    path   string  true   "Room ID"
// @Param       page_size  query  int     false  "Page size"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.OffsetResponse
// @Failure     400  {object} handlers.ErrorResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/offset [get]
func (h *Handlers) MessageOffset(c *gin.Context) {
	pageSize, err := pageSizeParam(c)
	if err != nil {
		failErr(c, err)
		return
	}
	off, err := h.Messages.Offset(c.Request.Context(), principal(c), c.Param("room_id"), pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, OffsetResponse{Offset: off})
}

// UnreadSummary godoc
// @ID          unreadSummary
// @Summary     Unread counts per room
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} handlers.UnreadResponse
// @Router      /unread [get]
func (h *Handlers) UnreadSummary(c *gin.Context) {
	entries, err := h.Messages.UnreadSummary(c.Request.Context(), principal(c))
	if err != nil {
		failErr(c, err)
		return
	}
	if entries == nil {
		entries = []domain.UnreadEntry{}
	}
	ok(c, http.StatusOK, UnreadResponse{Rooms: entries})
}
