package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-rooms/internal/http/middleware"
	"github.com/tbourn/go-chat-rooms/internal/realtime"
)

// eventUnread is the SSE event name of unread summaries.
const eventUnread = "unread"

// UnreadStream godoc
// @ID          unreadStream
// @Summary     Unread summary stream (SSE)
// @Description Sends the caller's current unread summary, then a fresh summary whenever it changes. Comment lines keep idle connections open.
// @Tags        Realtime
// @Produce     text/event-stream
// @Security    BearerAuth
// @Success     200  {array} domain.UnreadEntry "event: unread"
// @Failure     401  {object} handlers.ErrorResponse
// @Router      /unread/stream [get]
func (h *Handlers) UnreadStream(c *gin.Context) {
	ctx := c.Request.Context()
	p := principal(c)
	lg := middleware.LoggerFrom(c)

	// Subscribe before reading the summary so no change is lost in between.
	ch, cancel := h.Hub.Subscribe(p.ID)
	defer cancel()

	entries, err := h.Messages.UnreadSummary(ctx, p)
	if err != nil {
		failErr(c, err)
		return
	}
	first, err := realtime.EncodeUnread(entries)
	if err != nil {
		failErr(c, err)
		return
	}

	// Streams outlive the server write timeout.
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		lg.Debug().Err(err).Msg("cannot clear write deadline; stream ends at the server write timeout")
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent(eventUnread, string(first))
	c.Writer.Flush()

	keepAlive := time.NewTicker(h.StreamKeepAlive)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case b, open := <-ch:
			if !open {
				// Dropped as a slow subscriber; the client reconnects.
				return false
			}
			c.SSEvent(eventUnread, string(b))
			return true
		case <-keepAlive.C:
			_, err := io.WriteString(w, ": keep-alive\n\n")
			return err == nil
		}
	})
}
