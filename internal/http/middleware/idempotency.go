package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client key of a message send.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"

	defaultIdemMaxLen    = 200
	defaultIdemRoomParam = "room_id"
)

var defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~:-]+$`)

// GetIdempotencyKey returns the validated key of the request, if any.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	k := c.GetString(ctxKeyIdemKey)
	return k, k != ""
}

// IsReplay reports whether the key already completed a send that is still
// inside its replay window.
func IsReplay(c *gin.Context) bool { return c.GetBool(ctxKeyIdemReplay) }

// IdempotencyOptions shapes the accepted keys.
type IdempotencyOptions struct {
	// MaxLen caps key length; <= 0 means 200.
	MaxLen int
	// Pattern restricts key characters; nil means ^[A-Za-z0-9._~:-]+$.
	Pattern *regexp.Regexp
	// RoomParam is the route parameter naming the room; "" means "room_id".
	RoomParam string
}

func (o IdempotencyOptions) withDefaults() IdempotencyOptions {
	if o.MaxLen <= 0 {
		o.MaxLen = defaultIdemMaxLen
	}
	if o.Pattern == nil {
		o.Pattern = defaultIdemPattern
	}
	if o.RoomParam == "" {
		o.RoomParam = defaultIdemRoomParam
	}
	return o
}

func (o IdempotencyOptions) accepts(key string) bool {
	return len(key) <= o.MaxLen && o.Pattern.MatchString(key)
}

// IdempotencyLookup reports whether (userID, roomID, key) has a live
// stored result at now.
type IdempotencyLookup func(ctx context.Context, userID, roomID, key string, now time.Time) (bool, error)

// IdempotencyValidator checks the Idempotency-Key header and, for an
// authenticated request on a room route, asks lookup whether it is a
// replay. Replays skip the rate limiter; the handler decides how to serve
// them. A missing header passes through and a malformed one gets 400
// bad_idempotency_key. Lookup failures are logged and treated as misses.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	opts = opts.withDefaults()
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if !opts.accepts(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		uid, roomID := userIDFromCtx(c), c.Param(opts.RoomParam)
		if lookup == nil || uid == "" || roomID == "" {
			c.Next()
			return
		}
		hit, err := lookup(c.Request.Context(), uid, roomID, key, time.Now().UTC())
		switch {
		case err != nil:
			LoggerFrom(c).Warn().Err(err).Str("room_id", roomID).Msg("idempotency lookup failed")
		case hit:
			c.Set(ctxKeyIdemReplay, true)
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}
}
