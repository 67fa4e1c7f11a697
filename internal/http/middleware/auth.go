// This file authenticates callers. The bearer token is verified by an
// auth.Verifier; the resulting principal is stored in the Gin context and
// mirrored into the users table so membership and staff queries can join
// against it.

package middleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-rooms/internal/auth"
)

const (
	ctxKeyPrincipal = "principal"
	ctxKeyUserID    = "userID"
)

// TokenVerifier resolves a raw token to a principal. An empty token yields
// the anonymous principal.
type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// UserSync records a verified principal in persistent storage.
type UserSync func(ctx context.Context, p auth.Principal) error

// AuthOptions configures Authenticate.
type AuthOptions struct {
	// AllowQueryToken accepts ?token= when no Authorization header is sent.
	// Browsers cannot set headers on WebSocket and EventSource requests.
	AllowQueryToken bool
	// Optional lets anonymous requests through with an empty principal.
	Optional bool
}

// Authenticate verifies the caller and stashes the principal. Invalid
// tokens are rejected with 401; missing tokens too unless opts.Optional.
//
// syncUser is called once per distinct principal value seen by this process.
func Authenticate(v TokenVerifier, syncUser UserSync, opts AuthOptions) gin.HandlerFunc {
	var synced sync.Map // auth.Principal -> struct{}

	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" && opts.AllowQueryToken {
			token = c.Query("token")
		}

		p, err := v.Verify(token)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}
		if p.Anonymous() {
			if !opts.Optional {
				abortUnauthorized(c, "authentication required")
				return
			}
			c.Next()
			return
		}

		if syncUser != nil {
			if _, done := synced.Load(p); !done {
				if err := syncUser(c.Request.Context(), p); err != nil {
					LoggerFrom(c).Error().Err(err).Str("user_id", p.ID).Msg("user sync failed")
					c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
						"request_id": c.Writer.Header().Get(requestIDHeader),
						"code":       "unavailable",
						"message":    "service unavailable",
					})
					return
				}
				synced.Store(p, struct{}{})
			}
		}

		SetPrincipal(c, p)
		c.Next()
	}
}

// SetPrincipal stores p in the Gin context.
func SetPrincipal(c *gin.Context, p auth.Principal) {
	c.Set(ctxKeyPrincipal, p)
	c.Set(ctxKeyUserID, p.ID)
}

// PrincipalFrom returns the authenticated principal, or the anonymous
// principal when none was stored.
func PrincipalFrom(c *gin.Context) auth.Principal {
	if v, ok := c.Get(ctxKeyPrincipal); ok {
		if p, ok := v.(auth.Principal); ok {
			return p
		}
	}
	return auth.Principal{}
}

// userIDFromCtx returns the authenticated user id, or "" when anonymous.
func userIDFromCtx(c *gin.Context) string { return c.GetString(ctxKeyUserID) }

func abortUnauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="chat"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    msg,
	})
}
