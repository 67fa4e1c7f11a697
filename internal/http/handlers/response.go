// Package handlers implements the REST and realtime endpoints of the chat
// API on top of the services layer.
//
// Every failure is written as an ErrorResponse:
//
//	HTTP/1.1 403 Forbidden
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_allowed",
//	  "reason": "room_locked",
//	  "message": "room is locked"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-chat-rooms/internal/http/middleware"
)

// ErrorResponse is the error envelope. Code is the error class and Reason,
// set for business rule failures, is the domain reason clients branch on.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"not_found"`
	Reason    string `json:"reason,omitempty" example:"room_not_found"`
	Message   string `json:"message" example:"resource not found"`
}

// Fail writes an error envelope without a reason. The router uses it for
// its fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func fail(c *gin.Context, status int, code, msg string) {
	failReason(c, status, code, "", msg)
}

// failReason aborts with an envelope. Server errors are logged at error
// level; refused business rules only at debug so a noisy client cannot
// flood the log.
func failReason(c *gin.Context, status int, code, reason, msg string) {
	level := zerolog.DebugLevel
	if status >= http.StatusInternalServerError {
		level = zerolog.ErrorLevel
	}
	middleware.LoggerFrom(c).WithLevel(level).
		Int("status", status).
		Str("route", c.FullPath()).
		Str("code", code).
		Str("reason", reason).
		Str("message", msg).
		Msg("api error")

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Reason:    reason,
		Message:   msg,
	})
}

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }
