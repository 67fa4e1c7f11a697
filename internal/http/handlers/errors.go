// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are the error class of a response (lowercase, snake_case). Service
// errors additionally carry their domain reason (e.g. "room_locked") in the
// envelope's reason field; clients branch on the reason for business rules
// and on the code for everything else.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "validation_failed",
//	  "reason": "swear_word",
//	  "message": "message contains swear word"
//	}
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-rooms/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Service error classes.
	ErrCodeValidation  = "validation_failed"
	ErrCodeNotAllowed  = "not_allowed"
	ErrCodeUnavailable = "unavailable"
)

// statusFor maps a service error to its HTTP status and class code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, ErrCodeValidation
	case errors.Is(err, services.ErrNotAllowed):
		return http.StatusForbidden, ErrCodeNotAllowed
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, services.ErrUnavailable):
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// failErr writes the envelope for an error returned by a service.
// Unclassified errors become a 500 whose message does not leak the cause.
func failErr(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		fail(c, status, code, "internal server error")
		return
	}
	failReason(c, status, code, services.ReasonCode(err), err.Error())
}
