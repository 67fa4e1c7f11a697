// Package services defines the business logic for rooms, memberships,
// messages and their side features. This file centralizes the service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// Every error belongs to exactly one kind (ErrValidation, ErrNotAllowed,
// ErrNotFound or ErrUnavailable) and carries a stable reason code. Callers
// branch on the kind with errors.Is and read the code with ReasonCode;
// translation into HTTP statuses or socket notices is done at the edge.
package services

import "errors"

// Error kinds.
var (
	// ErrValidation marks malformed input. The caller may retry with
	// different input; nothing was changed.
	ErrValidation = errors.New("validation failed")

	// ErrNotAllowed marks a rejected action: missing capability, wrong room
	// state or a transition that does not apply.
	ErrNotAllowed = errors.New("not allowed")

	// ErrNotFound marks an absent or soft-deleted entity.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable marks a dependency that cannot serve the request.
	ErrUnavailable = errors.New("unavailable")
)

// Error is a classified service error.
type Error struct {
	Kind error
	Code string
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Unwrap exposes the kind to errors.Is.
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// ReasonCode returns the stable code of err, or "" for unclassified errors.
func ReasonCode(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Not found.
var (
	ErrRoomNotFound       = newError(ErrNotFound, "room_not_found", "room not found")
	ErrUserNotFound       = newError(ErrNotFound, "user_not_found", "user not found")
	ErrMessageNotFound    = newError(ErrNotFound, "message_not_found", "message not found")
	ErrUploadNotFound     = newError(ErrNotFound, "file_not_found", "file not found")
	ErrPredefinedNotFound = newError(ErrNotFound, "predefined_message_not_found", "predefined message not found")
)

// Not allowed.
var (
	// ErrForbidden is returned when the actor lacks the capability required
	// by the action.
	ErrForbidden = newError(ErrNotAllowed, "forbidden", "you do not have permission to perform this action")

	ErrNotMember       = newError(ErrNotAllowed, "not_a_member", "not a member of this room")
	ErrAlreadyMember   = newError(ErrNotAllowed, "already_a_member", "already a member of this room")
	ErrRoomClosed      = newError(ErrNotAllowed, "room_closed", "room has been closed")
	ErrRoomReadOnly    = newError(ErrNotAllowed, "room_locked", "room is locked")
	ErrSelfChat        = newError(ErrNotAllowed, "self_chat", "cannot start a private chat with yourself")
	ErrWrongRoomKind   = newError(ErrNotAllowed, "wrong_room_type", "operation not supported for this room type")
	ErrCreatorOnly     = newError(ErrNotAllowed, "creator_only", "only the room creator can perform this action")
	ErrStaffOnly       = newError(ErrNotAllowed, "staff_only", "only staff can perform this action")
	ErrDuplicateReport = newError(ErrNotAllowed, "already_reported", "message already reported")
)

// Validation.
var (
	ErrEmptyMessage       = newError(ErrValidation, "empty_message", "message with no content is not valid")
	ErrBothTextAndFile    = newError(ErrValidation, "text_and_file", "a message carries either text or a file, not both")
	ErrProfanity          = newError(ErrValidation, "swear_word", "message contains swear word")
	ErrTooLong            = newError(ErrValidation, "too_long", "text too long")
	ErrInvalidName        = newError(ErrValidation, "invalid_name", "name must be 1 to 32 characters")
	ErrInvalidKind        = newError(ErrValidation, "invalid_type", "invalid room type")
	ErrInvalidPriority    = newError(ErrValidation, "invalid_priority", "priority must be LOW, MEDIUM or HIGH")
	ErrInvalidMessageType = newError(ErrValidation, "invalid_message_type", "invalid message type")
	ErrReplyOutsideRoom   = newError(ErrValidation, "invalid_reply", "reply_to must reference a message of the same room")
	ErrUploadTooLarge     = newError(ErrValidation, "file_too_large", "file size exceeds the upload limit")
	ErrFileType           = newError(ErrValidation, "file_type", "file type is not accepted")
	ErrInvalidPageSize    = newError(ErrValidation, "invalid_page_size", "page_size must be between 1 and 100")
	ErrEmptyPredefined    = newError(ErrValidation, "empty_predefined", "predefined message needs text or a file")
	ErrInvalidSearchQuery = newError(ErrValidation, "invalid_query", "search query must not be empty")
	ErrIdempotencyKey     = newError(ErrValidation, "invalid_idempotency_key", "Idempotency-Key too long")
)

// Unavailable.
var (
	// ErrNoStaffAvailable is returned by ticket creation when no staff user
	// exists to take the ticket.
	ErrNoStaffAvailable = newError(ErrUnavailable, "no_staff_available", "no staff available to take the ticket")
)
