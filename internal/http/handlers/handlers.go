// Package handlers exposes the REST, SSE and websocket endpoints of the chat
// backend.
//
// Handlers are transport-thin: they bind input, call application services
// with the verified principal, and translate results and service errors into
// HTTP responses. Authorization decisions live in the services.
package handlers

import (
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tbourn/go-chat-rooms/internal/auth"
	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/http/middleware"
	"github.com/tbourn/go-chat-rooms/internal/permission"
	"github.com/tbourn/go-chat-rooms/internal/presence"
	"github.com/tbourn/go-chat-rooms/internal/realtime"
	"github.com/tbourn/go-chat-rooms/internal/services"
	"github.com/tbourn/go-chat-rooms/internal/utils"
)

//
// Service contracts (context-aware)
//

// RoomService creates, mutates and lists rooms.
type RoomService interface {
	CreateTicket(ctx context.Context, actor auth.Principal, name string, priority domain.Priority) (*domain.Room, error)
	GetOrCreatePrivateChat(ctx context.Context, actor auth.Principal, contactID string) (*domain.Room, bool, error)
	CreateGroup(ctx context.Context, actor auth.Principal, in services.GroupInput) (*domain.Room, error)
	Get(ctx context.Context, actor auth.Principal, roomID string) (*services.RoomView, error)
	View(ctx context.Context, roomID string) (*services.RoomView, error)
	CloseTicket(ctx context.Context, actor auth.Principal, roomID string) (bool, error)
	UpdateTicket(ctx context.Context, actor auth.Principal, roomID string, in services.TicketUpdate) (*domain.Room, error)
	AssignStaff(ctx context.Context, actor auth.Principal, roomID, username string) (*domain.User, error)
	SetBlocked(ctx context.Context, actor auth.Principal, roomID string, blocked bool) (bool, error)
	CloseGroup(ctx context.Context, actor auth.Principal, roomID string) (bool, error)
	SetGroupLocked(ctx context.Context, actor auth.Principal, roomID string, locked bool) (bool, error)
	UpdateGroup(ctx context.Context, actor auth.Principal, roomID string, in services.GroupUpdate) (*domain.Room, error)
	Open(ctx context.Context, actor auth.Principal, roomID string) (bool, error)
	ListForUser(ctx context.Context, actor auth.Principal, page, pageSize int) ([]domain.Room, int64, error)
	TopPublicGroups(ctx context.Context, limit int) ([]domain.Room, error)
	SearchPublicGroups(ctx context.Context, q string, limit int) ([]domain.Room, error)
}

// MembershipService applies membership transitions.
type MembershipService interface {
	JoinPublicGroup(ctx context.Context, actor auth.Principal, roomID string) (bool, error)
	AddMember(ctx context.Context, actor auth.Principal, roomID, userID string) (bool, error)
	RemoveMember(ctx context.Context, actor auth.Principal, roomID, userID string) (bool, error)
	Promote(ctx context.Context, actor auth.Principal, roomID, userID string) (bool, error)
	Demote(ctx context.Context, actor auth.Principal, roomID, userID string) (bool, error)
	Leave(ctx context.Context, actor auth.Principal, roomID string) (bool, error)
	SetPermissions(ctx context.Context, actor auth.Principal, roomID, userID string, caps []permission.Capability) (permission.Set, error)
	Permissions(ctx context.Context, actor auth.Principal, roomID string) (*domain.Membership, error)
}

// MessageService posts and reads messages and the seen state.
type MessageService interface {
	Send(ctx context.Context, actor auth.Principal, roomID string, in services.SendInput) (*domain.MessageView, error)
	MarkSeen(ctx context.Context, actor auth.Principal, roomID string) (int64, error)
	UnreadSummary(ctx context.Context, actor auth.Principal) ([]domain.UnreadEntry, error)
	Offset(ctx context.Context, actor auth.Principal, roomID string, pageSize int) (int, error)
	ListPage(ctx context.Context, actor auth.Principal, roomID string, page, pageSize int) ([]domain.MessageView, int64, error)
}

// UploadService stores uploaded files.
type UploadService interface {
	Upload(ctx context.Context, actor auth.Principal, name string, size int64, r io.Reader) (*domain.FileUpload, error)
	Get(ctx context.Context, actor auth.Principal, id string) (*domain.FileUpload, error)
}

// PredefinedService manages canned messages.
type PredefinedService interface {
	Create(ctx context.Context, actor auth.Principal, in services.PredefinedInput) (*domain.PredefinedMessage, error)
	List(ctx context.Context, actor auth.Principal) ([]domain.PredefinedMessage, error)
	Get(ctx context.Context, actor auth.Principal, id string) (*domain.PredefinedMessage, error)
	Update(ctx context.Context, actor auth.Principal, id string, in services.PredefinedInput) (*domain.PredefinedMessage, error)
	Delete(ctx context.Context, actor auth.Principal, id string) error
}

// ReportService files and lists message reports.
type ReportService interface {
	Report(ctx context.Context, actor auth.Principal, messageID, reason string) (*domain.Report, error)
	List(ctx context.Context, actor auth.Principal, roomID string) ([]domain.Report, error)
}

// Hub is the realtime surface used by the socket and stream endpoints.
type Hub interface {
	Join(roomID string, s realtime.Subscriber)
	Leave(roomID string, s realtime.Subscriber)
	Subscribe(userID string) (<-chan []byte, func())
	PublishOnline(roomID string, ids []string)
}

// FrameLimiter meters inbound socket frames per key.
type FrameLimiter interface {
	Allow(key string) bool
}

//
// Handler wiring
//

// Deps lists everything the handlers need. Rooms, Members and Messages are
// required; the rest may be nil when the matching routes are not mounted.
type Deps struct {
	Rooms      RoomService
	Members    MembershipService
	Messages   MessageService
	Uploads    UploadService
	Predefined PredefinedService
	Reports    ReportService

	Hub      Hub
	Presence presence.Tracker
	Limiter  FrameLimiter

	// Socket authentication happens inside the handler so that refusals
	// are reported with a close code instead of an HTTP status.
	Verifier middleware.TokenVerifier
	SyncUser middleware.UserSync

	Upgrader          websocket.Upgrader
	Conn              realtime.ConnOptions
	HeartbeatInterval time.Duration

	// StreamKeepAlive is the comment interval of the unread stream.
	StreamKeepAlive time.Duration
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	Deps
}

// New constructs Handlers bound to d.
func New(d Deps) *Handlers {
	if d.HeartbeatInterval <= 0 {
		d.HeartbeatInterval = 30 * time.Second
	}
	if d.StreamKeepAlive <= 0 {
		d.StreamKeepAlive = 25 * time.Second
	}
	return &Handlers{Deps: d}
}

// principal is the verified caller set by middleware.Authenticate.
func principal(c *gin.Context) auth.Principal {
	return middleware.PrincipalFrom(c)
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Helpers
//

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// pageSizeParam reads page_size strictly: out of range values are a
// validation error rather than clamped.
func pageSizeParam(c *gin.Context) (int, error) {
	n := utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if n < 1 || n > maxPageSize {
		return 0, services.ErrInvalidPageSize
	}
	return n, nil
}

// limitParam reads the limit query param bounded to [1, max].
func limitParam(c *gin.Context, def, max int) int {
	n := utils.AtoiDefault(c.Query("limit"), def)
	if n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
