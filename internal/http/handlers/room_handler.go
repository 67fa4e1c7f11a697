// Room HTTP handlers.
//
// This file exposes REST endpoints for rooms:
//   - GET    /rooms                     (list, paginated, ETag support)
//   - POST   /rooms/tickets             (open a support ticket)
//   - POST   /rooms/private             (get or create a private chat)
//   - POST   /rooms/groups              (create a group)
//   - GET    /rooms/top, /rooms/search  (public group discovery)
//   - GET    /rooms/{id}                (detail with member preview)
//   - PATCH  /rooms/{id}/ticket, /rooms/{id}/group
//   - POST   /rooms/{id}/close|lock|unlock|open|staff
package handlers

import (
	"fmt"
	"net/http"
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

// CreateTicketRequest is the JSON payload for opening a ticket.
type CreateTicketRequest struct {
	// Name is the ticket subject (1–32 chars).
	Name string `json:"name" example:"Refund for order 1234"`
	// Priority is LOW, MEDIUM or HIGH; empty means LOW.
	Priority domain.Priority `json:"priority" example:"MEDIUM"`
}

// CreatePrivateChatRequest names the contact of a private chat.
type CreatePrivateChatRequest struct {
	ContactID string `json:"contact" binding:"required" example:"user-42"`
}

// CreateGroupRequest is the JSON payload for creating a group.
type CreateGroupRequest struct {
	Name    string          `json:"name" example:"Gophers"`
	Type    domain.RoomKind `json:"type" example:"PUBLIC_GROUPE"`
	Members []string        `json:"members"`
	Photo   *string         `json:"photo"`
}

// UpdateTicketRequest lists the mutable ticket fields.
type UpdateTicketRequest struct {
	Name     *string          `json:"name"`
	Priority *domain.Priority `json:"priority"`
}

// UpdateGroupRequest lists the mutable group fields.
type UpdateGroupRequest struct {
	Name  *string `json:"name"`
	Photo *string `json:"photo"`
}

// AssignStaffRequest names the staff user taking a ticket. An empty
// username picks the least loaded staff user.
type AssignStaffRequest struct {
	Username string `json:"username" example:"support-anna"`
}

// RoomResponse is a room with a member preview.
type RoomResponse struct {
	Room        domain.Room         `json:"room"`
	Members     []domain.MemberView `json:"members"`
	MemberCount int                 `json:"member_count"`
	Creator     *domain.MemberView  `json:"creator,omitempty"`
	Online      int                 `json:"online"`
}

// ListRoomsResponse wraps a page of rooms and pagination information.
type ListRoomsResponse struct {
	Rooms      []domain.Room `json:"rooms"`
	Pagination Pagination    `json:"pagination"`
}

// RoomsResponse is an unpaginated room list.
type RoomsResponse struct {
	Rooms []domain.Room `json:"rooms"`
}

// ChangedResponse reports whether a transition changed anything.
type ChangedResponse struct {
	Changed bool `json:"changed"`
}

//
// Handlers
//

// ListRooms godoc
// @ID          listRooms
// @Summary     List my rooms (paginated)
// @Description Returns a page of the caller's live rooms, most recently updated first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Rooms
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListRoomsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /rooms [get]
func (h *Handlers) ListRooms(c *gin.Context) {
	ctx := c.Request.Context()
	p := principal(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.Rooms.(*services.RoomService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.RoomsStats(ctx, db, p.ID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"rooms:%s:%d:%d:%d:%d"`, p.ID, count, ts, page, pageSize)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.Rooms.ListForUser(ctx, p, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListRoomsResponse{Rooms: items, Pagination: newPagination(page, pageSize, total)})
}

// CreateTicket godoc
// @ID          createTicket
// @Summary     Open a support ticket
// @Description Creates a ticket owned by the caller and routes it to the least loaded staff user.
// @Tags        Rooms
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.CreateTicketRequest  true  "Ticket"
// @Success     201  {object} domain.Room
// @Failure     400  {object} handlers.ErrorResponse
// @Failure     503  {object} handlers.ErrorResponse "No staff available"
// @Router      /rooms/tickets [post]
func (h *Handlers) CreateTicket(c *gin.Context) {
	var req CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	room, err := h.Rooms.CreateTicket(c.Request.Context(), principal(c), req.Name, req.Priority)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, room)
}

// CreatePrivateChat godoc
// @ID          createPrivateChat
// @Summary     Get or create a private chat
// @Description Returns the private chat between the caller and contact, creating it on first use (201) and returning it afterwards (200).
// @Tags        Rooms
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.CreatePrivateChatRequest  true  "Contact"
// @Success     200  {object} domain.Room
// @Success     201  {object} domain.Room
// @Failure     403  {object} handlers.ErrorResponse "Self chat"
// @Failure     404  {object} handlers.ErrorResponse "Unknown contact"
// @Router      /rooms/private [post]
func (h *Handlers) CreatePrivateChat(c *gin.Context) {
	var req CreatePrivateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ContactID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "contact required")
		return
	}
	room, created, err := h.Rooms.GetOrCreatePrivateChat(c.Request.Context(), principal(c), strings.TrimSpace(req.ContactID))
	if err != nil {
		failErr(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ok(c, status, room)
}

// CreateGroup godoc
// @ID          createGroup
// @Summary     Create a group
// @Tags        Rooms
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.CreateGroupRequest  true  "Group"
// @Success     201  {object} domain.Room
// @Failure     400  {object} handlers.ErrorResponse
// @Router      /rooms/groups [post]
func (h *Handlers) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	room, err := h.Rooms.CreateGroup(c.Request.Context(), principal(c), services.GroupInput{
		Name:      req.Name,
		Kind:      req.Type,
		MemberIDs: req.Members,
		Photo:     req.Photo,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, room)
}

// TopGroups godoc
// @ID          topGroups
// @Summary     Most active public groups
// @Tags        Rooms
// @Produce     json
// @Security    BearerAuth
// @Param       limit  query  int  false  "Max rooms"  minimum(1) maximum(50) default(10)
// @Success     200  {object} handlers.RoomsResponse
// @Router      /rooms/top [get]
func (h *Handlers) TopGroups(c *gin.Context) {
	rooms, err := h.Rooms.TopPublicGroups(c.Request.Context(), limitParam(c, 10, 50))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, RoomsResponse{Rooms: rooms})
}

// SearchGroups godoc
// @ID          searchGroups
// @Summary     Search public groups by name
// @Tags        Rooms
// @Produce     json
// @Security    BearerAuth
// @Param       q      query  string  true   "Free text query"
// @Param       limit  query  int     false  "Max rooms"  minimum(1) maximum(50) default(20)
// @Success     200  {object} handlers.RoomsResponse
// @Failure     400  {object} handlers.ErrorResponse
// @Router      /rooms/search [get]
func (h *Handlers) SearchGroups(c *gin.Context) {
	rooms, err := h.Rooms.SearchPublicGroups(c.Request.Context(), c.Query("q"), limitParam(c, 20, 50))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, RoomsResponse{Rooms: rooms})
}

// GetRoom godoc
// @ID          getRoom
// @Summary     Room detail
// @Description Returns the room with a member preview. Public groups are visible to everyone; other rooms only to members.
// @Tags        Rooms
// @Produce     json
// @Security    BearerAuth
// @Param       room_id  path  string  true  "Room ID"  format(uuid)
// @Success     200  {object} handlers.RoomResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id} [get]
func (h *Handlers) GetRoom(c *gin.Context) {
	ctx := c.Request.Context()
	v, err := h.Rooms.Get(ctx, principal(c), c.Param("room_id"))
	if err != nil {
		failErr(c, err)
		return
	}
	members, err := v.SomeMembers(ctx)
	if err != nil {
		failErr(c, err)
		return
	}
	count, err := v.CountMembers(ctx)
	if err != nil {
		failErr(c, err)
		return
	}
	creator, err := v.Creator(ctx)
	if err != nil {
		failErr(c, err)
		return
	}
	resp := RoomResponse{Room: v.Room, Members: members, MemberCount: count, Creator: creator}
	if h.Presence != nil {
		if n, err := h.Presence.Count(ctx, v.Room.ID); err == nil {
			resp.Online = n
		} else {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("presence count failed")
		}
	}
	ok(c, http.StatusOK, resp)
}

// UpdateTicket godoc
// @ID          updateTicket
// @Summary     Rename or reprioritize a ticket
// @Tags        Rooms
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       room_id  path  string                         true  "Room ID"
// @Param       body     body  handlers.UpdateTicketRequest   true  "Fields"
// @Success     200  {object} domain.Room
// @Failure     400  {object} handlers.ErrorResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/ticket [patch]
func (h *Handlers) UpdateTicket(c *gin.Context) {
	var req UpdateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	room, err := h.Rooms.UpdateTicket(c.Request.Context(), principal(c), c.Param("room_id"), services.TicketUpdate{
		Name:     req.Name,
		Priority: req.Priority,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, room)
}

// UpdateGroup godoc
// @ID          updateGroup
// @Summary     Rename a group or change its photo
// @Tags        Rooms
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       room_id  path  string                       true  "Room ID"
// @Param       body     body  handlers.UpdateGroupRequest  true  "Fields"
// @Success     200  {object} domain.Room
// @Failure     400  {object} handlers.ErrorResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/group [patch]
func (h *Handlers) UpdateGroup(c *gin.Context) {
	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	room, err := h.Rooms.UpdateGroup(c.Request.Context(), principal(c), c.Param("room_id"), services.GroupUpdate{
		Name:  req.Name,
		Photo: req.Photo,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, room)
}

// CloseRoom godoc
// @ID          closeRoom
// @Summary     Close a ticket or a group
// @Description Tickets are closed by their owner or staff; groups by members holding close_group. A closed group is also locked and hidden.
// @Tags        Rooms
// @Produce     json
// @Security    BearerAuth
// @Param       room_id  path  string  true  "Room ID"
// @Success     200  {object} handlers.ChangedResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/close [post]
func (h *Handlers) CloseRoom(c *gin.Context) {
	h.transition(c, func(kind domain.RoomKind) (bool, error) {
		ctx, p, id := c.Request.Context(), principal(c), c.Param("room_id")
		switch {
		case kind == domain.RoomTicket:
			return h.Rooms.CloseTicket(ctx, p, id)
		case kind.IsGroup():
			return h.Rooms.CloseGroup(ctx, p, id)
		}
		return false, services.ErrWrongRoomKind
	})
}

// LockRoom godoc
// @ID          lockRoom
// @Summary     Lock a group or block a private chat
// @Tags        Rooms
// @Produce     json
// @Security    BearerAuth
// @Param       room_id  path  string  true  "Room ID"
// @Success     200  {object} handlers.ChangedResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/lock [post]
func (h *Handlers) LockRoom(c *gin.Context) { h.setLocked(c, true) }

// UnlockRoom godoc
// @ID          unlockRoom
// @Summary     Unlock a group or unblock a private chat
// @Tags        Rooms
// @Produce     json
// @Security    BearerAuth
// @Param       room_id  path  string  true  "Room ID"
// @Success     200  {object} handlers.ChangedResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/unlock [post]
func (h *Handlers) UnlockRoom(c *gin.Context) { h.setLocked(c, false) }

func (h *Handlers) setLocked(c *gin.Context, locked bool) {
	h.transition(c, func(kind domain.RoomKind) (bool, error) {
		ctx, p, id := c.Request.Context(), principal(c), c.Param("room_id")
		switch {
		case kind == domain.RoomPrivateChat:
			return h.Rooms.SetBlocked(ctx, p, id, locked)
		case kind.IsGroup():
			return h.Rooms.SetGroupLocked(ctx, p, id, locked)
		}
		return false, services.ErrWrongRoomKind
	})
}

// OpenRoom godoc
// @ID          openRoom
// @Summary     Reopen a room (staff)
// @Tags        Rooms
// @Produce     json
// @Security    BearerAuth
// @Param       room_id  path  string  true  "Room ID"
// @Success     200  {object} handlers.ChangedResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/open [post]
func (h *Handlers) OpenRoom(c *gin.Context) {
	changed, err := h.Rooms.Open(c.Request.Context(), principal(c), c.Param("room_id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ChangedResponse{Changed: changed})
}

// AssignStaff godoc
// @ID          assignStaff
// @Summary     Hand a ticket to another staff user
// @Tags        Rooms
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       room_id  path  string                       true  "Room ID"
// @Param       body     body  handlers.AssignStaffRequest  false "Target staff"
// @Success     200  {object} domain.User
// @Failure     403  {object} handlers.ErrorResponse
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/staff [post]
func (h *Handlers) AssignStaff(c *gin.Context) {
	var req AssignStaffRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	u, err := h.Rooms.AssignStaff(c.Request.Context(), principal(c), c.Param("room_id"), strings.TrimSpace(req.Username))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// transition resolves the room kind and runs fn, which picks the
// kind-specific service call.
func (h *Handlers) transition(c *gin.Context, fn func(domain.RoomKind) (bool, error)) {
	v, err := h.Rooms.View(c.Request.Context(), c.Param("room_id"))
	if err != nil {
		failErr(c, err)
		return
	}
	changed, err := fn(v.Room.Kind)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ChangedResponse{Changed: changed})
}
