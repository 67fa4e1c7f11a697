// Membership HTTP handlers.
//
//   - GET    /rooms/{id}/members
//   - POST   /rooms/{id}/members                 (add)
//   - DELETE /rooms/{id}/members/{user_id}       (remove)
//   - POST   /rooms/{id}/members/{user_id}/promote|demote
//   - PUT    /rooms/{id}/members/{user_id}/permissions
//   - GET    /rooms/{id}/permissions             (caller's own)
//   - POST   /rooms/{id}/join, /rooms/{id}/leave
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/permission"
)

// AddMemberRequest names the user to add.
type AddMemberRequest struct {
	UserID string `json:"user" binding:"required" example:"user-42"`
}

// MembersResponse lists a room's active members.
type MembersResponse struct {
	Members []domain.MemberView `json:"members"`
}

// PermissionsResponse is a membership's role and capabilities.
type PermissionsResponse struct {
	Role             domain.Role      `json:"role,omitempty"`
	ActionPermission permission.Set   `json:"action_permission"`
	Permissions      permission.Flags `json:"permissions"`
}

// ListMembers godoc
// @ID          listMembers
// @Summary     List room members
// @Tags        Members
// @Produce     json
// @Security    BearerAuth
// @Param       room_id  path  string  true  "Room ID"
// @Success     200  {object} handlers.MembersResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/members [get]
func (h *Handlers) ListMembers(c *gin.Context) {
	ctx := c.Request.Context()
	v, err := h.Rooms.Get(ctx, principal(c), c.Param("room_id"))
	if err != nil {
		failErr(c, err)
		return
	}
	members, err := v.AllMembers(ctx)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MembersResponse{Members: members})
}

// AddMember godoc
// @ID          addMember
// @Summary     Add a member to a group
// @Tags        Members
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       room_id  path  string                     true  "Room ID"
// @Param       body     body  handlers.AddMemberRequest  true  "User"
// @Success     200  {object} handlers.ChangedResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/members [post]
func (h *Handlers) AddMember(c *gin.Context) {
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user required")
		return
	}
	changed, err := h.Members.AddMember(c.Request.Context(), principal(c), c.Param("room_id"), strings.TrimSpace(req.UserID))
	h.changed(c, changed, err)
}

// RemoveMember godoc
// @ID          removeMember
// @Summary     Remove a member from a group
// @Tags        Members
// @Produce     json
// @Security    BearerAuth
// @Param       room_id  path  string  true  "Room ID"
// @Param       user_id  path  string  true  "User ID"
// @Success     200  {object} handlers.ChangedResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/members/{user_id} [delete]
func (h *Handlers) RemoveMember(c *gin.Context) {
	changed, err := h.Members.RemoveMember(c.Request.Context(), principal(c), c.Param("room_id"), c.Param("user_id"))
	h.changed(c, changed, err)
}

// PromoteMember godoc
// @ID          promoteMember
// @Summary     Make a member admin
// @Tags        Members
// @Produce     json
// @Security    BearerAuth
// @Param       room_id  path  string  true  "Room ID"
// @Param       user_id  path  string  true  "User ID"
// @Success     200  {object} handlers.ChangedResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/members/{user_id}/promote [post]
func (h *Handlers) PromoteMember(c *gin.Context) {
	changed, err := h.Members.Promote(c.Request.Context(), principal(c), c.Param("room_id"), c.Param("user_id"))
	h.changed(c, changed, err)
}

// DemoteMember godoc
// @ID          demoteMember
// @Summary     Revoke admin from a member
// @Tags        Members
// @Produce     json
// @Security    BearerAuth
// @Param       room_id  path  string  true  "Room ID"
// @Param       user_id  path  string  true  "User ID"
// @Success     200  {object} handlers.ChangedResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/members/{user_id}/demote [post]
func (h *Handlers) DemoteMember(c *gin.Context) {
	changed, err := h.Members.Demote(c.Request.Context(), principal(c), c.Param("room_id"), c.Param("user_id"))
	h.changed(c, changed, err)
}

// SetMemberPermissions godoc
// @ID          setMemberPermissions
// @Summary     Replace a member's capabilities
// @Tags        Members
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       room_id  path  string            true  "Room ID"
// @Param       user_id  path  string            true  "User ID"
// @Param       body     body  permission.Flags  true  "Capabilities"
// @Success     200  {object} handlers.PermissionsResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/members/{user_id}/permissions [put]
func (h *Handlers) SetMemberPermissions(c *gin.Context) {
	var flags permission.Flags
	if err := c.ShouldBindJSON(&flags); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	set, err := h.Members.SetPermissions(c.Request.Context(), principal(c), c.Param("room_id"), c.Param("user_id"),
		permission.FromFlags(flags).Capabilities())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, PermissionsResponse{ActionPermission: set, Permissions: permission.ToFlags(set)})
}

// MyPermissions godoc
// @ID          myPermissions
// @Summary     The caller's role and capabilities in a room
// @Tags        Members
// @Produce     json
// @Security    BearerAuth
// @Param       room_id  path  string  true  "Room ID"
// @Success     200  {object} handlers.PermissionsResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/permissions [get]
func (h *Handlers) MyPermissions(c *gin.Context) {
	m, err := h.Members.Permissions(c.Request.Context(), principal(c), c.Param("room_id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, PermissionsResponse{
		Role:             m.Role(),
		ActionPermission: m.ActionPermission,
		Permissions:      permission.ToFlags(m.ActionPermission),
	})
}

// JoinGroup godoc
// @ID          joinGroup
// @Summary     Join a public group
// @Tags        Members
// @Produce     json
// @Security    BearerAuth
// @Param       room_id  path  string  true  "Room ID"
// @Success     200  {object} handlers.ChangedResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/join [post]
func (h *Handlers) JoinGroup(c *gin.Context) {
	changed, err := h.Members.JoinPublicGroup(c.Request.Context(), principal(c), c.Param("room_id"))
	h.changed(c, changed, err)
}

// LeaveRoom godoc
// @ID          leaveRoom
// @Summary     Leave a group or a ticket
// @Tags        Members
// @Produce     json
// @Security    BearerAuth
// @Param       room_id  path  string  true  "Room ID"
// @Success     200  {object} handlers.ChangedResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Router      /rooms/{room_id}/leave [post]
func (h *Handlers) LeaveRoom(c *gin.Context) {
	changed, err := h.Members.Leave(c.Request.Context(), principal(c), c.Param("room_id"))
	h.changed(c, changed, err)
}

func (h *Handlers) changed(c *gin.Context, changed bool, err error) {
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ChangedResponse{Changed: changed})
}
