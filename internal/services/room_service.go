// Package services – RoomService
//
// This file implements RoomService, the Room Engine. It owns room creation
// for the three room families, the lifecycle transitions (close, lock,
// unlock, open, block, unblock), ticket staff routing, and the read side:
// request-scoped room views, the caller's room list, top public groups and
// group search.
//
// Creation algorithms write the room and all of its memberships in one
// transaction:
//   - Ticket: the caller is the creator; the least-loaded staff user joins as
//     a member. The pick is an unlocked read, so concurrent creations may
//     skew the balance slightly.
//   - Private chat: get-or-create on a dedup key derived from both user ids;
//     the unique index decides races.
//   - Group: the caller is the creator; requested members join with the
//     member preset.
//
// Observability: all public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-rooms/internal/auth"
	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/permission"
	"github.com/tbourn/go-chat-rooms/internal/repo"
	"github.com/tbourn/go-chat-rooms/internal/search"
	"github.com/tbourn/go-chat-rooms/internal/utils"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RoomService implements room creation, lifecycle and listing.
type RoomService struct {
	DB *gorm.DB

	// SearchCandidates caps how many public groups are ranked per search.
	SearchCandidates int
}

// NewRoomService constructs a RoomService with default limits.
func NewRoomService(db *gorm.DB) *RoomService {
	return &RoomService{DB: db, SearchCandidates: 500}
}

// GroupInput describes a group to create.
type GroupInput struct {
	Name      string
	Kind      domain.RoomKind
	MemberIDs []string
	Photo     *string
}

// GroupUpdate lists the mutable group fields; nil fields are left alone.
type GroupUpdate struct {
	Name  *string
	Photo *string
}

// TicketUpdate lists the mutable ticket fields; nil fields are left alone.
type TicketUpdate struct {
	Name     *string
	Priority *domain.Priority
}

func (s *RoomService) tracer() trace.Tracer { return otel.Tracer("services/RoomService") }

// CreateTicket opens a support ticket for actor and routes it to the staff
// user with the fewest open tickets. An empty priority means LOW.
func (s *RoomService) CreateTicket(ctx context.Context, actor auth.Principal, name string, priority domain.Priority) (*domain.Room, error) {
	ctx, span := s.tracer().Start(ctx, "CreateTicket",
		trace.WithAttributes(attribute.String("user.id", actor.ID)),
	)
	defer span.End()

	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	if priority == "" {
		priority = domain.PriorityLow
	}
	if !priority.Valid() {
		return nil, ErrInvalidPriority
	}

	staff, err := repo.LeastLoadedStaff(ctx, s.DB, actor.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNoStaffAvailable
	}
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("staff.id", staff.ID))

	room := &domain.Room{Name: name, Kind: domain.RoomTicket, Priority: &priority}
	members := []domain.Membership{
		{UserID: actor.ID, IsCreator: true, ActionPermission: permission.Creator},
		{UserID: staff.ID, ActionPermission: permission.Member},
	}
	if err := repo.CreateRoom(ctx, s.DB, room, members); err != nil {
		return nil, err
	}
	return room, nil
}

// PrivateChatKey is the dedup key of the private chat between a and b. It
// does not depend on argument order.
func PrivateChatKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "private:" + a + ":" + b
}

// GetOrCreatePrivateChat returns the private chat between actor and
// contactID, creating it on first use. created reports whether this call
// inserted the room.
func (s *RoomService) GetOrCreatePrivateChat(ctx context.Context, actor auth.Principal, contactID string) (room *domain.Room, created bool, err error) {
	ctx, span := s.tracer().Start(ctx, "GetOrCreatePrivateChat",
		trace.WithAttributes(
			attribute.String("user.id", actor.ID),
			attribute.String("contact.id", contactID),
		),
	)
	defer span.End()

	if contactID == actor.ID {
		return nil, false, ErrSelfChat
	}
	contact, err := repo.GetUser(ctx, s.DB, contactID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, false, ErrUserNotFound
	}
	if err != nil {
		return nil, false, err
	}

	key := PrivateChatKey(actor.ID, contactID)
	name := clipName(contact.Username)
	if name == "" {
		name = clipName(contact.ID)
	}
	candidate := &domain.Room{Name: name, Kind: domain.RoomPrivateChat, DedupKey: &key}
	members := []domain.Membership{
		{UserID: actor.ID, IsCreator: true, ActionPermission: permission.Member},
		{UserID: contactID, ActionPermission: permission.Member},
	}
	room, created, err = repo.InsertPrivateChat(ctx, s.DB, candidate, members)
	if err != nil {
		return nil, false, err
	}
	span.SetAttributes(attribute.Bool("room.created", created))
	return room, created, nil
}

// CreateGroup creates a public or private group owned by actor. The actor
// and duplicates are dropped from MemberIDs; unknown ids fail the call.
func (s *RoomService) CreateGroup(ctx context.Context, actor auth.Principal, in GroupInput) (*domain.Room, error) {
	ctx, span := s.tracer().Start(ctx, "CreateGroup",
		trace.WithAttributes(
			attribute.String("user.id", actor.ID),
			attribute.String("room.kind", string(in.Kind)),
			attribute.Int("members.requested", len(in.MemberIDs)),
		),
	)
	defer span.End()

	if !in.Kind.IsGroup() {
		return nil, ErrInvalidKind
	}
	name, err := normalizeName(in.Name)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{actor.ID: {}}
	ids := make([]string, 0, len(in.MemberIDs))
	for _, id := range in.MemberIDs {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	users, err := repo.GetUsers(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	if len(users) != len(ids) {
		return nil, ErrUserNotFound
	}

	room := &domain.Room{Name: name, Kind: in.Kind, Photo: in.Photo}
	members := make([]domain.Membership, 0, len(ids)+1)
	members = append(members, domain.Membership{UserID: actor.ID, IsCreator: true, ActionPermission: permission.Creator})
	for _, id := range ids {
		members = append(members, domain.Membership{UserID: id, ActionPermission: permission.Member})
	}
	if err := repo.CreateRoom(ctx, s.DB, room, members); err != nil {
		return nil, err
	}
	return room, nil
}

// Get returns a request-scoped view of roomID. Public groups are visible to
// everyone; other rooms only to their members.
func (s *RoomService) Get(ctx context.Context, actor auth.Principal, roomID string) (*RoomView, error) {
	ctx, span := s.tracer().Start(ctx, "Get",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.String("user.id", actor.ID),
		),
	)
	defer span.End()

	room, err := roomFor(ctx, s.DB, roomID)
	if err != nil {
		return nil, err
	}
	v := newRoomView(s.DB, *room)
	if room.Kind == domain.RoomPublicGroup {
		return v, nil
	}
	ok, err := v.HasMember(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}
	return v, nil
}

// View returns a view of roomID without access checks. Callers that hold
// an authorized principal, such as the socket handshake, use it to reuse
// the member list.
func (s *RoomService) View(ctx context.Context, roomID string) (*RoomView, error) {
	room, err := roomFor(ctx, s.DB, roomID)
	if err != nil {
		return nil, err
	}
	return newRoomView(s.DB, *room), nil
}

// CloseTicket closes and locks a ticket. Only its creator may close it.
// changed is false when the ticket was already closed.
func (s *RoomService) CloseTicket(ctx context.Context, actor auth.Principal, roomID string) (changed bool, err error) {
	ctx, span := s.tracer().Start(ctx, "CloseTicket",
		trace.WithAttributes(attribute.String("room.id", roomID)),
	)
	defer span.End()

	room, m, err := s.authorize(ctx, actor, roomID, domain.RoomTicket)
	if err != nil {
		return false, err
	}
	if !m.IsCreator {
		return false, ErrCreatorOnly
	}
	if room.Closed {
		return false, ErrRoomClosed
	}
	return repo.CloseRoom(ctx, s.DB, roomID, true)
}

// UpdateTicket renames a ticket or changes its priority. Creator only;
// closed tickets are rejected.
func (s *RoomService) UpdateTicket(ctx context.Context, actor auth.Principal, roomID string, in TicketUpdate) (*domain.Room, error) {
	ctx, span := s.tracer().Start(ctx, "UpdateTicket",
		trace.WithAttributes(attribute.String("room.id", roomID)),
	)
	defer span.End()

	room, m, err := s.authorize(ctx, actor, roomID, domain.RoomTicket)
	if err != nil {
		return nil, err
	}
	if !m.IsCreator {
		return nil, ErrCreatorOnly
	}
	if room.Closed {
		return nil, ErrRoomClosed
	}
	fields := map[string]any{}
	if in.Name != nil {
		name, err := normalizeName(*in.Name)
		if err != nil {
			return nil, err
		}
		fields["name"] = name
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return nil, ErrInvalidPriority
		}
		fields["priority"] = *in.Priority
	}
	return s.update(ctx, roomID, fields)
}

// AssignStaff adds another staff user to a ticket. The actor must be a
// staff member of the ticket. An empty username picks the least-loaded
// staff user who is not on the ticket yet.
func (s *RoomService) AssignStaff(ctx context.Context, actor auth.Principal, roomID, username string) (*domain.User, error) {
	ctx, span := s.tracer().Start(ctx, "AssignStaff",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.String("user.id", actor.ID),
		),
	)
	defer span.End()

	if !actor.IsStaff {
		return nil, ErrStaffOnly
	}
	room, _, err := s.authorize(ctx, actor, roomID, domain.RoomTicket)
	if err != nil {
		return nil, err
	}
	if room.Closed {
		return nil, ErrRoomClosed
	}

	var staff *domain.User
	if username == "" {
		onTicket, err := repo.ActiveMemberIDs(ctx, s.DB, roomID)
		if err != nil {
			return nil, err
		}
		staff, err = repo.LeastLoadedStaff(ctx, s.DB, onTicket...)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNoStaffAvailable
		}
		if err != nil {
			return nil, err
		}
	} else {
		staff, err = repo.GetStaffByUsername(ctx, s.DB, username)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		if err != nil {
			return nil, err
		}
	}

	ok, err := repo.UpsertMembership(ctx, s.DB, roomID, staff.ID, permission.Member, false, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyMember
	}
	return staff, nil
}

// SetBlocked blocks or unblocks a private chat. Any member may do either.
func (s *RoomService) SetBlocked(ctx context.Context, actor auth.Principal, roomID string, blocked bool) (bool, error) {
	ctx, span := s.tracer().Start(ctx, "SetBlocked",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.Bool("blocked", blocked),
		),
	)
	defer span.End()

	if _, _, err := s.authorize(ctx, actor, roomID, domain.RoomPrivateChat); err != nil {
		return false, err
	}
	return repo.SetReadOnly(ctx, s.DB, roomID, blocked)
}

// CloseGroup closes a group. Requires close_group.
func (s *RoomService) CloseGroup(ctx context.Context, actor auth.Principal, roomID string) (bool, error) {
	ctx, span := s.tracer().Start(ctx, "CloseGroup",
		trace.WithAttributes(attribute.String("room.id", roomID)),
	)
	defer span.End()

	_, m, err := s.authorize(ctx, actor, roomID, domain.RoomPublicGroup, domain.RoomPrivateGroup)
	if err != nil {
		return false, err
	}
	if err := requireCapability(m, permission.CloseGroup); err != nil {
		return false, err
	}
	return repo.CloseRoom(ctx, s.DB, roomID, false)
}

// SetGroupLocked locks or unlocks a group. Requires lock_group. Closed
// groups are frozen and report false.
func (s *RoomService) SetGroupLocked(ctx context.Context, actor auth.Principal, roomID string, locked bool) (bool, error) {
	ctx, span := s.tracer().Start(ctx, "SetGroupLocked",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.Bool("locked", locked),
		),
	)
	defer span.End()

	_, m, err := s.authorize(ctx, actor, roomID, domain.RoomPublicGroup, domain.RoomPrivateGroup)
	if err != nil {
		return false, err
	}
	if err := requireCapability(m, permission.LockGroup); err != nil {
		return false, err
	}
	return repo.SetReadOnly(ctx, s.DB, roomID, locked)
}

// UpdateGroup renames a group or changes its photo. Requires update_group.
func (s *RoomService) UpdateGroup(ctx context.Context, actor auth.Principal, roomID string, in GroupUpdate) (*domain.Room, error) {
	ctx, span := s.tracer().Start(ctx, "UpdateGroup",
		trace.WithAttributes(attribute.String("room.id", roomID)),
	)
	defer span.End()

	room, m, err := s.authorize(ctx, actor, roomID, domain.RoomPublicGroup, domain.RoomPrivateGroup)
	if err != nil {
		return nil, err
	}
	if err := requireCapability(m, permission.UpdateGroup); err != nil {
		return nil, err
	}
	if room.Frozen() {
		return nil, ErrRoomClosed
	}
	fields := map[string]any{}
	if in.Name != nil {
		name, err := normalizeName(*in.Name)
		if err != nil {
			return nil, err
		}
		fields["name"] = name
	}
	if in.Photo != nil {
		fields["photo"] = *in.Photo
	}
	return s.update(ctx, roomID, fields)
}

// Open clears closed and read-only on a room that is not frozen. Creator
// only; closed tickets and groups stay closed and report false.
func (s *RoomService) Open(ctx context.Context, actor auth.Principal, roomID string) (bool, error) {
	ctx, span := s.tracer().Start(ctx, "Open",
		trace.WithAttributes(attribute.String("room.id", roomID)),
	)
	defer span.End()

	_, m, err := s.authorize(ctx, actor, roomID)
	if err != nil {
		return false, err
	}
	if !m.IsCreator {
		return false, ErrCreatorOnly
	}
	return repo.OpenRoom(ctx, s.DB, roomID)
}

// ListForUser returns a page of actor's rooms, most recently updated first.
// It applies defaults for invalid page/pageSize and returns the total count.
func (s *RoomService) ListForUser(ctx context.Context, actor auth.Principal, page, pageSize int) ([]domain.Room, int64, error) {
	ctx, span := s.tracer().Start(ctx, "ListForUser",
		trace.WithAttributes(
			attribute.String("user.id", actor.ID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	page, pageSize = utils.Normalize(page, pageSize)
	offset := utils.Offset(page, pageSize)

	total, err := repo.CountRoomsForUser(ctx, s.DB, actor.ID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Room{}, 0, nil
	}
	items, err := repo.ListRoomsForUserPage(ctx, s.DB, actor.ID, offset, pageSize)
	return items, total, err
}

// TopPublicGroups returns open public groups with the most members.
func (s *RoomService) TopPublicGroups(ctx context.Context, limit int) ([]domain.Room, error) {
	ctx, span := s.tracer().Start(ctx, "TopPublicGroups",
		trace.WithAttributes(attribute.Int("limit", limit)),
	)
	defer span.End()
	return repo.TopPublicGroups(ctx, s.DB, limit)
}

// SearchPublicGroups ranks open public groups by name similarity to q.
func (s *RoomService) SearchPublicGroups(ctx context.Context, q string, limit int) ([]domain.Room, error) {
	ctx, span := s.tracer().Start(ctx, "SearchPublicGroups",
		trace.WithAttributes(
			attribute.String("query", q),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if strings.TrimSpace(q) == "" {
		return nil, ErrInvalidSearchQuery
	}
	if limit <= 0 {
		limit = 10
	}
	rooms, err := repo.ListPublicGroups(ctx, s.DB, s.SearchCandidates)
	if err != nil {
		return nil, err
	}
	docs := make([]search.Document, len(rooms))
	byID := make(map[string]domain.Room, len(rooms))
	for i, r := range rooms {
		docs[i] = search.Document{ID: r.ID, Text: r.Name}
		byID[r.ID] = r
	}
	hits := search.New().Rank(q, docs, limit)
	out := make([]domain.Room, 0, len(hits))
	for _, h := range hits {
		out = append(out, byID[h.ID])
	}
	span.SetAttributes(attribute.Int("results", len(out)))
	return out, nil
}

// authorize loads roomID and the actor's active membership, checking the
// room kind when kinds is non-empty.
func (s *RoomService) authorize(ctx context.Context, actor auth.Principal, roomID string, kinds ...domain.RoomKind) (*domain.Room, *domain.Membership, error) {
	room, err := roomFor(ctx, s.DB, roomID)
	if err != nil {
		return nil, nil, err
	}
	if len(kinds) > 0 {
		if err := requireKind(room, kinds...); err != nil {
			return nil, nil, err
		}
	}
	m, err := memberOf(ctx, s.DB, roomID, actor.ID)
	if err != nil {
		return nil, nil, err
	}
	return room, m, nil
}

// update applies fields and returns the fresh row.
func (s *RoomService) update(ctx context.Context, roomID string, fields map[string]any) (*domain.Room, error) {
	if len(fields) > 0 {
		if _, err := repo.UpdateRoom(ctx, s.DB, roomID, fields); err != nil {
			return nil, err
		}
	}
	return roomFor(ctx, s.DB, roomID)
}
