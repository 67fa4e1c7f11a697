// Package services – MembershipService
//
// This file implements MembershipService: joining public groups, adding and
// removing members, promotion and demotion, leaving, and custom permission
// composites.
//
// Every transition is a single conditional row update in the repository, so
// concurrent callers see a total order per (room, user): the first caller
// wins and the rest observe false. Cascades that touch the room as well as a
// membership run in one transaction.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-rooms/internal/auth"
	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/permission"
	"github.com/tbourn/go-chat-rooms/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MembershipService implements membership transitions.
type MembershipService struct {
	DB *gorm.DB
}

func (s *MembershipService) tracer() trace.Tracer {
	return otel.Tracer("services/MembershipService")
}

func (s *MembershipService) span(ctx context.Context, op, roomID, actorID string) (context.Context, trace.Span) {
	return s.tracer().Start(ctx, op,
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.String("user.id", actorID),
		),
	)
}

// JoinPublicGroup adds actor to a public group. The first member of a group
// with no membership history becomes its creator. It returns false when the
// room is not a public group or the actor is already a member.
func (s *MembershipService) JoinPublicGroup(ctx context.Context, actor auth.Principal, roomID string) (bool, error) {
	ctx, span := s.span(ctx, "JoinPublicGroup", roomID, actor.ID)
	defer span.End()

	var joined bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := lockedRoomFor(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if room.Kind != domain.RoomPublicGroup {
			return nil
		}
		if room.Closed {
			return ErrRoomClosed
		}
		rows, err := repo.CountMembershipRows(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if rows == 0 {
			joined, err = repo.UpsertMembership(ctx, tx, roomID, actor.ID, permission.Creator, false, true)
			return err
		}
		joined, err = repo.UpsertMembership(ctx, tx, roomID, actor.ID, permission.Member, false, false)
		return err
	})
	if err != nil {
		return false, err
	}
	span.SetAttributes(attribute.Bool("joined", joined))
	return joined, nil
}

// AddMember adds userID to roomID on behalf of actor.
//
// Tickets accept staff users only, added by a staff member of the ticket.
// Groups require add_member. Private chats never change membership.
func (s *MembershipService) AddMember(ctx context.Context, actor auth.Principal, roomID, userID string) (bool, error) {
	ctx, span := s.span(ctx, "AddMember", roomID, actor.ID)
	defer span.End()
	span.SetAttributes(attribute.String("target.id", userID))

	room, err := roomFor(ctx, s.DB, roomID)
	if err != nil {
		return false, err
	}
	m, err := memberOf(ctx, s.DB, roomID, actor.ID)
	if err != nil {
		return false, err
	}
	target, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, ErrUserNotFound
		}
		return false, err
	}

	switch {
	case room.Kind == domain.RoomTicket:
		if !actor.IsStaff || !target.IsStaff {
			return false, ErrStaffOnly
		}
	case room.Kind.IsGroup():
		if err := requireCapability(m, permission.AddMember); err != nil {
			return false, err
		}
	default:
		return false, ErrWrongRoomKind
	}
	if room.Closed {
		return false, ErrRoomClosed
	}

	ok, err := repo.UpsertMembership(ctx, s.DB, roomID, target.ID, permission.Member, false, false)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrAlreadyMember
	}
	return true, nil
}

// RemoveMember removes userID from a group. Removing the creator closes,
// locks and deletes the group. It returns false when userID is not an
// active member.
func (s *MembershipService) RemoveMember(ctx context.Context, actor auth.Principal, roomID, userID string) (bool, error) {
	ctx, span := s.span(ctx, "RemoveMember", roomID, actor.ID)
	defer span.End()
	span.SetAttributes(attribute.String("target.id", userID))

	var removed bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := lockedRoomFor(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if err := requireKind(room, domain.RoomPublicGroup, domain.RoomPrivateGroup); err != nil {
			return err
		}
		m, err := memberOf(ctx, tx, roomID, actor.ID)
		if err != nil {
			return err
		}
		if err := requireCapability(m, permission.RemoveMember); err != nil {
			return err
		}
		target, err := repo.GetMembership(ctx, tx, roomID, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if target.IsCreator {
			removed, err = repo.CloseLockDelete(ctx, tx, roomID)
			return err
		}
		removed, err = repo.SoftDeleteMembership(ctx, tx, roomID, userID)
		return err
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// Promote makes userID an admin of a group. Requires update_group.
func (s *MembershipService) Promote(ctx context.Context, actor auth.Principal, roomID, userID string) (bool, error) {
	ctx, span := s.span(ctx, "Promote", roomID, actor.ID)
	defer span.End()
	return s.setAdmin(ctx, actor, roomID, userID, true)
}

// Demote turns an admin of a group back into a member. Requires
// update_group.
func (s *MembershipService) Demote(ctx context.Context, actor auth.Principal, roomID, userID string) (bool, error) {
	ctx, span := s.span(ctx, "Demote", roomID, actor.ID)
	defer span.End()
	return s.setAdmin(ctx, actor, roomID, userID, false)
}

func (s *MembershipService) setAdmin(ctx context.Context, actor auth.Principal, roomID, userID string, admin bool) (bool, error) {
	room, err := roomFor(ctx, s.DB, roomID)
	if err != nil {
		return false, err
	}
	if err := requireKind(room, domain.RoomPublicGroup, domain.RoomPrivateGroup); err != nil {
		return false, err
	}
	m, err := memberOf(ctx, s.DB, roomID, actor.ID)
	if err != nil {
		return false, err
	}
	if err := requireCapability(m, permission.UpdateGroup); err != nil {
		return false, err
	}
	return repo.SetAdmin(ctx, s.DB, roomID, userID, admin)
}

// Leave removes actor from a group or a ticket. A creator leaving closes,
// locks and deletes the room. The last member leaving closes it. Private
// chats cannot be left; they are blocked instead.
func (s *MembershipService) Leave(ctx context.Context, actor auth.Principal, roomID string) (bool, error) {
	ctx, span := s.span(ctx, "Leave", roomID, actor.ID)
	defer span.End()

	var left bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := lockedRoomFor(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if err := requireKind(room, domain.RoomPublicGroup, domain.RoomPrivateGroup, domain.RoomTicket); err != nil {
			return err
		}
		m, err := memberOf(ctx, tx, roomID, actor.ID)
		if err != nil {
			return err
		}
		if m.IsCreator {
			left, err = repo.CloseLockDelete(ctx, tx, roomID)
			return err
		}
		left, err = repo.SoftDeleteMembership(ctx, tx, roomID, actor.ID)
		if err != nil || !left {
			return err
		}
		remaining, err := repo.CountActiveMembers(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			_, err = repo.CloseRoom(ctx, tx, roomID, false)
		}
		return err
	})
	if err != nil {
		return false, err
	}
	return left, nil
}

// SetPermissions stores a custom composite for userID. Only the creator may
// do this, and never on themselves.
func (s *MembershipService) SetPermissions(ctx context.Context, actor auth.Principal, roomID, userID string, caps []permission.Capability) (permission.Set, error) {
	ctx, span := s.span(ctx, "SetPermissions", roomID, actor.ID)
	defer span.End()
	span.SetAttributes(
		attribute.String("target.id", userID),
		attribute.Int("capabilities", len(caps)),
	)

	if _, err := roomFor(ctx, s.DB, roomID); err != nil {
		return 0, err
	}
	m, err := memberOf(ctx, s.DB, roomID, actor.ID)
	if err != nil {
		return 0, err
	}
	if !m.IsCreator || userID == actor.ID {
		return 0, ErrCreatorOnly
	}
	set := permission.Encode(caps...)
	ok, err := repo.SetPermission(ctx, s.DB, roomID, userID, set)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotMember
	}
	return set, nil
}

// Permissions returns actor's membership in roomID, including the
// composite it holds.
func (s *MembershipService) Permissions(ctx context.Context, actor auth.Principal, roomID string) (*domain.Membership, error) {
	ctx, span := s.span(ctx, "Permissions", roomID, actor.ID)
	defer span.End()

	if _, err := roomFor(ctx, s.DB, roomID); err != nil {
		return nil, err
	}
	return memberOf(ctx, s.DB, roomID, actor.ID)
}
