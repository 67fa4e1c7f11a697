package services

import (
	"context"
	"slices"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/repo"
)

// someMembersCap bounds the member preview of groups.
const someMembersCap = 10

// RoomView is a request-scoped snapshot of a room and its members. The
// member list is loaded on first use and reused for the lifetime of the
// value, so one request never queries it twice. A RoomView is not safe for
// concurrent use and must not outlive the request that built it.
type RoomView struct {
	Room domain.Room

	db      *gorm.DB
	members []domain.MemberView
	loaded  bool
}

func newRoomView(db *gorm.DB, room domain.Room) *RoomView {
	return &RoomView{Room: room, db: db}
}

// AllMembers returns the active members in join order, each annotated with
// the role and composite held in this room.
func (v *RoomView) AllMembers(ctx context.Context) ([]domain.MemberView, error) {
	if v.loaded {
		return slices.Clone(v.members), nil
	}
	rows, err := repo.ListMemberRows(ctx, v.db, v.Room.ID, 0)
	if err != nil {
		return nil, err
	}
	out := make([]domain.MemberView, 0, len(rows))
	for _, r := range rows {
		role := domain.Membership{IsCreator: r.IsCreator, IsAdmin: r.IsAdmin}.Role()
		out = append(out, domain.MemberView{
			MembershipID: r.MembershipID,
			User:         domain.User{ID: r.UserID, Username: r.Username, IsStaff: r.IsStaff, Photo: r.Photo},
			Role:         role,
			Permission:   r.ActionPermission,
			JoinedAt:     r.JoinedAt,
		})
	}
	v.members, v.loaded = out, true
	return slices.Clone(out), nil
}

// Admins returns members whose role is admin.
func (v *RoomView) Admins(ctx context.Context) ([]domain.MemberView, error) {
	all, err := v.AllMembers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.MemberView, 0)
	for _, m := range all {
		if m.Role == domain.RoleAdmin {
			out = append(out, m)
		}
	}
	return out, nil
}

// Creator returns the creator, or nil when the room has none yet.
func (v *RoomView) Creator(ctx context.Context) (*domain.MemberView, error) {
	all, err := v.AllMembers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Role == domain.RoleCreator {
			return &all[i], nil
		}
	}
	return nil, nil
}

// SomeMembers is the member preview: everyone for tickets and private
// chats, the first few for groups.
func (v *RoomView) SomeMembers(ctx context.Context) ([]domain.MemberView, error) {
	all, err := v.AllMembers(ctx)
	if err != nil {
		return nil, err
	}
	if v.Room.Kind.IsGroup() && len(all) > someMembersCap {
		all = all[:someMembersCap]
	}
	return all, nil
}

// Member returns userID's view, or nil when userID is not an active member.
func (v *RoomView) Member(ctx context.Context, userID string) (*domain.MemberView, error) {
	all, err := v.AllMembers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].User.ID == userID {
			return &all[i], nil
		}
	}
	return nil, nil
}

// HasMember reports whether userID is an active member.
func (v *RoomView) HasMember(ctx context.Context, userID string) (bool, error) {
	m, err := v.Member(ctx, userID)
	return m != nil, err
}

// CountMembers returns the number of active members.
func (v *RoomView) CountMembers(ctx context.Context) (int, error) {
	all, err := v.AllMembers(ctx)
	return len(all), err
}

// CountUntilLastSeen counts the messages strictly before userID's first
// unseen message. found is false when nothing is unseen.
func (v *RoomView) CountUntilLastSeen(ctx context.Context, userID string) (count int64, found bool, err error) {
	return repo.CountBeforeFirstUnseen(ctx, v.db, v.Room.ID, userID)
}
