// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Membership model.
//
// Every mutation addresses a single (room_id, user_id) row and is one SQL
// statement whose WHERE clause carries the precondition. Concurrent callers
// therefore observe a total order: the first transition wins and the rest
// see zero rows affected, reported as false.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/permission"
)

// MemberRow is an active membership joined to its user.
type MemberRow struct {
	MembershipID     string
	UserID           string
	Username         string
	IsStaff          bool
	Photo            *string
	IsCreator        bool
	IsAdmin          bool
	ActionPermission permission.Set
	JoinedAt         time.Time
}

// UpsertMembership inserts the (roomID, userID) membership or reactivates a
// soft-deleted one, resetting its role flag and composite. It returns false
// when an active membership already exists.
func UpsertMembership(ctx context.Context, db *gorm.DB, roomID, userID string, set permission.Set, isAdmin, isCreator bool) (bool, error) {
	now := time.Now().UTC()
	m := &domain.Membership{
		ID:               uuid.NewString(),
		RoomID:           roomID,
		UserID:           userID,
		IsCreator:        isCreator,
		IsAdmin:          isAdmin,
		ActionPermission: set,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	res := db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"deleted":           false,
				"is_admin":          isAdmin,
				"action_permission": set,
				"updated_at":        now,
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Table: "memberships", Name: "deleted"}, Value: true},
			}},
		}).
		Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SoftDeleteMembership marks an active, non-creator membership deleted and
// strips its capabilities.
func SoftDeleteMembership(ctx context.Context, db *gorm.DB, roomID, userID string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Membership{}).
		Where("room_id = ? AND user_id = ? AND deleted = ? AND is_creator = ?", roomID, userID, false, false).
		Updates(map[string]any{
			"deleted":           true,
			"is_admin":          false,
			"action_permission": permission.NoPermission,
			"updated_at":        time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

// SetAdmin promotes (admin=true) or demotes an active, non-creator member
// and resets its composite to the matching preset. It returns false when
// the member is not in the opposite state.
func SetAdmin(ctx context.Context, db *gorm.DB, roomID, userID string, admin bool) (bool, error) {
	preset := permission.Member
	if admin {
		preset = permission.Admin
	}
	res := db.WithContext(ctx).
		Model(&domain.Membership{}).
		Where("room_id = ? AND user_id = ? AND deleted = ? AND is_creator = ? AND is_admin = ?",
			roomID, userID, false, false, !admin).
		Updates(map[string]any{
			"is_admin":          admin,
			"action_permission": preset,
			"updated_at":        time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

// SetPermission stores a custom composite on an active, non-creator member.
func SetPermission(ctx context.Context, db *gorm.DB, roomID, userID string, set permission.Set) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Membership{}).
		Where("room_id = ? AND user_id = ? AND deleted = ? AND is_creator = ?", roomID, userID, false, false).
		Updates(map[string]any{"action_permission": set, "updated_at": time.Now().UTC()})
	return res.RowsAffected > 0, res.Error
}

// GetMembership returns the active membership of userID in roomID.
func GetMembership(ctx context.Context, db *gorm.DB, roomID, userID string) (*domain.Membership, error) {
	var m domain.Membership
	err := db.WithContext(ctx).
		Where("room_id = ? AND user_id = ? AND deleted = ?", roomID, userID, false).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CountMembershipRows counts every membership row of the room, including
// soft-deleted ones.
func CountMembershipRows(ctx context.Context, db *gorm.DB, roomID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Membership{}).Where("room_id = ?", roomID).Count(&n).Error
	return n, err
}

// CountActiveMembers counts non-deleted memberships of the room.
func CountActiveMembers(ctx context.Context, db *gorm.DB, roomID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Membership{}).
		Where("room_id = ? AND deleted = ?", roomID, false).
		Count(&n).Error
	return n, err
}

// ListMemberRows returns active members in join order. limit <= 0 means all.
func ListMemberRows(ctx context.Context, db *gorm.DB, roomID string, limit int) ([]MemberRow, error) {
	q := db.WithContext(ctx).
		Table("memberships").
		Select(`memberships.id AS membership_id,
			memberships.user_id AS user_id,
			COALESCE(users.username, '') AS username,
			COALESCE(users.is_staff, ?) AS is_staff,
			users.photo AS photo,
			memberships.is_creator AS is_creator,
			memberships.is_admin AS is_admin,
			memberships.action_permission AS action_permission,
			memberships.created_at AS joined_at`, false).
		Joins("LEFT JOIN users ON users.id = memberships.user_id").
		Where("memberships.room_id = ? AND memberships.deleted = ?", roomID, false).
		Order("memberships.created_at ASC, memberships.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []MemberRow
	err := q.Scan(&out).Error
	return out, err
}

// ActiveMemberIDs returns the user ids of active members, sorted.
func ActiveMemberIDs(ctx context.Context, db *gorm.DB, roomID string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Membership{}).
		Where("room_id = ? AND deleted = ?", roomID, false).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// MemberIDsByUsername resolves usernames to the ids of active members of
// roomID. Unknown or non-member names are dropped.
func MemberIDsByUsername(ctx context.Context, db *gorm.DB, roomID string, usernames []string) ([]string, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Membership{}).
		Joins("JOIN users ON users.id = memberships.user_id").
		Where("memberships.room_id = ? AND memberships.deleted = ? AND users.username IN ?", roomID, false, usernames).
		Order("memberships.user_id ASC").
		Pluck("memberships.user_id", &ids).Error
	return ids, err
}

// StaffMemberIDs returns the ids of active staff members of roomID.
func StaffMemberIDs(ctx context.Context, db *gorm.DB, roomID string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Membership{}).
		Joins("JOIN users ON users.id = memberships.user_id").
		Where("memberships.room_id = ? AND memberships.deleted = ? AND users.is_staff = ?", roomID, false, true).
		Order("memberships.user_id ASC").
		Pluck("memberships.user_id", &ids).Error
	return ids, err
}
