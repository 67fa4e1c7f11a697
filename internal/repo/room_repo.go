// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Room model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no authorization, only
// persistence and query composition.
//
// Error semantics:
//   - When a room is absent or soft-deleted, functions return
//     gorm.ErrRecordNotFound (exported here as ErrNotFound).
//   - State transitions (close, lock, open, update) report whether a row
//     actually changed instead of failing on the no-op path.
//
// Frozen rooms: once a close has been recorded on a ticket or a group, every
// later generic update is a no-op. The guard lives in the WHERE clause so it
// holds under concurrent writers.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-rooms/internal/domain"
)

// notFrozen restricts an update to rooms that still accept saves.
func notFrozen(db *gorm.DB) *gorm.DB {
	return db.Where("NOT (closed_at IS NOT NULL AND kind <> ?)", domain.RoomPrivateChat)
}

func active(db *gorm.DB) *gorm.DB {
	return db.Where("deleted = ?", false)
}

// CreateRoom inserts room and its memberships atomically. Missing ids and
// timestamps are filled in; every membership gets RoomID = room.ID.
func CreateRoom(ctx context.Context, db *gorm.DB, room *domain.Room, members []domain.Membership) error {
	now := time.Now().UTC()
	fillRoom(room, now)
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		return createMembers(tx, room.ID, members, now)
	})
}

// InsertPrivateChat creates the private chat identified by room.DedupKey,
// or returns the existing one. created is false when the key was taken; the
// unique index on dedup_key arbitrates concurrent creators. An existing row
// that was soft-deleted, or lost a member, is revived in place.
func InsertPrivateChat(ctx context.Context, db *gorm.DB, room *domain.Room, members []domain.Membership) (out *domain.Room, created bool, err error) {
	if room.DedupKey == nil || *room.DedupKey == "" {
		return nil, false, errors.New("private chat requires a dedup key")
	}
	now := time.Now().UTC()
	fillRoom(room, now)
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedup_key"}},
			DoNothing: true,
		}).Create(room)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var existing domain.Room
			if err := tx.Where("dedup_key = ?", *room.DedupKey).First(&existing).Error; err != nil {
				return err
			}
			out = &existing
			return revivePrivateChat(tx, &existing, members, now)
		}
		created = true
		out = room
		return createMembers(tx, room.ID, members, now)
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

// revivePrivateChat undeletes room and restores the soft-deleted memberships
// of members. Live rows are left as they are.
func revivePrivateChat(tx *gorm.DB, room *domain.Room, members []domain.Membership, now time.Time) error {
	if room.Deleted {
		err := tx.Model(&domain.Room{}).
			Where("id = ? AND deleted = ?", room.ID, true).
			Updates(map[string]any{
				"deleted":    false,
				"closed":     false,
				"closed_at":  nil,
				"read_only":  false,
				"updated_at": now,
			}).Error
		if err != nil {
			return err
		}
		room.Deleted, room.Closed, room.ClosedAt, room.ReadOnly = false, false, nil, false
		room.UpdatedAt = now
	}
	for _, m := range members {
		err := tx.Model(&domain.Membership{}).
			Where("room_id = ? AND user_id = ? AND deleted = ?", room.ID, m.UserID, true).
			Updates(map[string]any{
				"deleted":           false,
				"action_permission": m.ActionPermission,
				"updated_at":        now,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func fillRoom(room *domain.Room, now time.Time) {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now
}

func createMembers(tx *gorm.DB, roomID string, members []domain.Membership, now time.Time) error {
	if len(members) == 0 {
		return nil
	}
	for i := range members {
		if members[i].ID == "" {
			members[i].ID = uuid.NewString()
		}
		members[i].RoomID = roomID
		members[i].CreatedAt = now
		members[i].UpdatedAt = now
	}
	return tx.Omit(clause.Associations).CreateInBatches(members, 200).Error
}

// GetRoom fetches a room that is not soft-deleted.
func GetRoom(ctx context.Context, db *gorm.DB, id string) (*domain.Room, error) {
	var r domain.Room
	if err := db.WithContext(ctx).Scopes(active).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// LockRoomForUpdate re-reads the room inside tx with a row lock where the
// dialect supports one. SQLite serializes writers and ignores the clause.
func LockRoomForUpdate(ctx context.Context, tx *gorm.DB, id string) (*domain.Room, error) {
	var r domain.Room
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Scopes(active).
		Where("id = ?", id).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CloseRoom records the close transition. It returns false when the room was
// already closed, leaving the first closed_at stamp untouched.
func CloseRoom(ctx context.Context, db *gorm.DB, id string, lock bool) (bool, error) {
	now := time.Now().UTC()
	updates := map[string]any{"closed": true, "closed_at": now, "updated_at": now}
	if lock {
		updates["read_only"] = true
	}
	res := db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("id = ? AND closed_at IS NULL", id).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// CloseLockDelete closes, locks and soft-deletes the room in one statement.
// It is the only transition applied to frozen rooms.
func CloseLockDelete(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("id = ? AND deleted = ?", id, false).
		Updates(map[string]any{
			"closed":     true,
			"closed_at":  gorm.Expr("COALESCE(closed_at, ?)", now),
			"read_only":  true,
			"deleted":    true,
			"updated_at": now,
		})
	return res.RowsAffected > 0, res.Error
}

// SetReadOnly locks or unlocks a room. Frozen rooms are left as they are.
func SetReadOnly(ctx context.Context, db *gorm.DB, id string, readOnly bool) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Room{}).
		Scopes(active, notFrozen).
		Where("id = ? AND read_only = ?", id, !readOnly).
		Updates(map[string]any{"read_only": readOnly, "updated_at": time.Now().UTC()})
	return res.RowsAffected > 0, res.Error
}

// OpenRoom clears closed, closed_at and read_only. On frozen rooms it is a
// no-op and returns false.
func OpenRoom(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Room{}).
		Scopes(active, notFrozen).
		Where("id = ?", id).
		Updates(map[string]any{
			"closed":     false,
			"closed_at":  nil,
			"read_only":  false,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

// UpdateRoom applies name, photo and priority changes. Keys other than
// those three are ignored.
func UpdateRoom(ctx context.Context, db *gorm.DB, id string, fields map[string]any) (bool, error) {
	updates := make(map[string]any, len(fields)+1)
	for _, k := range []string{"name", "photo", "priority"} {
		if v, ok := fields[k]; ok {
			updates[k] = v
		}
	}
	if len(updates) == 0 {
		return false, nil
	}
	updates["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Room{}).
		Scopes(active, notFrozen).
		Where("id = ?", id).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// CountRoomsForUser returns the number of live rooms where userID is an
// active member.
func CountRoomsForUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := roomsForUser(db.WithContext(ctx), userID).Count(&total).Error
	return total, err
}

// ListRoomsForUserPage returns a page of userID's rooms, most recently
// updated first.
func ListRoomsForUserPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Room, error) {
	var out []domain.Room
	err := roomsForUser(db.WithContext(ctx), userID).
		Order("rooms.updated_at DESC, rooms.id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func roomsForUser(db *gorm.DB, userID string) *gorm.DB {
	return db.Model(&domain.Room{}).
		Joins("JOIN memberships ON memberships.room_id = rooms.id").
		Where("memberships.user_id = ? AND memberships.deleted = ? AND rooms.deleted = ?", userID, false, false)
}

// TopPublicGroups returns open public groups ordered by active member count.
func TopPublicGroups(ctx context.Context, db *gorm.DB, limit int) ([]domain.Room, error) {
	if limit <= 0 {
		limit = 10
	}
	var ids []struct {
		ID          string
		MemberCount int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Room{}).
		Select("rooms.id AS id, COUNT(memberships.id) AS member_count").
		Joins("LEFT JOIN memberships ON memberships.room_id = rooms.id AND memberships.deleted = ?", false).
		Where("rooms.kind = ? AND rooms.deleted = ? AND rooms.closed = ?", domain.RoomPublicGroup, false, false).
		Group("rooms.id").
		Order("member_count DESC, rooms.id ASC").
		Limit(limit).
		Scan(&ids).Error
	if err != nil || len(ids) == 0 {
		return []domain.Room{}, err
	}

	order := make([]string, len(ids))
	for i, r := range ids {
		order[i] = r.ID
	}
	var rooms []domain.Room
	if err := db.WithContext(ctx).Where("id IN ?", order).Find(&rooms).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Room, len(rooms))
	for _, r := range rooms {
		byID[r.ID] = r
	}
	out := make([]domain.Room, 0, len(order))
	for _, id := range order {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListPublicGroups returns up to limit open public groups, newest first.
func ListPublicGroups(ctx context.Context, db *gorm.DB, limit int) ([]domain.Room, error) {
	var out []domain.Room
	q := db.WithContext(ctx).
		Where("kind = ? AND deleted = ? AND closed = ?", domain.RoomPublicGroup, false, false).
		Order("created_at DESC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
