// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model
// and the staff routing query used by ticket creation.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-rooms/internal/domain"
)

// UpsertUser inserts u or refreshes username and staff flag of the
// existing row. Photo is only written on insert.
func UpsertUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "is_staff", "updated_at"}),
	}).Create(u).Error
}

// GetUser fetches a user by id or returns ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUsers returns the users whose ids are listed, in id order. Unknown ids
// are silently skipped; callers compare lengths to detect them.
func GetUsers(ctx context.Context, db *gorm.DB, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	var out []domain.User
	err := db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&out).Error
	return out, err
}

// GetStaffByUsername fetches the staff user with the given username.
func GetStaffByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("username = ? AND is_staff = ?", username, true).
		Order("id ASC").
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// LeastLoadedStaff returns the staff user holding the fewest active
// memberships in open ticket rooms. Ties go to the smallest id. Ids in
// exclude are never returned. ErrNotFound means no eligible staff exists.
//
// The read is not locked: two concurrent ticket creations may pick the same
// staff member, which skews the balance slightly but never loses a ticket.
func LeastLoadedStaff(ctx context.Context, db *gorm.DB, exclude ...string) (*domain.User, error) {
	q := db.WithContext(ctx).
		Model(&domain.User{}).
		Select("users.id AS id, COUNT(rooms.id) AS ticket_load").
		Joins("LEFT JOIN memberships ON memberships.user_id = users.id AND memberships.deleted = ?", false).
		Joins("LEFT JOIN rooms ON rooms.id = memberships.room_id AND rooms.kind = ? AND rooms.closed = ? AND rooms.deleted = ?",
			domain.RoomTicket, false, false).
		Where("users.is_staff = ?", true)
	if len(exclude) > 0 {
		q = q.Where("users.id NOT IN ?", exclude)
	}

	var rows []struct {
		ID         string
		TicketLoad int64
	}
	if err := q.Group("users.id").Order("ticket_load ASC, users.id ASC").Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	u, err := GetUser(ctx, db, rows[0].ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return u, err
}
