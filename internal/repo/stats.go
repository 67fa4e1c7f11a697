// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-rooms/internal/domain"
)

// RoomsStats returns aggregate metadata for the rooms a user belongs to: the
// number of live rooms and the greatest rooms.updated_at among them.
//
// When the user has no rooms, the returned count is 0 and maxUpdatedAt is nil.
//
// Return values:
//   - count:        live rooms where userID is an active member
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func RoomsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	if err = roomsForUser(db.WithContext(ctx), userID).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var rows []domain.Room
	err = roomsForUser(db.WithContext(ctx), userID).
		Select("rooms.*").
		Order("rooms.updated_at DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return 0, nil, err
	}
	return count, &rows[0].UpdatedAt, nil
}

// MessagesStats returns aggregate metadata for messages within a room: the
// total number of rows and the greatest CreatedAt. Messages are immutable
// apart from their seen flag, so the pair changes whenever a page could.
//
// When the room has no messages, the returned count is 0 and maxCreatedAt
// is nil.
func MessagesStats(ctx context.Context, db *gorm.DB, roomID string) (count int64, maxCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("room_id = ?", roomID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
