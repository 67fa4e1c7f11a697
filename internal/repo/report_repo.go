// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Report
// model.
//
// Error semantics:
//   - A second report of the same message by the same reporter violates the
//     (message_id, reporter_id) unique index and is returned as ErrDuplicate.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-rooms/internal/domain"
)

// CreateReport inserts a report row.
func CreateReport(ctx context.Context, db *gorm.DB, messageID, reporterID, roomID, reason string) (*domain.Report, error) {
	r := &domain.Report{
		ID:         uuid.NewString(),
		MessageID:  messageID,
		ReporterID: reporterID,
		RoomID:     roomID,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(r).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return r, nil
}

// ListReports returns the reports filed in roomID, newest first.
func ListReports(ctx context.Context, db *gorm.DB, roomID string) ([]domain.Report, error) {
	var out []domain.Report
	err := db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, id ASC").
		Find(&out).Error
	return out, err
}
