package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-rooms/internal/domain"
)

// purgeBatch bounds a single purge statement so a large backlog does not
// hold a long write lock on the table.
const purgeBatch = 500

// GetIdempotency returns the live record for (userID, roomID, key) or
// ErrNotFound. Keys are scoped per room, so a blank room never matches.
func GetIdempotency(ctx context.Context, db *gorm.DB, userID, roomID, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(roomID) == "" || key == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("user_id = ? AND room_id = ? AND key = ?", userID, roomID, key).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !rec.Live(now) {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// CreateIdempotency binds key to the message a send produced. An expired
// record for the same tuple is reclaimed first, so a key becomes reusable
// as soon as its window closes rather than when the purger next runs.
// A live record yields ErrDuplicate.
func CreateIdempotency(ctx context.Context, db *gorm.DB, userID, roomID, key, messageID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := domain.NewIdempotency(userID, roomID, key, messageID, status, now, ttl)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND room_id = ? AND key = ? AND expires_at <= ?", userID, roomID, key, now).
			Delete(&domain.Idempotency{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredIdempotency deletes every record whose window closed at or
// before now, in batches, and returns how many were removed.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		expired := db.Model(&domain.Idempotency{}).
			Select("id").
			Where("expires_at <= ?", now).
			Limit(purgeBatch)
		res := db.WithContext(ctx).Where("id IN (?)", expired).Delete(&domain.Idempotency{})
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
		if res.RowsAffected < purgeBatch {
			return total, nil
		}
	}
}
