// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for uploaded
// files and canned (predefined) messages.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-rooms/internal/domain"
)

// CreateUpload inserts f, filling ID and timestamps.
func CreateUpload(ctx context.Context, db *gorm.DB, f *domain.FileUpload) error {
	now := time.Now().UTC()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt, f.UpdatedAt = now, now
	return db.WithContext(ctx).Create(f).Error
}

// GetUpload fetches an upload by id.
func GetUpload(ctx context.Context, db *gorm.DB, id string) (*domain.FileUpload, error) {
	var f domain.FileUpload
	if err := db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// GetUploads returns the uploads with the given ids keyed by id.
func GetUploads(ctx context.Context, db *gorm.DB, ids []string) (map[string]domain.FileUpload, error) {
	out := make(map[string]domain.FileUpload, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.FileUpload
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, f := range rows {
		out[f.ID] = f
	}
	return out, nil
}

// SetThumbnail attaches a generated thumbnail key to an upload. It returns
// ErrNotFound when the upload no longer exists.
func SetThumbnail(ctx context.Context, db *gorm.DB, id, key string) error {
	res := db.WithContext(ctx).
		Model(&domain.FileUpload{}).
		Where("id = ?", id).
		Updates(map[string]any{"thumbnail_key": key, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreatePredefined inserts a canned message.
func CreatePredefined(ctx context.Context, db *gorm.DB, p *domain.PredefinedMessage) error {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return db.WithContext(ctx).Create(p).Error
}

// ListPredefined returns userID's canned messages, newest first.
func ListPredefined(ctx context.Context, db *gorm.DB, userID string) ([]domain.PredefinedMessage, error) {
	var out []domain.PredefinedMessage
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id ASC").
		Find(&out).Error
	return out, err
}

// GetPredefined fetches a canned message owned by userID.
func GetPredefined(ctx context.Context, db *gorm.DB, id, userID string) (*domain.PredefinedMessage, error) {
	var p domain.PredefinedMessage
	if err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePredefined replaces text and file of a canned message owned by
// userID, returning ErrNotFound when nothing matched.
func UpdatePredefined(ctx context.Context, db *gorm.DB, id, userID string, text, fileID *string) error {
	res := db.WithContext(ctx).
		Model(&domain.PredefinedMessage{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"text": text, "file_id": fileID, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePredefined removes a canned message owned by userID.
func DeletePredefined(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&domain.PredefinedMessage{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
