// Package services – UploadService
//
// This file implements file uploads: the extension policy, the size limit,
// blob storage and the hand-off to thumbnail generation. An upload belongs
// to its uploader until it is attached to a message or a predefined message.
package services

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-rooms/internal/auth"
	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxUploadBytes is the upload limit when none is configured.
const DefaultMaxUploadBytes int64 = 30_000_000

// BlobStore persists upload bytes under a key.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Delete(ctx context.Context, key string) error
}

// ThumbnailQueue schedules thumbnail generation for an upload.
type ThumbnailQueue interface {
	EnqueueThumbnail(ctx context.Context, uploadID string) error
}

var (
	imageFormats = extSet("jpg", "jpeg", "png", "gif", "tiff")
	videoFormats = extSet("mp4", "mkv", "avi", "flv", "f4v", "wmv", "mov")
	audioFormats = extSet("pcm", "wav", "aiff", "mp3", "aac", "ogg", "wma", "flac", "alac")
	fileFormats  = extSet("txt", "xls", "xlsx", "ppt", "pptx", "doc", "docx", "pdf", "odt", "odp", "ods")

	// deniedFormats are executable or archive types rejected regardless of
	// the allow lists.
	deniedFormats = extSet(
		"php", "php2", "php3", "php4", "php5", "php6", "php7", "phps", "pht",
		"phtm", "phtml", "pgif", "shtml", "htaccess", "phar", "inc", "hphp",
		"ctp", "module", "asp", "aspx", "config", "ashx", "asmx", "aspq", "axd",
		"cshtm", "cshtml", "rem", "soap", "vbhtm", "vbhtml", "asa", "cer",
		"jsp", "jspx", "jsw", "jsv", "jspf", "wss", "do", "action", "cfm",
		"cfml", "cfc", "dbm", "swf", "pl", "cgi", "yaws", "exe", "bat", "msi",
		"tar", "zip", "rar",
	)
)

func extSet(exts ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		m[e] = struct{}{}
	}
	return m
}

// DetectFileKind classifies name by its extension. Denied and unknown
// extensions return ErrFileType.
func DetectFileKind(name string) (domain.FileKind, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" {
		return "", ErrFileType
	}
	if _, bad := deniedFormats[ext]; bad {
		return "", ErrFileType
	}
	for kind, set := range map[domain.FileKind]map[string]struct{}{
		domain.FileImage: imageFormats,
		domain.FileVideo: videoFormats,
		domain.FileAudio: audioFormats,
		domain.FileOther: fileFormats,
	} {
		if _, ok := set[ext]; ok {
			return kind, nil
		}
	}
	return "", ErrFileType
}

// UploadService stores uploads and schedules their thumbnails.
type UploadService struct {
	DB         *gorm.DB
	Blobs      BlobStore
	Thumbnails ThumbnailQueue

	// MaxBytes caps the upload size; zero means DefaultMaxUploadBytes.
	MaxBytes int64
}

func (s *UploadService) tracer() trace.Tracer { return otel.Tracer("services/UploadService") }

func (s *UploadService) maxBytes() int64 {
	if s.MaxBytes > 0 {
		return s.MaxBytes
	}
	return DefaultMaxUploadBytes
}

// Upload stores the content of r as a new upload owned by actor. size is the
// size declared by the client; the stored size is what was actually read.
func (s *UploadService) Upload(ctx context.Context, actor auth.Principal, name string, size int64, r io.Reader) (*domain.FileUpload, error) {
	ctx, span := s.tracer().Start(ctx, "Upload",
		trace.WithAttributes(
			attribute.String("user.id", actor.ID),
			attribute.Int64("file.size", size),
		),
	)
	defer span.End()

	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	kind, err := DetectFileKind(name)
	if err != nil {
		return nil, err
	}
	limit := s.maxBytes()
	if size > limit {
		return nil, ErrUploadTooLarge
	}

	id := uuid.NewString()
	key := "uploads/" + actor.ID + "/" + id + strings.ToLower(path.Ext(name))
	n, err := s.Blobs.Put(ctx, key, io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if n > limit {
		_ = s.Blobs.Delete(ctx, key)
		return nil, ErrUploadTooLarge
	}

	f := &domain.FileUpload{
		ID:      id,
		OwnerID: actor.ID,
		Name:    name,
		BlobKey: key,
		Kind:    kind,
		Size:    n,
	}
	if err := repo.CreateUpload(ctx, s.DB, f); err != nil {
		_ = s.Blobs.Delete(ctx, key)
		return nil, err
	}
	span.SetAttributes(attribute.String("file.kind", string(kind)))

	if kind.Thumbnailable() && s.Thumbnails != nil {
		if err := s.Thumbnails.EnqueueThumbnail(ctx, f.ID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("upload_id", f.ID).Msg("thumbnail enqueue failed")
		}
	}
	return f, nil
}

// Get returns an upload owned by actor.
func (s *UploadService) Get(ctx context.Context, actor auth.Principal, id string) (*domain.FileUpload, error) {
	ctx, span := s.tracer().Start(ctx, "Get",
		trace.WithAttributes(attribute.String("upload.id", id)),
	)
	defer span.End()

	f, err := repo.GetUpload(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUploadNotFound
	}
	if err != nil {
		return nil, err
	}
	if f.OwnerID != actor.ID {
		return nil, ErrUploadNotFound
	}
	return f, nil
}

// AttachThumbnail records a generated thumbnail. It is called by the
// thumbnail worker once generation completed.
func (s *UploadService) AttachThumbnail(ctx context.Context, uploadID, key string) error {
	ctx, span := s.tracer().Start(ctx, "AttachThumbnail",
		trace.WithAttributes(attribute.String("upload.id", uploadID)),
	)
	defer span.End()

	err := repo.SetThumbnail(ctx, s.DB, uploadID, key)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrUploadNotFound
	}
	return err
}
