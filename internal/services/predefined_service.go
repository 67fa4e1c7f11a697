package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-rooms/internal/auth"
	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PredefinedService manages a user's canned messages.
type PredefinedService struct {
	DB     *gorm.DB
	Filter ContentFilter
}

// PredefinedInput is the content of a canned message.
type PredefinedInput struct {
	Text   string
	FileID *string
}

func (s *PredefinedService) tracer() trace.Tracer { return otel.Tracer("services/PredefinedService") }

// validate applies the message content rules and returns the normalized
// text and file pointers.
func (s *PredefinedService) validate(ctx context.Context, actor auth.Principal, in PredefinedInput) (*string, *string, error) {
	text := strings.TrimSpace(in.Text)
	hasFile := in.FileID != nil && *in.FileID != ""
	switch {
	case text == "" && !hasFile:
		return nil, nil, ErrEmptyPredefined
	case text != "" && hasFile:
		return nil, nil, ErrBothTextAndFile
	}
	if hasFile {
		f, err := repo.GetUpload(ctx, s.DB, *in.FileID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrUploadNotFound
		}
		if err != nil {
			return nil, nil, err
		}
		if f.OwnerID != actor.ID {
			return nil, nil, ErrForbidden
		}
		return nil, &f.ID, nil
	}
	if s.Filter != nil && !s.Filter.Clean(text) {
		return nil, nil, ErrProfanity
	}
	return &text, nil, nil
}

// Create stores a canned message for actor.
func (s *PredefinedService) Create(ctx context.Context, actor auth.Principal, in PredefinedInput) (*domain.PredefinedMessage, error) {
	ctx, span := s.tracer().Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", actor.ID)),
	)
	defer span.End()

	text, fileID, err := s.validate(ctx, actor, in)
	if err != nil {
		return nil, err
	}
	p := &domain.PredefinedMessage{UserID: actor.ID, Text: text, FileID: fileID}
	if err := repo.CreatePredefined(ctx, s.DB, p); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns actor's canned messages, newest first.
func (s *PredefinedService) List(ctx context.Context, actor auth.Principal) ([]domain.PredefinedMessage, error) {
	ctx, span := s.tracer().Start(ctx, "List",
		trace.WithAttributes(attribute.String("user.id", actor.ID)),
	)
	defer span.End()
	return repo.ListPredefined(ctx, s.DB, actor.ID)
}

// Get returns one of actor's canned messages.
func (s *PredefinedService) Get(ctx context.Context, actor auth.Principal, id string) (*domain.PredefinedMessage, error) {
	ctx, span := s.tracer().Start(ctx, "Get",
		trace.WithAttributes(attribute.String("predefined.id", id)),
	)
	defer span.End()

	p, err := repo.GetPredefined(ctx, s.DB, id, actor.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPredefinedNotFound
	}
	return p, err
}

// Update replaces the content of one of actor's canned messages.
func (s *PredefinedService) Update(ctx context.Context, actor auth.Principal, id string, in PredefinedInput) (*domain.PredefinedMessage, error) {
	ctx, span := s.tracer().Start(ctx, "Update",
		trace.WithAttributes(attribute.String("predefined.id", id)),
	)
	defer span.End()

	text, fileID, err := s.validate(ctx, actor, in)
	if err != nil {
		return nil, err
	}
	if err := repo.UpdatePredefined(ctx, s.DB, id, actor.ID, text, fileID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPredefinedNotFound
		}
		return nil, err
	}
	return s.Get(ctx, actor, id)
}

// Delete removes one of actor's canned messages.
func (s *PredefinedService) Delete(ctx context.Context, actor auth.Principal, id string) error {
	ctx, span := s.tracer().Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("predefined.id", id)),
	)
	defer span.End()

	err := repo.DeletePredefined(ctx, s.DB, id, actor.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrPredefinedNotFound
	}
	return err
}
