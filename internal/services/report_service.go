// Package services – ReportService
//
// This file implements message reports. A member of a group may report a
// message of that group once; a repeat is rejected with ErrDuplicateReport.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-rooms/internal/auth"
	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/permission"
	"github.com/tbourn/go-chat-rooms/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxReasonRunes caps the stored report reason.
const maxReasonRunes = 255

// ReportService records reports of group messages.
type ReportService struct {
	DB *gorm.DB
}

// Report files a report of messageID by actor.
func (s *ReportService) Report(ctx context.Context, actor auth.Principal, messageID, reason string) (*domain.Report, error) {
	tr := otel.Tracer("services/ReportService")
	ctx, span := tr.Start(ctx, "Report",
		trace.WithAttributes(
			attribute.String("message.id", messageID),
			attribute.String("user.id", actor.ID),
		),
	)
	defer span.End()

	msg, err := repo.GetMessage(ctx, s.DB, messageID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	room, err := roomFor(ctx, s.DB, msg.RoomID)
	if err != nil {
		return nil, err
	}
	if err := requireKind(room, domain.RoomPublicGroup, domain.RoomPrivateGroup); err != nil {
		return nil, err
	}
	if _, err := memberOf(ctx, s.DB, room.ID, actor.ID); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > maxReasonRunes {
		reason = string([]rune(reason)[:maxReasonRunes])
	}
	r, err := repo.CreateReport(ctx, s.DB, msg.ID, actor.ID, room.ID, reason)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrDuplicateReport
	}
	return r, err
}

// List returns the reports of a group. Only members holding remove_member
// may review them.
func (s *ReportService) List(ctx context.Context, actor auth.Principal, roomID string) ([]domain.Report, error) {
	tr := otel.Tracer("services/ReportService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(attribute.String("room.id", roomID)),
	)
	defer span.End()

	room, err := roomFor(ctx, s.DB, roomID)
	if err != nil {
		return nil, err
	}
	if err := requireKind(room, domain.RoomPublicGroup, domain.RoomPrivateGroup); err != nil {
		return nil, err
	}
	m, err := memberOf(ctx, s.DB, roomID, actor.ID)
	if err != nil {
		return nil, err
	}
	if err := requireCapability(m, permission.RemoveMember); err != nil {
		return nil, err
	}
	return repo.ListReports(ctx, s.DB, roomID)
}
