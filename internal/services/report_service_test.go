package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/tbourn/go-chat-rooms/internal/domain"
)

func TestReport(t *testing.T) {
	db := newTestDB(t)
	msgs := &MessageService{DB: db}
	svc := &ReportService{DB: db}
	ctx := context.Background()
	a := user(t, db, "a", false)
	b := user(t, db, "b", false)
	out := user(t, db, "out", false)
	room := group(t, db, domain.RoomPublicGroup, "a", "b")

	m, err := msgs.Send(ctx, a, room.ID, SendInput{Text: "spam"})
	if err != nil {
		t.Fatal(err)
	}

	r, err := svc.Report(ctx, b, m.ID, strings.Repeat("ä", 300))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if utf8.RuneCountInString(r.Reason) != maxReasonRunes || r.RoomID != room.ID {
		t.Fatalf("report row wrong: room=%s reason runes=%d", r.RoomID, utf8.RuneCountInString(r.Reason))
	}
	if _, err := svc.Report(ctx, b, m.ID, "again"); !errors.Is(err, ErrDuplicateReport) {
		t.Fatalf("expected ErrDuplicateReport, got %v", err)
	}
	if _, err := svc.Report(ctx, out, m.ID, "x"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	if _, err := svc.Report(ctx, b, "missing", "x"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}

	if _, err := svc.List(ctx, b, room.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("plain member: expected ErrForbidden, got %v", err)
	}
	list, err := svc.List(ctx, a, room.ID)
	if err != nil || len(list) != 1 || list[0].ReporterID != "b" {
		t.Fatalf("list: %+v err=%v", list, err)
	}
}

func TestReport_GroupsOnly(t *testing.T) {
	db := newTestDB(t)
	msgs := &MessageService{DB: db}
	svc := &ReportService{DB: db}
	ctx := context.Background()
	a := user(t, db, "a", false)
	b := user(t, db, "b", false)
	rooms := NewRoomService(db)
	chat, _, err := rooms.GetOrCreatePrivateChat(ctx, a, "b")
	if err != nil {
		t.Fatal(err)
	}
	m, err := msgs.Send(ctx, a, chat.ID, SendInput{Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Report(ctx, b, m.ID, "x"); !errors.Is(err, ErrWrongRoomKind) {
		t.Fatalf("expected ErrWrongRoomKind, got %v", err)
	}
}
