package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-chat-rooms/internal/domain"
)

func TestRoomsStats_CountError_NoTable(t *testing.T) {
	db := newEmptyDB(t)
	_, _, err := RoomsStats(context.Background(), db, "u1")
	if err == nil {
		t.Fatalf("expected error due to missing rooms table")
	}
}

func TestRoomsStats_ZeroRows(t *testing.T) {
	db := newTestDB(t)
	count, maxAt, err := RoomsStats(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("RoomsStats error: %v", err)
	}
	if count != 0 || maxAt != nil {
		t.Fatalf("expected (0, nil), got (%d, %v)", count, maxAt)
	}
}

func TestRoomsStats_Success_FilterAndMax(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	r1 := seedRoom(t, db, domain.RoomPublicGroup, "u1")
	r2 := seedRoom(t, db, domain.RoomPrivateGroup, "u1", "u2")
	_ = seedRoom(t, db, domain.RoomPublicGroup, "u2")

	t1 := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
	db.Model(&domain.Room{}).Where("id = ?", r1.ID).UpdateColumn("updated_at", t1)
	db.Model(&domain.Room{}).Where("id = ?", r2.ID).UpdateColumn("updated_at", t2)

	count, maxAt, err := RoomsStats(ctx, db, "u1")
	if err != nil {
		t.Fatalf("RoomsStats error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
	if maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("expected max updated_at %v, got %v", t2, maxAt)
	}

	// Leaving a room removes it from the stats.
	if ok, err := SoftDeleteMembership(ctx, db, r2.ID, "u2"); err != nil || !ok {
		t.Fatalf("soft delete: ok=%v err=%v", ok, err)
	}
	if n, _, _ := RoomsStats(ctx, db, "u2"); n != 1 {
		t.Fatalf("expected u2 to keep 1 room, got %d", n)
	}
}

func TestMessagesStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "u1", "alice", false)
	room := seedRoom(t, db, domain.RoomPublicGroup, "u1")

	count, maxAt, err := MessagesStats(ctx, db, room.ID)
	if err != nil || count != 0 || maxAt != nil {
		t.Fatalf("expected empty stats, got (%d, %v, %v)", count, maxAt, err)
	}

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		seedMessage(t, db, room.ID, "u1", base, i)
	}
	count, maxAt, err = MessagesStats(ctx, db, room.ID)
	if err != nil {
		t.Fatalf("MessagesStats: %v", err)
	}
	if count != 3 || maxAt == nil || !maxAt.Equal(base.Add(2*time.Second)) {
		t.Fatalf("unexpected stats (%d, %v)", count, maxAt)
	}
}
