package repo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/permission"
)

func TestCreateRoom_InsertsRoomAndMembers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	room := seedRoom(t, db, domain.RoomPrivateGroup, "u1", "u2", "u3")
	if room.ID == "" {
		t.Fatalf("expected generated id")
	}
	n, err := CountActiveMembers(ctx, db, room.ID)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 members, got %d err=%v", n, err)
	}
	got, err := GetRoom(ctx, db, room.ID)
	if err != nil || got.Kind != domain.RoomPrivateGroup {
		t.Fatalf("GetRoom: %+v err=%v", got, err)
	}
}

func TestCreateRoom_RollsBackOnMemberFailure(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	room := &domain.Room{Name: "dup", Kind: domain.RoomPublicGroup}
	members := []domain.Membership{
		{UserID: "u1", IsCreator: true, ActionPermission: permission.Creator},
		{UserID: "u1", ActionPermission: permission.Member},
	}
	if err := CreateRoom(ctx, db, room, members); err == nil {
		t.Fatalf("expected unique violation")
	}
	if _, err := GetRoom(ctx, db, room.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("room must not survive a failed member insert, err=%v", err)
	}
}

func TestCloseRoom_IdempotentStamp(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	room := seedRoom(t, db, domain.RoomTicket, "c1", "s1")

	ok, err := CloseRoom(ctx, db, room.ID, false)
	if err != nil || !ok {
		t.Fatalf("first close: ok=%v err=%v", ok, err)
	}
	first, _ := GetRoom(ctx, db, room.ID)
	if !first.Closed || first.ClosedAt == nil {
		t.Fatalf("closed and closed_at must be set together: %+v", first)
	}

	ok, err = CloseRoom(ctx, db, room.ID, true)
	if err != nil || ok {
		t.Fatalf("second close must be a no-op: ok=%v err=%v", ok, err)
	}
	second, _ := GetRoom(ctx, db, room.ID)
	if !second.ClosedAt.Equal(*first.ClosedAt) || second.ReadOnly {
		t.Fatalf("second close changed the row: %+v", second)
	}
}

func TestFrozenRoom_IgnoresSaves(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	room := seedRoom(t, db, domain.RoomPublicGroup, "u1")

	if ok, _ := UpdateRoom(ctx, db, room.ID, map[string]any{"name": "renamed"}); !ok {
		t.Fatalf("update on open room should apply")
	}
	if ok, _ := CloseRoom(ctx, db, room.ID, false); !ok {
		t.Fatalf("close should apply")
	}

	for name, fn := range map[string]func() (bool, error){
		"update": func() (bool, error) { return UpdateRoom(ctx, db, room.ID, map[string]any{"name": "again"}) },
		"lock":   func() (bool, error) { return SetReadOnly(ctx, db, room.ID, true) },
		"open":   func() (bool, error) { return OpenRoom(ctx, db, room.ID) },
	} {
		ok, err := fn()
		if err != nil || ok {
			t.Fatalf("%s on frozen room must be a no-op: ok=%v err=%v", name, ok, err)
		}
	}
	got, _ := GetRoom(ctx, db, room.ID)
	if got.Name != "renamed" || !got.Closed || got.ReadOnly {
		t.Fatalf("frozen room changed: %+v", got)
	}
}

func TestPrivateChat_LockUnlockAndOpen(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	room := seedRoom(t, db, domain.RoomPrivateChat, "u1", "u2")

	if ok, _ := SetReadOnly(ctx, db, room.ID, true); !ok {
		t.Fatalf("block should apply")
	}
	if ok, _ := SetReadOnly(ctx, db, room.ID, true); ok {
		t.Fatalf("second block should be a no-op")
	}
	if ok, _ := OpenRoom(ctx, db, room.ID); !ok {
		t.Fatalf("open should clear the lock")
	}
	got, _ := GetRoom(ctx, db, room.ID)
	if got.ReadOnly || got.Closed {
		t.Fatalf("unexpected state after open: %+v", got)
	}
}

func TestCloseLockDelete_HidesRoom(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	room := seedRoom(t, db, domain.RoomPrivateGroup, "u1", "u2", "u3")

	ok, err := CloseLockDelete(ctx, db, room.ID)
	if err != nil || !ok {
		t.Fatalf("CloseLockDelete: ok=%v err=%v", ok, err)
	}
	if _, err := GetRoom(ctx, db, room.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted room must read as not found, err=%v", err)
	}
	var raw domain.Room
	db.First(&raw, "id = ?", room.ID)
	if !raw.Closed || !raw.ReadOnly || !raw.Deleted || raw.ClosedAt == nil {
		t.Fatalf("expected closed+locked+deleted, got %+v", raw)
	}
	if n, _ := CountActiveMembers(ctx, db, room.ID); n != 3 {
		t.Fatalf("memberships must be left untouched, got %d", n)
	}
	if ok, _ := CloseLockDelete(ctx, db, room.ID); ok {
		t.Fatalf("second delete must be a no-op")
	}
}

func TestInsertPrivateChat_Dedup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	key := "private:a:b"

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[string]int{}
		created int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k := key
			room := &domain.Room{Name: "b", Kind: domain.RoomPrivateChat, DedupKey: &k}
			members := []domain.Membership{
				{UserID: "a", IsCreator: true, ActionPermission: permission.Creator},
				{UserID: "b", ActionPermission: permission.Creator},
			}
			got, ok, err := InsertPrivateChat(ctx, db, room, members)
			if err != nil {
				t.Errorf("InsertPrivateChat: %v", err)
				return
			}
			mu.Lock()
			ids[got.ID]++
			if ok {
				created++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(ids) != 1 || created != 1 {
		t.Fatalf("expected one room created once, got ids=%v created=%d", ids, created)
	}
	var rooms int64
	db.Model(&domain.Room{}).Where("kind = ?", domain.RoomPrivateChat).Count(&rooms)
	if rooms != 1 {
		t.Fatalf("expected a single private chat row, got %d", rooms)
	}
}

func TestInsertPrivateChat_RevivesDeletedRow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	key := "private:a:b"
	insert := func(creator, contact string) (*domain.Room, bool) {
		t.Helper()
		k := key
		room := &domain.Room{Name: contact, Kind: domain.RoomPrivateChat, DedupKey: &k}
		members := []domain.Membership{
			{UserID: creator, IsCreator: true, ActionPermission: permission.Member},
			{UserID: contact, ActionPermission: permission.Member},
		}
		got, created, err := InsertPrivateChat(ctx, db, room, members)
		if err != nil {
			t.Fatalf("InsertPrivateChat: %v", err)
		}
		return got, created
	}

	first, created := insert("a", "b")
	if !created {
		t.Fatal("first insert must create")
	}
	if ok, err := CloseLockDelete(ctx, db, first.ID); err != nil || !ok {
		t.Fatalf("CloseLockDelete: ok=%v err=%v", ok, err)
	}
	if ok, err := SoftDeleteMembership(ctx, db, first.ID, "b"); err != nil || !ok {
		t.Fatalf("SoftDeleteMembership: ok=%v err=%v", ok, err)
	}

	again, created := insert("b", "a")
	if created || again.ID != first.ID {
		t.Fatalf("expected the existing row, got id=%s created=%v", again.ID, created)
	}
	if again.Deleted || again.Closed || again.ReadOnly || again.ClosedAt != nil {
		t.Fatalf("returned room still frozen: %+v", again)
	}
	stored, err := GetRoom(ctx, db, first.ID)
	if err != nil {
		t.Fatalf("revived room must be readable: %v", err)
	}
	if !stored.Writable() {
		t.Fatalf("revived room not writable: %+v", stored)
	}
	if ids, _ := ActiveMemberIDs(ctx, db, first.ID); len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("active members = %v, want [a b]", ids)
	}
}

func TestTopPublicGroups_OrderedByMembers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	small := seedRoom(t, db, domain.RoomPublicGroup, "u1")
	big := seedRoom(t, db, domain.RoomPublicGroup, "u1", "u2", "u3")
	_ = seedRoom(t, db, domain.RoomPrivateGroup, "u1", "u2", "u3", "u4")
	closed := seedRoom(t, db, domain.RoomPublicGroup, "u1", "u2", "u3", "u4")
	_, _ = CloseRoom(ctx, db, closed.ID, true)

	got, err := TopPublicGroups(ctx, db, 10)
	if err != nil {
		t.Fatalf("TopPublicGroups: %v", err)
	}
	if len(got) != 2 || got[0].ID != big.ID || got[1].ID != small.ID {
		t.Fatalf("unexpected order: %+v", got)
	}

	all, err := ListPublicGroups(ctx, db, 0)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListPublicGroups: %d rooms err=%v", len(all), err)
	}
}

func TestListRoomsForUserPage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		seedRoom(t, db, domain.RoomPublicGroup, "u1")
	}
	seedRoom(t, db, domain.RoomPublicGroup, "u2")

	total, err := CountRoomsForUser(ctx, db, "u1")
	if err != nil || total != 3 {
		t.Fatalf("CountRoomsForUser: %d err=%v", total, err)
	}
	page, err := ListRoomsForUserPage(ctx, db, "u1", 2, 2)
	if err != nil || len(page) != 1 {
		t.Fatalf("second page: %d rooms err=%v", len(page), err)
	}
}
