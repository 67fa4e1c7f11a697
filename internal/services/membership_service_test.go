package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/permission"
	"github.com/tbourn/go-chat-rooms/internal/repo"
)

func emptyPublicGroup(t *testing.T, svc *MembershipService) *domain.Room {
	t.Helper()
	room := &domain.Room{Name: "lobby", Kind: domain.RoomPublicGroup}
	if err := repo.CreateRoom(context.Background(), svc.DB, room, nil); err != nil {
		t.Fatalf("seed room: %v", err)
	}
	return room
}

func TestJoinLeaveRejoin_PublicGroup(t *testing.T) {
	db := newTestDB(t)
	svc := &MembershipService{DB: db}
	ctx := context.Background()
	u := user(t, db, "u", false)
	v := user(t, db, "v", false)
	room := emptyPublicGroup(t, svc)

	ok, err := svc.JoinPublicGroup(ctx, u, room.ID)
	if err != nil || !ok {
		t.Fatalf("first join: ok=%v err=%v", ok, err)
	}
	mu, _ := repo.GetMembership(ctx, db, room.ID, "u")
	if !mu.IsCreator || mu.ActionPermission != permission.Creator {
		t.Fatalf("first joiner must be creator: %+v", mu)
	}

	if ok, err := svc.JoinPublicGroup(ctx, v, room.ID); err != nil || !ok {
		t.Fatalf("second join: ok=%v err=%v", ok, err)
	}
	mv, _ := repo.GetMembership(ctx, db, room.ID, "v")
	if mv.IsCreator || mv.ActionPermission != permission.Member {
		t.Fatalf("second joiner must be member: %+v", mv)
	}
	if ok, _ := svc.JoinPublicGroup(ctx, v, room.ID); ok {
		t.Fatal("joining twice must report false")
	}

	if ok, err := svc.Leave(ctx, v, room.ID); err != nil || !ok {
		t.Fatalf("leave: ok=%v err=%v", ok, err)
	}
	if _, err := repo.GetMembership(ctx, db, room.ID, "v"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("left member must not be active, got %v", err)
	}

	if ok, err := svc.JoinPublicGroup(ctx, v, room.ID); err != nil || !ok {
		t.Fatalf("rejoin: ok=%v err=%v", ok, err)
	}
	mv, _ = repo.GetMembership(ctx, db, room.ID, "v")
	if mv.ActionPermission != permission.Member {
		t.Fatalf("rejoin must reset to member preset, got %d", mv.ActionPermission)
	}
	rows, _ := repo.CountMembershipRows(ctx, db, room.ID)
	if rows != 2 {
		t.Fatalf("expected 2 membership rows, got %d", rows)
	}
}

func TestJoinPublicGroup_ConcurrentSingleRow(t *testing.T) {
	db := newTestDB(t)
	svc := &MembershipService{DB: db}
	ctx := context.Background()
	owner := user(t, db, "owner", false)
	u := user(t, db, "u", false)
	room := emptyPublicGroup(t, svc)
	if _, err := svc.JoinPublicGroup(ctx, owner, room.ID); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	results := make([]bool, 6)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := svc.JoinPublicGroup(ctx, u, room.ID)
			if err != nil {
				t.Errorf("join %d: %v", i, err)
			}
			results[i] = ok
		}(i)
	}
	wg.Wait()
	wins := 0
	for _, ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one successful join, got %d", wins)
	}
	if n, _ := repo.CountActiveMembers(ctx, db, room.ID); n != 2 {
		t.Fatalf("expected 2 active members, got %d", n)
	}
}

func TestJoinPublicGroup_NonPublicAndClosed(t *testing.T) {
	db := newTestDB(t)
	svc := &MembershipService{DB: db}
	ctx := context.Background()
	user(t, db, "a", false)
	u := user(t, db, "u", false)
	priv := group(t, db, domain.RoomPrivateGroup, "a")
	pub := group(t, db, domain.RoomPublicGroup, "a")

	if ok, err := svc.JoinPublicGroup(ctx, u, priv.ID); err != nil || ok {
		t.Fatalf("private group join: ok=%v err=%v", ok, err)
	}
	if _, err := repo.CloseRoom(ctx, db, pub.ID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.JoinPublicGroup(ctx, u, pub.ID); !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("expected ErrRoomClosed, got %v", err)
	}
	if _, err := svc.JoinPublicGroup(ctx, u, "missing"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestRemoveCreator_ClosesLocksDeletes(t *testing.T) {
	db := newTestDB(t)
	svc := &MembershipService{DB: db}
	ctx := context.Background()
	a := user(t, db, "a", false)
	user(t, db, "b", false)
	user(t, db, "c", false)
	room := group(t, db, domain.RoomPrivateGroup, "a", "b", "c")

	ok, err := svc.RemoveMember(ctx, a, room.ID, "a")
	if err != nil || !ok {
		t.Fatalf("remove creator: ok=%v err=%v", ok, err)
	}
	got := mustRoom(t, db, room.ID)
	if !got.Closed || !got.ReadOnly || !got.Deleted {
		t.Fatalf("room must be closed, locked and deleted: %+v", got)
	}
	if ids := activeMembers(t, db, room.ID); len(ids) != 3 {
		t.Fatalf("memberships must be left untouched, got %v", ids)
	}
	if _, err := svc.RemoveMember(ctx, a, room.ID, "b"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("deleted room must read as not found, got %v", err)
	}
}

func TestRemoveMember(t *testing.T) {
	db := newTestDB(t)
	svc := &MembershipService{DB: db}
	ctx := context.Background()
	a := user(t, db, "a", false)
	b := user(t, db, "b", false)
	user(t, db, "c", false)
	room := group(t, db, domain.RoomPublicGroup, "a", "b", "c")

	if _, err := svc.RemoveMember(ctx, b, room.ID, "c"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if ok, err := svc.RemoveMember(ctx, a, room.ID, "c"); err != nil || !ok {
		t.Fatalf("remove: ok=%v err=%v", ok, err)
	}
	if ok, err := svc.RemoveMember(ctx, a, room.ID, "c"); err != nil || ok {
		t.Fatalf("second remove: ok=%v err=%v", ok, err)
	}
	if ok, err := svc.RemoveMember(ctx, a, room.ID, "ghost"); err != nil || ok {
		t.Fatalf("unknown target: ok=%v err=%v", ok, err)
	}

	chat, _, err := NewRoomService(db).GetOrCreatePrivateChat(ctx, a, "b")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RemoveMember(ctx, a, chat.ID, "b"); !errors.Is(err, ErrWrongRoomKind) {
		t.Fatalf("expected ErrWrongRoomKind, got %v", err)
	}
}

func TestAddMember(t *testing.T) {
	db := newTestDB(t)
	svc := &MembershipService{DB: db}
	ctx := context.Background()
	a := user(t, db, "a", false)
	b := user(t, db, "b", false)
	user(t, db, "c", false)
	room := group(t, db, domain.RoomPrivateGroup, "a", "b")

	if _, err := svc.AddMember(ctx, b, room.ID, "c"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.AddMember(ctx, a, room.ID, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if ok, err := svc.AddMember(ctx, a, room.ID, "c"); err != nil || !ok {
		t.Fatalf("add: ok=%v err=%v", ok, err)
	}
	if _, err := svc.AddMember(ctx, a, room.ID, "c"); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}

	// Admins may add members too.
	if _, err := repo.SetAdmin(ctx, db, room.ID, "b", true); err != nil {
		t.Fatal(err)
	}
	user(t, db, "d", false)
	if ok, err := svc.AddMember(ctx, b, room.ID, "d"); err != nil || !ok {
		t.Fatalf("admin add: ok=%v err=%v", ok, err)
	}

	if _, err := repo.CloseRoom(ctx, db, room.ID, false); err != nil {
		t.Fatal(err)
	}
	user(t, db, "e", false)
	if _, err := svc.AddMember(ctx, a, room.ID, "e"); !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("expected ErrRoomClosed, got %v", err)
	}
}

func TestAddMember_TicketStaffOnly(t *testing.T) {
	db := newTestDB(t)
	svc := &MembershipService{DB: db}
	rooms := NewRoomService(db)
	ctx := context.Background()
	c := user(t, db, "c", false)
	s1 := user(t, db, "s1", true)
	user(t, db, "s2", true)
	user(t, db, "x", false)
	ticket := seedTicket(t, rooms, "c", "s1")

	if _, err := svc.AddMember(ctx, c, ticket.ID, "s2"); !errors.Is(err, ErrStaffOnly) {
		t.Fatalf("customer add: expected ErrStaffOnly, got %v", err)
	}
	if _, err := svc.AddMember(ctx, s1, ticket.ID, "x"); !errors.Is(err, ErrStaffOnly) {
		t.Fatalf("non-staff target: expected ErrStaffOnly, got %v", err)
	}
	if ok, err := svc.AddMember(ctx, s1, ticket.ID, "s2"); err != nil || !ok {
		t.Fatalf("staff add: ok=%v err=%v", ok, err)
	}
	if _, err := svc.AddMember(ctx, s1, ticket.ID, "s2"); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestPromoteDemote_ResetToPreset(t *testing.T) {
	db := newTestDB(t)
	svc := &MembershipService{DB: db}
	ctx := context.Background()
	a := user(t, db, "a", false)
	b := user(t, db, "b", false)
	user(t, db, "c", false)
	room := group(t, db, domain.RoomPrivateGroup, "a", "b", "c")

	if _, err := svc.Promote(ctx, b, room.ID, "c"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.SetPermissions(ctx, a, room.ID, "b", []permission.Capability{permission.SendMessage}); err != nil {
		t.Fatal(err)
	}
	if ok, err := svc.Promote(ctx, a, room.ID, "b"); err != nil || !ok {
		t.Fatalf("promote: ok=%v err=%v", ok, err)
	}
	mb, _ := repo.GetMembership(ctx, db, room.ID, "b")
	if !mb.IsAdmin || mb.ActionPermission != permission.Admin {
		t.Fatalf("promotion must reset to the admin preset: %+v", mb)
	}
	if ok, _ := svc.Promote(ctx, a, room.ID, "b"); ok {
		t.Fatal("second promote must report false")
	}
	if ok, _ := svc.Promote(ctx, a, room.ID, "a"); ok {
		t.Fatal("the creator cannot be promoted")
	}
	if ok, err := svc.Demote(ctx, a, room.ID, "b"); err != nil || !ok {
		t.Fatalf("demote: ok=%v err=%v", ok, err)
	}
	mb, _ = repo.GetMembership(ctx, db, room.ID, "b")
	if mb.IsAdmin || mb.ActionPermission != permission.Member {
		t.Fatalf("demotion must reset to the member preset: %+v", mb)
	}
}

func TestLeave(t *testing.T) {
	db := newTestDB(t)
	svc := &MembershipService{DB: db}
	ctx := context.Background()
	user(t, db, "a", false)
	b := user(t, db, "b", false)
	out := user(t, db, "out", false)

	// The last member leaving closes the room.
	room := &domain.Room{Name: "solo", Kind: domain.RoomPublicGroup}
	if err := repo.CreateRoom(ctx, db, room, []domain.Membership{{UserID: "b", ActionPermission: permission.Member}}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Leave(ctx, out, room.ID); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	if ok, err := svc.Leave(ctx, b, room.ID); err != nil || !ok {
		t.Fatalf("leave: ok=%v err=%v", ok, err)
	}
	got := mustRoom(t, db, room.ID)
	if !got.Closed || got.Deleted {
		t.Fatalf("empty room must be closed but not deleted: %+v", got)
	}

	// The creator leaving cascades like a removal.
	g := group(t, db, domain.RoomPublicGroup, "a", "b")
	if ok, err := svc.Leave(ctx, authPrincipal("a"), g.ID); err != nil || !ok {
		t.Fatalf("creator leave: ok=%v err=%v", ok, err)
	}
	if got := mustRoom(t, db, g.ID); !got.Deleted || !got.ReadOnly {
		t.Fatalf("creator leave must close, lock and delete: %+v", got)
	}
}

func TestLeave_PrivateChatRejected(t *testing.T) {
	db := newTestDB(t)
	svc := &MembershipService{DB: db}
	rooms := NewRoomService(db)
	ctx := context.Background()
	a := user(t, db, "a", false)
	b := user(t, db, "b", false)

	chat, created, err := rooms.GetOrCreatePrivateChat(ctx, a, "b")
	if err != nil || !created {
		t.Fatalf("GetOrCreatePrivateChat: created=%v err=%v", created, err)
	}
	for _, p := range []string{a.ID, b.ID} {
		if ok, err := svc.Leave(ctx, authPrincipal(p), chat.ID); ok || !errors.Is(err, ErrWrongRoomKind) {
			t.Fatalf("leave by %s: ok=%v err=%v, want ErrWrongRoomKind", p, ok, err)
		}
	}
	if got := mustRoom(t, db, chat.ID); !got.Writable() {
		t.Fatalf("private chat must stay writable: %+v", got)
	}
	if n, _ := repo.CountActiveMembers(ctx, db, chat.ID); n != 2 {
		t.Fatalf("active members = %d, want 2", n)
	}

	again, created, err := rooms.GetOrCreatePrivateChat(ctx, b, "a")
	if err != nil {
		t.Fatalf("get-or-create after leave: %v", err)
	}
	if created || again.ID != chat.ID || again.Deleted {
		t.Fatalf("get-or-create after leave: id=%s created=%v deleted=%v", again.ID, created, again.Deleted)
	}
}

func TestLeave_Ticket(t *testing.T) {
	db := newTestDB(t)
	svc := &MembershipService{DB: db}
	ctx := context.Background()
	user(t, db, "a", false)
	b := user(t, db, "b", false)

	ticket := group(t, db, domain.RoomTicket, "a", "b")
	if ok, err := svc.Leave(ctx, b, ticket.ID); err != nil || !ok {
		t.Fatalf("ticket leave: ok=%v err=%v", ok, err)
	}
}

func TestSetPermissions(t *testing.T) {
	db := newTestDB(t)
	svc := &MembershipService{DB: db}
	ctx := context.Background()
	a := user(t, db, "a", false)
	b := user(t, db, "b", false)
	user(t, db, "c", false)
	room := group(t, db, domain.RoomPrivateGroup, "a", "b")

	if _, err := svc.SetPermissions(ctx, b, room.ID, "a", nil); !errors.Is(err, ErrCreatorOnly) {
		t.Fatalf("expected ErrCreatorOnly, got %v", err)
	}
	if _, err := svc.SetPermissions(ctx, a, room.ID, "a", nil); !errors.Is(err, ErrCreatorOnly) {
		t.Fatalf("creator cannot edit own composite, got %v", err)
	}
	if _, err := svc.SetPermissions(ctx, a, room.ID, "c", nil); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}

	set, err := svc.SetPermissions(ctx, a, room.ID, "b", []permission.Capability{permission.LockGroup, permission.SendMessage})
	if err != nil || set != permission.Encode(permission.LockGroup, permission.SendMessage) {
		t.Fatalf("set=%d err=%v", set, err)
	}
	m, err := svc.Permissions(ctx, b, room.ID)
	if err != nil || !m.ActionPermission.Has(permission.LockGroup) || m.ActionPermission.Has(permission.JoinGroup) {
		t.Fatalf("permissions view wrong: %+v err=%v", m, err)
	}

	set, err = svc.SetPermissions(ctx, a, room.ID, "b", nil)
	if err != nil || set != permission.NoPermission {
		t.Fatalf("empty flags: set=%d err=%v", set, err)
	}
	if _, err := svc.Permissions(ctx, authPrincipal("c"), room.ID); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}
