package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/permission"
	"github.com/tbourn/go-chat-rooms/internal/repo"
)

func seedTicket(t *testing.T, svc *RoomService, customer, staff string) *domain.Room {
	t.Helper()
	room := &domain.Room{Name: "ticket", Kind: domain.RoomTicket}
	err := repo.CreateRoom(context.Background(), svc.DB, room, []domain.Membership{
		{UserID: customer, IsCreator: true, ActionPermission: permission.Creator},
		{UserID: staff, ActionPermission: permission.Member},
	})
	if err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	return room
}

func TestCreateTicket_RoutesToLeastLoadedStaff(t *testing.T) {
	db := newTestDB(t)
	svc := NewRoomService(db)
	ctx := context.Background()

	c := user(t, db, "c", false)
	user(t, db, "s1", true)
	user(t, db, "s2", true)
	user(t, db, "other", false)
	for i := 0; i < 3; i++ {
		seedTicket(t, svc, "other", "s1")
	}
	seedTicket(t, svc, "other", "s2")

	room, err := svc.CreateTicket(ctx, c, "  my   printer ", "")
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if room.Name != "my printer" {
		t.Fatalf("name not normalized: %q", room.Name)
	}
	if room.Priority == nil || *room.Priority != domain.PriorityLow {
		t.Fatalf("expected LOW priority, got %v", room.Priority)
	}
	if got := activeMembers(t, db, room.ID); len(got) != 2 || got[0] != "c" || got[1] != "s2" {
		t.Fatalf("expected members [c s2], got %v", got)
	}
	m, err := repo.GetMembership(ctx, db, room.ID, "c")
	if err != nil || !m.IsCreator || m.ActionPermission != permission.Creator {
		t.Fatalf("customer membership wrong: %+v err=%v", m, err)
	}
}

func TestCreateTicket_Errors(t *testing.T) {
	db := newTestDB(t)
	svc := NewRoomService(db)
	ctx := context.Background()
	c := user(t, db, "c", false)

	if _, err := svc.CreateTicket(ctx, c, "help", ""); !errors.Is(err, ErrNoStaffAvailable) {
		t.Fatalf("expected ErrNoStaffAvailable, got %v", err)
	}
	if !errors.Is(ErrNoStaffAvailable, ErrUnavailable) {
		t.Fatal("ErrNoStaffAvailable must be of kind unavailable")
	}
	user(t, db, "s", true)
	if _, err := svc.CreateTicket(ctx, c, "   ", ""); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := svc.CreateTicket(ctx, c, strings.Repeat("x", 33), ""); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName for 33 runes, got %v", err)
	}
	if _, err := svc.CreateTicket(ctx, c, "help", "URGENT"); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
}

func TestCreateTicket_StaffDoesNotRouteToSelf(t *testing.T) {
	db := newTestDB(t)
	svc := NewRoomService(db)
	s := user(t, db, "s", true)

	if _, err := svc.CreateTicket(context.Background(), s, "help", ""); !errors.Is(err, ErrNoStaffAvailable) {
		t.Fatalf("expected ErrNoStaffAvailable, got %v", err)
	}
}

func TestPrivateChatKey_OrderIndependent(t *testing.T) {
	if PrivateChatKey("b", "a") != PrivateChatKey("a", "b") {
		t.Fatal("key must not depend on order")
	}
	if got := PrivateChatKey("a", "b"); got != "private:a:b" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestGetOrCreatePrivateChat(t *testing.T) {
	db := newTestDB(t)
	svc := NewRoomService(db)
	ctx := context.Background()
	a := user(t, db, "a", false)
	b := user(t, db, "b", false)

	if _, _, err := svc.GetOrCreatePrivateChat(ctx, a, "a"); !errors.Is(err, ErrSelfChat) {
		t.Fatalf("expected ErrSelfChat, got %v", err)
	}
	if _, _, err := svc.GetOrCreatePrivateChat(ctx, a, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	r1, created, err := svc.GetOrCreatePrivateChat(ctx, a, "b")
	if err != nil || !created {
		t.Fatalf("first call: created=%v err=%v", created, err)
	}
	if r1.Name != "b" || r1.Kind != domain.RoomPrivateChat {
		t.Fatalf("unexpected room %+v", r1)
	}
	r2, created, err := svc.GetOrCreatePrivateChat(ctx, b, "a")
	if err != nil || created {
		t.Fatalf("second call: created=%v err=%v", created, err)
	}
	if r2.ID != r1.ID {
		t.Fatalf("expected same room, got %s and %s", r1.ID, r2.ID)
	}
	ma, _ := repo.GetMembership(ctx, db, r1.ID, "a")
	mb, _ := repo.GetMembership(ctx, db, r1.ID, "b")
	if ma == nil || mb == nil || !ma.IsCreator || mb.IsCreator {
		t.Fatalf("memberships wrong: %+v %+v", ma, mb)
	}
	if ma.ActionPermission != permission.Member || mb.ActionPermission != permission.Member {
		t.Fatal("both private chat members hold the member preset")
	}
}

func TestGetOrCreatePrivateChat_ConcurrentCreatesOneRoom(t *testing.T) {
	db := newTestDB(t)
	svc := NewRoomService(db)
	ctx := context.Background()
	a := user(t, db, "a", false)
	b := user(t, db, "b", false)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor, contact := a, "b"
			if i%2 == 1 {
				actor, contact = b, "a"
			}
			r, _, err := svc.GetOrCreatePrivateChat(ctx, actor, contact)
			errs[i] = err
			if r != nil {
				ids[i] = r.ID
			}
		}(i)
	}
	wg.Wait()
	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("expected one room, got %v", ids)
		}
	}
	var n int64
	db.Model(&domain.Room{}).Where("kind = ?", domain.RoomPrivateChat).Count(&n)
	if n != 1 {
		t.Fatalf("expected 1 private chat row, got %d", n)
	}
}

func TestCreateGroup(t *testing.T) {
	db := newTestDB(t)
	svc := NewRoomService(db)
	ctx := context.Background()
	a := user(t, db, "a", false)
	user(t, db, "b", false)
	user(t, db, "c", false)

	if _, err := svc.CreateGroup(ctx, a, GroupInput{Name: "g", Kind: domain.RoomTicket}); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
	if _, err := svc.CreateGroup(ctx, a, GroupInput{Name: "g", Kind: domain.RoomPublicGroup, MemberIDs: []string{"b", "ghost"}}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	room, err := svc.CreateGroup(ctx, a, GroupInput{
		Name:      "Gophers",
		Kind:      domain.RoomPrivateGroup,
		MemberIDs: []string{"b", "a", "c", "b", ""},
	})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if got := activeMembers(t, db, room.ID); len(got) != 3 {
		t.Fatalf("expected 3 members, got %v", got)
	}
	v, err := svc.Get(ctx, a, room.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	creator, err := v.Creator(ctx)
	if err != nil || creator == nil || creator.User.ID != "a" || creator.Permission != permission.Creator {
		t.Fatalf("creator wrong: %+v err=%v", creator, err)
	}
	bv, _ := v.Member(ctx, "b")
	if bv == nil || bv.Role != domain.RoleMember || bv.Permission != permission.Member {
		t.Fatalf("member b wrong: %+v", bv)
	}
}

func TestGet_Visibility(t *testing.T) {
	db := newTestDB(t)
	svc := NewRoomService(db)
	ctx := context.Background()
	a := user(t, db, "a", false)
	out := user(t, db, "out", false)

	pub := group(t, db, domain.RoomPublicGroup, "a")
	priv := group(t, db, domain.RoomPrivateGroup, "a")

	if _, err := svc.Get(ctx, out, pub.ID); err != nil {
		t.Fatalf("public group should be visible: %v", err)
	}
	if _, err := svc.Get(ctx, out, priv.ID); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	if _, err := svc.Get(ctx, a, "missing"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if _, err := repo.CloseLockDelete(ctx, db, priv.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Get(ctx, a, priv.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("deleted room must read as not found, got %v", err)
	}
}

func TestRoomView_MemoizesMembers(t *testing.T) {
	db := newTestDB(t)
	svc := NewRoomService(db)
	ctx := context.Background()
	a := user(t, db, "a", false)
	ids := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		id := "m" + string(rune('a'+i))
		user(t, db, id, false)
		ids = append(ids, id)
	}
	room := group(t, db, domain.RoomPublicGroup, "a", ids...)
	if _, err := repo.SetAdmin(ctx, db, room.ID, "ma", true); err != nil {
		t.Fatal(err)
	}

	v, err := svc.Get(ctx, a, room.ID)
	if err != nil {
		t.Fatal(err)
	}
	n, err := v.CountMembers(ctx)
	if err != nil || n != 13 {
		t.Fatalf("CountMembers=%d err=%v", n, err)
	}
	some, _ := v.SomeMembers(ctx)
	if len(some) != someMembersCap {
		t.Fatalf("expected %d preview members, got %d", someMembersCap, len(some))
	}
	admins, _ := v.Admins(ctx)
	if len(admins) != 1 || admins[0].User.ID != "ma" || admins[0].Permission != permission.Admin {
		t.Fatalf("admins wrong: %+v", admins)
	}

	// Later membership changes are not visible through the same view.
	if _, err := repo.SoftDeleteMembership(ctx, db, room.ID, "mb"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := v.HasMember(ctx, "mb"); !ok {
		t.Fatal("view should serve the memoized member list")
	}

	// Mutating a returned slice does not leak into the view.
	all, _ := v.AllMembers(ctx)
	all[0].User.ID = "mutated"
	again, _ := v.AllMembers(ctx)
	if again[0].User.ID == "mutated" {
		t.Fatal("AllMembers must return a copy")
	}
}

func TestCloseTicket(t *testing.T) {
	db := newTestDB(t)
	svc := NewRoomService(db)
	ctx := context.Background()
	c := user(t, db, "c", false)
	s := user(t, db, "s", true)
	room := seedTicket(t, svc, "c", "s")

	if _, err := svc.CloseTicket(ctx, s, room.ID); !errors.Is(err, ErrCreatorOnly) {
		t.Fatalf("expected ErrCreatorOnly, got %v", err)
	}
	changed, err := svc.CloseTicket(ctx, c, room.ID)
	if err != nil || !changed {
		t.Fatalf("close: changed=%v err=%v", changed, err)
	}
	got := mustRoom(t, db, room.ID)
	if !got.Closed || !got.ReadOnly || got.ClosedAt == nil {
		t.Fatalf("ticket not closed+locked: %+v", got)
	}
	if _, err := svc.CloseTicket(ctx, c, room.ID); !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("expected ErrRoomClosed on second close, got %v", err)
	}
	// Closed tickets are frozen: Open is a no-op.
	opened, err := svc.Open(ctx, c, room.ID)
	if err != nil || opened {
		t.Fatalf("open on frozen ticket: opened=%v err=%v", opened, err)
	}
	if _, err := svc.UpdateTicket(ctx, c, room.ID, TicketUpdate{}); !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("expected ErrRoomClosed, got %v", err)
	}
}

func TestUpdateTicket(t *testing.T) {
	db := newTestDB(t)
	svc := NewRoomService(db)
	ctx := context.Background()
	c := user(t, db, "c", false)
	s := user(t, db, "s", true)
	room := seedTicket(t, svc, "c", "s")

	high := domain.PriorityHigh
	name := "renamed"
	if _, err := svc.UpdateTicket(ctx, s, room.ID, TicketUpdate{Name: &name}); !errors.Is(err, ErrCreatorOnly) {
		t.Fatalf("expected ErrCreatorOnly, got %v", err)
	}
	bad := domain.Priority("NOW")
	if _, err := svc.UpdateTicket(ctx, c, room.ID, TicketUpdate{Priority: &bad}); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
	got, err := svc.UpdateTicket(ctx, c, room.ID, TicketUpdate{Name: &name, Priority: &high})
	if err != nil {
		t.Fatalf("UpdateTicket: %v", err)
	}
	if got.Name != "renamed" || got.Priority == nil || *got.Priority != high {
		t.Fatalf("update not applied: %+v", got)
	}
}

func TestAssignStaff(t *testing.T) {
	db := newTestDB(t)
	svc := NewRoomService(db)
	ctx := context.Background()
	c := user(t, db, "c", false)
	s1 := user(t, db, "s1", true)
	user(t, db, "s2", true)
	user(t, db, "s3", true)
	room := seedTicket(t, svc, "c", "s1")
	seedTicket(t, svc, "c", "s3")

	if _, err := svc.AssignStaff(ctx, c, room.ID, ""); !errors.Is(err, ErrStaffOnly) {
		t.Fatalf("expected ErrStaffOnly, got %v", err)
	}
	if _, err := svc.AssignStaff(ctx, s1, room.ID, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	// Without a username the least-loaded staff user not on the ticket wins.
	got, err := svc.AssignStaff(ctx, s1, room.ID, "")
	if err != nil || got.ID != "s2" {
		t.Fatalf("expected s2, got %+v err=%v", got, err)
	}
	named, err := svc.AssignStaff(ctx, s1, room.ID, "s3")
	if err != nil || named.ID != "s3" {
		t.Fatalf("expected s3, got %+v err=%v", named, err)
	}
	if _, err := svc.AssignStaff(ctx, s1, room.ID, "s3"); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
	if _, err := svc.AssignStaff(ctx, s1, room.ID, ""); !errors.Is(err, ErrNoStaffAvailable) {
		t.Fatalf("expected ErrNoStaffAvailable, got %v", err)
	}
	if got := activeMembers(t, db, room.ID); len(got) != 4 {
		t.Fatalf("expected 4 members, got %v", got)
	}
}

func TestSetBlocked_PrivateChat(t *testing.T) {
	db := newTestDB(t)
	svc := NewRoomService(db)
	ctx := context.Background()
	a := user(t, db, "a", false)
	b := user(t, db, "b", false)
	out := user(t, db, "out", false)
	room, _, err := svc.GetOrCreatePrivateChat(ctx, a, "b")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.SetBlocked(ctx, out, room.ID, true); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	if ok, err := svc.SetBlocked(ctx, b, room.ID, true); err != nil || !ok {
		t.Fatalf("block: ok=%v err=%v", ok, err)
	}
	if ok, _ := svc.SetBlocked(ctx, a, room.ID, true); ok {
		t.Fatal("second block must report no change")
	}
	if ok, err := svc.SetBlocked(ctx, a, room.ID, false); err != nil || !ok {
		t.Fatalf("unblock: ok=%v err=%v", ok, err)
	}

	g := group(t, db, domain.RoomPublicGroup, "a")
	if _, err := svc.SetBlocked(ctx, a, g.ID, true); !errors.Is(err, ErrWrongRoomKind) {
		t.Fatalf("expected ErrWrongRoomKind, got %v", err)
	}
}

func TestGroupLifecycle_CapabilityChecks(t *testing.T) {
	db := newTestDB(t)
	svc := NewRoomService(db)
	ctx := context.Background()
	a := user(t, db, "a", false)
	b := user(t, db, "b", false)
	room := group(t, db, domain.RoomPrivateGroup, "a", "b")

	if _, err := svc.SetGroupLocked(ctx, b, room.ID, true); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.CloseGroup(ctx, b, room.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	name := "x"
	if _, err := svc.UpdateGroup(ctx, b, room.ID, GroupUpdate{Name: &name}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if ok, err := svc.SetGroupLocked(ctx, a, room.ID, true); err != nil || !ok {
		t.Fatalf("lock: ok=%v err=%v", ok, err)
	}
	if ok, err := svc.SetGroupLocked(ctx, a, room.ID, false); err != nil || !ok {
		t.Fatalf("unlock: ok=%v err=%v", ok, err)
	}
	photo := "rooms/p.png"
	updated, err := svc.UpdateGroup(ctx, a, room.ID, GroupUpdate{Name: &name, Photo: &photo})
	if err != nil || updated.Name != "x" || updated.Photo == nil || *updated.Photo != photo {
		t.Fatalf("update: %+v err=%v", updated, err)
	}

	if ok, err := svc.CloseGroup(ctx, a, room.ID); err != nil || !ok {
		t.Fatalf("close: ok=%v err=%v", ok, err)
	}
	got := mustRoom(t, db, room.ID)
	if !got.Closed || got.ReadOnly {
		t.Fatalf("group close must not lock: %+v", got)
	}
	if _, err := svc.UpdateGroup(ctx, a, room.ID, GroupUpdate{Name: &name}); !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("expected ErrRoomClosed on frozen group, got %v", err)
	}
	if ok, _ := svc.SetGroupLocked(ctx, a, room.ID, true); ok {
		t.Fatal("lock on frozen group must be a no-op")
	}
	if ok, _ := svc.Open(ctx, a, room.ID); ok {
		t.Fatal("open on frozen group must be a no-op")
	}
}

func TestOpen_PrivateChatIsNeverFrozen(t *testing.T) {
	db := newTestDB(t)
	svc := NewRoomService(db)
	ctx := context.Background()
	a := user(t, db, "a", false)
	b := user(t, db, "b", false)
	room, _, _ := svc.GetOrCreatePrivateChat(ctx, a, "b")
	if _, err := repo.CloseRoom(ctx, db, room.ID, true); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Open(ctx, b, room.ID); !errors.Is(err, ErrCreatorOnly) {
		t.Fatalf("expected ErrCreatorOnly, got %v", err)
	}
	if ok, err := svc.Open(ctx, a, room.ID); err != nil || !ok {
		t.Fatalf("open: ok=%v err=%v", ok, err)
	}
	got := mustRoom(t, db, room.ID)
	if got.Closed || got.ReadOnly || got.ClosedAt != nil {
		t.Fatalf("room not reopened: %+v", got)
	}
}

func TestListForUser_Defaults(t *testing.T) {
	db := newTestDB(t)
	svc := NewRoomService(db)
	ctx := context.Background()
	a := user(t, db, "a", false)
	loner := user(t, db, "loner", false)
	for i := 0; i < 3; i++ {
		group(t, db, domain.RoomPublicGroup, "a")
	}

	items, total, err := svc.ListForUser(ctx, a, 0, 0)
	if err != nil || total != 3 || len(items) != 3 {
		t.Fatalf("items=%d total=%d err=%v", len(items), total, err)
	}
	items, total, err = svc.ListForUser(ctx, a, 2, 2)
	if err != nil || total != 3 || len(items) != 1 {
		t.Fatalf("page 2: items=%d total=%d err=%v", len(items), total, err)
	}
	items, total, err = svc.ListForUser(ctx, loner, 1, 20)
	if err != nil || total != 0 || items == nil || len(items) != 0 {
		t.Fatalf("empty: items=%v total=%d err=%v", items, total, err)
	}
}

func TestTopAndSearchPublicGroups(t *testing.T) {
	db := newTestDB(t)
	svc := NewRoomService(db)
	ctx := context.Background()
	a := user(t, db, "a", false)
	user(t, db, "b", false)
	user(t, db, "c", false)

	gophers, _ := svc.CreateGroup(ctx, a, GroupInput{Name: "Gophers of Berlin", Kind: domain.RoomPublicGroup, MemberIDs: []string{"b", "c"}})
	runners, _ := svc.CreateGroup(ctx, a, GroupInput{Name: "Straße runners", Kind: domain.RoomPublicGroup})
	_, _ = svc.CreateGroup(ctx, a, GroupInput{Name: "Gophers secret", Kind: domain.RoomPrivateGroup})

	top, err := svc.TopPublicGroups(ctx, 10)
	if err != nil || len(top) != 2 || top[0].ID != gophers.ID {
		t.Fatalf("top: %+v err=%v", top, err)
	}

	if _, err := svc.SearchPublicGroups(ctx, "  ", 5); !errors.Is(err, ErrInvalidSearchQuery) {
		t.Fatalf("expected ErrInvalidSearchQuery, got %v", err)
	}
	hits, err := svc.SearchPublicGroups(ctx, "goph", 5)
	if err != nil || len(hits) != 1 || hits[0].ID != gophers.ID {
		t.Fatalf("prefix search: %+v err=%v", hits, err)
	}
	hits, err = svc.SearchPublicGroups(ctx, "STRASSE", 5)
	if err != nil || len(hits) != 1 || hits[0].ID != runners.ID {
		t.Fatalf("folded search: %+v err=%v", hits, err)
	}
	hits, err = svc.SearchPublicGroups(ctx, "secret", 5)
	if err != nil || len(hits) != 0 {
		t.Fatalf("private groups must not be listed: %+v err=%v", hits, err)
	}
}
