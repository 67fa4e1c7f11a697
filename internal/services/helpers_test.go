package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-rooms/internal/auth"
	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/permission"
	"github.com/tbourn/go-chat-rooms/internal/repo"
)

// ---------- test helpers ----------

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// user seeds a user row and returns the matching principal.
func user(t *testing.T, db *gorm.DB, id string, staff bool) auth.Principal {
	t.Helper()
	p := auth.Principal{ID: id, Username: id, IsStaff: staff}
	if err := repo.UpsertUser(context.Background(), db, &domain.User{ID: id, Username: id, IsStaff: staff}); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return p
}

func authPrincipal(id string) auth.Principal {
	return auth.Principal{ID: id, Username: id}
}

// group seeds a group owned by creator with the given members.
func group(t *testing.T, db *gorm.DB, kind domain.RoomKind, creator string, members ...string) *domain.Room {
	t.Helper()
	room := &domain.Room{Name: "group", Kind: kind}
	ms := []domain.Membership{{UserID: creator, IsCreator: true, ActionPermission: permission.Creator}}
	for _, id := range members {
		ms = append(ms, domain.Membership{UserID: id, ActionPermission: permission.Member})
	}
	if err := repo.CreateRoom(context.Background(), db, room, ms); err != nil {
		t.Fatalf("seed room: %v", err)
	}
	return room
}

func mustRoom(t *testing.T, db *gorm.DB, id string) domain.Room {
	t.Helper()
	var r domain.Room
	if err := db.Where("id = ?", id).First(&r).Error; err != nil {
		t.Fatalf("load room: %v", err)
	}
	return r
}

func activeMembers(t *testing.T, db *gorm.DB, roomID string) []string {
	t.Helper()
	ids, err := repo.ActiveMemberIDs(context.Background(), db, roomID)
	if err != nil {
		t.Fatalf("active members: %v", err)
	}
	return ids
}

// fakeNotifier records every publish.
type fakeNotifier struct {
	mu       sync.Mutex
	messages []domain.MessageView
	typing   []string
	online   []string
	notices  []string
	unread   map[string][][]domain.UnreadEntry
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{unread: make(map[string][][]domain.UnreadEntry)}
}

func (f *fakeNotifier) PublishMessage(_ string, m domain.MessageView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, m)
}

func (f *fakeNotifier) PublishTyping(roomID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, roomID+"/"+userID)
}

func (f *fakeNotifier) PublishOnline(roomID string, ids []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online = append(f.online, roomID+"/"+strings.Join(ids, ","))
}

func (f *fakeNotifier) PublishNotice(roomID, code, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, roomID+"/"+code+"/"+msg)
}

func (f *fakeNotifier) PublishUnread(userID string, entries []domain.UnreadEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unread[userID] = append(f.unread[userID], entries)
}

// pushes counts the unread summaries sent to userID.
func (f *fakeNotifier) pushes(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.unread[userID])
}

// lastUnread returns the unread count of roomID in the latest push to
// userID, and whether userID received any push.
func (f *fakeNotifier) lastUnread(userID, roomID string) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pushes := f.unread[userID]
	if len(pushes) == 0 {
		return 0, false
	}
	for _, e := range pushes[len(pushes)-1] {
		if e.RoomID == roomID {
			return e.Unread, true
		}
	}
	return 0, true
}

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
