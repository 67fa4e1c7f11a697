package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/permission"
)

// newTestDB opens a private in-memory database. Without migrate arguments
// the full schema is migrated; pass models to migrate a subset.
func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
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
	// Shared-cache SQLite reports table locks instead of waiting; one
	// connection serializes writers the way a real server would.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db.Exec("PRAGMA foreign_keys=ON;")

	if len(migrate) == 0 {
		if err := AutoMigrate(db); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	} else if migrate[0] != nil {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

// newEmptyDB opens a database without any tables.
func newEmptyDB(t *testing.T) *gorm.DB {
	t.Helper()
	return newTestDB(t, nil)
}

func seedUser(t *testing.T, db *gorm.DB, id, username string, staff bool) {
	t.Helper()
	if err := UpsertUser(context.Background(), db, &domain.User{ID: id, Username: username, IsStaff: staff}); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func seedRoom(t *testing.T, db *gorm.DB, kind domain.RoomKind, creatorID string, memberIDs ...string) *domain.Room {
	t.Helper()
	room := &domain.Room{Name: "room", Kind: kind}
	members := []domain.Membership{{UserID: creatorID, IsCreator: true, ActionPermission: permission.Creator}}
	for _, id := range memberIDs {
		members = append(members, domain.Membership{UserID: id, ActionPermission: permission.Member})
	}
	if err := CreateRoom(context.Background(), db, room, members); err != nil {
		t.Fatalf("seed room: %v", err)
	}
	return room
}

// seedMessage inserts a TEXT message at a fixed offset from base so that
// ordering is deterministic.
func seedMessage(t *testing.T, db *gorm.DB, roomID, senderID string, base time.Time, i int) *domain.Message {
	t.Helper()
	m, err := GetMembership(context.Background(), db, roomID, senderID)
	if err != nil {
		t.Fatalf("sender membership: %v", err)
	}
	txt := fmt.Sprintf("m%02d", i)
	msg := &domain.Message{
		RoomID:       roomID,
		MembershipID: m.ID,
		SenderID:     senderID,
		Type:         domain.MessageText,
		Text:         &txt,
		CreatedAt:    base.Add(time.Duration(i) * time.Second),
	}
	if err := CreateMessage(context.Background(), db, msg); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return msg
}
