package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-rooms/internal/auth"
	"github.com/tbourn/go-chat-rooms/internal/config"
	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/http/middleware"
	"github.com/tbourn/go-chat-rooms/internal/presence"
	"github.com/tbourn/go-chat-rooms/internal/realtime"
	"github.com/tbourn/go-chat-rooms/internal/repo"
	"github.com/tbourn/go-chat-rooms/internal/services"
)

// ---------- test helpers ----------

// headerTestUser carries the caller id in tests; the test router turns it
// into a principal the way Authenticate would.
const headerTestUser = "X-Test-User"

func init() { gin.SetMode(gin.TestMode) }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
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

// memBlobs is an in-memory blob store.
type memBlobs struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func (m *memBlobs) Put(_ context.Context, key string, r io.Reader) (int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objs == nil {
		m.objs = make(map[string][]byte)
	}
	m.objs[key] = b
	return int64(len(b)), nil
}

func (m *memBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objs, key)
	return nil
}

func (m *memBlobs) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objs)
}

// fakeThumbs records enqueued uploads.
type fakeThumbs struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeThumbs) EnqueueThumbnail(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return nil
}

// testEnv is a fully wired handler set on a fresh database.
type testEnv struct {
	db       *gorm.DB
	hub      *realtime.Hub
	presence *presence.Memory
	blobs    *memBlobs
	thumbs   *fakeThumbs
	verifier *auth.Verifier
	h        *Handlers
	r        *gin.Engine
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	hub := realtime.NewHub()
	pres := presence.NewMemory(time.Minute)
	blobs := &memBlobs{}
	thumbs := &fakeThumbs{}
	filter := services.NewWordFilter("darn")

	v, err := auth.NewVerifier(config.AuthConfig{JWTSecret: "test-secret-test-secret-test-secret", Issuer: "chat-test", TokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	h := New(Deps{
		Rooms:      services.NewRoomService(db),
		Members:    &services.MembershipService{DB: db},
		Messages:   &services.MessageService{DB: db, Presence: pres, Notifier: hub, Filter: filter, MaxTextRunes: 500},
		Uploads:    &services.UploadService{DB: db, Blobs: blobs, Thumbnails: thumbs, MaxBytes: 1 << 10},
		Predefined: &services.PredefinedService{DB: db, Filter: filter},
		Reports:    &services.ReportService{DB: db},
		Hub:        hub,
		Presence:   pres,
		Limiter:    middleware.NewRateLimiter(100, 100, middleware.KeyByUserOrIP()),
		Verifier:   v,
		SyncUser: func(ctx context.Context, p auth.Principal) error {
			return repo.UpsertUser(ctx, db, &domain.User{ID: p.ID, Username: p.Username, IsStaff: p.IsStaff})
		},
		Upgrader:          NewUpgrader(nil),
		HeartbeatInterval: time.Millisecond,
		StreamKeepAlive:   50 * time.Millisecond,
	})

	env := &testEnv{db: db, hub: hub, presence: pres, blobs: blobs, thumbs: thumbs, verifier: v, h: h}
	env.r = env.router()
	return env
}

// router mounts the handlers behind a stub authentication step.
func (e *testEnv) router() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/ws/chat/:room_id/", e.h.ChatSocket)

	api := r.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		id := c.GetHeader(headerTestUser)
		if id == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		u, err := repo.GetUser(c.Request.Context(), e.db, id)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		middleware.SetPrincipal(c, auth.Principal{ID: u.ID, Username: u.Username, IsStaff: u.IsStaff})
		c.Next()
	})
	api.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{},
		func(ctx context.Context, userID, roomID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, e.db, userID, roomID, key, now)
			if errors.Is(err, repo.ErrNotFound) {
				return false, nil
			}
			return rec != nil, err
		}))

	h := e.h
	api.GET("/rooms", h.ListRooms)
	api.POST("/rooms/tickets", h.CreateTicket)
	api.POST("/rooms/private", h.CreatePrivateChat)
	api.POST("/rooms/groups", h.CreateGroup)
	api.GET("/rooms/top", h.TopGroups)
	api.GET("/rooms/search", h.SearchGroups)
	api.GET("/rooms/:room_id", h.GetRoom)
	api.PATCH("/rooms/:room_id/ticket", h.UpdateTicket)
	api.PATCH("/rooms/:room_id/group", h.UpdateGroup)
	api.POST("/rooms/:room_id/close", h.CloseRoom)
	api.POST("/rooms/:room_id/lock", h.LockRoom)
	api.POST("/rooms/:room_id/unlock", h.UnlockRoom)
	api.POST("/rooms/:room_id/open", h.OpenRoom)
	api.POST("/rooms/:room_id/staff", h.AssignStaff)

	api.GET("/rooms/:room_id/members", h.ListMembers)
	api.POST("/rooms/:room_id/members", h.AddMember)
	api.DELETE("/rooms/:room_id/members/:user_id", h.RemoveMember)
	api.POST("/rooms/:room_id/members/:user_id/promote", h.PromoteMember)
	api.POST("/rooms/:room_id/members/:user_id/demote", h.DemoteMember)
	api.PUT("/rooms/:room_id/members/:user_id/permissions", h.SetMemberPermissions)
	api.GET("/rooms/:room_id/permissions", h.MyPermissions)
	api.POST("/rooms/:room_id/join", h.JoinGroup)
	api.POST("/rooms/:room_id/leave", h.LeaveRoom)

	api.POST("/rooms/:room_id/messages", h.PostMessage)
	api.GET("/rooms/:room_id/messages", h.ListMessages)
	api.POST("/rooms/:room_id/seen", h.MarkSeen)
	api.GET("/rooms/:room_id/offset", h.MessageOffset)
	api.GET("/rooms/:room_id/reports", h.ListReports)
	api.GET("/unread", h.UnreadSummary)
	api.GET("/unread/stream", h.UnreadStream)

	api.POST("/uploads", h.UploadFile)
	api.GET("/uploads/:upload_id", h.GetUpload)
	api.GET("/predefined", h.ListPredefined)
	api.POST("/predefined", h.CreatePredefined)
	api.GET("/predefined/:id", h.GetPredefined)
	api.PUT("/predefined/:id", h.UpdatePredefined)
	api.DELETE("/predefined/:id", h.DeletePredefined)
	api.POST("/messages/:message_id/report", h.ReportMessage)
	return r
}

// user seeds a user row and returns the matching principal.
func (e *testEnv) user(t *testing.T, id string, staff bool) auth.Principal {
	t.Helper()
	if err := repo.UpsertUser(context.Background(), e.db, &domain.User{ID: id, Username: id, IsStaff: staff}); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return auth.Principal{ID: id, Username: id, IsStaff: staff}
}

// do performs a JSON request as user (empty means anonymous).
func (e *testEnv) do(t *testing.T, method, path, user string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(headerTestUser, user)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

// createGroup creates a group through the API and returns its id.
func (e *testEnv) createGroup(t *testing.T, owner string, kind domain.RoomKind, members ...string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/rooms/groups", owner, CreateGroupRequest{Name: "Gophers", Type: kind, Members: members})
	if w.Code != http.StatusCreated {
		t.Fatalf("create group: %d %s", w.Code, w.Body.String())
	}
	var room domain.Room
	decode(t, w, &room)
	return room.ID
}

// post sends a text message and returns the stored view.
func (e *testEnv) post(t *testing.T, user, roomID, text string) domain.MessageView {
	t.Helper()
	w := e.do(t, http.MethodPost, "/rooms/"+roomID+"/messages", user, PostMessageRequest{Text: text})
	if w.Code != http.StatusCreated {
		t.Fatalf("post message: %d %s", w.Code, w.Body.String())
	}
	var v domain.MessageView
	decode(t, w, &v)
	return v
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

// expectError asserts status and reason code of an error envelope.
func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, reason string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status: got %d want %d (%s)", w.Code, status, w.Body.String())
	}
	var er ErrorResponse
	decode(t, w, &er)
	if er.Reason != reason {
		t.Fatalf("reason: got %q want %q", er.Reason, reason)
	}
}

func contains(s, sub string) bool { return strings.Contains(s, sub) }
