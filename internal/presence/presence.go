// Package presence tracks which users are connected to each room.
//
// Entries carry an expiry. Live connections refresh theirs with Heartbeat,
// so a process that dies without running its disconnect path leaves a ghost
// that disappears after at most one TTL.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Tracker is the presence set contract used by the realtime layer and the
// message ledger.
type Tracker interface {
	// Join marks userID online in roomID.
	Join(ctx context.Context, roomID, userID string) error
	// Leave removes userID from roomID.
	Leave(ctx context.Context, roomID, userID string) error
	// Heartbeat extends the expiry of a live entry.
	Heartbeat(ctx context.Context, roomID, userID string) error
	// Online returns the sorted ids currently present in roomID.
	Online(ctx context.Context, roomID string) ([]string, error)
	// Count returns len(Online).
	Count(ctx context.Context, roomID string) (int, error)
}

// Memory is a process-local Tracker. It is safe for concurrent use.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	rooms map[string]map[string]time.Time // room -> user -> expiry
}

// NewMemory returns an empty in-memory tracker.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &Memory{ttl: ttl, now: time.Now, rooms: make(map[string]map[string]time.Time)}
}

func (m *Memory) Join(_ context.Context, roomID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.rooms[roomID]
	if set == nil {
		set = make(map[string]time.Time)
		m.rooms[roomID] = set
	}
	set[userID] = m.now().Add(m.ttl)
	return nil
}

func (m *Memory) Leave(_ context.Context, roomID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set := m.rooms[roomID]; set != nil {
		delete(set, userID)
		if len(set) == 0 {
			delete(m.rooms, roomID)
		}
	}
	return nil
}

// Heartbeat is a no-op for users that already expired or left.
func (m *Memory) Heartbeat(_ context.Context, roomID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if set := m.rooms[roomID]; set != nil {
		if exp, ok := set[userID]; ok && exp.After(now) {
			set[userID] = now.Add(m.ttl)
		}
	}
	return nil
}

func (m *Memory) Online(_ context.Context, roomID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	set := m.rooms[roomID]
	out := make([]string, 0, len(set))
	for uid, exp := range set {
		if !exp.After(now) {
			delete(set, uid)
			continue
		}
		out = append(out, uid)
	}
	if set != nil && len(set) == 0 {
		delete(m.rooms, roomID)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) Count(ctx context.Context, roomID string) (int, error) {
	ids, err := m.Online(ctx, roomID)
	return len(ids), err
}

var _ Tracker = (*Memory)(nil)
