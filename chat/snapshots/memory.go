package snapshots

import (
	"context"
	"sync"
	"time"

	"github.com/m3rciful/tandembot/chat/engine"
)

type memoryEntry struct {
	snap      engine.Snapshot
	expiresAt time.Time
}

// Memory is a process-local SnapshotStore. It only helps when the engine is
// rebuilt inside the same process, which is what tests and the memory storage
// mode do.
type Memory struct {
	mu  sync.Mutex
	m   map[engine.UserID]memoryEntry
	ttl time.Duration
	now func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{m: make(map[engine.UserID]memoryEntry), ttl: ttl, now: time.Now}
}

// SaveSnapshot implements engine.SnapshotStore.
func (s *Memory) SaveSnapshot(_ context.Context, snap engine.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[snap.User] = memoryEntry{snap: snap, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// DeleteSnapshot implements engine.SnapshotStore.
func (s *Memory) DeleteSnapshot(_ context.Context, id engine.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
	return nil
}

// LoadSnapshots returns the snapshots that have not expired.
func (s *Memory) LoadSnapshots(context.Context) ([]engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := make([]engine.Snapshot, 0, len(s.m))
	for id, e := range s.m {
		if s.ttl > 0 && now.After(e.expiresAt) {
			delete(s.m, id)
			continue
		}
		out = append(out, e.snap)
	}
	return out, nil
}
