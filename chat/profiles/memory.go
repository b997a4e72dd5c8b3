// Package profiles implements engine.ProfileRepository on top of Postgres and
// in process memory.
package profiles

import (
	"context"
	"slices"
	"sync"

	"github.com/m3rciful/tandembot/chat/engine"
)

// Memory keeps profiles in a map. Data is lost on restart.
type Memory struct {
	mu       sync.RWMutex
	profiles map[engine.UserID]engine.Profile
}

func NewMemory() *Memory {
	return &Memory{profiles: make(map[engine.UserID]engine.Profile)}
}

func (m *Memory) LoadProfile(_ context.Context, id engine.UserID) (engine.Profile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	p.Blocklist = slices.Clone(p.Blocklist)
	return p, ok, nil
}

func (m *Memory) SaveProfile(_ context.Context, p engine.Profile) error {
	p.Blocklist = slices.Clone(p.Blocklist)
	m.mu.Lock()
	m.profiles[p.UserID] = p
	m.mu.Unlock()
	return nil
}

func (m *Memory) ListProfiles(context.Context) ([]engine.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		p.Blocklist = slices.Clone(p.Blocklist)
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b engine.Profile) int {
		switch {
		case a.UserID < b.UserID:
			return -1
		case a.UserID > b.UserID:
			return 1
		}
		return 0
	})
	return out, nil
}
