package engine

import (
	"context"
	"sync"
	"time"
)

// ProfileRepository persists profiles. A nil repository keeps profiles in
// memory only.
type ProfileRepository interface {
	LoadProfile(ctx context.Context, id UserID) (Profile, bool, error)
	SaveProfile(ctx context.Context, p Profile) error
	ListProfiles(ctx context.Context) ([]Profile, error)
}

// Snapshot is the persisted form of a Searching or Connected session.
type Snapshot struct {
	User         UserID    `json:"user_id"`
	State        State     `json:"state"`
	Filter       Filter    `json:"filter"`
	Partner      UserID    `json:"partner_id,omitempty"`
	ConnectionID string    `json:"connection_id,omitempty"`
	Since        time.Time `json:"since"`
	SavedAt      time.Time `json:"saved_at"`
}

// SnapshotStore keeps the last Searching/Connected state of each user so a
// restart within the grace period does not drop chats.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s Snapshot) error
	DeleteSnapshot(ctx context.Context, id UserID) error
	LoadSnapshots(ctx context.Context) ([]Snapshot, error)
}

// profileBook caches profiles in front of the repository. A profile is
// mutated only by the holder of its user's session lock.
type profileBook struct {
	mu    sync.RWMutex
	cache map[UserID]Profile
	repo  ProfileRepository
}

func newProfileBook(repo ProfileRepository) *profileBook {
	return &profileBook{cache: make(map[UserID]Profile), repo: repo}
}

func (b *profileBook) load(ctx context.Context, id UserID, now time.Time) (Profile, error) {
	b.mu.RLock()
	p, ok := b.cache[id]
	b.mu.RUnlock()
	if ok {
		return p.clone(), nil
	}
	if b.repo != nil {
		stored, found, err := b.repo.LoadProfile(ctx, id)
		if err != nil {
			return Profile{}, err
		}
		if found {
			b.put(stored)
			return stored.clone(), nil
		}
	}
	p = Profile{UserID: id, CreatedAt: now, UpdatedAt: now}
	b.put(p)
	return p.clone(), nil
}

func (b *profileBook) save(ctx context.Context, p Profile) error {
	if b.repo != nil {
		if err := b.repo.SaveProfile(ctx, p); err != nil {
			return err
		}
	}
	b.put(p)
	return nil
}

func (b *profileBook) put(p Profile) {
	b.mu.Lock()
	b.cache[p.UserID] = p.clone()
	b.mu.Unlock()
}

func (b *profileBook) peek(id UserID) (Profile, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.cache[id]
	return p.clone(), ok
}

func (b *profileBook) preload(ctx context.Context) (int, error) {
	if b.repo == nil {
		return 0, nil
	}
	list, err := b.repo.ListProfiles(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range list {
		b.put(p)
	}
	return len(list), nil
}

// Connection is an active pairing of two users.
type Connection struct {
	ID        string
	A         UserID
	B         UserID
	StartedAt time.Time
}

// Other returns the participant that is not u.
func (c Connection) Other(u UserID) UserID {
	if c.A == u {
		return c.B
	}
	return c.A
}

type connTable struct {
	mu sync.Mutex
	m  map[string]Connection
}

func (t *connTable) put(c Connection) {
	t.mu.Lock()
	t.m[c.ID] = c
	t.mu.Unlock()
}

func (t *connTable) take(id string) (Connection, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.m[id]
	delete(t.m, id)
	return c, ok
}

func (t *connTable) list() []Connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Connection, 0, len(t.m))
	for _, c := range t.m {
		out = append(out, c)
	}
	return out
}
