package engine

import (
	"slices"
	"sync"
	"time"
)

// Session is a snapshot of one user's conversational state.
type Session struct {
	User         UserID
	State        State
	Step         ProfileStep
	EditAll      bool
	Filter       Filter
	Partner      UserID
	ConnectionID string
	Since        time.Time
	LastActivity time.Time

	// ticket identifies the pool entry that belongs to the current search.
	ticket uint64
}

// entry guards one user's session. Entries are never removed, so a pointer
// obtained from the registry stays the only lock for that user.
type entry struct {
	mu   sync.Mutex
	sess Session
}

type registry struct {
	mu      sync.Mutex
	entries map[UserID]*entry
}

func newRegistry() *registry {
	return &registry{entries: make(map[UserID]*entry)}
}

// get returns the entry for id, creating an Idle one if absent.
func (r *registry) get(id UserID) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		e = &entry{sess: Session{User: id, State: StateIdle}}
		r.entries[id] = e
	}
	return e
}

func (r *registry) lock(id UserID) *entry {
	e := r.get(id)
	e.mu.Lock()
	return e
}

// lockPair locks both users in ascending id order and returns their entries
// in argument order.
func (r *registry) lockPair(a, b UserID) (*entry, *entry) {
	ea, eb := r.get(a), r.get(b)
	if a < b {
		ea.mu.Lock()
		eb.mu.Lock()
	} else {
		eb.mu.Lock()
		ea.mu.Lock()
	}
	return ea, eb
}

func unlockPair(a, b *entry) {
	a.mu.Unlock()
	b.mu.Unlock()
}

// snapshot returns a copy of the session of id.
func (r *registry) snapshot(id UserID) Session {
	e := r.lock(id)
	defer e.mu.Unlock()
	return e.sess
}

func (r *registry) ids() []UserID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]UserID, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// view locks every known session in id order and returns copies taken at a
// single instant.
func (r *registry) view() map[UserID]Session {
	ids := r.ids()
	locked := make([]*entry, 0, len(ids))
	for _, id := range ids {
		e := r.get(id)
		e.mu.Lock()
		locked = append(locked, e)
	}
	out := make(map[UserID]Session, len(locked))
	for _, e := range locked {
		out[e.sess.User] = e.sess
	}
	for _, e := range locked {
		e.mu.Unlock()
	}
	return out
}

// reset returns s to Idle with every transient field cleared.
func (s *Session) reset(now time.Time) {
	*s = Session{User: s.User, State: StateIdle, Since: now, LastActivity: now}
}
