package engine

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// candidate is a pool entry. The profile is captured at enqueue time; its
// premium window cannot change while the user is Searching.
type candidate struct {
	user       UserID
	filter     Filter
	profile    Profile
	enqueuedAt time.Time
	ticket     uint64
}

// entitlements returns what c may do at now, not at enqueue time.
func (c *candidate) entitlements(now time.Time) Entitlements {
	return EntitlementsOf(c.profile, now)
}

// permitted reports whether c may still search with its filter at now.
func (c *candidate) permitted(now time.Time) bool {
	return c.entitlements(now).Permit(c.filter)
}

// before reports whether c is served ahead of o at now.
func (c *candidate) before(o *candidate, now time.Time) bool {
	if ct, ot := c.entitlements(now).Tier, o.entitlements(now).Tier; ct != ot {
		return ct > ot
	}
	if !c.enqueuedAt.Equal(o.enqueuedAt) {
		return c.enqueuedAt.Before(o.enqueuedAt)
	}
	return c.ticket < o.ticket
}

// compatible is the symmetric pairing rule at now.
func compatible(a, b *candidate, now time.Time) bool {
	if a.user == b.user {
		return false
	}
	if !a.permitted(now) || !b.permitted(now) {
		return false
	}
	if a.profile.Blocks(b.user) || b.profile.Blocks(a.user) {
		return false
	}
	return a.filter.Accepts(b.profile) && b.filter.Accepts(a.profile)
}

// pool holds Searching users. A user is present at most once.
type pool struct {
	mu      sync.Mutex
	members map[UserID]*candidate
	tickets uint64
}

func newPool() *pool {
	return &pool{members: make(map[UserID]*candidate)}
}

// add enqueues c with a fresh ticket. It reports false if the user is
// already present.
func (p *pool) add(c candidate) (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.members[c.user]; ok {
		return 0, false
	}
	p.tickets++
	c.ticket = p.tickets
	p.members[c.user] = &c
	return c.ticket, true
}

// remove drops user if its entry carries ticket.
func (p *pool) remove(user UserID, ticket uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(user, ticket)
}

func (p *pool) removeLocked(user UserID, ticket uint64) bool {
	c, ok := p.members[user]
	if !ok || c.ticket != ticket {
		return false
	}
	delete(p.members, user)
	return true
}

// requeue puts back a reserved candidate with its original ticket and time.
func (p *pool) requeue(c candidate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.members[c.user]; !ok {
		p.members[c.user] = &c
	}
}

func (p *pool) contains(user UserID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.members[user]
	return ok
}

func (p *pool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.members)
}

// orderedLocked returns the members in service order at now.
func (p *pool) orderedLocked(now time.Time) []*candidate {
	out := make([]*candidate, 0, len(p.members))
	for _, c := range p.members {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *candidate) int {
		switch {
		case a.before(b, now):
			return -1
		case b.before(a, now):
			return 1
		}
		return 0
	})
	return out
}

// reserve selects the next pair and removes both from the pool. The seeker is
// the first member in service order that has a compatible member after it;
// its partner is the first such member.
func (p *pool) reserve(now time.Time) (candidate, candidate, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	order := p.orderedLocked(now)
	for i, a := range order {
		for _, b := range order[i+1:] {
			if compatible(a, b, now) {
				delete(p.members, a.user)
				delete(p.members, b.user)
				return *a, *b, true
			}
		}
	}
	return candidate{}, candidate{}, false
}

// take reports whether both users are present with the given tickets and
// compatible, and removes them if so.
func (p *pool) take(a, b UserID, ta, tb uint64, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ca, okA := p.members[a]
	cb, okB := p.members[b]
	if !okA || !okB || ca.ticket != ta || cb.ticket != tb || !compatible(ca, cb, now) {
		return false
	}
	delete(p.members, a)
	delete(p.members, b)
	return true
}

// olderThan lists users enqueued at or before cutoff.
func (p *pool) olderThan(cutoff time.Time) []UserID {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []UserID
	for id, c := range p.members {
		if !c.enqueuedAt.After(cutoff) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// lapsed removes and returns the candidates whose filter is no longer
// permitted at now.
func (p *pool) lapsed(now time.Time) []candidate {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []candidate
	for id, c := range p.members {
		if !c.permitted(now) {
			out = append(out, *c)
			delete(p.members, id)
		}
	}
	slices.SortFunc(out, func(a, b candidate) int { return cmp.Compare(a.ticket, b.ticket) })
	return out
}
