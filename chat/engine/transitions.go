package engine

import (
	"context"
	"fmt"
	"slices"
)

// lockSession locks user and, while user is connected, its partner too. The
// partner lock is taken in id order, so the user lock is dropped and retaken
// when the partner id is discovered.
func (e *Engine) lockSession(user UserID, kind EventKind) (self, partner *entry, err error) {
	for {
		self = e.reg.lock(user)
		if self.sess.State != StateConnected {
			if p := self.sess.Partner; p != 0 {
				st := self.sess.State
				self.mu.Unlock()
				return nil, nil, rejectf(ErrInvariantViolation, user, st, kind, "partner %d set outside of a connection", p)
			}
			return self, nil, nil
		}
		other := self.sess.Partner
		self.mu.Unlock()

		self, partner = e.reg.lockPair(user, other)
		if self.sess.State == StateConnected && self.sess.Partner == other {
			if ps := partner.sess; ps.State != StateConnected || ps.Partner != user {
				unlockPair(self, partner)
				return nil, nil, rejectf(ErrInvariantViolation, user, StateConnected, kind,
					"partner %d is %s with partner %d", other, ps.State, ps.Partner)
			}
			return self, partner, nil
		}
		// The connection changed while no lock was held; start over.
		unlockPair(self, partner)
	}
}

func unlockSession(self, partner *entry) {
	if partner != nil {
		partner.mu.Unlock()
	}
	self.mu.Unlock()
}

// loadActive loads the profile of a user and rejects blocked users.
func (e *Engine) loadActive(ctx context.Context, s *Session, kind EventKind) (Profile, error) {
	prof, err := e.profiles.load(ctx, s.User, e.now())
	if err != nil {
		return Profile{}, fmt.Errorf("load profile %d: %w", s.User, err)
	}
	if prof.Blocked {
		return prof, reject(ErrUserBlocked, s.User, s.State, kind)
	}
	return prof, nil
}

// teardownLocked ends the connection between self and partner. Both locks
// must be held. Only the partner is notified; cause is reported to observers.
func (e *Engine) teardownLocked(ctx context.Context, self, partner *entry, cause, partnerReason Reason) []notice {
	now := e.now()
	conn, ok := e.conns.take(self.sess.ConnectionID)
	if !ok {
		conn = Connection{ID: self.sess.ConnectionID, A: self.sess.User, B: partner.sess.User, StartedAt: self.sess.Since}
	}
	self.sess.reset(now)
	partner.sess.reset(now)
	e.forget(ctx, self.sess.User)
	e.forget(ctx, partner.sess.User)
	return []notice{
		{kind: noticeDisconnected, user: partner.sess.User, reason: partnerReason},
		{kind: noticeClosed, conn: conn, reason: cause},
	}
}

// connectLocked pairs a and b. Both locks must be held and neither may be
// left in the pool.
func (e *Engine) connectLocked(ctx context.Context, a, b *entry, conn Connection) []notice {
	now := e.now()
	for _, pair := range [][2]*entry{{a, b}, {b, a}} {
		s := &pair[0].sess
		*s = Session{
			User:         s.User,
			State:        StateConnected,
			Partner:      pair[1].sess.User,
			ConnectionID: conn.ID,
			Since:        conn.StartedAt,
			LastActivity: now,
		}
	}
	e.conns.put(conn)
	e.remember(ctx, a.sess)
	e.remember(ctx, b.sess)
	return []notice{
		{kind: noticeMatched, user: conn.A, other: conn.B},
		{kind: noticeOpened, conn: conn},
	}
}

func (e *Engine) startProfile(ctx context.Context, user UserID) (Result, []notice, error) {
	self, partner, err := e.lockSession(user, EventStartProfile)
	if err != nil {
		return Result{User: user}, nil, err
	}
	defer unlockSession(self, partner)

	s := &self.sess
	res := Result{User: user, From: s.State}
	prof, err := e.loadActive(ctx, s, EventStartProfile)
	if err != nil {
		return res, nil, err
	}
	var out []notice
	switch s.State {
	case StateIdle:
	case StateConnected:
		res.Partner = s.Partner
		out = e.teardownLocked(ctx, self, partner, ReasonProfileEdit, ReasonProfileEdit)
	default:
		return res, nil, reject(ErrInvalidTransition, user, s.State, EventStartProfile)
	}

	now := e.now()
	missing := prof.Missing()
	s.reset(now)
	s.State = StateAwaitingProfile
	s.EditAll = len(missing) == 0
	s.Step = StepLanguage
	if !s.EditAll {
		s.Step = missing[0]
	}
	res.To, res.Step = s.State, s.Step
	return res, out, nil
}

func (e *Engine) submitField(ctx context.Context, user UserID, value string) (Result, []notice, error) {
	self := e.reg.lock(user)
	defer self.mu.Unlock()

	s := &self.sess
	res := Result{User: user, From: s.State}
	prof, err := e.loadActive(ctx, s, EventSubmitProfileField)
	if err != nil {
		return res, nil, err
	}
	if s.State != StateAwaitingProfile {
		return res, nil, reject(ErrInvalidTransition, user, s.State, EventSubmitProfileField)
	}
	if err := prof.applyField(s.Step, value); err != nil {
		return res, nil, rejectf(ErrInvalidField, user, s.State, EventSubmitProfileField, "%s: %v", s.Step, err)
	}
	now := e.now()
	prof.UpdatedAt = now
	if err := e.profiles.save(ctx, prof); err != nil {
		return res, nil, fmt.Errorf("save profile %d: %w", user, err)
	}

	if next := nextStep(prof, s.Step, s.EditAll); next != StepNone {
		s.Step = next
		s.LastActivity = now
	} else {
		s.reset(now)
	}
	res.To, res.Step = s.State, s.Step
	return res, nil, nil
}

// nextStep returns the step after cur, skipping filled fields unless every
// field is being edited.
func nextStep(p Profile, cur ProfileStep, editAll bool) ProfileStep {
	i := slices.Index(profileSteps, cur)
	for _, step := range profileSteps[i+1:] {
		if editAll || !p.has(step) {
			return step
		}
	}
	return StepNone
}

func (e *Engine) cancelProfile(ctx context.Context, user UserID) (Result, []notice, error) {
	self := e.reg.lock(user)
	defer self.mu.Unlock()

	s := &self.sess
	res := Result{User: user, From: s.State}
	if _, err := e.loadActive(ctx, s, EventCancelProfile); err != nil {
		return res, nil, err
	}
	if s.State != StateAwaitingProfile {
		return res, nil, reject(ErrInvalidTransition, user, s.State, EventCancelProfile)
	}
	s.reset(e.now())
	res.To = s.State
	return res, nil, nil
}

func (e *Engine) requestSearch(ctx context.Context, user UserID, f Filter) (Result, []notice, error) {
	self := e.reg.lock(user)
	defer self.mu.Unlock()

	s := &self.sess
	res := Result{User: user, From: s.State}
	prof, err := e.loadActive(ctx, s, EventRequestSearch)
	if err != nil {
		return res, nil, err
	}
	switch s.State {
	case StateIdle:
	case StateConnected:
		return res, nil, reject(ErrAlreadyConnected, user, s.State, EventRequestSearch)
	default:
		return res, nil, reject(ErrInvalidTransition, user, s.State, EventRequestSearch)
	}
	if !prof.Complete() {
		return res, nil, rejectf(ErrProfileIncomplete, user, s.State, EventRequestSearch, "missing %v", prof.Missing())
	}
	filter, err := f.Normalize()
	if err != nil {
		return res, nil, rejectf(ErrInvalidField, user, s.State, EventRequestSearch, "%v", err)
	}
	now := e.now()
	ent := EntitlementsOf(prof, now)
	if !ent.Permit(filter) {
		return res, nil, rejectf(ErrFilterNotAllowed, user, s.State, EventRequestSearch, "%s", filter)
	}

	ticket, ok := e.pool.add(candidate{
		user:       user,
		filter:     filter,
		profile:    prof,
		enqueuedAt: now,
	})
	if !ok {
		return res, nil, rejectf(ErrInvariantViolation, user, s.State, EventRequestSearch, "idle user already in pool")
	}
	*s = Session{
		User:         user,
		State:        StateSearching,
		Filter:       filter,
		Since:        now,
		LastActivity: now,
		ticket:       ticket,
	}
	e.remember(ctx, *s)
	res.To = s.State
	return res, nil, nil
}

func (e *Engine) cancelSearch(ctx context.Context, user UserID) (Result, []notice, error) {
	self := e.reg.lock(user)
	defer self.mu.Unlock()

	s := &self.sess
	res := Result{User: user, From: s.State}
	if _, err := e.loadActive(ctx, s, EventCancelSearch); err != nil {
		return res, nil, err
	}
	if s.State != StateSearching {
		return res, nil, reject(ErrInvalidTransition, user, s.State, EventCancelSearch)
	}
	// A pass may hold the entry as a reservation; the state change below makes
	// that reservation fail its ticket check.
	e.pool.remove(user, s.ticket)
	s.reset(e.now())
	e.forget(ctx, user)
	res.To = s.State
	return res, nil, nil
}

func (e *Engine) timeout(ctx context.Context, user UserID) (Result, []notice, error) {
	self := e.reg.lock(user)
	defer self.mu.Unlock()

	s := &self.sess
	res := Result{User: user, From: s.State}
	if _, err := e.loadActive(ctx, s, EventTimeout); err != nil {
		return res, nil, err
	}
	if s.State != StateSearching {
		return res, nil, reject(ErrInvalidTransition, user, s.State, EventTimeout)
	}
	now := e.now()
	if waited := now.Sub(s.LastActivity); waited < e.opts.SearchTimeout {
		return res, nil, rejectf(ErrInvalidTransition, user, s.State, EventTimeout, "searching for %s only", waited)
	}
	e.pool.remove(user, s.ticket)
	s.reset(now)
	e.forget(ctx, user)
	res.To = s.State
	return res, []notice{{kind: noticeDisconnected, user: user, reason: ReasonSearchTimeout}}, nil
}

func (e *Engine) matchFound(ctx context.Context, user, partner UserID) (Result, []notice, error) {
	if partner == 0 || partner == user {
		st := e.reg.snapshot(user).State
		return Result{User: user, From: st}, nil, rejectf(ErrInvalidTransition, user, st, EventMatchFound, "cannot pair with %d", partner)
	}
	self, other := e.reg.lockPair(user, partner)
	defer unlockPair(self, other)

	s := &self.sess
	res := Result{User: user, From: s.State}
	if _, err := e.loadActive(ctx, s, EventMatchFound); err != nil {
		return res, nil, err
	}
	switch s.State {
	case StateSearching:
	case StateConnected:
		return res, nil, reject(ErrAlreadyConnected, user, s.State, EventMatchFound)
	default:
		return res, nil, reject(ErrInvalidTransition, user, s.State, EventMatchFound)
	}
	if other.sess.State != StateSearching || !e.pool.take(user, partner, s.ticket, other.sess.ticket, e.now()) {
		return res, nil, rejectf(ErrPartnerNotFound, user, s.State, EventMatchFound, "user %d is not available", partner)
	}
	conn := Connection{ID: e.opts.NewConnectionID(), A: user, B: partner, StartedAt: e.now()}
	out := e.connectLocked(ctx, self, other, conn)
	res.To, res.Partner, res.ConnectionID = s.State, partner, conn.ID
	return res, out, nil
}

// disconnect handles Disconnect and, with block set, BlockPartner.
func (e *Engine) disconnect(ctx context.Context, user UserID, block bool) (Result, []notice, error) {
	kind, cause := EventDisconnect, ReasonLeft
	if block {
		kind, cause = EventBlockPartner, ReasonBlockedPartner
	}
	self, partner, err := e.lockSession(user, kind)
	if err != nil {
		return Result{User: user}, nil, err
	}
	defer unlockSession(self, partner)

	s := &self.sess
	res := Result{User: user, From: s.State}
	prof, err := e.loadActive(ctx, s, kind)
	if err != nil {
		return res, nil, err
	}
	if s.State != StateConnected {
		return res, nil, reject(ErrInvalidTransition, user, s.State, kind)
	}
	res.Partner, res.ConnectionID = s.Partner, s.ConnectionID
	if block && !prof.Blocks(s.Partner) {
		prof.Blocklist = append(prof.Blocklist, s.Partner)
		prof.UpdatedAt = e.now()
		if err := e.profiles.save(ctx, prof); err != nil {
			return res, nil, fmt.Errorf("save profile %d: %w", user, err)
		}
	}
	out := e.teardownLocked(ctx, self, partner, cause, ReasonPartnerLeft)
	res.To = s.State
	return res, out, nil
}

func (e *Engine) requestPayment(ctx context.Context, user UserID) (Result, []notice, error) {
	self := e.reg.lock(user)
	defer self.mu.Unlock()

	s := &self.sess
	res := Result{User: user, From: s.State}
	prof, err := e.loadActive(ctx, s, EventRequestPayment)
	if err != nil {
		return res, nil, err
	}
	if s.State != StateIdle {
		return res, nil, reject(ErrInvalidTransition, user, s.State, EventRequestPayment)
	}
	now := e.now()
	s.reset(now)
	s.State = StateAwaitingPaymentVerification
	res.To = s.State
	return res, []notice{{kind: noticePaymentRequested, user: user, profile: prof}}, nil
}

func (e *Engine) settlePayment(ctx context.Context, user UserID, approved bool) (Result, []notice, error) {
	kind := EventPaymentRejected
	if approved {
		kind = EventPaymentVerified
	}
	self := e.reg.lock(user)
	defer self.mu.Unlock()

	s := &self.sess
	res := Result{User: user, From: s.State}
	prof, err := e.loadActive(ctx, s, kind)
	if err != nil {
		return res, nil, err
	}
	if s.State != StateAwaitingPaymentVerification {
		return res, nil, reject(ErrInvalidTransition, user, s.State, kind)
	}
	now := e.now()
	if approved {
		start := now
		if prof.PremiumUntil.After(now) {
			start = prof.PremiumUntil
		}
		prof.PremiumUntil = start.Add(e.opts.PremiumDuration)
		prof.UpdatedAt = now
		if err := e.profiles.save(ctx, prof); err != nil {
			return res, nil, fmt.Errorf("save profile %d: %w", user, err)
		}
	}
	s.reset(now)
	res.To = s.State
	return res, []notice{{kind: noticePayment, user: user, approved: approved, until: prof.PremiumUntil}}, nil
}

func (e *Engine) blockUser(ctx context.Context, user UserID) (Result, []notice, error) {
	self, partner, err := e.lockSession(user, EventBlockUser)
	if err != nil {
		return Result{User: user}, nil, err
	}
	defer unlockSession(self, partner)

	s := &self.sess
	res := Result{User: user, From: s.State}
	prof, err := e.loadActive(ctx, s, EventBlockUser)
	if err != nil {
		return res, nil, err
	}
	now := e.now()
	prof.Blocked = true
	prof.UpdatedAt = now
	if err := e.profiles.save(ctx, prof); err != nil {
		return res, nil, fmt.Errorf("save profile %d: %w", user, err)
	}

	var out []notice
	switch s.State {
	case StateConnected:
		res.Partner, res.ConnectionID = s.Partner, s.ConnectionID
		out = e.teardownLocked(ctx, self, partner, ReasonBlocked, ReasonPartnerBlocked)
	case StateSearching:
		e.pool.remove(user, s.ticket)
		e.forget(ctx, user)
	}
	s.reset(now)
	res.To = s.State
	return res, append(out, notice{kind: noticeBlocked, user: user}), nil
}

func (e *Engine) unblockUser(ctx context.Context, user UserID) (Result, []notice, error) {
	self := e.reg.lock(user)
	defer self.mu.Unlock()

	s := &self.sess
	res := Result{User: user, From: s.State}
	now := e.now()
	prof, err := e.profiles.load(ctx, user, now)
	if err != nil {
		return res, nil, fmt.Errorf("load profile %d: %w", user, err)
	}
	if !prof.Blocked {
		return res, nil, reject(ErrInvalidTransition, user, s.State, EventUnblockUser)
	}
	prof.Blocked = false
	prof.UpdatedAt = now
	if err := e.profiles.save(ctx, prof); err != nil {
		return res, nil, fmt.Errorf("save profile %d: %w", user, err)
	}
	s.reset(now)
	res.To = s.State
	return res, nil, nil
}
