package engine

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/tandembot/core/logger"
)

const (
	componentSessions = "service.sessions"
	componentMatcher  = "service.matcher"
	componentProfiles = "service.profiles"
)

// Defaults applied by New to zero options.
const (
	DefaultSearchTimeout   = 5 * time.Minute
	DefaultPassInterval    = 2 * time.Second
	DefaultRestoreGrace    = 10 * time.Minute
	DefaultPremiumDuration = 30 * 24 * time.Hour
)

// Options configures an Engine.
type Options struct {
	Profiles  ProfileRepository
	Snapshots SnapshotStore
	Notifier  Notifier
	Observer  Observer
	Clock     Clock

	SearchTimeout   time.Duration
	PassInterval    time.Duration
	RestoreGrace    time.Duration
	PremiumDuration time.Duration
	// DeferMatching disables the matching pass that otherwise runs right
	// after every accepted RequestSearch.
	DeferMatching bool

	NewConnectionID func() string
}

// Result describes an accepted transition.
type Result struct {
	User  UserID
	Event EventKind
	From  State
	To    State
	Step  ProfileStep
	// Partner is the partner after the event, or the one just left.
	Partner      UserID
	ConnectionID string
}

// Engine owns the session registry, the matching pool and the active
// connections. Create one per process with New.
type Engine struct {
	opts     Options
	clock    Clock
	notifier Notifier
	observer Observer
	snaps    SnapshotStore
	// checkpointEvery is half the restore grace, never below PassInterval.
	checkpointEvery time.Duration

	reg      *registry
	pool     *pool
	profiles *profileBook
	conns    *connTable
}

// New builds an engine. Nil collaborators are replaced by no-op ones.
func New(opts Options) *Engine {
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultSearchTimeout
	}
	if opts.PassInterval <= 0 {
		opts.PassInterval = DefaultPassInterval
	}
	if opts.RestoreGrace <= 0 {
		opts.RestoreGrace = DefaultRestoreGrace
	}
	if opts.PremiumDuration <= 0 {
		opts.PremiumDuration = DefaultPremiumDuration
	}
	if opts.NewConnectionID == nil {
		opts.NewConnectionID = uuid.NewString
	}
	e := &Engine{
		opts:     opts,
		clock:    opts.Clock,
		notifier: opts.Notifier,
		observer: opts.Observer,
		snaps:    opts.Snapshots,
		reg:      newRegistry(),
		pool:     newPool(),
		profiles: newProfileBook(opts.Profiles),
		conns:    &connTable{m: make(map[string]Connection)},
	}
	e.checkpointEvery = max(opts.RestoreGrace/2, opts.PassInterval)
	if e.clock == nil {
		e.clock = systemClock{}
	}
	if e.notifier == nil {
		e.notifier = NopNotifier{}
	}
	if e.observer == nil {
		e.observer = NopObserver{}
	}
	return e
}

func (e *Engine) now() time.Time { return e.clock.Now() }

// HandleEvent applies ev to user. It is the only way to change a session.
// A rejected event returns a *TransitionError and changes nothing. When the
// transition is committed but a notification fails, the Result is returned
// together with an error matching ErrNotificationDeliveryFailed.
func (e *Engine) HandleEvent(ctx context.Context, user UserID, ev Event) (Result, error) {
	var (
		res Result
		out []notice
		err error
	)
	switch ev.Kind {
	case EventStartProfile:
		res, out, err = e.startProfile(ctx, user)
	case EventSubmitProfileField:
		res, out, err = e.submitField(ctx, user, ev.Value)
	case EventCancelProfile:
		res, out, err = e.cancelProfile(ctx, user)
	case EventRequestSearch:
		res, out, err = e.requestSearch(ctx, user, ev.Filter)
	case EventCancelSearch:
		res, out, err = e.cancelSearch(ctx, user)
	case EventMatchFound:
		res, out, err = e.matchFound(ctx, user, ev.Partner)
	case EventDisconnect:
		res, out, err = e.disconnect(ctx, user, false)
	case EventBlockPartner:
		res, out, err = e.disconnect(ctx, user, true)
	case EventTimeout:
		res, out, err = e.timeout(ctx, user)
	case EventRequestPayment:
		res, out, err = e.requestPayment(ctx, user)
	case EventPaymentVerified:
		res, out, err = e.settlePayment(ctx, user, true)
	case EventPaymentRejected:
		res, out, err = e.settlePayment(ctx, user, false)
	case EventBlockUser:
		res, out, err = e.blockUser(ctx, user)
	case EventUnblockUser:
		res, out, err = e.unblockUser(ctx, user)
	default:
		err = reject(ErrInvalidTransition, user, e.reg.snapshot(user).State, ev.Kind)
	}
	res.Event = ev.Kind
	e.logTransition(ctx, user, ev.Kind, res, err)
	if err != nil {
		return res, err
	}

	derr := e.deliver(ctx, out)
	if ev.Kind == EventRequestSearch && !e.opts.DeferMatching {
		for _, m := range e.pass(ctx) {
			if m.conn.A != user && m.conn.B != user {
				continue
			}
			res.To = StateConnected
			res.Partner = m.conn.Other(user)
			res.ConnectionID = m.conn.ID
			if m.err != nil {
				derr = errors.Join(derr, m.err)
			}
		}
	}
	if derr != nil {
		return res, derr
	}
	return res, nil
}

// QueryState returns a copy of the session of user.
func (e *Engine) QueryState(user UserID) Session {
	return e.reg.snapshot(user)
}

// ActiveConnections lists connections ordered by start time.
func (e *Engine) ActiveConnections() []Connection {
	out := e.conns.list()
	slices.SortFunc(out, func(a, b Connection) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out
}

// Profile returns the cached profile of user.
func (e *Engine) Profile(user UserID) (Profile, bool) {
	return e.profiles.peek(user)
}

// PoolSize is the number of users waiting in the pool.
func (e *Engine) PoolSize() int { return e.pool.size() }

// deliver runs collected notices. It must be called without holding locks.
func (e *Engine) deliver(ctx context.Context, out []notice) error {
	var errs []error
	for _, n := range out {
		var err error
		switch n.kind {
		case noticeMatched:
			err = e.notifier.NotifyMatched(ctx, n.user, n.other)
		case noticeDisconnected:
			err = e.notifier.NotifyDisconnected(ctx, n.user, n.reason)
		case noticeBlocked:
			err = e.notifier.NotifyBlocked(ctx, n.user)
		case noticePayment:
			err = e.notifier.NotifyPayment(ctx, n.user, n.approved, n.until)
		case noticeOpened:
			e.observer.ConnectionOpened(ctx, n.conn)
		case noticeClosed:
			e.observer.ConnectionClosed(ctx, n.conn, n.reason)
		case noticePaymentRequested:
			e.observer.PaymentRequested(ctx, n.profile)
		}
		if err != nil {
			errs = append(errs, err)
			logger.Warn(ctx, componentSessions, "notify.fail",
				slog.Int64("user_id", int64(n.user)),
				slog.String("err", err.Error()),
			)
		}
	}
	if len(errs) > 0 {
		return &NotificationError{Errs: errs}
	}
	return nil
}

// remember persists the session if it is worth restoring.
func (e *Engine) remember(ctx context.Context, s Session) {
	if e.snaps == nil {
		return
	}
	snap := Snapshot{
		User:         s.User,
		State:        s.State,
		Filter:       s.Filter,
		Partner:      s.Partner,
		ConnectionID: s.ConnectionID,
		Since:        s.Since,
		SavedAt:      e.now(),
	}
	if err := e.snaps.SaveSnapshot(ctx, snap); err != nil {
		logger.Warn(ctx, componentSessions, "snapshot.save.fail",
			slog.Int64("user_id", int64(s.User)),
			slog.String("err", err.Error()),
		)
	}
}

func (e *Engine) forget(ctx context.Context, user UserID) {
	if e.snaps == nil {
		return
	}
	if err := e.snaps.DeleteSnapshot(ctx, user); err != nil {
		logger.Warn(ctx, componentSessions, "snapshot.delete.fail",
			slog.Int64("user_id", int64(user)),
			slog.String("err", err.Error()),
		)
	}
}

func (e *Engine) logTransition(ctx context.Context, user UserID, kind EventKind, res Result, err error) {
	attrs := []slog.Attr{
		slog.Int64("user_id", int64(user)),
		slog.String("event_kind", kind.String()),
	}
	if err != nil {
		var te *TransitionError
		if errors.As(err, &te) {
			attrs = append(attrs,
				slog.String("state", te.State.String()),
				slog.String("err_code", te.Code()),
			)
		}
		attrs = append(attrs, slog.String("status", "skip"), slog.String("err", err.Error()))
		logger.Debug(ctx, componentSessions, "session.reject", attrs...)
		return
	}
	attrs = append(attrs,
		slog.String("from_state", res.From.String()),
		slog.String("to_state", res.To.String()),
		slog.String("status", "ok"),
	)
	if res.Partner != 0 {
		attrs = append(attrs, slog.Int64("partner_id", int64(res.Partner)))
	}
	logger.Info(ctx, componentSessions, "session.transition", attrs...)
}
