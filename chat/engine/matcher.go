package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/tandembot/core/logger"
)

type matchOutcome struct {
	conn Connection
	err  error
}

// MatchPass pairs as many compatible pool members as possible and returns
// the number of connections made. Searches whose location filter is no longer
// permitted end first. Delivery failures are logged.
func (e *Engine) MatchPass(ctx context.Context) int {
	return len(e.pass(ctx))
}

// pass repeatedly reserves the best pair under the pool lock and commits it
// under both user locks. A reservation whose session moved on in the
// meantime is dropped; its still-searching side goes back to the pool with
// its original position.
func (e *Engine) pass(ctx context.Context) []matchOutcome {
	start := time.Now()
	e.endLapsed(ctx)
	var out []matchOutcome
	for {
		a, b, ok := e.pool.reserve(e.now())
		if !ok {
			break
		}
		conn, notices, ok := e.commit(ctx, a, b)
		if !ok {
			continue
		}
		err := e.deliver(ctx, notices)
		if err != nil {
			logger.Warn(ctx, componentMatcher, "match.notify.fail",
				slog.String("conn_id", conn.ID),
				slog.String("err", err.Error()),
			)
		}
		out = append(out, matchOutcome{conn: conn, err: err})
	}
	if len(out) > 0 {
		logger.Debug(ctx, componentMatcher, "match.pass",
			slog.Int("count", len(out)),
			slog.Int("pool_size", e.pool.size()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}
	return out
}

func (e *Engine) commit(ctx context.Context, a, b candidate) (Connection, []notice, bool) {
	ea, eb := e.reg.lockPair(a.user, b.user)
	defer unlockPair(ea, eb)

	validA := ea.sess.State == StateSearching && ea.sess.ticket == a.ticket
	validB := eb.sess.State == StateSearching && eb.sess.ticket == b.ticket
	if !validA || !validB {
		if validA {
			e.pool.requeue(a)
		}
		if validB {
			e.pool.requeue(b)
		}
		logger.Debug(ctx, componentMatcher, "match.stale",
			slog.Int64("user_id", int64(a.user)),
			slog.Int64("partner_id", int64(b.user)),
		)
		return Connection{}, nil, false
	}

	conn := Connection{ID: e.opts.NewConnectionID(), A: a.user, B: b.user, StartedAt: e.now()}
	notices := e.connectLocked(ctx, ea, eb, conn)
	logger.Info(ctx, componentMatcher, "match.commit",
		slog.String("conn_id", conn.ID),
		slog.Int64("user_id", int64(a.user)),
		slog.Int64("partner_id", int64(b.user)),
		slog.String("tier", a.entitlements(conn.StartedAt).Tier.String()),
	)
	return conn, notices, true
}

// endLapsed returns to Idle every searcher whose filter needs a premium
// window that has ended.
func (e *Engine) endLapsed(ctx context.Context) {
	for _, c := range e.pool.lapsed(e.now()) {
		ent := e.reg.lock(c.user)
		s := &ent.sess
		if s.State != StateSearching || s.ticket != c.ticket {
			ent.mu.Unlock()
			continue
		}
		s.reset(e.now())
		e.forget(ctx, c.user)
		ent.mu.Unlock()

		logger.Info(ctx, componentMatcher, "match.lapsed",
			slog.Int64("user_id", int64(c.user)),
			slog.String("filter", c.filter.String()),
		)
		notices := []notice{{kind: noticeDisconnected, user: c.user, reason: ReasonPremiumExpired}}
		if err := e.deliver(ctx, notices); err != nil {
			logger.Warn(ctx, componentMatcher, "match.notify.fail",
				slog.Int64("user_id", int64(c.user)),
				slog.String("err", err.Error()),
			)
		}
	}
}
