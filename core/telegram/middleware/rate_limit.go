package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/tandembot/core/logger"
	tghelpers "github.com/m3rciful/tandembot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	// Interval is the minimum gap between two accepted updates of one user.
	Interval time.Duration
	// Exclude lists update kinds ("message", "callback", "inline_query")
	// that bypass the limit.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// userGate remembers when each user was last let through. Entries older
// than the interval carry no information and are swept periodically.
type userGate struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[int64]time.Time
	swept    time.Time
}

func (g *userGate) allow(userID int64, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if now.Sub(g.swept) > 10*g.interval && len(g.last) > 0 {
		for id, at := range g.last {
			if now.Sub(at) >= g.interval {
				delete(g.last, id)
			}
		}
		g.swept = now
	}
	if at, ok := g.last[userID]; ok && now.Sub(at) < g.interval {
		return false
	}
	g.last[userID] = now
	return true
}

// RateLimitMiddleware drops updates arriving faster than opts.Interval per
// user and calls OnLimited for them instead.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	gate := &userGate{interval: opts.Interval, last: make(map[int64]time.Time)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := updateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if gate.allow(user.ID, time.Now()) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("update_kind", kind),
				slog.Duration("interval", opts.Interval),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}
