package helpers

import (
	"context"

	"github.com/m3rciful/tandembot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const ctxStoreKey = "logger_ctx"

// StoreContext keeps ctx on c for later handlers of the same update.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(ctxStoreKey, ctx)
}

// ContextFrom returns the context stored by StoreContext.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(ctxStoreKey).(context.Context)
	return ctx, ok && ctx != nil
}

// IDs returns the update, sender and chat ids of c; missing parts are zero.
func IDs(c tele.Context) (updateID int, userID, chatID int64) {
	updateID = c.Update().ID
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	return updateID, userID, chatID
}

// BuildContext returns the request context for c, creating and storing it on
// first use. The context carries the rid and update metadata picked up by
// every log line written with it.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}
	updateID, userID, chatID := IDs(c)
	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
		c.Set("rid", rid)
	}
	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler names the handler on the stored context.
func WithHandler(c tele.Context, handler string) context.Context {
	return update(c, func(ctx context.Context) context.Context {
		return logger.WithHandler(ctx, handler)
	})
}

// WithConn tags the stored context with a conversation id.
func WithConn(c tele.Context, connID string) context.Context {
	return update(c, func(ctx context.Context) context.Context {
		return logger.WithConn(ctx, connID)
	})
}

func update(c tele.Context, fn func(context.Context) context.Context) context.Context {
	base := BuildContext(c)
	ctx := fn(base)
	if ctx != base {
		StoreContext(c, ctx)
	}
	return ctx
}
