package router

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/m3rciful/tandembot/core/logger"
	tg "github.com/m3rciful/tandembot/core/telegram"
	"github.com/m3rciful/tandembot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
	// Use wraps every command, outermost first, e.g. a deny list.
	Use []tele.MiddlewareFunc
}

// CommandRoutes returns one route per registered command, sorted by name.
// Admin-only commands are gated before Use runs, and every invocation
// produces a handler.handled line named after the command.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	admin := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for _, name := range slices.Sorted(maps.Keys(cmds)) {
		def := cmds[name]
		h := def.Handler
		for _, mw := range slices.Backward(opts.Use) {
			h = mw(h)
		}
		if def.AdminOnly {
			h = admin(h)
		}
		label := handlerName(name)
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler: middleware.RecoverMiddleware(func(c tele.Context) error {
				return handled(c, label, h, slog.String("op", "command"))
			}),
		})
	}

	logger.Info(context.Background(), "tg.wire", "complete",
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
