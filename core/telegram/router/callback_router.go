package router

import (
	"log/slog"

	tg "github.com/m3rciful/tandembot/core/telegram"
	"github.com/m3rciful/tandembot/core/telegram/callbacks"
	"github.com/m3rciful/tandembot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound takes precedence over the registry fallback. It must answer
	// the callback itself.
	NotFound tele.HandlerFunc
}

func unsupportedCallback(c tele.Context) error {
	return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
}

// CallbackRoute returns a handler that routes callbacks through the registry.
// Registered handlers get the callback answered before they run; fallbacks
// answer it themselves, since Telegram takes only the first answer.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key := callbacks.CallbackKey(c)
		name := "callback." + handlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		if h, ok := reg.GetCallback(key); ok && h != nil {
			_ = c.Respond()
			return handled(c, name, h, extras...)
		}
		fallback := opts.NotFound
		if fallback == nil {
			fallback = reg.CallbackNotFound()
		}
		if fallback == nil {
			fallback = unsupportedCallback
		}
		return handled(c, name, fallback, append(extras, slog.String("reason", "not_found"))...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
