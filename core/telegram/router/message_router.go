package router

import (
	tg "github.com/m3rciful/tandembot/core/telegram"
	"github.com/m3rciful/tandembot/core/telegram/middleware"
	"github.com/m3rciful/tandembot/core/telegram/ui"

	tele "gopkg.in/telebot.v4"
)

// FSM defines the minimal interface for a state router.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls fallback behaviour for text and media updates.
type TextOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownMedia tele.HandlerFunc
}

// MediaEndpoints lists the non-text message kinds routed through the FSM.
var MediaEndpoints = []string{
	tele.OnPhoto,
	tele.OnVideo,
	tele.OnAnimation,
	tele.OnSticker,
	tele.OnVoice,
	tele.OnVideoNote,
	tele.OnAudio,
	tele.OnDocument,
}

// TextRoutes builds handlers for text and media routing.
// Reply keyboard aliases win over state handlers so menu buttons work in every state.
func TextRoutes(fsmMgr FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		if reg != nil {
			if key, cmd, ok := reg.LookupAlias(c.Text()); ok && cmd.Handler != nil {
				return handled(c, handlerName(key), cmd.Handler)
			}
		}
		if fsmMgr != nil && c.Sender() != nil && fsmMgr.InProgress(c.Sender().ID) {
			return handled(c, "fsm", fsmMgr.ManagerHandler)
		}
		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handled(c, "fallback", fb)
			}
		}
		if opts.UnknownText != nil {
			return handled(c, "unknown_text", opts.UnknownText)
		}
		skipped(c, "unknown_text")
		return nil
	}

	mediaHandler := func(c tele.Context) error {
		if fsmMgr != nil && c.Sender() != nil && fsmMgr.InProgress(c.Sender().ID) {
			return handled(c, "fsm_media", fsmMgr.ManagerHandler)
		}
		if opts.UnknownMedia != nil {
			return handled(c, "unexpected_media", opts.UnknownMedia)
		}
		skipped(c, "unexpected_media")
		return nil
	}

	wrappedMedia := middleware.RecoverMiddleware(middleware.LoggerMiddleware(mediaHandler))
	routes := []tg.Route{{
		Endpoint: tele.OnText,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}}
	for _, ep := range MediaEndpoints {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: wrappedMedia})
	}
	return routes
}

// Fallbacks builds text and callback options from a provider.
func Fallbacks(p ui.FallbackProvider) (TextOptions, CallbackOptions) {
	if p == nil {
		return TextOptions{}, CallbackOptions{}
	}
	return TextOptions{UnknownText: p.UnknownText(), UnknownMedia: p.UnknownMedia()},
		CallbackOptions{NotFound: p.UnknownCallback()}
}
