// Package bot adapts Telegram updates to engine events and engine
// notifications to Telegram messages.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m3rciful/tandembot/chat/engine"
	"github.com/m3rciful/tandembot/chat/moderation"
	"github.com/m3rciful/tandembot/core/logger"
	tg "github.com/m3rciful/tandembot/core/telegram"
	"github.com/m3rciful/tandembot/core/telegram/commands"
	tghelpers "github.com/m3rciful/tandembot/core/telegram/helpers"
	"github.com/m3rciful/tandembot/core/telegram/middleware"
	"github.com/m3rciful/tandembot/core/telegram/router"
	"github.com/m3rciful/tandembot/core/telegram/state"
	"github.com/m3rciful/tandembot/core/telegram/ui"

	tele "gopkg.in/telebot.v4"
)

const component = "bot"

// Engine is the part of *engine.Engine used by the handlers.
type Engine interface {
	HandleEvent(ctx context.Context, user engine.UserID, ev engine.Event) (engine.Result, error)
	QueryState(user engine.UserID) engine.Session
	Profile(user engine.UserID) (engine.Profile, bool)
	ActiveConnections() []engine.Connection
	PoolSize() int
}

// Recorder receives every relayed message.
type Recorder interface {
	Record(ctx context.Context, connID string, from engine.UserID, msg *tele.Message)
}

// Config holds the settings the handlers need.
type Config struct {
	AdminID          int64
	ModerationChatID int64
}

// Bot holds the Telegram handlers of the chat.
type Bot struct {
	cfg      Config
	eng      Engine
	out      Outbox
	recorder Recorder
	states   *state.Router
	now      func() time.Time
}

var _ ui.FallbackProvider = (*Bot)(nil)

// New builds the handlers. rec may be nil.
func New(cfg Config, eng Engine, out Outbox, rec Recorder) *Bot {
	b := &Bot{
		cfg:      cfg,
		eng:      eng,
		out:      out,
		recorder: rec,
		now:      time.Now,
	}
	b.states = state.NewRouter(state.SourceFunc(b.stateOf))
	b.states.Handle(state.State(engine.StateAwaitingProfile.String()), b.onProfileInput)
	b.states.Handle(state.State(engine.StateConnected.String()),
		middleware.State(b.states, engine.StateConnected.String())(b.onRelay))
	return b
}

// Register adds commands and callbacks to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	cmds := map[string]commands.Command{
		"/start":   {Handler: b.onStart, Description: "Set up your profile"},
		"/search":  {Handler: b.onSearch, Description: "Find a language partner", Aliases: []string{labelSearch}},
		"/stop":    {Handler: b.onStop, Description: "Stop searching or leave the chat", Aliases: []string{labelStop}},
		"/block":   {Handler: b.onBlock, Description: "Leave and never match this partner again", Aliases: []string{labelBlock}},
		"/profile": {Handler: b.onProfile, Description: "Show your profile", Aliases: []string{labelProfile}},
		"/premium": {Handler: b.onPremium, Description: "Request premium", Aliases: []string{labelPremium}},
		"/cancel":  {Handler: b.onCancel, Description: "Cancel the current step", Aliases: []string{labelCancel}},
		"/help":    {Handler: b.onHelp, Description: "How it works"},

		"/verify":      {Handler: b.onVerify, Description: "Approve a premium payment", AdminOnly: true},
		"/reject":      {Handler: b.onReject, Description: "Reject a premium payment", AdminOnly: true},
		"/ban":         {Handler: b.onBan, Description: "Block a user", AdminOnly: true},
		"/unban":       {Handler: b.onUnban, Description: "Unblock a user", AdminOnly: true},
		"/connections": {Handler: b.onConnections, Description: "List active connections", AdminOnly: true},
		"/pool":        {Handler: b.onPool, Description: "Show matching pool size", AdminOnly: true},
	}
	var errs []error
	for name, cmd := range cmds {
		errs = append(errs, reg.RegisterCommand(name, cmd))
	}

	cbs := map[string]tele.HandlerFunc{
		cbLanguage:                    b.onPick,
		cbGender:                      b.onPick,
		cbCountry:                     b.onPick,
		cbEditProfile:                 b.onEditProfile,
		moderation.CallbackPayApprove: b.onPaymentDecision(true),
		moderation.CallbackPayReject:  b.onPaymentDecision(false),
	}
	for key, h := range cbs {
		errs = append(errs, reg.RegisterCallback(key, h))
	}
	reg.SetCallbackNotFound(b.UnknownCallback())
	return errors.Join(errs...)
}

// Routes builds the text, media, callback and command routes.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	textOpts, cbOpts := router.Fallbacks(b)
	routes := router.TextRoutes(b.states, reg, textOpts)
	routes = append(routes, router.CallbackRoute(reg, cbOpts))
	routes = append(routes, router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: b.cfg.AdminID,
		OnAdminReject: func(c tele.Context) error {
			return tghelpers.SendText(c, "This command is for moderators.")
		},
	})...)
	return routes
}

// Denied reports whether a user is blocked by the moderators.
func (b *Bot) Denied(userID int64) bool {
	p, ok := b.eng.Profile(engine.UserID(userID))
	return ok && p.Blocked
}

// OnDenied answers updates from blocked users.
func (b *Bot) OnDenied(c tele.Context) error {
	if c.Callback() != nil {
		_ = c.Respond(&tele.CallbackResponse{Text: textUserBlocked})
		return nil
	}
	return tghelpers.SendText(c, textUserBlocked)
}

// OnLimited answers updates dropped by the rate limiter.
func (b *Bot) OnLimited(c tele.Context) error {
	if c.Callback() != nil {
		_ = c.Respond(&tele.CallbackResponse{Text: textSlowDown})
		return nil
	}
	return tghelpers.SendText(c, textSlowDown)
}

// UnknownText implements ui.FallbackProvider.
func (b *Bot) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return b.reply(c, textUseMenu, menuFor(b.session(c).State))
	}
}

// UnknownMedia implements ui.FallbackProvider.
func (b *Bot) UnknownMedia() tele.HandlerFunc {
	return b.UnknownText()
}

// UnknownCallback implements ui.FallbackProvider.
func (b *Bot) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		_ = c.Respond(&tele.CallbackResponse{Text: textUnsupported})
		return nil
	}
}

func (b *Bot) stateOf(userID int64) state.State {
	return state.State(b.eng.QueryState(engine.UserID(userID)).State.String())
}

func userOf(c tele.Context) engine.UserID {
	if s := c.Sender(); s != nil {
		return engine.UserID(s.ID)
	}
	return 0
}

func (b *Bot) session(c tele.Context) engine.Session {
	return b.eng.QueryState(userOf(c))
}

// apply runs ev for user. A failed notification does not undo the
// transition, so it is logged and dropped here.
func (b *Bot) apply(ctx context.Context, user engine.UserID, ev engine.Event) (engine.Result, error) {
	res, err := b.eng.HandleEvent(ctx, user, ev)
	if err == nil {
		return res, nil
	}
	var te *engine.TransitionError
	if errors.Is(err, engine.ErrNotificationDeliveryFailed) && !errors.As(err, &te) {
		logger.Warn(ctx, component, "notify.partial",
			slog.Int64("user_id", int64(user)),
			slog.String("event_kind", ev.Kind.String()),
			slog.String("err", err.Error()),
		)
		return res, nil
	}
	return res, err
}

func (b *Bot) reply(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return tghelpers.SendMD(c, text, markup)
}

// explain turns an engine error into a user-facing message.
func explain(err error) string {
	switch {
	case errors.Is(err, engine.ErrProfileIncomplete):
		return textProfileFirst
	case errors.Is(err, engine.ErrFilterNotAllowed):
		return textFilterPremium
	case errors.Is(err, engine.ErrAlreadyConnected):
		return textAlreadyChat
	case errors.Is(err, engine.ErrUserBlocked):
		return textUserBlocked
	case errors.Is(err, engine.ErrInvalidTransition):
		return textBusy
	}
	return textFailed
}
