package bot

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/m3rciful/tandembot/chat/engine"
	"github.com/m3rciful/tandembot/core/logger"
	tghelpers "github.com/m3rciful/tandembot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// parseFilter reads "/search [language] [region:<r>] [country:<c>]" arguments.
// lang reports whether a language was given; "*" or "any" clears it.
func parseFilter(args []string) (f engine.Filter, lang bool, err error) {
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, ":")
		if !ok {
			key, value = "lang", arg
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return engine.Filter{}, false, errors.New("empty filter value")
		}
		switch strings.ToLower(key) {
		case "lang", "language":
			if lang {
				return engine.Filter{}, false, errors.New("language given twice")
			}
			lang = true
			if value != "*" && !strings.EqualFold(value, "any") {
				f.Language = value
			}
		case "region":
			f.Region = value
		case "country":
			f.Country = value
		default:
			return engine.Filter{}, false, errors.New("unknown filter " + key)
		}
	}
	return f, lang, nil
}

// onSearch enters the pool. Without an explicit language the partner must
// practise the same language as the user.
func (b *Bot) onSearch(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	user := userOf(c)
	f, lang, err := parseFilter(c.Args())
	if err != nil {
		return b.reply(c, searchUsage(), nil)
	}
	if !lang {
		if p, ok := b.eng.Profile(user); ok {
			f.Language = p.Language
		}
	}

	res, err := b.apply(ctx, user, engine.RequestSearch(f))
	switch {
	case errors.Is(err, engine.ErrInvalidField):
		return b.reply(c, searchUsage(), nil)
	case errors.Is(err, engine.ErrInvalidTransition) && b.session(c).State == engine.StateSearching:
		return b.reply(c, textAlreadySearch, menuFor(engine.StateSearching))
	case err != nil:
		return b.reply(c, explain(err), menuFor(b.session(c).State))
	}
	logger.Debug(ctx, component, "search.requested",
		slog.Int64("user_id", int64(user)),
		slog.String("filter", f.String()),
		slog.String("to_state", res.To.String()),
	)
	if res.To == engine.StateConnected {
		// The partner-found message was already sent by the notifier.
		return nil
	}
	return b.reply(c, textSearching, menuFor(engine.StateSearching))
}

// onStop stops a search, leaves a chat or abandons the profile flow.
func (b *Bot) onStop(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	user := userOf(c)
	switch b.eng.QueryState(user).State {
	case engine.StateSearching:
		if _, err := b.apply(ctx, user, engine.CancelSearch()); err != nil {
			return b.reply(c, explain(err), menuFor(b.session(c).State))
		}
		return b.reply(c, textSearchStopped, menuFor(engine.StateIdle))
	case engine.StateConnected:
		if _, err := b.apply(ctx, user, engine.Disconnect()); err != nil {
			return b.reply(c, explain(err), menuFor(b.session(c).State))
		}
		return b.reply(c, textLeft, menuFor(engine.StateIdle))
	case engine.StateAwaitingProfile:
		return b.cancelProfile(ctx, c)
	}
	return b.reply(c, textNothingToStop, menuFor(b.session(c).State))
}

func (b *Bot) onBlock(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	_, err := b.apply(ctx, userOf(c), engine.BlockPartner())
	switch {
	case errors.Is(err, engine.ErrInvalidTransition), errors.Is(err, engine.ErrPartnerNotFound):
		return b.reply(c, textNotInChat, menuFor(b.session(c).State))
	case err != nil:
		return b.reply(c, explain(err), menuFor(b.session(c).State))
	}
	return b.reply(c, textPartnerBlocked, menuFor(engine.StateIdle))
}

func (b *Bot) onCancel(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	user := userOf(c)
	switch b.eng.QueryState(user).State {
	case engine.StateAwaitingProfile:
		return b.cancelProfile(ctx, c)
	case engine.StateSearching:
		if _, err := b.apply(ctx, user, engine.CancelSearch()); err != nil {
			return b.reply(c, explain(err), menuFor(b.session(c).State))
		}
		return b.reply(c, textSearchStopped, menuFor(engine.StateIdle))
	}
	return b.reply(c, textNothingToCancel, menuFor(b.session(c).State))
}

func (b *Bot) onPremium(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	user := userOf(c)
	if b.eng.QueryState(user).State == engine.StateAwaitingPaymentVerification {
		return b.reply(c, textPaymentPending, nil)
	}
	if _, err := b.apply(ctx, user, engine.RequestPayment()); err != nil {
		if b.session(c).State == engine.StateAwaitingPaymentVerification {
			return b.reply(c, textPaymentPending, nil)
		}
		return b.reply(c, explain(err), menuFor(b.session(c).State))
	}
	return b.reply(c, textPaymentSent, nil)
}

func (b *Bot) onHelp(c tele.Context) error {
	return b.reply(c, textHelp, menuFor(b.session(c).State))
}

// onRelay copies a message to the partner of a Connected user.
func (b *Bot) onRelay(c tele.Context) error {
	user := userOf(c)
	sess := b.eng.QueryState(user)
	msg := c.Message()
	if sess.State != engine.StateConnected || sess.Partner == 0 || msg == nil {
		return b.reply(c, textNotInChat, menuFor(sess.State))
	}
	ctx := tghelpers.WithConn(c, sess.ConnectionID)
	if err := b.out.Copy(ctx, int64(sess.Partner), msg); err != nil {
		logger.Warn(ctx, component, "relay.fail",
			slog.Int64("partner_id", int64(sess.Partner)),
			slog.String("err", err.Error()),
		)
		return b.reply(c, textFailed, nil)
	}
	if b.recorder != nil {
		b.recorder.Record(ctx, sess.ConnectionID, user, msg)
	}
	return nil
}
