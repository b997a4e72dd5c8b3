package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/m3rciful/tandembot/chat/engine"
	"github.com/m3rciful/tandembot/core/logger"
	"github.com/m3rciful/tandembot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/tandembot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

func (b *Bot) onVerify(c tele.Context) error {
	return b.adminEvent(c, "/verify", engine.PaymentVerified(), func(id engine.UserID) string {
		p, _ := b.eng.Profile(id)
		return fmt.Sprintf("⭐ Premium granted to `%d` until %s.", id, p.PremiumUntil.UTC().Format(dateLayout))
	})
}

func (b *Bot) onReject(c tele.Context) error {
	return b.adminEvent(c, "/reject", engine.PaymentRejected(), func(id engine.UserID) string {
		return fmt.Sprintf("❌ Payment of `%d` rejected.", id)
	})
}

func (b *Bot) onBan(c tele.Context) error {
	return b.adminEvent(c, "/ban", engine.BlockUser(), func(id engine.UserID) string {
		return fmt.Sprintf("⛔ User `%d` blocked.", id)
	})
}

func (b *Bot) onUnban(c tele.Context) error {
	return b.adminEvent(c, "/unban", engine.UnblockUser(), func(id engine.UserID) string {
		return fmt.Sprintf("✅ User `%d` unblocked.", id)
	})
}

func (b *Bot) onConnections(c tele.Context) error {
	return b.reply(c, connectionsText(b.eng.ActiveConnections(), b.now()), nil)
}

func (b *Bot) onPool(c tele.Context) error {
	text := fmt.Sprintf("🔍 Searching: %d\n💬 Active connections: %d", b.eng.PoolSize(), len(b.eng.ActiveConnections()))
	return b.reply(c, text, nil)
}

// adminEvent applies ev to the user named by the first command argument.
func (b *Bot) adminEvent(c tele.Context, cmd string, ev engine.Event, done func(engine.UserID) string) error {
	args := c.Args()
	if len(args) != 1 {
		return b.reply(c, fmt.Sprintf(textAdminUsage, cmd), nil)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return b.reply(c, fmt.Sprintf(textAdminUsage, cmd), nil)
	}
	ctx := tghelpers.BuildContext(c)
	if err := b.moderate(ctx, engine.UserID(id), ev); err != nil {
		return b.reply(c, failureText(err), nil)
	}
	return b.reply(c, done(engine.UserID(id)), nil)
}

func (b *Bot) moderate(ctx context.Context, target engine.UserID, ev engine.Event) error {
	_, err := b.apply(ctx, target, ev)
	attrs := []slog.Attr{
		slog.Int64("user_id", logger.UserIDFrom(ctx)),
		slog.Int64("target_id", int64(target)),
		slog.String("event_kind", ev.Kind.String()),
	}
	if err != nil {
		logger.Warn(ctx, component, "moderation.rejected", append(attrs, slog.String("err", err.Error()))...)
		return err
	}
	logger.Info(ctx, component, "moderation.applied", attrs...)
	return nil
}

func failureText(err error) string {
	var te *engine.TransitionError
	if errors.As(err, &te) {
		return fmt.Sprintf("❌ `%s` (user is %s)", te.Code(), te.State)
	}
	return textFailed
}

// canModerate reports whether the callback comes from the admin or the
// moderation chat.
func (b *Bot) canModerate(c tele.Context) bool {
	if s := c.Sender(); s != nil && b.cfg.AdminID != 0 && s.ID == b.cfg.AdminID {
		return true
	}
	chat := c.Chat()
	return chat != nil && b.cfg.ModerationChatID != 0 && chat.ID == b.cfg.ModerationChatID
}

// onPaymentDecision handles the approve and reject buttons under a payment request.
func (b *Bot) onPaymentDecision(approve bool) tele.HandlerFunc {
	return func(c tele.Context) error {
		if !b.canModerate(c) {
			return nil
		}
		id, err := callbacks.PayloadInt64(c)
		if err != nil || id <= 0 {
			return nil
		}
		ev, verdict := engine.PaymentRejected(), "❌ Rejected"
		if approve {
			ev, verdict = engine.PaymentVerified(), "✅ Approved"
		}
		ctx := tghelpers.BuildContext(c)
		if err := b.moderate(ctx, engine.UserID(id), ev); err != nil {
			return tghelpers.SendMD(c, failureText(err))
		}
		if s := c.Sender(); s != nil {
			verdict += " by " + s.FirstName
		}
		var original string
		if m := c.Message(); m != nil {
			original = m.Text
		}
		return c.Edit(original + "\n\n" + verdict)
	}
}
