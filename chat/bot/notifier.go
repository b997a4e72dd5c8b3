package bot

import (
	"context"
	"errors"
	"time"

	"github.com/m3rciful/tandembot/chat/engine"
	"github.com/m3rciful/tandembot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// Outbox delivers messages to arbitrary chats.
type Outbox interface {
	Send(ctx context.Context, to int64, what any, opts ...any) error
	Copy(ctx context.Context, to int64, msg tele.Editable, opts ...any) error
}

// ProfileSource looks up cached profiles.
type ProfileSource interface {
	Profile(id engine.UserID) (engine.Profile, bool)
}

// Notifier tells users about transitions they did not initiate.
type Notifier struct {
	out      Outbox
	profiles ProfileSource
}

var _ engine.Notifier = (*Notifier)(nil)

// NewNotifier builds a notifier. Profiles may be attached later with SetProfiles.
func NewNotifier(out Outbox) *Notifier {
	return &Notifier{out: out}
}

// SetProfiles attaches the profile lookup used to introduce partners.
func (n *Notifier) SetProfiles(src ProfileSource) { n.profiles = src }

// NotifyMatched implements engine.Notifier.
func (n *Notifier) NotifyMatched(ctx context.Context, a, b engine.UserID) error {
	menu := menuFor(engine.StateConnected)
	return errors.Join(
		n.send(ctx, a, matchedText(n.profile(b)), menu),
		n.send(ctx, b, matchedText(n.profile(a)), menu),
	)
}

// NotifyDisconnected implements engine.Notifier.
func (n *Notifier) NotifyDisconnected(ctx context.Context, user engine.UserID, reason engine.Reason) error {
	return n.send(ctx, user, disconnectedText(reason), menuFor(engine.StateIdle))
}

// NotifyBlocked implements engine.Notifier.
func (n *Notifier) NotifyBlocked(ctx context.Context, user engine.UserID) error {
	return n.send(ctx, user, textBlockedByMods, keyboard.RemoveKeyboard())
}

// NotifyPayment implements engine.Notifier.
func (n *Notifier) NotifyPayment(ctx context.Context, user engine.UserID, approved bool, premiumUntil time.Time) error {
	text := textPaymentRejected
	if approved {
		text = paymentApprovedText(premiumUntil)
	}
	return n.send(ctx, user, text, menuFor(engine.StateIdle))
}

func (n *Notifier) send(ctx context.Context, user engine.UserID, text string, markup *tele.ReplyMarkup) error {
	return n.out.Send(ctx, int64(user), text, &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: markup})
}

func (n *Notifier) profile(id engine.UserID) engine.Profile {
	if n.profiles != nil {
		if p, ok := n.profiles.Profile(id); ok {
			return p
		}
	}
	return engine.Profile{UserID: id}
}
