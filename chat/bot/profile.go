package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/tandembot/chat/engine"
	"github.com/m3rciful/tandembot/core/logger"
	"github.com/m3rciful/tandembot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/tandembot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// onStart greets the user and opens the profile flow for missing fields.
func (b *Bot) onStart(c tele.Context) error {
	user := userOf(c)
	sess := b.eng.QueryState(user)
	p, _ := b.eng.Profile(user)
	if p.Complete() || sess.State != engine.StateIdle {
		return b.reply(c, textWelcome, menuFor(sess.State))
	}
	if err := b.reply(c, textWelcomeNew, nil); err != nil {
		return err
	}
	return b.beginProfile(c)
}

func (b *Bot) onProfile(c tele.Context) error {
	user := userOf(c)
	p, ok := b.eng.Profile(user)
	if !ok || !p.Complete() {
		return b.beginProfile(c)
	}
	return b.reply(c, profileText(p, b.now()), editProfileMarkup())
}

func (b *Bot) onEditProfile(c tele.Context) error {
	return b.beginProfile(c)
}

func (b *Bot) beginProfile(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	res, err := b.apply(ctx, userOf(c), engine.StartProfile())
	if err != nil {
		return b.reply(c, explain(err), menuFor(b.session(c).State))
	}
	return b.prompt(c, res.Step)
}

func (b *Bot) prompt(c tele.Context, step engine.ProfileStep) error {
	markup := pickerFor(step)
	if markup == nil {
		markup = menuFor(engine.StateAwaitingProfile)
	}
	return b.reply(c, stepPrompts[step], markup)
}

// onProfileInput receives every message while a profile step is open.
func (b *Bot) onProfileInput(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Text == "" {
		return b.reply(c, textTextOnly, nil)
	}
	return b.submit(c, msg.Text)
}

// onPick handles the inline pickers of the language, gender and country steps.
func (b *Bot) onPick(c tele.Context) error {
	value, ok := callbacks.PayloadString(c)
	if !ok {
		return nil
	}
	sess := b.session(c)
	if sess.State != engine.StateAwaitingProfile || stepKey(sess.Step) != callbacks.CallbackKey(c) {
		return b.reply(c, textStaleStep, nil)
	}
	return b.submit(c, value)
}

func stepKey(step engine.ProfileStep) string {
	switch step {
	case engine.StepLanguage:
		return cbLanguage
	case engine.StepGender:
		return cbGender
	case engine.StepCountry:
		return cbCountry
	}
	return ""
}

func (b *Bot) submit(c tele.Context, value string) error {
	ctx := tghelpers.BuildContext(c)
	user := userOf(c)
	step := b.eng.QueryState(user).Step
	res, err := b.apply(ctx, user, engine.SubmitField(value))
	switch {
	case errors.Is(err, engine.ErrInvalidField):
		logger.Debug(ctx, component, "profile.invalid",
			slog.Int64("user_id", int64(user)),
			slog.String("step", step.String()),
			slog.String("err", err.Error()),
		)
		return b.reply(c, stepErrors[step], pickerFor(step))
	case err != nil:
		return b.reply(c, explain(err), menuFor(b.session(c).State))
	}
	if res.To == engine.StateAwaitingProfile {
		return b.prompt(c, res.Step)
	}
	logger.Info(ctx, component, "profile.completed", slog.Int64("user_id", int64(user)))
	return b.reply(c, textProfileSaved, menuFor(res.To))
}

func (b *Bot) cancelProfile(ctx context.Context, c tele.Context) error {
	if _, err := b.apply(ctx, userOf(c), engine.CancelProfile()); err != nil {
		return b.reply(c, explain(err), menuFor(b.session(c).State))
	}
	return b.reply(c, textProfileCanceled, menuFor(engine.StateIdle))
}
