package middleware

import (
	"log/slog"
	"slices"

	"github.com/m3rciful/tandembot/core/logger"
	tghelpers "github.com/m3rciful/tandembot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// StateGetter reports the session state of a user.
type StateGetter interface {
	GetState(userID int64) string
}

// State lets an update through only while its sender is in one of the
// expected session states. Other updates are dropped silently.
func State(mgr StateGetter, expected ...string) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() == nil {
				return nil
			}
			current := mgr.GetState(c.Sender().ID)
			event := "state.skip"
			if slices.Contains(expected, current) {
				event = "state.match"
			}
			if logger.ShouldSampleDebug() {
				logger.Debug(tghelpers.BuildContext(c), "tg", event,
					slog.String("state", current),
				)
			}
			if event == "state.skip" {
				return nil
			}
			return next(c)
		}
	}
}
