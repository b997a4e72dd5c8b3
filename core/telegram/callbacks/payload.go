package callbacks

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// PayloadInt64 parses the callback payload as a decimal id.
func PayloadInt64(c tele.Context) (int64, error) {
	raw := strings.TrimSpace(CallbackPayload(c))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("callback %s: payload %q is not an id: %w", CallbackKey(c), raw, err)
	}
	return id, nil
}

// PayloadString returns the trimmed payload and reports whether it is non-empty.
func PayloadString(c tele.Context) (string, bool) {
	p := strings.TrimSpace(CallbackPayload(c))
	return p, p != ""
}
