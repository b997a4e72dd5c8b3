package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Split returns the unique key and payload of cb. Telebot encodes inline
// button data as "\f<unique>|<payload>"; when telebot has already matched a
// unique handler, Data holds the bare payload.
func Split(cb *tele.Callback) (unique, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	unique, payload, _ = strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return strings.TrimSpace(unique), payload
}

// CallbackKey returns the unique key of the current callback or "".
func CallbackKey(c tele.Context) string {
	key, _ := Split(c.Callback())
	return key
}

// CallbackPayload returns the payload of the current callback or "".
func CallbackPayload(c tele.Context) string {
	_, payload := Split(c.Callback())
	return payload
}
