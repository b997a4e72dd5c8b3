package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/tandembot/core/telegram/telegramtest"

	tele "gopkg.in/telebot.v4"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		name          string
		cb            *tele.Callback
		unique, value string
	}{
		{"nil", nil, "", ""},
		{"encoded", &tele.Callback{Data: "\flang|de"}, "lang", "de"},
		{"no payload", &tele.Callback{Data: "\fprofile_edit"}, "profile_edit", ""},
		{"payload with pipe", &tele.Callback{Data: "\fpay_ok|1|2"}, "pay_ok", "1|2"},
		{"decoded by telebot", &tele.Callback{Unique: "country", Data: "DE|x"}, "country", "DE|x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, p := Split(tc.cb)
			assert.Equal(t, tc.unique, u)
			assert.Equal(t, tc.value, p)
		})
	}
}

func TestPayloadHelpers(t *testing.T) {
	c := telegramtest.Callback(7, "pay_ok", " 42 ")
	assert.Equal(t, "pay_ok", CallbackKey(c))

	id, err := PayloadInt64(c)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, ok := PayloadString(telegramtest.Callback(7, "gender", "  "))
	assert.False(t, ok)

	_, err = PayloadInt64(telegramtest.Callback(7, "pay_ok", "x"))
	assert.Error(t, err)
}
