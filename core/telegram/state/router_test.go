package state

import (
	"testing"

	"github.com/m3rciful/tandembot/core/telegram/telegramtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

func TestRouterDispatchesByState(t *testing.T) {
	states := map[int64]State{1: "awaiting_profile", 2: "connected"}
	r := NewRouter(SourceFunc(func(id int64) State { return states[id] }))

	var got []string
	r.Handle("awaiting_profile", func(c tele.Context) error {
		got = append(got, "profile:"+c.Text())
		return nil
	})
	r.Handle("connected", func(c tele.Context) error {
		got = append(got, "relay:"+c.Text())
		return nil
	})

	assert.True(t, r.InProgress(1))
	assert.True(t, r.InProgress(2))
	assert.False(t, r.InProgress(3))
	assert.Equal(t, "idle", r.GetState(3))

	require.NoError(t, r.ManagerHandler(telegramtest.Text(1, "Anna")))
	require.NoError(t, r.ManagerHandler(telegramtest.Text(2, "hi")))
	require.NoError(t, r.ManagerHandler(telegramtest.Text(3, "ignored")))
	assert.Equal(t, []string{"profile:Anna", "relay:hi"}, got)

	r.Handle("connected", nil)
	assert.False(t, r.InProgress(2))
}

func TestRouterWithoutSource(t *testing.T) {
	var r *Router
	assert.Equal(t, StateIdle, r.State(1))
}
