package middleware

import (
	"testing"
	"time"

	"github.com/m3rciful/tandembot/core/logger"
	tghelpers "github.com/m3rciful/tandembot/core/telegram/helpers"
	"github.com/m3rciful/tandembot/core/telegram/telegramtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

type stateMap map[int64]string

func (m stateMap) GetState(userID int64) string { return m[userID] }

func counting(n *int) tele.HandlerFunc {
	return func(tele.Context) error {
		*n++
		return nil
	}
}

func TestStatePassesOnlyExpected(t *testing.T) {
	var calls int
	h := State(stateMap{1: "connected", 2: "idle"}, "connected", "searching")(counting(&calls))

	require.NoError(t, h(telegramtest.Text(1, "hi")))
	require.NoError(t, h(telegramtest.Text(2, "hi")))
	assert.Equal(t, 1, calls)
}

func TestAdminOnly(t *testing.T) {
	var calls, rejected int
	h := AdminOnlyMiddleware(AdminOptions{AdminID: 7, OnReject: counting(&rejected)})(counting(&calls))

	require.NoError(t, h(telegramtest.Text(7, "/pool")))
	require.NoError(t, h(telegramtest.Text(8, "/pool")))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, rejected)

	closed := AdminOnlyMiddleware(AdminOptions{OnReject: counting(&rejected)})(counting(&calls))
	require.NoError(t, closed(telegramtest.Text(7, "/pool")))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, rejected)
}

func TestDenyExemptsAdmin(t *testing.T) {
	var calls, rejected int
	banned := func(id int64) bool { return id == 5 || id == 7 }
	h := DenyMiddleware(DenyOptions{Denied: banned, AdminID: 7, OnReject: counting(&rejected)})(counting(&calls))

	require.NoError(t, h(telegramtest.Text(5, "x")))
	require.NoError(t, h(telegramtest.Text(6, "x")))
	require.NoError(t, h(telegramtest.Text(7, "x")))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, rejected)
}

func TestRecoverSwallowsPanic(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	assert.NotPanics(t, func() { _ = h(telegramtest.Text(1, "x")) })
}

func TestRateLimitDropsBurst(t *testing.T) {
	var calls, limited int
	h := RateLimitMiddleware(RateLimitOptions{Interval: time.Hour, OnLimited: counting(&limited)})(counting(&calls))

	require.NoError(t, h(telegramtest.Text(1, "a")))
	require.NoError(t, h(telegramtest.Text(1, "b")))
	require.NoError(t, h(telegramtest.Text(2, "c")))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, limited)
}

func TestRateLimitExcludesKinds(t *testing.T) {
	var calls int
	h := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"callback": {}},
	})(counting(&calls))

	require.NoError(t, h(telegramtest.Callback(1, "k", "a")))
	require.NoError(t, h(telegramtest.Callback(1, "k", "b")))
	require.NoError(t, h(telegramtest.Text(1, "c")))
	require.NoError(t, h(telegramtest.Text(1, "d")))
	assert.Equal(t, 3, calls)
}

func TestUserGateSweepsStaleEntries(t *testing.T) {
	g := &userGate{interval: time.Second, last: make(map[int64]time.Time)}
	now := time.Unix(1000, 0)

	assert.True(t, g.allow(1, now))
	assert.False(t, g.allow(1, now.Add(500*time.Millisecond)))
	assert.True(t, g.allow(2, now.Add(time.Second)))

	later := now.Add(time.Minute)
	assert.True(t, g.allow(3, later))
	assert.Len(t, g.last, 1)
}

func TestMetricsCountsReplies(t *testing.T) {
	c := telegramtest.Text(1, "x")
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		_ = c.Send("one")
		return c.Send("two", &tele.ReplyMarkup{})
	})
	require.NoError(t, h(c))
	msgs, kb := GetCounters(c)
	assert.Equal(t, 2, msgs)
	assert.True(t, kb)
}

func TestLoggerStoresRequestContext(t *testing.T) {
	c := telegramtest.Text(5, "/search de")
	c.UpdateID = 77
	require.NoError(t, LoggerMiddleware(func(tele.Context) error { return nil })(c))

	ctx, ok := tghelpers.ContextFrom(c)
	require.True(t, ok)
	assert.Equal(t, logger.BuildRID(77, 5, 5), logger.RIDFrom(ctx))
	assert.Equal(t, int64(5), logger.UserIDFrom(ctx))
	assert.Equal(t, 77, logger.UpdateIDFrom(ctx))

	ctx = tghelpers.WithConn(c, "conn-1")
	stored, _ := tghelpers.ContextFrom(c)
	assert.Equal(t, "conn-1", logger.ConnIDFrom(stored))
	assert.Equal(t, logger.RIDFrom(ctx), logger.RIDFrom(stored))
}

func TestUpdateAttrsOmitMessageText(t *testing.T) {
	attrs := func(c *telegramtest.Context) map[string]string {
		out := map[string]string{}
		for _, a := range updateAttrs(c, c.Update()) {
			out[a.Key] = a.Value.String()
		}
		return out
	}

	got := attrs(telegramtest.Text(1, "hello, this is private"))
	assert.Equal(t, "text", got["op"])
	assert.NotContains(t, got, "payload")

	got = attrs(telegramtest.Text(1, "/search lang:de"))
	assert.Equal(t, "/search", got["payload"])

	got = attrs(telegramtest.Callback(1, "lang", "de"))
	assert.Equal(t, "lang", got["cb_key"])
	assert.Equal(t, "de", got["payload"])
}

func TestSeenUpdatesDedup(t *testing.T) {
	s := &seenUpdates{ttl: time.Second, seen: map[int]time.Time{}}
	now := time.Unix(100, 0)
	assert.True(t, s.first(1, now))
	assert.False(t, s.first(1, now.Add(time.Millisecond)))
	assert.True(t, s.first(1, now.Add(2*time.Second)))
}
