package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/tandembot/chat/engine"

	tele "gopkg.in/telebot.v4"
)

var (
	opened = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	ann    = engine.Profile{UserID: 1, Name: "Ann_B", Language: "en", Country: "de"}
	bob    = engine.Profile{UserID: 2, Name: "Bob", Language: "es", Country: "us"}
	conn   = engine.Connection{ID: "conn-1", A: 1, B: 2, StartedAt: opened}
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
}

func chatLog() []Entry {
	return []Entry{
		{From: 1, Kind: "text", Text: "hello *there*", At: opened.Add(time.Minute)},
		{From: 2, Kind: "photo", Text: "nice view", At: opened.Add(2 * time.Minute)},
	}
}

func TestRenderGolden(t *testing.T) {
	g := newGoldie(t)
	closedAt := opened.Add(12*time.Minute + 30*time.Second)
	premium := ann
	premium.PremiumUntil = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	g.Assert(t, "connection_opened", []byte(RenderConnectionOpened(conn, ann, bob)))
	g.Assert(t, "connection_closed", []byte(RenderConnectionClosed(conn, ann, bob, engine.ReasonBlockedPartner, chatLog(), 3, closedAt)))
	g.Assert(t, "connection_closed_empty", []byte(RenderConnectionClosed(
		engine.Connection{ID: "conn-9", A: 7, B: 8, StartedAt: opened},
		engine.Profile{UserID: 7}, engine.Profile{UserID: 8},
		engine.ReasonLeft, nil, 0, opened.Add(45*time.Second))))
	g.Assert(t, "payment_request", []byte(RenderPaymentRequest(ann, opened)))
	g.Assert(t, "payment_request_premium", []byte(RenderPaymentRequest(premium, opened)))
}

func TestHistoryKeepsNewest(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Append("c", Entry{From: engine.UserID(i)})
	}
	assert.Equal(t, 3, h.Len("c"))

	entries, total := h.Take("c")
	assert.Equal(t, 5, total)
	require.Len(t, entries, 3)
	assert.Equal(t, engine.UserID(2), entries[0].From)
	assert.Equal(t, engine.UserID(4), entries[2].From)
	assert.Zero(t, h.Len("c"))
}

func TestHistoryIgnoresClosedConnections(t *testing.T) {
	h := NewHistory(3)
	h.Append("c", Entry{From: 1})
	_, total := h.Take("c")
	assert.Equal(t, 1, total)

	h.Append("c", Entry{From: 2})
	assert.Zero(t, h.Len("c"))
	entries, total := h.Take("c")
	assert.Empty(t, entries)
	assert.Zero(t, total)

	for i := range closedMemory {
		h.Take(fmt.Sprintf("old-%d", i))
	}
	assert.Len(t, h.closed, closedMemory)
	h.Append("c", Entry{From: 3})
	assert.Equal(t, 1, h.Len("c"), "oldest closed id is forgotten")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "text", KindOf(&tele.Message{Text: "hi"}))
	assert.Equal(t, "photo", KindOf(&tele.Message{Photo: &tele.Photo{}, Caption: "x"}))
	assert.Equal(t, "animation", KindOf(&tele.Message{Animation: &tele.Animation{}, Document: &tele.Document{}}))
	assert.Equal(t, "voice", KindOf(&tele.Message{Voice: &tele.Voice{}}))
	assert.Equal(t, "other", KindOf(nil))

	e := EntryOf(5, &tele.Message{Photo: &tele.Photo{}, Caption: "look", Unixtime: opened.Unix()}, time.Time{})
	assert.Equal(t, "look", e.Text)
	assert.True(t, e.At.Equal(opened))
}

type sent struct {
	to   int64
	what any
	opts []any
}

type fakeOutbox struct {
	mu       sync.Mutex
	sent     []sent
	forwards []*tele.Message
	err      error
}

func (o *fakeOutbox) Send(_ context.Context, to int64, what any, opts ...any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, sent{to: to, what: what, opts: opts})
	return o.err
}

func (o *fakeOutbox) Forward(_ context.Context, to int64, msg tele.Editable) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if m, ok := msg.(*tele.Message); ok {
		o.forwards = append(o.forwards, m)
	}
	return o.err
}

type profileMap map[engine.UserID]engine.Profile

func (m profileMap) Profile(id engine.UserID) (engine.Profile, bool) {
	p, ok := m[id]
	return p, ok
}

func TestMirrorConnectionLifecycle(t *testing.T) {
	out := &fakeOutbox{}
	m := NewMirror(Config{ChatID: -100, MirrorMessages: true, LogTail: 2}, out)
	m.SetProfiles(profileMap{1: ann, 2: bob})
	m.now = func() time.Time { return opened.Add(12*time.Minute + 30*time.Second) }
	ctx := context.Background()

	m.ConnectionOpened(ctx, conn)
	first := &tele.Message{ID: 10, Text: "warm up", Unixtime: opened.Unix()}
	m.Record(ctx, conn.ID, 2, first)
	for i, e := range chatLog() {
		kind := &tele.Message{ID: 11 + i, Text: e.Text, Unixtime: e.At.Unix()}
		if e.Kind == "photo" {
			kind = &tele.Message{ID: 11 + i, Photo: &tele.Photo{}, Caption: e.Text, Unixtime: e.At.Unix()}
		}
		m.Record(ctx, conn.ID, e.From, kind)
	}
	m.ConnectionClosed(ctx, conn, engine.ReasonBlockedPartner)

	require.Len(t, out.sent, 2)
	assert.Equal(t, int64(-100), out.sent[0].to)
	assert.Equal(t, RenderConnectionOpened(conn, ann, bob), out.sent[0].what)
	newGoldie(t).Assert(t, "connection_closed", []byte(out.sent[1].what.(string)))
	assert.Len(t, out.forwards, 3)
	assert.Zero(t, m.History().Len(conn.ID))
}

func TestMirrorPaymentButtons(t *testing.T) {
	out := &fakeOutbox{}
	m := NewMirror(Config{ChatID: -100}, out)
	m.now = func() time.Time { return opened }

	m.PaymentRequested(context.Background(), ann)

	require.Len(t, out.sent, 1)
	assert.Equal(t, RenderPaymentRequest(ann, opened), out.sent[0].what)
	require.Len(t, out.sent[0].opts, 1)
	opts, ok := out.sent[0].opts[0].(*tele.SendOptions)
	require.True(t, ok)
	assert.Equal(t, tele.ModeMarkdown, opts.ParseMode)
	require.Len(t, opts.ReplyMarkup.InlineKeyboard, 1)
	assert.Len(t, opts.ReplyMarkup.InlineKeyboard[0], 2)
}

func TestMirrorDisabledKeepsHistory(t *testing.T) {
	out := &fakeOutbox{}
	m := NewMirror(Config{MirrorMessages: true}, out)

	m.ConnectionOpened(context.Background(), conn)
	m.Record(context.Background(), conn.ID, 1, &tele.Message{Text: "hi"})

	assert.Empty(t, out.sent)
	assert.Empty(t, out.forwards)
	assert.Equal(t, 1, m.History().Len(conn.ID))
}

func TestMirrorSurvivesSendFailure(t *testing.T) {
	out := &fakeOutbox{err: errors.New("chat not found")}
	m := NewMirror(Config{ChatID: -1, MirrorMessages: true}, out)

	assert.NotPanics(t, func() {
		m.ConnectionOpened(context.Background(), conn)
		m.Record(context.Background(), conn.ID, 1, &tele.Message{Text: "hi"})
	})
}

func TestConfigNormalize(t *testing.T) {
	cfg := Config{LogTail: 500}
	cfg.Normalize()
	assert.Equal(t, DefaultHistoryLimit, cfg.HistoryLimit)
	assert.Equal(t, DefaultHistoryLimit, cfg.LogTail)
	assert.False(t, cfg.Enabled())
}
