package bot

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/tandembot/chat/engine"
	"github.com/m3rciful/tandembot/chat/profiles"
	tg "github.com/m3rciful/tandembot/core/telegram"
	"github.com/m3rciful/tandembot/core/telegram/telegramtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

type sent struct {
	to   int64
	what any
}

type fakeOutbox struct {
	mu     sync.Mutex
	sends  []sent
	copies []sent
}

func (o *fakeOutbox) Send(_ context.Context, to int64, what any, _ ...any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sends = append(o.sends, sent{to, what})
	return nil
}

func (o *fakeOutbox) Copy(_ context.Context, to int64, msg tele.Editable, _ ...any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.copies = append(o.copies, sent{to, msg})
	return nil
}

func (o *fakeOutbox) textsTo(to int64) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []string
	for _, s := range o.sends {
		if t, ok := s.what.(string); ok && s.to == to {
			out = append(out, t)
		}
	}
	return out
}

type recordCall struct {
	conn string
	from engine.UserID
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordCall
}

func (r *fakeRecorder) Record(_ context.Context, connID string, from engine.UserID, _ *tele.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordCall{connID, from})
}

type fixture struct {
	bot  *Bot
	eng  *engine.Engine
	out  *fakeOutbox
	rec  *fakeRecorder
	repo *profiles.Memory
}

const adminID = 999

func newFixture(t *testing.T, seed ...engine.Profile) *fixture {
	t.Helper()
	repo := profiles.NewMemory()
	for _, p := range seed {
		require.NoError(t, repo.SaveProfile(context.Background(), p))
	}
	out := &fakeOutbox{}
	notifier := NewNotifier(out)
	seq := 0
	eng := engine.New(engine.Options{
		Profiles: repo,
		Notifier: notifier,
		NewConnectionID: func() string {
			seq++
			return "conn-" + strconv.Itoa(seq)
		},
	})
	notifier.SetProfiles(eng)
	_, err := eng.Restore(context.Background())
	require.NoError(t, err)

	rec := &fakeRecorder{}
	return &fixture{
		bot:  New(Config{AdminID: adminID, ModerationChatID: -100}, eng, out, rec),
		eng:  eng,
		out:  out,
		rec:  rec,
		repo: repo,
	}
}

func complete(id engine.UserID, lang, country string) engine.Profile {
	return engine.Profile{
		UserID:   id,
		Language: lang,
		Name:     "User " + strconv.Itoa(int(id)),
		Age:      25,
		Gender:   engine.GenderFemale,
		Country:  country,
		Region:   engine.RegionOf(country),
	}
}

func TestProfileFlow(t *testing.T) {
	f := newFixture(t)

	c := telegramtest.Text(1, "/start")
	require.NoError(t, f.bot.onStart(c))
	require.Equal(t, []string{textWelcomeNew, stepPrompts[engine.StepLanguage]}, c.Texts())
	assert.Equal(t, engine.StateAwaitingProfile, f.eng.QueryState(1).State)

	steps := []*telegramtest.Context{
		telegramtest.Callback(1, cbLanguage, "es"),
		telegramtest.Text(1, "Anna"),
		telegramtest.Text(1, "30"),
		telegramtest.Callback(1, cbGender, "female"),
	}
	want := []string{
		stepPrompts[engine.StepName],
		stepPrompts[engine.StepAge],
		stepPrompts[engine.StepGender],
		stepPrompts[engine.StepCountry],
	}
	for i, step := range steps {
		if step.Cb != nil {
			require.NoError(t, f.bot.onPick(step))
		} else {
			require.NoError(t, f.bot.states.ManagerHandler(step))
		}
		assert.Equal(t, want[i], step.LastText(), "step %d", i)
	}

	last := telegramtest.Callback(1, cbCountry, "de")
	require.NoError(t, f.bot.onPick(last))
	assert.Equal(t, textProfileSaved, last.LastText())

	p, ok := f.eng.Profile(1)
	require.True(t, ok)
	assert.True(t, p.Complete())
	assert.Equal(t, "es", p.Language)
	assert.Equal(t, engine.RegionEurope, p.Region)
	assert.Equal(t, engine.StateIdle, f.eng.QueryState(1).State)
}

func TestProfileInvalidInput(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.bot.onStart(telegramtest.Text(1, "/start")))
	require.NoError(t, f.bot.onPick(telegramtest.Callback(1, cbLanguage, "en")))
	require.NoError(t, f.bot.states.ManagerHandler(telegramtest.Text(1, "Bo")))

	c := telegramtest.Text(1, "seven")
	require.NoError(t, f.bot.states.ManagerHandler(c))
	assert.Equal(t, stepErrors[engine.StepAge], c.LastText())
	assert.Equal(t, engine.StepAge, f.eng.QueryState(1).Step)

	stale := telegramtest.Callback(1, cbCountry, "de")
	require.NoError(t, f.bot.onPick(stale))
	assert.Equal(t, textStaleStep, stale.LastText())

	media := telegramtest.Text(1, "")
	require.NoError(t, f.bot.states.ManagerHandler(media))
	assert.Equal(t, textTextOnly, media.LastText())
}

func TestSearchMatchRelayAndStop(t *testing.T) {
	f := newFixture(t, complete(1, "en", "de"), complete(2, "en", "us"))

	c1 := telegramtest.Text(1, "/search")
	require.NoError(t, f.bot.onSearch(c1))
	assert.Equal(t, textSearching, c1.LastText())
	assert.Equal(t, engine.StateSearching, f.eng.QueryState(1).State)

	c2 := telegramtest.Text(2, "/search")
	require.NoError(t, f.bot.onSearch(c2))
	assert.Empty(t, c2.Texts())
	require.Equal(t, engine.StateConnected, f.eng.QueryState(2).State)
	assert.Len(t, f.out.textsTo(1), 1)
	assert.Len(t, f.out.textsTo(2), 1)
	assert.Contains(t, f.out.textsTo(1)[0], "User 2")

	msg := telegramtest.Text(1, "hello there")
	require.NoError(t, f.bot.states.ManagerHandler(msg))
	require.Len(t, f.out.copies, 1)
	assert.Equal(t, int64(2), f.out.copies[0].to)
	require.Len(t, f.rec.calls, 1)
	assert.Equal(t, recordCall{"conn-1", 1}, f.rec.calls[0])

	stop := telegramtest.Text(2, "/stop")
	require.NoError(t, f.bot.onStop(stop))
	assert.Equal(t, textLeft, stop.LastText())
	assert.Equal(t, engine.StateIdle, f.eng.QueryState(1).State)
	assert.Equal(t, []string{disconnectedText(engine.ReasonPartnerLeft)}, f.out.textsTo(1)[1:])
}

func TestSearchErrors(t *testing.T) {
	f := newFixture(t, complete(1, "en", "de"))

	incomplete := telegramtest.Text(5, "/search")
	require.NoError(t, f.bot.onSearch(incomplete))
	assert.Equal(t, textProfileFirst, incomplete.LastText())

	premium := telegramtest.Text(1, "/search country:fr")
	require.NoError(t, f.bot.onSearch(premium))
	assert.Equal(t, textFilterPremium, premium.LastText())

	bad := telegramtest.Text(1, "/search region:atlantis")
	require.NoError(t, f.bot.onSearch(bad))
	assert.Equal(t, searchUsage(), bad.LastText())

	require.NoError(t, f.bot.onSearch(telegramtest.Text(1, "/search")))
	again := telegramtest.Text(1, "/search")
	require.NoError(t, f.bot.onSearch(again))
	assert.Equal(t, textAlreadySearch, again.LastText())

	cancel := telegramtest.Text(1, "/cancel")
	require.NoError(t, f.bot.onCancel(cancel))
	assert.Equal(t, textSearchStopped, cancel.LastText())

	nothing := telegramtest.Text(1, "/stop")
	require.NoError(t, f.bot.onStop(nothing))
	assert.Equal(t, textNothingToStop, nothing.LastText())
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		args    []string
		want    engine.Filter
		lang    bool
		wantErr bool
	}{
		{args: nil},
		{args: []string{"de"}, want: engine.Filter{Language: "de"}, lang: true},
		{args: []string{"any", "region:europe"}, want: engine.Filter{Region: "europe"}, lang: true},
		{args: []string{"lang:fr", "country:de"}, want: engine.Filter{Language: "fr", Country: "de"}, lang: true},
		{args: []string{"en", "es"}, wantErr: true},
		{args: []string{"city:paris"}, wantErr: true},
		{args: []string{"region:"}, wantErr: true},
	}
	for _, tt := range tests {
		got, lang, err := parseFilter(tt.args)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.args)
			continue
		}
		require.NoError(t, err, "%v", tt.args)
		assert.Equal(t, tt.want, got, "%v", tt.args)
		assert.Equal(t, tt.lang, lang, "%v", tt.args)
	}
}

func TestBlockPartner(t *testing.T) {
	f := newFixture(t, complete(1, "en", "de"), complete(2, "en", "de"))
	require.NoError(t, f.bot.onSearch(telegramtest.Text(1, "/search")))
	require.NoError(t, f.bot.onSearch(telegramtest.Text(2, "/search")))

	c := telegramtest.Text(1, "/block")
	require.NoError(t, f.bot.onBlock(c))
	assert.Equal(t, textPartnerBlocked, c.LastText())
	p, _ := f.eng.Profile(1)
	assert.True(t, p.Blocks(2))

	again := telegramtest.Text(1, "/block")
	require.NoError(t, f.bot.onBlock(again))
	assert.Equal(t, textNotInChat, again.LastText())
}

func TestPremiumAndModeration(t *testing.T) {
	f := newFixture(t, complete(1, "en", "de"))

	c := telegramtest.Text(1, "/premium")
	require.NoError(t, f.bot.onPremium(c))
	assert.Equal(t, textPaymentSent, c.LastText())

	pending := telegramtest.Text(1, "/premium")
	require.NoError(t, f.bot.onPremium(pending))
	assert.Equal(t, textPaymentPending, pending.LastText())

	outsider := telegramtest.Callback(42, "pay_ok", "1")
	require.NoError(t, f.bot.onPaymentDecision(true)(outsider))
	assert.Equal(t, engine.StateAwaitingPaymentVerification, f.eng.QueryState(1).State)

	mod := telegramtest.Callback(adminID, "pay_ok", "1")
	mod.Msg.Text = "Payment request"
	require.NoError(t, f.bot.onPaymentDecision(true)(mod))
	assert.Equal(t, engine.StateIdle, f.eng.QueryState(1).State)
	assert.Contains(t, mod.LastText(), "✅ Approved")

	p, _ := f.eng.Profile(1)
	assert.True(t, p.IsPremium(time.Now()))
	assert.Contains(t, f.out.textsTo(1)[0], "Premium is active")
}

func TestAdminCommands(t *testing.T) {
	f := newFixture(t, complete(1, "en", "de"))

	usage := telegramtest.Text(adminID, "/ban")
	require.NoError(t, f.bot.onBan(usage))
	assert.Equal(t, "Usage: /ban <user id>", usage.LastText())

	ban := telegramtest.Text(adminID, "/ban 1")
	require.NoError(t, f.bot.onBan(ban))
	assert.Equal(t, "⛔ User `1` blocked.", ban.LastText())
	assert.True(t, f.bot.Denied(1))
	assert.Equal(t, []string{textBlockedByMods}, f.out.textsTo(1))

	verify := telegramtest.Text(adminID, "/verify 1")
	require.NoError(t, f.bot.onVerify(verify))
	assert.Contains(t, verify.LastText(), "USER_BLOCKED")

	unban := telegramtest.Text(adminID, "/unban 1")
	require.NoError(t, f.bot.onUnban(unban))
	assert.False(t, f.bot.Denied(1))

	pool := telegramtest.Text(adminID, "/pool")
	require.NoError(t, f.bot.onPool(pool))
	assert.Contains(t, pool.LastText(), "Searching: 0")
}

func TestRegisterAndFallbacks(t *testing.T) {
	f := newFixture(t)
	reg := tg.NewRegistry()
	require.NoError(t, f.bot.Register(reg))

	key, _, ok := reg.LookupAlias(labelSearch)
	require.True(t, ok)
	assert.Equal(t, "/search", key)
	_, ok = reg.GetCallback(cbCountry)
	assert.True(t, ok)
	assert.NotEmpty(t, f.bot.Routes(reg))

	c := telegramtest.Text(3, "what now")
	require.NoError(t, f.bot.UnknownText()(c))
	assert.Equal(t, textUseMenu, c.LastText())

	cb := telegramtest.Callback(3, "nope", "")
	require.NoError(t, f.bot.UnknownCallback()(cb))
	require.Len(t, cb.Responses, 1)
	assert.Equal(t, textUnsupported, cb.Responses[0].Text)
}

func TestOnLimited(t *testing.T) {
	f := newFixture(t)

	msg := telegramtest.Text(4, "hello")
	require.NoError(t, f.bot.OnLimited(msg))
	assert.Equal(t, textSlowDown, msg.LastText())

	cb := telegramtest.Callback(4, cbLanguage, "en")
	require.NoError(t, f.bot.OnLimited(cb))
	require.Len(t, cb.Responses, 1)
	assert.Equal(t, textSlowDown, cb.Responses[0].Text)
}
