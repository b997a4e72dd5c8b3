package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "en", want: "en"},
		{in: "pt-BR", want: "pt"},
		{in: " DE ", want: "de"},
		{in: "", wantErr: true},
		{in: "not a language", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeLanguage(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, "German", LanguageName("de"))
}

func TestEntitlements(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	free := Profile{}
	paid := Profile{PremiumUntil: now.Add(time.Hour)}
	expired := Profile{PremiumUntil: now}

	assert.Equal(t, TierFree, EntitlementsOf(free, now).Tier)
	assert.Equal(t, TierPremium, EntitlementsOf(paid, now).Tier)
	assert.Equal(t, TierFree, EntitlementsOf(expired, now).Tier)

	loc := Filter{Region: RegionAsia}
	assert.False(t, EntitlementsOf(free, now).Permit(loc))
	assert.True(t, EntitlementsOf(free, now).Permit(Filter{Language: "en"}))
	assert.True(t, EntitlementsOf(paid, now).Permit(loc))
}

func TestFilterNormalize(t *testing.T) {
	f, err := Filter{Language: "*", Region: " Europe ", Country: "DE"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, Filter{Region: RegionEurope, Country: "de"}, f)
	assert.Equal(t, "region=europe,country=de", f.String())
	assert.Equal(t, "any", Filter{}.String())

	_, err = Filter{Country: CountryOther}.Normalize()
	assert.Error(t, err)
}

func TestCompatibleIsSymmetric(t *testing.T) {
	en := Profile{UserID: 1, Language: "en", Country: "us", Region: RegionAmericas}
	de := Profile{UserID: 2, Language: "de", Country: "de", Region: RegionEurope}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	de.PremiumUntil = now.Add(time.Hour)
	a := &candidate{user: 1, profile: en, filter: Filter{Language: "de"}}
	b := &candidate{user: 2, profile: de, filter: Filter{Language: "en", Region: RegionAmericas}}

	assert.True(t, compatible(a, b, now))
	assert.True(t, compatible(b, a, now))

	b.filter.Region = RegionAsia
	assert.False(t, compatible(a, b, now))
	assert.False(t, compatible(b, a, now))

	b.filter.Region = RegionAmericas
	assert.False(t, compatible(a, b, now.Add(2*time.Hour)), "region filter after premium ended")

	b.filter.Region = ""
	a.profile.Blocklist = []UserID{2}
	assert.False(t, compatible(b, a, now))
	assert.False(t, compatible(a, a, now))
}

func TestPoolReserveOrder(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := newPool()
	_, ok := p.add(candidate{user: 1, enqueuedAt: now})
	require.True(t, ok)
	_, ok = p.add(candidate{user: 1, enqueuedAt: now})
	require.False(t, ok)
	_, _ = p.add(candidate{user: 2, enqueuedAt: now.Add(time.Second)})
	_, _ = p.add(candidate{user: 3, profile: Profile{PremiumUntil: now.Add(time.Minute)}, enqueuedAt: now.Add(2 * time.Second)})

	a, b, ok := p.reserve(now)
	require.True(t, ok)
	assert.Equal(t, UserID(3), a.user)
	assert.Equal(t, UserID(1), b.user)
	assert.Equal(t, 1, p.size())
	assert.True(t, p.contains(2))

	p.requeue(a)
	assert.True(t, p.contains(3))
	assert.False(t, p.remove(3, a.ticket+100))
	assert.True(t, p.remove(3, a.ticket))
}

func TestPoolLapsedDropsExpiredLocationFilters(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := newPool()
	prem := Profile{PremiumUntil: now.Add(time.Minute)}
	_, _ = p.add(candidate{user: 1, profile: prem, filter: Filter{Country: "de"}, enqueuedAt: now})
	_, _ = p.add(candidate{user: 2, profile: prem, filter: Filter{Language: "en"}, enqueuedAt: now})
	_, _ = p.add(candidate{user: 3, filter: Filter{Language: "en"}, enqueuedAt: now})

	assert.Empty(t, p.lapsed(now))
	gone := p.lapsed(now.Add(2 * time.Minute))
	require.Len(t, gone, 1)
	assert.Equal(t, UserID(1), gone[0].user)
	assert.False(t, p.contains(1))
	assert.Equal(t, 2, p.size())
}

func TestStateText(t *testing.T) {
	b, err := StateConnected.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "connected", string(b))

	var s State
	require.NoError(t, s.UnmarshalText([]byte("awaiting_payment")))
	assert.Equal(t, StateAwaitingPaymentVerification, s)
	assert.Error(t, s.UnmarshalText([]byte("bogus")))
}
