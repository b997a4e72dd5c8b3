package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesEnvOverFile(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: file-token
  admin_id: 10
  run_mode: polling
rate_limit:
  interval_ms: 300
  exclude_updates: [Callback]
`)
	t.Setenv("TELEGRAM_ADMIN_ID", "42")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.Telegram.Token)
	assert.Equal(t, int64(42), cfg.Telegram.AdminID)
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, []string{UpdateCallback}, cfg.RateLimit.ExcludeUpdates)
}

func TestNormalizeRejectsBadValues(t *testing.T) {
	cases := map[string]Config{
		"missing token":   {},
		"bad run mode":    {Telegram: TelegramConfig{Token: "t", RunMode: "carrier-pigeon"}},
		"webhook no url":  {Telegram: TelegramConfig{Token: "t", RunMode: RunModeWebhook}},
		"bad exclusion":   {Telegram: TelegramConfig{Token: "t"}, RateLimit: RateLimitConfig{ExcludeUpdates: []string{"poll"}}},
		"negative window": {Telegram: TelegramConfig{Token: "t", LongPollTimeoutSeconds: -1}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, Normalize(&cfg), ErrInvalid)
		})
	}
}

func TestDecodeMissingFile(t *testing.T) {
	var cfg Config
	assert.ErrorContains(t, Decode(filepath.Join(t.TempDir(), "nope.yaml"), &cfg), "read config")
}

func TestNormalizeReportsEveryProblem(t *testing.T) {
	cfg := Config{
		Telegram:  TelegramConfig{RunMode: RunModeWebhook},
		RateLimit: RateLimitConfig{IntervalMS: -5},
	}
	err := Normalize(&cfg)
	require.ErrorIs(t, err, ErrInvalid)
	for _, want := range []string{"telegram.token", "webhook.url", "webhook.listen", "webhook.port", "rate_limit.interval_ms"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestRateLimitHelpers(t *testing.T) {
	cfg := Config{
		Telegram:  TelegramConfig{Token: "t"},
		RateLimit: RateLimitConfig{IntervalMS: 250, ExcludeUpdates: []string{" Message", "", "message", "CALLBACK"}},
	}
	require.NoError(t, Normalize(&cfg))
	assert.Equal(t, []string{UpdateMessage, UpdateCallback}, cfg.RateLimit.ExcludeUpdates)
	assert.Equal(t, 250*time.Millisecond, cfg.RateLimit.Interval())
	assert.Contains(t, cfg.RateLimit.Excluded(), UpdateCallback)
	assert.NotContains(t, cfg.RateLimit.Excluded(), UpdateInlineQuery)
	assert.Zero(t, RateLimitConfig{IntervalMS: -1}.Interval())
}
