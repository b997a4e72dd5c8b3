package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/tandembot/chat/engine"
	"github.com/m3rciful/tandembot/core/bootstrap"
	coreconfig "github.com/m3rciful/tandembot/core/config"
	tg "github.com/m3rciful/tandembot/core/telegram"
)

const sampleConfig = `
telegram:
  token: "123:abc"
  admin_id: 42
matching:
  search_timeout: 3m
moderation:
  chat_id: -1001
  log_tail: 500
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, coreconfig.RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, 3*time.Minute, cfg.Matching.SearchTimeout)
	assert.Equal(t, engine.DefaultPassInterval, cfg.Matching.PassInterval)
	assert.Equal(t, engine.DefaultPremiumDuration, cfg.Matching.PremiumDuration)
	assert.True(t, cfg.Matching.Immediate)
	assert.Equal(t, int64(-1001), cfg.Moderation.ChatID)
	assert.Equal(t, cfg.Moderation.HistoryLimit, cfg.Moderation.LogTail)
	assert.False(t, cfg.Database.Enabled())
	assert.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MATCHING_SEARCH_TIMEOUT", "90s")
	t.Setenv("MATCHING_IMMEDIATE", "false")
	t.Setenv("REDIS_ADDR", "localhost:6380")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Matching.SearchTimeout)
	assert.False(t, cfg.Matching.Immediate)
	assert.Equal(t, "localhost:6380", cfg.Redis.Addr)
}

func TestLoadRejectsBadMatching(t *testing.T) {
	body := "telegram:\n  token: \"123:abc\"\nmatching:\n  search_timeout: 1m\n  pass_interval: 1h\n"
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass_interval")

	body = "telegram:\n  token: \"123:abc\"\nmatching:\n  pass_interval: 1s\n  restore_grace: 1ns\n"
	_, err = Load(writeConfig(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restore_grace")
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	return cfg
}

func noLogger(*coreconfig.Config) error { return nil }

func TestNewWithMemoryStores(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, Options{
		Bootstrap: bootstrap.Options{LoggerInit: noLogger},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	assert.Same(t, cfg.CoreConfig(), opts.Config)
	assert.NotEmpty(t, opts.Routes)

	names := make([]string, 0, len(opts.Middlewares))
	for _, mw := range opts.Middlewares {
		names = append(names, mw.Name)
	}
	assert.Contains(t, names, "deny")

	_, ok := a.registry.GetCallback("pay_ok")
	assert.True(t, ok)
}

func TestLifecycleCheckpointsToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.Addr = mr.Addr()

	ctx := context.Background()
	a, err := New(ctx, cfg, Options{Bootstrap: bootstrap.Options{LoggerInit: noLogger}})
	require.NoError(t, err)

	eng := a.Engine()
	for _, id := range []engine.UserID{1, 2} {
		_, err := eng.HandleEvent(ctx, id, engine.StartProfile())
		require.NoError(t, err)
		for _, v := range []string{"en", "Name", "30", "male", "de"} {
			_, err := eng.HandleEvent(ctx, id, engine.SubmitField(v))
			require.NoError(t, err)
		}
	}
	_, err = eng.HandleEvent(ctx, 1, engine.RequestSearch(engine.Filter{Language: "en"}))
	require.NoError(t, err)

	require.NoError(t, a.onStart(ctx, tg.Runtime{}))
	require.NoError(t, a.onStop(ctx, tg.Runtime{}))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "1")
	assert.Nil(t, a.redis)
}
