package logger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/tandembot/core/config"
)

func TestSettingsFrom(t *testing.T) {
	s := settingsFrom(nil)
	assert.Equal(t, formatJSON, s.format)
	assert.Equal(t, slog.LevelInfo, s.level)
	assert.Equal(t, [2]int{1, 50}, s.sample)

	s = settingsFrom(&coreconfig.Config{Logging: coreconfig.LoggingConfig{
		Profile:     "Dev",
		Level:       "warning",
		KeysOrder:   "event, ts,,level",
		DebugSample: "0",
	}})
	assert.Equal(t, formatKV, s.format)
	assert.Equal(t, "dev", s.profile)
	assert.Equal(t, slog.LevelWarn, s.level)
	assert.Equal(t, []string{"event", "ts", "level"}, s.order)
	assert.Equal(t, [2]int{0, 0}, s.sample)

	s = settingsFrom(&coreconfig.Config{Logging: coreconfig.LoggingConfig{Profile: "debug", Format: "json", DebugSample: "3/4"}})
	assert.Equal(t, formatJSON, s.format)
	assert.Equal(t, [2]int{3, 4}, s.sample)
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(2, 5)
	var passed int
	for i := 0; i < 50; i++ {
		if s.Allow() {
			passed++
		}
	}
	assert.Equal(t, 20, passed)

	s.Set(0, 0)
	assert.True(t, s.Allow())
	s.Set(9, 3)
	assert.True(t, s.Allow())
	assert.True(t, s.Allow())
	assert.True(t, s.Allow())
}

func TestParseRatioSpec(t *testing.T) {
	cases := map[string][2]int{
		"1/50": {1, 50},
		" 2/3": {2, 3},
		"10":   {1, 10},
		"0":    {0, 0},
		"x/y":  {0, 0},
		"":     {0, 0},
	}
	for in, want := range cases {
		num, den := parseRatioSpec(in)
		assert.Equal(t, want, [2]int{num, den}, in)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAsyncWriter(t *testing.T) {
	a, b := &bytes.Buffer{}, &bytes.Buffer{}
	w := newAsyncWriter([]io.Writer{a, nil, b}, 8)
	for _, line := range []string{"one\n", "two\n", "three\n"} {
		require.NoError(t, w.Write([]byte(line)))
	}
	require.NoError(t, w.Flush())
	assert.Equal(t, "one\ntwo\nthree\n", a.String())
	assert.Equal(t, a.String(), b.String())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	bad := newAsyncWriter([]io.Writer{failingWriter{}}, 1)
	_ = bad.Write([]byte("lost line\n"))
	assert.Error(t, bad.Close())
	assert.Error(t, bad.Write([]byte("more\n")))
}

func TestErrorsSinkGetsWarnAndAbove(t *testing.T) {
	mainBuf, errBuf := &bytes.Buffer{}, &bytes.Buffer{}
	out := newAsyncWriter([]io.Writer{mainBuf}, 0)
	errs := newAsyncWriter([]io.Writer{errBuf}, 0)
	log := slog.New(newStructuredHandler(handlerConfig{
		level:  slog.LevelDebug,
		writer: out,
		format: formatKV,
		errors: errs,
	})).With("component", "sessions")

	ctx := context.Background()
	LogEvent(ctx, log, slog.LevelInfo, "transition.applied")
	LogEvent(ctx, log, slog.LevelWarn, "notify.fail")
	LogEvent(ctx, log, slog.LevelError, "restore.fail", slog.String("tier", "PREMIUM"), slog.String("outcome", "weird"))
	require.NoError(t, out.Close())
	require.NoError(t, errs.Close())

	assert.Equal(t, 3, strings.Count(mainBuf.String(), "\n"))
	assert.Equal(t, 2, strings.Count(errBuf.String(), "\n"))
	assert.NotContains(t, errBuf.String(), "transition.applied")
	assert.Contains(t, errBuf.String(), "tier=premium")
	assert.NotContains(t, errBuf.String(), "outcome=")
}

func TestComponentHelpersAreNilSafe(t *testing.T) {
	if L != nil {
		t.Skip("global logger already initialised")
	}
	assert.Nil(t, Component("x"))
	assert.NotPanics(t, func() {
		Info(context.Background(), "sessions", "noop", slog.Int("n", 1))
	})
}
