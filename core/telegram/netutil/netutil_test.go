package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	tele "gopkg.in/telebot.v4"
)

func TestShouldRetry(t *testing.T) {
	dial := &net.OpError{Op: "dial", Err: errors.New("refused")}
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), false},
		{"dial", dial, true},
		{"wrapped dial", &url.Error{Op: "Post", URL: "u", Err: dial}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"server", tele.NewError(502, "bad gateway"), true},
		{"blocked", tele.ErrBlockedByUser, false},
		{"flood", tele.FloodError{RetryAfter: 3}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldRetry(tc.err))
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Step: time.Second, Max: 5 * time.Second}
	assert.Equal(t, time.Second, b.Delay(1, errors.New("x")))
	assert.Equal(t, 3*time.Second, b.Delay(3, errors.New("x")))
	assert.Equal(t, 5*time.Second, b.Delay(9, errors.New("x")))
	assert.Equal(t, 2*time.Second, b.Delay(1, tele.FloodError{RetryAfter: 2}))
	assert.Equal(t, 5*time.Second, b.Delay(1, tele.FloodError{RetryAfter: 60}))
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "timeout", Classify(fmt.Errorf("send: %w", context.DeadlineExceeded)))
	assert.Equal(t, "blocked", Classify(tele.ErrBlockedByUser))
	assert.Equal(t, "flood", Classify(tele.FloodError{RetryAfter: 1}))
	assert.Equal(t, "dial", Classify(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.Equal(t, "http_5xx", Classify(tele.NewError(500, "oops")))
	assert.Equal(t, "http_4xx", Classify(errors.New("telegram: chat not found (400)")))
	assert.Equal(t, "unknown", Classify(errors.New("x")))
}

func TestRedact(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123:AbC-d_e/sendMessage": timeout`)
	assert.Equal(t, `Post "https://api.telegram.org/bot<redacted>/sendMessage": timeout`, Redact(err))
	assert.Empty(t, Redact(nil))
}
