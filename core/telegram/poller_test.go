package telegram

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

func TestBuildPoller(t *testing.T) {
	lp, ok := BuildPoller(PollerOptions{}).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, defaultLongPollTimeout, lp.Timeout)
	assert.Equal(t, AllowedUpdates, lp.AllowedUpdates)

	lp = BuildPoller(PollerOptions{RunMode: "longpoll", LongPollTimeoutSeconds: 30}).(*tele.LongPoller)
	assert.Equal(t, 30*time.Second, lp.Timeout)

	wh, ok := BuildPoller(PollerOptions{
		RunMode: " Webhook ",
		Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://bot.example/hook", Secret: "s3"},
	}).(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "s3", wh.SecretToken)
	assert.Equal(t, "https://bot.example/hook", wh.Endpoint.PublicURL)
}

type flakyTransport struct {
	fails int
	calls int
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if f.calls <= f.fails {
		return nil, &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

func TestRetryTransport(t *testing.T) {
	base := &flakyTransport{fails: 2}
	rt := &retryTransport{base: base, maxRetries: 3, backoff: time.Millisecond}

	req, err := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/sendMessage", strings.NewReader("{}"))
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, base.calls)

	// A body that cannot be replayed gets a single attempt.
	base = &flakyTransport{fails: 1}
	rt.base = base
	req, err = http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/sendPhoto", io.NopCloser(strings.NewReader("x")))
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	assert.Error(t, err)
	assert.Equal(t, 1, base.calls)
}

func TestHTTPClientOutlastsLongPoll(t *testing.T) {
	poll := PollerOptions{LongPollTimeoutSeconds: 25}.PollTimeout()
	client := BuildHTTPClient(poll)
	assert.Greater(t, client.Timeout, poll)

	rt, ok := client.Transport.(*retryTransport)
	require.True(t, ok)
	tr, ok := rt.base.(*http.Transport)
	require.True(t, ok)
	assert.Greater(t, tr.ResponseHeaderTimeout, poll)
	assert.Equal(t, defaultLongPollTimeout, PollerOptions{}.PollTimeout())
}
