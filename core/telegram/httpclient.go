package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/tandembot/core/telegram/netutil"
)

const (
	dialTimeout      = 5 * time.Second
	keepAlive        = 30 * time.Second
	idleConnTimeout  = 90 * time.Second
	headerGrace      = 10 * time.Second
	retryAttempts    = 3
	retryBackoffStep = 2 * time.Second
)

// BuildHTTPClient returns the client used for Bot API calls. getUpdates holds
// the response until pollTimeout passes, so header and overall timeouts are
// sized above it.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: pollTimeout + headerGrace,
	}
	return &http.Client{
		Timeout: 2*pollTimeout + 2*headerGrace,
		Transport: &retryTransport{
			base:       transport,
			maxRetries: retryAttempts,
			backoff:    retryBackoffStep,
		},
	}
}

// retryTransport replays requests that failed before a response arrived.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

// attempts is 1 when the request body cannot be replayed.
func (t *retryTransport) attempts(req *http.Request) int {
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return 1
	}
	return t.maxRetries + 1
}

// RoundTrip implements http.RoundTripper.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	policy := netutil.Backoff{Step: t.backoff}
	attempts := t.attempts(req)

	for attempt := 1; ; attempt++ {
		resp, err := base.RoundTrip(req)
		if err == nil || attempt == attempts || !netutil.ShouldRetry(err) {
			return resp, err
		}
		if err := netutil.Sleep(req.Context(), policy.Delay(attempt, err)); err != nil {
			return nil, err
		}
		if req, err = rewind(req); err != nil {
			return nil, err
		}
	}
}

// rewind clones req with a fresh body.
func rewind(req *http.Request) (*http.Request, error) {
	next := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		next.Body = body
	}
	return next, nil
}
