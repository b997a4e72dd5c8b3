// Package netutil holds the retry policy and error classification shared by
// the Telegram HTTP transport and the outbound dispatcher.
package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"

	tele "gopkg.in/telebot.v4"
)

// ShouldRetry reports whether err is transient: a network timeout, a failed
// dial, a Telegram flood wait or a Telegram 5xx.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return true
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
		return ShouldRetry(urlErr.Err)
	}
	return false
}

// Backoff computes the pause before a retry.
type Backoff struct {
	// Step grows the delay linearly: attempt n waits n*Step.
	Step time.Duration
	// Max caps every delay, flood waits included. Zero means no cap.
	Max time.Duration
}

// Delay returns the wait after the given failed attempt (1-based). A flood
// error's retry_after takes precedence over the linear step.
func (b Backoff) Delay(attempt int, err error) time.Duration {
	d := b.Step * time.Duration(max(attempt, 1))
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		d = time.Duration(flood.RetryAfter) * time.Second
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return max(d, 0)
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in that case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
