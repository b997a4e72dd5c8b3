package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestDispatcherPreservesPerChatOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 4, QueueSize: 64})

	var mu sync.Mutex
	got := map[string][]int{}
	for i := 0; i < 20; i++ {
		for _, ep := range []string{ChatEndpoint(1), ChatEndpoint(2), ChatEndpoint(3)} {
			i, ep := i, ep
			require.NoError(t, d.Enqueue(context.Background(), "send", ep, func() error {
				mu.Lock()
				got[ep] = append(got[ep], i)
				mu.Unlock()
				return nil
			}))
		}
	}
	d.Close()

	for ep, seq := range got {
		require.Len(t, seq, 20, ep)
		for i, v := range seq {
			assert.Equal(t, i, v, ep)
		}
	}
	assert.Equal(t, Stats{Sent: 60}, d.Stats())
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "send", "chat:1", func() error {
		if calls.Add(1) < 3 {
			return timeoutErr{}
		}
		return nil
	}))
	d.Close()
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, uint64(0), d.ErrorCount())
}

func TestDispatcherGivesUpOnPermanentErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 5, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "send", "chat:1", func() error {
		calls.Add(1)
		return errors.New("bad request (400)")
	}))
	d.Close()
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestDispatcherQueueLimits(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "send", "a", func() error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), "send", "a", func() error { return nil }))
	assert.ErrorIs(t, d.Enqueue(context.Background(), "send", "a", func() error { return nil }), ErrQueueFull)
	close(release)
	d.Close()

	assert.ErrorIs(t, d.Enqueue(context.Background(), "send", "a", func() error { return nil }), ErrQueueClosed)
	assert.Equal(t, Stats{Sent: 2, Dropped: 1}, d.Stats())
	d.Close()
}

func TestOutboxRequiresBinding(t *testing.T) {
	o := NewOutbox()
	assert.ErrorIs(t, o.Send(context.Background(), 1, "hi"), ErrNotBound)
	assert.Equal(t, "chat:-100", ChatEndpoint(-100))
}
