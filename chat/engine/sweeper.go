package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m3rciful/tandembot/core/logger"
)

// Sweep times out every session that has been searching for longer than the
// configured search timeout. It returns how many sessions were reclaimed.
func (e *Engine) Sweep(ctx context.Context) int {
	cutoff := e.now().Add(-e.opts.SearchTimeout)
	n := 0
	for _, user := range e.pool.olderThan(cutoff) {
		_, err := e.HandleEvent(ctx, user, Timeout())
		if err == nil || errors.Is(err, ErrNotificationDeliveryFailed) {
			n++
		}
	}
	if n > 0 {
		logger.Info(ctx, componentSessions, "sweep.timeout",
			slog.Int("count", n),
			slog.Int("pool_size", e.pool.size()),
		)
	}
	return n
}

// Run sweeps and matches every pass interval until ctx is done. Active
// sessions are checkpointed to the snapshot store every half grace period.
func (e *Engine) Run(ctx context.Context) error {
	passes := time.NewTicker(e.opts.PassInterval)
	defer passes.Stop()
	checkpoints := time.NewTicker(e.checkpointEvery)
	defer checkpoints.Stop()

	logger.Info(ctx, componentMatcher, "loop.start",
		slog.Duration("interval", e.opts.PassInterval),
		slog.Duration("timeout", e.opts.SearchTimeout),
	)
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, componentMatcher, "loop.stop")
			return nil
		case <-passes.C:
			e.Sweep(ctx)
			e.MatchPass(ctx)
		case <-checkpoints.C:
			e.Checkpoint(ctx)
		}
	}
}

// Checkpoint rewrites the snapshot of every Searching or Connected session,
// extending its restore window.
func (e *Engine) Checkpoint(ctx context.Context) int {
	if e.snaps == nil {
		return 0
	}
	n := 0
	for _, id := range e.reg.ids() {
		ent := e.reg.lock(id)
		if st := ent.sess.State; st == StateSearching || st == StateConnected {
			e.remember(ctx, ent.sess)
			n++
		}
		ent.mu.Unlock()
	}
	return n
}
