package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/tandembot/core/logger"
)

// RestoreStats summarizes a Restore call.
type RestoreStats struct {
	Profiles    int
	Searching   int
	Connections int
	Dropped     int
}

// Restore preloads profiles and brings back sessions saved within the restore
// grace period. Searching sessions rejoin the pool at their original enqueue
// time; a connection is restored only when both sides' snapshots point at each
// other with the same connection id. Everything else starts Idle. Call it
// once, before serving events.
func (e *Engine) Restore(ctx context.Context) (RestoreStats, error) {
	var stats RestoreStats
	n, err := e.profiles.preload(ctx)
	if err != nil {
		return stats, fmt.Errorf("preload profiles: %w", err)
	}
	stats.Profiles = n
	if e.snaps == nil {
		return stats, nil
	}
	snaps, err := e.snaps.LoadSnapshots(ctx)
	if err != nil {
		return stats, fmt.Errorf("load snapshots: %w", err)
	}

	now := e.now()
	byUser := make(map[UserID]Snapshot, len(snaps))
	for _, s := range snaps {
		if now.Sub(s.SavedAt) > e.opts.RestoreGrace {
			continue
		}
		byUser[s.User] = s
	}
	restored := make(map[UserID]bool, len(byUser))

	for _, s := range snaps {
		if restored[s.User] {
			continue
		}
		snap, fresh := byUser[s.User]
		ok := false
		if fresh {
			switch snap.State {
			case StateSearching:
				ok = e.restoreSearching(ctx, snap, now)
				if ok {
					stats.Searching++
				}
			case StateConnected:
				peer, found := byUser[snap.Partner]
				if found && !restored[snap.Partner] {
					ok = e.restoreConnection(ctx, snap, peer, now)
				}
				if ok {
					restored[snap.Partner] = true
					stats.Connections++
				}
			}
		}
		if ok {
			restored[s.User] = true
			continue
		}
		stats.Dropped++
		e.forget(ctx, s.User)
	}

	logger.Info(ctx, componentSessions, "restore.done",
		slog.Int("profiles", stats.Profiles),
		slog.Int("searching", stats.Searching),
		slog.Int("connections", stats.Connections),
		slog.Int("dropped", stats.Dropped),
	)
	return stats, nil
}

func (e *Engine) restoreSearching(ctx context.Context, snap Snapshot, now time.Time) bool {
	ent := e.reg.lock(snap.User)
	defer ent.mu.Unlock()
	if ent.sess.State != StateIdle {
		return false
	}
	prof, err := e.profiles.load(ctx, snap.User, now)
	if err != nil || prof.Blocked || !prof.Complete() {
		return false
	}
	if !EntitlementsOf(prof, now).Permit(snap.Filter) {
		return false
	}
	ticket, ok := e.pool.add(candidate{
		user:       snap.User,
		filter:     snap.Filter,
		profile:    prof,
		enqueuedAt: snap.Since,
	})
	if !ok {
		return false
	}
	ent.sess = Session{
		User:         snap.User,
		State:        StateSearching,
		Filter:       snap.Filter,
		Since:        snap.Since,
		LastActivity: snap.Since,
		ticket:       ticket,
	}
	e.remember(ctx, ent.sess)
	return true
}

func (e *Engine) restoreConnection(ctx context.Context, a, b Snapshot, now time.Time) bool {
	if b.State != StateConnected || b.Partner != a.User || a.Partner != b.User ||
		a.ConnectionID == "" || a.ConnectionID != b.ConnectionID {
		return false
	}
	for _, id := range []UserID{a.User, b.User} {
		prof, err := e.profiles.load(ctx, id, now)
		if err != nil || prof.Blocked {
			return false
		}
	}
	ea, eb := e.reg.lockPair(a.User, b.User)
	defer unlockPair(ea, eb)
	if ea.sess.State != StateIdle || eb.sess.State != StateIdle {
		return false
	}
	conn := Connection{ID: a.ConnectionID, A: a.User, B: b.User, StartedAt: a.Since}
	e.connectLocked(ctx, ea, eb, conn)
	return true
}
