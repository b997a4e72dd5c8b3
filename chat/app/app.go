// Package app wires storage, the session engine and the Telegram layer
// into a runnable bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/tandembot/chat/bot"
	"github.com/m3rciful/tandembot/chat/engine"
	"github.com/m3rciful/tandembot/chat/moderation"
	"github.com/m3rciful/tandembot/chat/profiles"
	"github.com/m3rciful/tandembot/chat/snapshots"
	"github.com/m3rciful/tandembot/core/bootstrap"
	corecmd "github.com/m3rciful/tandembot/core/cmd"
	"github.com/m3rciful/tandembot/core/logger"
	tg "github.com/m3rciful/tandembot/core/telegram"
	"github.com/m3rciful/tandembot/core/telegram/middleware"
	"github.com/m3rciful/tandembot/core/telegram/sender"
)

const component = "app"

// Options overrides infrastructure for tests.
type Options struct {
	Bootstrap bootstrap.Options
	// ConnectRedis defaults to snapshots.Connect.
	ConnectRedis func(context.Context, snapshots.Config) (*redis.Client, error)
}

// App owns every long-lived component of the bot.
type App struct {
	cfg      *Config
	infra    *bootstrap.Result
	redis    *redis.Client
	engine   *engine.Engine
	outbox   *sender.Outbox
	mirror   *moderation.Mirror
	bot      *bot.Bot
	registry *tg.Registry

	loopMu   sync.Mutex
	stopLoop context.CancelFunc
	loopDone chan struct{}
}

var _ corecmd.TelegramApp = (*App)(nil)

// Bootstrap implements the cmd.Options Bootstrap hook.
func Bootstrap(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	return New(ctx, cfg, Options{})
}

// New connects storage, restores sessions and registers the handlers.
func New(ctx context.Context, cfg *Config, opts Options) (*App, error) {
	bopts := opts.Bootstrap
	bopts.Config = cfg.CoreConfig()
	bopts.Database = cfg.Database
	infra, err := bootstrap.Run(ctx, bopts)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, infra: infra, outbox: sender.NewOutbox()}

	var repo engine.ProfileRepository
	if infra.DB != nil {
		repo = profiles.NewPostgres(infra.DB)
	} else {
		logger.Warn(ctx, component, "profiles.memory", slog.String("reason", "database not configured"))
		repo = profiles.NewMemory()
	}

	var snaps engine.SnapshotStore
	if cfg.Redis.Enabled() {
		connect := opts.ConnectRedis
		if connect == nil {
			connect = snapshots.Connect
		}
		client, err := connect(ctx, cfg.Redis)
		if err != nil {
			_ = infra.Close()
			return nil, fmt.Errorf("app: redis: %w", err)
		}
		a.redis = client
		snaps = snapshots.NewRedis(client, cfg.Redis.Prefix, cfg.Matching.RestoreGrace)
	} else {
		logger.Warn(ctx, component, "snapshots.memory", slog.String("reason", "redis not configured"))
		snaps = snapshots.NewMemory(cfg.Matching.RestoreGrace)
	}

	a.mirror = moderation.NewMirror(cfg.Moderation, a.outbox)
	notifier := bot.NewNotifier(a.outbox)
	a.engine = engine.New(engine.Options{
		Profiles:        repo,
		Snapshots:       snaps,
		Notifier:        notifier,
		Observer:        a.mirror,
		SearchTimeout:   cfg.Matching.SearchTimeout,
		PassInterval:    cfg.Matching.PassInterval,
		RestoreGrace:    cfg.Matching.RestoreGrace,
		PremiumDuration: cfg.Matching.PremiumDuration,
		DeferMatching:   !cfg.Matching.Immediate,
	})
	a.mirror.SetProfiles(a.engine)
	notifier.SetProfiles(a.engine)

	stats, err := a.engine.Restore(ctx)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: restore: %w", err)
	}
	logger.Info(ctx, component, "restore",
		slog.Int("profiles", stats.Profiles),
		slog.Int("searching", stats.Searching),
		slog.Int("connections", stats.Connections),
		slog.Int("dropped", stats.Dropped),
	)

	a.bot = bot.New(bot.Config{
		AdminID:          cfg.Telegram.AdminID,
		ModerationChatID: cfg.Moderation.ChatID,
	}, a.engine, a.outbox, a.mirror)
	a.registry = tg.NewRegistry()
	if err := a.bot.Register(a.registry); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: register handlers: %w", err)
	}
	return a, nil
}

// Engine exposes the session engine.
func (a *App) Engine() *engine.Engine { return a.engine }

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	if a.bot == nil || a.registry == nil {
		return tg.RunOptions{}, errors.New("app: not initialized")
	}
	mws := tg.DefaultMiddlewares(a.cfg.CoreConfig(), a.bot.OnLimited)
	mws = append(mws, tg.Middleware{
		Name: "deny",
		Use: middleware.DenyMiddleware(middleware.DenyOptions{
			Denied:   a.bot.Denied,
			AdminID:  a.cfg.Telegram.AdminID,
			OnReject: a.bot.OnDenied,
		}),
	})
	return tg.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    a.registry,
		Middlewares: mws,
		Routes:      a.bot.Routes(a.registry),
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt tg.Runtime) error {
	if rt.Bot != nil {
		a.outbox.Bind(rt.Bot, rt.Dispatcher)
	}
	a.startLoop(ctx)
	return nil
}

func (a *App) onStop(ctx context.Context, _ tg.Runtime) error {
	a.stopLoopAndWait()
	saved := a.engine.Checkpoint(context.WithoutCancel(ctx))
	logger.Info(ctx, component, "checkpoint", slog.Int("sessions", saved))
	return a.Close()
}

func (a *App) startLoop(ctx context.Context) {
	a.loopMu.Lock()
	defer a.loopMu.Unlock()
	if a.stopLoop != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	a.stopLoop, a.loopDone = cancel, done
	go func() {
		defer close(done)
		if err := a.engine.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(loopCtx, component, "loop.fail", slog.String("err", err.Error()))
		}
	}()
}

func (a *App) stopLoopAndWait() {
	a.loopMu.Lock()
	cancel, done := a.stopLoop, a.loopDone
	a.stopLoop, a.loopDone = nil, nil
	a.loopMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
		a.redis = nil
	}
	if a.infra != nil {
		errs = append(errs, a.infra.Close())
		a.infra = nil
	}
	return errors.Join(errs...)
}
