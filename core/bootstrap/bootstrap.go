// Package bootstrap brings up shared infrastructure before the bot starts:
// structured logging first, then the optional Postgres pool and its schema.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/tandembot/core/config"
	coredatabase "github.com/m3rciful/tandembot/core/database"
	"github.com/m3rciful/tandembot/core/logger"
)

// Options selects what to bring up. The function hooks default to the real
// implementations and exist for tests.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	// SkipMigrations leaves the schema untouched, e.g. when a separate
	// migrate step owns it.
	SkipMigrations bool

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config) error
}

func (o *Options) defaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
}

// Result exposes infrastructure initialized by Run. DB is nil when no
// database is configured.
type Result struct {
	DB *sqlx.DB
}

// Close releases the infrastructure opened by Run.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger and, when a database is configured, connects
// and migrates it. On failure nothing stays open.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	opts.defaults()
	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}
	if !opts.Database.Enabled() {
		logger.Info(ctx, "db", "db.skip", slog.String("reason", "not_configured"))
		return &Result{}, nil
	}

	start := time.Now()
	db, err := opts.Connect(ctx, opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	res := &Result{DB: db}

	if !opts.SkipMigrations {
		if err := opts.Migrate(ctx, opts.Database); err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
	}
	logger.Debug(ctx, "db", "db.ready",
		slog.Bool("migrated", !opts.SkipMigrations),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}
