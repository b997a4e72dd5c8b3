package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/tandembot/core/logger"
)

const migrateComponent = "db.migrate"

// ErrNoMigrations is returned when neither a directory nor a built-in set
// of migrations is configured.
var ErrNoMigrations = errors.New("database: no migrations configured")

// migrateLog routes golang-migrate progress lines to debug logging.
type migrateLog struct{ ctx context.Context }

func (l migrateLog) Printf(format string, v ...any) {
	logger.Debug(l.ctx, migrateComponent, "progress",
		slog.String("msg", strings.TrimSpace(fmt.Sprintf(format, v...))),
	)
}

func (migrateLog) Verbose() bool { return false }

// migrationSource picks MigrationsDir over the built-in set.
func migrationSource(cfg Config) (fs.FS, string, error) {
	if cfg.MigrationsDir != "" {
		dir, err := filepath.Abs(cfg.MigrationsDir)
		if err != nil {
			return nil, "", fmt.Errorf("resolve migrations dir: %w", err)
		}
		return os.DirFS(dir), dir, nil
	}
	if cfg.Migrations != nil {
		return cfg.Migrations, "embedded", nil
	}
	return nil, "", ErrNoMigrations
}

// migrator opens golang-migrate over cfg. Cancelling ctx asks a running
// migration to stop after the current file.
func migrator(ctx context.Context, cfg Config) (*migrate.Migrate, []string, func(), error) {
	cfg.Normalize()
	fsys, label, err := migrationSource(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	files := listMigrationFiles(fsys)
	preview, truncated := logger.SummarizeStrings(files, 6)
	logger.Debug(ctx, migrateComponent, "resolve",
		slog.String("path", label),
		slog.Int("files_total", len(files)),
		slog.String("files_preview", preview),
		slog.Bool("files_truncated", truncated),
	)

	src, err := iofs.New(fsys, ".")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open migrations %s: %w", label, err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.URL())
	if err != nil {
		logger.Error(ctx, migrateComponent, "init", slog.String("err", err.Error()))
		return nil, nil, nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	m.Log = migrateLog{ctx: ctx}
	stop := context.AfterFunc(ctx, func() {
		select {
		case m.GracefulStop <- true:
		default:
		}
	})
	release := func() {
		stop()
		_, _ = m.Close()
	}
	return m, files, release, nil
}

// RunMigrations applies every pending up migration.
func RunMigrations(ctx context.Context, cfg Config) error {
	return runMigrations(ctx, cfg, "up", func(m *migrate.Migrate) error { return m.Up() })
}

// Rollback reverts the last steps migrations.
func Rollback(ctx context.Context, cfg Config, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("rollback: steps must be > 0, got %d", steps)
	}
	return runMigrations(ctx, cfg, "down", func(m *migrate.Migrate) error { return m.Steps(-steps) })
}

func runMigrations(ctx context.Context, cfg Config, direction string, apply func(*migrate.Migrate) error) error {
	m, files, release, err := migrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	fromVer, _, _ := m.Version()
	start := time.Now()
	err = apply(m)
	took := time.Since(start)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error(ctx, migrateComponent, "apply",
			slog.String("op", direction),
			slog.String("err", err.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("migration %s failed: %w", direction, err)
	}

	toVer, _, _ := m.Version()
	changed := selectApplied(files, uint64(min(fromVer, toVer)), uint64(max(fromVer, toVer)))
	if preview, truncated := logger.SummarizeStrings(changed, 6); preview != "" {
		logger.Debug(ctx, migrateComponent, "apply",
			slog.String("op", direction),
			slog.String("files_preview", preview),
			slog.Bool("files_truncated", truncated),
		)
	}
	logger.Info(ctx, migrateComponent, "summary",
		slog.String("op", direction),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("files", len(changed)),
		slog.Duration("duration", took),
	)
	return nil
}

// MigrationVersion reports the applied schema version. Version 0 with a nil
// error means no migration has run yet.
func MigrationVersion(ctx context.Context, cfg Config) (uint, bool, error) {
	m, _, release, err := migrator(ctx, cfg)
	if err != nil {
		return 0, false, err
	}
	defer release()
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func listMigrationFiles(fsys fs.FS) []string {
	names, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil
	}
	slices.Sort(names)
	return names
}

func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// selectApplied returns the files with versions in (from, to].
func selectApplied(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
