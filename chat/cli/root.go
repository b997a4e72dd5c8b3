// Package cli holds the tandembot command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/m3rciful/tandembot/chat/app"
	"github.com/m3rciful/tandembot/core/buildinfo"
	corecmd "github.com/m3rciful/tandembot/core/cmd"
	coredatabase "github.com/m3rciful/tandembot/core/database"
	"github.com/m3rciful/tandembot/core/logger"
)

// DefaultConfigPath is used when neither --config nor CONFIG_PATH is set.
const DefaultConfigPath = "configs/config.yaml"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

func (o *RootOptions) runnerOptions() corecmd.Options {
	return corecmd.Options{
		ConfigPath:        o.ConfigPath,
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: DefaultConfigPath,
	}
}

// NewRootCommand creates the root command of the bot.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "tandembot",
		Short:         "Language exchange chat bot for Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to the YAML config (default $CONFIG_PATH or "+DefaultConfigPath+")")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewVersionCommand())
	return cmd
}

// NewServeCommand runs the bot until interrupted.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ro := opts.runnerOptions()
			ro.LoadConfig = func(path string) (corecmd.ConfigCarrier, error) {
				return app.Load(path)
			}
			ro.Bootstrap = app.Bootstrap
			return corecmd.Run(ro)
		},
	}
}

// NewMigrateCommand applies, reverts or reports database migrations.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	var (
		wait   time.Duration
		down   int
		status bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := corecmd.ResolveConfigPath(opts.runnerOptions())
			if err != nil {
				return err
			}
			cfg, err := app.Load(path)
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return errors.New("migrate: database.host is not configured")
			}
			if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if wait > 0 {
				if err := coredatabase.WaitForPostgres(ctx, cfg.Database.DSN(), wait); err != nil {
					return err
				}
			}
			switch {
			case status:
				v, dirty, err := coredatabase.MigrationVersion(ctx, cfg.Database)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
				return err
			case down > 0:
				return coredatabase.Rollback(ctx, cfg.Database, down)
			default:
				return coredatabase.RunMigrations(ctx, cfg.Database)
			}
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "wait up to this long for postgres to accept connections")
	cmd.Flags().IntVar(&down, "down", 0, "revert this many migrations instead of applying")
	cmd.Flags().BoolVar(&status, "status", false, "print the applied schema version and exit")
	cmd.MarkFlagsMutuallyExclusive("down", "status")
	return cmd
}

// NewVersionCommand prints build information.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
			return err
		},
	}
}
