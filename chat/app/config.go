package app

import (
	"fmt"
	"time"

	"github.com/m3rciful/tandembot/chat/engine"
	"github.com/m3rciful/tandembot/chat/moderation"
	"github.com/m3rciful/tandembot/chat/snapshots"
	coreconfig "github.com/m3rciful/tandembot/core/config"
	coredatabase "github.com/m3rciful/tandembot/core/database"
	"github.com/m3rciful/tandembot/migrations"
)

// MatchingConfig tunes the matching loop and the session lifetime.
type MatchingConfig struct {
	SearchTimeout   time.Duration `yaml:"search_timeout" envconfig:"MATCHING_SEARCH_TIMEOUT"`
	PassInterval    time.Duration `yaml:"pass_interval" envconfig:"MATCHING_PASS_INTERVAL"`
	RestoreGrace    time.Duration `yaml:"restore_grace" envconfig:"MATCHING_RESTORE_GRACE"`
	PremiumDuration time.Duration `yaml:"premium_duration" envconfig:"MATCHING_PREMIUM_DURATION"`
	// Immediate runs a matching pass right after each accepted search.
	Immediate bool `yaml:"immediate" envconfig:"MATCHING_IMMEDIATE"`
}

// DefaultMatching returns the matching settings used when the file is silent.
func DefaultMatching() MatchingConfig {
	return MatchingConfig{
		SearchTimeout:   engine.DefaultSearchTimeout,
		PassInterval:    engine.DefaultPassInterval,
		RestoreGrace:    engine.DefaultRestoreGrace,
		PremiumDuration: engine.DefaultPremiumDuration,
		Immediate:       true,
	}
}

// Config is the full configuration of the bot.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database   coredatabase.Config `yaml:"database"`
	Redis      snapshots.Config    `yaml:"redis"`
	Matching   MatchingConfig      `yaml:"matching"`
	Moderation moderation.Config   `yaml:"moderation"`
}

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// Load reads the YAML file at path, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{Matching: DefaultMatching()}
	if err := coreconfig.Decode(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if c.Database.Enabled() {
		c.Database.Normalize()
		c.Database.Migrations = migrations.FS
	}
	c.Moderation.Normalize()

	d := DefaultMatching()
	m := &c.Matching
	if m.SearchTimeout < 0 || m.PassInterval < 0 || m.RestoreGrace < 0 || m.PremiumDuration < 0 {
		return fmt.Errorf("matching durations must not be negative")
	}
	if m.SearchTimeout == 0 {
		m.SearchTimeout = d.SearchTimeout
	}
	if m.PassInterval == 0 {
		m.PassInterval = d.PassInterval
	}
	if m.RestoreGrace == 0 {
		m.RestoreGrace = d.RestoreGrace
	}
	if m.PremiumDuration == 0 {
		m.PremiumDuration = d.PremiumDuration
	}
	if m.PassInterval > m.SearchTimeout {
		return fmt.Errorf("matching.pass_interval (%s) must not exceed matching.search_timeout (%s)", m.PassInterval, m.SearchTimeout)
	}
	if m.RestoreGrace < m.PassInterval {
		return fmt.Errorf("matching.restore_grace (%s) must not be shorter than matching.pass_interval (%s)", m.RestoreGrace, m.PassInterval)
	}
	return nil
}
