// Package config loads the settings shared by every bot: Telegram access,
// webhook transport, logging and per-user rate limiting. Values come from a
// YAML file first and environment variables second.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure reported by Normalize.
var ErrInvalid = errors.New("invalid config")

// TelegramConfig holds the bot token, the moderator account and how updates
// are received.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds of 0 selects the poller default.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
	// Secret is echoed by Telegram in X-Telegram-Bot-Api-Secret-Token.
	Secret string `yaml:"secret" envconfig:"WEBHOOK_SECRET"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// ErrorsFile, when set, also receives every WARN and ERROR line.
	ErrorsFile string `yaml:"errors_file"`
	// Profile is "prod", "dev" or "debug".
	Profile string `yaml:"profile"`
}

// Update receive modes.
const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"
)

var runModeAliases = map[string]string{
	"":         RunModeLongpoll,
	"polling":  RunModeLongpoll,
	"longpoll": RunModeLongpoll,
	"webhook":  RunModeWebhook,
}

// Update kinds accepted by rate_limit.exclude_updates.
const (
	UpdateCallback    = "callback"
	UpdateMessage     = "message"
	UpdateInlineQuery = "inline_query"
)

var updateKinds = []string{UpdateCallback, UpdateMessage, UpdateInlineQuery}

// RateLimitConfig sets the minimum gap between two updates of one user.
// Update kinds listed in ExcludeUpdates are never limited.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Interval returns the configured gap; zero disables limiting.
func (r RateLimitConfig) Interval() time.Duration {
	return time.Duration(max(r.IntervalMS, 0)) * time.Millisecond
}

// Excluded returns the normalized exclusions as a set.
func (r RateLimitConfig) Excluded() map[string]struct{} {
	set := make(map[string]struct{}, len(r.ExcludeUpdates))
	for _, kind := range r.ExcludeUpdates {
		set[kind] = struct{}{}
	}
	return set
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode fills dst from the YAML file at path and then from environment
// variables. Environment values win over the file.
func Decode(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("apply env overrides: %w", err)
	}
	return nil
}

// Normalize validates cfg and rewrites values into canonical form. All
// problems are reported together, each wrapping ErrInvalid.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalid)
	}
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		invalid("telegram.token is required")
	}

	mode, ok := runModeAliases[strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))]
	switch {
	case !ok:
		invalid("telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	case mode == RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			invalid("webhook.url is required in webhook mode")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			invalid("webhook.listen is required in webhook mode")
		}
		if cfg.Webhook.Port <= 0 {
			invalid("webhook.port must be > 0 in webhook mode")
		}
	case cfg.Telegram.LongPollTimeoutSeconds < 0:
		invalid("telegram.longpoll_timeout_seconds must be >= 0")
	}
	if ok {
		cfg.Telegram.RunMode = mode
	}

	if cfg.RateLimit.IntervalMS < 0 {
		invalid("rate_limit.interval_ms must be >= 0")
	}
	kinds := cfg.RateLimit.ExcludeUpdates[:0]
	for _, v := range cfg.RateLimit.ExcludeUpdates {
		kind := strings.ToLower(strings.TrimSpace(v))
		switch {
		case kind == "" || slices.Contains(kinds, kind):
		case !slices.Contains(updateKinds, kind):
			invalid("rate_limit.exclude_updates value %q; allowed: %s", v, strings.Join(updateKinds, ", "))
		default:
			kinds = append(kinds, kind)
		}
	}
	cfg.RateLimit.ExcludeUpdates = kinds

	return errors.Join(errs...)
}
