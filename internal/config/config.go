// Package config loads process settings from defaults, an optional file,
// FITSYNC_* environment variables and command-line flags, in rising order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"fitsync/internal/logging"
)

// Feed transports.
const (
	FeedPostgres = "postgres"
	FeedRealtime = "realtime"
	FeedMemory   = "memory"
	FeedNone     = "none"
)

type Config struct {
	Addr        string `mapstructure:"addr"`
	DatabaseURL string `mapstructure:"database_url"`
	CachePath   string `mapstructure:"cache_path"`
	Passphrase  string `mapstructure:"passphrase"`
	Owner       string `mapstructure:"owner"`

	Feed FeedConfig     `mapstructure:"feed"`
	Sync SyncConfig     `mapstructure:"sync"`
	OIDC OIDCConfig     `mapstructure:"oidc"`
	Log  logging.Config `mapstructure:"log"`
}

// FeedConfig selects the change feed. With Relay set, serve also exposes
// the Postgres feed to websocket clients.
type FeedConfig struct {
	Transport string `mapstructure:"transport"`
	URL       string `mapstructure:"url"`
	Relay     bool   `mapstructure:"relay"`
}

type SyncConfig struct {
	Debounce      time.Duration `mapstructure:"debounce"`
	Interval      time.Duration `mapstructure:"interval"`
	BaseDelay     time.Duration `mapstructure:"base_delay"`
	MaxRetries    int           `mapstructure:"max_retries"`
	CallTimeout   time.Duration `mapstructure:"call_timeout"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	LockPath      string        `mapstructure:"lock_path"`
}

type OIDCConfig struct {
	Issuer       string `mapstructure:"issuer"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

// Enabled reports whether sign-in through an identity provider is configured.
func (o OIDCConfig) Enabled() bool {
	return o.Issuer != "" && o.ClientID != ""
}

var defaults = map[string]any{
	"addr":                ":8080",
	"database_url":        "",
	"cache_path":          "fitsync.db",
	"passphrase":          "",
	"owner":               "",
	"feed.transport":      "",
	"feed.url":            "",
	"feed.relay":          false,
	"sync.debounce":       500 * time.Millisecond,
	"sync.interval":       5 * time.Minute,
	"sync.base_delay":     time.Second,
	"sync.max_retries":    3,
	"sync.call_timeout":   15 * time.Second,
	"sync.probe_interval": 15 * time.Second,
	"sync.lock_path":      "",
	"oidc.issuer":         "",
	"oidc.client_id":      "",
	"oidc.client_secret":  "",
	"oidc.redirect_url":   "",
	"log.level":           "info",
	"log.format":          "text",
	"log.file":            "",
	"log.max_size_mb":     10,
	"log.max_backups":     3,
	"log.max_age_days":    28,
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"addr":      "addr",
	"cache":     "cache_path",
	"owner":     "owner",
	"feed":      "feed.transport",
	"log-level": "log.level",
}

// Load reads the configuration. path may be empty; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix("FITSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unprefixed names kept for existing deployments.
	_ = v.BindEnv("addr", "FITSYNC_ADDR", "ADDR")
	_ = v.BindEnv("database_url", "FITSYNC_DATABASE_URL", "DATABASE_URL")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Feed.Transport == "" {
		cfg.Feed.Transport = FeedMemory
		if cfg.DatabaseURL != "" {
			cfg.Feed.Transport = FeedPostgres
		}
	}
	if cfg.Sync.LockPath == "" && cfg.CachePath != "" {
		cfg.Sync.LockPath = cfg.CachePath + ".lock"
	}
	return cfg, cfg.Validate()
}

// Validate checks settings that have no usable fallback.
func (c Config) Validate() error {
	var errs []error
	switch c.Feed.Transport {
	case FeedPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("feed.transport postgres requires database_url"))
		}
	case FeedRealtime:
		if c.Feed.URL == "" {
			errs = append(errs, errors.New("feed.transport realtime requires feed.url"))
		}
	case FeedMemory:
		if c.DatabaseURL != "" {
			errs = append(errs, errors.New("feed.transport memory only works without database_url"))
		}
	case FeedNone:
	default:
		errs = append(errs, fmt.Errorf("unknown feed.transport %q", c.Feed.Transport))
	}
	if c.Feed.Relay && c.DatabaseURL == "" {
		errs = append(errs, errors.New("feed.relay requires database_url"))
	}
	if c.CachePath == "" {
		errs = append(errs, errors.New("cache_path is required"))
	}
	if c.Sync.MaxRetries < 1 {
		errs = append(errs, errors.New("sync.max_retries must be at least 1"))
	}
	for name, d := range map[string]time.Duration{
		"sync.debounce":       c.Sync.Debounce,
		"sync.interval":       c.Sync.Interval,
		"sync.base_delay":     c.Sync.BaseDelay,
		"sync.call_timeout":   c.Sync.CallTimeout,
		"sync.probe_interval": c.Sync.ProbeInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
