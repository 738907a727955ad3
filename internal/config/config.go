// Package config loads keyproxy configuration from a JSON5 or YAML file with
// environment overrides, and watches the file for vendor-table changes.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"

	"github.com/nextlevelbuilder/keyproxy/internal/store"
)

// DefaultPath is used when neither --config nor KEYPROXY_CONFIG is set.
const DefaultPath = "./config.json5"

// Master key sources.
const (
	MasterKeyFromEnv     = "env"
	MasterKeyFromKeyring = "keyring"
)

// Config is the root configuration.
type Config struct {
	Gateway   GatewayConfig           `json:"gateway" yaml:"gateway"`
	Database  DatabaseConfig          `json:"database" yaml:"database"`
	Vendors   map[string]VendorConfig `json:"vendors,omitempty" yaml:"vendors,omitempty"`
	Secrets   SecretsConfig           `json:"secrets" yaml:"secrets"`
	Redis     RedisConfig             `json:"redis" yaml:"redis"`
	Log       LogConfig               `json:"log" yaml:"log"`
	Telemetry TelemetryConfig         `json:"telemetry" yaml:"telemetry"`
	Tailscale TailscaleConfig         `json:"tailscale" yaml:"tailscale"`
}

type GatewayConfig struct {
	Listen string `json:"listen" yaml:"listen"`
	// MasterKeySource is "env" (default) or "keyring".
	MasterKeySource string `json:"master_key_source" yaml:"master_key_source"`
	// MasterKeyEnv names the env var holding the master key.
	MasterKeyEnv string `json:"master_key_env" yaml:"master_key_env"`
	MaxBodyBytes int64  `json:"max_body_bytes" yaml:"max_body_bytes"`
	BotCacheSize int    `json:"bot_cache_size" yaml:"bot_cache_size"`
	// BotCacheTTL is a Go duration string ("30s").
	BotCacheTTL string `json:"bot_cache_ttl" yaml:"bot_cache_ttl"`
}

type DatabaseConfig struct {
	// Mode is "standalone" (SQLite, default) or "managed" (Postgres).
	Mode        string `json:"mode" yaml:"mode"`
	PostgresDSN string `json:"postgres_dsn,omitempty" yaml:"postgres_dsn,omitempty"`
	SQLitePath  string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
}

// VendorConfig adds a vendor or overrides fields of a built-in one.
type VendorConfig struct {
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	AuthHeader string `json:"auth_header,omitempty" yaml:"auth_header,omitempty"`
	// AuthScheme prefixes the key; "none" sends the raw key.
	AuthScheme string            `json:"auth_scheme,omitempty" yaml:"auth_scheme,omitempty"`
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Disabled   bool              `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

type SecretsConfig struct {
	Root string `json:"root" yaml:"root"`
}

type RedisConfig struct {
	// Addr enables the shared rotation cursor. Empty keeps it in-process.
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type TelemetryConfig struct {
	Enabled     bool              `json:"enabled" yaml:"enabled"`
	Endpoint    string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Insecure    bool              `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	// SampleRatio keeps this fraction of request traces; 0 keeps all.
	SampleRatio float64 `json:"sample_ratio,omitempty" yaml:"sample_ratio,omitempty"`
}

type TailscaleConfig struct {
	Hostname  string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	AuthKey   string `json:"auth_key,omitempty" yaml:"auth_key,omitempty"`
	StateDir  string `json:"state_dir,omitempty" yaml:"state_dir,omitempty"`
	Ephemeral bool   `json:"ephemeral,omitempty" yaml:"ephemeral,omitempty"`
	EnableTLS bool   `json:"enable_tls,omitempty" yaml:"enable_tls,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Listen:          ":8080",
			MasterKeySource: MasterKeyFromEnv,
			MasterKeyEnv:    "KEYPROXY_MASTER_KEY",
			MaxBodyBytes:    32 << 20,
			BotCacheSize:    1024,
			BotCacheTTL:     "30s",
		},
		Database: DatabaseConfig{
			Mode:       "standalone",
			SQLitePath: "./data/keyproxy.db",
		},
		Secrets: SecretsConfig{Root: "./secrets"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "keyproxy",
		},
	}
}

// Load reads path over the defaults, applies env overrides and validates.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("config file not found, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := decode(path, data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json5.Unmarshal(data, cfg)
	}
}

func (c *Config) applyEnv() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("KEYPROXY_LISTEN", &c.Gateway.Listen)
	envStr("KEYPROXY_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("KEYPROXY_DB_MODE", &c.Database.Mode)
	envStr("KEYPROXY_SQLITE_PATH", &c.Database.SQLitePath)
	envStr("SECRETS_DIR", &c.Secrets.Root)
	envStr("KEYPROXY_REDIS_ADDR", &c.Redis.Addr)
	envStr("KEYPROXY_REDIS_PASSWORD", &c.Redis.Password)
	envStr("KEYPROXY_LOG_LEVEL", &c.Log.Level)
	envStr("KEYPROXY_TSNET_HOSTNAME", &c.Tailscale.Hostname)
	envStr("KEYPROXY_TSNET_AUTH_KEY", &c.Tailscale.AuthKey)
}

// Validate checks the configuration for values the gateway cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Gateway.Listen == "" {
		errs = append(errs, errors.New("gateway.listen is required"))
	}
	switch c.Gateway.MasterKeySource {
	case MasterKeyFromEnv:
		if c.Gateway.MasterKeyEnv == "" {
			errs = append(errs, errors.New("gateway.master_key_env is required for env source"))
		}
	case MasterKeyFromKeyring:
	default:
		errs = append(errs, fmt.Errorf("gateway.master_key_source: unknown source %q", c.Gateway.MasterKeySource))
	}
	if c.Gateway.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("gateway.max_body_bytes must not be negative"))
	}
	if _, err := c.BotCacheTTL(); err != nil {
		errs = append(errs, err)
	}

	switch c.Database.Mode {
	case "standalone":
	case "managed":
		if c.Database.PostgresDSN == "" {
			errs = append(errs, errors.New("database.postgres_dsn is required in managed mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.mode: unknown mode %q", c.Database.Mode))
	}

	if r := c.Telemetry.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio: %v not in [0, 1]", r))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	for name, v := range c.Vendors {
		if err := ValidateVendorName(name); err != nil {
			errs = append(errs, err)
			continue
		}
		if v.BaseURL == "" {
			continue
		}
		u, err := url.Parse(v.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("vendors.%s.base_url: invalid URL %q", name, v.BaseURL))
		}
	}

	return errors.Join(errs...)
}

// BotCacheTTL parses gateway.bot_cache_ttl.
func (c *Config) BotCacheTTL() (time.Duration, error) {
	if c.Gateway.BotCacheTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Gateway.BotCacheTTL)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("gateway.bot_cache_ttl: invalid duration %q", c.Gateway.BotCacheTTL)
	}
	return d, nil
}

// StoreConfig derives the credential store configuration.
func (c *Config) StoreConfig() store.StoreConfig {
	ttl, _ := c.BotCacheTTL()
	return store.StoreConfig{
		PostgresDSN:  c.Database.PostgresDSN,
		Mode:         c.Database.Mode,
		SQLitePath:   c.Database.SQLitePath,
		BotCacheSize: c.Gateway.BotCacheSize,
		BotCacheTTL:  ttl,
	}
}

// ParseLevel maps a config log level to slog.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level: unknown level %q", level)
}
