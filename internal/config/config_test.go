package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Listen != ":8080" || cfg.Secrets.Root != "./secrets" || cfg.Database.Mode != "standalone" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadJSON5(t *testing.T) {
	path := writeFile(t, "config.json5", `{
  // comments and trailing commas are fine
  gateway: { listen: ":9000", bot_cache_ttl: "1m", },
  vendors: {
    together: { base_url: "https://api.together.xyz/v1" },
  },
  log: { level: "debug" },
}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Listen != ":9000" {
		t.Errorf("listen = %q", cfg.Gateway.Listen)
	}
	if cfg.Gateway.MasterKeyEnv != "KEYPROXY_MASTER_KEY" {
		t.Error("unset fields should keep defaults")
	}
	if ttl, _ := cfg.BotCacheTTL(); ttl != time.Minute {
		t.Errorf("ttl = %v", ttl)
	}
	if _, ok := cfg.VendorTable()["together"]; !ok {
		t.Error("custom vendor missing from table")
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
gateway:
  listen: ":7000"
database:
  mode: managed
  postgres_dsn: postgres://kp@localhost/kp
secrets:
  root: /var/lib/keyproxy/secrets
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Listen != ":7000" || cfg.Secrets.Root != "/var/lib/keyproxy/secrets" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if !cfg.StoreConfig().IsManaged() {
		t.Error("expected managed store config")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KEYPROXY_LISTEN", ":1234")
	t.Setenv("SECRETS_DIR", "/tmp/kp-secrets")
	t.Setenv("KEYPROXY_REDIS_ADDR", "redis:6379")
	t.Setenv("KEYPROXY_LOG_LEVEL", "warn")

	path := writeFile(t, "config.json5", `{gateway: {listen: ":9000"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gateway.Listen != ":1234" {
		t.Errorf("env should win over file, got %q", cfg.Gateway.Listen)
	}
	if cfg.Secrets.Root != "/tmp/kp-secrets" || cfg.Redis.Addr != "redis:6379" || cfg.Log.Level != "warn" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"ok", func(*Config) {}, ""},
		{"managed_without_dsn", func(c *Config) { c.Database.Mode = "managed" }, "postgres_dsn"},
		{"unknown_mode", func(c *Config) { c.Database.Mode = "cloud" }, "database.mode"},
		{"bad_key_source", func(c *Config) { c.Gateway.MasterKeySource = "vault" }, "master_key_source"},
		{"bad_ttl", func(c *Config) { c.Gateway.BotCacheTTL = "soon" }, "bot_cache_ttl"},
		{"bad_level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad_sample_ratio", func(c *Config) { c.Telemetry.SampleRatio = 2 }, "sample_ratio"},
		{"bad_vendor_name", func(c *Config) {
			c.Vendors = map[string]VendorConfig{"Open AI": {BaseURL: "https://x"}}
		}, "invalid vendor name"},
		{"bad_vendor_url", func(c *Config) {
			c.Vendors = map[string]VendorConfig{"local": {BaseURL: "ftp://x"}}
		}, "base_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errSub == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("error = %v, want substring %q", err, tt.errSub)
			}
		})
	}
}

func TestVendorTable(t *testing.T) {
	cfg := Default()
	cfg.Vendors = map[string]VendorConfig{
		"openai":  {BaseURL: "https://proxy.internal/openai/v1"},
		"google":  {Disabled: true},
		"ollama":  {BaseURL: "http://localhost:11434/v1", AuthScheme: AuthSchemeNone},
		"partial": {AuthHeader: "x-key"},
	}
	table := cfg.VendorTable()

	if v := table["openai"]; v.BaseURL != "https://proxy.internal/openai/v1" || v.AuthScheme != "Bearer" {
		t.Errorf("override lost built-in auth: %+v", v)
	}
	if _, ok := table["google"]; ok {
		t.Error("disabled vendor should be removed")
	}
	if v := table["ollama"]; v.AuthHeader != "Authorization" || v.AuthScheme != "" || v.Name != "ollama" {
		t.Errorf("custom vendor = %+v", v)
	}
	if _, ok := table["partial"]; ok {
		t.Error("new vendor without base_url should be skipped")
	}
	if _, ok := table["anthropic"]; !ok {
		t.Error("untouched built-ins should remain")
	}
}

func TestNormalizeVendorName(t *testing.T) {
	if got := NormalizeVendorName("  OpenAI "); got != "openai" {
		t.Errorf("got %q", got)
	}
}

func TestWatcherReloads(t *testing.T) {
	path := writeFile(t, "config.json5", `{gateway: {listen: ":9000"}}`)

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	w.debounce = 10 * time.Millisecond

	got := make(chan *Config, 1)
	w.OnChange(func(cfg *Config) {
		select {
		case got <- cfg:
		default:
		}
	})
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte(`{gateway: {listen: ":9001"}}`), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-got:
		if cfg.Gateway.Listen != ":9001" {
			t.Errorf("reloaded listen = %q", cfg.Gateway.Listen)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestWatcherSkipsUnchangedContent(t *testing.T) {
	content := []byte(`{gateway: {listen: ":9000"}}`)
	path := writeFile(t, "config.json5", string(content))

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	w.debounce = 10 * time.Millisecond

	reloads := make(chan struct{}, 4)
	w.OnChange(func(*Config) { reloads <- struct{}{} })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloads:
		t.Fatal("rewrite with identical content should not reload")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherKeepsLastGoodConfig(t *testing.T) {
	path := writeFile(t, "config.json5", `{gateway: {listen: ":9000"}}`)

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	w.debounce = 10 * time.Millisecond

	reloads := make(chan *Config, 4)
	w.OnChange(func(cfg *Config) { reloads <- cfg })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte(`{database: {mode: "cloud"}}`), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloads:
		t.Fatalf("invalid config should not be delivered: %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
}
