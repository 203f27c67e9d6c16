package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadReadsFileAndAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"basic_config": {"server_address": ":9000", "provider": "OpenAI"},
		"databases": {"sqlite3": {"dsn": "chat.db"}},
		"auth": {"jwt_secret": "file-secret"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":9000" {
		t.Fatalf("unexpected address %q", cfg.BasicConfig.ServerAddress)
	}
	if cfg.BasicConfig.DatabaseType != "sqlite3" {
		t.Fatalf("expected sqlite3 default, got %q", cfg.BasicConfig.DatabaseType)
	}
	wantDSN := filepath.Join(filepath.Dir(path), "chat.db")
	if got := cfg.Databases["sqlite3"].DSN; got != wantDSN {
		t.Fatalf("sqlite dsn not resolved: want %q got %q", wantDSN, got)
	}
	name, provider := cfg.ActiveProvider()
	if name != "openai" || provider.Model == "" {
		t.Fatalf("unexpected provider %q %+v", name, provider)
	}
	if cfg.ProviderTimeout() != DefaultProviderTimeout {
		t.Fatalf("unexpected provider timeout %s", cfg.ProviderTimeout())
	}
	if cfg.TokenTTL() != time.Hour {
		t.Fatalf("unexpected token ttl %s", cfg.TokenTTL())
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `{"auth": {"jwt_secret": "file-secret"}}`)
	t.Setenv("SECRET_KEY", "env-secret")
	t.Setenv("FRAUDECHAT_DB", "mysql")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "chat")
	t.Setenv("DB_NAME", "chatbot")
	t.Setenv("REDIS_ADDR", "cache.internal:6380")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("PROVIDER_TIMEOUT_SECONDS", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Fatalf("expected env secret, got %q", cfg.Auth.JWTSecret)
	}
	my := cfg.Databases["mysql"]
	if my.Host != "db.internal" || my.Port != 3306 || my.DBName != "chatbot" {
		t.Fatalf("unexpected mysql config %+v", my)
	}
	if my.Params != DefaultMySQLParams || !strings.Contains(my.Params, "clientFoundRows=true") {
		t.Fatalf("unexpected default mysql params %q", my.Params)
	}
	if cfg.Redis.Host != "cache.internal" || cfg.Redis.Port != 6380 || !cfg.Redis.Enabled() {
		t.Fatalf("unexpected redis config %+v", cfg.Redis)
	}
	if cfg.Providers["gemini"].APIKey != "gemini-key" {
		t.Fatalf("gemini key not applied")
	}
	if cfg.ProviderTimeout() != 5*time.Second {
		t.Fatalf("unexpected provider timeout %s", cfg.ProviderTimeout())
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	path := writeConfig(t, `{}`)
	t.Setenv("SECRET_KEY", "")
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error without jwt secret")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}
