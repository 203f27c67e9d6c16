package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Auth        AuthConfig                `json:"auth"`
}

type BasicConfig struct {
	ServerAddress          string   `json:"server_address"`
	DatabaseType           string   `json:"database_type"`
	Provider               string   `json:"provider"`
	LogLevel               string   `json:"log_level"`
	ProviderTimeoutSeconds int      `json:"provider_timeout_seconds"`
	RateLimitRequests      int      `json:"rate_limit_requests"`
	RateLimitWindowSeconds int      `json:"rate_limit_window_seconds"`
	AllowedOrigins         []string `json:"allowed_origins"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type AuthConfig struct {
	JWTSecret       string `json:"jwt_secret"`
	TokenTTLMinutes int    `json:"token_ttl_minutes"`
	AdminEmail      string `json:"admin_email"`
	AdminUsername   string `json:"admin_username"`
	AdminPassword   string `json:"admin_password"`
}

const (
	DefaultServerAddress   = ":8090"
	DefaultDatabaseType    = "sqlite3"
	DefaultProvider        = "gemini"
	DefaultProviderTimeout = 30 * time.Second
	DefaultTokenTTL        = time.Hour

	// clientFoundRows makes RowsAffected count matched rows, as sqlite does.
	DefaultMySQLParams = "parseTime=true&charset=utf8mb4&clientFoundRows=true"
)

var defaultModels = map[string]string{
	"gemini": "gemini-1.5-flash",
	"openai": "gpt-4o-mini",
	"claude": "claude-3-5-haiku-latest",
}

// Load reads configuration from the provided path (defaults to config.json), then
// applies .env and environment overrides. A missing default file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	var cfg Config
	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	loadDotEnv()
	cfg.applyEnv()
	cfg.applyDefaults(filepath.Dir(absPath))

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("jwt secret must be configured (auth.jwt_secret or SECRET_KEY)")
	}
	if _, ok := cfg.Databases[cfg.BasicConfig.DatabaseType]; !ok {
		return nil, fmt.Errorf("database config for %s not found", cfg.BasicConfig.DatabaseType)
	}
	return &cfg, nil
}

// ProviderTimeout returns the bound applied to every model call.
func (c *Config) ProviderTimeout() time.Duration {
	if c.BasicConfig.ProviderTimeoutSeconds <= 0 {
		return DefaultProviderTimeout
	}
	return time.Duration(c.BasicConfig.ProviderTimeoutSeconds) * time.Second
}

// TokenTTL returns the lifetime of issued access tokens.
func (c *Config) TokenTTL() time.Duration {
	if c.Auth.TokenTTLMinutes <= 0 {
		return DefaultTokenTTL
	}
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// RateLimitWindow returns the window used by the credential endpoints limiter.
func (c *Config) RateLimitWindow() time.Duration {
	if c.BasicConfig.RateLimitWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.BasicConfig.RateLimitWindowSeconds) * time.Second
}

// ActiveProvider returns the name and settings of the configured model provider.
func (c *Config) ActiveProvider() (string, ProviderConfig) {
	name := strings.ToLower(c.BasicConfig.Provider)
	return name, c.Providers[name]
}

// loadDotEnv reads .env without overwriting variables already present.
func loadDotEnv() {
	envMap, err := godotenv.Read()
	if err != nil {
		return
	}
	for k, v := range envMap {
		if os.Getenv(k) == "" {
			os.Setenv(k, v)
		}
	}
}

func (c *Config) applyEnv() {
	setString(&c.BasicConfig.ServerAddress, "SERVER_ADDRESS")
	setString(&c.BasicConfig.DatabaseType, "FRAUDECHAT_DB")
	setString(&c.BasicConfig.Provider, "LLM_PROVIDER")
	setString(&c.BasicConfig.LogLevel, "LOG_LEVEL")
	setInt(&c.BasicConfig.ProviderTimeoutSeconds, "PROVIDER_TIMEOUT_SECONDS")

	if c.Databases == nil {
		c.Databases = make(map[string]DatabaseConfig)
	}
	my := c.Databases["mysql"]
	setString(&my.Host, "DB_HOST")
	setInt(&my.Port, "DB_PORT")
	setString(&my.Username, "DB_USER")
	setString(&my.Password, "DB_PASSWORD")
	setString(&my.DBName, "DB_NAME")
	if my.Host != "" || my.DBName != "" {
		c.Databases["mysql"] = my
	}
	lite := c.Databases["sqlite3"]
	setString(&lite.DSN, "SQLITE_DSN")
	c.Databases["sqlite3"] = lite

	if addr := strings.TrimSpace(os.Getenv("REDIS_ADDR")); addr != "" {
		host, port, found := strings.Cut(addr, ":")
		c.Redis.Host = host
		if found {
			if p, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = p
			}
		}
	}
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Redis.DB, "REDIS_DB")

	setString(&c.Auth.JWTSecret, "SECRET_KEY")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Auth.AdminEmail, "ADMIN_EMAIL")
	setString(&c.Auth.AdminPassword, "ADMIN_PASSWORD")

	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	for name, env := range map[string]string{
		"gemini": "GEMINI_API_KEY",
		"openai": "OPENAI_API_KEY",
		"claude": "ANTHROPIC_API_KEY",
	} {
		p := c.Providers[name]
		setString(&p.APIKey, env)
		if p.APIKey != "" || p.Model != "" || p.BaseURL != "" {
			c.Providers[name] = p
		}
	}
}

func (c *Config) applyDefaults(baseDir string) {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = DefaultServerAddress
	}
	c.BasicConfig.DatabaseType = strings.ToLower(c.BasicConfig.DatabaseType)
	if c.BasicConfig.DatabaseType == "" || c.BasicConfig.DatabaseType == "sqlite" {
		c.BasicConfig.DatabaseType = DefaultDatabaseType
	}
	if c.BasicConfig.Provider == "" {
		c.BasicConfig.Provider = DefaultProvider
	}
	if c.BasicConfig.LogLevel == "" {
		c.BasicConfig.LogLevel = "info"
	}
	if c.BasicConfig.RateLimitRequests <= 0 {
		c.BasicConfig.RateLimitRequests = 20
	}

	lite := c.Databases["sqlite3"]
	if lite.DSN == "" {
		lite.DSN = "fraudechat.db"
	}
	if lite.DSN != ":memory:" && !strings.HasPrefix(lite.DSN, "file:") && !filepath.IsAbs(lite.DSN) {
		lite.DSN = filepath.Join(baseDir, lite.DSN)
	}
	c.Databases["sqlite3"] = lite

	if my, ok := c.Databases["mysql"]; ok {
		if my.Port == 0 {
			my.Port = 3306
		}
		if my.Params == "" {
			my.Params = DefaultMySQLParams
		}
		c.Databases["mysql"] = my
	}

	if c.Redis.Enabled() && c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Auth.AdminUsername == "" {
		c.Auth.AdminUsername = "admin"
	}

	for name, model := range defaultModels {
		p := c.Providers[name]
		if p.Model == "" {
			p.Model = model
			c.Providers[name] = p
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}
