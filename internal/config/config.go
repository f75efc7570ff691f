package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config defines server and client configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	DB          DBConfig          `yaml:"db"`
	Log         LogConfig         `yaml:"log"`
	Auth        AuthConfig        `yaml:"auth"`
	Transport   TransportConfig   `yaml:"transport"`
	Quota       QuotaConfig       `yaml:"quota"`
	Suggestions SuggestionsConfig `yaml:"suggestions"`
	Client      ClientConfig      `yaml:"client"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// AuthConfig selects how bearer tokens map to tenants.
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Mode      string `yaml:"mode"` // apikey or jwt
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`
}

// TransportConfig selects how MCP is served: "http" mounts it on the REST
// server, "stdio" speaks it on stdin/stdout.
type TransportConfig struct {
	Mode          string `yaml:"mode"`
	DefaultTenant string `yaml:"default_tenant"`
}

type QuotaConfig struct {
	DefaultLimit int               `yaml:"default_limit"`
	Plans        map[string]int    `yaml:"plans"`
	TenantPlans  map[string]string `yaml:"tenant_plans"`
	RolloverCron string            `yaml:"rollover_cron"`
}

type SuggestionsConfig struct {
	Provider   string  `yaml:"provider"` // rules or genai
	APIKey     string  `yaml:"api_key"`
	Model      string  `yaml:"model"`
	RatePerSec float64 `yaml:"rate_per_sec"`
	Burst      int     `yaml:"burst"`
}

// ClientConfig is read by the wizard CLI.
type ClientConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Token    string        `yaml:"token"`
	TenantID string        `yaml:"tenant_id"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		DB: DBConfig{
			Path: "stepwise.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			Enabled:   true,
			Mode:      "apikey",
			JWTIssuer: "stepwise",
		},
		Transport: TransportConfig{
			Mode:          "http",
			DefaultTenant: "default",
		},
		Quota: QuotaConfig{
			DefaultLimit: 5,
			RolloverCron: "@hourly",
		},
		Suggestions: SuggestionsConfig{
			Provider:   "rules",
			Model:      "gemini-2.5-flash",
			RatePerSec: 1,
			Burst:      3,
		},
		Client: ClientConfig{
			BaseURL:  "http://localhost:8080",
			TenantID: "default",
			Timeout:  15 * time.Second,
		},
	}
}

// Load reads configuration from an optional .env file, an optional YAML file
// and environment variables, in that order of increasing precedence.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path := os.Getenv("STEPWISE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch c.Auth.Mode {
	case "apikey":
	case "jwt":
		if c.Auth.Enabled && c.Auth.JWTSecret == "" {
			return errors.New("auth mode jwt requires STEPWISE_JWT_SECRET")
		}
	default:
		return fmt.Errorf("invalid auth mode %q", c.Auth.Mode)
	}
	switch c.Transport.Mode {
	case "http", "stdio":
	default:
		return fmt.Errorf("invalid transport mode %q", c.Transport.Mode)
	}
	switch c.Suggestions.Provider {
	case "rules":
	case "genai":
		if c.Suggestions.APIKey == "" {
			return errors.New("suggestion provider genai requires STEPWISE_GENAI_API_KEY")
		}
	default:
		return fmt.Errorf("invalid suggestion provider %q", c.Suggestions.Provider)
	}
	if c.Quota.DefaultLimit < 0 {
		return errors.New("quota default limit must not be negative")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	setString("STEPWISE_SERVER_HOST", &cfg.Server.Host)
	if portStr := os.Getenv("STEPWISE_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid STEPWISE_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	setString("STEPWISE_DB_PATH", &cfg.DB.Path)
	setString("STEPWISE_LOG_LEVEL", &cfg.Log.Level)
	setString("STEPWISE_LOG_PATH", &cfg.Log.Path)

	if v := os.Getenv("STEPWISE_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid STEPWISE_AUTH_ENABLED: %w", err)
		}
		cfg.Auth.Enabled = enabled
	}
	setString("STEPWISE_AUTH_MODE", &cfg.Auth.Mode)
	setString("STEPWISE_JWT_SECRET", &cfg.Auth.JWTSecret)
	setString("STEPWISE_JWT_ISSUER", &cfg.Auth.JWTIssuer)

	setString("STEPWISE_TRANSPORT", &cfg.Transport.Mode)
	setString("STEPWISE_DEFAULT_TENANT", &cfg.Transport.DefaultTenant)

	if v := os.Getenv("STEPWISE_QUOTA_LIMIT"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid STEPWISE_QUOTA_LIMIT: %w", err)
		}
		cfg.Quota.DefaultLimit = limit
	}
	setString("STEPWISE_QUOTA_ROLLOVER_CRON", &cfg.Quota.RolloverCron)

	setString("STEPWISE_SUGGESTION_PROVIDER", &cfg.Suggestions.Provider)
	setString("STEPWISE_GENAI_API_KEY", &cfg.Suggestions.APIKey)
	setString("STEPWISE_GENAI_MODEL", &cfg.Suggestions.Model)

	setString("STEPWISE_URL", &cfg.Client.BaseURL)
	setString("STEPWISE_TOKEN", &cfg.Client.Token)
	setString("STEPWISE_TENANT", &cfg.Client.TenantID)
	if v := os.Getenv("STEPWISE_CLIENT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid STEPWISE_CLIENT_TIMEOUT: %w", err)
		}
		cfg.Client.Timeout = d
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
