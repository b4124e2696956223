package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigEnvVar names the server config file
	ConfigEnvVar = "ELITETRACK_CONFIG"

	configDirName  = ".elitetrack"
	configFileName = "config.yaml"
)

// Config is the shared configuration of the server and the CLI
type Config struct {
	Environment string          `yaml:"environment" env:"ELITETRACK_ENV"`
	Server      ServerConfig    `yaml:"server"`
	Storage     StorageConfig   `yaml:"storage"`
	RateLimit   RateLimitConfig `yaml:"ratelimit"`
	Session     SessionConfig   `yaml:"session"`
	Invite      InviteConfig    `yaml:"invite"`
	Logging     LoggingConfig   `yaml:"logging"`
	DevUsers    []DevUser       `yaml:"dev_users,omitempty"`
}

// ServerConfig configures the HTTP listener, and for the CLI the server URL
type ServerConfig struct {
	Addr           string `yaml:"addr" env:"ELITETRACK_ADDR"`
	URL            string `yaml:"url" env:"ELITETRACK_SERVER_URL"`
	AllowedOrigins string `yaml:"allowed_origins,omitempty" env:"ELITETRACK_ALLOWED_ORIGINS"`
	MaxBodySize    string `yaml:"max_body_size" env:"ELITETRACK_MAX_BODY_SIZE"`
	TLSCertFile    string `yaml:"tls_cert_file,omitempty" env:"ELITETRACK_TLS_CERT_FILE"`
	TLSKeyFile     string `yaml:"tls_key_file,omitempty" env:"ELITETRACK_TLS_KEY_FILE"`
	TLSMinVersion  string `yaml:"tls_min_version,omitempty" env:"ELITETRACK_TLS_MIN_VERSION"`
}

// StorageConfig selects the invite, account and temp-password backend
type StorageConfig struct {
	Driver  string        `yaml:"driver" env:"ELITETRACK_STORAGE_DRIVER"`
	DSN     string        `yaml:"dsn,omitempty" env:"ELITETRACK_STORAGE_DSN"`
	Timeout time.Duration `yaml:"timeout" env:"ELITETRACK_STORAGE_TIMEOUT"`
}

// RateLimitConfig configures failed-login lockout
type RateLimitConfig struct {
	MaxAttempts int           `yaml:"max_attempts" env:"ELITETRACK_RATELIMIT_MAX_ATTEMPTS"`
	Window      time.Duration `yaml:"window" env:"ELITETRACK_RATELIMIT_WINDOW"`
	Lockout     time.Duration `yaml:"lockout" env:"ELITETRACK_RATELIMIT_LOCKOUT"`
	Backend     string        `yaml:"backend" env:"ELITETRACK_RATELIMIT_BACKEND"`
	RedisURL    string        `yaml:"redis_url,omitempty" env:"ELITETRACK_REDIS_URL"`
}

// SessionConfig configures session lifetime and signing
type SessionConfig struct {
	TTL                time.Duration `yaml:"ttl" env:"ELITETRACK_SESSION_TTL"`
	Secret             string        `yaml:"secret,omitempty" env:"ELITETRACK_SESSION_SECRET"`
	RevalidateInterval time.Duration `yaml:"revalidate_interval" env:"ELITETRACK_SESSION_REVALIDATE_INTERVAL"`
}

// InviteConfig configures invite issuance
type InviteConfig struct {
	TTL time.Duration `yaml:"ttl" env:"ELITETRACK_INVITE_TTL"`
}

// LoggingConfig configures the slog handler
type LoggingConfig struct {
	Level  string `yaml:"level" env:"ELITETRACK_LOG_LEVEL"`
	Format string `yaml:"format" env:"ELITETRACK_LOG_FORMAT"`
}

// DevUser is a fixed credential served by the fallback verifier in development
type DevUser struct {
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	Name      string `yaml:"name"`
	Role      string `yaml:"role"`
	ProjectID string `yaml:"project_id,omitempty"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Environment: "production",
		Server: ServerConfig{
			Addr:        ":8080",
			URL:         "http://localhost:8080",
			MaxBodySize: "1MB",
		},
		Storage: StorageConfig{
			Driver:  "memory",
			Timeout: 5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			MaxAttempts: 5,
			Window:      15 * time.Minute,
			Lockout:     30 * time.Minute,
			Backend:     "memory",
		},
		Session: SessionConfig{
			TTL:                24 * time.Hour,
			RevalidateInterval: 5 * time.Minute,
		},
		Invite: InviteConfig{
			TTL: 7 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path on top of the defaults, then applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Server.URL = strings.TrimRight(cfg.Server.URL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadServer loads the file named by ELITETRACK_CONFIG, if any
func LoadServer() (*Config, error) {
	return Load(os.Getenv(ConfigEnvVar))
}

// LoadClient loads ~/.elitetrack/config.yaml
func LoadClient() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// ParseEnv applies environment variables to target
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return errors.New("server URL cannot be empty")
	}
	if u, err := url.Parse(c.Server.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid server URL %q", c.Server.URL)
	}

	switch c.Storage.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage driver %s requires a dsn", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Timeout <= 0 {
		return errors.New("storage timeout must be positive")
	}

	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.RateLimit.RedisURL == "" {
			return errors.New("redis rate limit backend requires redis_url")
		}
	default:
		return fmt.Errorf("unknown rate limit backend %q", c.RateLimit.Backend)
	}
	if c.RateLimit.MaxAttempts < 1 || c.RateLimit.Window <= 0 || c.RateLimit.Lockout <= 0 {
		return errors.New("rate limit attempts, window and lockout must be positive")
	}

	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if c.Invite.TTL <= 0 {
		return errors.New("invite ttl must be positive")
	}

	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return errors.New("tls_cert_file and tls_key_file must be set together")
	}

	if len(c.DevUsers) > 0 && !c.IsDevelopment() {
		return errors.New("dev_users are only allowed in development")
	}
	return nil
}

// IsDevelopment reports whether the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Save writes the configuration to path with owner-only permissions
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Set updates one CLI-settable key
func (c *Config) Set(key, value string) error {
	switch key {
	case "server.url":
		c.Server.URL = strings.TrimRight(value, "/")
	case "session.revalidate_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		c.Session.RevalidateInterval = d
	case "logging.level":
		c.Logging.Level = value
	case "logging.format":
		c.Logging.Format = value
	default:
		return fmt.Errorf("unknown config key %q (settable: %s)", key, strings.Join(SettableKeys(), ", "))
	}
	return c.Validate()
}

// SettableKeys lists the keys accepted by Set
func SettableKeys() []string {
	return []string{"server.url", "session.revalidate_interval", "logging.level", "logging.format"}
}

// GetConfigDir returns ~/.elitetrack
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// GetConfigPath returns ~/.elitetrack/config.yaml
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}
