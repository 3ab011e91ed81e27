package platform

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Environment names.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// DefaultSessionSecret is accepted only outside production.
const DefaultSessionSecret = "local test secret"

// minProductionSecretLen is the shortest session secret allowed in production.
const minProductionSecretLen = 32

// Config holds the service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Session   SessionConfig   `yaml:"session"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	MCP       MCPConfig       `yaml:"mcp"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Environment is "production" or "development".
	Environment string `yaml:"environment" env:"APP_ENV"`

	// Address is the listen address. Port, when set, replaces its port.
	Address string `yaml:"address"`
	Port    int    `yaml:"port" env:"PORT"`

	// StaticDir, when set, is served at /.
	StaticDir string `yaml:"static_dir"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" env:"DATABASE_URL"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	// StoreTimeout bounds each call against the session and tally stores.
	StoreTimeout time.Duration `yaml:"store_timeout"`
}

// SessionConfig configures visitor sessions.
type SessionConfig struct {
	Secret          string        `yaml:"secret" env:"SESSION_SECRET"`
	TTL             time.Duration `yaml:"ttl"`
	CookieName      string        `yaml:"cookie_name"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// RateLimitConfig configures per-IP limiting on /api/.
type RateLimitConfig struct {
	// RequestsPerMinute of zero disables limiting.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// MCPConfig configures the read-only MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig loads configuration from a file and overlays the environment.
// The path is expected to come from command line arguments, controlled by the administrator.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration, overlays the environment, and
// applies defaults.
func ParseConfig(data []byte) (*Config, error) {
	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// ConfigFromEnv builds configuration from the environment alone.
func ConfigFromEnv() (*Config, error) {
	return ParseConfig(nil)
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Server.Environment == "" {
		cfg.Server.Environment = EnvDevelopment
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8000"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.Database.StoreTimeout == 0 {
		cfg.Database.StoreTimeout = 5 * time.Second
	}
	if cfg.Session.Secret == "" && !cfg.IsProduction() {
		cfg.Session.Secret = DefaultSessionSecret
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 24 * time.Hour
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "slidetrack.sid"
	}
	if cfg.Session.CleanupInterval == 0 {
		cfg.Session.CleanupInterval = 15 * time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, EnvProduction)
}

// ListenAddress returns the address to listen on.
func (c *Config) ListenAddress() string {
	if c.Server.Port <= 0 {
		return c.Server.Address
	}
	host := c.Server.Address
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host + ":" + strconv.Itoa(c.Server.Port)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Server.Environment) {
	case EnvProduction, EnvDevelopment:
	default:
		errs = append(errs, fmt.Sprintf("server.environment must be %q or %q", EnvProduction, EnvDevelopment))
	}

	if c.IsProduction() {
		if c.Database.DSN == "" {
			errs = append(errs, "database.dsn is required in production")
		}
		switch {
		case c.Session.Secret == "" || c.Session.Secret == DefaultSessionSecret:
			errs = append(errs, "session.secret must be set in production")
		case len(c.Session.Secret) < minProductionSecretLen:
			errs = append(errs, fmt.Sprintf("session.secret must be at least %d bytes in production", minProductionSecretLen))
		}
	}

	if c.Session.TTL < time.Minute {
		errs = append(errs, "session.ttl must be at least 1m")
	}
	if c.Database.StoreTimeout < 0 {
		errs = append(errs, "database.store_timeout must not be negative")
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, "rate_limit.requests_per_minute must not be negative")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "logging.level must be one of debug, info, warn, error")
	}

	if len(errs) > 0 {
		return errors.New("config validation errors: " + strings.Join(errs, "; "))
	}
	return nil
}
