package platform

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cfgTestFilePerms = 0o600
	cfgTestSecret    = "0123456789abcdef0123456789abcdef"
	cfgTestDSN       = "postgres://slidetrack:pw@localhost:5432/slidetrack?sslmode=disable"
)

// clearEnv neutralizes the environment overlay for the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"APP_ENV", "PORT", "DATABASE_URL", "SESSION_SECRET"} {
		t.Setenv(key, "")
	}
}

// writeTestConfig writes a YAML config to a temp dir and returns the path.
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), cfgTestFilePerms))
	return configPath
}

func TestLoadConfig_ValidFile(t *testing.T) {
	clearEnv(t)
	path := writeTestConfig(t, `
server:
  address: "127.0.0.1:9000"
  static_dir: ./public
  shutdown_timeout: 5s
database:
  dsn: `+cfgTestDSN+`
  store_timeout: 750ms
session:
  secret: hunter2
  ttl: 2h
  cookie_name: sid
rate_limit:
  requests_per_minute: 120
mcp:
  enabled: true
logging:
  level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address)
	assert.Equal(t, "./public", cfg.Server.StaticDir)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, cfgTestDSN, cfg.Database.DSN)
	assert.Equal(t, 750*time.Millisecond, cfg.Database.StoreTimeout)
	assert.Equal(t, "hunter2", cfg.Session.Secret)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "sid", cfg.Session.CookieName)
	assert.Equal(t, 120, cfg.RateLimit.RequestsPerMinute)
	assert.True(t, cfg.MCP.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	clearEnv(t)
	_, err := LoadConfig(writeTestConfig(t, "server: [unclosed"))
	assert.Error(t, err)
}

func TestLoadConfig_EnvVarExpansion(t *testing.T) {
	clearEnv(t)
	t.Setenv("SLIDETRACK_TEST_DIR", "/srv/slides")

	cfg, err := LoadConfig(writeTestConfig(t, "server:\n  static_dir: ${SLIDETRACK_TEST_DIR}\n"))
	require.NoError(t, err)
	assert.Equal(t, "/srv/slides", cfg.Server.StaticDir)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("SLIDETRACK_TEST_A", "alpha")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no vars", "plain", "plain"},
		{"one var", "x-${SLIDETRACK_TEST_A}", "x-alpha"},
		{"unset var", "${SLIDETRACK_TEST_UNSET}", ""},
		{"bare dollar untouched", "$SLIDETRACK_TEST_A", "$SLIDETRACK_TEST_A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnvVars(tt.input))
		})
	}
}

func TestParseConfig_EnvOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "8443")
	t.Setenv("DATABASE_URL", cfgTestDSN)
	t.Setenv("SESSION_SECRET", cfgTestSecret)

	cfg, err := ParseConfig([]byte(`
server:
  environment: development
database:
  dsn: postgres://ignored
session:
  secret: from-file
`))
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 8443, cfg.Server.Port)
	assert.Equal(t, ":8443", cfg.ListenAddress())
	assert.Equal(t, cfgTestDSN, cfg.Database.DSN)
	assert.Equal(t, cfgTestSecret, cfg.Session.Secret)
	assert.NoError(t, cfg.Validate())
}

func TestParseConfig_EmptyEnvKeepsFile(t *testing.T) {
	clearEnv(t)

	cfg, err := ParseConfig([]byte("session:\n  secret: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Session.Secret)
}

func TestParseConfig_InvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")

	_, err := ParseConfig(nil)
	assert.Error(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "3000")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.ListenAddress())
	assert.False(t, cfg.IsProduction())
	assert.NoError(t, cfg.Validate())
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, EnvDevelopment, cfg.Server.Environment)
	assert.Equal(t, ":8000", cfg.Server.Address)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 5*time.Second, cfg.Database.StoreTimeout)
	assert.Equal(t, DefaultSessionSecret, cfg.Session.Secret)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "slidetrack.sid", cfg.Session.CookieName)
	assert.Equal(t, 15*time.Minute, cfg.Session.CleanupInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Zero(t, cfg.RateLimit.RequestsPerMinute)
	assert.False(t, cfg.MCP.Enabled)
}

func TestApplyDefaults_NoSecretInProduction(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Environment: EnvProduction}}
	applyDefaults(cfg)
	assert.Empty(t, cfg.Session.Secret)
}

func TestApplyDefaults_PreservesExisting(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Address: ":9999", ShutdownTimeout: time.Second},
		Database: DatabaseConfig{MaxOpenConns: 3, StoreTimeout: time.Second},
		Session:  SessionConfig{Secret: "s", TTL: time.Hour, CookieName: "c"},
		Logging:  LoggingConfig{Level: "warn"},
	}
	applyDefaults(cfg)

	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 3, cfg.Database.MaxOpenConns)
	assert.Equal(t, time.Second, cfg.Database.StoreTimeout)
	assert.Equal(t, "s", cfg.Session.Secret)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, "c", cfg.Session.CookieName)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestListenAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		port    int
		want    string
	}{
		{"address only", ":8000", 0, ":8000"},
		{"port replaces", ":8000", 9090, ":9090"},
		{"port keeps host", "127.0.0.1:8000", 9090, "127.0.0.1:9090"},
		{"bare host", "localhost", 9090, "localhost:9090"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Server: ServerConfig{Address: tt.address, Port: tt.port}}
			assert.Equal(t, tt.want, cfg.ListenAddress())
		})
	}
}

func TestIsProduction(t *testing.T) {
	assert.True(t, (&Config{Server: ServerConfig{Environment: "production"}}).IsProduction())
	assert.True(t, (&Config{Server: ServerConfig{Environment: "PRODUCTION"}}).IsProduction())
	assert.False(t, (&Config{Server: ServerConfig{Environment: "development"}}).IsProduction())
	assert.False(t, (&Config{}).IsProduction())
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}
	production := func() *Config {
		cfg := &Config{
			Server:   ServerConfig{Environment: EnvProduction},
			Database: DatabaseConfig{DSN: cfgTestDSN},
			Session:  SessionConfig{Secret: cfgTestSecret},
		}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		cfg     func() *Config
		wantErr string
	}{
		{"development defaults", valid, ""},
		{"production", production, ""},
		{"unknown environment", func() *Config {
			cfg := valid()
			cfg.Server.Environment = "staging"
			return cfg
		}, "server.environment"},
		{"production without dsn", func() *Config {
			cfg := production()
			cfg.Database.DSN = ""
			return cfg
		}, "database.dsn"},
		{"production without secret", func() *Config {
			cfg := production()
			cfg.Session.Secret = ""
			return cfg
		}, "session.secret must be set"},
		{"production with default secret", func() *Config {
			cfg := production()
			cfg.Session.Secret = DefaultSessionSecret
			return cfg
		}, "session.secret must be set"},
		{"production with short secret", func() *Config {
			cfg := production()
			cfg.Session.Secret = "short"
			return cfg
		}, "at least 32 bytes"},
		{"short ttl", func() *Config {
			cfg := valid()
			cfg.Session.TTL = time.Second
			return cfg
		}, "session.ttl"},
		{"negative store timeout", func() *Config {
			cfg := valid()
			cfg.Database.StoreTimeout = -time.Second
			return cfg
		}, "database.store_timeout"},
		{"negative rate limit", func() *Config {
			cfg := valid()
			cfg.RateLimit.RequestsPerMinute = -1
			return cfg
		}, "rate_limit"},
		{"bad log level", func() *Config {
			cfg := valid()
			cfg.Logging.Level = "verbose"
			return cfg
		}, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg().Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidate_ReportsEveryProblem(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Environment: EnvProduction}}
	applyDefaults(cfg)

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, 1, strings.Count(err.Error(), "database.dsn"))
	assert.Equal(t, 1, strings.Count(err.Error(), "session.secret"))
}
