package platform

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/txn2/slidetrack/pkg/session"
	"github.com/txn2/slidetrack/pkg/tally"
)

// Options configures the platform.
type Options struct {
	// Config is the platform configuration.
	Config *Config

	// Database connection (optional, will be opened from config if not provided).
	// The platform does not close a DB it did not open.
	DB *sql.DB

	// SessionStore and TallyStore replace the stores the platform would build.
	// They must be provided together and are joined by an in-memory unit of work.
	SessionStore session.Store
	TallyStore   tally.Store

	// Registry receives the platform's collectors and backs /metrics.
	Registry *prometheus.Registry

	// Version is reported by the MCP server.
	Version string
}

// Option is a functional option for configuring the platform.
type Option func(*Options)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

// WithDB sets the database connection.
func WithDB(db *sql.DB) Option {
	return func(o *Options) {
		o.DB = db
	}
}

// WithStores sets the session and tally stores.
func WithStores(sessions session.Store, tallies tally.Store) Option {
	return func(o *Options) {
		o.SessionStore = sessions
		o.TallyStore = tallies
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *Options) {
		o.Registry = reg
	}
}

// WithVersion sets the reported version.
func WithVersion(version string) Option {
	return func(o *Options) {
		o.Version = version
	}
}
