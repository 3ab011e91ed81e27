// Package server builds the HTTP server that fronts the platform handler.
package server

import (
	"net/http"
	"time"

	"github.com/txn2/slidetrack/pkg/database"
	"github.com/txn2/slidetrack/pkg/platform"
)

// Build metadata, set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// readHeaderTimeout bounds slow-header clients independently of ReadTimeout.
const readHeaderTimeout = 5 * time.Second

// storeCallsPerRequest is the number of store timeouts a request can use:
// one in the session middleware and one in the handler.
const storeCallsPerRequest = 2

// New creates an HTTP server for handler using the server section of cfg.
func New(cfg *platform.Config, handler http.Handler) *http.Server {
	readHeader := readHeaderTimeout
	if cfg.Server.ReadTimeout > 0 && cfg.Server.ReadTimeout < readHeader {
		readHeader = cfg.Server.ReadTimeout
	}
	return &http.Server{
		Addr:              cfg.ListenAddress(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: readHeader,
		WriteTimeout:      writeTimeout(cfg),
		IdleTimeout:       2 * time.Minute,
	}
}

// writeTimeout covers reading the request plus every store call a request
// makes, so a handler that hits the store timeout can still write its 500.
func writeTimeout(cfg *platform.Config) time.Duration {
	store := cfg.Database.StoreTimeout
	if store <= 0 {
		store = database.DefaultStoreTimeout
	}
	return cfg.Server.ReadTimeout + storeCallsPerRequest*store
}
