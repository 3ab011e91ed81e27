// Package platform assembles the slidetrack service: stores, the tracking
// service, the HTTP API, and the operational endpoints around them.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/txn2/slidetrack/internal/apidocs" // register swagger docs
	"github.com/txn2/slidetrack/pkg/api"
	"github.com/txn2/slidetrack/pkg/database"
	"github.com/txn2/slidetrack/pkg/database/migrate"
	"github.com/txn2/slidetrack/pkg/health"
	httpmw "github.com/txn2/slidetrack/pkg/http"
	"github.com/txn2/slidetrack/pkg/insights"
	"github.com/txn2/slidetrack/pkg/session"
	sessionpg "github.com/txn2/slidetrack/pkg/session/postgres"
	"github.com/txn2/slidetrack/pkg/tally"
	tallypg "github.com/txn2/slidetrack/pkg/tally/postgres"
	"github.com/txn2/slidetrack/pkg/tracking"
	trackingpg "github.com/txn2/slidetrack/pkg/tracking/postgres"
)

// Platform is the main platform facade.
type Platform struct {
	config    *Config
	lifecycle *Lifecycle
	version   string

	sessions session.Store
	tallies  tally.Store
	uow      tracking.UnitOfWork
	tracker  *tracking.Service

	registry *prometheus.Registry
	health   *health.Checker
	insights *insights.Server
	handler  http.Handler
}

// cleaner is implemented by stores that expire sessions in the background.
type cleaner interface {
	StartCleanupRoutine(interval time.Duration)
	Close() error
}

// New creates a new platform instance.
func New(ctx context.Context, opts ...Option) (*Platform, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Config == nil {
		return nil, errors.New("config is required")
	}
	if (options.SessionStore == nil) != (options.TallyStore == nil) {
		return nil, errors.New("session and tally stores must be provided together")
	}

	p := &Platform{
		config:    options.Config,
		lifecycle: NewLifecycle(),
		version:   options.Version,
		registry:  options.Registry,
		health:    health.NewChecker(),
	}
	if p.version == "" {
		p.version = "dev"
	}
	if p.registry == nil {
		p.registry = prometheus.NewRegistry()
		p.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if err := p.initStores(ctx, options); err != nil {
		p.closeOnError()
		return nil, fmt.Errorf("initializing stores: %w", err)
	}
	if err := p.initTracking(); err != nil {
		p.closeOnError()
		return nil, fmt.Errorf("initializing tracking: %w", err)
	}
	if err := p.initHandler(); err != nil {
		p.closeOnError()
		return nil, fmt.Errorf("initializing handler: %w", err)
	}
	return p, nil
}

// initStores picks injected stores, PostgreSQL stores, or in-memory stores,
// in that order.
func (p *Platform) initStores(ctx context.Context, opts *Options) error {
	if opts.SessionStore != nil {
		p.sessions = opts.SessionStore
		p.tallies = opts.TallyStore
		p.uow = tracking.NewMemoryUnitOfWork(p.tallies, p.sessions)
		return nil
	}

	db := opts.DB
	if db == nil && p.config.Database.DSN != "" {
		opened, err := database.Open(ctx, database.Config{
			DSN:             p.config.Database.DSN,
			MaxOpenConns:    p.config.Database.MaxOpenConns,
			MaxIdleConns:    p.config.Database.MaxIdleConns,
			ConnMaxLifetime: p.config.Database.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		db = opened
		p.lifecycle.RegisterCloser(db)
	}

	if db == nil {
		slog.Warn("no database configured, using in-memory stores")
		memSessions := session.NewMemoryStore(p.config.Session.TTL)
		memTallies := tally.NewMemoryStore()
		p.sessions = memSessions
		p.tallies = memTallies
		p.uow = tracking.NewMemoryUnitOfWork(memTallies, memSessions)
		p.startCleanup(memSessions)
		return nil
	}

	if err := migrate.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pgSessions := sessionpg.New(db, sessionpg.Config{TTL: p.config.Session.TTL})
	p.sessions = pgSessions
	p.tallies = tallypg.New(db)
	p.uow = trackingpg.New(db, pgSessions)
	p.startCleanup(pgSessions)
	p.health.AddPinger("database", db)
	return nil
}

// startCleanup runs the store's cleanup routine between Start and Stop.
func (p *Platform) startCleanup(store cleaner) {
	p.lifecycle.OnStart(func(context.Context) error {
		store.StartCleanupRoutine(p.config.Session.CleanupInterval)
		return nil
	})
	p.lifecycle.RegisterCloser(store)
}

func (p *Platform) initTracking() error {
	tracker, err := tracking.NewService(tracking.Config{
		UnitOfWork: p.uow,
		Guard:      p.sessions,
		Tallies:    p.tallies,
		Timeout:    p.config.Database.StoreTimeout,
		Metrics:    tracking.NewMetrics(p.registry),
	})
	if err != nil {
		return fmt.Errorf("creating tracking service: %w", err)
	}
	p.tracker = tracker
	return nil
}

func (p *Platform) initHandler() error {
	signer, err := session.NewCookieSigner(p.config.Session.Secret)
	if err != nil {
		return fmt.Errorf("creating cookie signer: %w", err)
	}

	production := p.config.IsProduction()
	apiHandler := api.NewHandler(api.Deps{
		Tracker:      p.tracker,
		Sessions:     p.sessions,
		Production:   production,
		StoreTimeout: p.config.Database.StoreTimeout,
	})
	sessions := session.Middleware(session.MiddlewareConfig{
		Store:        p.sessions,
		Signer:       signer,
		TTL:          p.config.Session.TTL,
		CookieName:   p.config.Session.CookieName,
		Secure:       production,
		StoreTimeout: p.config.Database.StoreTimeout,
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", httpmw.Chain(apiHandler,
		httpmw.RateLimit(p.config.RateLimit.RequestsPerMinute, production),
		sessions,
	))
	mux.Handle("GET /healthz", p.health.LivenessHandler())
	mux.Handle("GET /readyz", p.health.ReadinessHandler())
	mux.Handle("GET /metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	if p.config.MCP.Enabled {
		p.insights = insights.New(p.tallies, p.version)
		mux.Handle("/mcp", p.insights.Handler())
	}
	if dir := p.config.Server.StaticDir; dir != "" {
		mux.Handle("/", http.FileServer(http.Dir(dir)))
	}

	p.handler = httpmw.Chain(mux,
		httpmw.RequestLogger(),
		httpmw.HTTPSRedirect(production),
	)
	return nil
}

// closeOnError releases what New acquired before a step failed.
func (p *Platform) closeOnError() {
	if err := p.lifecycle.stopAll(context.Background()); err != nil {
		slog.Warn("platform: cleanup after failed init", "error", err)
	}
}

// Start starts background routines and marks the service ready.
func (p *Platform) Start(ctx context.Context) error {
	if err := p.lifecycle.Start(ctx); err != nil {
		return fmt.Errorf("starting lifecycle: %w", err)
	}
	p.health.SetReady()
	return nil
}

// Stop marks the service draining and stops everything Start started.
func (p *Platform) Stop(ctx context.Context) error {
	p.health.SetDraining()
	return p.lifecycle.Stop(ctx)
}

// Close stops the platform with a background context.
func (p *Platform) Close() error {
	return p.Stop(context.Background())
}

// Handler returns the root HTTP handler.
func (p *Platform) Handler() http.Handler {
	return p.handler
}

// Config returns the platform configuration.
func (p *Platform) Config() *Config {
	return p.config
}

// Tracker returns the tracking service.
func (p *Platform) Tracker() *tracking.Service {
	return p.tracker
}

// Health returns the readiness checker.
func (p *Platform) Health() *health.Checker {
	return p.health
}

// Insights returns the MCP server, or nil when mcp.enabled is false.
func (p *Platform) Insights() *insights.Server {
	return p.insights
}

// Registry returns the Prometheus registry behind /metrics.
func (p *Platform) Registry() *prometheus.Registry {
	return p.registry
}
