// Package main provides the entry point for the slidetrack server.
//
// @title        slidetrack API
// @version      1.0
// @description  Anonymous response tracking and module progress for training slides.
// @BasePath     /api
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/txn2/slidetrack/internal/server"
	"github.com/txn2/slidetrack/pkg/platform"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type serverOptions struct {
	configPath  string
	showVersion bool
}

func parseFlags(args []string) (serverOptions, error) {
	opts := serverOptions{}
	fs := flag.NewFlagSet("slidetrack", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file (defaults to environment only)")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	if err := fs.Parse(args); err != nil {
		return opts, fmt.Errorf("parsing flags: %w", err)
	}
	return opts, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func loadConfig(opts serverOptions) (*platform.Config, error) {
	var (
		cfg *platform.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = platform.LoadConfig(opts.configPath)
	} else {
		cfg, err = platform.ConfigFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// newLogger returns a JSON logger in production and a text logger otherwise.
func newLogger(cfg *platform.Config) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(cfg.Logging.Level)}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	if opts.showVersion {
		fmt.Printf("slidetrack version %s (commit %s, built %s)\n", server.Version, server.Commit, server.Date)
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(cfg))

	ctx, stop := setupSignalHandler()
	defer stop()

	p, err := platform.New(ctx, platform.WithConfig(cfg), platform.WithVersion(server.Version))
	if err != nil {
		return fmt.Errorf("creating platform: %w", err)
	}
	if err := p.Start(ctx); err != nil {
		_ = p.Close()
		return fmt.Errorf("starting platform: %w", err)
	}

	return serve(ctx, server.New(cfg, p.Handler()), p)
}

// serve runs srv until ctx is canceled, then drains in-flight requests and
// stops the platform within the configured shutdown timeout.
func serve(ctx context.Context, srv *http.Server, p *platform.Platform) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("slidetrack listening",
			"address", srv.Addr,
			"environment", p.Config().Server.Environment,
			"version", server.Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		_ = p.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), p.Config().Server.ShutdownTimeout)
	defer cancel()

	// Readiness reports draining while in-flight requests finish.
	p.Health().SetDraining()
	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down http server: %w", err))
	}
	if err := p.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stopping platform: %w", err))
	}
	return errors.Join(errs...)
}
