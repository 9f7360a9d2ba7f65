// Command baas serves the BaaS API: JSON row operations over SQLite or
// MySQL behind an API key with per-client attempt limiting.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	"github.com/hazyhaar/baas/baas"
	"github.com/hazyhaar/baas/config"
	"github.com/hazyhaar/baas/engine"
	"github.com/hazyhaar/baas/fault"
	"github.com/hazyhaar/baas/gate"
	"github.com/hazyhaar/baas/ledger"
	"github.com/hazyhaar/baas/shield"
)

func main() {
	configPath := env("BAAS_CONFIG", "")

	var lvl slog.Level
	switch env("LOG_LEVEL", "info") {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(configPath)
	if err != nil {
		slog.Error("configuration invalid, serving fallback", "error", err)
		cfg = waitForConfig(ctx, configPath, listenAddr(cfg), err)
		if cfg == nil {
			return
		}
		slog.Info("configuration fixed, starting")
	}

	if err := run(ctx, cfg); err != nil {
		slog.Error("baas", "error", err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, the YAML file and the environment, then
// validates. The config is returned even when invalid.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, &fault.Error{Kind: fault.Configuration, Message: "Configuration file is unreadable",
			Fix: "Check BAAS_CONFIG", Exception: err.Error(), Cause: err}
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return cfg, &fault.Error{Kind: fault.Configuration, Message: "Invalid environment variable",
			Exception: err.Error(), Cause: err}
	}
	return cfg, cfg.Validate()
}

func listenAddr(cfg *config.Config) string {
	if cfg != nil && cfg.Listen != "" {
		return cfg.Listen
	}
	return env("BAAS_LISTEN", ":8080")
}

// waitForConfig answers every request with the configuration error until
// the configuration validates, then returns it. Returns nil when ctx ends
// first.
func waitForConfig(ctx context.Context, path, addr string, cause error) *config.Config {
	fb := shield.NewFallback(false)
	fb.Set(cause)

	ready := make(chan *config.Config, 1)
	fb.StartReloader(ctx.Done(), 5*time.Second, func() error {
		cfg, err := loadConfig(path)
		if err == nil {
			select {
			case ready <- cfg:
			default:
			}
		}
		return err
	})

	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		shield.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"Status": "Failed", "Error": "Server is starting"})
	})
	stack := shield.Stack(false, false, 0, fb)
	for i := len(stack) - 1; i >= 0; i-- {
		h = stack[i](h)
	}

	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("fallback server", "error", err)
		}
	}()

	var cfg *config.Config
	select {
	case <-ctx.Done():
	case cfg = <-ready:
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	srv.Shutdown(shutdownCtx)
	return cfg
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := engine.Open(cfg.EngineSettings())
	if err != nil {
		return err
	}
	defer db.Close()
	eng := engine.New(db, cfg.Dialect(), cfg.QueryTimeout)

	var stats sqlStats
	if cfg.EngineSettings().Trace {
		defer stats.install()()
		defer stats.log()
	}

	store, closeStore, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sweeper := &ledger.Sweeper{Store: store, Window: cfg.AttemptWindow, Interval: cfg.Ledger.SweepInterval}
	sweeper.Start(ctx)

	g := gate.New(gate.Config{
		Key:         cfg.APIKey,
		KeyHash:     cfg.APIKeyBcrypt,
		MaxAttempts: cfg.MaxAttempts,
		Window:      cfg.AttemptWindow,
		Debug:       cfg.Debug,
	}, store)

	api := baas.New(baas.Options{
		Engine:       eng,
		Gate:         g,
		Debug:        cfg.Debug,
		TrustProxy:   cfg.TrustProxy,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	if cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConns)
	}

	srv := &http.Server{
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.QueryTimeout*2 + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", ln.Addr().String(),
			"engine", cfg.Dialect().String(), "ledger", cfg.Ledger.Backend, "debug", cfg.Debug)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
