package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Steff1414/Slojd-Admin-sub000/internal/config"
	"github.com/Steff1414/Slojd-Admin-sub000/internal/integrity"
	"github.com/Steff1414/Slojd-Admin-sub000/internal/logging"
	"github.com/Steff1414/Slojd-Admin-sub000/internal/metrics"
	"github.com/Steff1414/Slojd-Admin-sub000/internal/store"
	"github.com/Steff1414/Slojd-Admin-sub000/internal/web"
)

func main() {
	// A missing .env is normal in production.
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"max_concurrent_runs", cfg.Import.MaxConcurrentRuns,
		"api_key_required", cfg.Security.RequireAPIKey,
		"metrics_enabled", cfg.Metrics.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.OpenPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	engine := integrity.NewEngine(
		store.NewPostgres(pool),
		integrity.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
	)

	server := web.NewServer(engine, cfg,
		web.WithMetricsHandler(promhttp.Handler()),
		web.WithPing(pool.Ping),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if st := server.Limiter().Status(); st.Active > 0 {
			slog.Info("waiting for validation runs to complete", "active", st.Active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}
}
