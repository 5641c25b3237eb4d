package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"salesdash/internal/config"
	"salesdash/internal/forecast"
	"salesdash/internal/ingest"
	"salesdash/internal/middleware"
	"salesdash/internal/observability"
	"salesdash/internal/server"
	"salesdash/internal/services"
	"salesdash/internal/ui/templates"
)

const (
	renderTimeout   = 10 * time.Second
	seedLoadTimeout = 30 * time.Second
)

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Cache-Control", "public, max-age=300")
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"config", cfg,
	)

	analytics := services.NewAnalytics(cfg.Analytics.Granularity, forecast.OLS{})

	// A seed spreadsheet is optional. A failed load is surfaced and the
	// dashboard starts empty, waiting for an upload.
	if cfg.Data.File != "" {
		ctx, cancel := context.WithTimeout(context.Background(), seedLoadTimeout)
		if err := analytics.LoadFromFile(ctx, cfg.Data.File); err != nil {
			logger.Error("failed to load seed spreadsheet", "path", cfg.Data.File, "error", err)
		}
		cancel()
	}

	templateHandlers := &server.TemplateHandlers{
		Dashboard: handleDashboard,
	}

	srv := server.NewServer(analytics, logger, cfg, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	handler := middlewareChain(srv)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	if cfg.Data.File != "" && cfg.Data.WatchEnabled {
		watcher, err := ingest.NewWatcher(cfg.Data.File, cfg.Data.WatchDebounce, logger, func(ctx context.Context) error {
			return analytics.LoadFromFile(ctx, cfg.Data.File)
		})
		if err != nil {
			logger.Error("failed to start file watcher", "path", cfg.Data.File, "error", err)
		} else {
			watcher.Start(context.Background())
			gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
				logger.Info("stopping file watcher")
				return watcher.Close()
			})
		}
	}

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
