package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/rankscope/api"
	"github.com/use-agent/rankscope/api/middleware"
	"github.com/use-agent/rankscope/config"
	"github.com/use-agent/rankscope/engine"
	"github.com/use-agent/rankscope/eventlog"
	"github.com/use-agent/rankscope/pipeline"
	"github.com/use-agent/rankscope/scraper"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("rankscope starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"browser", cfg.Browser.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Observability sink ───────────────────────────────────────
	events := eventlog.NewRing(cfg.Pipeline.EventLogCapacity, eventlog.WithSlogMirror())

	// ── 4. Headless browser (optional) ──────────────────────────────
	var fetchOpts []scraper.FetcherOption
	if cfg.Browser.RelayPrivateTargets {
		fetchOpts = append(fetchOpts, scraper.WithPrivateTargets())
	}
	deps := api.Deps{
		Fetcher: scraper.NewFetcher(cfg.Browser.DefaultProxy, fetchOpts...),
		Events:  events,
		Limiter: middleware.NewLimiter(cfg.RateLimit),
	}
	var renderer engine.Renderer
	if cfg.Browser.Enabled {
		sc, err := scraper.NewScraper(cfg.Browser)
		if err != nil {
			// The service stays useful without a browser; /render-title
			// answers 501 instead.
			slog.Warn("headless rendering unavailable", "error", err)
		} else {
			defer sc.Close()
			deps.Renderer = sc
			deps.Stats = sc
			// Closure keeps engine/ free of a scraper/ import.
			renderer = engine.NewRodRenderer(sc.RenderTitle)
		}
	}
	if cfg.Pipeline.RenderOrigin != "" {
		renderer = engine.NewRemoteRenderer(cfg.Pipeline.RenderOrigin, nil)
	}

	// ── 5. Title pipeline ───────────────────────────────────────────
	primary := []engine.Engine{engine.NewHTTPEngine()}
	if cfg.Pipeline.ProxyOrigin != "" {
		primary = append(primary, engine.NewProxyEngine(cfg.Pipeline.ProxyOrigin, nil))
	}
	opts := []pipeline.Option{
		pipeline.WithPrimary(primary...),
		pipeline.WithReader(engine.NewReaderEngine(cfg.Reader.BaseURL, cfg.Reader.MaxAttempts, engine.WithReaderSink(events))),
		pipeline.WithCategory(engine.NewCategoryClient(cfg.Pipeline.CategoryAPI, nil)),
		pipeline.WithSink(events),
		pipeline.WithTimeouts(pipeline.TimeoutsFrom(cfg.Pipeline)),
	}
	if renderer != nil {
		opts = append(opts, pipeline.WithRenderer(renderer))
	}
	deps.Pipeline = pipeline.New(opts...)

	go deps.Limiter.Run(ctx)

	// ── 6. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(cfg, deps, time.Now())

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		slog.Error("HTTP server error", "error", err)
	}

	// Give in-flight requests 5 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// sc.Close() runs via defer and kills Chrome.
	slog.Info("rankscope stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
