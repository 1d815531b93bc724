// sitemapd serves multi-locale sitemaps for a WooCommerce storefront.
// Designed for Cloud Run deployment; every document is built on demand.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-sitemap/internal/cache"
	"storefront-sitemap/internal/config"
	"storefront-sitemap/internal/handler"
	"storefront-sitemap/internal/middleware"
	"storefront-sitemap/internal/provider"
	"storefront-sitemap/internal/sitemap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Initialize structured logger
	logger := initLogger()

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("catalog_source", cfg.CatalogSource),
		slog.String("environment", cfg.Environment),
		slog.String("base_url", cfg.Site.BaseURL),
		slog.Any("locales", cfg.Site.Locales),
	)

	site, err := cfg.BuildSite()
	if err != nil {
		return err
	}

	catalogProvider, closeProvider, err := provider.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer closeProvider()

	builder, err := sitemap.New(site, catalogProvider, sitemap.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating builder: %w", err)
	}

	responseCache := cache.New(
		cache.WithLogger(logger),
		cache.WithRefreshTimeout(cfg.UpstreamTimeout),
	)
	h := handler.New(builder, responseCache, logger)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → request ID → logging → timeout → handler
	// Recovery must be outermost to catch panics from logging middleware.
	// The MCP stream is long-lived and exempt from the request deadline.
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		middleware.Timeout(cfg.UpstreamTimeout+5*time.Second, "/mcp"),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	// Let background cache refreshes finish before the catalog closes
	responseCache.Wait()
	logger.Info("server stopped")
	return nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
