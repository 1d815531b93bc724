// Package handler provides the HTTP surface of the sitemap service: sitemap
// documents per locale, robots.txt, health checks and the MCP endpoint.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"storefront-sitemap/internal/cache"
	"storefront-sitemap/internal/model"
	"storefront-sitemap/internal/sitemap"
)

// retryAfterSeconds is advertised on 503 responses.
const retryAfterSeconds = 60

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	builder *sitemap.Builder
	site    *sitemap.Site
	cache   *cache.Cache
	logger  *slog.Logger
}

// New creates a Handler serving documents from builder. The cache may be nil
// to build every request.
func New(builder *sitemap.Builder, c *cache.Cache, logger *slog.Logger) *Handler {
	return &Handler{
		builder: builder,
		site:    builder.Site(),
		cache:   c,
		logger:  logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
//
// The default locale is served at the root; every other locale under its
// own path prefix.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /sitemap.xml", h.handleDefaultIndex)
	mux.HandleFunc("GET /{file}", h.handleDefaultDocument)
	mux.HandleFunc("GET /{locale}/sitemap.xml", h.handleLocaleIndex)
	mux.HandleFunc("GET /{locale}/{file}", h.handleLocaleDocument)

	mux.HandleFunc("GET /robots.txt", h.handleRobots)

	// MCP transport - registered per method so it does not overlap GET /{file}.
	mcpHandler := h.NewMCPHandler()
	mux.Handle("POST /mcp", mcpHandler)
	mux.Handle("GET /mcp", mcpHandler)
	mux.Handle("DELETE /mcp", mcpHandler)

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends a status-only error response. Sitemap consumers are
// crawlers, so no body is written; the cause is logged instead.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := model.StatusCode(err)

	attrs := []any{
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	}
	switch {
	case status >= 500:
		h.logger.Error("sitemap request failed", attrs...)
	default:
		h.logger.Debug("sitemap request rejected", attrs...)
	}

	w.Header().Set("Cache-Control", "no-store")
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	w.WriteHeader(status)
}
