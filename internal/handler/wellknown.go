package handler

import (
	"fmt"
	"net/http"
	"strings"

	"storefront-sitemap/internal/sitemap"
)

// handleRobots advertises every locale index to crawlers.
// GET /robots.txt
func (h *Handler) handleRobots(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	b.WriteString("User-agent: *\nAllow: /\n\n")
	for _, locale := range h.site.Locales {
		fmt.Fprintf(&b, "Sitemap: %s\n", h.site.DocumentURL(locale, sitemap.IndexName))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", h.site.StaticCache.Header())
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(b.String()))
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Locales: h.site.Locales})
}

type healthResponse struct {
	Status  string   `json:"status"`
	Locales []string `json:"locales,omitempty"`
}
