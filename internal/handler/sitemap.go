package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"storefront-sitemap/internal/cache"
	"storefront-sitemap/internal/model"
	"storefront-sitemap/internal/sitemap"
)

// handleDefaultIndex serves the default locale's index.
// GET /sitemap.xml
func (h *Handler) handleDefaultIndex(w http.ResponseWriter, r *http.Request) {
	h.serveDocument(w, r, h.site.DefaultLocale, sitemap.IndexName)
}

// handleDefaultDocument serves a static or page document of the default locale.
// GET /{file}
func (h *Handler) handleDefaultDocument(w http.ResponseWriter, r *http.Request) {
	h.serveDocument(w, r, h.site.DefaultLocale, r.PathValue("file"))
}

// handleLocaleIndex serves a non-default locale's index.
// GET /{locale}/sitemap.xml
func (h *Handler) handleLocaleIndex(w http.ResponseWriter, r *http.Request) {
	locale, ok := h.prefixedLocale(r)
	if !ok {
		h.writeError(w, r, model.NewPageNotFoundError("locale"))
		return
	}
	h.serveDocument(w, r, locale, sitemap.IndexName)
}

// handleLocaleDocument serves a static or page document of a non-default locale.
// GET /{locale}/{file}
func (h *Handler) handleLocaleDocument(w http.ResponseWriter, r *http.Request) {
	locale, ok := h.prefixedLocale(r)
	if !ok {
		h.writeError(w, r, model.NewPageNotFoundError("locale"))
		return
	}
	h.serveDocument(w, r, locale, r.PathValue("file"))
}

// prefixedLocale returns the locale path segment if it names a supported,
// non-default locale. The default locale has no prefix, so /en/... is unknown
// when en is the default.
func (h *Handler) prefixedLocale(r *http.Request) (string, bool) {
	locale := r.PathValue("locale")
	if locale == h.site.DefaultLocale || !h.site.SupportsLocale(locale) {
		return "", false
	}
	return locale, true
}

func (h *Handler) serveDocument(w http.ResponseWriter, r *http.Request, locale, file string) {
	ref, ok := sitemap.ParseDocumentName(file)
	if !ok {
		h.writeError(w, r, model.NewPageNotFoundError(file))
		return
	}

	fill := func(ctx context.Context) (*cache.Response, error) {
		return h.render(ctx, locale, ref)
	}

	var (
		resp   *cache.Response
		status cache.Status
		err    error
	)
	if h.cache != nil {
		resp, status, err = h.cache.Get(r.Context(), locale+"/"+file, fill)
		// The shared build outran this request's deadline.
		if errors.Is(err, context.DeadlineExceeded) {
			err = model.NewUpstreamError("catalog", err)
		}
	} else {
		resp, err = fill(r.Context())
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", resp.ContentType)
	w.Header().Set("Cache-Control", resp.CacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
	if h.cache != nil {
		w.Header().Set("Cache-Status", status.Header())
	}
	w.WriteHeader(http.StatusOK)
	w.Write(resp.Body)
}

// render builds and serializes a document into a cacheable response.
func (h *Handler) render(ctx context.Context, locale string, ref sitemap.DocumentRef) (*cache.Response, error) {
	doc, err := h.builder.Build(ctx, locale, ref)
	if err != nil {
		return nil, err
	}
	body, err := sitemap.RenderXML(doc)
	if err != nil {
		return nil, err
	}

	policy := doc.Policy()
	return &cache.Response{
		Body:                 body,
		ContentType:          doc.ContentType() + "; charset=utf-8",
		CacheControl:         doc.CacheControl(),
		TTL:                  policy.MaxAge,
		StaleWhileRevalidate: policy.StaleWhileRevalidate,
	}, nil
}
