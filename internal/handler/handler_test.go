package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"storefront-sitemap/internal/cache"
	"storefront-sitemap/internal/catalog"
	"storefront-sitemap/internal/sitemap"
)

const testBase = "https://shop.example.com"

var testNow = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

func testSite() sitemap.Site {
	s := sitemap.Site{
		BaseURL:       testBase,
		DefaultLocale: "en",
		Locales:       []string{"en", "sv"},
		StaticName:    "pages",
		StaticPages: map[string][]sitemap.StaticPage{
			"en": {{Path: "/", ChangeFrequency: sitemap.ChangeDaily, Priority: 1}},
			"sv": {{Path: "/", ChangeFrequency: sitemap.ChangeDaily, Priority: 1}},
		},
		IndexCache:  sitemap.DefaultIndexCache,
		PageCache:   sitemap.DefaultPageCache,
		StaticCache: sitemap.DefaultStaticCache,
	}
	s.Collections = []sitemap.Collection{
		{ID: "products", PageSize: 100, ChangeFrequency: sitemap.ChangeDaily, Priority: 0.8, URL: s.PathTemplate("/product/{slug}")},
		{ID: "posts", PageSize: 50, ChangeFrequency: sitemap.ChangeWeekly, Priority: 0.6, URL: s.PathTemplate("/blog/{slug}"), Locales: []string{"en"}},
	}
	return s
}

func testItems(n int) []catalog.Item {
	items := make([]catalog.Item, n)
	for i := range items {
		items[i] = catalog.Item{Slug: fmt.Sprintf("item-%d", i+1)}
	}
	return items
}

func testHandler(t *testing.T, mock *catalog.Mock, c *cache.Cache) (*Handler, *http.ServeMux) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b, err := sitemap.New(testSite(), mock, sitemap.WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("sitemap.New() error: %v", err)
	}
	h := New(b, c, logger)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h, mux
}

func defaultMock() *catalog.Mock {
	return &catalog.Mock{Items: map[string][]catalog.Item{
		"products": testItems(250),
		"posts":    testItems(3),
	}}
}

func get(mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	_, mux := testHandler(t, defaultMock(), nil)

	for _, path := range []string{"/health", "/healthz"} {
		w := get(mux, path)
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d, want %d", path, w.Code, http.StatusOK)
		}

		var resp healthResponse
		json.NewDecoder(w.Body).Decode(&resp)
		if resp.Status != "ok" {
			t.Errorf("%s status = %s, want ok", path, resp.Status)
		}
	}
}

func TestHandleDefaultIndex(t *testing.T) {
	_, mux := testHandler(t, defaultMock(), nil)

	w := get(mux, "/sitemap.xml")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/xml; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != sitemap.DefaultIndexCache.Header() {
		t.Errorf("Cache-Control = %q, want %q", cc, sitemap.DefaultIndexCache.Header())
	}

	doc, err := sitemap.ParseIndex(w.Body.Bytes())
	if err != nil {
		t.Fatalf("ParseIndex() error: %v", err)
	}
	want := []string{
		testBase + "/sitemap-pages.xml",
		testBase + "/sitemap-products-1.xml",
		testBase + "/sitemap-products-2.xml",
		testBase + "/sitemap-products-3.xml",
		testBase + "/sitemap-posts-1.xml",
		testBase + "/sv/sitemap.xml",
	}
	if len(doc.Entries) != len(want) {
		t.Fatalf("entries = %d, want %d", len(doc.Entries), len(want))
	}
	for i, e := range doc.Entries {
		if e.Location != want[i] {
			t.Errorf("entry %d = %s, want %s", i, e.Location, want[i])
		}
	}
}

func TestHandleLocaleDocuments(t *testing.T) {
	_, mux := testHandler(t, defaultMock(), nil)

	w := get(mux, "/sv/sitemap-products-3.xml")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	doc, err := sitemap.ParseDocument(w.Body.Bytes())
	if err != nil {
		t.Fatalf("ParseDocument() error: %v", err)
	}
	if len(doc.Entries) != 50 {
		t.Errorf("entries = %d, want 50", len(doc.Entries))
	}
	for _, e := range doc.Entries {
		if !strings.HasPrefix(e.Location, testBase+"/sv/product/") {
			t.Errorf("location %s lacks the sv prefix", e.Location)
		}
	}

	w = get(mux, "/sv/sitemap.xml")
	if w.Code != http.StatusOK {
		t.Fatalf("sv index status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), testBase+"/sitemap.xml") {
		t.Error("sv index must not link back to the default index")
	}

	w = get(mux, "/sitemap-pages.xml")
	if w.Code != http.StatusOK {
		t.Errorf("static status = %d", w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc != sitemap.DefaultStaticCache.Header() {
		t.Errorf("static Cache-Control = %q", cc)
	}
}

func TestErrorStatuses(t *testing.T) {
	failing := &catalog.Mock{
		CountFunc: func(ctx context.Context, collectionID string, filter catalog.Filter) (int, error) {
			return 0, errors.New("connection refused")
		},
		PageFunc: func(ctx context.Context, collectionID string, pageNumber, pageSize int, filter catalog.Filter) ([]catalog.Item, error) {
			return nil, errors.New("connection refused")
		},
	}

	tests := []struct {
		name   string
		mock   *catalog.Mock
		path   string
		status int
	}{
		{"page beyond end", defaultMock(), "/sitemap-products-4.xml", http.StatusNotFound},
		{"page zero", defaultMock(), "/sitemap-products-0.xml", http.StatusBadRequest},
		{"unknown collection", defaultMock(), "/sitemap-coupons-1.xml", http.StatusNotFound},
		{"unknown static name", defaultMock(), "/sitemap-legal.xml", http.StatusNotFound},
		{"not a sitemap file", defaultMock(), "/favicon.ico", http.StatusNotFound},
		{"leading zero page", defaultMock(), "/sitemap-products-01.xml", http.StatusNotFound},
		{"unknown locale", defaultMock(), "/fr/sitemap.xml", http.StatusNotFound},
		{"default locale prefixed", defaultMock(), "/en/sitemap.xml", http.StatusNotFound},
		{"collection not served in locale", defaultMock(), "/sv/sitemap-posts-1.xml", http.StatusNotFound},
		{"upstream index failure", failing, "/sitemap.xml", http.StatusServiceUnavailable},
		{"upstream page failure", failing, "/sv/sitemap-products-1.xml", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mux := testHandler(t, tt.mock, nil)

			w := get(mux, tt.path)
			if w.Code != tt.status {
				t.Fatalf("Status = %d, want %d", w.Code, tt.status)
			}
			if w.Body.Len() != 0 {
				t.Errorf("error body = %q, want empty", w.Body.String())
			}
			if tt.status == http.StatusServiceUnavailable && w.Header().Get("Retry-After") == "" {
				t.Error("503 should carry Retry-After")
			}
		})
	}
}

func TestEmptyCatalog(t *testing.T) {
	_, mux := testHandler(t, &catalog.Mock{}, nil)

	w := get(mux, "/sitemap-products-1.xml")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	doc, err := sitemap.ParseDocument(w.Body.Bytes())
	if err != nil {
		t.Fatalf("ParseDocument() error: %v", err)
	}
	if len(doc.Entries) != 0 {
		t.Errorf("entries = %d, want 0", len(doc.Entries))
	}

	if w := get(mux, "/sitemap-products-2.xml"); w.Code != http.StatusNotFound {
		t.Errorf("page 2 status = %d, want 404", w.Code)
	}
}

func TestCachedResponses(t *testing.T) {
	var pageCalls int32
	mock := defaultMock()
	mock.PageFunc = func(ctx context.Context, collectionID string, pageNumber, pageSize int, filter catalog.Filter) ([]catalog.Item, error) {
		atomic.AddInt32(&pageCalls, 1)
		return testItems(5), nil
	}
	_, mux := testHandler(t, mock, cache.New())

	first := get(mux, "/sitemap-products-1.xml")
	second := get(mux, "/sitemap-products-1.xml")

	if pageCalls != 1 {
		t.Errorf("provider calls = %d, want 1", pageCalls)
	}
	if first.Body.String() != second.Body.String() {
		t.Error("cached body differs from the first response")
	}

	st, err := cache.ParseStatus(first.Header().Get("Cache-Status"))
	if err != nil {
		t.Fatalf("first Cache-Status: %v", err)
	}
	if st.Outcome != cache.Miss || !st.Stored {
		t.Errorf("first status = %+v, want stored miss", st)
	}
	st, err = cache.ParseStatus(second.Header().Get("Cache-Status"))
	if err != nil {
		t.Fatalf("second Cache-Status: %v", err)
	}
	if st.Outcome != cache.Hit {
		t.Errorf("second outcome = %v, want Hit", st.Outcome)
	}

	// Locales are cached independently.
	get(mux, "/sv/sitemap-products-1.xml")
	if pageCalls != 2 {
		t.Errorf("provider calls = %d, want 2", pageCalls)
	}
}

func TestCachedErrorsAreRebuilt(t *testing.T) {
	var calls int32
	mock := &catalog.Mock{
		PageFunc: func(ctx context.Context, collectionID string, pageNumber, pageSize int, filter catalog.Filter) ([]catalog.Item, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return nil, errors.New("timeout")
			}
			return testItems(1), nil
		},
	}
	_, mux := testHandler(t, mock, cache.New())

	if w := get(mux, "/sitemap-products-1.xml"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("first status = %d, want 503", w.Code)
	}
	if w := get(mux, "/sitemap-products-1.xml"); w.Code != http.StatusOK {
		t.Fatalf("second status = %d, want 200", w.Code)
	}
}

func TestHandleRobots(t *testing.T) {
	_, mux := testHandler(t, defaultMock(), nil)

	w := get(mux, "/robots.txt")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	for _, want := range []string{
		"Sitemap: " + testBase + "/sitemap.xml\n",
		"Sitemap: " + testBase + "/sv/sitemap.xml\n",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("robots.txt missing %q:\n%s", want, body)
		}
	}
}

func TestHeadRequest(t *testing.T) {
	_, mux := testHandler(t, defaultMock(), nil)

	req := httptest.NewRequest("HEAD", "/sitemap.xml", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("Content-Length") == "" {
		t.Error("HEAD response should carry Content-Length")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, mux := testHandler(t, defaultMock(), nil)

	req := httptest.NewRequest("POST", "/sitemap.xml", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}
