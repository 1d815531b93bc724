package provider

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"storefront-sitemap/internal/config"
	"storefront-sitemap/internal/snapshot"
	"storefront-sitemap/internal/woocommerce"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func storeServer(t *testing.T, namespaces string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/wp-json/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Shop","url":"https://shop.example.com","namespaces":` + namespaces + `}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func wooConfig(storeURL, namespace string) *config.Config {
	return &config.Config{
		CatalogSource:   config.SourceWooCommerce,
		UpstreamTimeout: 5 * time.Second,
		Store: config.StoreConfig{
			URL:       storeURL,
			APIKey:    "ck_test",
			APISecret: "cs_test",
			Namespace: namespace,
		},
	}
}

func TestOpen_WooCommerceDiscovers(t *testing.T) {
	srv, _ := storeServer(t, `["wp/v2","wc/store/v1","wc/v2","wc/v3"]`)

	p, closeFn, err := Open(context.Background(), wooConfig(srv.URL, ""), discard)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer closeFn()

	client, ok := p.(*woocommerce.Client)
	if !ok {
		t.Fatalf("provider is %T, want *woocommerce.Client", p)
	}
	if client.Namespace() != "wc/v3" {
		t.Errorf("Namespace() = %s, want wc/v3", client.Namespace())
	}
}

func TestOpen_WooCommercePinnedNamespace(t *testing.T) {
	srv, calls := storeServer(t, `[]`)

	p, _, err := Open(context.Background(), wooConfig(srv.URL, "wc/v2"), discard)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if ns := p.(*woocommerce.Client).Namespace(); ns != "wc/v2" {
		t.Errorf("Namespace() = %s, want wc/v2", ns)
	}
	if *calls != 0 {
		t.Errorf("store called %d times, want no discovery", *calls)
	}
}

func TestOpen_WooCommerceNoSupportedNamespace(t *testing.T) {
	srv, _ := storeServer(t, `["wp/v2","wc/store/v1"]`)

	if _, _, err := Open(context.Background(), wooConfig(srv.URL, ""), discard); err == nil {
		t.Error("expected discovery error")
	}
}

func TestOpen_Snapshot(t *testing.T) {
	cfg := &config.Config{
		CatalogSource: config.SourceSnapshot,
		SnapshotPath:  filepath.Join(t.TempDir(), "catalog.db"),
	}

	p, closeFn, err := Open(context.Background(), cfg, discard)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if _, ok := p.(*snapshot.Store); !ok {
		t.Errorf("provider is %T, want *snapshot.Store", p)
	}
	if err := closeFn(); err != nil {
		t.Errorf("close error: %v", err)
	}
}

func TestOpen_UnknownSource(t *testing.T) {
	if _, _, err := Open(context.Background(), &config.Config{CatalogSource: "magento"}, discard); err == nil {
		t.Error("expected error for unknown source")
	}
}
