//go:build integration
// +build integration

// Integration tests for the WooCommerce client.
// Run with: go test -tags=integration ./internal/woocommerce/... -v
//
// Required environment variables:
//
//	WOOCOMMERCE_STORE_URL  - WooCommerce store URL (e.g., https://shop.example.com)
//	WOOCOMMERCE_API_KEY    - REST API consumer key (read access)
//	WOOCOMMERCE_API_SECRET - REST API consumer secret
//
// Optional:
//
//	WOOCOMMERCE_FINGERPRINT - "true" to use the Chrome TLS transport
package woocommerce

import (
	"context"
	"os"
	"testing"
	"time"

	"storefront-sitemap/internal/catalog"
)

// loadTestClient creates a client from the environment or skips the test.
func loadTestClient(t *testing.T) *Client {
	t.Helper()

	storeURL := os.Getenv("WOOCOMMERCE_STORE_URL")
	apiKey := os.Getenv("WOOCOMMERCE_API_KEY")
	apiSecret := os.Getenv("WOOCOMMERCE_API_SECRET")
	if storeURL == "" || apiKey == "" || apiSecret == "" {
		t.Skip("Skipping integration test: WOOCOMMERCE_* env vars not set")
	}

	client, err := New(Config{
		StoreURL:    storeURL,
		APIKey:      apiKey,
		APISecret:   apiSecret,
		Fingerprint: os.Getenv("WOOCOMMERCE_FINGERPRINT") == "true",
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func TestIntegration_DiscoverAPIVersion(t *testing.T) {
	client := loadTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ns, err := client.DiscoverAPIVersion(ctx)
	if err != nil {
		t.Fatalf("DiscoverAPIVersion failed: %v", err)
	}
	t.Logf("Using namespace %s", ns)
}

func TestIntegration_CountAndPage(t *testing.T) {
	client := loadTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for _, coll := range []string{
		catalog.CollectionProducts,
		catalog.CollectionProductCategories,
		catalog.CollectionPosts,
		catalog.CollectionPages,
	} {
		t.Run(coll, func(t *testing.T) {
			total, err := client.Count(ctx, coll, catalog.Published())
			if err != nil {
				t.Fatalf("Count failed: %v", err)
			}
			t.Logf("%s: %d published items", coll, total)

			items, err := client.Page(ctx, coll, 1, 20, catalog.Published())
			if err != nil {
				t.Fatalf("Page failed: %v", err)
			}
			if want := min(total, 20); len(items) > want {
				t.Errorf("page 1 has %d items, count says at most %d", len(items), want)
			}
			for _, item := range items {
				if item.Slug == "" {
					t.Error("item without slug")
				}
			}
		})
	}
}

func TestIntegration_PageBeyondEnd(t *testing.T) {
	client := loadTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	total, err := client.Count(ctx, catalog.CollectionPosts, catalog.Published())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}

	items, err := client.Page(ctx, catalog.CollectionPosts, total/10+2, 10, catalog.Published())
	if err != nil {
		t.Fatalf("Page beyond end should be empty, got error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Page beyond end returned %d items", len(items))
	}
}
