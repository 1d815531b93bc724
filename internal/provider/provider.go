// Package provider opens the catalog provider a configuration selects.
// Shared by the server and the CLI.
package provider

import (
	"context"
	"fmt"
	"log/slog"

	"storefront-sitemap/internal/catalog"
	"storefront-sitemap/internal/config"
	"storefront-sitemap/internal/snapshot"
	"storefront-sitemap/internal/woocommerce"
)

// Open returns the provider named by cfg.CatalogSource and a function that
// releases its resources.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (catalog.Provider, func() error, error) {
	switch cfg.CatalogSource {
	case config.SourceWooCommerce:
		client, err := WooCommerce(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, func() error { return nil }, nil

	case config.SourceSnapshot:
		store, err := snapshot.Open(ctx, cfg.SnapshotPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("catalog snapshot opened", slog.String("path", cfg.SnapshotPath))
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported catalog source: %s", cfg.CatalogSource)
	}
}

// WooCommerce creates a store client. Without a pinned namespace the client
// discovers the store's REST namespace first.
func WooCommerce(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*woocommerce.Client, error) {
	client, err := woocommerce.New(woocommerce.Config{
		StoreURL:    cfg.Store.URL,
		APIKey:      cfg.Store.APIKey,
		APISecret:   cfg.Store.APISecret,
		Namespace:   cfg.Store.Namespace,
		Timeout:     cfg.UpstreamTimeout,
		Fingerprint: cfg.Store.Fingerprint,
	})
	if err != nil {
		return nil, fmt.Errorf("creating WooCommerce client: %w", err)
	}

	if cfg.Store.Namespace == "" {
		ns, err := client.DiscoverAPIVersion(ctx)
		if err != nil {
			return nil, fmt.Errorf("discovering WooCommerce API version: %w", err)
		}
		logger.Info("WooCommerce namespace discovered", slog.String("namespace", ns))
	}
	return client, nil
}
