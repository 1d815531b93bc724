package woocommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/mod/semver"

	"storefront-sitemap/internal/model"
)

// supportedMajors lists WooCommerce REST API majors whose product listing
// carries date_modified_gmt and honors orderby=id.
var supportedMajors = []string{"v2", "v3"}

// DiscoverAPIVersion reads the store's REST index and switches the client to
// the highest supported WooCommerce namespace. It must be called before the
// client is shared between goroutines.
func (c *Client) DiscoverAPIVersion(ctx context.Context) (string, error) {
	_, body, err := c.get(ctx, "", nil)
	if err != nil {
		return "", err
	}

	var idx wpIndex
	if err := json.Unmarshal(body, &idx); err != nil {
		return "", model.NewUpstreamError("WooCommerce", fmt.Errorf("decoding REST index: %w", err))
	}

	ns, err := selectNamespace(idx.Namespaces)
	if err != nil {
		return "", model.NewUpstreamError("WooCommerce", err)
	}
	c.namespace = ns
	return ns, nil
}

// selectNamespace picks the highest "wc/vN" namespace with a supported major.
// Other WooCommerce namespaces (wc/store/v1, wc-analytics, ...) are ignored.
func selectNamespace(namespaces []string) (string, error) {
	best := ""
	for _, ns := range namespaces {
		v, ok := strings.CutPrefix(ns, "wc/")
		if !ok || !semver.IsValid(v) {
			continue
		}
		if !slices.Contains(supportedMajors, semver.Major(v)) {
			continue
		}
		if best == "" || semver.Compare(v, best) > 0 {
			best = v
		}
	}
	if best == "" {
		return "", fmt.Errorf("no supported WooCommerce REST namespace among %v", namespaces)
	}
	return "wc/" + best, nil
}
