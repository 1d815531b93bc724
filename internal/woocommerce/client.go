package woocommerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storefront-sitemap/internal/catalog"
	"storefront-sitemap/internal/model"
	"storefront-sitemap/internal/transport"
)

// =============================================================================
// PAGINATION STRATEGY
// =============================================================================
//
// Every listing endpoint (wc/v3/products, wc/v3/products/categories,
// wp/v2/posts, wp/v2/pages) supports page/per_page and reports the collection
// size in the X-WP-Total response header. Counting therefore costs one
// request with per_page=1 and never transfers the collection.
//
// WordPress caps per_page at 100. Sitemap pages up to that size map 1:1 onto
// upstream pages; larger sitemap pages are read in offset-based chunks of 100.
//
// Results are ordered by ascending ID. Slugs and modification dates change;
// IDs never do, so page boundaries stay stable between builds.
// =============================================================================

const (
	wpAPIPath   = "/wp-json"
	wpNamespace = "wp/v2"

	// DefaultNamespace is the WooCommerce REST namespace used when discovery
	// is skipped.
	DefaultNamespace = "wc/v3"

	maxPerPage       = 100
	maxResponseBytes = 32 << 20
	defaultTimeout   = 30 * time.Second
)

// userAgent identifies this client to upstream servers.
// Required: WooCommerce CDN/WAF rate-limits requests without User-Agent.
const userAgent = "storefront-sitemap/1.0"

// errPageOutOfRange marks WordPress's 400 for a page past the last one.
var errPageOutOfRange = errors.New("page out of range")

// Config holds WooCommerce connection settings.
type Config struct {
	StoreURL  string
	APIKey    string
	APISecret string
	// Namespace is the WooCommerce REST namespace. Default: wc/v3.
	Namespace string
	// Timeout bounds each upstream request. Default: 30s.
	Timeout time.Duration
	// Fingerprint enables the Chrome TLS fingerprint transport.
	Fingerprint bool
	// HTTPClient overrides the transport entirely. Used by tests.
	HTTPClient *http.Client
}

// Client reads catalog listings from a WooCommerce store. It implements
// catalog.Provider and is safe for concurrent use once constructed.
type Client struct {
	httpClient *http.Client
	storeURL   string
	apiKey     string
	apiSecret  string
	namespace  string
}

// New creates a WooCommerce client with the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.StoreURL == "" {
		return nil, fmt.Errorf("store URL is required")
	}
	u, err := url.Parse(cfg.StoreURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("store URL %q must be an absolute http(s) URL", cfg.StoreURL)
	}
	if (cfg.APIKey == "") != (cfg.APISecret == "") {
		return nil, fmt.Errorf("API key and secret must be set together")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: transport.New(transport.Options{Timeout: timeout, Fingerprint: cfg.Fingerprint}),
		}
	}

	return &Client{
		httpClient: httpClient,
		storeURL:   strings.TrimSuffix(cfg.StoreURL, "/"),
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		namespace:  namespace,
	}, nil
}

// Namespace returns the WooCommerce REST namespace in use.
func (c *Client) Namespace() string {
	return c.namespace
}

// resource maps a catalog collection onto a REST listing.
type resource struct {
	path string
	// statusFilter is false for taxonomies, which have no post status.
	statusFilter bool
	extra        url.Values
}

func (c *Client) resource(collectionID string) (resource, error) {
	switch collectionID {
	case catalog.CollectionProducts:
		return resource{path: c.namespace + "/products", statusFilter: true}, nil
	case catalog.CollectionProductCategories:
		return resource{path: c.namespace + "/products/categories", extra: url.Values{"hide_empty": {"true"}}}, nil
	case catalog.CollectionPosts:
		return resource{path: wpNamespace + "/posts", statusFilter: true}, nil
	case catalog.CollectionPages:
		return resource{path: wpNamespace + "/pages", statusFilter: true}, nil
	}
	return resource{}, fmt.Errorf("unsupported collection %q", collectionID)
}

func (r resource) query(filter catalog.Filter) url.Values {
	q := url.Values{}
	for k, v := range r.extra {
		q[k] = v
	}
	if r.statusFilter && filter.Status != "" {
		q.Set("status", filter.Status)
	}
	q.Set("orderby", "id")
	q.Set("order", "asc")
	return q
}

// Count implements catalog.Provider using the X-WP-Total header.
func (c *Client) Count(ctx context.Context, collectionID string, filter catalog.Filter) (int, error) {
	res, err := c.resource(collectionID)
	if err != nil {
		return 0, err
	}

	q := res.query(filter)
	q.Set("page", "1")
	q.Set("per_page", "1")

	header, _, err := c.get(ctx, res.path, q)
	if errors.Is(err, errPageOutOfRange) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	raw := header.Get("X-WP-Total")
	total, err := strconv.Atoi(raw)
	if err != nil || total < 0 {
		return 0, model.NewUpstreamError("WooCommerce",
			fmt.Errorf("%s: missing or invalid X-WP-Total %q", res.path, raw))
	}
	return total, nil
}

// Page implements catalog.Provider.
func (c *Client) Page(ctx context.Context, collectionID string, pageNumber, pageSize int, filter catalog.Filter) ([]catalog.Item, error) {
	if pageNumber < 1 || pageSize < 1 {
		return nil, model.NewInvalidArgumentError("page", fmt.Sprintf("invalid window %d/%d", pageNumber, pageSize))
	}
	res, err := c.resource(collectionID)
	if err != nil {
		return nil, err
	}

	if pageSize <= maxPerPage {
		q := res.query(filter)
		q.Set("page", strconv.Itoa(pageNumber))
		q.Set("per_page", strconv.Itoa(pageSize))
		return c.list(ctx, res.path, q)
	}

	if pageNumber-1 > (math.MaxInt-pageSize)/pageSize {
		return []catalog.Item{}, nil
	}
	start := (pageNumber - 1) * pageSize
	items := make([]catalog.Item, 0, pageSize)
	for len(items) < pageSize {
		want := min(maxPerPage, pageSize-len(items))
		q := res.query(filter)
		q.Set("offset", strconv.Itoa(start+len(items)))
		q.Set("per_page", strconv.Itoa(want))

		chunk, err := c.list(ctx, res.path, q)
		if err != nil {
			return nil, err
		}
		items = append(items, chunk...)
		if len(chunk) < want {
			break
		}
	}
	return items, nil
}

func (c *Client) list(ctx context.Context, path string, q url.Values) ([]catalog.Item, error) {
	_, body, err := c.get(ctx, path, q)
	if errors.Is(err, errPageOutOfRange) {
		return []catalog.Item{}, nil
	}
	if err != nil {
		return nil, err
	}

	var objects []wooObject
	if err := json.Unmarshal(body, &objects); err != nil {
		return nil, model.NewUpstreamError("WooCommerce", fmt.Errorf("decoding %s: %w", path, err))
	}

	items := make([]catalog.Item, 0, len(objects))
	for _, o := range objects {
		if o.Slug == "" {
			continue
		}
		items = append(items, catalog.Item{Slug: o.Slug, LastModified: o.lastModified()})
	}
	return items, nil
}

// get performs a GET against /wp-json/<path> and returns headers and body of
// a successful response.
func (c *Client) get(ctx context.Context, path string, q url.Values) (http.Header, []byte, error) {
	endpoint := c.storeURL + wpAPIPath + "/" + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, model.NewUpstreamError("WooCommerce", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, model.NewUpstreamError("WooCommerce", fmt.Errorf("reading %s: %w", path, err))
	}

	if resp.StatusCode >= 400 {
		return nil, nil, parseErrorResponse(resp.StatusCode, body)
	}
	return resp.Header, body, nil
}

// setHeaders sets headers for REST API requests. Consumer key and secret go
// over HTTP Basic auth, which WooCommerce accepts on HTTPS.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.SetBasicAuth(c.apiKey, c.apiSecret)
	}
}

// parseErrorResponse converts a WordPress REST error to an APIError.
func parseErrorResponse(statusCode int, body []byte) error {
	var wcErr WooErrorResponse
	json.Unmarshal(body, &wcErr) // Best effort parse

	switch {
	case statusCode == http.StatusBadRequest && wcErr.Code == "rest_post_invalid_page_number":
		return errPageOutOfRange
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return model.NewUnauthorizedError("WooCommerce authentication failed")
	case statusCode == http.StatusTooManyRequests:
		return model.NewRateLimitError("WooCommerce")
	default:
		return model.NewUpstreamError("WooCommerce",
			fmt.Errorf("status %d: %s - %s", statusCode, wcErr.Code, wcErr.Message))
	}
}

// Verify Client implements catalog.Provider at compile time.
var _ catalog.Provider = (*Client)(nil)
