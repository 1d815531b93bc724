// Package config handles loading and validation of service configuration.
// Supports both development (env vars, config files) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"storefront-sitemap/internal/sitemap"
)

// Catalog sources.
const (
	SourceWooCommerce = "woocommerce"
	SourceSnapshot    = "snapshot"
)

// Config holds all service configuration.
// Environment determines whether store credentials load from env vars (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	SecretID   string

	// CatalogSource selects the provider: "woocommerce" or "snapshot".
	CatalogSource   string
	SnapshotPath    string
	UpstreamTimeout time.Duration

	Store StoreConfig
	Site  SiteConfig
}

// StoreConfig contains the WooCommerce connection settings.
// In production, this is loaded from Secret Manager as JSON.
type StoreConfig struct {
	URL       string `json:"url" yaml:"url"`
	APIKey    string `json:"api_key" yaml:"api_key"`
	APISecret string `json:"api_secret" yaml:"api_secret"`
	// Namespace pins the WooCommerce REST namespace (e.g. "wc/v3").
	// Empty means discover it from the store.
	Namespace   string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Fingerprint bool   `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
}

// SiteConfig is the serializable form of sitemap.Site.
type SiteConfig struct {
	BaseURL       string                        `json:"base_url" yaml:"base_url"`
	DefaultLocale string                        `json:"default_locale" yaml:"default_locale"`
	Locales       []string                      `json:"locales" yaml:"locales"`
	StaticName    string                        `json:"static_name,omitempty" yaml:"static_name,omitempty"`
	Collections   []CollectionConfig            `json:"collections,omitempty" yaml:"collections,omitempty"`
	StaticPages   map[string][]StaticPageConfig `json:"static_pages,omitempty" yaml:"static_pages,omitempty"`
	Cache         CacheConfig                   `json:"cache,omitempty" yaml:"cache,omitempty"`
}

// CollectionConfig describes one paginated collection.
// Path is a locale-relative pattern containing {slug}.
type CollectionConfig struct {
	ID              string   `json:"id" yaml:"id"`
	Source          string   `json:"source,omitempty" yaml:"source,omitempty"`
	PageSize        int      `json:"page_size" yaml:"page_size"`
	ChangeFrequency string   `json:"changefreq" yaml:"changefreq"`
	Priority        *float64 `json:"priority,omitempty" yaml:"priority,omitempty"`
	Path            string   `json:"path" yaml:"path"`
	Locales         []string `json:"locales,omitempty" yaml:"locales,omitempty"`
}

// StaticPageConfig describes one static URL. LastModified is RFC 3339 or a date.
type StaticPageConfig struct {
	Path            string   `json:"path" yaml:"path"`
	ChangeFrequency string   `json:"changefreq" yaml:"changefreq"`
	Priority        *float64 `json:"priority,omitempty" yaml:"priority,omitempty"`
	LastModified    string   `json:"lastmod,omitempty" yaml:"lastmod,omitempty"`
}

// CacheConfig overrides the default cache policies. Values are in seconds;
// zero keeps the default.
type CacheConfig struct {
	Index  PolicyConfig `json:"index,omitempty" yaml:"index,omitempty"`
	Page   PolicyConfig `json:"page,omitempty" yaml:"page,omitempty"`
	Static PolicyConfig `json:"static,omitempty" yaml:"static,omitempty"`
}

// PolicyConfig is one cache policy in seconds.
type PolicyConfig struct {
	MaxAge               int `json:"max_age,omitempty" yaml:"max_age,omitempty"`
	SharedMaxAge         int `json:"s_maxage,omitempty" yaml:"s_maxage,omitempty"`
	StaleWhileRevalidate int `json:"stale_while_revalidate,omitempty" yaml:"stale_while_revalidate,omitempty"`
}

// fileConfig matches the CONFIG_FILE structure.
type fileConfig struct {
	Port            string      `json:"port" yaml:"port"`
	Environment     string      `json:"environment" yaml:"environment"`
	LogLevel        string      `json:"log_level" yaml:"log_level"`
	CatalogSource   string      `json:"catalog_source" yaml:"catalog_source"`
	SnapshotPath    string      `json:"snapshot_path" yaml:"snapshot_path"`
	UpstreamTimeout string      `json:"upstream_timeout" yaml:"upstream_timeout"`
	Store           StoreConfig `json:"store" yaml:"store"`
	Site            SiteConfig  `json:"site" yaml:"site"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from that file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	timeout, err := parseTimeout(os.Getenv("UPSTREAM_TIMEOUT"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:            envOrDefault("PORT", "8080"),
		Environment:     envOrDefault("ENVIRONMENT", "development"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		GCPProject:      os.Getenv("GCP_PROJECT"),
		SecretID:        os.Getenv("SECRET_ID"),
		CatalogSource:   envOrDefault("CATALOG_SOURCE", SourceWooCommerce),
		SnapshotPath:    os.Getenv("SNAPSHOT_PATH"),
		UpstreamTimeout: timeout,
	}

	if err := cfg.loadSite(); err != nil {
		return nil, fmt.Errorf("loading site config: %w", err)
	}

	// Store credentials are only needed when reading the live catalog
	if cfg.CatalogSource == SourceWooCommerce {
		if cfg.Environment == "production" {
			if cfg.GCPProject == "" || cfg.SecretID == "" {
				return nil, fmt.Errorf("GCP_PROJECT and SECRET_ID required in production environment")
			}
			err = cfg.loadFromSecretManager(ctx)
		} else {
			cfg.loadStoreFromEnv()
		}
		if err != nil {
			return nil, fmt.Errorf("loading store config: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile reads all configuration from a YAML or JSON file.
// Used for local development and for the CLI.
func loadFromFile(path string) (*Config, error) {
	var fc fileConfig
	if err := decodeFile(path, &fc); err != nil {
		return nil, err
	}

	timeout, err := parseTimeout(fc.UpstreamTimeout)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:            withDefault(fc.Port, "8080"),
		Environment:     withDefault(fc.Environment, "development"),
		LogLevel:        withDefault(fc.LogLevel, "info"),
		CatalogSource:   withDefault(fc.CatalogSource, SourceWooCommerce),
		SnapshotPath:    fc.SnapshotPath,
		UpstreamTimeout: timeout,
		Store:           fc.Store,
		Site:            fc.Site,
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeFile unmarshals a .yaml/.yml file with yaml.v3 and anything else as JSON.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	default:
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// loadSite reads the site table from SITE_FILE, then lets BASE_URL,
// DEFAULT_LOCALE and LOCALES override it.
func (c *Config) loadSite() error {
	if path := os.Getenv("SITE_FILE"); path != "" {
		if err := decodeFile(path, &c.Site); err != nil {
			return err
		}
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.Site.BaseURL = v
	}
	if v := os.Getenv("DEFAULT_LOCALE"); v != "" {
		c.Site.DefaultLocale = v
	}
	if v := os.Getenv("LOCALES"); v != "" {
		c.Site.Locales = splitList(v)
	}
	return nil
}

// loadFromSecretManager fetches store credentials from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{secret_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.SecretID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Store); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	return nil
}

// loadStoreFromEnv reads store settings from individual environment variables.
func (c *Config) loadStoreFromEnv() {
	c.Store = StoreConfig{
		URL:         os.Getenv("STORE_URL"),
		APIKey:      os.Getenv("STORE_API_KEY"),
		APISecret:   os.Getenv("STORE_API_SECRET"),
		Namespace:   os.Getenv("STORE_NAMESPACE"),
		Fingerprint: os.Getenv("STORE_FINGERPRINT") == "true",
	}
}

// applyDefaults fills the site table with the storefront's standard layout.
func (c *Config) applyDefaults() {
	s := &c.Site
	s.BaseURL = strings.TrimSuffix(s.BaseURL, "/")
	if s.DefaultLocale == "" && len(s.Locales) > 0 {
		s.DefaultLocale = s.Locales[0]
	}
	if len(s.Locales) == 0 && s.DefaultLocale != "" {
		s.Locales = []string{s.DefaultLocale}
	}
	if s.StaticName == "" {
		s.StaticName = "pages"
	}
	if s.Collections == nil {
		s.Collections = defaultCollections(s.DefaultLocale)
	}
	if s.StaticPages == nil {
		s.StaticPages = make(map[string][]StaticPageConfig, len(s.Locales))
		for _, l := range s.Locales {
			s.StaticPages[l] = defaultStaticPages()
		}
	}
}

func defaultCollections(defaultLocale string) []CollectionConfig {
	posts := CollectionConfig{ID: "posts", PageSize: 100, ChangeFrequency: "weekly", Priority: ptr(0.6), Path: "/blog/{slug}"}
	if defaultLocale != "" {
		posts.Locales = []string{defaultLocale}
	}
	return []CollectionConfig{
		{ID: "products", PageSize: 100, ChangeFrequency: "daily", Priority: ptr(0.8), Path: "/product/{slug}"},
		{ID: "product-categories", PageSize: 200, ChangeFrequency: "weekly", Priority: ptr(0.6), Path: "/product-category/{slug}"},
		posts,
	}
}

func defaultStaticPages() []StaticPageConfig {
	return []StaticPageConfig{
		{Path: "/", ChangeFrequency: "daily", Priority: ptr(1.0)},
		{Path: "/shop", ChangeFrequency: "daily", Priority: ptr(0.9)},
	}
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	switch c.CatalogSource {
	case SourceWooCommerce:
		if c.Store.URL == "" {
			return fmt.Errorf("store url is required")
		}
		if c.Store.APIKey == "" {
			return fmt.Errorf("store api_key is required")
		}
		if c.Store.APISecret == "" {
			return fmt.Errorf("store api_secret is required")
		}
		if _, err := url.Parse(c.Store.URL); err != nil {
			return fmt.Errorf("invalid store url: %w", err)
		}
	case SourceSnapshot:
		if c.SnapshotPath == "" {
			return fmt.Errorf("snapshot_path is required for the snapshot catalog source")
		}
	default:
		return fmt.Errorf("unknown catalog source %q (woocommerce or snapshot)", c.CatalogSource)
	}

	if c.Site.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if len(c.Site.Locales) == 0 {
		return fmt.Errorf("at least one locale is required")
	}
	for _, l := range c.Site.Locales {
		if _, err := language.Parse(l); err != nil {
			return fmt.Errorf("invalid locale %q: %w", l, err)
		}
	}
	return nil
}

// BuildSite converts the site table into the value the sitemap builder is
// constructed with, and validates it.
func (c *Config) BuildSite() (sitemap.Site, error) {
	sc := c.Site
	site := sitemap.Site{
		BaseURL:       sc.BaseURL,
		DefaultLocale: sc.DefaultLocale,
		Locales:       sc.Locales,
		StaticName:    sc.StaticName,
		StaticPages:   make(map[string][]sitemap.StaticPage, len(sc.StaticPages)),
		IndexCache:    sc.Cache.Index.policy(sitemap.DefaultIndexCache),
		PageCache:     sc.Cache.Page.policy(sitemap.DefaultPageCache),
		StaticCache:   sc.Cache.Static.policy(sitemap.DefaultStaticCache),
	}

	for _, cc := range sc.Collections {
		if !strings.Contains(cc.Path, "{slug}") {
			return sitemap.Site{}, fmt.Errorf("collection %s: path %q has no {slug} placeholder", cc.ID, cc.Path)
		}
		site.Collections = append(site.Collections, sitemap.Collection{
			ID:              cc.ID,
			Source:          cc.Source,
			PageSize:        cc.PageSize,
			ChangeFrequency: sitemap.ChangeFrequency(cc.ChangeFrequency),
			Priority:        valueOr(cc.Priority, 0.5),
			URL:             site.PathTemplate(cc.Path),
			Locales:         cc.Locales,
		})
	}

	for locale, pages := range sc.StaticPages {
		for _, p := range pages {
			page := sitemap.StaticPage{
				Path:            p.Path,
				ChangeFrequency: sitemap.ChangeFrequency(p.ChangeFrequency),
				Priority:        valueOr(p.Priority, 0.5),
			}
			if p.LastModified != "" {
				t, err := parseDate(p.LastModified)
				if err != nil {
					return sitemap.Site{}, fmt.Errorf("static page %s: %w", p.Path, err)
				}
				page.LastModified = t
			}
			site.StaticPages[locale] = append(site.StaticPages[locale], page)
		}
	}

	if err := site.Validate(); err != nil {
		return sitemap.Site{}, fmt.Errorf("invalid site config: %w", err)
	}
	return site, nil
}

func (p PolicyConfig) policy(def sitemap.CachePolicy) sitemap.CachePolicy {
	if p.MaxAge > 0 {
		def.MaxAge = time.Duration(p.MaxAge) * time.Second
	}
	if p.SharedMaxAge > 0 {
		def.SharedMaxAge = time.Duration(p.SharedMaxAge) * time.Second
	}
	if p.StaleWhileRevalidate > 0 {
		def.StaleWhileRevalidate = time.Duration(p.StaleWhileRevalidate) * time.Second
	}
	return def
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid lastmod %q", s)
	}
	return t, nil
}

// parseTimeout accepts a Go duration ("30s") or a number of seconds.
func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 30 * time.Second, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid upstream timeout %q", s)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
