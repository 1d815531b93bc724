package sitemap

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// URLTemplate maps an item slug and a locale to an absolute URL.
type URLTemplate func(slug, locale string) string

// Collection describes one paginated catalog collection and how its items
// become sitemap entries. Page size is per collection, not global.
type Collection struct {
	// ID names the collection in document names (sitemap-<ID>-<N>.xml).
	ID string
	// Source is the provider collection ID. Defaults to ID.
	Source          string
	PageSize        int
	ChangeFrequency ChangeFrequency
	Priority        float64
	URL             URLTemplate
	// Locales restricts the collection to a subset of locales. Empty means all.
	Locales []string
}

func (c *Collection) source() string {
	if c.Source != "" {
		return c.Source
	}
	return c.ID
}

func (c *Collection) servesLocale(locale string) bool {
	return len(c.Locales) == 0 || slices.Contains(c.Locales, locale)
}

// StaticPage is one hand-maintained, non-catalog URL.
// Path is locale-relative ("/about"); the locale prefix is added on build.
type StaticPage struct {
	Path            string
	ChangeFrequency ChangeFrequency
	Priority        float64
	LastModified    time.Time
}

// Site is the explicit configuration a Builder is constructed with.
type Site struct {
	// BaseURL is the site origin, e.g. "https://shop.example.com".
	BaseURL string
	// DefaultLocale is served without a path prefix.
	DefaultLocale string
	// Locales lists every supported locale, default included, in index order.
	Locales     []string
	Collections []Collection
	// StaticName names the static document (sitemap-<StaticName>.xml).
	StaticName string
	// StaticPages is keyed by locale.
	StaticPages map[string][]StaticPage

	IndexCache  CachePolicy
	PageCache   CachePolicy
	StaticCache CachePolicy
}

// LocalizedURL joins the base URL, the locale prefix (none for the default
// locale) and path.
func (s *Site) LocalizedURL(locale, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if locale == s.DefaultLocale {
		return s.BaseURL + path
	}
	return s.BaseURL + "/" + locale + path
}

// PathTemplate returns a URLTemplate that substitutes {slug} in pattern and
// applies the locale prefix, e.g. "/product/{slug}" becomes
// "https://shop.example.com/sv/product/mug" for locale "sv".
func (s *Site) PathTemplate(pattern string) URLTemplate {
	return func(slug, locale string) string {
		return s.LocalizedURL(locale, strings.ReplaceAll(pattern, "{slug}", slug))
	}
}

// DocumentURL returns the absolute URL a document is served at.
func (s *Site) DocumentURL(locale, name string) string {
	return s.LocalizedURL(locale, "/"+name)
}

// SupportsLocale reports whether locale is configured.
func (s *Site) SupportsLocale(locale string) bool {
	return slices.Contains(s.Locales, locale)
}

// Collection returns the collection with the given ID.
func (s *Site) Collection(id string) (*Collection, bool) {
	for i := range s.Collections {
		if s.Collections[i].ID == id {
			return &s.Collections[i], true
		}
	}
	return nil, false
}

// Validate checks the invariants the Builder relies on.
func (s *Site) Validate() error {
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("base URL %q must be an absolute http(s) URL", s.BaseURL)
	}
	if strings.HasSuffix(s.BaseURL, "/") {
		return fmt.Errorf("base URL %q must not end with a slash", s.BaseURL)
	}

	if len(s.Locales) == 0 {
		return fmt.Errorf("at least one locale is required")
	}
	seen := make(map[string]bool, len(s.Locales))
	for _, l := range s.Locales {
		if l == "" || strings.ContainsAny(l, "/?#") {
			return fmt.Errorf("locale %q is not a valid path segment", l)
		}
		if seen[l] {
			return fmt.Errorf("duplicate locale %q", l)
		}
		seen[l] = true
	}
	if !seen[s.DefaultLocale] {
		return fmt.Errorf("default locale %q is not in locales", s.DefaultLocale)
	}

	if !validDocumentName(s.StaticName) || trailingPage(s.StaticName) {
		return fmt.Errorf("static name %q is not a valid document name", s.StaticName)
	}
	for locale, pages := range s.StaticPages {
		if !seen[locale] {
			return fmt.Errorf("static pages configured for unsupported locale %q", locale)
		}
		for _, p := range pages {
			if err := validateHints(p.ChangeFrequency, p.Priority); err != nil {
				return fmt.Errorf("static page %s: %w", p.Path, err)
			}
		}
	}

	ids := make(map[string]bool, len(s.Collections))
	for _, c := range s.Collections {
		if !validDocumentName(c.ID) {
			return fmt.Errorf("collection ID %q is not a valid document name", c.ID)
		}
		if ids[c.ID] || c.ID == s.StaticName {
			return fmt.Errorf("duplicate document name %q", c.ID)
		}
		ids[c.ID] = true
		if c.PageSize < 1 {
			return fmt.Errorf("collection %s: page size must be positive", c.ID)
		}
		if c.URL == nil {
			return fmt.Errorf("collection %s: URL template is required", c.ID)
		}
		if err := validateHints(c.ChangeFrequency, c.Priority); err != nil {
			return fmt.Errorf("collection %s: %w", c.ID, err)
		}
		for _, l := range c.Locales {
			if !seen[l] {
				return fmt.Errorf("collection %s: unsupported locale %q", c.ID, l)
			}
		}
	}
	return nil
}

func validateHints(freq ChangeFrequency, priority float64) error {
	if !freq.Valid() {
		return fmt.Errorf("invalid change frequency %q", freq)
	}
	if !(priority >= 0 && priority <= 1) {
		return fmt.Errorf("priority %v out of range [0, 1]", priority)
	}
	return nil
}
