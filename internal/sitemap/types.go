// Package sitemap decomposes a catalog into bounded sitemap documents and the
// per-locale index documents that tie them together.
//
// Every document is derived: the Builder holds no state between calls and is
// safe for concurrent use. Caching is left to the HTTP layer.
package sitemap

import (
	"fmt"
	"strings"
	"time"

	"storefront-sitemap/internal/model"
)

// Namespace is the sitemaps.org protocol namespace for urlset and sitemapindex.
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// ContentType is the media type of every rendered document.
const ContentType = "application/xml"

// ChangeFrequency is the crawl frequency hint of the sitemap protocol.
type ChangeFrequency string

const (
	ChangeAlways  ChangeFrequency = "always"
	ChangeHourly  ChangeFrequency = "hourly"
	ChangeDaily   ChangeFrequency = "daily"
	ChangeWeekly  ChangeFrequency = "weekly"
	ChangeMonthly ChangeFrequency = "monthly"
	ChangeYearly  ChangeFrequency = "yearly"
	ChangeNever   ChangeFrequency = "never"
)

// Valid reports whether f is one of the protocol's enumerated values.
func (f ChangeFrequency) Valid() bool {
	switch f {
	case ChangeAlways, ChangeHourly, ChangeDaily, ChangeWeekly,
		ChangeMonthly, ChangeYearly, ChangeNever:
		return true
	}
	return false
}

// Entry describes one URL in a urlset document.
type Entry struct {
	Location        string
	LastModified    time.Time
	ChangeFrequency ChangeFrequency
	Priority        float64
}

// CachePolicy is the HTTP caching directive attached to a document.
type CachePolicy struct {
	MaxAge               time.Duration
	SharedMaxAge         time.Duration
	StaleWhileRevalidate time.Duration
}

// Header renders the policy as a Cache-Control value.
func (p CachePolicy) Header() string {
	var b strings.Builder
	fmt.Fprintf(&b, "public, max-age=%d", int(p.MaxAge.Seconds()))
	if p.SharedMaxAge > 0 {
		fmt.Fprintf(&b, ", s-maxage=%d", int(p.SharedMaxAge.Seconds()))
	}
	if p.StaleWhileRevalidate > 0 {
		fmt.Fprintf(&b, ", stale-while-revalidate=%d", int(p.StaleWhileRevalidate.Seconds()))
	}
	return b.String()
}

// Default cache policies: catalog-derived documents change often, static
// documents rarely, the index sits in between.
var (
	DefaultIndexCache  = CachePolicy{MaxAge: 6 * time.Hour, SharedMaxAge: 6 * time.Hour}
	DefaultPageCache   = CachePolicy{MaxAge: time.Hour, SharedMaxAge: time.Hour, StaleWhileRevalidate: 10 * time.Minute}
	DefaultStaticCache = CachePolicy{MaxAge: 24 * time.Hour, SharedMaxAge: 24 * time.Hour}
)

// Document is a urlset: an ordered sequence of entries plus its cache policy.
type Document struct {
	Entries []Entry
	Cache   CachePolicy
}

// IndexEntry references another sitemap document.
type IndexEntry struct {
	Location     string
	LastModified time.Time
}

// IndexDocument is a sitemapindex: the root of a locale's sitemap tree.
type IndexDocument struct {
	Entries []IndexEntry
	Cache   CachePolicy
}

// Renderable is implemented by *Document and *IndexDocument.
type Renderable interface {
	ContentType() string
	CacheControl() string
	Policy() CachePolicy
	Len() int
	xmlValue() (any, error)
}

func (d *Document) ContentType() string  { return ContentType }
func (d *Document) CacheControl() string { return d.Cache.Header() }
func (d *Document) Policy() CachePolicy  { return d.Cache }
func (d *Document) Len() int             { return len(d.Entries) }

func (d *IndexDocument) ContentType() string  { return ContentType }
func (d *IndexDocument) CacheControl() string { return d.Cache.Header() }
func (d *IndexDocument) Policy() CachePolicy  { return d.Cache }
func (d *IndexDocument) Len() int             { return len(d.Entries) }

// PageWindow selects one bounded slice of a collection.
type PageWindow struct {
	PageNumber int
	PageSize   int
}

// Validate rejects non-positive page numbers and sizes.
func (w PageWindow) Validate() error {
	if w.PageNumber < 1 {
		return model.NewInvalidArgumentError("page_number", fmt.Sprintf("must be >= 1, got %d", w.PageNumber))
	}
	if w.PageSize < 1 {
		return model.NewInvalidArgumentError("page_size", fmt.Sprintf("must be >= 1, got %d", w.PageSize))
	}
	return nil
}

// ComputePageCount returns ceil(totalItems/pageSize), 0 for an empty collection.
func ComputePageCount(totalItems, pageSize int) (int, error) {
	if pageSize <= 0 {
		return 0, model.NewInvalidArgumentError("page_size", fmt.Sprintf("must be > 0, got %d", pageSize))
	}
	if totalItems < 0 {
		return 0, model.NewInvalidArgumentError("total_items", fmt.Sprintf("must be >= 0, got %d", totalItems))
	}
	return (totalItems + pageSize - 1) / pageSize, nil
}
