package sitemap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"storefront-sitemap/internal/catalog"
	"storefront-sitemap/internal/model"
)

// Builder computes sitemap documents for one site from a catalog provider.
type Builder struct {
	site     Site
	origin   *url.URL
	provider catalog.Provider
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock overrides the build-time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithLogger sets the logger used to report skipped catalog items.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// New validates site and returns a Builder reading from provider.
func New(site Site, provider catalog.Provider, opts ...Option) (*Builder, error) {
	if provider == nil {
		return nil, fmt.Errorf("catalog provider is required")
	}
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("invalid site: %w", err)
	}
	origin, _ := url.Parse(site.BaseURL)

	b := &Builder{
		site:     site,
		origin:   origin,
		provider: provider,
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Site returns the configuration the builder was constructed with.
func (b *Builder) Site() *Site {
	return &b.site
}

// buildTime is truncated to the precision lastmod is rendered with.
func (b *Builder) buildTime() time.Time {
	return b.now().UTC().Truncate(time.Second)
}

// BuildPageDocument builds one page of a collection for a locale.
//
// An empty page 1 is a valid empty document; an empty page past 1 is
// PageNotFound so crawlers never see an endless tail of empty pages.
// Entries keep the provider's order.
func (b *Builder) BuildPageDocument(ctx context.Context, collectionID string, window PageWindow, locale string) (*Document, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if err := b.checkLocale(locale); err != nil {
		return nil, err
	}
	coll, ok := b.site.Collection(collectionID)
	if !ok {
		return nil, model.NewInvalidArgumentError("collection", fmt.Sprintf("unknown collection %q", collectionID))
	}
	name := PageDocumentName(collectionID, window.PageNumber)
	if !coll.servesLocale(locale) {
		return nil, model.NewPageNotFoundError(name)
	}

	items, err := b.provider.Page(ctx, coll.source(), window.PageNumber, window.PageSize, catalog.Published())
	if err != nil {
		return nil, upstreamError(err)
	}
	if len(items) == 0 && window.PageNumber > 1 {
		return nil, model.NewPageNotFoundError(name)
	}

	now := b.buildTime()
	entries := newEntrySet(len(items))
	for _, item := range items {
		loc := coll.URL(item.Slug, locale)
		if !b.withinOrigin(loc) {
			b.logger.Warn("skipping catalog item with invalid location",
				slog.String("collection", collectionID),
				slog.String("slug", item.Slug),
				slog.String("location", loc),
			)
			continue
		}
		lastMod := item.LastModified
		if lastMod.IsZero() {
			lastMod = now
		}
		entries.add(Entry{
			Location:        loc,
			LastModified:    lastMod.UTC(),
			ChangeFrequency: coll.ChangeFrequency,
			Priority:        coll.Priority,
		})
	}

	return &Document{Entries: entries.list, Cache: b.site.PageCache}, nil
}

// BuildStaticDocument builds the hand-maintained page list of a locale.
// It makes no external calls.
func (b *Builder) BuildStaticDocument(locale string) (*Document, error) {
	if err := b.checkLocale(locale); err != nil {
		return nil, err
	}

	now := b.buildTime()
	pages := b.site.StaticPages[locale]
	entries := newEntrySet(len(pages))
	for _, p := range pages {
		lastMod := p.LastModified
		if lastMod.IsZero() {
			lastMod = now
		}
		entries.add(Entry{
			Location:        b.site.LocalizedURL(locale, p.Path),
			LastModified:    lastMod.UTC(),
			ChangeFrequency: p.ChangeFrequency,
			Priority:        p.Priority,
		})
	}

	return &Document{Entries: entries.list, Cache: b.site.StaticCache}, nil
}

// BuildIndex builds the index of a locale: the static document, every
// (collection, page) pair, and for the default locale every other locale's
// index. A failed count fails the whole index; a truncated index would
// under-report content to crawlers.
func (b *Builder) BuildIndex(ctx context.Context, locale string) (*IndexDocument, error) {
	if err := b.checkLocale(locale); err != nil {
		return nil, err
	}

	var colls []*Collection
	for i := range b.site.Collections {
		if b.site.Collections[i].servesLocale(locale) {
			colls = append(colls, &b.site.Collections[i])
		}
	}

	pageCounts := make([]int, len(colls))
	g, gctx := errgroup.WithContext(ctx)
	for i, coll := range colls {
		g.Go(func() error {
			total, err := b.provider.Count(gctx, coll.source(), catalog.Published())
			if err != nil {
				return upstreamError(fmt.Errorf("counting %s: %w", coll.ID, err))
			}
			n, err := ComputePageCount(total, coll.PageSize)
			if err != nil {
				return model.NewUpstreamError("catalog", fmt.Errorf("counting %s: %w", coll.ID, err))
			}
			pageCounts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := b.buildTime()
	entries := []IndexEntry{{
		Location:     b.site.DocumentURL(locale, StaticDocumentName(b.site.StaticName)),
		LastModified: now,
	}}
	for i, coll := range colls {
		for page := 1; page <= pageCounts[i]; page++ {
			entries = append(entries, IndexEntry{
				Location:     b.site.DocumentURL(locale, PageDocumentName(coll.ID, page)),
				LastModified: now,
			})
		}
	}
	// Cross-locale links go one way only: default → others.
	if locale == b.site.DefaultLocale {
		for _, other := range b.site.Locales {
			if other == locale {
				continue
			}
			entries = append(entries, IndexEntry{
				Location:     b.site.DocumentURL(other, IndexName),
				LastModified: now,
			})
		}
	}

	return &IndexDocument{Entries: entries, Cache: b.site.IndexCache}, nil
}

func (b *Builder) checkLocale(locale string) error {
	if !b.site.SupportsLocale(locale) {
		return model.NewInvalidArgumentError("locale", fmt.Sprintf("unsupported locale %q", locale))
	}
	return nil
}

func (b *Builder) withinOrigin(loc string) bool {
	u, err := url.Parse(loc)
	if err != nil {
		return false
	}
	return u.Scheme == b.origin.Scheme && u.Host == b.origin.Host
}

// upstreamError classifies a provider failure, keeping an existing
// classification intact.
func upstreamError(err error) error {
	if errors.Is(err, model.ErrUpstreamUnavailable) {
		return err
	}
	return model.NewUpstreamError("catalog", err)
}

// entrySet keeps insertion order and drops repeated locations.
type entrySet struct {
	list []Entry
	seen map[string]struct{}
}

func newEntrySet(capacity int) *entrySet {
	return &entrySet{
		list: make([]Entry, 0, capacity),
		seen: make(map[string]struct{}, capacity),
	}
}

func (s *entrySet) add(e Entry) {
	if _, dup := s.seen[e.Location]; dup {
		return
	}
	s.seen[e.Location] = struct{}{}
	s.list = append(s.list, e)
}
