package audit

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"storefront-sitemap/internal/sitemap"
)

const (
	// MaxDepth bounds index nesting: root index, locale index, urlset.
	MaxDepth = 2

	// maxDocumentBytes is the sitemaps.org uncompressed size limit.
	maxDocumentBytes = 50 << 20

	defaultConcurrency = 4
	userAgent          = "storefront-sitemap-audit/1.0"
)

// FetchedDocument is one urlset document of a live tree.
type FetchedDocument struct {
	URL string
	Doc *sitemap.Document
}

// Fetcher downloads a live sitemap tree.
type Fetcher struct {
	client      *http.Client
	concurrency int
}

// NewFetcher returns a Fetcher using client. A nil client means http.DefaultClient.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, concurrency: defaultConcurrency}
}

// Fetch walks the tree rooted at rootURL and returns every urlset document in
// index order. Each URL is fetched once even if several indexes reference it.
func (f *Fetcher) Fetch(ctx context.Context, rootURL string) ([]FetchedDocument, error) {
	w := &walk{fetcher: f, visited: make(map[string]bool)}
	return w.visit(ctx, rootURL, 0)
}

type walk struct {
	fetcher *Fetcher

	mu      sync.Mutex
	visited map[string]bool
}

func (w *walk) claim(loc string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.visited[loc] {
		return false
	}
	w.visited[loc] = true
	return true
}

func (w *walk) visit(ctx context.Context, loc string, depth int) ([]FetchedDocument, error) {
	if !w.claim(loc) {
		return nil, nil
	}

	body, err := w.fetcher.get(ctx, loc)
	if err != nil {
		return nil, err
	}

	root, err := rootElement(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", loc, err)
	}

	switch root {
	case "urlset":
		doc, err := sitemap.ParseDocument(body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", loc, err)
		}
		return []FetchedDocument{{URL: loc, Doc: doc}}, nil

	case "sitemapindex":
		if depth >= MaxDepth {
			return nil, fmt.Errorf("%s: sitemap index nested deeper than %d levels", loc, MaxDepth)
		}
		idx, err := sitemap.ParseIndex(body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", loc, err)
		}

		results := make([][]FetchedDocument, len(idx.Entries))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(w.fetcher.concurrency)
		for i, e := range idx.Entries {
			g.Go(func() error {
				docs, err := w.visit(gctx, e.Location, depth+1)
				results[i] = docs
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return slices.Concat(results...), nil

	default:
		return nil, fmt.Errorf("%s: unexpected root element <%s>", loc, root)
	}
}

func (f *Fetcher) get(ctx context.Context, loc string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", loc, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", loc, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", loc, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", loc, err)
	}
	if len(body) > maxDocumentBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", loc, maxDocumentBytes)
	}
	return body, nil
}

// rootElement returns the local name of the document's first element.
func rootElement(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("empty document")
		}
		if err != nil {
			return "", fmt.Errorf("parsing xml: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}
