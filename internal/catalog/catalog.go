// Package catalog defines the read-only view of the commerce/content backend
// that sitemap documents are built from.
package catalog

import (
	"context"
	"time"
)

// Collection identifiers understood by the bundled providers.
const (
	CollectionProducts          = "products"
	CollectionProductCategories = "product-categories"
	CollectionPosts             = "posts"
	CollectionPages             = "pages"
)

// StatusPublish restricts results to publicly visible items.
const StatusPublish = "publish"

// Provider answers "how many items" and "give me page N" for a collection.
// Each platform (WooCommerce, a local snapshot, ...) provides its own
// implementation.
//
// Implementations must return items of a page in a stable order so that
// repeated builds from an unchanged catalog produce identical documents.
type Provider interface {
	// Count returns the total number of items in the collection matching filter.
	Count(ctx context.Context, collectionID string, filter Filter) (int, error)

	// Page returns one page of items. pageNumber starts at 1. A page past the
	// end returns an empty slice and no error.
	Page(ctx context.Context, collectionID string, pageNumber, pageSize int, filter Filter) ([]Item, error)
}

// Item is the minimal projection of a catalog object a sitemap needs.
type Item struct {
	Slug string `json:"slug"`
	// LastModified is zero when the backend does not track modification time.
	LastModified time.Time `json:"last_modified"`
}

// Filter constrains which items a provider returns.
type Filter struct {
	Status string
}

// Published is the filter every sitemap request uses.
func Published() Filter {
	return Filter{Status: StatusPublish}
}
