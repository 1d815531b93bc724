// Package woocommerce implements catalog.Provider for WooCommerce stores using
// the WooCommerce REST API (products, product categories) and the WordPress
// REST API (posts, pages).
package woocommerce

import (
	"time"
)

// wpDateLayout is the layout of the *_gmt fields: no zone, always UTC.
const wpDateLayout = "2006-01-02T15:04:05"

// wooObject is the projection shared by every listed resource.
// Products carry date_modified_gmt, posts and pages modified_gmt, terms neither.
type wooObject struct {
	ID              int    `json:"id"`
	Slug            string `json:"slug"`
	DateModifiedGMT string `json:"date_modified_gmt"`
	ModifiedGMT     string `json:"modified_gmt"`
}

func (o wooObject) lastModified() time.Time {
	for _, s := range []string{o.DateModifiedGMT, o.ModifiedGMT} {
		if s == "" {
			continue
		}
		if t, err := time.ParseInLocation(wpDateLayout, s, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}

// WooErrorResponse represents a WordPress REST API error body.
type WooErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int `json:"status"`
	} `json:"data"`
}

// wpIndex is the subset of GET /wp-json/ used for namespace discovery.
type wpIndex struct {
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Namespaces []string `json:"namespaces"`
}
