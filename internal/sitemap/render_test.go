package sitemap

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"storefront-sitemap/internal/catalog"
	"storefront-sitemap/internal/model"
)

func TestRenderXML_EmptyURLSet(t *testing.T) {
	out, err := RenderXML(&Document{})
	if err != nil {
		t.Fatalf("RenderXML() error: %v", err)
	}

	want := `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"></urlset>` + "\n"
	if string(out) != want {
		t.Errorf("RenderXML() =\n%s\nwant:\n%s", out, want)
	}

	doc, err := ParseDocument(out)
	if err != nil {
		t.Fatalf("ParseDocument() error: %v", err)
	}
	if len(doc.Entries) != 0 {
		t.Errorf("entries = %d, want 0", len(doc.Entries))
	}
}

func TestRenderXML_URLSet(t *testing.T) {
	doc := &Document{Entries: []Entry{{
		Location:        "https://shop.example.com/product/mug",
		LastModified:    time.Date(2025, 11, 3, 8, 15, 0, 0, time.FixedZone("CET", 3600)),
		ChangeFrequency: ChangeDaily,
		Priority:        0.8,
	}}}

	out, err := RenderXML(doc)
	if err != nil {
		t.Fatalf("RenderXML() error: %v", err)
	}

	for _, want := range []string{
		`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`,
		`<loc>https://shop.example.com/product/mug</loc>`,
		`<lastmod>2025-11-03T07:15:00Z</lastmod>`,
		`<changefreq>daily</changefreq>`,
		`<priority>0.8</priority>`,
	} {
		if !strings.Contains(string(out), want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
}

func TestRenderXML_SitemapIndex(t *testing.T) {
	doc := &IndexDocument{Entries: []IndexEntry{
		{Location: "https://shop.example.com/sitemap-pages.xml", LastModified: testNow},
		{Location: "https://shop.example.com/sv/sitemap.xml", LastModified: testNow},
	}}

	out, err := RenderXML(doc)
	if err != nil {
		t.Fatalf("RenderXML() error: %v", err)
	}
	if !strings.Contains(string(out), `<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`) {
		t.Errorf("missing sitemapindex root:\n%s", out)
	}
	if strings.Contains(string(out), "<changefreq>") || strings.Contains(string(out), "<priority>") {
		t.Errorf("index entries must carry only loc and lastmod:\n%s", out)
	}

	parsed, err := ParseIndex(out)
	if err != nil {
		t.Fatalf("ParseIndex() error: %v", err)
	}
	if len(parsed.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(parsed.Entries))
	}
	for i, e := range parsed.Entries {
		if e.Location != doc.Entries[i].Location || !e.LastModified.Equal(testNow) {
			t.Errorf("entry %d = %+v, want %+v", i, e, doc.Entries[i])
		}
	}
}

func TestRenderXML_FormatsPriority(t *testing.T) {
	tests := []struct {
		priority float64
		want     string
	}{
		{0, "0.0"},
		{1, "1.0"},
		{0.5, "0.5"},
		{0.8, "0.8"},
		{0.25, "0.25"},
	}

	for _, tt := range tests {
		if got := formatPriority(tt.priority); got != tt.want {
			t.Errorf("formatPriority(%v) = %q, want %q", tt.priority, got, tt.want)
		}
	}
}

func TestRenderXML_RoundTripsSpecialCharacters(t *testing.T) {
	slugs := []string{"plain", "a&b", "less<than", "quote\"d", "apos'd", "åäö-kaffe", "mixed&<>\"'"}
	items := make([]catalog.Item, len(slugs))
	for i, s := range slugs {
		items[i] = catalog.Item{Slug: s, LastModified: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	}
	b := testBuilder(t, &catalog.Mock{Items: map[string][]catalog.Item{"products": items}})

	doc, err := b.BuildPageDocument(context.Background(), "products", PageWindow{PageNumber: 1, PageSize: 100}, "en")
	if err != nil {
		t.Fatalf("BuildPageDocument() error: %v", err)
	}
	out, err := RenderXML(doc)
	if err != nil {
		t.Fatalf("RenderXML() error: %v", err)
	}
	if bytes.Contains(out, []byte("a&b<")) || bytes.Contains(out, []byte("/less<than")) {
		t.Errorf("unescaped markup in output:\n%s", out)
	}

	parsed, err := ParseDocument(out)
	if err != nil {
		t.Fatalf("ParseDocument() error: %v", err)
	}
	if len(parsed.Entries) != len(slugs) {
		t.Fatalf("entries = %d, want %d", len(parsed.Entries), len(slugs))
	}
	prefix := testBase + "/product/"
	for i, e := range parsed.Entries {
		if got := strings.TrimPrefix(e.Location, prefix); got != slugs[i] {
			t.Errorf("entry %d slug = %q, want %q", i, got, slugs[i])
		}
		want := doc.Entries[i]
		if e.Location != want.Location || !e.LastModified.Equal(want.LastModified) ||
			e.ChangeFrequency != want.ChangeFrequency || e.Priority != want.Priority {
			t.Errorf("entry %d = %+v, want %+v", i, e, doc.Entries[i])
		}
	}
}

func TestRenderXML_Deterministic(t *testing.T) {
	b := testBuilder(t, &catalog.Mock{Items: map[string][]catalog.Item{"products": makeItems(30, "p")}})

	var outputs [][]byte
	for range 3 {
		doc, err := b.BuildPageDocument(context.Background(), "products", PageWindow{PageNumber: 1, PageSize: 100}, "sv")
		if err != nil {
			t.Fatalf("BuildPageDocument() error: %v", err)
		}
		out, err := RenderXML(doc)
		if err != nil {
			t.Fatalf("RenderXML() error: %v", err)
		}
		outputs = append(outputs, out)
	}
	for i := 1; i < len(outputs); i++ {
		if !bytes.Equal(outputs[0], outputs[i]) {
			t.Fatalf("render %d differs from render 0", i)
		}
	}
}

func TestRenderXML_SerializationErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  Renderable
	}{
		{"control character", &Document{Entries: []Entry{{Location: "https://shop.example.com/a\x00b", ChangeFrequency: ChangeDaily}}}},
		{"invalid utf-8", &Document{Entries: []Entry{{Location: "https://shop.example.com/\xff", ChangeFrequency: ChangeDaily}}}},
		{"bad change frequency", &Document{Entries: []Entry{{Location: "https://shop.example.com/a", ChangeFrequency: "sometimes"}}}},
		{"priority above one", &Document{Entries: []Entry{{Location: "https://shop.example.com/a", Priority: 1.5}}}},
		{"index control character", &IndexDocument{Entries: []IndexEntry{{Location: "https://shop.example.com/\x1b.xml"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := RenderXML(tt.doc)
			if out != nil {
				t.Error("no partial output may be returned")
			}
			if !errors.Is(err, model.ErrSerialization) {
				t.Errorf("err = %v, want ErrSerialization", err)
			}
		})
	}
}

func TestParseLastMod(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "", want: time.Time{}},
		{in: "2025-04-01", want: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)},
		{in: "2025-04-01T10:30+02:00", want: time.Date(2025, 4, 1, 8, 30, 0, 0, time.UTC)},
		{in: "2025-04-01T10:30:15Z", want: time.Date(2025, 4, 1, 10, 30, 15, 0, time.UTC)},
		{in: " 2025-04-01T10:30:15.5-01:00 ", want: time.Date(2025, 4, 1, 11, 30, 15, 500000000, time.UTC)},
		{in: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLastMod(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseLastMod(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCachePolicyHeader(t *testing.T) {
	tests := []struct {
		policy CachePolicy
		want   string
	}{
		{DefaultIndexCache, "public, max-age=21600, s-maxage=21600"},
		{DefaultPageCache, "public, max-age=3600, s-maxage=3600, stale-while-revalidate=600"},
		{DefaultStaticCache, "public, max-age=86400, s-maxage=86400"},
		{CachePolicy{}, "public, max-age=0"},
	}

	for _, tt := range tests {
		if got := tt.policy.Header(); got != tt.want {
			t.Errorf("Header() = %q, want %q", got, tt.want)
		}
	}
}
