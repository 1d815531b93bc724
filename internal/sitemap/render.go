package sitemap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"storefront-sitemap/internal/model"
)

type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []xmlURL `xml:"url"`
}

type xmlURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type xmlSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Xmlns    string       `xml:"xmlns,attr"`
	Sitemaps []xmlSitemap `xml:"sitemap"`
}

type xmlSitemap struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// RenderXML serializes a document to the sitemaps.org schema. Output is
// deterministic for a given document and always well-formed, including for
// zero entries.
func RenderXML(doc Renderable) ([]byte, error) {
	v, err := doc.xmlValue()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, model.NewSerializationError(fmt.Sprintf("encoding sitemap: %v", err))
	}
	if err := enc.Close(); err != nil {
		return nil, model.NewSerializationError(fmt.Sprintf("encoding sitemap: %v", err))
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (d *Document) xmlValue() (any, error) {
	set := xmlURLSet{Xmlns: Namespace, URLs: make([]xmlURL, 0, len(d.Entries))}
	for i, e := range d.Entries {
		if !xmlSafe(e.Location) {
			return nil, model.NewSerializationError(fmt.Sprintf("entry %d: location is not representable in XML", i))
		}
		if e.ChangeFrequency != "" && !e.ChangeFrequency.Valid() {
			return nil, model.NewSerializationError(fmt.Sprintf("entry %d: invalid change frequency %q", i, e.ChangeFrequency))
		}
		if math.IsNaN(e.Priority) || e.Priority < 0 || e.Priority > 1 {
			return nil, model.NewSerializationError(fmt.Sprintf("entry %d: priority %v out of range", i, e.Priority))
		}
		set.URLs = append(set.URLs, xmlURL{
			Loc:        e.Location,
			LastMod:    formatLastMod(e.LastModified),
			ChangeFreq: string(e.ChangeFrequency),
			Priority:   formatPriority(e.Priority),
		})
	}
	return set, nil
}

func (d *IndexDocument) xmlValue() (any, error) {
	idx := xmlSitemapIndex{Xmlns: Namespace, Sitemaps: make([]xmlSitemap, 0, len(d.Entries))}
	for i, e := range d.Entries {
		if !xmlSafe(e.Location) {
			return nil, model.NewSerializationError(fmt.Sprintf("index entry %d: location is not representable in XML", i))
		}
		idx.Sitemaps = append(idx.Sitemaps, xmlSitemap{
			Loc:     e.Location,
			LastMod: formatLastMod(e.LastModified),
		})
	}
	return idx, nil
}

// ParseDocument reads a urlset document back into entries.
func ParseDocument(data []byte) (*Document, error) {
	var set xmlURLSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parsing urlset: %w", err)
	}

	doc := &Document{Entries: make([]Entry, 0, len(set.URLs))}
	for _, u := range set.URLs {
		lastMod, err := parseLastMod(u.LastMod)
		if err != nil {
			return nil, fmt.Errorf("url %s: %w", u.Loc, err)
		}
		var priority float64
		if u.Priority != "" {
			priority, err = strconv.ParseFloat(strings.TrimSpace(u.Priority), 64)
			if err != nil {
				return nil, fmt.Errorf("url %s: invalid priority %q", u.Loc, u.Priority)
			}
		}
		doc.Entries = append(doc.Entries, Entry{
			Location:        strings.TrimSpace(u.Loc),
			LastModified:    lastMod,
			ChangeFrequency: ChangeFrequency(strings.TrimSpace(u.ChangeFreq)),
			Priority:        priority,
		})
	}
	return doc, nil
}

// ParseIndex reads a sitemapindex document back into entries.
func ParseIndex(data []byte) (*IndexDocument, error) {
	var idx xmlSitemapIndex
	if err := xml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing sitemapindex: %w", err)
	}

	doc := &IndexDocument{Entries: make([]IndexEntry, 0, len(idx.Sitemaps))}
	for _, s := range idx.Sitemaps {
		lastMod, err := parseLastMod(s.LastMod)
		if err != nil {
			return nil, fmt.Errorf("sitemap %s: %w", s.Loc, err)
		}
		doc.Entries = append(doc.Entries, IndexEntry{
			Location:     strings.TrimSpace(s.Loc),
			LastModified: lastMod,
		})
	}
	return doc, nil
}

func formatLastMod(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// parseLastMod accepts the W3C datetime forms seen in the wild.
func parseLastMod(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04Z07:00", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid lastmod %q", s)
}

// formatPriority prints the shortest exact form with at least one decimal.
func formatPriority(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// xmlSafe reports whether s contains only characters XML 1.0 allows.
// encoding/xml would otherwise substitute U+FFFD and break round-tripping.
func xmlSafe(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		switch {
		case r == 0x09 || r == 0x0A || r == 0x0D:
		case r >= 0x20 && r <= 0xD7FF:
		case r >= 0xE000 && r <= 0xFFFD:
		case r >= 0x10000 && r <= 0x10FFFF:
		default:
			return false
		}
	}
	return true
}
