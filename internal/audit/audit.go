// Package audit compares a live sitemap tree against a fresh build and checks
// documents for defects crawlers penalize.
// Used by sitemapctl to verify a deployment after catalog or config changes.
package audit

import (
	"fmt"
	"math"
	"net/url"

	"storefront-sitemap/internal/sitemap"
)

// MaxEntries is the sitemaps.org limit on URLs per urlset document.
const MaxEntries = 50000

// Diff describes how a live tree differs from a fresh build.
// Entries are matched by location.
type Diff struct {
	Added   []sitemap.Entry // In built but not live
	Removed []sitemap.Entry // In live but not built
	Changed []Change        // In both with different metadata
}

// Change is one location whose metadata differs between live and built.
type Change struct {
	Location string
	Live     sitemap.Entry
	Built    sitemap.Entry
	Fields   []string // "lastmod", "changefreq", "priority"
}

// IsEmpty returns true if live and built agree.
func (d *Diff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DiffEntries computes the delta between live and built entries.
// Results follow input order: Added and Changed in built order, Removed in
// live order. A location repeated within one side counts once (first wins).
func DiffEntries(live, built []sitemap.Entry) *Diff {
	diff := &Diff{}

	liveByLoc := make(map[string]sitemap.Entry, len(live))
	for _, e := range live {
		if _, dup := liveByLoc[e.Location]; !dup {
			liveByLoc[e.Location] = e
		}
	}

	builtSeen := make(map[string]bool, len(built))
	for _, b := range built {
		if builtSeen[b.Location] {
			continue
		}
		builtSeen[b.Location] = true

		l, exists := liveByLoc[b.Location]
		if !exists {
			diff.Added = append(diff.Added, b)
			continue
		}
		if fields := changedFields(l, b); len(fields) > 0 {
			diff.Changed = append(diff.Changed, Change{Location: b.Location, Live: l, Built: b, Fields: fields})
		}
	}

	liveSeen := make(map[string]bool, len(live))
	for _, l := range live {
		if builtSeen[l.Location] || liveSeen[l.Location] {
			continue
		}
		liveSeen[l.Location] = true
		diff.Removed = append(diff.Removed, l)
	}

	return diff
}

func changedFields(live, built sitemap.Entry) []string {
	var fields []string
	if !live.LastModified.Equal(built.LastModified) {
		fields = append(fields, "lastmod")
	}
	if live.ChangeFrequency != built.ChangeFrequency {
		fields = append(fields, "changefreq")
	}
	// Rendered priorities carry at most a few decimals.
	if math.Abs(live.Priority-built.Priority) > 1e-9 {
		fields = append(fields, "priority")
	}
	return fields
}

// FindingKind classifies a Check finding.
type FindingKind string

const (
	FindingDuplicate      FindingKind = "duplicate"
	FindingOutsideOrigin  FindingKind = "outside_origin"
	FindingMissingLastMod FindingKind = "missing_lastmod"
	FindingTooManyEntries FindingKind = "too_many_entries"
)

// Finding is one defect in a document.
type Finding struct {
	Kind     FindingKind
	Location string
	Detail   string
}

func (f Finding) String() string {
	if f.Location == "" {
		return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
	}
	return fmt.Sprintf("%s: %s (%s)", f.Kind, f.Location, f.Detail)
}

// Check reports duplicate locations, locations outside origin, entries
// without lastmod and documents over the protocol's size limit.
func Check(doc *sitemap.Document, origin string) ([]Finding, error) {
	base, err := url.Parse(origin)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid origin %q", origin)
	}

	var findings []Finding
	if len(doc.Entries) > MaxEntries {
		findings = append(findings, Finding{
			Kind:   FindingTooManyEntries,
			Detail: fmt.Sprintf("%d entries, limit %d", len(doc.Entries), MaxEntries),
		})
	}

	seen := make(map[string]int, len(doc.Entries))
	for i, e := range doc.Entries {
		if first, dup := seen[e.Location]; dup {
			findings = append(findings, Finding{
				Kind:     FindingDuplicate,
				Location: e.Location,
				Detail:   fmt.Sprintf("entry %d repeats entry %d", i, first),
			})
			continue
		}
		seen[e.Location] = i

		u, err := url.Parse(e.Location)
		if err != nil || u.Scheme != base.Scheme || u.Host != base.Host {
			findings = append(findings, Finding{
				Kind:     FindingOutsideOrigin,
				Location: e.Location,
				Detail:   "not under " + base.Scheme + "://" + base.Host,
			})
		}
		if e.LastModified.IsZero() {
			findings = append(findings, Finding{
				Kind:     FindingMissingLastMod,
				Location: e.Location,
				Detail:   fmt.Sprintf("entry %d", i),
			})
		}
	}
	return findings, nil
}
