package sitemap

import (
	"fmt"
	"strconv"
	"strings"
)

// IndexName is the file name of every locale's index document.
const IndexName = "sitemap.xml"

// DocumentKind distinguishes the three document shapes a name can refer to.
type DocumentKind int

const (
	KindIndex DocumentKind = iota
	KindStatic
	KindPage
)

// DocumentRef is a parsed document file name.
type DocumentRef struct {
	Kind DocumentKind
	// Name is the static name or the collection ID. Empty for the index.
	Name string
	// Page is set for KindPage only.
	Page int
}

// StaticDocumentName returns "sitemap-<name>.xml".
func StaticDocumentName(name string) string {
	return "sitemap-" + name + ".xml"
}

// PageDocumentName returns "sitemap-<collection>-<page>.xml".
func PageDocumentName(collectionID string, page int) string {
	return fmt.Sprintf("sitemap-%s-%d.xml", collectionID, page)
}

// ParseDocumentName reverses IndexName, StaticDocumentName and
// PageDocumentName. A trailing "-<digits>" always denotes a page, which is why
// static names may not end in one.
func ParseDocumentName(file string) (DocumentRef, bool) {
	if file == IndexName {
		return DocumentRef{Kind: KindIndex}, true
	}

	inner, ok := strings.CutPrefix(file, "sitemap-")
	if !ok {
		return DocumentRef{}, false
	}
	inner, ok = strings.CutSuffix(inner, ".xml")
	if !ok || inner == "" {
		return DocumentRef{}, false
	}

	if i := strings.LastIndexByte(inner, '-'); i > 0 && isDigits(inner[i+1:]) {
		digits := inner[i+1:]
		// Leading zeros would give one page two URLs.
		if len(digits) > 1 && digits[0] == '0' || !validDocumentName(inner[:i]) {
			return DocumentRef{}, false
		}
		page, err := strconv.Atoi(digits)
		if err != nil {
			return DocumentRef{}, false
		}
		return DocumentRef{Kind: KindPage, Name: inner[:i], Page: page}, true
	}

	if !validDocumentName(inner) {
		return DocumentRef{}, false
	}
	return DocumentRef{Kind: KindStatic, Name: inner}, true
}

// validDocumentName accepts lowercase ASCII letters, digits and inner dashes.
func validDocumentName(s string) bool {
	if s == "" || s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-') {
			return false
		}
	}
	return true
}

func trailingPage(s string) bool {
	i := strings.LastIndexByte(s, '-')
	return i >= 0 && isDigits(s[i+1:])
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
