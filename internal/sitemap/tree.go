package sitemap

import (
	"context"
	"errors"
	"strings"

	"storefront-sitemap/internal/model"
)

// Build resolves a parsed document name to the document it names.
// Names that no configured static document or collection claims are PageNotFound.
func (b *Builder) Build(ctx context.Context, locale string, ref DocumentRef) (Renderable, error) {
	switch ref.Kind {
	case KindIndex:
		return b.BuildIndex(ctx, locale)
	case KindStatic:
		if ref.Name != b.site.StaticName {
			return nil, model.NewPageNotFoundError(StaticDocumentName(ref.Name))
		}
		return b.BuildStaticDocument(locale)
	default:
		coll, ok := b.site.Collection(ref.Name)
		if !ok {
			return nil, model.NewPageNotFoundError(PageDocumentName(ref.Name, ref.Page))
		}
		window := PageWindow{PageNumber: ref.Page, PageSize: coll.PageSize}
		return b.BuildPageDocument(ctx, coll.ID, window, locale)
	}
}

// NamedDocument is a built document together with the file name it is served under.
type NamedDocument struct {
	Locale string
	Name   string
	Doc    Renderable
}

// Walk builds the index of locale and then every document that index
// references in the same locale, calling fn for each in index order.
// Links to other locales' indexes are not followed.
func (b *Builder) Walk(ctx context.Context, locale string, fn func(NamedDocument) error) error {
	index, err := b.BuildIndex(ctx, locale)
	if err != nil {
		return err
	}
	if err := fn(NamedDocument{Locale: locale, Name: IndexName, Doc: index}); err != nil {
		return err
	}

	prefix := b.site.DocumentURL(locale, "")
	for _, e := range index.Entries {
		name, ok := strings.CutPrefix(e.Location, prefix)
		if !ok {
			continue
		}
		ref, ok := ParseDocumentName(name)
		if !ok || ref.Kind == KindIndex {
			continue
		}
		doc, err := b.Build(ctx, locale, ref)
		if errors.Is(err, model.ErrPageNotFound) {
			// The catalog shrank between counting and paging.
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(NamedDocument{Locale: locale, Name: name, Doc: doc}); err != nil {
			return err
		}
	}
	return nil
}
