package catalog

import (
	"context"
	"fmt"
	"math"
)

// Mock implements Provider for testing.
// Each method can be configured via function fields; when a field is nil the
// mock serves Items as an in-memory catalog.
type Mock struct {
	CountFunc func(ctx context.Context, collectionID string, filter Filter) (int, error)
	PageFunc  func(ctx context.Context, collectionID string, pageNumber, pageSize int, filter Filter) ([]Item, error)

	// Items backs the default behavior, keyed by collection ID.
	Items map[string][]Item
}

// Count calls the configured CountFunc or counts Items.
func (m *Mock) Count(ctx context.Context, collectionID string, filter Filter) (int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, collectionID, filter)
	}
	return len(m.Items[collectionID]), nil
}

// Page calls the configured PageFunc or slices Items.
func (m *Mock) Page(ctx context.Context, collectionID string, pageNumber, pageSize int, filter Filter) ([]Item, error) {
	if m.PageFunc != nil {
		return m.PageFunc(ctx, collectionID, pageNumber, pageSize, filter)
	}
	if pageNumber < 1 || pageSize < 1 {
		return nil, fmt.Errorf("invalid page window %d/%d", pageNumber, pageSize)
	}

	if pageNumber-1 > (math.MaxInt-pageSize)/pageSize {
		return []Item{}, nil
	}
	items := m.Items[collectionID]
	start := (pageNumber - 1) * pageSize
	if start >= len(items) {
		return []Item{}, nil
	}
	end := min(start+pageSize, len(items))
	return items[start:end], nil
}

// Verify Mock implements Provider interface at compile time.
var _ Provider = (*Mock)(nil)
