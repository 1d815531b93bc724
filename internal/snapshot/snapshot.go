// Package snapshot stores a frozen copy of the catalog in a local SQLite file
// and serves it as a catalog.Provider.
//
// A snapshot makes builds reproducible and lets the server and the export
// command run without reaching the live store.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"storefront-sitemap/internal/catalog"
)

// SyncPageSize is the page size Sync reads the source provider with.
const SyncPageSize = 100

// Store is a SQLite-backed catalog snapshot.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the snapshot at path and migrates its schema.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening snapshot %s: %w", path, err)
	}

	if _, err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Count returns the number of stored items of a collection matching filter.
func (s *Store) Count(ctx context.Context, collectionID string, filter catalog.Filter) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM items
		WHERE collection = ? AND (? = '' OR status = ?)
	`, collectionID, filter.Status, filter.Status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", collectionID, err)
	}
	return n, nil
}

// Page returns items in the order they were synced.
func (s *Store) Page(ctx context.Context, collectionID string, pageNumber, pageSize int, filter catalog.Filter) ([]catalog.Item, error) {
	if pageNumber < 1 || pageSize < 1 {
		return nil, fmt.Errorf("invalid page window %d/%d", pageNumber, pageSize)
	}
	// SQLite reads a negative OFFSET as zero; a wrapped offset is past any catalog.
	if pageNumber-1 > (math.MaxInt-pageSize)/pageSize {
		return []catalog.Item{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT slug, last_modified FROM items
		WHERE collection = ? AND (? = '' OR status = ?)
		ORDER BY position
		LIMIT ? OFFSET ?
	`, collectionID, filter.Status, filter.Status, pageSize, (pageNumber-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("reading %s page %d: %w", collectionID, pageNumber, err)
	}
	defer rows.Close()

	items := make([]catalog.Item, 0, pageSize)
	for rows.Next() {
		var (
			item    catalog.Item
			lastMod sql.NullString
		)
		if err := rows.Scan(&item.Slug, &lastMod); err != nil {
			return nil, fmt.Errorf("scanning %s item: %w", collectionID, err)
		}
		if lastMod.Valid {
			t, err := time.Parse(time.RFC3339, lastMod.String)
			if err != nil {
				return nil, fmt.Errorf("reading %s item %s last_modified: %w", collectionID, item.Slug, err)
			}
			item.LastModified = t
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s page %d: %w", collectionID, pageNumber, err)
	}
	return items, nil
}

// SyncResult reports what Sync stored for one collection.
type SyncResult struct {
	Collection string
	Items      int
	SyncedAt   time.Time
}

// Sync replaces the stored collections with the published items of source.
// Every collection is read completely before anything is written, and all
// writes happen in one transaction, so a failed sync leaves the previous
// snapshot intact.
func (s *Store) Sync(ctx context.Context, source catalog.Provider, collections []string) ([]SyncResult, error) {
	fetched := make(map[string][]catalog.Item, len(collections))
	for _, coll := range collections {
		items, err := readAll(ctx, source, coll)
		if err != nil {
			return nil, err
		}
		fetched[coll] = items
	}

	syncedAt := s.now().UTC().Truncate(time.Second)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting sync transaction: %w", err)
	}
	defer tx.Rollback()

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO items (collection, position, slug, status, last_modified)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing insert: %w", err)
	}
	defer insert.Close()

	results := make([]SyncResult, 0, len(collections))
	for _, coll := range collections {
		if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE collection = ?`, coll); err != nil {
			return nil, fmt.Errorf("clearing %s: %w", coll, err)
		}

		items := fetched[coll]
		for i, item := range items {
			var lastMod sql.NullString
			if !item.LastModified.IsZero() {
				lastMod = sql.NullString{String: item.LastModified.UTC().Format(time.RFC3339), Valid: true}
			}
			if _, err := insert.ExecContext(ctx, coll, i, item.Slug, catalog.StatusPublish, lastMod); err != nil {
				return nil, fmt.Errorf("storing %s item %s: %w", coll, item.Slug, err)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO syncs (collection, item_count, synced_at) VALUES (?, ?, ?)
			ON CONFLICT (collection) DO UPDATE SET item_count = excluded.item_count, synced_at = excluded.synced_at
		`, coll, len(items), syncedAt.Format(time.RFC3339))
		if err != nil {
			return nil, fmt.Errorf("recording %s sync: %w", coll, err)
		}
		results = append(results, SyncResult{Collection: coll, Items: len(items), SyncedAt: syncedAt})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing sync: %w", err)
	}
	return results, nil
}

// LastSync returns when a collection was last synced, or false if never.
func (s *Store) LastSync(ctx context.Context, collectionID string) (SyncResult, bool, error) {
	var (
		count    int
		syncedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT item_count, synced_at FROM syncs WHERE collection = ?
	`, collectionID).Scan(&count, &syncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncResult{}, false, nil
	}
	if err != nil {
		return SyncResult{}, false, fmt.Errorf("reading %s sync: %w", collectionID, err)
	}
	t, err := time.Parse(time.RFC3339, syncedAt)
	if err != nil {
		return SyncResult{}, false, fmt.Errorf("reading %s sync: %w", collectionID, err)
	}
	return SyncResult{Collection: collectionID, Items: count, SyncedAt: t}, true, nil
}

// readAll pages through a collection until a short page. The count bounds the
// number of pages so a provider that never returns a short page still ends.
func readAll(ctx context.Context, source catalog.Provider, collectionID string) ([]catalog.Item, error) {
	total, err := source.Count(ctx, collectionID, catalog.Published())
	if err != nil {
		return nil, fmt.Errorf("counting %s: %w", collectionID, err)
	}
	if total < 0 {
		return nil, fmt.Errorf("counting %s: negative total %d", collectionID, total)
	}

	items := make([]catalog.Item, 0, total)
	maxPages := total/SyncPageSize + 1
	for page := 1; page <= maxPages; page++ {
		batch, err := source.Page(ctx, collectionID, page, SyncPageSize, catalog.Published())
		if err != nil {
			return nil, fmt.Errorf("reading %s page %d: %w", collectionID, page, err)
		}
		for _, item := range batch {
			if item.Slug != "" {
				items = append(items, item)
			}
		}
		if len(batch) < SyncPageSize {
			break
		}
	}
	return items, nil
}

// Verify Store implements Provider interface at compile time.
var _ catalog.Provider = (*Store)(nil)
