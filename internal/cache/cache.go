// Package cache is the in-process response cache in front of the sitemap
// builder. Rendered documents are kept for their max-age and served stale
// while a single background rebuild runs; concurrent misses for one key
// collapse into one build. Failures are never cached.
package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Response is a rendered, cacheable document.
type Response struct {
	Body         []byte
	ContentType  string
	CacheControl string
	// TTL is how long the response is fresh. Zero disables caching.
	TTL time.Duration
	// StaleWhileRevalidate extends TTL for serving while a refresh runs.
	StaleWhileRevalidate time.Duration
}

// Outcome describes how a lookup was answered.
type Outcome int

const (
	Miss Outcome = iota
	Hit
	Stale
)

// Status is reported per lookup and rendered as a Cache-Status header.
type Status struct {
	Outcome Outcome
	// TTL is the remaining freshness of a hit.
	TTL time.Duration
	// Collapsed is set when a miss waited for another request's build.
	Collapsed bool
	// Stored is set when a miss stored its result.
	Stored bool
}

// FillFunc builds the response for a key on a miss or refresh.
type FillFunc func(ctx context.Context) (*Response, error)

type entry struct {
	resp       *Response
	storedAt   time.Time
	refreshing bool
}

func (e *entry) age(now time.Time) time.Duration {
	return now.Sub(e.storedAt)
}

// Cache is safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	group      singleflight.Group
	maxEntries int
	refreshTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxEntries bounds the number of stored responses. Default: 1024.
func WithMaxEntries(n int) Option {
	return func(c *Cache) { c.maxEntries = n }
}

// WithRefreshTimeout bounds shared builds and background refreshes. Default: 60s.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Cache) { c.refreshTTL = d }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger for background refresh failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]*entry),
		maxEntries: 1024,
		refreshTTL: 60 * time.Second,
		now:        time.Now,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the response for key, calling fill on a miss. A stale response
// is returned immediately and refreshed in the background.
func (c *Cache) Get(ctx context.Context, key string, fill FillFunc) (*Response, Status, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		now := c.now()
		age := e.age(now)
		switch {
		case age < e.resp.TTL:
			c.mu.Unlock()
			return e.resp, Status{Outcome: Hit, TTL: e.resp.TTL - age}, nil
		case age < e.resp.TTL+e.resp.StaleWhileRevalidate:
			if !e.refreshing {
				e.refreshing = true
				c.refreshAsync(ctx, key, fill)
			}
			c.mu.Unlock()
			return e.resp, Status{Outcome: Stale}, nil
		}
	}
	c.mu.Unlock()

	// The shared build outlives any single caller; each caller stops waiting
	// when its own context ends.
	ch := c.group.DoChan(key, func() (v any, err error) {
		c.wg.Add(1)
		defer c.wg.Done()
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTTL)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("building %s: panic: %v", key, r)
			}
		}()
		return c.fill(fctx, key, fill)
	})

	select {
	case <-ctx.Done():
		return nil, Status{Outcome: Miss}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, Status{Outcome: Miss, Collapsed: res.Shared}, res.Err
		}
		resp := res.Val.(*Response)
		return resp, Status{Outcome: Miss, Collapsed: res.Shared, Stored: resp.TTL > 0}, nil
	}
}

func (c *Cache) fill(ctx context.Context, key string, fill FillFunc) (*Response, error) {
	resp, err := fill(ctx)
	if err != nil {
		c.mu.Lock()
		if e, ok := c.entries[key]; ok {
			e.refreshing = false
		}
		c.mu.Unlock()
		return nil, err
	}
	c.store(key, resp)
	return resp, nil
}

// refreshAsync must be called with c.mu held.
func (c *Cache) refreshAsync(ctx context.Context, key string, fill FillFunc) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTTL)
		defer cancel()

		_, err, _ := c.group.Do(key, func() (any, error) {
			return c.fill(rctx, key, fill)
		})
		if err != nil {
			c.logger.Warn("background refresh failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func (c *Cache) store(key string, resp *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if resp.TTL <= 0 {
		delete(c.entries, key)
		return
	}
	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evict(now)
	}
	c.entries[key] = &entry{resp: resp, storedAt: now}
}

// evict drops unusable entries, then the oldest one if still full.
// Must be called with c.mu held.
func (c *Cache) evict(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if e.age(now) >= e.resp.TTL+e.resp.StaleWhileRevalidate {
			delete(c.entries, k)
			continue
		}
		if oldestKey == "" || e.storedAt.Before(oldest) {
			oldestKey, oldest = k, e.storedAt
		}
	}
	if len(c.entries) >= c.maxEntries && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Purge drops every stored response.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of stored responses.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Wait blocks until in-flight builds and background refreshes finish.
func (c *Cache) Wait() {
	c.wg.Wait()
}
