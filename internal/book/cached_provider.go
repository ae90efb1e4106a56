package book

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultCacheTTL is how long memoized provider responses stay fresh.
const DefaultCacheTTL = 24 * time.Hour

// CachedProvider decorates a Provider with cache-aside memoization of its
// responses, including negative ISBN lookups. Cache failures degrade to
// calling through, never to an error.
type CachedProvider struct {
	inner  Provider
	cache  Cache
	ttl    time.Duration
	logger *log.Logger
}

// NewCachedProvider wraps inner with cache. ttl <= 0 selects
// DefaultCacheTTL.
func NewCachedProvider(inner Provider, cache Cache, ttl time.Duration, logger *log.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CachedProvider{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

// Name returns the wrapped provider's name; the decorator stays invisible
// in priority configuration and logs.
func (c *CachedProvider) Name() string { return c.inner.Name() }

type cachedLookup struct {
	Found bool `json:"found"`
	Book  Book `json:"book"`
}

// SearchByISBN serves a memoized answer when one is fresh, tagging hits
// with the cache provenance sentinel, and falls through to the wrapped
// provider otherwise.
func (c *CachedProvider) SearchByISBN(ctx context.Context, isbn string) (Book, bool, error) {
	key := "prov:" + c.inner.Name() + ":isbn:" + isbn
	if raw, ok := c.read(ctx, key); ok {
		var hit cachedLookup
		if err := json.Unmarshal(raw, &hit); err == nil {
			if !hit.Found {
				return Book{}, false, nil
			}
			hit.Book.Source = SourceCache
			return hit.Book, true, nil
		}
	}

	b, found, err := c.inner.SearchByISBN(ctx, isbn)
	if err != nil {
		return Book{}, false, err
	}
	c.write(ctx, key, cachedLookup{Found: found, Book: b})
	return b, found, nil
}

// SearchByText memoizes full provider result lists per query.
func (c *CachedProvider) SearchByText(ctx context.Context, query string) ([]Book, error) {
	key := "prov:" + c.inner.Name() + ":q:" + query
	if raw, ok := c.read(ctx, key); ok {
		var books []Book
		if err := json.Unmarshal(raw, &books); err == nil {
			for i := range books {
				books[i].Source = SourceCache
			}
			return books, nil
		}
	}

	books, err := c.inner.SearchByText(ctx, query)
	if err != nil {
		return nil, err
	}
	c.write(ctx, key, books)
	return books, nil
}

func (c *CachedProvider) read(ctx context.Context, key string) ([]byte, bool) {
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "err", err)
		return nil, false
	}
	return raw, ok
}

func (c *CachedProvider) write(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "err", err)
	}
}
