package fetch

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-updater/internal/model"
)

// PageStore persists fetched pages between runs.
type PageStore interface {
	// GetPage returns the cached page for url fetched within maxAge, or
	// nil when there is none.
	GetPage(ctx context.Context, url string, maxAge time.Duration) (*model.FetchedPage, error)
	PutPage(ctx context.Context, page *model.FetchedPage) error
}

// CachedReader decorates a Reader with an in-memory cache and an optional
// persistent page store.
type CachedReader struct {
	next  Reader
	mem   *gocache.Cache
	store PageStore
	ttl   time.Duration
}

// NewCachedReader creates a CachedReader. store may be nil.
func NewCachedReader(next Reader, store PageStore, ttl time.Duration) *CachedReader {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedReader{
		next:  next,
		mem:   gocache.New(ttl, 10*time.Minute),
		store: store,
		ttl:   ttl,
	}
}

// Name implements Reader.
func (c *CachedReader) Name() string { return c.next.Name() }

// Read implements Reader.
func (c *CachedReader) Read(ctx context.Context, rawURL string) (*model.FetchedPage, error) {
	if v, ok := c.mem.Get(rawURL); ok {
		return v.(*model.FetchedPage), nil
	}

	if c.store != nil {
		page, err := c.store.GetPage(ctx, rawURL, c.ttl)
		if err != nil {
			zap.L().Debug("fetch: page cache lookup failed", zap.String("url", rawURL), zap.Error(err))
		} else if page != nil && page.Text != "" {
			c.mem.SetDefault(rawURL, page)
			return page, nil
		}
	}

	page, err := c.next.Read(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	c.mem.SetDefault(rawURL, page)
	if c.store != nil {
		if err := c.store.PutPage(ctx, page); err != nil {
			zap.L().Warn("fetch: page cache write failed", zap.String("url", rawURL), zap.Error(err))
		}
	}
	return page, nil
}

// Flush drops every in-memory entry.
func (c *CachedReader) Flush() {
	c.mem.Flush()
}
