package storage

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/ghyeongl/pendingfs/logging"
)

// CachedProvider memoizes List results per directory for a TTL. Every
// mutating call through it invalidates the touched directories, so a commit
// made via the cache is visible on the next listing.
type CachedProvider struct {
	Provider
	listings *ttlcache.Cache[string, []Entry]
}

// NewCachedProvider wraps p. A non-positive ttl disables expiry.
func NewCachedProvider(p Provider, ttl time.Duration) *CachedProvider {
	opts := []ttlcache.Option[string, []Entry]{
		ttlcache.WithDisableTouchOnHit[string, []Entry](),
	}
	if ttl > 0 {
		opts = append(opts, ttlcache.WithTTL[string, []Entry](ttl))
	}
	c := ttlcache.New(opts...)
	go c.Start()
	return &CachedProvider{Provider: p, listings: c}
}

// List returns the cached listing of dir, loading it on a miss.
func (c *CachedProvider) List(ctx context.Context, dir string) ([]Entry, error) {
	key := CleanPath(dir)
	if item := c.listings.Get(key); item != nil {
		if logging.Enabled(slog.LevelDebug) {
			logging.Sub("cache").Debug("list hit", "dir", key, "count", len(item.Value()))
		}
		return slices.Clone(item.Value()), nil
	}
	entries, err := c.Provider.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	c.listings.Set(key, slices.Clone(entries), ttlcache.DefaultTTL)
	logging.Sub("cache").Debug("list miss", "dir", key, "count", len(entries))
	return entries, nil
}

// Len returns the number of cached listings.
func (c *CachedProvider) Len() int {
	return c.listings.Len()
}

// Invalidate drops the cached listings of p's parent and of p's subtree.
func (c *CachedProvider) Invalidate(p string) {
	key := CleanPath(p)
	c.listings.Delete(ParentPath(key))
	for _, k := range c.listings.Keys() {
		if key == "" || k == key || strings.HasPrefix(k, key+"/") {
			c.listings.Delete(k)
		}
	}
}

// Clear drops every cached listing.
func (c *CachedProvider) Clear() {
	c.listings.DeleteAll()
}

func (c *CachedProvider) Write(ctx context.Context, p string, body io.Reader) error {
	defer c.Invalidate(p)
	return c.Provider.Write(ctx, p, body)
}

func (c *CachedProvider) Delete(ctx context.Context, p string) error {
	defer c.Invalidate(p)
	return c.Provider.Delete(ctx, p)
}

func (c *CachedProvider) Move(ctx context.Context, src, dst string) error {
	defer c.Invalidate(dst)
	defer c.Invalidate(src)
	return c.Provider.Move(ctx, src, dst)
}

func (c *CachedProvider) Copy(ctx context.Context, src, dst string) error {
	defer c.Invalidate(dst)
	return c.Provider.Copy(ctx, src, dst)
}

func (c *CachedProvider) Mkdir(ctx context.Context, p string) error {
	defer c.Invalidate(p)
	return c.Provider.Mkdir(ctx, p)
}

// Close stops the expiry loop and closes the wrapped provider.
func (c *CachedProvider) Close() error {
	c.listings.Stop()
	return c.Provider.Close()
}
