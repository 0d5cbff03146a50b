package collection

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pitabwire/mercura/model"
	"golang.org/x/sync/singleflight"
)

// Lister fetches one collection listing.
type Lister interface {
	List(ctx context.Context, rctx *model.RequestContext, path string, query url.Values) (ListResult, error)
}

// CachedLister wraps a Lister with a TTL cache keyed by collection path and
// canonical query. Concurrent misses for the same key collapse into a single
// upstream fetch.
type CachedLister struct {
	lister     Lister
	ttl        time.Duration
	maxEntries int

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	result    ListResult
	expiresAt time.Time
}

// NewCachedLister creates a caching wrapper around a Lister.
func NewCachedLister(lister Lister, ttl time.Duration, maxEntries int) *CachedLister {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &CachedLister{
		lister:     lister,
		ttl:        ttl,
		maxEntries: maxEntries,
		cache:      make(map[string]cacheEntry),
	}
}

// List returns the cached listing for the path and query, fetching on miss.
func (cl *CachedLister) List(ctx context.Context, rctx *model.RequestContext, path string, query url.Values) (ListResult, error) {
	key := buildCacheKey(path, query)

	if result, hit := cl.getFromCache(key); hit {
		return result, nil
	}

	ch := cl.group.DoChan(key, func() (any, error) {
		// Another caller may have populated the entry while we waited.
		if result, hit := cl.getFromCache(key); hit {
			return result, nil
		}
		// The fetch is detached from the initiating request so one caller
		// cancelling cannot fail the flight for concurrent waiters. The
		// client's own timeout still bounds the upstream call.
		result, err := cl.lister.List(context.WithoutCancel(ctx), rctx, path, query)
		if err != nil {
			return ListResult{}, err
		}
		cl.putInCache(key, result)
		return result, nil
	})

	select {
	case <-ctx.Done():
		return ListResult{}, model.NewUpstreamTimeoutError()
	case res := <-ch:
		if res.Err != nil {
			return ListResult{}, res.Err
		}
		return res.Val.(ListResult), nil
	}
}

// Invalidate removes all cache entries for a collection path. Called after
// a successful create so the next listing reflects the new record.
func (cl *CachedLister) Invalidate(path string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	prefix := "list:" + path + "?"
	for k := range cl.cache {
		if strings.HasPrefix(k, prefix) {
			delete(cl.cache, k)
		}
	}
}

// CacheLen returns the number of entries in the cache. For testing.
func (cl *CachedLister) CacheLen() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.cache)
}

// buildCacheKey canonicalizes the query so parameter order does not split
// the cache.
func buildCacheKey(path string, query url.Values) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		vals := append([]string(nil), query[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			if sb.Len() > 0 {
				sb.WriteByte('&')
			}
			fmt.Fprintf(&sb, "%s=%s", k, v)
		}
	}
	return "list:" + path + "?" + sb.String()
}

// getFromCache returns the cached result if the entry exists and hasn't expired.
func (cl *CachedLister) getFromCache(key string) (ListResult, bool) {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	entry, exists := cl.cache[key]
	if !exists || time.Now().After(entry.expiresAt) {
		return ListResult{}, false
	}
	return entry.result, true
}

// putInCache stores a listing with the configured TTL.
func (cl *CachedLister) putInCache(key string, result ListResult) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Evict expired entries if at capacity.
	if len(cl.cache) >= cl.maxEntries {
		cl.evictExpired()
	}

	cl.cache[key] = cacheEntry{
		result:    result,
		expiresAt: time.Now().Add(cl.ttl),
	}
}

// evictExpired removes expired entries. Must be called with mu held.
func (cl *CachedLister) evictExpired() {
	now := time.Now()
	for k, v := range cl.cache {
		if now.After(v.expiresAt) {
			delete(cl.cache, k)
		}
	}
}
