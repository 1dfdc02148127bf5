package orgs

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const directoryKey = "organizations"

// CachedDirectory caches the organization list in front of another
// Directory. Concurrent misses share a single load. The cached slice is
// shared between callers and must not be modified.
type CachedDirectory struct {
	next  Directory
	cache *lru.LRU[string, []*Organization]
	group singleflight.Group

	hits     atomic.Uint64
	misses   atomic.Uint64
	onLookup func(hit bool)
}

// NewCachedDirectory wraps next with a TTL cache. A non-positive ttl
// falls back to one minute.
func NewCachedDirectory(next Directory, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedDirectory{
		next:  next,
		cache: lru.NewLRU[string, []*Organization](1, nil, ttl),
	}
}

// ListOrganizations returns the cached list, loading it on a miss
func (d *CachedDirectory) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	if orgs, ok := d.cache.Get(directoryKey); ok {
		d.hits.Add(1)
		d.observe(true)
		return orgs, nil
	}
	d.misses.Add(1)
	d.observe(false)

	// The shared load outlives any single caller's cancellation
	loadCtx := context.WithoutCancel(ctx)
	ch := d.group.DoChan(directoryKey, func() (any, error) {
		orgs, err := d.next.ListOrganizations(loadCtx)
		if err != nil {
			return nil, err
		}
		d.cache.Add(directoryKey, orgs)
		return orgs, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]*Organization), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnLookup registers fn to be called on every cache hit or miss. It must be
// set before the directory is shared.
func (d *CachedDirectory) OnLookup(fn func(hit bool)) *CachedDirectory {
	d.onLookup = fn
	return d
}

func (d *CachedDirectory) observe(hit bool) {
	if d.onLookup != nil {
		d.onLookup(hit)
	}
}

// Invalidate drops the cached list
func (d *CachedDirectory) Invalidate() {
	d.cache.Purge()
}

// Stats returns the hit and miss counts
func (d *CachedDirectory) Stats() (hits, misses uint64) {
	return d.hits.Load(), d.misses.Load()
}
