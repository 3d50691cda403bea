package version

import (
	"sync"
	"time"
)

// listingCache keeps fetched version listings for a short lifetime so a
// mirror-sync pass over many (system, architecture) pairs does not hammer
// the same endpoint.
type listingCache struct {
	mu       sync.RWMutex
	lifetime time.Duration
	entries  map[string]listingEntry
}

type listingEntry struct {
	versions  []string
	fetchedAt time.Time
}

func newListingCache(lifetime time.Duration) *listingCache {
	return &listingCache{
		lifetime: lifetime,
		entries:  make(map[string]listingEntry),
	}
}

func (c *listingCache) get(endpoint string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[endpoint]
	if !ok || time.Since(e.fetchedAt) > c.lifetime {
		return nil, false
	}
	return e.versions, true
}

func (c *listingCache) set(endpoint string, versions []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[endpoint] = listingEntry{versions: versions, fetchedAt: time.Now()}
}
