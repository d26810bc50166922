package pricing

import "sync"

// CacheStats describes the memoization cache contents.
type CacheStats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

// Cache memoizes results by request signature.
type Cache interface {
	Get(key string) (*Result, bool)
	// Store inserts r unless key is already present and returns the cached entry.
	Store(key string, r *Result) *Result
	Clear()
	Stats() CacheStats
}

// MemoryCache is a process-local Cache safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Result
	keys    []string
}

// NewMemoryCache constructs an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*Result)}
}

func (c *MemoryCache) Get(key string) (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[key]
	return r, ok
}

func (c *MemoryCache) Store(key string, r *Result) *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		return existing
	}
	c.entries[key] = r
	c.keys = append(c.keys, key)
	return r
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Result)
	c.keys = nil
}

// Stats lists keys in insertion order.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, len(c.keys))
	copy(keys, c.keys)
	return CacheStats{Size: len(c.entries), Keys: keys}
}
