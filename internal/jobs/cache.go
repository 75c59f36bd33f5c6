package jobs

import "fmt"

// CacheKey identifies rows with identical (merged text, delimiter, prompt
// template). Lengths are encoded so no choice of values can collide.
type CacheKey string

// NewCacheKey builds the key for one row.
func NewCacheKey(mergedText, delimiter, promptTemplate string) CacheKey {
	return CacheKey(fmt.Sprintf("%d:%s|%d:%s|%s",
		len(mergedText), mergedText, len(delimiter), delimiter, promptTemplate))
}

// Cache memoizes outcomes per key for one run. The first write for a key
// wins; later writes are ignored. Not safe for concurrent use: the
// scheduler's coordinating goroutine is its only user.
type Cache struct {
	entries map[CacheKey]RowOutcome
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[CacheKey]RowOutcome)}
}

// Get returns the outcome stored for key.
func (c *Cache) Get(key CacheKey) (RowOutcome, bool) {
	o, ok := c.entries[key]
	return o, ok
}

// Put stores outcome under key unless the key is already present.
// It reports whether the outcome was stored.
func (c *Cache) Put(key CacheKey, outcome RowOutcome) bool {
	if _, exists := c.entries[key]; exists {
		return false
	}
	c.entries[key] = outcome
	return true
}

// Len returns the number of distinct keys stored.
func (c *Cache) Len() int {
	return len(c.entries)
}
