package matcher

import (
	"strings"
	"sync"
)

type cacheKey struct {
	content string
	offset  int
	length  int
}

func newCacheKey(tokens []string, offset, length int) cacheKey {
	return cacheKey{
		content: strings.Join(tokens[offset:offset+length], "\x1f"),
		offset:  offset,
		length:  length,
	}
}

// FingerprintCache remembers window fingerprints. It is safe for concurrent
// use and grows until Clear is called.
type FingerprintCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]uint64
}

func NewFingerprintCache() *FingerprintCache {
	return &FingerprintCache{entries: make(map[cacheKey]uint64)}
}

func (c *FingerprintCache) get(k cacheKey) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.entries[k]
	return h, ok
}

func (c *FingerprintCache) put(k cacheKey, h uint64) {
	c.mu.Lock()
	c.entries[k] = h
	c.mu.Unlock()
}

// Len returns the number of cached fingerprints
func (c *FingerprintCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every cached fingerprint
func (c *FingerprintCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[cacheKey]uint64)
	c.mu.Unlock()
}
