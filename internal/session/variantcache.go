package session

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// CachedVariants is one variant-set cache entry.
type CachedVariants struct {
	Variants []*Variant
	CachedAt time.Time
}

// VariantCache is a pure in-memory two-level mapping: session id → cache
// key → cached variant set. Entries never expire on their own; deleting the
// session clears them.
type VariantCache struct {
	mu      sync.Mutex
	entries map[string]map[string]*CachedVariants
}

func NewVariantCache() *VariantCache {
	return &VariantCache{entries: make(map[string]map[string]*CachedVariants)}
}

// BuildVariantKey derives a deterministic cache key from the request. The
// description is normalized (lowercase, trimmed, collapsed whitespace) so
// trivially different phrasings of the same request hit the cache.
func BuildVariantKey(assetType, description string, width, height int) string {
	norm := strings.Join(strings.Fields(strings.ToLower(description)), " ")
	return fmt.Sprintf("%s|%s|%dx%d", assetType, norm, width, height)
}

// Get returns the cached entry for (sessionID, key), or nil.
func (c *VariantCache) Get(sessionID, key string) *CachedVariants {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[sessionID][key]
}

// Set stores a variant set, overwriting any existing entry for the key.
func (c *VariantCache) Set(sessionID, key string, variants []*Variant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byKey, ok := c.entries[sessionID]
	if !ok {
		byKey = make(map[string]*CachedVariants)
		c.entries[sessionID] = byKey
	}
	byKey[key] = &CachedVariants{Variants: variants, CachedAt: time.Now()}
}

// ClearSession drops every entry scoped to sessionID.
func (c *VariantCache) ClearSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
}
