// Package intent holds short-lived user-supplied metadata keyed by upload id
// until the hosting platform's asset-created event arrives to claim it.
package intent

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL bounds how long a pending intent survives without being claimed.
const DefaultTTL = time.Hour

// DescriptionKey names the cache entry carrying the description a user
// attached when requesting an upload.
func DescriptionKey(uploadID string) string {
	return "description_" + uploadID
}

// Cache stores pending intents. Take consumes: a successful read removes the
// entry so replayed events observe an absent intent.
type Cache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Take(ctx context.Context, key string) (string, bool, error)
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is the in-process Cache used for development and tests.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Take(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	delete(c.entries, key)
	if c.now().After(entry.expiresAt) {
		return "", false, nil
	}
	return entry.value, true, nil
}

// Sweep drops expired entries. Call periodically when the cache is long-lived;
// Take already ignores expired entries, so sweeping only bounds memory.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
