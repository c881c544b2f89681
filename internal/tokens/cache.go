package tokens

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// CountCache remembers exact token counts keyed by a content hash so the
// hybrid estimator never pays for the same text twice within a process.
// No eviction: callers that care about long-running hygiene use Clear.
type CountCache struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewCountCache() *CountCache {
	return &CountCache{counts: make(map[string]int)}
}

func (c *CountCache) Get(text string) (int, bool) {
	key := hashKey(text)
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.counts[key]
	return n, ok
}

func (c *CountCache) Put(text string, count int) {
	key := hashKey(text)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key] = count
}

func (c *CountCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.counts)
}

func (c *CountCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = make(map[string]int)
}

func hashKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
