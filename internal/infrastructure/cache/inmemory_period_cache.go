package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryPeriodCache implements PeriodStatusCache in process memory.
// Suitable for single-instance deployments and tests; state is not shared
// across processes.
type InMemoryPeriodCache struct {
	mu      sync.RWMutex
	entries map[string]inMemoryEntry
}

type inMemoryEntry struct {
	status    PeriodStatus
	expiresAt time.Time
}

// NewInMemoryPeriodCache creates an empty in-memory period cache
func NewInMemoryPeriodCache() *InMemoryPeriodCache {
	return &InMemoryPeriodCache{
		entries: make(map[string]inMemoryEntry),
	}
}

// Get returns the cached status, or "" on a miss or expired entry
func (c *InMemoryPeriodCache) Get(_ context.Context, key string) (PeriodStatus, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return "", nil
	}
	return entry.status, nil
}

// Set stores the status with a TTL
func (c *InMemoryPeriodCache) Set(_ context.Context, key string, status PeriodStatus, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = inMemoryEntry{
		status:    status,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Invalidate drops one cached answer
func (c *InMemoryPeriodCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}
