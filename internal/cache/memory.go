// Package cache provides the two-tier key-value cache that fronts expensive
// operations: a fixed-capacity in-memory LRU in front of a durable on-disk
// store, both with TTL support.
package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryEntry struct {
	value     []byte
	createdAt time.Time
	expiresAt *time.Time // Nil means no expiry
}

// Memory is an LRU cache with a fixed capacity and optional per-entry TTL.
// Reads update access order; writes evict the least-recently-used entry when
// over capacity. Safe for concurrent use.
type Memory struct {
	entries *lru.Cache[string, memoryEntry]
}

// NewMemory creates a memory cache holding at most capacity entries.
func NewMemory(capacity int) (*Memory, error) {
	entries, err := lru.New[string, memoryEntry](capacity)
	if err != nil {
		return nil, err
	}
	return &Memory{entries: entries}, nil
}

// Get returns the value for key, or ok=false on a miss. Expired entries are
// removed and reported as misses.
func (m *Memory) Get(key string) ([]byte, bool) {
	entry, ok := m.entries.Get(key)
	if !ok {
		return nil, false
	}
	if entry.expiresAt != nil && time.Now().After(*entry.expiresAt) {
		m.entries.Remove(key)
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key. A zero ttl stores the entry without expiry.
func (m *Memory) Set(key string, value []byte, ttl time.Duration) {
	entry := memoryEntry{value: value, createdAt: time.Now()}
	if ttl > 0 {
		expires := time.Now().Add(ttl)
		entry.expiresAt = &expires
	}
	m.entries.Add(key, entry)
}

// Delete removes key from the cache.
func (m *Memory) Delete(key string) {
	m.entries.Remove(key)
}

// Clear removes all entries.
func (m *Memory) Clear() {
	m.entries.Purge()
}

// Len returns the number of entries currently held.
func (m *Memory) Len() int {
	return m.entries.Len()
}
