package service

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// DedupCache remembers which recipients were already reminded during the
// current rotation. Implementations must be safe for concurrent use.
type DedupCache interface {
	Contains(key string) bool
	Insert(key string)
	Clear()
	Len() int
}

// MemoryDedupCache is a volatile DedupCache backed by a thread-safe set.
// Its contents are lost on restart.
type MemoryDedupCache struct {
	set mapset.Set[string]
}

// NewMemoryDedupCache creates an empty cache
func NewMemoryDedupCache() *MemoryDedupCache {
	return &MemoryDedupCache{set: mapset.NewSet[string]()}
}

// Contains reports whether key was inserted since the last Clear
func (c *MemoryDedupCache) Contains(key string) bool {
	return c.set.Contains(key)
}

// Insert adds key; inserting an existing key is a no-op
func (c *MemoryDedupCache) Insert(key string) {
	c.set.Add(key)
}

// Clear drops every key
func (c *MemoryDedupCache) Clear() {
	c.set.Clear()
}

// Len returns the number of keys currently held
func (c *MemoryDedupCache) Len() int {
	return c.set.Cardinality()
}

// DedupKey normalizes a contact address so that case and surrounding
// whitespace do not defeat duplicate suppression. This is deliberately
// stricter than keying on the raw stored address: "Ayse@Example.com" and
// " ayse@example.com" count as the same recipient and get one reminder.
func DedupKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
