// Package cache provides a generic, thread-safe LRU cache with optional
// per-entry expiry.
//
// The cache evicts the least recently used entry once it reaches capacity, and
// drops expired entries lazily when they are next touched. There is no
// background sweeper.
//
// # Usage
//
//	seen := cache.NewLRUCache[string, struct{}](10_000)
//
//	// Store for 72 hours unless the key is already present.
//	if !seen.PutIfAbsent("stripe:evt_123", struct{}{}, 72*time.Hour) {
//		// duplicate
//	}
//
//	seen.Put("key", struct{}{})            // no expiry
//	_, ok := seen.Get("key")
//	seen.Remove("key")
//
// # Eviction Callbacks
//
// SetEvictCallback registers a function called for entries removed by
// capacity eviction, expiry, Remove or Clear.
//
// # Complexity
//
// Get, Put, PutWithTTL, PutIfAbsent and Remove are O(1).
package cache
