// Package cmap provides a concurrent map implementation for the
// accumulator's site registry.
//
// This package implements a sharded concurrent map with the following
// features:
//
//   - Sharding: Configurable shard count for parallelism
//   - Fine-grained Locking: Per-shard RWMutex for minimal contention
//   - Optimistic Locking: Version-based compare-and-swap updates
//   - Iteration: Safe iteration while holding read locks
//
// Usage:
//
//	m := cmap.New[string, *SiteCache]()
//	m.Set("site-a", sc)
//	val, ok := m.Get("site-a")
//
// Thread Safety:
//
// All operations are thread-safe. Read operations (Get, Has) use RLock,
// write operations (Set, Delete) use Lock.
package cmap
