// Package cache provides a generic TTL cache with in-memory and Redis
// implementations behind one [Cache] interface.
//
// Besides Get, Set and Delete, every implementation offers Pop, an atomic
// get-and-delete. Single-use values such as OAuth state tokens rely on it:
// of two concurrent Pop calls for the same key, at most one sees the value.
//
// # In-Memory
//
// [NewMemory] keeps entries in a map with an LRU list and a janitor
// goroutine that drops expired entries:
//
//	c := cache.NewMemory[string](
//	    cache.WithDefaultTTL(10 * time.Minute),
//	    cache.WithMaxEntries(100000),
//	)
//	defer c.Close()
//
// # Redis
//
// [NewRedis] stores JSON-encoded values under an optional key prefix. Pop
// is implemented with GETDEL and needs Redis 6.2 or newer:
//
//	c := cache.NewRedis[string](client, nil, cache.WithPrefix("oauth_state"))
//
// # Errors
//
//   - [ErrNotFound]: key missing or expired
//   - [ErrClosed]: in-memory cache used after Close
//   - [ErrMarshal], [ErrUnmarshal]: value encoding failed
package cache
