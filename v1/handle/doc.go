// Package handle binds a single remote key to one native Go shape. Every
// handle verifies the remote kind on construction: a key holding a different
// kind is deleted and, unless the handle was opened with Lookup, reinitialized
// with the caller's default. The discard is reported through Coerced.
//
// Handles are cheap client-side proxies. They hold no copy of the remote
// value, except for the client-tracked expiration of List, Set and
// SortedSet, so a handle must not be shared between goroutines that mutate
// it concurrently; each goroutine opens its own.
package handle
