// Package tree exposes a hierarchical map spread over many remote keys.
//
// A Map named "users" keeps an existence marker at "users", scalar and
// collection children at "users.<child>" and nested maps at
// "users:<child>". Child names are escaped so neither separator can appear
// inside a single path segment.
//
// The type of a child is inferred once from its stored form and cached on
// the Map. The cache is an optimization: the store stays authoritative, and
// a Map must be owned by a single goroutine.
package tree
