package tree

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-rstore/v1/codec"
	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
	"github.com/mirkobrombin/go-rstore/v1/handle"
	"github.com/mirkobrombin/go-rstore/v1/store"
)

const (
	leafSep = "."
	mapSep  = ":"
)

// Item is one child of a Map.
type Item struct {
	Name string
	Node handle.Node
}

// Map is a hierarchical map whose children live in their own remote keys.
type Map struct {
	client redis.UniversalClient
	codec  *codec.Codec
	marker *handle.Marker
	cache  map[string]handle.Node
}

// New opens the map named name. Unless opened with handle.Lookup, the
// existence marker is written when missing; a key holding anything else is
// discarded first. Writing a child always creates the marker.
func New(ctx context.Context, client redis.UniversalClient, name string, opts ...handle.Option) (*Map, error) {
	s := handle.ApplyOptions(opts)
	marker, err := handle.NewMarker(ctx, client, name, codec.MapMarker, handle.VariantMap, opts...)
	if err != nil {
		return nil, err
	}
	return &Map{
		client: client,
		codec:  s.Codec,
		marker: marker,
		cache:  make(map[string]handle.Node),
	}, nil
}

// Key returns the remote key of the existence marker.
func (m *Map) Key() string { return m.marker.Key() }

// Name returns the logical name of the map.
func (m *Map) Name() string { return m.marker.Name() }

// Variant implements handle.Node.
func (m *Map) Variant() handle.Variant { return handle.VariantMap }

// Coerced reports whether opening the map discarded a value of another
// kind stored under its name.
func (m *Map) Coerced() bool { return m.marker.Coerced() }

// Exists reports whether the existence marker is present.
func (m *Map) Exists(ctx context.Context) (bool, error) { return m.marker.Exists(ctx) }

// TTL returns the remaining time to live of the existence marker.
func (m *Map) TTL(ctx context.Context) (time.Duration, error) { return m.marker.TTL(ctx) }

func (m *Map) childKey(name string, v handle.Variant) string {
	sep := leafSep
	if v == handle.VariantMap {
		sep = mapSep
	}
	return m.Key() + sep + codec.EscapeChild(name)
}

func (m *Map) childOpts(extra ...handle.Option) []handle.Option {
	return append([]handle.Option{handle.Escaped(), handle.WithCodec(m.codec)}, extra...)
}

// Lookup returns the child called name and whether it exists.
func (m *Map) Lookup(ctx context.Context, name string) (handle.Node, bool, error) {
	if n, ok := m.cache[name]; ok {
		exists, err := n.Exists(ctx)
		if err != nil {
			return nil, false, err
		}
		if exists {
			return n, true, nil
		}
		delete(m.cache, name)
	}
	for _, key := range []string{m.childKey(name, handle.VariantString), m.childKey(name, handle.VariantMap)} {
		sh, err := shapeOf(ctx, m.client, key)
		if err != nil {
			return nil, false, err
		}
		if sh.kind == handle.KindNone {
			continue
		}
		open, ok := resolvers[sh]
		if !ok {
			return nil, false, fmt.Errorf("%w: unsupported kind %q at %s", rerrors.ErrTypeMismatch, sh.kind, key)
		}
		n, err := open(ctx, m, key, m.childOpts(handle.Lookup()))
		if err != nil {
			return nil, false, err
		}
		m.cache[name] = n
		return n, true, nil
	}
	return nil, false, nil
}

// Get returns the child called name, or ErrNotFound.
func (m *Map) Get(ctx context.Context, name string) (handle.Node, error) {
	n, ok, err := m.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", rerrors.ErrNotFound, name, m.Name())
	}
	return n, nil
}

// Has reports whether a child called name exists.
func (m *Map) Has(ctx context.Context, name string) (bool, error) {
	n, err := m.client.Exists(ctx, m.childKey(name, handle.VariantString), m.childKey(name, handle.VariantMap)).Result()
	if err != nil {
		return false, rerrors.Translate(err)
	}
	return n > 0, nil
}

// Set writes v under name. The handle variant follows the Go shape of v:
// string, bool and integers map to scalars, handle.Ranked to a SortedSet,
// handle.Snapshot to a single-payload map, other slices to a List, maps of
// struct{} to a Set, other string-keyed maps to a nested Map, anything else
// to an Object. A fresh child inherits the expiration of the map.
func (m *Map) Set(ctx context.Context, name string, v any) error {
	return m.set(ctx, name, v, 0)
}

// SetWithExpiry writes v under name and expires the child after ttl.
func (m *Map) SetWithExpiry(ctx context.Context, name string, v any, ttl time.Duration) error {
	return m.set(ctx, name, v, ttl)
}

func (m *Map) set(ctx context.Context, name string, v any, ttl time.Duration) error {
	if name == "" {
		return rerrors.ErrEmptyKey
	}
	if n, ok := v.(handle.Node); ok {
		val, _, err := n.Load(ctx)
		if err != nil {
			return err
		}
		v = val
	}
	if err := m.marker.Ensure(ctx); err != nil {
		return err
	}
	variant := variantOf(v)
	cur, ok, err := m.Lookup(ctx, name)
	if err != nil {
		return err
	}
	if ok && cur.Variant() == variant {
		if err := cur.Reset(ctx, v); err != nil {
			return err
		}
		if ttl > 0 {
			return cur.Expire(ctx, ttl)
		}
		return nil
	}
	if ok {
		slog.Debug("rstore: map child retyped", "map", m.Key(), "child", name, "from", cur.Variant().String(), "to", variant.String())
		if err := cur.Delete(ctx); err != nil {
			return err
		}
	}
	if ttl <= 0 {
		if ttl, err = m.TTL(ctx); err != nil {
			return err
		}
	}
	n, err := resolvers[creators[variant]](ctx, m, m.childKey(name, variant), m.childOpts(handle.Lookup()))
	if err != nil {
		return err
	}
	if err := n.Reset(ctx, v); err != nil {
		return err
	}
	m.cache[name] = n
	if ttl > 0 {
		return n.Expire(ctx, ttl)
	}
	return nil
}

// Remove deletes the child called name and reports whether it existed.
func (m *Map) Remove(ctx context.Context, name string) (bool, error) {
	n, ok, err := m.Lookup(ctx, name)
	if err != nil || !ok {
		return false, err
	}
	if err := n.Delete(ctx); err != nil {
		return false, err
	}
	delete(m.cache, name)
	return true, nil
}

// Pop removes the child called name and returns its value.
func (m *Map) Pop(ctx context.Context, name string) (any, bool, error) {
	n, ok, err := m.Lookup(ctx, name)
	if err != nil || !ok {
		return nil, false, err
	}
	v, _, err := n.Load(ctx)
	if err != nil {
		return nil, false, err
	}
	if _, err := m.Remove(ctx, name); err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// SetDefault returns the child called name, writing def first when it is
// missing.
func (m *Map) SetDefault(ctx context.Context, name string, def any) (handle.Node, error) {
	n, ok, err := m.Lookup(ctx, name)
	if err != nil || ok {
		return n, err
	}
	if err := m.Set(ctx, name, def); err != nil {
		return nil, err
	}
	return m.Get(ctx, name)
}

// Update writes every entry of values.
func (m *Map) Update(ctx context.Context, values map[string]any) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := m.Set(ctx, name, values[name]); err != nil {
			return err
		}
	}
	return nil
}

// Move renames the child from to to. It reports false, leaving both
// untouched, when to already exists.
func (m *Map) Move(ctx context.Context, from, to string) (bool, error) {
	if from == to {
		return true, nil
	}
	taken, err := m.Has(ctx, to)
	if err != nil || taken {
		return false, err
	}
	n, err := m.Get(ctx, from)
	if err != nil {
		return false, err
	}
	if err := n.Rename(ctx, m.childKey(to, n.Variant())); err != nil {
		return false, err
	}
	delete(m.cache, from)
	m.cache[to] = n
	return true, nil
}

// Keys returns the child names, sorted.
func (m *Map) Keys(ctx context.Context) ([]string, error) {
	prefix := m.Key()
	seen := make(map[string]struct{})
	var names []string
	for _, sep := range []string{leafSep, mapSep} {
		keys, err := store.ScanKeys(ctx, m.client, codec.EscapePattern(prefix+sep)+"*")
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			rest := k[len(prefix)+1:]
			if rest == "" || strings.ContainsAny(rest, leafSep+mapSep) {
				continue
			}
			name := codec.UnescapeChild(rest)
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Items returns every child, sorted by name.
func (m *Map) Items(ctx context.Context) ([]Item, error) {
	names, err := m.Keys(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(names))
	for _, name := range names {
		n, ok, err := m.Lookup(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			items = append(items, Item{Name: name, Node: n})
		}
	}
	return items, nil
}

// Values returns every child node, sorted by name.
func (m *Map) Values(ctx context.Context) ([]handle.Node, error) {
	items, err := m.Items(ctx)
	if err != nil {
		return nil, err
	}
	nodes := make([]handle.Node, len(items))
	for i, it := range items {
		nodes[i] = it.Node
	}
	return nodes, nil
}

// Len returns the number of children.
func (m *Map) Len(ctx context.Context) (int, error) {
	names, err := m.Keys(ctx)
	return len(names), err
}

// Value returns the whole map as native values. Nested maps become
// map[string]any.
func (m *Map) Value(ctx context.Context) (map[string]any, error) {
	items, err := m.Items(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(items))
	for _, it := range items {
		v, ok, err := it.Node.Load(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			out[it.Name] = v
		}
	}
	return out, nil
}

// Clear removes every child and keeps the map itself.
func (m *Map) Clear(ctx context.Context) error {
	items, err := m.Items(ctx)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := it.Node.Delete(ctx); err != nil {
			return err
		}
	}
	m.cache = make(map[string]handle.Node)
	return nil
}

// Delete removes every child and the map itself.
func (m *Map) Delete(ctx context.Context) error {
	if err := m.Clear(ctx); err != nil {
		return err
	}
	return m.marker.Delete(ctx)
}

// Rename moves the map and every child below it to key, given in remote
// form. Children are reached through normal resolution, never guessed.
func (m *Map) Rename(ctx context.Context, key string) error {
	if key == m.Key() {
		return nil
	}
	items, err := m.Items(ctx)
	if err != nil {
		return err
	}
	for _, it := range items {
		sep := leafSep
		if it.Node.Variant() == handle.VariantMap {
			sep = mapSep
		}
		if err := it.Node.Rename(ctx, key+sep+codec.EscapeChild(it.Name)); err != nil {
			return err
		}
	}
	return m.marker.Rename(ctx, key)
}

// Expire sets ttl on the marker and, depth first, on every child. A
// non-positive ttl deletes the map.
func (m *Map) Expire(ctx context.Context, ttl time.Duration) error {
	if ttl <= 0 {
		return m.Delete(ctx)
	}
	items, err := m.Items(ctx)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := it.Node.Expire(ctx, ttl); err != nil {
			return err
		}
	}
	return m.marker.Expire(ctx, ttl)
}

// Persist removes the expiration of the marker and of every child.
func (m *Map) Persist(ctx context.Context) error {
	items, err := m.Items(ctx)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := it.Node.Persist(ctx); err != nil {
			return err
		}
	}
	return m.marker.Persist(ctx)
}

// Load implements handle.Node.
func (m *Map) Load(ctx context.Context) (any, bool, error) {
	ok, err := m.Exists(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	v, err := m.Value(ctx)
	return v, err == nil, err
}

// Reset replaces every child with the entries of v, a string-keyed map.
func (m *Map) Reset(ctx context.Context, v any) error {
	values, err := asStringMap(v)
	if err != nil {
		return err
	}
	if err := m.Clear(ctx); err != nil {
		return err
	}
	if err := m.marker.Ensure(ctx); err != nil {
		return err
	}
	return m.Update(ctx, values)
}

func asStringMap(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: %T is not a string-keyed map", rerrors.ErrTypeMismatch, v)
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, nil
}
