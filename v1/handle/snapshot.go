package handle

import (
	"context"
	"fmt"
	"sort"

	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-rstore/v1/codec"
	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
)

// SnapshotMap stores a whole map as one payload. Reads and whole-map
// replacement are atomic; every field write rewrites the entire map.
type SnapshotMap struct {
	base
}

// NewSnapshot opens key as a map snapshot. A nil def means an empty map.
func NewSnapshot(ctx context.Context, client redis.UniversalClient, key string, def map[string]any, opts ...Option) (*SnapshotMap, error) {
	s := ApplyOptions(opts)
	b, err := newBase(client, key, s)
	if err != nil {
		return nil, err
	}
	h := &SnapshotMap{base: b}
	check := func(ctx context.Context) (state, error) { return h.checkString(ctx, codec.IsSnapshot) }
	reset := func(ctx context.Context) error { return h.ResetValue(ctx, def) }
	if err := h.open(ctx, s, VariantSnapshot, check, reset); err != nil {
		return nil, err
	}
	return h, nil
}

// Variant implements Node.
func (h *SnapshotMap) Variant() Variant { return VariantSnapshot }

// Value decodes the stored map.
func (h *SnapshotMap) Value(ctx context.Context) (map[string]any, bool, error) {
	p, ok, err := h.get(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	m, ok, err := h.codec.DecodeSnapshot(p)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, fmt.Errorf("%w: %s is not a snapshot", rerrors.ErrTypeMismatch, h.key)
	}
	return m, true, nil
}

// ResetValue replaces the stored map.
func (h *SnapshotMap) ResetValue(ctx context.Context, m map[string]any) error {
	p, err := h.codec.EncodeSnapshot(m)
	if err != nil {
		return err
	}
	return h.set(ctx, p)
}

// Update merges m into the stored map.
func (h *SnapshotMap) Update(ctx context.Context, m map[string]any) error {
	cur, _, err := h.Value(ctx)
	if err != nil {
		return err
	}
	if cur == nil {
		cur = make(map[string]any, len(m))
	}
	for k, v := range m {
		cur[k] = v
	}
	return h.ResetValue(ctx, cur)
}

// Get returns one field, or ErrNotFound.
func (h *SnapshotMap) Get(ctx context.Context, field string) (any, error) {
	cur, _, err := h.Value(ctx)
	if err != nil {
		return nil, err
	}
	v, ok := cur[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s", rerrors.ErrNotFound, field)
	}
	return v, nil
}

// Set writes one field.
func (h *SnapshotMap) Set(ctx context.Context, field string, v any) error {
	return h.Update(ctx, map[string]any{field: v})
}

// Remove deletes one field and reports whether it was present.
func (h *SnapshotMap) Remove(ctx context.Context, field string) (bool, error) {
	cur, _, err := h.Value(ctx)
	if err != nil {
		return false, err
	}
	if _, ok := cur[field]; !ok {
		return false, nil
	}
	delete(cur, field)
	return true, h.ResetValue(ctx, cur)
}

// Keys returns the field names in sorted order.
func (h *SnapshotMap) Keys(ctx context.Context) ([]string, error) {
	cur, _, err := h.Value(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(cur))
	for k := range cur {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Load implements Node.
func (h *SnapshotMap) Load(ctx context.Context) (any, bool, error) {
	return h.Value(ctx)
}

// Reset implements Node.
func (h *SnapshotMap) Reset(ctx context.Context, v any) error {
	m, err := toStringMap[any](v)
	if err != nil {
		return err
	}
	return h.ResetValue(ctx, m)
}
