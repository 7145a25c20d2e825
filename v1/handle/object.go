package handle

import (
	"context"

	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-rstore/v1/codec"
)

// Object stores any value as a single encoded payload. Unlike String, the
// payload is always tagged, strings included.
type Object[T any] struct {
	base
}

// NewObject opens key as an encoded value.
func NewObject[T any](ctx context.Context, client redis.UniversalClient, key string, def T, opts ...Option) (*Object[T], error) {
	codec.Register(*new(T))
	s := ApplyOptions(opts)
	b, err := newBase(client, key, s)
	if err != nil {
		return nil, err
	}
	h := &Object[T]{base: b}
	check := func(ctx context.Context) (state, error) { return h.checkKind(ctx, KindString) }
	reset := func(ctx context.Context) error { return h.ResetValue(ctx, def) }
	if err := h.open(ctx, s, VariantObject, check, reset); err != nil {
		return nil, err
	}
	return h, nil
}

// Variant implements Node.
func (h *Object[T]) Variant() Variant { return VariantObject }

// Value decodes the stored value. A stored nil reads as absent.
func (h *Object[T]) Value(ctx context.Context) (T, bool, error) {
	var zero T
	p, ok, err := h.get(ctx)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := h.codec.Decode(p)
	if err != nil {
		return zero, false, err
	}
	if v == nil {
		return zero, false, nil
	}
	out, err := codec.As[T](v)
	if err != nil {
		return zero, false, err
	}
	return out, true, nil
}

// ResetValue replaces the stored value.
func (h *Object[T]) ResetValue(ctx context.Context, v T) error {
	p, err := h.codec.EncodeTagged(any(v))
	if err != nil {
		return err
	}
	return h.set(ctx, p)
}

// Load implements Node.
func (h *Object[T]) Load(ctx context.Context) (any, bool, error) {
	return h.Value(ctx)
}

// Reset implements Node.
func (h *Object[T]) Reset(ctx context.Context, v any) error {
	t, err := codec.As[T](v)
	if err != nil {
		return err
	}
	return h.ResetValue(ctx, t)
}
