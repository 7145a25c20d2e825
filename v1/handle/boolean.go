package handle

import (
	"context"

	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-rstore/v1/codec"
)

const (
	literalTrue  = "True"
	literalFalse = "False"
)

// IsBoolean reports whether payload is one of the boolean literals.
func IsBoolean(payload string) bool {
	return payload == literalTrue || payload == literalFalse
}

// Boolean manipulates a remote string holding "True" or "False".
type Boolean struct {
	base
}

// NewBoolean opens key as a boolean.
func NewBoolean(ctx context.Context, client redis.UniversalClient, key string, def bool, opts ...Option) (*Boolean, error) {
	s := ApplyOptions(opts)
	b, err := newBase(client, key, s)
	if err != nil {
		return nil, err
	}
	h := &Boolean{base: b}
	check := func(ctx context.Context) (state, error) { return h.checkString(ctx, IsBoolean) }
	reset := func(ctx context.Context) error { return h.ResetValue(ctx, def) }
	if err := h.open(ctx, s, VariantBoolean, check, reset); err != nil {
		return nil, err
	}
	return h, nil
}

// Variant implements Node.
func (h *Boolean) Variant() Variant { return VariantBoolean }

// Value returns the stored boolean.
func (h *Boolean) Value(ctx context.Context) (bool, bool, error) {
	p, ok, err := h.get(ctx)
	if err != nil || !ok {
		return false, ok, err
	}
	return p == literalTrue, true, nil
}

// ResetValue replaces the stored boolean.
func (h *Boolean) ResetValue(ctx context.Context, v bool) error {
	if v {
		return h.set(ctx, literalTrue)
	}
	return h.set(ctx, literalFalse)
}

// Toggle flips the stored boolean and returns the new value.
func (h *Boolean) Toggle(ctx context.Context) (bool, error) {
	v, _, err := h.Value(ctx)
	if err != nil {
		return false, err
	}
	return !v, h.ResetValue(ctx, !v)
}

// Load implements Node.
func (h *Boolean) Load(ctx context.Context) (any, bool, error) {
	return h.Value(ctx)
}

// Reset implements Node.
func (h *Boolean) Reset(ctx context.Context, v any) error {
	b, err := codec.As[bool](v)
	if err != nil {
		return err
	}
	return h.ResetValue(ctx, b)
}
