package handle

import (
	"context"
	"strconv"

	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-rstore/v1/codec"
	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
)

// Integer manipulates a remote decimal integer. Increment and Decrement use
// the store's atomic counters.
type Integer struct {
	base
}

// IsInteger reports whether payload is decimal digits with an optional
// leading minus sign.
func IsInteger(payload string) bool {
	if len(payload) > 0 && payload[0] == '-' {
		payload = payload[1:]
	}
	if payload == "" {
		return false
	}
	for i := 0; i < len(payload); i++ {
		if payload[i] < '0' || payload[i] > '9' {
			return false
		}
	}
	return true
}

// NewInteger opens key as an integer, replacing non-numeric content by def.
func NewInteger(ctx context.Context, client redis.UniversalClient, key string, def int64, opts ...Option) (*Integer, error) {
	s := ApplyOptions(opts)
	b, err := newBase(client, key, s)
	if err != nil {
		return nil, err
	}
	h := &Integer{base: b}
	check := func(ctx context.Context) (state, error) { return h.checkString(ctx, IsInteger) }
	reset := func(ctx context.Context) error { return h.ResetValue(ctx, def) }
	if err := h.open(ctx, s, VariantInteger, check, reset); err != nil {
		return nil, err
	}
	return h, nil
}

// Variant implements Node.
func (h *Integer) Variant() Variant { return VariantInteger }

// Value returns the stored integer.
func (h *Integer) Value(ctx context.Context) (int64, bool, error) {
	p, ok, err := h.get(ctx)
	if err != nil || !ok {
		return 0, ok, err
	}
	if p == "" {
		return 0, true, nil
	}
	n, err := strconv.ParseInt(p, 10, 64)
	if err != nil {
		return 0, true, rerrors.ErrTypeMismatch
	}
	return n, true, nil
}

// ResetValue replaces the stored integer.
func (h *Integer) ResetValue(ctx context.Context, v int64) error {
	return h.set(ctx, strconv.FormatInt(v, 10))
}

// Increment atomically adds n and returns the new value.
func (h *Integer) Increment(ctx context.Context, n int64) (int64, error) {
	v, err := h.client.IncrBy(ctx, h.key, n).Result()
	return v, rerrors.Translate(err)
}

// Decrement atomically subtracts n and returns the new value.
func (h *Integer) Decrement(ctx context.Context, n int64) (int64, error) {
	v, err := h.client.DecrBy(ctx, h.key, n).Result()
	return v, rerrors.Translate(err)
}

// Load implements Node.
func (h *Integer) Load(ctx context.Context) (any, bool, error) {
	return h.Value(ctx)
}

// Reset implements Node.
func (h *Integer) Reset(ctx context.Context, v any) error {
	n, err := codec.As[int64](v)
	if err != nil {
		return err
	}
	return h.ResetValue(ctx, n)
}
