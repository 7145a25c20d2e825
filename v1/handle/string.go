package handle

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-rstore/v1/codec"
	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
)

// String manipulates a remote string holding plain text.
type String struct {
	base
}

// NewString opens key as a plain text value. Content carrying the encoded
// value tag is not plain text and is replaced by def.
func NewString(ctx context.Context, client redis.UniversalClient, key string, def string, opts ...Option) (*String, error) {
	s := ApplyOptions(opts)
	b, err := newBase(client, key, s)
	if err != nil {
		return nil, err
	}
	h := &String{base: b}
	check := func(ctx context.Context) (state, error) {
		return h.checkString(ctx, func(p string) bool { return !codec.IsEncoded(p) })
	}
	reset := func(ctx context.Context) error { return h.ResetValue(ctx, def) }
	if err := h.open(ctx, s, VariantString, check, reset); err != nil {
		return nil, err
	}
	return h, nil
}

// Variant implements Node.
func (h *String) Variant() Variant { return VariantString }

// Value returns the stored text.
func (h *String) Value(ctx context.Context) (string, bool, error) {
	return h.get(ctx)
}

// ResetValue replaces the stored text.
func (h *String) ResetValue(ctx context.Context, v string) error {
	return h.set(ctx, v)
}

// Append appends v and returns the new length.
func (h *String) Append(ctx context.Context, v string) (int64, error) {
	n, err := h.client.Append(ctx, h.key, v).Result()
	return n, rerrors.Translate(err)
}

// Len returns the length of the stored text.
func (h *String) Len(ctx context.Context) (int64, error) {
	n, err := h.client.StrLen(ctx, h.key).Result()
	return n, rerrors.Translate(err)
}

// Load implements Node.
func (h *String) Load(ctx context.Context) (any, bool, error) {
	return h.Value(ctx)
}

// Reset implements Node. Non-string values are formatted with %v.
func (h *String) Reset(ctx context.Context, v any) error {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	return h.ResetValue(ctx, s)
}
