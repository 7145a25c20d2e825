package handle

import (
	"context"

	redis "github.com/redis/go-redis/v9"

	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
)

// Marker is a string key holding a fixed sentinel payload. Values spread
// over several keys use one to record their own existence, so an empty
// value stays distinguishable from an absent one.
type Marker struct {
	base
	payload string
}

// NewMarker opens key as a marker holding payload. Any other content is
// discarded.
func NewMarker(ctx context.Context, client redis.UniversalClient, key, payload string, variant Variant, opts ...Option) (*Marker, error) {
	s := ApplyOptions(opts)
	b, err := newBase(client, key, s)
	if err != nil {
		return nil, err
	}
	h := &Marker{base: b, payload: payload}
	check := func(ctx context.Context) (state, error) {
		return h.checkString(ctx, func(p string) bool { return p == payload })
	}
	reset := func(ctx context.Context) error { return h.set(ctx, payload) }
	if err := h.open(ctx, s, variant, check, reset); err != nil {
		return nil, err
	}
	return h, nil
}

// Ensure writes the marker if it is missing, leaving an existing one and
// its expiration untouched.
func (h *Marker) Ensure(ctx context.Context) error {
	return rerrors.Translate(h.client.SetNX(ctx, h.key, h.payload, 0).Err())
}
