package handle

import (
	"context"
	"fmt"
	"sort"

	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-rstore/v1/codec"
	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
)

// Hash manipulates a remote field map. Fields are read and written one at
// a time; only the whole key can expire.
type Hash[T any] struct {
	iterable
}

// NewHash opens key as a hash. An empty def never creates the key.
func NewHash[T any](ctx context.Context, client redis.UniversalClient, key string, def map[string]T, opts ...Option) (*Hash[T], error) {
	s := ApplyOptions(opts)
	if len(def) == 0 {
		s.Create = false
	}
	b, err := newBase(client, key, s)
	if err != nil {
		return nil, err
	}
	h := &Hash[T]{iterable: iterable{base: b}}
	check := func(ctx context.Context) (state, error) { return h.checkKind(ctx, KindHash) }
	reset := func(ctx context.Context) error { return h.ResetValue(ctx, def) }
	if err := h.open(ctx, s, VariantHash, check, reset); err != nil {
		return nil, err
	}
	if err := h.track(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// Variant implements Node.
func (h *Hash[T]) Variant() Variant { return VariantHash }

// Value returns every field.
func (h *Hash[T]) Value(ctx context.Context) (map[string]T, bool, error) {
	raw, err := h.client.HGetAll(ctx, h.key).Result()
	if err != nil {
		return nil, false, rerrors.Translate(err)
	}
	out := make(map[string]T, len(raw))
	for f, p := range raw {
		v, err := codec.DecodeAs[T](h.codec, p)
		if err != nil {
			return nil, false, err
		}
		out[f] = v
	}
	return out, len(out) > 0, nil
}

// ResetValue replaces every field.
func (h *Hash[T]) ResetValue(ctx context.Context, fields map[string]T) error {
	args, err := h.fieldArgs(fields)
	if err != nil {
		return err
	}
	return h.mutate(ctx, func(pipe redis.Pipeliner) {
		pipe.Del(ctx, h.key)
		if len(args) > 0 {
			pipe.HSet(ctx, h.key, args...)
		}
	})
}

// Update writes fields, keeping the others.
func (h *Hash[T]) Update(ctx context.Context, fields map[string]T) error {
	if len(fields) == 0 {
		return nil
	}
	args, err := h.fieldArgs(fields)
	if err != nil {
		return err
	}
	return h.mutate(ctx, func(pipe redis.Pipeliner) { pipe.HSet(ctx, h.key, args...) })
}

// Get returns field, or ErrNotFound.
func (h *Hash[T]) Get(ctx context.Context, field string) (T, error) {
	v, ok, err := h.Lookup(ctx, field)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, fmt.Errorf("%w: field %q of %s", rerrors.ErrNotFound, field, h.key)
	}
	return v, nil
}

// Lookup returns field and whether it exists.
func (h *Hash[T]) Lookup(ctx context.Context, field string) (T, bool, error) {
	var zero T
	p, err := h.client.HGet(ctx, h.key, field).Result()
	if err == redis.Nil {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, rerrors.Translate(err)
	}
	v, err := codec.DecodeAs[T](h.codec, p)
	return v, err == nil, err
}

// Set writes one field.
func (h *Hash[T]) Set(ctx context.Context, field string, v T) error {
	return h.Update(ctx, map[string]T{field: v})
}

// Remove deletes field and reports whether it existed.
func (h *Hash[T]) Remove(ctx context.Context, field string) (bool, error) {
	var cmd *redis.IntCmd
	if err := h.mutate(ctx, func(pipe redis.Pipeliner) { cmd = pipe.HDel(ctx, h.key, field) }); err != nil {
		return false, err
	}
	return cmd.Val() > 0, nil
}

// Has reports whether field exists.
func (h *Hash[T]) Has(ctx context.Context, field string) (bool, error) {
	ok, err := h.client.HExists(ctx, h.key, field).Result()
	return ok, rerrors.Translate(err)
}

// Keys returns the field names, sorted.
func (h *Hash[T]) Keys(ctx context.Context) ([]string, error) {
	ks, err := h.client.HKeys(ctx, h.key).Result()
	if err != nil {
		return nil, rerrors.Translate(err)
	}
	sort.Strings(ks)
	return ks, nil
}

// Values returns the field values in store order.
func (h *Hash[T]) Values(ctx context.Context) ([]T, error) {
	ps, err := h.client.HVals(ctx, h.key).Result()
	if err != nil {
		return nil, rerrors.Translate(err)
	}
	return decodeAll[T](h.codec, ps)
}

// Len returns the number of fields.
func (h *Hash[T]) Len(ctx context.Context) (int64, error) {
	n, err := h.client.HLen(ctx, h.key).Result()
	return n, rerrors.Translate(err)
}

// Pop removes field and returns its value, or ErrNotFound.
func (h *Hash[T]) Pop(ctx context.Context, field string) (T, error) {
	v, err := h.Get(ctx, field)
	if err != nil {
		return v, err
	}
	_, err = h.Remove(ctx, field)
	return v, err
}

// SetDefault returns field, writing def first when it is missing.
func (h *Hash[T]) SetDefault(ctx context.Context, field string, def T) (T, error) {
	v, ok, err := h.Lookup(ctx, field)
	if err != nil || ok {
		return v, err
	}
	if err := h.Set(ctx, field, def); err != nil {
		return def, err
	}
	return def, nil
}

// Move renames field from to field to. A missing from is ErrNotFound.
func (h *Hash[T]) Move(ctx context.Context, from, to string) error {
	if from == to {
		return nil
	}
	p, err := h.client.HGet(ctx, h.key, from).Result()
	if err == redis.Nil {
		return fmt.Errorf("%w: field %q of %s", rerrors.ErrNotFound, from, h.key)
	}
	if err != nil {
		return rerrors.Translate(err)
	}
	return h.mutate(ctx, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, h.key, to, p)
		pipe.HDel(ctx, h.key, from)
	})
}

// Clear removes every field.
func (h *Hash[T]) Clear(ctx context.Context) error {
	return h.Delete(ctx)
}

// Load implements Node.
func (h *Hash[T]) Load(ctx context.Context) (any, bool, error) {
	return h.Value(ctx)
}

// Reset implements Node.
func (h *Hash[T]) Reset(ctx context.Context, v any) error {
	m, err := toStringMap[T](v)
	if err != nil {
		return err
	}
	return h.ResetValue(ctx, m)
}

func (h *Hash[T]) fieldArgs(fields map[string]T) ([]any, error) {
	args := make([]any, 0, 2*len(fields))
	for f, v := range fields {
		p, err := h.codec.Encode(v)
		if err != nil {
			return nil, err
		}
		args = append(args, f, p)
	}
	return args, nil
}
