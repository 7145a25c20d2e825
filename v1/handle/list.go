package handle

import (
	"context"

	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-rstore/v1/codec"
	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
)

// List manipulates a remote list. Elements are encoded individually, so a
// list of strings stays readable by other clients.
type List[T any] struct {
	iterable
}

// NewList opens key as a list. An empty def never creates the key: the
// store cannot hold an empty list.
func NewList[T any](ctx context.Context, client redis.UniversalClient, key string, def []T, opts ...Option) (*List[T], error) {
	s := ApplyOptions(opts)
	if len(def) == 0 {
		s.Create = false
	}
	b, err := newBase(client, key, s)
	if err != nil {
		return nil, err
	}
	h := &List[T]{iterable: iterable{base: b}}
	check := func(ctx context.Context) (state, error) { return h.checkKind(ctx, KindList) }
	reset := func(ctx context.Context) error { return h.ResetValue(ctx, def) }
	if err := h.open(ctx, s, VariantList, check, reset); err != nil {
		return nil, err
	}
	if err := h.track(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// Variant implements Node.
func (h *List[T]) Variant() Variant { return VariantList }

// Value returns every element in order. The boolean is false for an empty
// (absent) list.
func (h *List[T]) Value(ctx context.Context) ([]T, bool, error) {
	vals, err := h.Range(ctx, 0, -1)
	if err != nil {
		return nil, false, err
	}
	return vals, len(vals) > 0, nil
}

// ResetValue replaces the list content.
func (h *List[T]) ResetValue(ctx context.Context, values []T) error {
	payloads, err := encodeAll(h.codec, values)
	if err != nil {
		return err
	}
	return h.mutate(ctx, func(pipe redis.Pipeliner) {
		pipe.Del(ctx, h.key)
		if len(payloads) > 0 {
			pipe.RPush(ctx, h.key, payloads...)
		}
	})
}

// Len returns the number of elements.
func (h *List[T]) Len(ctx context.Context) (int64, error) {
	n, err := h.client.LLen(ctx, h.key).Result()
	return n, rerrors.Translate(err)
}

// Index returns the element at i; negative indexes count from the tail.
func (h *List[T]) Index(ctx context.Context, i int64) (T, bool, error) {
	var zero T
	p, err := h.client.LIndex(ctx, h.key, i).Result()
	if err == redis.Nil {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, rerrors.Translate(err)
	}
	v, err := codec.DecodeAs[T](h.codec, p)
	return v, err == nil, err
}

// SetIndex overwrites the element at i.
func (h *List[T]) SetIndex(ctx context.Context, i int64, v T) error {
	p, err := h.codec.Encode(v)
	if err != nil {
		return err
	}
	var cmd *redis.StatusCmd
	if err := h.mutate(ctx, func(pipe redis.Pipeliner) { cmd = pipe.LSet(ctx, h.key, i, p) }); err != nil {
		return err
	}
	return rerrors.Translate(cmd.Err())
}

// Range returns the elements between start and stop, both inclusive, with
// the store's negative index convention.
func (h *List[T]) Range(ctx context.Context, start, stop int64) ([]T, error) {
	ps, err := h.client.LRange(ctx, h.key, start, stop).Result()
	if err != nil {
		return nil, rerrors.Translate(err)
	}
	return decodeAll[T](h.codec, ps)
}

// Append pushes v to the tail and returns the new length.
func (h *List[T]) Append(ctx context.Context, v T) (int64, error) {
	return h.Extend(ctx, v)
}

// Extend pushes values to the tail and returns the new length.
func (h *List[T]) Extend(ctx context.Context, values ...T) (int64, error) {
	if len(values) == 0 {
		return h.Len(ctx)
	}
	payloads, err := encodeAll(h.codec, values)
	if err != nil {
		return 0, err
	}
	var cmd *redis.IntCmd
	if err := h.mutate(ctx, func(pipe redis.Pipeliner) { cmd = pipe.RPush(ctx, h.key, payloads...) }); err != nil {
		return 0, err
	}
	return cmd.Val(), nil
}

// Pop removes and returns the head element.
func (h *List[T]) Pop(ctx context.Context) (T, bool, error) {
	var zero T
	var cmd *redis.StringCmd
	if err := h.mutate(ctx, func(pipe redis.Pipeliner) { cmd = pipe.LPop(ctx, h.key) }); err != nil {
		return zero, false, err
	}
	p, err := cmd.Result()
	if err == redis.Nil {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, rerrors.Translate(err)
	}
	v, err := codec.DecodeAs[T](h.codec, p)
	return v, err == nil, err
}

// Remove deletes the first element equal to v and reports whether one was
// found.
func (h *List[T]) Remove(ctx context.Context, v T) (bool, error) {
	p, err := h.codec.Encode(v)
	if err != nil {
		return false, err
	}
	var cmd *redis.IntCmd
	if err := h.mutate(ctx, func(pipe redis.Pipeliner) { cmd = pipe.LRem(ctx, h.key, 1, p) }); err != nil {
		return false, err
	}
	return cmd.Val() > 0, nil
}

// Count returns the number of elements equal to v.
func (h *List[T]) Count(ctx context.Context, v T) (int, error) {
	p, err := h.codec.Encode(v)
	if err != nil {
		return 0, err
	}
	ps, err := h.client.LRange(ctx, h.key, 0, -1).Result()
	if err != nil {
		return 0, rerrors.Translate(err)
	}
	n := 0
	for _, e := range ps {
		if e == p {
			n++
		}
	}
	return n, nil
}

// Contains reports whether any element equals v.
func (h *List[T]) Contains(ctx context.Context, v T) (bool, error) {
	n, err := h.Count(ctx, v)
	return n > 0, err
}

// Sorted returns the elements ordered lexically by the store.
func (h *List[T]) Sorted(ctx context.Context) ([]T, error) {
	ps, err := h.client.Sort(ctx, h.key, &redis.Sort{Alpha: true}).Result()
	if err != nil {
		return nil, rerrors.Translate(err)
	}
	return decodeAll[T](h.codec, ps)
}

// Load implements Node.
func (h *List[T]) Load(ctx context.Context) (any, bool, error) {
	return h.Value(ctx)
}

// Reset implements Node.
func (h *List[T]) Reset(ctx context.Context, v any) error {
	vals, err := toSlice[T](v)
	if err != nil {
		return err
	}
	return h.ResetValue(ctx, vals)
}
