package handle

import (
	"context"

	redis "github.com/redis/go-redis/v9"

	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
)

// SortedSet manipulates a remote ranked set. Members added without an
// explicit score rank after every existing member.
type SortedSet[T any] struct {
	iterable
}

// NewSortedSet opens key as a sorted set ranked in the order of def.
func NewSortedSet[T any](ctx context.Context, client redis.UniversalClient, key string, def []T, opts ...Option) (*SortedSet[T], error) {
	s := ApplyOptions(opts)
	if len(def) == 0 {
		s.Create = false
	}
	b, err := newBase(client, key, s)
	if err != nil {
		return nil, err
	}
	h := &SortedSet[T]{iterable: iterable{base: b}}
	check := func(ctx context.Context) (state, error) { return h.checkKind(ctx, KindZSet) }
	reset := func(ctx context.Context) error { return h.ResetValue(ctx, def) }
	if err := h.open(ctx, s, VariantSortedSet, check, reset); err != nil {
		return nil, err
	}
	if err := h.track(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// Variant implements Node.
func (h *SortedSet[T]) Variant() Variant { return VariantSortedSet }

// Value returns the members by ascending score.
func (h *SortedSet[T]) Value(ctx context.Context) ([]T, bool, error) {
	vals, err := h.Range(ctx, 0, -1)
	if err != nil {
		return nil, false, err
	}
	return vals, len(vals) > 0, nil
}

// ResetValue replaces the members, ranked in slice order.
func (h *SortedSet[T]) ResetValue(ctx context.Context, members []T) error {
	zs := make([]redis.Z, 0, len(members))
	for i, m := range members {
		p, err := h.codec.Encode(m)
		if err != nil {
			return err
		}
		zs = append(zs, redis.Z{Score: float64(i), Member: p})
	}
	return h.mutate(ctx, func(pipe redis.Pipeliner) {
		pipe.Del(ctx, h.key)
		if len(zs) > 0 {
			pipe.ZAdd(ctx, h.key, zs...)
		}
	})
}

// Len returns the cardinality.
func (h *SortedSet[T]) Len(ctx context.Context) (int64, error) {
	n, err := h.client.ZCard(ctx, h.key).Result()
	return n, rerrors.Translate(err)
}

// Add inserts v ranked last and reports whether it was new. An existing
// member moves to the end.
func (h *SortedSet[T]) Add(ctx context.Context, v T) (bool, error) {
	n, err := h.Len(ctx)
	if err != nil {
		return false, err
	}
	return h.AddScore(ctx, v, float64(n))
}

// AddScore inserts v with an explicit score.
func (h *SortedSet[T]) AddScore(ctx context.Context, v T, score float64) (bool, error) {
	p, err := h.codec.Encode(v)
	if err != nil {
		return false, err
	}
	var cmd *redis.IntCmd
	if err := h.mutate(ctx, func(pipe redis.Pipeliner) {
		cmd = pipe.ZAdd(ctx, h.key, redis.Z{Score: score, Member: p})
	}); err != nil {
		return false, err
	}
	return cmd.Val() > 0, nil
}

// Score returns the score of v.
func (h *SortedSet[T]) Score(ctx context.Context, v T) (float64, bool, error) {
	p, err := h.codec.Encode(v)
	if err != nil {
		return 0, false, err
	}
	s, err := h.client.ZScore(ctx, h.key, p).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, rerrors.Translate(err)
	}
	return s, true, nil
}

// Remove deletes v and reports whether it was a member.
func (h *SortedSet[T]) Remove(ctx context.Context, v T) (bool, error) {
	p, err := h.codec.Encode(v)
	if err != nil {
		return false, err
	}
	var cmd *redis.IntCmd
	if err := h.mutate(ctx, func(pipe redis.Pipeliner) { cmd = pipe.ZRem(ctx, h.key, p) }); err != nil {
		return false, err
	}
	return cmd.Val() > 0, nil
}

// Index returns the member at rank i; negative ranks count from the top.
func (h *SortedSet[T]) Index(ctx context.Context, i int64) (T, bool, error) {
	var zero T
	vals, err := h.Range(ctx, i, i)
	if err != nil || len(vals) == 0 {
		return zero, false, err
	}
	return vals[0], true, nil
}

// Range returns the members ranked between start and stop, both inclusive.
func (h *SortedSet[T]) Range(ctx context.Context, start, stop int64) ([]T, error) {
	ps, err := h.client.ZRange(ctx, h.key, start, stop).Result()
	if err != nil {
		return nil, rerrors.Translate(err)
	}
	return decodeAll[T](h.codec, ps)
}

// Contains reports whether v is a member.
func (h *SortedSet[T]) Contains(ctx context.Context, v T) (bool, error) {
	_, ok, err := h.Score(ctx, v)
	return ok, err
}

// Clear removes every member.
func (h *SortedSet[T]) Clear(ctx context.Context) error {
	return h.Delete(ctx)
}

// Load implements Node.
func (h *SortedSet[T]) Load(ctx context.Context) (any, bool, error) {
	return h.Value(ctx)
}

// Reset implements Node.
func (h *SortedSet[T]) Reset(ctx context.Context, v any) error {
	vals, err := toSlice[T](v)
	if err != nil {
		return err
	}
	return h.ResetValue(ctx, vals)
}
