package handle

import (
	"context"
	"fmt"
	"reflect"

	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-rstore/v1/codec"
	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
)

// Operand is the other side of a set algebra operation: either a remote set,
// computed on the store, or local members, computed in process.
type Operand[T comparable] interface {
	operand() (key string, local []T, remote bool)
}

type localOperand[T comparable] []T

func (l localOperand[T]) operand() (string, []T, bool) { return "", l, false }

type keyOperand[T comparable] string

func (k keyOperand[T]) operand() (string, []T, bool) { return string(k), nil, true }

// Local wraps in-process members as an Operand.
func Local[T comparable](members ...T) Operand[T] { return localOperand[T](members) }

// RemoteKey wraps the remote key of a set as an Operand.
func RemoteKey[T comparable](key string) Operand[T] { return keyOperand[T](key) }

// Set manipulates a remote unordered set.
type Set[T comparable] struct {
	iterable
}

// NewSet opens key as a set. An empty def never creates the key.
func NewSet[T comparable](ctx context.Context, client redis.UniversalClient, key string, def []T, opts ...Option) (*Set[T], error) {
	s := ApplyOptions(opts)
	if len(def) == 0 {
		s.Create = false
	}
	b, err := newBase(client, key, s)
	if err != nil {
		return nil, err
	}
	h := &Set[T]{iterable: iterable{base: b}}
	check := func(ctx context.Context) (state, error) { return h.checkKind(ctx, KindSet) }
	reset := func(ctx context.Context) error { return h.ResetValue(ctx, def) }
	if err := h.open(ctx, s, VariantSet, check, reset); err != nil {
		return nil, err
	}
	if err := h.track(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Set[T]) operand() (string, []T, bool) { return h.key, nil, true }

// Variant implements Node.
func (h *Set[T]) Variant() Variant { return VariantSet }

// Value returns the members as a Go set.
func (h *Set[T]) Value(ctx context.Context) (map[T]struct{}, bool, error) {
	ps, err := h.client.SMembers(ctx, h.key).Result()
	if err != nil {
		return nil, false, rerrors.Translate(err)
	}
	m, err := h.decodeSet(ps)
	return m, len(m) > 0, err
}

// Members returns the members in store order.
func (h *Set[T]) Members(ctx context.Context) ([]T, error) {
	ps, err := h.client.SMembers(ctx, h.key).Result()
	if err != nil {
		return nil, rerrors.Translate(err)
	}
	return decodeAll[T](h.codec, ps)
}

// ResetValue replaces the members.
func (h *Set[T]) ResetValue(ctx context.Context, members []T) error {
	payloads, err := encodeAll(h.codec, members)
	if err != nil {
		return err
	}
	return h.mutate(ctx, func(pipe redis.Pipeliner) {
		pipe.Del(ctx, h.key)
		if len(payloads) > 0 {
			pipe.SAdd(ctx, h.key, payloads...)
		}
	})
}

// Len returns the cardinality.
func (h *Set[T]) Len(ctx context.Context) (int64, error) {
	n, err := h.client.SCard(ctx, h.key).Result()
	return n, rerrors.Translate(err)
}

// Add inserts v and reports whether it was new.
func (h *Set[T]) Add(ctx context.Context, v T) (bool, error) {
	p, err := h.codec.Encode(v)
	if err != nil {
		return false, err
	}
	var cmd *redis.IntCmd
	if err := h.mutate(ctx, func(pipe redis.Pipeliner) { cmd = pipe.SAdd(ctx, h.key, p) }); err != nil {
		return false, err
	}
	return cmd.Val() > 0, nil
}

// Remove deletes v and reports whether it was a member.
func (h *Set[T]) Remove(ctx context.Context, v T) (bool, error) {
	p, err := h.codec.Encode(v)
	if err != nil {
		return false, err
	}
	var cmd *redis.IntCmd
	if err := h.mutate(ctx, func(pipe redis.Pipeliner) { cmd = pipe.SRem(ctx, h.key, p) }); err != nil {
		return false, err
	}
	return cmd.Val() > 0, nil
}

// IsMember reports whether v is a member.
func (h *Set[T]) IsMember(ctx context.Context, v T) (bool, error) {
	p, err := h.codec.Encode(v)
	if err != nil {
		return false, err
	}
	ok, err := h.client.SIsMember(ctx, h.key, p).Result()
	return ok, rerrors.Translate(err)
}

// Pop removes and returns an arbitrary member.
func (h *Set[T]) Pop(ctx context.Context) (T, bool, error) {
	var zero T
	var cmd *redis.StringCmd
	if err := h.mutate(ctx, func(pipe redis.Pipeliner) { cmd = pipe.SPop(ctx, h.key) }); err != nil {
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

// Clear removes every member.
func (h *Set[T]) Clear(ctx context.Context) error {
	return h.Delete(ctx)
}

// Intersection returns the members shared with other.
func (h *Set[T]) Intersection(ctx context.Context, other Operand[T]) (map[T]struct{}, error) {
	return h.algebra(ctx, other, h.client.SInter, intersect[T])
}

// Union returns the members of either set.
func (h *Set[T]) Union(ctx context.Context, other Operand[T]) (map[T]struct{}, error) {
	return h.algebra(ctx, other, h.client.SUnion, union[T])
}

// Difference returns the members not in other.
func (h *Set[T]) Difference(ctx context.Context, other Operand[T]) (map[T]struct{}, error) {
	return h.algebra(ctx, other, h.client.SDiff, difference[T])
}

// IntersectionUpdate keeps only the members shared with other.
func (h *Set[T]) IntersectionUpdate(ctx context.Context, other Operand[T]) error {
	return h.algebraUpdate(ctx, other, func(pipe redis.Pipeliner, keys ...string) {
		pipe.SInterStore(ctx, h.key, keys...)
	}, intersect[T])
}

// UnionUpdate adds the members of other.
func (h *Set[T]) UnionUpdate(ctx context.Context, other Operand[T]) error {
	return h.algebraUpdate(ctx, other, func(pipe redis.Pipeliner, keys ...string) {
		pipe.SUnionStore(ctx, h.key, keys...)
	}, union[T])
}

// DifferenceUpdate removes the members of other.
func (h *Set[T]) DifferenceUpdate(ctx context.Context, other Operand[T]) error {
	return h.algebraUpdate(ctx, other, func(pipe redis.Pipeliner, keys ...string) {
		pipe.SDiffStore(ctx, h.key, keys...)
	}, difference[T])
}

// Load implements Node.
func (h *Set[T]) Load(ctx context.Context) (any, bool, error) {
	return h.Value(ctx)
}

// Reset implements Node.
func (h *Set[T]) Reset(ctx context.Context, v any) error {
	vals, err := toSlice[T](v)
	if err != nil {
		return err
	}
	return h.ResetValue(ctx, vals)
}

func (h *Set[T]) algebra(ctx context.Context, other Operand[T], remote func(context.Context, ...string) *redis.StringSliceCmd, local func(a, b map[T]struct{}) map[T]struct{}) (map[T]struct{}, error) {
	key, members, isRemote := other.operand()
	if isRemote {
		ps, err := remote(ctx, h.key, key).Result()
		if err != nil {
			return nil, rerrors.Translate(err)
		}
		return h.decodeSet(ps)
	}
	cur, _, err := h.Value(ctx)
	if err != nil {
		return nil, err
	}
	return local(cur, toSet(members)), nil
}

func (h *Set[T]) algebraUpdate(ctx context.Context, other Operand[T], store func(pipe redis.Pipeliner, keys ...string), local func(a, b map[T]struct{}) map[T]struct{}) error {
	key, members, isRemote := other.operand()
	if isRemote {
		return h.mutate(ctx, func(pipe redis.Pipeliner) { store(pipe, h.key, key) })
	}
	cur, _, err := h.Value(ctx)
	if err != nil {
		return err
	}
	res := local(cur, toSet(members))
	out := make([]T, 0, len(res))
	for m := range res {
		out = append(out, m)
	}
	return h.ResetValue(ctx, out)
}

func (h *Set[T]) decodeSet(payloads []string) (map[T]struct{}, error) {
	out := make(map[T]struct{}, len(payloads))
	for _, p := range payloads {
		v, err := codec.DecodeAs[T](h.codec, p)
		if err != nil {
			return nil, err
		}
		if rv := reflect.ValueOf(v); rv.IsValid() && !rv.Comparable() {
			return nil, fmt.Errorf("%w: set member %T is not comparable", rerrors.ErrTypeMismatch, v)
		}
		out[v] = struct{}{}
	}
	return out, nil
}

func toSet[T comparable](members []T) map[T]struct{} {
	out := make(map[T]struct{}, len(members))
	for _, m := range members {
		out[m] = struct{}{}
	}
	return out
}

func intersect[T comparable](a, b map[T]struct{}) map[T]struct{} {
	out := make(map[T]struct{})
	for m := range a {
		if _, ok := b[m]; ok {
			out[m] = struct{}{}
		}
	}
	return out
}

func union[T comparable](a, b map[T]struct{}) map[T]struct{} {
	out := make(map[T]struct{}, len(a)+len(b))
	for m := range a {
		out[m] = struct{}{}
	}
	for m := range b {
		out[m] = struct{}{}
	}
	return out
}

func difference[T comparable](a, b map[T]struct{}) map[T]struct{} {
	out := make(map[T]struct{})
	for m := range a {
		if _, ok := b[m]; !ok {
			out[m] = struct{}{}
		}
	}
	return out
}
