package handle

import (
	"context"
	"reflect"
	"time"
)

// Node is the contract shared by every handle and by hierarchical maps.
// Keys passed to Rename are in remote form (see codec.EscapeKey).
type Node interface {
	Key() string
	Name() string
	Variant() Variant
	Exists(ctx context.Context) (bool, error)
	Delete(ctx context.Context) error
	Rename(ctx context.Context, key string) error
	Expire(ctx context.Context, ttl time.Duration) error
	Persist(ctx context.Context) error
	TTL(ctx context.Context) (time.Duration, error)
	// Load returns the decoded value; the boolean is false when the value
	// is absent.
	Load(ctx context.Context) (any, bool, error)
	// Reset replaces the value, converting v to the handle's native shape.
	Reset(ctx context.Context, v any) error
}

// Equal reports whether the value held by n deeply equals v. An absent
// value equals only nil.
func Equal(ctx context.Context, n Node, v any) (bool, error) {
	cur, ok, err := n.Load(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return v == nil, nil
	}
	if other, isNode := v.(Node); isNode {
		ov, ok, err := other.Load(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		v = ov
	}
	return reflect.DeepEqual(cur, v), nil
}
