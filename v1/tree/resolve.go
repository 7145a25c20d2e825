package tree

import (
	"context"
	"reflect"

	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-rstore/v1/codec"
	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
	"github.com/mirkobrombin/go-rstore/v1/handle"
)

// payloadClass is the shape of the content of a string key.
type payloadClass int

const (
	classNone payloadClass = iota
	classText
	classInteger
	classBoolean
	classEncoded
	classSnapshot
	classMarker
)

type shape struct {
	kind  handle.Kind
	class payloadClass
}

type opener func(ctx context.Context, m *Map, key string, opts []handle.Option) (handle.Node, error)

// resolvers maps a stored shape to the handle that reads it. Adding a
// variant means adding a row.
var resolvers = map[shape]opener{
	{handle.KindString, classText}: func(ctx context.Context, m *Map, key string, opts []handle.Option) (handle.Node, error) {
		return handle.NewString(ctx, m.client, key, "", opts...)
	},
	{handle.KindString, classInteger}: func(ctx context.Context, m *Map, key string, opts []handle.Option) (handle.Node, error) {
		return handle.NewInteger(ctx, m.client, key, 0, opts...)
	},
	{handle.KindString, classBoolean}: func(ctx context.Context, m *Map, key string, opts []handle.Option) (handle.Node, error) {
		return handle.NewBoolean(ctx, m.client, key, false, opts...)
	},
	{handle.KindString, classEncoded}: func(ctx context.Context, m *Map, key string, opts []handle.Option) (handle.Node, error) {
		return handle.NewObject[any](ctx, m.client, key, nil, opts...)
	},
	{handle.KindString, classSnapshot}: func(ctx context.Context, m *Map, key string, opts []handle.Option) (handle.Node, error) {
		return handle.NewSnapshot(ctx, m.client, key, nil, opts...)
	},
	{handle.KindString, classMarker}: func(ctx context.Context, m *Map, key string, opts []handle.Option) (handle.Node, error) {
		return New(ctx, m.client, key, opts...)
	},
	{handle.KindList, classNone}: func(ctx context.Context, m *Map, key string, opts []handle.Option) (handle.Node, error) {
		return handle.NewList[any](ctx, m.client, key, nil, opts...)
	},
	{handle.KindSet, classNone}: func(ctx context.Context, m *Map, key string, opts []handle.Option) (handle.Node, error) {
		return handle.NewSet[any](ctx, m.client, key, nil, opts...)
	},
	{handle.KindZSet, classNone}: func(ctx context.Context, m *Map, key string, opts []handle.Option) (handle.Node, error) {
		return handle.NewSortedSet[any](ctx, m.client, key, nil, opts...)
	},
	{handle.KindHash, classNone}: func(ctx context.Context, m *Map, key string, opts []handle.Option) (handle.Node, error) {
		return handle.NewHash[any](ctx, m.client, key, nil, opts...)
	},
}

// creators build an empty handle of a variant chosen for a value being
// written.
var creators = map[handle.Variant]shape{
	handle.VariantString:    {handle.KindString, classText},
	handle.VariantInteger:   {handle.KindString, classInteger},
	handle.VariantBoolean:   {handle.KindString, classBoolean},
	handle.VariantObject:    {handle.KindString, classEncoded},
	handle.VariantSnapshot:  {handle.KindString, classSnapshot},
	handle.VariantMap:       {handle.KindString, classMarker},
	handle.VariantList:      {handle.KindList, classNone},
	handle.VariantSet:       {handle.KindSet, classNone},
	handle.VariantSortedSet: {handle.KindZSet, classNone},
	handle.VariantHash:      {handle.KindHash, classNone},
}

func classify(payload string) payloadClass {
	switch {
	case payload == codec.MapMarker:
		return classMarker
	case handle.IsInteger(payload):
		return classInteger
	case codec.IsSnapshot(payload):
		return classSnapshot
	case codec.IsEncoded(payload):
		return classEncoded
	case handle.IsBoolean(payload):
		return classBoolean
	}
	return classText
}

// shapeOf reads the stored shape of key. The class is only inspected for
// string keys.
func shapeOf(ctx context.Context, client redis.UniversalClient, key string) (shape, error) {
	k, err := client.Type(ctx, key).Result()
	if err != nil {
		return shape{}, rerrors.Translate(err)
	}
	s := shape{kind: handle.Kind(k)}
	if s.kind != handle.KindString {
		return s, nil
	}
	payload, err := client.Get(ctx, key).Result()
	if err == redis.Nil {
		return shape{kind: handle.KindNone}, nil
	}
	if err != nil {
		return shape{}, rerrors.Translate(err)
	}
	s.class = classify(payload)
	return s, nil
}

// variantOf picks the variant used to store v.
func variantOf(v any) handle.Variant {
	switch v.(type) {
	case string:
		return handle.VariantString
	case bool:
		return handle.VariantBoolean
	case handle.Ranked:
		return handle.VariantSortedSet
	case handle.Snapshot:
		return handle.VariantSnapshot
	case []byte, nil:
		return handle.VariantObject
	}
	rv := reflect.ValueOf(v)
	// uint and uint64 can exceed an int64 counter and are stored encoded.
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return handle.VariantInteger
	case reflect.Slice, reflect.Array:
		return handle.VariantList
	case reflect.Map:
		t := rv.Type()
		if t.Elem() == reflect.TypeOf(struct{}{}) {
			return handle.VariantSet
		}
		if t.Key().Kind() == reflect.String {
			return handle.VariantMap
		}
	}
	return handle.VariantObject
}
