package handle

import (
	"fmt"
	"reflect"

	"github.com/mirkobrombin/go-rstore/v1/codec"
	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
)

// toSlice converts a slice, an array or the keys of a set-like map
// (map[K]struct{} or map[K]bool) to []T.
func toSlice[T any](v any) ([]T, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.([]T); ok {
		return s, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]T, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			e, err := codec.As[T](rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	case reflect.Map:
		out := make([]T, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			if val := iter.Value(); val.Kind() == reflect.Bool && !val.Bool() {
				continue
			}
			e, err := codec.As[T](iter.Key().Interface())
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T is not a collection", rerrors.ErrTypeMismatch, v)
}

// toStringMap converts any map keyed by strings to map[string]T.
func toStringMap[T any](v any) (map[string]T, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]T); ok {
		return m, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: %T is not a string-keyed map", rerrors.ErrTypeMismatch, v)
	}
	out := make(map[string]T, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		e, err := codec.As[T](iter.Value().Interface())
		if err != nil {
			return nil, err
		}
		out[iter.Key().String()] = e
	}
	return out, nil
}

// decodeAll decodes a batch of payloads.
func decodeAll[T any](c *codec.Codec, payloads []string) ([]T, error) {
	out := make([]T, 0, len(payloads))
	for _, p := range payloads {
		v, err := codec.DecodeAs[T](c, p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// encodeAll encodes values for a variadic store command.
func encodeAll[T any](c *codec.Codec, values []T) ([]any, error) {
	out := make([]any, 0, len(values))
	for _, v := range values {
		p, err := c.Encode(v)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
