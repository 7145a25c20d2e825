package codec

import (
	"encoding/json"
	"fmt"
	"reflect"

	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
)

// As converts v to T. Identical types are asserted directly, numeric kinds
// are converted when T holds the value exactly, and anything else goes
// through a JSON round trip so values decoded by JSONSerializer (or plain
// strings holding JSON) still land in T.
func As[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	target := reflect.TypeOf((*T)(nil)).Elem()
	rv := reflect.ValueOf(v)
	if convertible(rv.Type(), target) {
		out := rv.Convert(target)
		if !exact(rv, out) {
			return zero, fmt.Errorf("%w: %v does not fit %s", rerrors.ErrTypeMismatch, v, target)
		}
		return out.Interface().(T), nil
	}
	var out T
	var data []byte
	if s, ok := v.(string); ok {
		data = []byte(s)
	} else {
		var err error
		if data, err = json.Marshal(v); err != nil {
			return zero, fmt.Errorf("%w: %T to %s", rerrors.ErrTypeMismatch, v, target)
		}
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("%w: %T to %s", rerrors.ErrTypeMismatch, v, target)
	}
	return out, nil
}

func convertible(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	if from.Kind() == to.Kind() {
		return true
	}
	return isNumeric(from.Kind()) && isNumeric(to.Kind())
}

// exact reports whether out carries the same number as in. Float to float
// conversions only lose precision and are always accepted.
func exact(in, out reflect.Value) bool {
	if !isNumeric(in.Kind()) || !isNumeric(out.Kind()) {
		return true
	}
	if isFloat(in.Kind()) && isFloat(out.Kind()) {
		return true
	}
	if sign(in) != sign(out) {
		return false
	}
	return out.Convert(in.Type()).Equal(in)
}

func sign(v reflect.Value) int {
	switch {
	case v.CanInt():
		if v.Int() < 0 {
			return -1
		}
	case v.CanFloat():
		if v.Float() < 0 {
			return -1
		}
	}
	return 1
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
