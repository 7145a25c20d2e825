package codec

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"reflect"
	"sync"
	"time"
)

// Serializer defines methods for encoding and decoding the body of a tagged
// payload.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONSerializer implements Serializer using encoding/json. Numbers decoded
// into interface values come back as float64.
type JSONSerializer struct{}

func (JSONSerializer) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONSerializer) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// GobSerializer implements Serializer using encoding/gob. It preserves the
// concrete type of values carried in interfaces, provided the type has been
// registered with Register.
type GobSerializer struct{}

func (GobSerializer) Marshal(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := gob.NewEncoder(&b)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (GobSerializer) Unmarshal(data []byte, v any) error {
	b := bytes.NewBuffer(data)
	dec := gob.NewDecoder(b)
	return dec.Decode(v)
}

var registered sync.Map

// Register records a concrete type so GobSerializer can carry it inside an
// interface value. Basic types and slices of them are always registered.
// Codec registers every value it encodes and handles register their type
// parameter, so calling Register by hand is only needed for types that
// arrive nested inside an interface field. Repeated calls and nil are
// no-ops.
func Register(v any) {
	if v == nil {
		return
	}
	if _, loaded := registered.LoadOrStore(reflect.TypeOf(v), struct{}{}); loaded {
		return
	}
	defer func() {
		// gob panics on a second name for a type it already knows; the
		// first registration stays in effect.
		_ = recover()
	}()
	gob.Register(v)
}

func init() {
	Register(map[string]any{})
	Register([]any{})
	Register(map[string]string{})
	Register(map[string]int{})
	Register(map[string]int64{})
	Register(map[string]float64{})
	Register(map[string]bool{})
	Register(time.Time{})
	Register(time.Duration(0))
}
