package codec

import (
	"fmt"
	"strings"

	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
)

const (
	// ValueTag prefixes a serialized single value.
	ValueTag = "<enc:>"
	// SnapshotTag prefixes a serialized whole-map snapshot.
	SnapshotTag = "<snap:>"
	// MapMarker is the payload of the existence marker of a nested map.
	MapMarker = "<map:>"
)

// envelope carries the value so interface-typed payloads keep their
// concrete type across a round trip.
type envelope struct {
	V any
}

// Codec encodes and decodes values using a Serializer for tagged bodies.
// A Codec is stateless and safe for concurrent use.
type Codec struct {
	s Serializer
}

// New returns a Codec using s. If s is nil, GobSerializer is used.
func New(s Serializer) *Codec {
	if s == nil {
		s = GobSerializer{}
	}
	return &Codec{s: s}
}

// Default is the Codec used by handles constructed without WithCodec.
var Default = New(GobSerializer{})

// Encode returns the payload for v. Strings are returned unchanged; nil
// encodes to the bare ValueTag, which decodes back to nil.
func (c *Codec) Encode(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return c.EncodeTagged(v)
}

// EncodeTagged serializes v behind ValueTag regardless of its type.
func (c *Codec) EncodeTagged(v any) (string, error) {
	if v == nil {
		return ValueTag, nil
	}
	Register(v)
	data, err := c.s.Marshal(&envelope{V: v})
	if err != nil {
		return "", fmt.Errorf("rstore: encode %T: %w", v, err)
	}
	return ValueTag + string(data), nil
}

// Decode reverses Encode. Untagged content is returned as a plain string.
func (c *Codec) Decode(payload string) (any, error) {
	if !IsEncoded(payload) {
		return payload, nil
	}
	body := payload[len(ValueTag):]
	if body == "" {
		return nil, nil
	}
	var env envelope
	if err := c.s.Unmarshal([]byte(body), &env); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", rerrors.ErrTypeMismatch, err)
	}
	return env.V, nil
}

// EncodeSnapshot serializes a whole map behind SnapshotTag.
func (c *Codec) EncodeSnapshot(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	for _, v := range m {
		Register(v)
	}
	data, err := c.s.Marshal(&envelope{V: m})
	if err != nil {
		return "", fmt.Errorf("rstore: encode snapshot: %w", err)
	}
	return SnapshotTag + string(data), nil
}

// DecodeSnapshot reverses EncodeSnapshot. The boolean is false when payload
// does not carry SnapshotTag.
func (c *Codec) DecodeSnapshot(payload string) (map[string]any, bool, error) {
	if !IsSnapshot(payload) {
		return nil, false, nil
	}
	var env envelope
	if err := c.s.Unmarshal([]byte(payload[len(SnapshotTag):]), &env); err != nil {
		return nil, true, fmt.Errorf("%w: decode snapshot: %w", rerrors.ErrTypeMismatch, err)
	}
	m, err := As[map[string]any](env.V)
	if err != nil {
		return nil, true, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, true, nil
}

// IsEncoded reports whether payload carries ValueTag.
func IsEncoded(payload string) bool { return strings.HasPrefix(payload, ValueTag) }

// IsSnapshot reports whether payload carries SnapshotTag.
func IsSnapshot(payload string) bool { return strings.HasPrefix(payload, SnapshotTag) }

// DecodeAs decodes payload and converts the result to T.
func DecodeAs[T any](c *Codec, payload string) (T, error) {
	v, err := c.Decode(payload)
	if err != nil {
		var zero T
		return zero, err
	}
	return As[T](v)
}
