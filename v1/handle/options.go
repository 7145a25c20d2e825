package handle

import (
	"time"

	"github.com/mirkobrombin/go-rstore/v1/codec"
)

// Settings is the resolved form of a set of Options.
type Settings struct {
	// Create reinitializes an absent or mismatched key with the default.
	Create bool
	// Expires, when positive, is applied on construction and refreshed by
	// scalar writes.
	Expires time.Duration
	// Codec encodes non-string values.
	Codec *codec.Codec
	// Escaped reports that the key is already in remote form.
	Escaped bool
}

// Option configures a handle.
type Option func(*Settings)

// Lookup opens the handle without creating the key. Absence is then a
// valid outcome reported by Value rather than an error.
func Lookup() Option {
	return func(s *Settings) { s.Create = false }
}

// WithExpiry sets an expiration applied when the handle is constructed.
func WithExpiry(d time.Duration) Option {
	return func(s *Settings) { s.Expires = d }
}

// WithCodec sets the codec used for non-string values.
func WithCodec(c *codec.Codec) Option {
	return func(s *Settings) {
		if c != nil {
			s.Codec = c
		}
	}
}

// Escaped declares the key to be in remote form already, bypassing
// codec.EscapeKey. Keys derived from another handle's Key are escaped.
func Escaped() Option {
	return func(s *Settings) { s.Escaped = true }
}

// ApplyOptions resolves opts over the defaults.
func ApplyOptions(opts []Option) Settings {
	s := Settings{Create: true, Codec: codec.Default}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
