package errors

import (
	"context"
	"errors"

	redis "github.com/redis/go-redis/v9"
)

var (
	ErrTimeout          = errors.New("timeout")
	ErrConnectionClosed = errors.New("connection closed")

	// ErrNotFound is returned by indexed access to a key or field that does
	// not exist. Callers guard with an existence check first.
	ErrNotFound = errors.New("rstore: not found")
	// ErrTypeMismatch is returned when a value cannot be converted to the
	// native type of the handle it is written to or read from.
	ErrTypeMismatch = errors.New("rstore: type mismatch")
	// ErrEmptyKey is returned when a handle is constructed without a key.
	ErrEmptyKey = errors.New("rstore: empty key")
)

// Translate maps store client errors to the package sentinels. redis.Nil is
// not an error at this layer and maps to nil.
func Translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, redis.ErrClosed):
		return ErrConnectionClosed
	}
	return err
}
