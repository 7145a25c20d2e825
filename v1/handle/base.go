package handle

import (
	"context"
	"log/slog"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-rstore/v1/codec"
	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
	"github.com/mirkobrombin/go-rstore/v1/metrics"
)

type state int

const (
	stateAbsent state = iota
	stateMatch
	stateMismatch
)

type base struct {
	client  redis.UniversalClient
	codec   *codec.Codec
	key     string
	expires time.Duration
	coerced bool
}

func newBase(client redis.UniversalClient, key string, s Settings) (base, error) {
	if key == "" {
		return base{}, rerrors.ErrEmptyKey
	}
	if !s.Escaped {
		key = codec.EscapeKey(key)
	}
	return base{client: client, codec: s.Codec, key: key, expires: s.Expires}, nil
}

// open runs the construction protocol shared by every variant.
func (b *base) open(ctx context.Context, s Settings, v Variant, check func(context.Context) (state, error), reset func(context.Context) error) error {
	st, err := check(ctx)
	if err != nil {
		return err
	}
	if st == stateMismatch {
		if err := b.client.Del(ctx, b.key).Err(); err != nil {
			return rerrors.Translate(err)
		}
		b.coerced = true
		metrics.CoercionCounter.WithLabelValues(v.String()).Inc()
		slog.Info("rstore: type coerced, prior value discarded", "key", b.key, "variant", v.String())
	}
	if st != stateMatch && s.Create {
		if err := reset(ctx); err != nil {
			return err
		}
	}
	if s.Expires > 0 {
		return rerrors.Translate(b.client.PExpire(ctx, b.key, s.Expires).Err())
	}
	return nil
}

func (b *base) kind(ctx context.Context) (Kind, error) {
	k, err := b.client.Type(ctx, b.key).Result()
	if err != nil {
		return KindNone, rerrors.Translate(err)
	}
	return Kind(k), nil
}

func (b *base) checkKind(ctx context.Context, want Kind) (state, error) {
	k, err := b.kind(ctx)
	if err != nil {
		return stateAbsent, err
	}
	switch k {
	case KindNone:
		return stateAbsent, nil
	case want:
		return stateMatch, nil
	}
	return stateMismatch, nil
}

// checkString matches string keys whose payload satisfies accept.
func (b *base) checkString(ctx context.Context, accept func(string) bool) (state, error) {
	st, err := b.checkKind(ctx, KindString)
	if err != nil || st != stateMatch {
		return st, err
	}
	payload, ok, err := b.get(ctx)
	if err != nil {
		return stateAbsent, err
	}
	if !ok {
		return stateAbsent, nil
	}
	if accept(payload) {
		return stateMatch, nil
	}
	return stateMismatch, nil
}

func (b *base) get(ctx context.Context) (string, bool, error) {
	v, err := b.client.Get(ctx, b.key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, rerrors.Translate(err)
	}
	return v, true, nil
}

// set writes a string payload. The handle's own expiry is refreshed when
// configured, otherwise the current TTL of the key is kept.
func (b *base) set(ctx context.Context, payload string) error {
	exp := time.Duration(redis.KeepTTL)
	if b.expires > 0 {
		exp = b.expires
	}
	return rerrors.Translate(b.client.Set(ctx, b.key, payload, exp).Err())
}

// Key returns the remote key.
func (b *base) Key() string { return b.key }

// Name returns the logical key.
func (b *base) Name() string { return codec.UnescapeKey(b.key) }

// Coerced reports whether construction discarded a value of another kind.
func (b *base) Coerced() bool { return b.coerced }

// Exists reports whether the key is present in the store.
func (b *base) Exists(ctx context.Context) (bool, error) {
	n, err := b.client.Exists(ctx, b.key).Result()
	if err != nil {
		return false, rerrors.Translate(err)
	}
	return n > 0, nil
}

// Delete removes the key.
func (b *base) Delete(ctx context.Context) error {
	return rerrors.Translate(b.client.Del(ctx, b.key).Err())
}

// Rename moves the value to key. Renaming an absent key only rebinds the
// handle.
func (b *base) Rename(ctx context.Context, key string) error {
	if key == b.key {
		return nil
	}
	err := b.client.Rename(ctx, b.key, key).Err()
	if err != nil && !strings.Contains(err.Error(), "no such key") {
		return rerrors.Translate(err)
	}
	b.key = key
	return nil
}

// Expire sets the key expiration. A non-positive ttl expires the key now.
func (b *base) Expire(ctx context.Context, ttl time.Duration) error {
	if ttl <= 0 {
		return b.Delete(ctx)
	}
	return rerrors.Translate(b.client.PExpire(ctx, b.key, ttl).Err())
}

// Persist removes the key expiration.
func (b *base) Persist(ctx context.Context) error {
	return rerrors.Translate(b.client.Persist(ctx, b.key).Err())
}

// TTL returns the remaining time to live, or zero when the key has no
// expiration or does not exist.
func (b *base) TTL(ctx context.Context) (time.Duration, error) {
	d, err := b.client.PTTL(ctx, b.key).Result()
	if err != nil {
		return 0, rerrors.Translate(err)
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}
