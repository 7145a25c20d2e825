package handle

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"

	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
)

// iterable carries the expiration of collection keys across mutations.
// Multi-step rewrites (delete then push) drop the TTL on the store side, so
// the handle keeps the remaining time itself and reapplies it after every
// mutation.
type iterable struct {
	base
	remaining time.Duration
	stamp     time.Time
}

func (it *iterable) track(ctx context.Context) error {
	d, err := it.base.TTL(ctx)
	if err != nil {
		return err
	}
	it.remaining, it.stamp = d, time.Now()
	return nil
}

// carry queues the remaining expiration on c. Once the time is used up the
// key is removed.
func (it *iterable) carry(ctx context.Context, c redis.Cmdable) {
	if it.remaining <= 0 {
		return
	}
	now := time.Now()
	it.remaining -= now.Sub(it.stamp)
	it.stamp = now
	if it.remaining <= 0 {
		it.remaining = 0
		c.Del(ctx, it.key)
		return
	}
	c.PExpire(ctx, it.key, it.remaining)
}

// mutate runs fn and the expiration carry in one MULTI/EXEC block.
func (it *iterable) mutate(ctx context.Context, fn func(pipe redis.Pipeliner)) error {
	pipe := it.client.TxPipeline()
	fn(pipe)
	it.carry(ctx, pipe)
	_, err := pipe.Exec(ctx)
	return rerrors.Translate(err)
}

// Expire sets the key expiration and restarts the client-side countdown.
func (it *iterable) Expire(ctx context.Context, ttl time.Duration) error {
	if err := it.base.Expire(ctx, ttl); err != nil {
		return err
	}
	it.remaining, it.stamp = max(ttl, 0), time.Now()
	return nil
}

// Persist removes the key expiration and stops the countdown.
func (it *iterable) Persist(ctx context.Context) error {
	if err := it.base.Persist(ctx); err != nil {
		return err
	}
	it.remaining = 0
	return nil
}
