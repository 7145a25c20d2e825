// Package store holds bulk helpers operating on many keys at once.
package store

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-rstore/v1/codec"
	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
)

const (
	defaultOpTimeout = 30 * time.Second
	defaultBatchSize = 100
)

// Option configures a bulk operation.
type Option func(*options)

type options struct {
	timeout time.Duration
	batch   int64
}

// WithTimeout bounds the whole operation.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithBatchSize sets the SCAN count hint and the size of delete batches.
func WithBatchSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.batch = n
		}
	}
}

func apply(opts []Option) options {
	o := options{timeout: defaultOpTimeout, batch: defaultBatchSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ScanKeys returns every remote key matching the glob pattern, iterating
// with SCAN so the store is never blocked. Duplicates reported by SCAN are
// removed.
func ScanKeys(ctx context.Context, client redis.UniversalClient, pattern string, opts ...Option) ([]string, error) {
	o := apply(opts)
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return scan(cctx, client, pattern, o.batch)
}

func scan(ctx context.Context, client redis.UniversalClient, pattern string, count int64) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	seen := make(map[string]struct{})
	for {
		batch, next, err := client.Scan(ctx, cursor, pattern, count).Result()
		if err != nil {
			return nil, rerrors.Translate(err)
		}
		for _, k := range batch {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	if err := ctx.Err(); err != nil {
		return nil, rerrors.Translate(err)
	}
	return keys, nil
}

// FlushKeys deletes every key matching the logical glob pattern and returns
// how many were removed. The pattern is escaped like any other key; '*'
// and '?' keep their glob meaning.
func FlushKeys(ctx context.Context, client redis.UniversalClient, pattern string, opts ...Option) (int64, error) {
	o := apply(opts)
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	keys, err := scan(cctx, client, codec.EscapeKey(pattern), o.batch)
	if err != nil {
		return 0, err
	}
	var removed int64
	for start := 0; start < len(keys); start += int(o.batch) {
		end := min(start+int(o.batch), len(keys))
		n, err := client.Del(cctx, keys[start:end]...).Result()
		if err != nil {
			return removed, rerrors.Translate(err)
		}
		removed += n
	}
	return removed, nil
}
