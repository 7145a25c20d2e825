// Package memo memoizes functions in the shared store. The cache key of a
// call is built by a caller supplied KeyFunc; results are written through a
// non-creating handle.Object and optionally mirrored in a process-local
// ristretto cache.
package memo

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/dgraph-io/ristretto"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/mirkobrombin/go-rstore/v1/codec"
	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
	"github.com/mirkobrombin/go-rstore/v1/handle"
	"github.com/mirkobrombin/go-rstore/v1/metrics"
)

var tracer = otel.Tracer("github.com/mirkobrombin/go-rstore/v1/memo")

// Expiration presets.
const (
	LongCacheTime      = 7 * 24 * time.Hour
	ShortCacheTime     = 8 * time.Hour
	VeryShortCacheTime = 5 * time.Minute
	// Forever stores results without expiration; they must be cleared
	// explicitly, for instance with store.FlushKeys.
	Forever time.Duration = 0
)

// KeyFunc derives the cache key of a call from its argument.
type KeyFunc[A any] func(A) string

type config struct {
	ttl   time.Duration
	skip  func(any) bool
	codec *codec.Codec
	l1    *ristretto.Config
	l1TTL time.Duration
}

// Option configures a Func.
type Option func(*config)

// WithTTL sets the expiration of stored results. Hits refresh it.
func WithTTL(d time.Duration) Option {
	return func(c *config) { c.ttl = d }
}

// SkipIf prevents results matching pred from being stored. They are still
// returned to the caller.
func SkipIf[R any](pred func(R) bool) Option {
	return func(c *config) {
		c.skip = func(v any) bool {
			r, ok := v.(R)
			return ok && pred(r)
		}
	}
}

// WithCodec sets the codec of stored results.
func WithCodec(cd *codec.Codec) Option {
	return func(c *config) { c.codec = cd }
}

// WithL1 mirrors up to maxItems results in process memory for ttl. Entries
// are not invalidated by other processes, so keep ttl short.
func WithL1(maxItems int64, ttl time.Duration) Option {
	return func(c *config) {
		c.l1 = &ristretto.Config{
			NumCounters: 10 * maxItems,
			MaxCost:     maxItems,
			BufferItems: 64,
		}
		c.l1TTL = ttl
	}
}

// Func is a memoized function.
type Func[A, R any] struct {
	client redis.UniversalClient
	name   string
	key    KeyFunc[A]
	fn     func(context.Context, A) (R, error)
	cfg    config
	group  singleflight.Group
	l1     *ristretto.Cache
}

// New memoizes fn under name. Results live at "name(<key>)".
func New[A, R any](client redis.UniversalClient, name string, key KeyFunc[A], fn func(context.Context, A) (R, error), opts ...Option) (*Func[A, R], error) {
	codec.Register(*new(R))
	cfg := config{ttl: LongCacheTime, codec: codec.Default}
	for _, opt := range opts {
		opt(&cfg)
	}
	f := &Func[A, R]{client: client, name: name, key: key, fn: fn, cfg: cfg}
	if cfg.l1 != nil {
		l1, err := ristretto.NewCache(cfg.l1)
		if err != nil {
			return nil, err
		}
		f.l1 = l1
	}
	return f, nil
}

// Key returns the logical cache key of a call with a.
func (f *Func[A, R]) Key(a A) string {
	return f.name + "(" + f.key(a) + ")"
}

// Call returns the stored result for a, calling the wrapped function on a
// miss. Concurrent misses for the same key share one call.
func (f *Func[A, R]) Call(ctx context.Context, a A) (R, error) {
	key := f.Key(a)
	if f.l1 != nil {
		if v, ok := f.l1.Get(key); ok {
			if r, ok := v.(R); ok {
				metrics.MemoCounter.WithLabelValues("hit").Inc()
				return r, nil
			}
		}
	}
	h, err := handle.NewObject[R](ctx, f.client, key, *new(R), handle.Lookup(), handle.WithCodec(f.cfg.codec))
	if err != nil {
		var zero R
		return zero, err
	}
	v, ok, err := h.Value(ctx)
	switch {
	case err != nil && !errors.Is(err, rerrors.ErrTypeMismatch):
		return v, err
	case err == nil && ok:
		metrics.MemoCounter.WithLabelValues("hit").Inc()
		if f.cfg.ttl > 0 {
			if err := h.Expire(ctx, f.cfg.ttl); err != nil {
				return v, err
			}
		}
		f.mirror(key, v)
		return v, nil
	}

	// an undecodable stored result is recomputed and overwritten
	res, err, _ := f.group.Do(key, func() (any, error) {
		return f.miss(ctx, h, a)
	})
	if err != nil {
		var zero R
		return zero, err
	}
	r, _ := res.(R)
	return r, nil
}

func (f *Func[A, R]) miss(ctx context.Context, h *handle.Object[R], a A) (R, error) {
	ctx, span := tracer.Start(ctx, "Func.Miss", trace.WithAttributes(attribute.String("rstore.memo.key", h.Key())))
	defer span.End()

	r, err := f.fn(ctx, a)
	if err != nil {
		span.RecordError(err)
		return r, err
	}
	if isNil(r) || (f.cfg.skip != nil && f.cfg.skip(r)) {
		metrics.MemoCounter.WithLabelValues("skip").Inc()
		return r, nil
	}
	metrics.MemoCounter.WithLabelValues("miss").Inc()
	if err := h.ResetValue(ctx, r); err != nil {
		return r, err
	}
	if f.cfg.ttl > 0 {
		if err := h.Expire(ctx, f.cfg.ttl); err != nil {
			return r, err
		}
	}
	f.mirror(h.Name(), r)
	return r, nil
}

func (f *Func[A, R]) mirror(key string, r R) {
	if f.l1 == nil {
		return
	}
	f.l1.SetWithTTL(key, r, 1, f.cfg.l1TTL)
	f.l1.Wait()
}

// Forget drops the stored result for a.
func (f *Func[A, R]) Forget(ctx context.Context, a A) error {
	key := f.Key(a)
	if f.l1 != nil {
		f.l1.Del(key)
	}
	h, err := handle.NewObject[R](ctx, f.client, key, *new(R), handle.Lookup(), handle.WithCodec(f.cfg.codec))
	if err != nil {
		return err
	}
	return h.Delete(ctx)
}

// Close releases the process-local cache.
func (f *Func[A, R]) Close() {
	if f.l1 != nil {
		f.l1.Close()
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
