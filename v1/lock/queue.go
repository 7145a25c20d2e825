package lock

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
	"github.com/mirkobrombin/go-rstore/v1/handle"
	"github.com/mirkobrombin/go-rstore/v1/metrics"
)

var tracer = otel.Tracer("github.com/mirkobrombin/go-rstore/v1/lock")

const (
	DefaultMaxHold         = 60 * time.Second
	DefaultPollInterval    = 500 * time.Millisecond
	DefaultEvictionBackoff = 500 * time.Millisecond

	// holdMargin is kept between the longest wait and MaxHold so a waiter
	// gives up before it could be evicted as a stale holder.
	holdMargin = 2 * time.Second

	lastAcquireSuffix = ".lastAcquireTime"
)

// releaseScript removes ARGV[1] from the waiter list and, when it was the
// head, zeroes the acquisition stamp in the same step so the next holder's
// stamp is never overwritten. It returns 0 when another token held the lock.
var releaseScript = redis.NewScript(`
local head = redis.call("LINDEX", KEYS[1], 0)
redis.call("LREM", KEYS[1], 1, ARGV[1])
if head == ARGV[1] then
    redis.call("SET", KEYS[2], "0")
    return 1
end
if head then
    return 0
end
return 1
`)

// ErrNotAcquired is returned by Do when the lock could not be obtained in
// time.
var ErrNotAcquired = errors.New("rstore: lock not acquired")

// Result is the outcome of Acquire.
type Result int

const (
	// Acquired means the token reached the head of the queue; the caller
	// holds the lock until Release.
	Acquired Result = iota
	// Lost means the queue was cleared while waiting. Retry from scratch.
	Lost
	// TimedOut means the wait ended before the token reached the head. The
	// token has been removed.
	TimedOut
)

func (r Result) String() string {
	switch r {
	case Acquired:
		return "acquired"
	case Lost:
		return "lost"
	case TimedOut:
		return "timeout"
	}
	return "unknown"
}

// Option configures a Queue.
type Option func(*Queue)

// WithMaxHold sets how long a holder may keep the lock before waiters
// presume it crashed and clear the queue.
func WithMaxHold(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.maxHold = d
		}
	}
}

// WithPollInterval sets how often a waiter checks its position.
func WithPollInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.poll = d
		}
	}
}

// WithEvictionBackoff sets the pause after clearing a stale queue.
func WithEvictionBackoff(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.backoff = d
		}
	}
}

// Queue is a FIFO lock kept entirely in the store. Waiters append a token
// to a list; the token at the head holds the lock. The timestamp of the
// last acquisition lets waiters evict a holder that never released.
//
// Ordering is approximate: a token appended just before another waiter
// clears a stale queue is wiped and reported as Lost. A Queue is not safe
// for concurrent use; every goroutine opens its own over the same name.
type Queue struct {
	client  redis.UniversalClient
	waiters *handle.List[string]
	last    *handle.Integer

	maxHold time.Duration
	poll    time.Duration
	backoff time.Duration
}

// New opens the lock queue called name.
func New(ctx context.Context, client redis.UniversalClient, name string, opts ...Option) (*Queue, error) {
	waiters, err := handle.NewList[string](ctx, client, name, nil)
	if err != nil {
		return nil, err
	}
	last, err := handle.NewInteger(ctx, client, name+lastAcquireSuffix, 0)
	if err != nil {
		return nil, err
	}
	q := &Queue{
		client:  client,
		waiters: waiters,
		last:    last,
		maxHold: DefaultMaxHold,
		poll:    DefaultPollInterval,
		backoff: DefaultEvictionBackoff,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// NewToken returns a random waiter token.
func NewToken() string {
	return uuid.NewString()
}

// Key returns the remote key of the waiter list.
func (q *Queue) Key() string { return q.waiters.Key() }

// Acquire enqueues token and waits up to timeout for it to reach the head.
// The wait never exceeds MaxHold minus a small margin, or one poll interval
// when MaxHold is shorter than that margin. Cancelling ctx
// aborts the wait, removes the token and returns the context error.
func (q *Queue) Acquire(ctx context.Context, token string, timeout time.Duration) (Result, error) {
	ctx, span := tracer.Start(ctx, "Queue.Acquire", trace.WithAttributes(attribute.String("rstore.lock.key", q.Key())))
	defer span.End()

	res, err := q.acquire(ctx, token, timeout)
	if err != nil {
		span.RecordError(err)
		return res, err
	}
	span.SetAttributes(attribute.String("rstore.lock.result", res.String()))
	metrics.LockAcquireCounter.WithLabelValues(res.String()).Inc()
	return res, nil
}

func (q *Queue) acquire(ctx context.Context, token string, timeout time.Duration) (Result, error) {
	if err := q.evictStale(ctx); err != nil {
		return TimedOut, err
	}
	if _, err := q.waiters.Append(ctx, token); err != nil {
		return TimedOut, err
	}
	if limit := max(q.maxHold-holdMargin, q.poll); timeout > limit {
		timeout = limit
	}
	polls := max(int(timeout/q.poll), 1)

	for i := 0; i < polls; i++ {
		tokens, _, err := q.waiters.Value(ctx)
		if err != nil {
			q.discard(ctx, token)
			return TimedOut, err
		}
		if !slices.Contains(tokens, token) {
			slog.Debug("rstore: lock queue cleared while waiting", "key", q.Key(), "token", token)
			q.discard(ctx, token)
			return Lost, nil
		}
		if tokens[0] == token {
			if err := q.last.ResetValue(ctx, time.Now().Unix()); err != nil {
				return Acquired, err
			}
			return Acquired, nil
		}
		select {
		case <-ctx.Done():
			q.discard(ctx, token)
			return TimedOut, rerrors.Translate(ctx.Err())
		case <-time.After(q.poll):
		}
	}
	q.discard(ctx, token)
	return TimedOut, nil
}

// evictStale clears the queue when its holder has kept the lock longer than
// MaxHold. A queue without a recorded acquisition starts the clock instead.
func (q *Queue) evictStale(ctx context.Context) error {
	n, err := q.waiters.Len(ctx)
	if err != nil || n == 0 {
		return err
	}
	last, _, err := q.last.Value(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	if last == 0 {
		return q.last.ResetValue(ctx, now.Unix())
	}
	held := now.Sub(time.Unix(last, 0))
	if held <= q.maxHold {
		return nil
	}
	slog.Warn("rstore: lock holder overstayed, clearing queue", "key", q.Key(), "held", held, "waiters", n)
	metrics.LockEvictionCounter.Inc()
	if err := q.last.ResetValue(ctx, now.Unix()); err != nil {
		return err
	}
	if err := q.waiters.ResetValue(ctx, nil); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return rerrors.Translate(ctx.Err())
	case <-time.After(q.backoff):
	}
	return nil
}

// discard removes token after a failed wait, even when ctx is done.
func (q *Queue) discard(ctx context.Context, token string) {
	if _, err := q.waiters.Remove(context.WithoutCancel(ctx), token); err != nil {
		slog.Warn("rstore: lock token cleanup failed", "key", q.Key(), "token", token, "error", err)
	}
}

// Release removes token from the queue. It reports false when another
// token holds the lock; the token is removed wherever it sits anyway, so
// releasing after a timeout or a loss is safe.
//
// Releasing the head also clears the acquisition stamp, so the next waiter
// starts its own hold clock.
func (q *Queue) Release(ctx context.Context, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, q.client, []string{q.waiters.Key(), q.last.Key()}, token).Int()
	if err != nil {
		return false, rerrors.Translate(err)
	}
	return n == 1, nil
}

// Holder returns the token at the head of the queue.
func (q *Queue) Holder(ctx context.Context) (string, bool, error) {
	return q.waiters.Index(ctx, 0)
}

// Waiters returns every queued token, holder first.
func (q *Queue) Waiters(ctx context.Context) ([]string, error) {
	tokens, _, err := q.waiters.Value(ctx)
	return tokens, err
}

// Do acquires the lock with a fresh token, runs fn and releases it. Lost
// acquisitions are retried until timeout has elapsed.
func (q *Queue) Do(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	token := NewToken()
	deadline := time.Now().Add(timeout)
	for {
		res, err := q.Acquire(ctx, token, time.Until(deadline))
		if err != nil {
			return err
		}
		switch res {
		case Acquired:
			defer func() {
				if _, err := q.Release(context.WithoutCancel(ctx), token); err != nil {
					slog.Warn("rstore: lock release failed", "key", q.Key(), "error", err)
				}
			}()
			return fn(ctx)
		case Lost:
			if time.Now().Before(deadline) {
				continue
			}
		}
		return ErrNotAcquired
	}
}
