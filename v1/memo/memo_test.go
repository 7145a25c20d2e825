package memo_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-rstore/v1/codec"
	"github.com/mirkobrombin/go-rstore/v1/memo"
)

func newClient(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func itoa(n int) string { return strconv.Itoa(n) }

func TestCallStoresAndHits(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()

	var calls int32
	f, err := memo.New(client, "square", itoa, func(ctx context.Context, n int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return n * n, nil
	}, memo.WithTTL(time.Minute))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer f.Close()

	for i := 0; i < 3; i++ {
		v, err := f.Call(ctx, 4)
		if err != nil || v != 16 {
			t.Fatalf("Call: %d %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if !mr.Exists("square%284%29") {
		t.Fatalf("expected escaped key, got %v", mr.Keys())
	}

	mr.FastForward(50 * time.Second)
	if _, err := f.Call(ctx, 4); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if ttl := mr.TTL("square%284%29"); ttl <= 10*time.Second {
		t.Fatalf("expected hit to refresh ttl, got %v", ttl)
	}
}

type quote struct {
	Symbol string
	Cents  int64
}

func TestCallStructResult(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()

	var calls int32
	f, err := memo.New(client, "quote", func(s string) string { return s },
		func(ctx context.Context, s string) (quote, error) {
			atomic.AddInt32(&calls, 1)
			return quote{Symbol: s, Cents: 1250}, nil
		})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer f.Close()

	for i := 0; i < 2; i++ {
		v, err := f.Call(ctx, "ACME")
		if err != nil || v != (quote{Symbol: "ACME", Cents: 1250}) {
			t.Fatalf("Call: %+v %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected second call to hit, got %d calls", calls)
	}
}

func TestCallStoreDown(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()

	var calls int32
	f, err := memo.New(client, "square", itoa, func(ctx context.Context, n int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return n * n, nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer f.Close()

	mr.Close()
	if _, err := f.Call(ctx, 3); err == nil {
		t.Fatalf("expected store error")
	}
	if calls != 0 {
		t.Fatalf("store error must not call the function, got %d calls", calls)
	}
}

func TestCallRecomputesUndecodable(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()

	var calls int32
	f, err := memo.New(client, "square", itoa, func(ctx context.Context, n int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return n * n, nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer f.Close()

	mr.Set("square%283%29", codec.ValueTag+"garbage")
	v, err := f.Call(ctx, 3)
	if err != nil || v != 9 {
		t.Fatalf("Call: %d %v", v, err)
	}
	if calls != 1 {
		t.Fatalf("expected one recompute, got %d", calls)
	}
	if v, err := f.Call(ctx, 3); err != nil || v != 9 || calls != 1 {
		t.Fatalf("expected overwritten result to hit: %d %v calls=%d", v, err, calls)
	}
}

func TestSkipIf(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()

	f, err := memo.New(client, "lookup", func(s string) string { return s },
		func(ctx context.Context, s string) (string, error) { return "", nil },
		memo.SkipIf(func(r string) bool { return r == "" }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := f.Call(ctx, "x"); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("skipped result was stored: %v", mr.Keys())
	}
}

func TestErrorNotStored(t *testing.T) {
	mr, client := newClient(t)
	boom := errors.New("boom")

	f, err := memo.New(client, "fail", itoa, func(ctx context.Context, n int) (int, error) {
		return 0, boom
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := f.Call(context.Background(), 1); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("failed call was stored")
	}
}

func TestConcurrentMissesCollapse(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	f, err := memo.New(client, "slow", itoa, func(ctx context.Context, n int) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return n, nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := f.Call(ctx, 7); err != nil || v != 7 {
				t.Errorf("Call: %d %v", v, err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestL1AndForget(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()

	var calls int32
	f, err := memo.New(client, "l1", itoa, func(ctx context.Context, n int) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "v" + strconv.Itoa(n), nil
	}, memo.WithL1(100, time.Minute), memo.WithTTL(memo.Forever))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer f.Close()

	if _, err := f.Call(ctx, 1); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if ttl := mr.TTL("l1%281%29"); ttl != 0 {
		t.Fatalf("Forever must not expire, got %v", ttl)
	}
	if err := f.Forget(ctx, 1); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if v, err := f.Call(ctx, 1); err != nil || v != "v1" {
		t.Fatalf("Call: %q %v", v, err)
	}
	if calls != 2 {
		t.Fatalf("expected Forget to force a new call, got %d calls", calls)
	}
}
