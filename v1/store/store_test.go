package store_test

import (
	"context"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-rstore/v1/store"
)

// newClient returns a client bound to a fresh miniredis server that is
// stopped on cleanup.
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

func TestScanKeys(t *testing.T) {
	mr, client := newClient(t)
	for _, k := range []string{"user.1", "user.2", "order.1"} {
		mr.Set(k, "x")
	}
	keys, err := store.ScanKeys(context.Background(), client, "user.*", store.WithBatchSize(1))
	if err != nil {
		t.Fatalf("ScanKeys: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "user.1" || keys[1] != "user.2" {
		t.Fatalf("expected user keys, got %v", keys)
	}
}

func TestFlushKeysEscapesPattern(t *testing.T) {
	mr, client := newClient(t)
	mr.Set("my%20cache.a", "1")
	mr.Set("my%20cache.b", "2")
	mr.Set("other", "3")

	n, err := store.FlushKeys(context.Background(), client, "my cache.*", store.WithBatchSize(1))
	if err != nil {
		t.Fatalf("FlushKeys: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	if !mr.Exists("other") {
		t.Fatalf("unrelated key removed")
	}
}

func TestFlushKeysNoMatch(t *testing.T) {
	_, client := newClient(t)
	n, err := store.FlushKeys(context.Background(), client, "nothing*")
	if err != nil || n != 0 {
		t.Fatalf("expected 0, got %d %v", n, err)
	}
}
