package handle

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-rstore/v1/codec"
	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
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

func TestStringDefaultAndAppend(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	s, err := NewString(ctx, client, "greeting", "hello")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	if n, err := s.Append(ctx, " world"); err != nil || n != 11 {
		t.Fatalf("Append: %d %v", n, err)
	}
	v, ok, err := s.Value(ctx)
	if err != nil || !ok || v != "hello world" {
		t.Fatalf("expected hello world, got %q %v %v", v, ok, err)
	}

	again, err := NewString(ctx, client, "greeting", "other")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	if v, _, _ := again.Value(ctx); v != "hello world" {
		t.Fatalf("existing value overwritten: %q", v)
	}
}

func TestLookupAbsent(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	s, err := NewString(ctx, client, "missing", "x", Lookup())
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	if _, ok, err := s.Value(ctx); err != nil || ok {
		t.Fatalf("expected absent, got ok=%v err=%v", ok, err)
	}
	if exists, _ := s.Exists(ctx); exists {
		t.Fatalf("lookup must not create the key")
	}
}

func TestEmptyKey(t *testing.T) {
	_, client := newTestClient(t)
	if _, err := NewString(context.Background(), client, "", "x"); !errors.Is(err, rerrors.ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
}

func TestCoercionReplacesOtherKind(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	if _, err := mr.Lpush("k", "a"); err != nil {
		t.Fatalf("Lpush: %v", err)
	}
	s, err := NewString(ctx, client, "k", "fresh")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	if !s.Coerced() {
		t.Fatalf("expected Coerced")
	}
	if got, _ := mr.Get("k"); got != "fresh" {
		t.Fatalf("expected fresh, got %q", got)
	}
}

func TestCoercionWithLookupDeletes(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	mr.Set("n", "abc")
	n, err := NewInteger(ctx, client, "n", 0, Lookup())
	if err != nil {
		t.Fatalf("NewInteger: %v", err)
	}
	if !n.Coerced() {
		t.Fatalf("expected Coerced")
	}
	if mr.Exists("n") {
		t.Fatalf("mismatched key should be removed")
	}
}

func TestIntegerIncrement(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	mr.Set("counter", "-3")
	n, err := NewInteger(ctx, client, "counter", 0)
	if err != nil {
		t.Fatalf("NewInteger: %v", err)
	}
	if n.Coerced() {
		t.Fatalf("negative integer must be accepted")
	}
	if v, err := n.Increment(ctx, 5); err != nil || v != 2 {
		t.Fatalf("Increment: %d %v", v, err)
	}
	if v, err := n.Decrement(ctx, 1); err != nil || v != 1 {
		t.Fatalf("Decrement: %d %v", v, err)
	}
	if err := n.Reset(ctx, 42); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if v, _, _ := n.Value(ctx); v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestBooleanToggle(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	b, err := NewBoolean(ctx, client, "flag", false)
	if err != nil {
		t.Fatalf("NewBoolean: %v", err)
	}
	if v, err := b.Toggle(ctx); err != nil || !v {
		t.Fatalf("Toggle: %v %v", v, err)
	}
	if got, _ := mr.Get("flag"); got != "True" {
		t.Fatalf("expected True literal, got %q", got)
	}
}

type profile struct {
	Name string
	Tags []string
}

func init() {
	codec.Register(profile{})
}

func TestObjectRoundTrip(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	want := profile{Name: "ada", Tags: []string{"a", "b"}}
	o, err := NewObject(ctx, client, "profile", want)
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	got, ok, err := o.Value(ctx)
	if err != nil || !ok {
		t.Fatalf("Value: %v %v", ok, err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

type account struct {
	ID    int
	Owner string
}

func TestObjectUnregisteredType(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	want := account{ID: 7, Owner: "lin"}
	if _, err := NewObject(ctx, client, "acct", want); err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	o, err := NewObject(ctx, client, "acct", account{}, Lookup())
	if err != nil {
		t.Fatalf("NewObject lookup: %v", err)
	}
	got, ok, err := o.Value(ctx)
	if err != nil || !ok || got != want {
		t.Fatalf("expected %+v, got %+v %v %v", want, got, ok, err)
	}
}

func TestObjectStringIsTagged(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	if _, err := NewObject(ctx, client, "o", "text"); err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	if got, _ := mr.Get("o"); got == "text" {
		t.Fatalf("object payload must be tagged")
	}
}

func TestSnapshotFields(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	s, err := NewSnapshot(ctx, client, "snap", map[string]any{"a": int64(1)})
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	if err := s.Set(ctx, "b", "two"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	keys, err := s.Keys(ctx)
	if err != nil || !reflect.DeepEqual(keys, []string{"a", "b"}) {
		t.Fatalf("Keys: %v %v", keys, err)
	}
	if _, err := s.Get(ctx, "c"); !errors.Is(err, rerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if v, _ := s.Get(ctx, "a"); v != int64(1) {
		t.Fatalf("expected 1, got %v", v)
	}
}

func TestListAppendPop(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	l, err := NewList[string](ctx, client, "queue", nil)
	if err != nil {
		t.Fatalf("NewList: %v", err)
	}
	if exists, _ := l.Exists(ctx); exists {
		t.Fatalf("empty default must not create the key")
	}
	if _, err := l.Append(ctx, "x"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := l.Append(ctx, "y"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	v, ok, err := l.Pop(ctx)
	if err != nil || !ok || v != "x" {
		t.Fatalf("Pop: %q %v %v", v, ok, err)
	}
	rest, _, err := l.Value(ctx)
	if err != nil || !reflect.DeepEqual(rest, []string{"y"}) {
		t.Fatalf("expected [y], got %v %v", rest, err)
	}
	if _, ok, err := l.Index(ctx, 5); ok || err != nil {
		t.Fatalf("Index out of range: %v %v", ok, err)
	}
}

func TestListOfIntegers(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	l, err := NewList(ctx, client, "nums", []int{3, 1, 2, 1})
	if err != nil {
		t.Fatalf("NewList: %v", err)
	}
	if n, err := l.Count(ctx, 1); err != nil || n != 2 {
		t.Fatalf("Count: %d %v", n, err)
	}
	if ok, err := l.Remove(ctx, 1); err != nil || !ok {
		t.Fatalf("Remove: %v %v", ok, err)
	}
	if err := l.SetIndex(ctx, 0, 9); err != nil {
		t.Fatalf("SetIndex: %v", err)
	}
	got, _, _ := l.Value(ctx)
	if !reflect.DeepEqual(got, []int{9, 2, 1}) {
		t.Fatalf("expected [9 2 1], got %v", got)
	}
}

func TestListExpiryCarriedAcrossRewrite(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	l, err := NewList(ctx, client, "l", []string{"a"}, WithExpiry(10*time.Second))
	if err != nil {
		t.Fatalf("NewList: %v", err)
	}
	if err := l.ResetValue(ctx, []string{"b", "c"}); err != nil {
		t.Fatalf("ResetValue: %v", err)
	}
	ttl := mr.TTL("l")
	if ttl <= 0 || ttl > 10*time.Second {
		t.Fatalf("expected carried ttl, got %v", ttl)
	}
	if err := l.Persist(ctx); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if _, err := l.Append(ctx, "d"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if ttl := mr.TTL("l"); ttl != 0 {
		t.Fatalf("expected no ttl after Persist, got %v", ttl)
	}
}

func TestSetAddIdempotent(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	s, err := NewSet[string](ctx, client, "tags", nil)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	if added, err := s.Add(ctx, "go"); err != nil || !added {
		t.Fatalf("Add: %v %v", added, err)
	}
	if added, err := s.Add(ctx, "go"); err != nil || added {
		t.Fatalf("second Add: %v %v", added, err)
	}
	if n, _ := s.Len(ctx); n != 1 {
		t.Fatalf("expected cardinality 1, got %d", n)
	}
}

func TestSetAlgebra(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	a, err := NewSet(ctx, client, "a", []string{"x", "y", "z"})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	b, err := NewSet(ctx, client, "b", []string{"y", "z", "w"})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}

	inter, err := a.Intersection(ctx, b)
	if err != nil {
		t.Fatalf("Intersection: %v", err)
	}
	if !reflect.DeepEqual(inter, map[string]struct{}{"y": {}, "z": {}}) {
		t.Fatalf("unexpected intersection %v", inter)
	}
	diff, err := a.Difference(ctx, Local("x"))
	if err != nil {
		t.Fatalf("Difference: %v", err)
	}
	if !reflect.DeepEqual(diff, map[string]struct{}{"y": {}, "z": {}}) {
		t.Fatalf("unexpected difference %v", diff)
	}

	if err := a.UnionUpdate(ctx, RemoteKey[string](b.Key())); err != nil {
		t.Fatalf("UnionUpdate: %v", err)
	}
	members, _ := a.Members(ctx)
	sort.Strings(members)
	if !reflect.DeepEqual(members, []string{"w", "x", "y", "z"}) {
		t.Fatalf("unexpected union %v", members)
	}
	if err := a.DifferenceUpdate(ctx, Local("w", "x")); err != nil {
		t.Fatalf("DifferenceUpdate: %v", err)
	}
	if n, _ := a.Len(ctx); n != 2 {
		t.Fatalf("expected 2 members, got %d", n)
	}
}

func TestSortedSetRanking(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	z, err := NewSortedSet(ctx, client, "rank", []string{"b", "a"})
	if err != nil {
		t.Fatalf("NewSortedSet: %v", err)
	}
	if _, err := z.Add(ctx, "c"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, _, err := z.Value(ctx)
	if err != nil || !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Fatalf("expected insertion order, got %v %v", got, err)
	}
	if s, ok, _ := z.Score(ctx, "c"); !ok || s != 2 {
		t.Fatalf("expected score 2, got %v %v", s, ok)
	}
	if v, ok, _ := z.Index(ctx, -1); !ok || v != "c" {
		t.Fatalf("expected c last, got %q", v)
	}
}

func TestHashFields(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	h, err := NewHash(ctx, client, "h", map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("NewHash: %v", err)
	}
	if err := h.Set(ctx, "b", 2); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, err := h.Get(ctx, "b"); err != nil || v != 2 {
		t.Fatalf("Get: %d %v", v, err)
	}
	if _, err := h.Get(ctx, "zz"); !errors.Is(err, rerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := h.Move(ctx, "a", "c"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	keys, _ := h.Keys(ctx)
	if !reflect.DeepEqual(keys, []string{"b", "c"}) {
		t.Fatalf("unexpected keys %v", keys)
	}
	if v, err := h.SetDefault(ctx, "d", 4); err != nil || v != 4 {
		t.Fatalf("SetDefault: %d %v", v, err)
	}
	if v, err := h.Pop(ctx, "c"); err != nil || v != 1 {
		t.Fatalf("Pop: %d %v", v, err)
	}
	if n, _ := h.Len(ctx); n != 2 {
		t.Fatalf("expected 2 fields, got %d", n)
	}
}

func TestRenameAndExpire(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	s, err := NewString(ctx, client, "old", "v")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	if err := s.Rename(ctx, "new"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if mr.Exists("old") || !mr.Exists("new") {
		t.Fatalf("rename did not move the key")
	}
	if err := s.Expire(ctx, 5*time.Second); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	mr.FastForward(6 * time.Second)
	if exists, _ := s.Exists(ctx); exists {
		t.Fatalf("expected key to expire")
	}
	if ttl, err := s.TTL(ctx); err != nil || ttl != 0 {
		t.Fatalf("TTL of absent key: %v %v", ttl, err)
	}
}

func TestEqual(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	a, _ := NewList(ctx, client, "a", []string{"x"})
	b, _ := NewList(ctx, client, "b", []string{"x"})
	if eq, err := Equal(ctx, a, b); err != nil || !eq {
		t.Fatalf("expected equal lists: %v %v", eq, err)
	}
	if eq, _ := Equal(ctx, a, []string{"y"}); eq {
		t.Fatalf("expected different values")
	}
}
