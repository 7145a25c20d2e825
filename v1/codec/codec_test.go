package codec

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	rerrors "github.com/mirkobrombin/go-rstore/v1/errors"
)

type point struct {
	X, Y int
}

func init() {
	Register(point{})
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	values := []any{
		"plain",
		"",
		42,
		int64(-7),
		3.5,
		true,
		false,
		[]string{"a", "b"},
		[]any{"a", 1, true},
		map[string]any{"a": 1, "b": []any{"x"}},
		point{X: 1, Y: 2},
		time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		nil,
	}
	c := New(nil)
	for _, v := range values {
		enc, err := c.Encode(v)
		if err != nil {
			t.Fatalf("encode %#v: %v", v, err)
		}
		dec, err := c.Decode(enc)
		if err != nil {
			t.Fatalf("decode %#v: %v", v, err)
		}
		if !reflect.DeepEqual(dec, v) {
			t.Fatalf("round trip: got %#v want %#v", dec, v)
		}
	}
}

func TestEncodeLeavesStringsUntagged(t *testing.T) {
	enc, err := Default.Encode("hello")
	if err != nil || enc != "hello" {
		t.Fatalf("expected untouched string, got %q err %v", enc, err)
	}
	enc, err = Default.Encode(1)
	if err != nil || !IsEncoded(enc) {
		t.Fatalf("expected tagged payload, got %q err %v", enc, err)
	}
	enc, err = Default.EncodeTagged("hello")
	if err != nil || !IsEncoded(enc) {
		t.Fatalf("expected tagged string, got %q err %v", enc, err)
	}
	if v, err := Default.Decode(enc); err != nil || v != "hello" {
		t.Fatalf("decode tagged string: %v err %v", v, err)
	}
}

func TestDecodeNilSentinel(t *testing.T) {
	enc, err := Default.Encode(nil)
	if err != nil || enc != ValueTag {
		t.Fatalf("expected bare tag, got %q err %v", enc, err)
	}
	v, err := Default.Decode(enc)
	if err != nil || v != nil {
		t.Fatalf("expected nil, got %#v err %v", v, err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	m := map[string]any{"name": "x", "n": 3, "tags": []string{"a"}}
	enc, err := Default.EncodeSnapshot(m)
	if err != nil {
		t.Fatalf("encode snapshot: %v", err)
	}
	if !IsSnapshot(enc) || IsEncoded(enc) {
		t.Fatalf("snapshot tag confusion: %q", enc[:10])
	}
	got, ok, err := Default.DecodeSnapshot(enc)
	if err != nil || !ok {
		t.Fatalf("decode snapshot: ok %v err %v", ok, err)
	}
	if !reflect.DeepEqual(got, m) {
		t.Fatalf("snapshot: got %#v want %#v", got, m)
	}
	if _, ok, _ := Default.DecodeSnapshot("plain"); ok {
		t.Fatal("plain string reported as snapshot")
	}
}

func TestJSONSerializer(t *testing.T) {
	c := New(JSONSerializer{})
	enc, err := c.Encode(map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeAs[map[string]int](c, enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["a"] != 1 {
		t.Fatalf("expected a=1, got %v", got)
	}
}

func TestAs(t *testing.T) {
	if v, err := As[int64](3); err != nil || v != 3 {
		t.Fatalf("int to int64: %v %v", v, err)
	}
	if v, err := As[int](float64(4)); err != nil || v != 4 {
		t.Fatalf("float64 to int: %v %v", v, err)
	}
	if v, err := As[int]("12"); err != nil || v != 12 {
		t.Fatalf("string to int: %v %v", v, err)
	}
	if v, err := As[string](nil); err != nil || v != "" {
		t.Fatalf("nil to string: %q %v", v, err)
	}
	if _, err := As[string](5); !errors.Is(err, rerrors.ErrTypeMismatch) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
}

func TestAsRejectsLossyNumbers(t *testing.T) {
	if _, err := As[int64](uint64(math.MaxUint64)); !errors.Is(err, rerrors.ErrTypeMismatch) {
		t.Fatalf("uint64 overflow: expected type mismatch, got %v", err)
	}
	if _, err := As[uint](-1); !errors.Is(err, rerrors.ErrTypeMismatch) {
		t.Fatalf("negative to uint: expected type mismatch, got %v", err)
	}
	if _, err := As[int](3.5); !errors.Is(err, rerrors.ErrTypeMismatch) {
		t.Fatalf("fraction to int: expected type mismatch, got %v", err)
	}
	if _, err := As[int8](int64(300)); !errors.Is(err, rerrors.ErrTypeMismatch) {
		t.Fatalf("int8 overflow: expected type mismatch, got %v", err)
	}
	if v, err := As[int64](3.0); err != nil || v != 3 {
		t.Fatalf("whole float to int64: %v %v", v, err)
	}
	if v, err := As[float64](int64(2)); err != nil || v != 2 {
		t.Fatalf("int64 to float64: %v %v", v, err)
	}
	if v, err := As[float32](0.1); err != nil || v != float32(0.1) {
		t.Fatalf("float64 to float32: %v %v", v, err)
	}
}

type ledger struct {
	Owner   string
	Entries []int
}

func TestEncodeUnregisteredType(t *testing.T) {
	want := ledger{Owner: "ann", Entries: []int{1, 2}}
	enc, err := Default.Encode(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeAs[ledger](Default, enc)
	if err != nil || !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip: got %#v err %v", got, err)
	}
	Register(ledger{})
	Register(&ledger{})
	if _, err := Default.Encode(&want); err != nil {
		t.Fatalf("encode pointer: %v", err)
	}
}

func TestDecodeGarbageIsTypeMismatch(t *testing.T) {
	if _, err := Default.Decode(ValueTag + "not gob"); !errors.Is(err, rerrors.ErrTypeMismatch) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
}

func TestKeyEscapingRoundTrip(t *testing.T) {
	keys := []string{
		"simple",
		"with space",
		"f(x)[0]",
		"%20 literal",
		"100%",
		"a.b:c",
		"",
	}
	for _, k := range keys {
		esc := EscapeKey(k)
		for _, r := range " ()[]" {
			for _, c := range esc {
				if c == r {
					t.Fatalf("escaped key %q still contains %q", esc, r)
				}
			}
		}
		if got := UnescapeKey(esc); got != k {
			t.Fatalf("key round trip: got %q want %q", got, k)
		}
		if got := UnescapeChild(EscapeChild(k)); got != k {
			t.Fatalf("child round trip: got %q want %q", got, k)
		}
	}
	if got := EscapeChild("a.b:c"); got != "a%2eb%3ac" {
		t.Fatalf("unexpected child escape %q", got)
	}
}
