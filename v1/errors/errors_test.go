package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	redis "github.com/redis/go-redis/v9"
)

func TestTranslate(t *testing.T) {
	other := errors.New("boom")
	cases := []struct {
		in   error
		want error
	}{
		{nil, nil},
		{redis.Nil, nil},
		{context.DeadlineExceeded, ErrTimeout},
		{fmt.Errorf("get: %w", context.DeadlineExceeded), ErrTimeout},
		{redis.ErrClosed, ErrConnectionClosed},
		{other, other},
	}
	for _, c := range cases {
		if got := Translate(c.in); got != c.want {
			t.Fatalf("Translate(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
