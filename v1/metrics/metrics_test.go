package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterMetrics(reg)
	LockAcquireCounter.WithLabelValues("acquired").Inc()
	LockEvictionCounter.Inc()
	CoercionCounter.WithLabelValues("list").Inc()
	MemoCounter.WithLabelValues("hit").Inc()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) < 4 {
		t.Fatalf("expected metrics registered, got %d", len(mfs))
	}
}

func TestRegisterMetricsDuplicatePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterMetrics(reg)
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	RegisterMetrics(reg)
}
