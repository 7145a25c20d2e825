package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// LockAcquireCounter tracks lock acquisition attempts by outcome.
	LockAcquireCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rstore_lock_acquire_total",
		Help: "Total number of lock acquisition attempts by result",
	}, []string{"result"})
	// LockEvictionCounter tracks queues cleared because the holder overstayed.
	LockEvictionCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rstore_lock_evictions_total",
		Help: "Total number of lock queues cleared after a stale holder",
	})
	// CoercionCounter tracks handles that discarded a remote value of the
	// wrong kind on construction.
	CoercionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rstore_handle_coercions_total",
		Help: "Total number of destructive type coercions by handle variant",
	}, []string{"variant"})
	// MemoCounter tracks memoized calls by result (hit, miss, skip).
	MemoCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rstore_memo_requests_total",
		Help: "Total number of memoized calls by result",
	}, []string{"result"})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterMetrics registers rstore metrics on the provided registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LockAcquireCounter, LockEvictionCounter, CoercionCounter, MemoCounter)
}
