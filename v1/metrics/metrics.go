package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// LockAcquireCounter counts lock acquisitions by outcome
	// (acquired, taken, timeout, error).
	LockAcquireCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toolkit_lock_acquire_total",
		Help: "Total number of lock acquisition attempts by outcome",
	}, []string{"outcome"})
	// LockReleaseCounter counts lease releases by outcome (released, lost, error).
	LockReleaseCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toolkit_lock_release_total",
		Help: "Total number of lease releases by outcome",
	}, []string{"outcome"})
	// HTTPAttemptCounter counts HTTP attempts by method and classification.
	HTTPAttemptCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toolkit_http_attempts_total",
		Help: "Total number of outbound HTTP attempts",
	}, []string{"method", "outcome"})
	// HTTPRetryCounter counts backoff delays taken before a new attempt.
	HTTPRetryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toolkit_http_retries_total",
		Help: "Total number of outbound HTTP retries",
	}, []string{"method"})
	// MemoCounter tracks memoized call lookups (hit, local_hit, miss, error).
	MemoCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toolkit_memo_lookups_total",
		Help: "Total number of memoized call lookups",
	}, []string{"result"})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterCoreMetrics registers toolkit metrics on the provided registry.
func RegisterCoreMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LockAcquireCounter, LockReleaseCounter, HTTPAttemptCounter, HTTPRetryCounter, MemoCounter)
}
