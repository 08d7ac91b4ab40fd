// Package metrics exposes the prometheus counters and histograms
// observed across the upload finalizer, namespace controller and
// per-hash lock map.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label constants for metrics.
const (
	LabelOutcome   = "outcome"
	LabelOperation = "operation"
)

// Outcome constants for upload finalization.
const (
	OutcomeFresh     = "fresh"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

// Collectors bundles every metric this core registers. Construct one
// with New and pass it into pkg/upload and pkg/namespace (pkg/upload
// also records the time spent waiting on pkg/hashlock); a nil *Collectors is valid everywhere and simply records nothing, so
// callers that don't care about metrics can skip wiring a registry.
type Collectors struct {
	uploadTotal       *prometheus.CounterVec
	uploadDuration    *prometheus.HistogramVec
	hashlockWait      prometheus.Histogram
	namespaceOpsTotal *prometheus.CounterVec
}

// New creates and registers the collector set against registry.
func New(registry *prometheus.Registry) *Collectors {
	c := &Collectors{
		uploadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_upload_finalize_total",
			Help: "Upload finalizer completions by outcome.",
		}, []string{LabelOutcome}),
		uploadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vault_upload_finalize_seconds",
			Help:    "Upload finalizer phase duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{LabelOutcome}),
		hashlockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_hashlock_wait_seconds",
			Help:    "Time spent waiting to acquire the per-hash upload mutex.",
			Buckets: prometheus.DefBuckets,
		}),
		namespaceOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_namespace_operations_total",
			Help: "Namespace controller operations by name and outcome.",
		}, []string{LabelOperation, LabelOutcome}),
	}

	registry.MustRegister(c.uploadTotal, c.uploadDuration, c.hashlockWait, c.namespaceOpsTotal)
	return c
}

// ObserveUpload records one finalized upload's outcome and duration.
func (c *Collectors) ObserveUpload(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.uploadTotal.WithLabelValues(outcome).Inc()
	c.uploadDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveHashlockWait records time spent blocked on the per-hash mutex.
func (c *Collectors) ObserveHashlockWait(d time.Duration) {
	if c == nil {
		return
	}
	c.hashlockWait.Observe(d.Seconds())
}

// ObserveNamespaceOp records one namespace controller call.
func (c *Collectors) ObserveNamespaceOp(operation, outcome string) {
	if c == nil {
		return
	}
	c.namespaceOpsTotal.WithLabelValues(operation, outcome).Inc()
}
