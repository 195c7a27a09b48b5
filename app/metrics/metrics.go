package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "api_subscriptions"

const (
	OutcomeSynchronized = "synchronized"
	OutcomeRemoteFailed = "remote_failed"
	OutcomeDiverged     = "diverged"
)

var SyncOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "sync",
	Name:      "operations_total",
	Help:      "Gateway plus store synchronizations by operation and outcome",
}, []string{"operation", "outcome"})

var GatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "gateway",
	Name:      "request_duration_seconds",
	Help:      "Latency of API Management requests",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "status"})

var DivergencesReportedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reconciliation",
	Name:      "divergences_reported_total",
	Help:      "Divergence events handed to the notifier, by reporter",
}, []string{"reporter"})

func ObserveSync(operation, outcome string) {
	SyncOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveGatewayRequest records one gateway round trip. A zero status marks
// a transport failure.
func ObserveGatewayRequest(method string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status/100) + "xx"
	}
	GatewayRequestDuration.WithLabelValues(method, label).Observe(elapsed.Seconds())
}

func ObserveDivergenceReported(reporter string) {
	DivergencesReportedTotal.WithLabelValues(reporter).Inc()
}
