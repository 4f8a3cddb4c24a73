// Package metrics holds the prometheus collectors of the provisioner and the
// backup tooling. Collectors live on a private registry so tests and the
// serve mode can gather them without touching the global default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "backup_provisioner"

var (
	// Registry is the registry every collector below is registered on.
	Registry = prometheus.NewRegistry()

	reconcileTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_total",
		Help:      "Reconciliation requests by resource type, request type and result status.",
	}, []string{"resource_type", "request_type", "status"})

	discoveryErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "discovery_errors_total",
		Help:      "Absorbed errors while looking for an existing identity provider.",
	}, []string{"stage"})

	callbackFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "callback_failures_total",
		Help:      "Result envelopes that could not be delivered to the callback address.",
	})

	uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Backup uploads by cadence and outcome.",
	}, []string{"cadence", "status"})
)

func init() {
	Registry.MustRegister(
		reconcileTotal,
		discoveryErrors,
		callbackFailures,
		uploadsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveReconcile counts one produced result.
func ObserveReconcile(resourceType, requestType, status string) {
	if resourceType == "" {
		resourceType = "unknown"
	}
	reconcileTotal.WithLabelValues(resourceType, requestType, status).Inc()
}

// DiscoveryError counts an absorbed discovery failure; stage is "list" or "get".
func DiscoveryError(stage string) {
	discoveryErrors.WithLabelValues(stage).Inc()
}

// CallbackFailed counts an undeliverable result.
func CallbackFailed() {
	callbackFailures.Inc()
}

// ObserveUpload counts one backup object upload.
func ObserveUpload(cadence string, ok bool) {
	status := "success"
	if !ok {
		status = "failed"
	}
	uploadsTotal.WithLabelValues(cadence, status).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// Collectors exposes the counters for assertions in tests.
var Collectors = struct {
	Reconcile        *prometheus.CounterVec
	DiscoveryErrors  *prometheus.CounterVec
	CallbackFailures prometheus.Counter
	Uploads          *prometheus.CounterVec
}{reconcileTotal, discoveryErrors, callbackFailures, uploadsTotal}
