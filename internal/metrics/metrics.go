package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, route pattern, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "route", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route", "status"},
	)

	// DrinkMutations counts successful create/update/delete operations
	DrinkMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "drink_mutations_total", Help: "Successful drink mutations by operation."},
		[]string{"op"},
	)
	// AuthFailures counts rejected requests by gate error code
	AuthFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "auth_failures_total", Help: "Authorization failures by error code."},
		[]string{"code"},
	)
	// EventPublishFailures counts change events that could not be sent to Redis
	EventPublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "drink_event_publish_failures_total", Help: "Drink events that failed to publish."},
	)
	// JWKSFetches counts key set downloads by outcome
	JWKSFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jwks_fetches_total", Help: "JWKS fetches by result."},
		[]string{"result"},
	)
)

// RegisterDefault registers collectors to the API registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(DrinkMutations)
		Registry.MustRegister(AuthFailures)
		Registry.MustRegister(JWKSFetches)
		Registry.MustRegister(EventPublishFailures)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
