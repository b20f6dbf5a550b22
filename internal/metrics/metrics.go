package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/norruva/dpp-service/internal/core/events"
)

var (
	passportTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dpp",
		Name:      "passport_transitions_total",
		Help:      "Passport lifecycle transitions by event type.",
	}, []string{"event_type"})

	anchoringFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dpp",
		Name:      "anchoring_failures_total",
		Help:      "Anchoring sagas that exhausted their retries.",
	})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dpp",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and status class.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "status_class"})
)

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(method, statusClass string, seconds float64) {
	httpRequestDuration.WithLabelValues(method, statusClass).Observe(seconds)
}

// Collector counts passport lifecycle events off the event bus so the
// workflow engine stays metrics-free.
type Collector struct{}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Subscribe(bus *events.EventBus) {
	for _, eventType := range []string{
		events.EventTypePassportSubmitted,
		events.EventTypePassportApproved,
		events.EventTypePassportRejected,
		events.EventTypePassportAnchored,
		events.EventTypeAnchoringFailed,
		events.EventTypeProductRecycled,
	} {
		bus.Subscribe(eventType, c.handle)
	}
}

func (c *Collector) handle(_ context.Context, event events.Event) error {
	passportTransitions.WithLabelValues(event.EventType()).Inc()
	if event.EventType() == events.EventTypeAnchoringFailed {
		anchoringFailures.Inc()
	}
	return nil
}
