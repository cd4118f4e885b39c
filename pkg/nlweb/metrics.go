package nlweb

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports client counters to Prometheus. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	events   *prometheus.CounterVec
	dropped  prometheus.Counter
	cache    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nlvoice",
			Subsystem: "nlweb",
			Name:      "requests_total",
			Help:      "Knowledge service requests by tier and result.",
		}, []string{"tier", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nlvoice",
			Subsystem: "nlweb",
			Name:      "request_duration_seconds",
			Help:      "Knowledge service request latency by tier.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 15, 30, 45, 60},
		}, []string{"tier"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nlvoice",
			Subsystem: "nlweb",
			Name:      "stream_events_total",
			Help:      "Decoded stream events by kind.",
		}, []string{"kind"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nlvoice",
			Subsystem: "nlweb",
			Name:      "malformed_lines_total",
			Help:      "Stream data lines dropped because they did not decode.",
		}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nlvoice",
			Subsystem: "nlweb",
			Name:      "cache_lookups_total",
			Help:      "Answer cache lookups by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.requests, m.latency, m.events, m.dropped, m.cache)
	return m
}

func (m *Metrics) observeRequest(t Tier, result string, started time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(t.String(), result).Inc()
	m.latency.WithLabelValues(t.String()).Observe(time.Since(started).Seconds())
}

func (m *Metrics) observeEvent(ev Event) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(ev.Kind.String()).Inc()
}

func (m *Metrics) observeDropped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.dropped.Add(float64(n))
}

func (m *Metrics) observeCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cache.WithLabelValues("hit").Inc()
		return
	}
	m.cache.WithLabelValues("miss").Inc()
}
