package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry so tests can
// build as many as they like.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestDuration *prometheus.HistogramVec
	EventsPublished *prometheus.CounterVec
	GroupsClosed    *prometheus.CounterVec
	VotesCast       prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lunch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lunch",
			Name:      "events_published_total",
			Help:      "Domain events dispatched, by type and sink.",
		}, []string{"type", "sink"}),
		GroupsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lunch",
			Name:      "groups_closed_total",
			Help:      "Groups closed, by close path.",
		}, []string{"reason"}),
		VotesCast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lunch",
			Name:      "votes_cast_total",
			Help:      "Votes accepted.",
		}),
	}
	reg.MustRegister(
		m.RequestDuration,
		m.EventsPublished,
		m.GroupsClosed,
		m.VotesCast,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
