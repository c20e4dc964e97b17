package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as nil, every method is a no-op then
type Metrics struct {
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec
	ResolutionsTotal        *prometheus.CounterVec
	ConversionsTotal        *prometheus.CounterVec
	HTTPRequestsTotal       *prometheus.CounterVec
	BotUpdatesTotal         *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		UpstreamRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_requests_total",
				Help: "Total number of upstream rate provider requests",
			},
			[]string{"provider", "outcome"},
		),

		UpstreamRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_request_duration_seconds",
				Help:    "Upstream rate provider request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),

		ResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_resolutions_total",
				Help: "Total number of rate resolutions",
			},
			[]string{"route", "outcome"},
		),

		ConversionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conversions_total",
				Help: "Total number of currency conversions",
			},
			[]string{"outcome"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status_code"},
		),

		BotUpdatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_updates_total",
				Help: "Total number of chat updates handled",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) ObserveUpstream(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(provider, outcome).Inc()
	m.UpstreamRequestDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) ObserveResolution(route, outcome string) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(route, outcome).Inc()
}

func (m *Metrics) ObserveConversion(outcome string) {
	if m == nil {
		return
	}
	m.ConversionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveHTTP(path, method, status string) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(path, method, status).Inc()
}

func (m *Metrics) ObserveBotUpdate(kind string) {
	if m == nil {
		return
	}
	m.BotUpdatesTotal.WithLabelValues(kind).Inc()
}
