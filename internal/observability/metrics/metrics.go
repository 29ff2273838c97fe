package metrics

import "github.com/prometheus/client_golang/prometheus"

// ClientMetrics exposes counters/histograms for backend API traffic.
type ClientMetrics struct {
	requestsTotal  *prometheus.CounterVec
	refreshTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	bookingsTotal  *prometheus.CounterVec
}

func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	m := &ClientMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total backend API requests by method, route and status class",
		}, []string{"method", "route", "status"}),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "session",
			Name:      "token_refresh_total",
			Help:      "Access token refresh attempts by outcome",
		}, []string{"outcome"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "api",
			Name:      "request_latency_seconds",
			Help:      "Latency of backend API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Appointment submissions by mode and outcome",
		}, []string{"mode", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.refreshTotal, m.requestLatency, m.bookingsTotal)
	return m
}

// ObserveRequest records one completed request. status 0 means transport failure.
func (m *ClientMetrics) ObserveRequest(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	m.requestLatency.WithLabelValues(method, route).Observe(seconds)
}

func (m *ClientMetrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(outcome).Inc()
}

func (m *ClientMetrics) ObserveBooking(mode, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(mode, outcome).Inc()
}

func statusClass(status int) string {
	switch {
	case status <= 0:
		return "error"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
