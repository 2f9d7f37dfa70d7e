package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the console's collectors on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	liveEngines     *prometheus.GaugeVec
	answers         *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake_console",
			Name:      "upstream_requests_total",
			Help:      "Requests sent to the intake backend and object storage.",
		}, []string{"endpoint", "status"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "intake_console",
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of upstream requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		liveEngines: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "intake_console",
			Name:      "live_engines",
			Help:      "Conversation and review engines held in memory.",
		}, []string{"kind"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake_console",
			Name:      "answers_total",
			Help:      "Answers submitted by respondents, by input kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(m.backendRequests, m.backendLatency, m.liveEngines, m.answers)
	m.registry.MustRegister(collectors.NewGoCollector())
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) EngineOpened(kind string) {
	if m == nil {
		return
	}
	m.liveEngines.WithLabelValues(kind).Inc()
}

func (m *Metrics) EngineClosed(kind string) {
	if m == nil {
		return
	}
	m.liveEngines.WithLabelValues(kind).Dec()
}

func (m *Metrics) Answer(kind string) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(kind).Inc()
}

// ObserveUpstream records one upstream call. status is the HTTP code, or 0 for transport errors.
func (m *Metrics) ObserveUpstream(endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.backendRequests.WithLabelValues(endpoint, code).Inc()
	m.backendLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// Transport wraps next so every request is counted under the label that
// label returns for it.
func (m *Metrics) Transport(next http.RoundTripper, label func(*http.Request) string) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &instrumentedTransport{next: next, metrics: m, label: label}
}

type instrumentedTransport struct {
	next    http.RoundTripper
	metrics *Metrics
	label   func(*http.Request) string
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	status := 0
	if err == nil {
		status = resp.StatusCode
	}
	endpoint := req.URL.Path
	if t.label != nil {
		endpoint = t.label(req)
	}
	t.metrics.ObserveUpstream(endpoint, status, time.Since(start))
	return resp, err
}
