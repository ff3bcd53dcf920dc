// Package metrics records client exchanges as Prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"httpwire/application/http/transfer"

	"github.com/prometheus/client_golang/prometheus"
)

// Default histogram buckets for request latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// Metrics holds the collectors. It satisfies the observer of the client engine.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RedirectsTotal  *prometheus.CounterVec
	AuthRetries     *prometheus.CounterVec
	DecodeFallbacks *prometheus.CounterVec
	FailuresTotal   *prometheus.CounterVec
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpwire_requests_total",
			Help: "Total requests by method and final status code.",
		}, []string{"method", "status_code"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "httpwire_request_duration_seconds",
			Help:    "Request latency in seconds, redirects and auth retries included.",
			Buckets: defaultBuckets,
		}, []string{"method"}),

		RedirectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpwire_redirects_total",
			Help: "Followed redirects by status code.",
		}, []string{"status_code"}),

		AuthRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpwire_auth_retries_total",
			Help: "Requests repeated with credentials, by scheme.",
		}, []string{"scheme"}),

		DecodeFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpwire_decode_fallbacks_total",
			Help: "Bodies kept as received because a coding failed.",
		}, []string{"coding"}),

		FailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpwire_failures_total",
			Help: "Failed requests by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RedirectsTotal,
		m.AuthRetries,
		m.DecodeFallbacks,
		m.FailuresTotal,
	)

	return m
}

func (m *Metrics) Completed(method string, code int, elapsed time.Duration) {
	method = NormalizeMethod(method)
	m.RequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) Redirected(code int) {
	m.RedirectsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (m *Metrics) AuthRetried(scheme string) {
	m.AuthRetries.WithLabelValues(scheme).Inc()
}

func (m *Metrics) DecodeFellBack(coding transfer.Coding) {
	m.DecodeFallbacks.WithLabelValues(NormalizeCoding(coding)).Inc()
}

func (m *Metrics) Failed(kind string) {
	m.FailuresTotal.WithLabelValues(kind).Inc()
}

// knownMethods lists the allowed method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod maps non-standard methods to "other".
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// NormalizeCoding maps codings without a built-in coder to "other".
// Codings come straight from response headers.
func NormalizeCoding(coding transfer.Coding) string {
	switch coding {
	case transfer.CodingChunked, transfer.CodingGzip, transfer.CodingXGzip,
		transfer.CodingDeflate, transfer.CodingCompress, transfer.CodingIdentity:
		return string(coding)
	}
	return "other"
}
