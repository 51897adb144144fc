// Package observability holds the Prometheus instruments of the bot.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "jarvis"

// Exchange outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeCompletion  = "completion_error"
	OutcomeStorage     = "storage_error"
	OutcomeNotRecorded = "not_recorded"
)

// Metrics groups all Prometheus instruments used by the bot.
// It also serves as the web context observer.
type Metrics struct {
	Exchanges         *prometheus.CounterVec
	WebContext        *prometheus.CounterVec
	WebFetchFailures  *prometheus.CounterVec
	CompletionLatency prometheus.Histogram
	RateLimited       prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics registers the instruments with reg. A nil reg uses a fresh
// registry, which keeps tests independent.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	factory := promauto.With(reg)
	return &Metrics{
		Exchanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "exchanges_total",
			Help:      "Conversation exchanges by outcome.",
		}, []string{"outcome"}),
		WebContext: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "web_context_total",
			Help:      "Web context gathering attempts by result.",
		}, []string{"result"}),
		WebFetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "web_fetch_failures_total",
			Help:      "Web fetch and search failures by reason.",
		}, []string{"reason"}),
		CompletionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "completion_seconds",
			Help:      "Latency of chat completion calls in seconds.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 15, 30, 60},
		}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rate_limited_total",
			Help:      "Updates rejected by the per-user rate limiter.",
		}),
		gatherer: gatherer,
	}
}

// ObserveExchange counts one exchange by outcome.
func (m *Metrics) ObserveExchange(outcome string) {
	m.Exchanges.WithLabelValues(outcome).Inc()
}

// ObserveCompletion records the latency of one completion call.
func (m *Metrics) ObserveCompletion(d time.Duration) {
	m.CompletionLatency.Observe(d.Seconds())
}

// FetchFailed counts a failed web fetch or search.
func (m *Metrics) FetchFailed(reason string) {
	m.WebFetchFailures.WithLabelValues(reason).Inc()
}

// ContextGathered counts a web context attempt by result.
func (m *Metrics) ContextGathered(result string) {
	m.WebContext.WithLabelValues(result).Inc()
}

// Handler serves the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
