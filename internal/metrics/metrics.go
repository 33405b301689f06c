package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "study"

// Metrics groups the collectors of the service on a private registry.
// Every method is safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	normalizerPaths   *prometheus.CounterVec
	ingestions        *prometheus.CounterVec
	unifiedGroups     prometheus.Gauge
	quizRequests      *prometheus.CounterVec
	externalQuestions prometheus.Counter
	evictions         prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		normalizerPaths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalizer_path_total",
			Help:      "Documents normalized, by the path that produced their sections.",
		}, []string{"path"}),
		ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestions_total",
			Help:      "Document ingestions by result.",
		}, []string{"result"}),
		unifiedGroups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unified_groups_last",
			Help:      "Cross-document groups in the most recently recomputed session outline.",
		}),
		quizRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quiz_requests_total",
			Help:      "Quiz generation requests by result.",
		}, []string{"result"}),
		externalQuestions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quiz_external_questions_total",
			Help:      "Questions served from topic-only generation.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_evictions_total",
			Help:      "Sessions whose data was evicted.",
		}),
	}
	m.registry.MustRegister(
		m.normalizerPaths,
		m.ingestions,
		m.unifiedGroups,
		m.quizRequests,
		m.externalQuestions,
		m.evictions,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveNormalizerPath(path string) {
	if m == nil {
		return
	}
	m.normalizerPaths.WithLabelValues(path).Inc()
}

func (m *Metrics) ObserveIngestion(result string) {
	if m == nil {
		return
	}
	m.ingestions.WithLabelValues(result).Inc()
}

func (m *Metrics) SetUnifiedGroups(n int) {
	if m == nil {
		return
	}
	m.unifiedGroups.Set(float64(n))
}

func (m *Metrics) ObserveQuiz(result string, external int) {
	if m == nil {
		return
	}
	m.quizRequests.WithLabelValues(result).Inc()
	if external > 0 {
		m.externalQuestions.Add(float64(external))
	}
}

func (m *Metrics) ObserveEviction() {
	if m == nil {
		return
	}
	m.evictions.Inc()
}
