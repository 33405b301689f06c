package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := New()

	m.ObserveNormalizerPath("declared")
	m.ObserveNormalizerPath("declared")
	m.ObserveNormalizerPath("single")
	m.ObserveQuiz("served", 4)
	m.ObserveQuiz("insufficient", 0)
	m.ObserveEviction()
	m.SetUnifiedGroups(3)

	require.Equal(t, 2.0, testutil.ToFloat64(m.normalizerPaths.WithLabelValues("declared")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.normalizerPaths.WithLabelValues("single")))
	require.Equal(t, 4.0, testutil.ToFloat64(m.externalQuestions))
	require.Equal(t, 1.0, testutil.ToFloat64(m.quizRequests.WithLabelValues("insufficient")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.evictions))
	require.Equal(t, 3.0, testutil.ToFloat64(m.unifiedGroups))
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.ObserveEviction()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "study_session_evictions_total 1"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveNormalizerPath("x")
	m.ObserveIngestion("ok")
	m.ObserveQuiz("served", 1)
	m.ObserveEviction()
	m.SetUnifiedGroups(1)
	require.Nil(t, m.Registry())
}
