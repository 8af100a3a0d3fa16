package output

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/idsreplay/internal/domain"
)

func TestPrometheusMetrics_Observers(t *testing.T) {
	m := NewPrometheusMetrics("test", prometheus.NewRegistry(), domain.NewServiceMetrics())

	m.OnPrediction("dos", 2*time.Millisecond)
	m.OnPrediction("dos", time.Millisecond)
	m.OnPredictionError("unknown_categorical_value")
	m.OnPublish(domain.CategoryProbe)
	m.OnPublishError(errors.New("boom"))
	m.OnModeChange(domain.CategoryNormal, domain.CategoryProbe)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.predictions.WithLabelValues("dos")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictionErrors.WithLabelValues("unknown_categorical_value")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publishes.WithLabelValues("probe")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publishErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attackMode.WithLabelValues("probe")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.attackMode.WithLabelValues("normal")))
}

func TestPrometheusMetrics_AttackModeSingleActive(t *testing.T) {
	m := NewPrometheusMetrics("test", prometheus.NewRegistry(), nil)

	m.OnModeChange(domain.CategoryNormal, domain.CategoryDoS)
	m.OnModeChange(domain.CategoryDoS, domain.CategoryProbe)
	// A stale notification whose from no longer matches the gauge.
	m.OnModeChange(domain.CategoryNormal, domain.CategoryR2L)

	var active []string
	for _, c := range domain.AllCategories() {
		if testutil.ToFloat64(m.attackMode.WithLabelValues(c.String())) == 1 {
			active = append(active, c.String())
		}
	}
	assert.Equal(t, []string{"r2l"}, active)
}

func TestPrometheusMetrics_SeparateRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := NewPrometheusMetrics("", nil, nil)
	b := NewPrometheusMetrics("", nil, nil)
	assert.NotSame(t, a.Registry(), b.Registry())
}

func TestPrometheusMetrics_Handler(t *testing.T) {
	m := NewPrometheusMetrics("idsreplay", prometheus.NewRegistry(), domain.NewServiceMetrics())
	m.ObserveRequest("/predict", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `idsreplay_http_requests_total{code="200",route="/predict"} 1`), body)
	assert.Contains(t, body, `idsreplay_attack_mode{category="normal"} 1`)
	assert.Contains(t, body, "idsreplay_memory_bytes")
}
