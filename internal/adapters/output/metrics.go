package output

import (
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/idsreplay/internal/domain"
)

// PrometheusMetrics exports feed and inference activity. It implements
// ports.FeedObserver and ports.PredictionObserver.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	predictions      *prometheus.CounterVec
	predictionErrors *prometheus.CounterVec
	predictionTime   prometheus.Histogram
	publishes        *prometheus.CounterVec
	publishErrors    prometheus.Counter
	modeChanges      *prometheus.CounterVec
	attackMode       *prometheus.GaugeVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	memoryUsage      prometheus.GaugeFunc
	uptime           prometheus.GaugeFunc

	server *http.Server
	mu     sync.Mutex
}

type MetricsConfig struct {
	Addr string
	Path string
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Addr: ":9090",
		Path: "/metrics",
	}
}

// NewPrometheusMetrics registers every collector on reg, or on a fresh
// registry when reg is nil.
func NewPrometheusMetrics(namespace string, reg *prometheus.Registry, internal *domain.ServiceMetrics) *PrometheusMetrics {
	if namespace == "" {
		namespace = "idsreplay"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	factory := promauto.With(reg)

	m := &PrometheusMetrics{registry: reg}

	m.predictions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_total",
		Help:      "Successful predictions by predicted label",
	}, []string{"label"})

	m.predictionErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prediction_errors_total",
		Help:      "Failed predictions by error kind",
	}, []string{"kind"})

	m.predictionTime = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "prediction_duration_seconds",
		Help:      "Time spent encoding and classifying one row",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 14),
	})

	m.publishes = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_publishes_total",
		Help:      "Rows published to the live feed by category",
	}, []string{"category"})

	m.publishErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_publish_errors_total",
		Help:      "Publisher iterations skipped after an error",
	})

	m.modeChanges = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "attack_mode_changes_total",
		Help:      "Attack mode changes by target category",
	}, []string{"category"})

	m.attackMode = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "attack_mode",
		Help:      "1 for the active attack mode, 0 otherwise",
	}, []string{"category"})
	for _, c := range domain.AllCategories() {
		m.attackMode.WithLabelValues(c.String()).Set(0)
	}
	m.attackMode.WithLabelValues(domain.DefaultCategory.String()).Set(1)

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"route", "code"})

	m.httpDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	m.memoryUsage = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "memory_bytes",
		Help:      "Current heap allocation in bytes",
	}, func() float64 {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return float64(ms.Alloc)
	})

	m.uptime = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Seconds since the service started",
	}, func() float64 {
		if internal == nil {
			return 0
		}
		return time.Since(internal.StartTime).Seconds()
	})

	return m
}

func (m *PrometheusMetrics) Registry() *prometheus.Registry { return m.registry }

func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *PrometheusMetrics) OnPrediction(label string, elapsed time.Duration) {
	m.predictions.WithLabelValues(label).Inc()
	m.predictionTime.Observe(elapsed.Seconds())
}

func (m *PrometheusMetrics) OnPredictionError(kind string) {
	m.predictionErrors.WithLabelValues(kind).Inc()
}

func (m *PrometheusMetrics) OnPublish(c domain.Category) {
	m.publishes.WithLabelValues(c.String()).Inc()
}

func (m *PrometheusMetrics) OnPublishError(error) {
	m.publishErrors.Inc()
}

// OnModeChange rebuilds the whole attack_mode gauge from to, so exactly one
// category reads 1 whatever order notifications arrive in.
func (m *PrometheusMetrics) OnModeChange(_, to domain.Category) {
	m.modeChanges.WithLabelValues(to.String()).Inc()
	for _, c := range domain.AllCategories() {
		if c == to {
			m.attackMode.WithLabelValues(c.String()).Set(1)
		} else {
			m.attackMode.WithLabelValues(c.String()).Set(0)
		}
	}
}

func (m *PrometheusMetrics) ObserveRequest(route string, code int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// StartServer exposes the registry on a dedicated listener.
func (m *PrometheusMetrics) StartServer(config MetricsConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		return errors.New("metrics server already started")
	}

	mux := http.NewServeMux()
	mux.Handle(config.Path, m.Handler())

	m.server = &http.Server{
		Addr:              config.Addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", config.Addr).Str("path", config.Path).Msg("Starting Prometheus metrics server")
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()

	return nil
}

func (m *PrometheusMetrics) StopServer() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		err := m.server.Close()
		m.server = nil
		return err
	}
	return nil
}
