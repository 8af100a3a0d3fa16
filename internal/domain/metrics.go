package domain

import (
	"sync"
	"sync/atomic"
	"time"
)

type Prediction struct {
	Label    string        `json:"prediction"`
	Model    string        `json:"-"`
	Duration time.Duration `json:"-"`
}

type MetricsSnapshot struct {
	Predictions      int64
	PredictionErrors int64
	Publishes        int64
	PublishErrors    int64
	ModeChanges      int64
	ActiveCategory   Category
	LastPublish      time.Time
	LastLabel        string
	Uptime           time.Duration
	StartTime        time.Time
}

// ServiceMetrics holds in-process counters read by the health endpoint and
// the watch console. Prometheus exposition lives in the output adapter.
type ServiceMetrics struct {
	predictions      atomic.Int64
	predictionErrors atomic.Int64
	publishes        atomic.Int64
	publishErrors    atomic.Int64
	modeChanges      atomic.Int64
	lastPublishNanos atomic.Int64

	activeCategory Category
	lastLabel      string
	StartTime      time.Time

	mu sync.RWMutex
}

func NewServiceMetrics() *ServiceMetrics {
	return &ServiceMetrics{
		StartTime:      time.Now(),
		activeCategory: DefaultCategory,
	}
}

func (m *ServiceMetrics) RecordPrediction(label string) {
	m.predictions.Add(1)
	m.mu.Lock()
	m.lastLabel = label
	m.mu.Unlock()
}

func (m *ServiceMetrics) RecordPredictionError() {
	m.predictionErrors.Add(1)
}

func (m *ServiceMetrics) RecordPublish(at time.Time) {
	m.publishes.Add(1)
	m.lastPublishNanos.Store(at.UnixNano())
}

func (m *ServiceMetrics) RecordPublishError() {
	m.publishErrors.Add(1)
}

func (m *ServiceMetrics) RecordModeChange(c Category) {
	m.modeChanges.Add(1)
	m.mu.Lock()
	m.activeCategory = c
	m.mu.Unlock()
}

func (m *ServiceMetrics) Publishes() int64 {
	return m.publishes.Load()
}

func (m *ServiceMetrics) LastPublish() time.Time {
	n := m.lastPublishNanos.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (m *ServiceMetrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		Predictions:      m.predictions.Load(),
		PredictionErrors: m.predictionErrors.Load(),
		Publishes:        m.publishes.Load(),
		PublishErrors:    m.publishErrors.Load(),
		ModeChanges:      m.modeChanges.Load(),
		ActiveCategory:   m.activeCategory,
		LastPublish:      m.LastPublish(),
		LastLabel:        m.lastLabel,
		Uptime:           time.Since(m.StartTime),
		StartTime:        m.StartTime,
	}
}

// The On* methods let ServiceMetrics observe the feed and the inference
// service directly.

func (m *ServiceMetrics) OnPublish(Category) { m.RecordPublish(time.Now()) }

func (m *ServiceMetrics) OnPublishError(error) { m.RecordPublishError() }

func (m *ServiceMetrics) OnModeChange(_, to Category) { m.RecordModeChange(to) }

func (m *ServiceMetrics) OnPrediction(label string, _ time.Duration) { m.RecordPrediction(label) }

func (m *ServiceMetrics) OnPredictionError(string) { m.RecordPredictionError() }
