package tui

import (
	"sort"
	"sync"

	"github.com/xoelrdgz/idsreplay/internal/domain"
	"github.com/xoelrdgz/idsreplay/internal/tui/views"
)

// Model holds everything the dashboard renders. Observations arrive from
// the watcher goroutine; rendering happens on the bubbletea goroutine.
type Model struct {
	Width  int
	Height int

	ActiveView int

	Observations []domain.Observation
	Accuracy     []float64
	classes      map[string]*views.ClassEntry
	stats        views.Stats

	MaxObservations int
	AccuracyWindow  int
	SparklineWidth  int

	mu sync.RWMutex
}

func NewModel() *Model {
	return &Model{
		Width:           120,
		Height:          40,
		Observations:    make([]domain.Observation, 0, 100),
		Accuracy:        make([]float64, 60),
		classes:         make(map[string]*views.ClassEntry),
		MaxObservations: 200,
		AccuracyWindow:  20,
		SparklineWidth:  60,
	}
}

// AddObservation appends obs, updates the per-class tallies and pushes the
// rolling accuracy onto the sparkline.
func (m *Model) AddObservation(obs domain.Observation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Observations) >= m.MaxObservations {
		copy(m.Observations, m.Observations[1:])
		m.Observations = m.Observations[:len(m.Observations)-1]
	}
	m.Observations = append(m.Observations, obs)

	m.stats.Polls++
	m.stats.Mode = obs.Mode
	m.stats.LastLatency = obs.Latency
	if obs.Err != "" {
		m.stats.Errors++
		m.stats.LastError = obs.Err
	} else {
		entry, ok := m.classes[obs.Predicted]
		if !ok {
			entry = &views.ClassEntry{Label: obs.Predicted}
			m.classes[obs.Predicted] = entry
		}
		entry.Count++
		entry.LastSeen = obs.At.Format("15:04:05")
		if obs.Actual != "" {
			m.stats.Labelled++
			if obs.Match() {
				entry.Correct++
				m.stats.Matches++
			}
		}
	}

	m.Accuracy = append(m.Accuracy[1:], m.rollingAccuracy())
}

func (m *Model) rollingAccuracy() float64 {
	var seen, hit int
	for i := len(m.Observations) - 1; i >= 0 && seen < m.AccuracyWindow; i-- {
		o := &m.Observations[i]
		if o.Err != "" || o.Actual == "" {
			continue
		}
		seen++
		if o.Match() {
			hit++
		}
	}
	if seen == 0 {
		return 0
	}
	return float64(hit) / float64(seen) * 100
}

func (m *Model) SetMode(c domain.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Mode = c
}

func (m *Model) GetObservations() []domain.Observation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]domain.Observation, len(m.Observations))
	copy(result, m.Observations)
	return result
}

// GetClasses returns the tallies ordered by count, highest first.
func (m *Model) GetClasses() []views.ClassEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]views.ClassEntry, 0, len(m.classes))
	for _, e := range m.classes {
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Label < result[j].Label
	})
	return result
}

func (m *Model) GetAccuracy() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]float64, len(m.Accuracy))
	copy(result, m.Accuracy)
	return result
}

func (m *Model) Stats() views.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

func (m *Model) SetDimensions(width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Width = width
	m.Height = height
}

func (m *Model) NextView() {
	m.ActiveView = (m.ActiveView + 1) % 2
}
