package output

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/idsreplay/internal/app"
)

// HealthSource reports the current service state.
type HealthSource interface {
	Health() app.HealthStatus
}

// HealthChecker serves a cached health status; answers 503 unless the
// status is healthy.
type HealthChecker struct {
	source HealthSource

	lastCheck     app.HealthStatus
	lastCheckTime time.Time
	lastCheckMu   sync.RWMutex
	checkInterval time.Duration
}

type HealthCheckerConfig struct {
	CheckInterval time.Duration
}

func DefaultHealthCheckerConfig() HealthCheckerConfig {
	return HealthCheckerConfig{CheckInterval: time.Second}
}

func NewHealthChecker(source HealthSource, config HealthCheckerConfig) *HealthChecker {
	return &HealthChecker{
		source:        source,
		checkInterval: config.CheckInterval,
	}
}

func (h *HealthChecker) Check() app.HealthStatus {
	h.lastCheckMu.RLock()
	if !h.lastCheckTime.IsZero() && time.Since(h.lastCheckTime) < h.checkInterval {
		cached := h.lastCheck
		h.lastCheckMu.RUnlock()
		return cached
	}
	h.lastCheckMu.RUnlock()

	status := h.source.Health()

	h.lastCheckMu.Lock()
	h.lastCheck = status
	h.lastCheckTime = time.Now()
	h.lastCheckMu.Unlock()

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check()

	w.Header().Set("Content-Type", "application/json")
	if status.Healthy() {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Debug().Err(err).Msg("Failed to write health response")
	}
}
