package app

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config keys shared by the CLI and the reloader.
const (
	KeyLogLevel        = "logging.level"
	KeyFeedInterval    = "feed.interval"
	KeyStreamMode      = "feed.stream_mode"
	KeyUnknownCategory = "feed.unknown_category"
)

// IntervalSetter is the part of the replay service a config reload touches.
type IntervalSetter interface {
	SetInterval(d time.Duration) error
	Interval() time.Duration
}

// HotReloadConfig re-applies the reloadable settings (log level and
// publish interval) whenever the config file changes. Everything else
// needs a restart.
type HotReloadConfig struct {
	v      *viper.Viper
	target IntervalSetter

	configPath string
	mu         sync.Mutex
	stopped    bool
	stopOnce   sync.Once
}

type HotReloadOptions struct {
	ConfigPath string
	Target     IntervalSetter
	// Viper defaults to the global instance.
	Viper *viper.Viper
}

func NewHotReloadConfig(opts HotReloadOptions) *HotReloadConfig {
	v := opts.Viper
	if v == nil {
		v = viper.GetViper()
	}
	return &HotReloadConfig{
		v:          v,
		target:     opts.Target,
		configPath: opts.ConfigPath,
	}
}

func (h *HotReloadConfig) StartWatching() {
	h.v.OnConfigChange(func(e fsnotify.Event) {
		log.Info().
			Str("file", e.Name).
			Str("op", e.Op.String()).
			Msg("Config file changed, reloading...")

		h.reload()
	})

	h.v.WatchConfig()
	log.Info().Str("config", h.configPath).Msg("Hot-reload config watching started")
}

func (h *HotReloadConfig) reload() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	if err := h.v.ReadInConfig(); err != nil {
		log.Error().Err(err).Msg("Failed to re-read config, keeping current configuration")
		return
	}
	if err := h.apply(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration, rejecting reload")
	}
}

// Apply validates the current settings and applies them. On a validation
// error nothing is changed.
func (h *HotReloadConfig) Apply() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.apply()
}

func (h *HotReloadConfig) apply() error {
	level, interval, err := ValidateReloadable(h.v)
	if err != nil {
		return err
	}

	if zerolog.GlobalLevel() != level {
		zerolog.SetGlobalLevel(level)
		log.Info().Str("level", level.String()).Msg("Log level changed")
	}
	if h.target != nil && h.target.Interval() != interval {
		if err := h.target.SetInterval(interval); err != nil {
			return err
		}
		log.Info().Dur("interval", interval).Msg("Publish interval changed")
	}
	return nil
}

// ValidateReloadable checks the settings that may change at runtime.
func ValidateReloadable(v *viper.Viper) (zerolog.Level, time.Duration, error) {
	levelName := strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel)))
	level := zerolog.InfoLevel
	if levelName != "" {
		var err error
		level, err = zerolog.ParseLevel(levelName)
		if err != nil || level == zerolog.NoLevel {
			return 0, 0, &ConfigValidationError{Field: KeyLogLevel, Value: levelName, Reason: "unknown level"}
		}
	}

	interval := v.GetDuration(KeyFeedInterval)
	if interval < MinPublishInterval || interval > MaxPublishInterval {
		return 0, 0, &ConfigValidationError{
			Field:  KeyFeedInterval,
			Value:  v.GetString(KeyFeedInterval),
			Reason: fmt.Sprintf("must be between %s and %s", MinPublishInterval, MaxPublishInterval),
		}
	}
	return level, interval, nil
}

// ValidateStartup checks settings that are only read once at startup.
func ValidateStartup(v *viper.Viper) (ServiceConfig, error) {
	_, interval, err := ValidateReloadable(v)
	if err != nil {
		return ServiceConfig{}, err
	}
	mode, err := ParseStreamMode(v.GetString(KeyStreamMode))
	if err != nil {
		return ServiceConfig{}, &ConfigValidationError{Field: KeyStreamMode, Value: v.GetString(KeyStreamMode), Reason: "must be latest or fresh"}
	}
	policy, err := ParseUnknownCategoryPolicy(v.GetString(KeyUnknownCategory))
	if err != nil {
		return ServiceConfig{}, &ConfigValidationError{Field: KeyUnknownCategory, Value: v.GetString(KeyUnknownCategory), Reason: "must be reject or fallback"}
	}
	return ServiceConfig{Interval: interval, StreamMode: mode, UnknownCategory: policy}, nil
}

func (h *HotReloadConfig) Stop() {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		h.stopped = true
		h.mu.Unlock()
		log.Info().Msg("Hot-reload config watcher stopped")
	})
}

type ConfigValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s = %v - %s", e.Field, e.Value, e.Reason)
}
