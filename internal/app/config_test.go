package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type intervalHolder struct{ d time.Duration }

func (h *intervalHolder) SetInterval(d time.Duration) error { h.d = d; return nil }
func (h *intervalHolder) Interval() time.Duration           { return h.d }

func newViper(values map[string]any) *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyFeedInterval, "1s")
	v.SetDefault(KeyStreamMode, "latest")
	v.SetDefault(KeyUnknownCategory, "reject")
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestValidateReloadable(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		field   string
		wantErr bool
	}{
		{"defaults", nil, "", false},
		{"debug", map[string]any{KeyLogLevel: "DEBUG"}, "", false},
		{"bad level", map[string]any{KeyLogLevel: "chatty"}, KeyLogLevel, true},
		{"interval too short", map[string]any{KeyFeedInterval: "1ms"}, KeyFeedInterval, true},
		{"interval unparsable", map[string]any{KeyFeedInterval: "soon"}, KeyFeedInterval, true},
		{"interval too long", map[string]any{KeyFeedInterval: "2h"}, KeyFeedInterval, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ValidateReloadable(newViper(tc.values))
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			var cve *ConfigValidationError
			require.True(t, errors.As(err, &cve))
			assert.Equal(t, tc.field, cve.Field)
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestValidateStartup(t *testing.T) {
	cfg, err := ValidateStartup(newViper(map[string]any{
		KeyFeedInterval:    "250ms",
		KeyStreamMode:      "fresh",
		KeyUnknownCategory: "fallback",
	}))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Interval)
	assert.Equal(t, StreamFresh, cfg.StreamMode)
	assert.Equal(t, PolicyFallback, cfg.UnknownCategory)

	_, err = ValidateStartup(newViper(map[string]any{KeyStreamMode: "push"}))
	assert.Error(t, err)

	_, err = ValidateStartup(newViper(map[string]any{KeyUnknownCategory: "ignore"}))
	assert.Error(t, err)
}

func TestHotReloadConfig_Apply(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	target := &intervalHolder{d: time.Second}
	v := newViper(map[string]any{KeyLogLevel: "warn", KeyFeedInterval: "200ms"})
	h := NewHotReloadConfig(HotReloadOptions{Target: target, Viper: v})

	require.NoError(t, h.Apply())
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	assert.Equal(t, 200*time.Millisecond, target.d)

	v.Set(KeyFeedInterval, "1ns")
	v.Set(KeyLogLevel, "debug")
	assert.Error(t, h.Apply())
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel(), "invalid reload changes nothing")
	assert.Equal(t, 200*time.Millisecond, target.d)
}

func TestHotReloadConfig_ReloadFromFile(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("feed:\n  interval: 500ms\n"), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	target := &intervalHolder{d: time.Second}
	h := NewHotReloadConfig(HotReloadOptions{ConfigPath: path, Target: target, Viper: v})

	require.NoError(t, os.WriteFile(path, []byte("feed:\n  interval: 750ms\nlogging:\n  level: error\n"), 0o644))
	h.reload()
	assert.Equal(t, 750*time.Millisecond, target.d)
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())

	h.Stop()
	require.NoError(t, os.WriteFile(path, []byte("feed:\n  interval: 2s\n"), 0o644))
	h.reload()
	assert.Equal(t, 750*time.Millisecond, target.d, "stopped watcher ignores changes")
}

func TestConfigValidationError(t *testing.T) {
	err := &ConfigValidationError{Field: "feed.interval", Value: "1ms", Reason: "too short"}
	assert.Equal(t, "config validation error: feed.interval = 1ms - too short", err.Error())
}
