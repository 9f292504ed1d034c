package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/focuscam/focuscam/pkg/control"
	"github.com/focuscam/focuscam/pkg/prop"
	"github.com/focuscam/focuscam/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camera_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
device_id: 1
backends: [v4l2]
resolution:
  width: 1280
  height: 720
fps: 15
manual_focus: 120
focus:
  step: 10
image:
  brightness: 0
  contrast: 40
advanced:
  frame_timeout: 2s
  frame_retries: 6
  frame_retry_delay: 10ms
preview:
  listen: 127.0.0.1:8080
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.DeviceID)
	assert.Equal(t, []string{"v4l2"}, cfg.Backends)
	assert.Equal(t, ResolutionConfig{Width: 1280, Height: 720}, cfg.Resolution)
	assert.Equal(t, 15.0, cfg.FPS)
	assert.Equal(t, 1, cfg.BufferSize, "default kept")
	assert.Equal(t, 120, cfg.ManualFocus)
	assert.Equal(t, FocusConfig{Min: 0, Max: 255, Step: 10, Reset: 100}, cfg.Focus)
	require.NotNil(t, cfg.Image.Brightness)
	assert.Equal(t, 0, *cfg.Image.Brightness)
	require.NotNil(t, cfg.Image.Contrast)
	assert.Equal(t, 40, *cfg.Image.Contrast)
	assert.Nil(t, cfg.Image.Gamma)
	assert.Equal(t, 2*time.Second, cfg.Advanced.FrameTimeout)
	assert.Equal(t, 3, cfg.Advanced.ConnectRetries, "default kept")
	assert.Equal(t, "127.0.0.1:8080", cfg.Preview.Listen)
	assert.True(t, cfg.Preview.Overlay, "default kept")
	assert.Equal(t, "debug", cfg.LogLevel)

	opts := cfg.SessionOptions()
	require.NoError(t, opts.Validate())
	assert.Equal(t, 1, opts.DeviceIndex)
	assert.Equal(t, 1280, opts.Width)
	assert.Equal(t, prop.IntRanged{Min: 0, Max: 255}, opts.FocusRange)
	assert.Equal(t, retry.Policy{Attempts: 6, Delay: 10 * time.Millisecond}, opts.ReadRetry)
	assert.Equal(t, retry.Policy{Attempts: 3, Delay: time.Second}, opts.ConnectRetry)
	assert.Equal(t, cfg.Image.Contrast, opts.Image.Contrast)

	assert.Equal(t, control.Keymap{Step: 10, ResetFocus: 100}, cfg.Keymap())
	assert.Equal(t, 100, cfg.PreviewConfig().ResetFocus)
}

func TestLoadEnv(t *testing.T) {
	path := writeConfig(t, "device_id: 1\n")
	t.Setenv(EnvDeviceID, "3")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvPreview, ":9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.DeviceID)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, ":9000", cfg.Preview.Listen)

	t.Setenv(EnvDeviceID, "first")
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoadErrors(t *testing.T) {
	testCases := map[string]string{
		"Syntax":          "device_id: [",
		"Type":            "fps: fast",
		"NegativeDevice":  "device_id: -1",
		"NoBackends":      "backends: []",
		"ZeroWidth":       "resolution: {width: 0, height: 720}",
		"ZeroFPS":         "fps: 0",
		"ZeroBuffer":      "buffer_size: 0",
		"FocusRange":      "focus: {min: 200, max: 100}",
		"ZeroStep":        "focus: {step: 0}",
		"ZeroTimeout":     "advanced: {frame_timeout: 0s}",
		"BadDuration":     "advanced: {frame_timeout: soon}",
		"ZeroRetries":     "advanced: {frame_retries: 0}",
		"ZeroConnect":     "advanced: {connect_retries: 0}",
		"NegativeDelay":   "advanced: {frame_retry_delay: -1s}",
		"ZeroMaxFailures": "advanced: {max_consecutive_failures: 0}",
		"JPEGQuality":     "preview: {jpeg_quality: 101}",
		"LogLevel":        "log_level: loud",
	}

	for name, content := range testCases {
		content := content
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestDefaultValid(t *testing.T) {
	require.NoError(t, Default().Validate())
	require.NoError(t, Default().SessionOptions().Validate())
}
