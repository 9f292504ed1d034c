// Package config loads the camera configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/focuscam/focuscam/internal/logging"
	"github.com/focuscam/focuscam/pkg/control"
	"github.com/focuscam/focuscam/pkg/preview"
	"github.com/focuscam/focuscam/pkg/prop"
	"github.com/focuscam/focuscam/pkg/retry"
	"github.com/focuscam/focuscam/pkg/session"
	"gopkg.in/yaml.v3"
)

var logger = logging.NewLogger("focuscam/config")

// DefaultPath is where the binaries look for the config file.
const DefaultPath = "camera_config.yaml"

// Environment variables overriding the file.
const (
	EnvDeviceID = "FOCUSCAM_DEVICE_ID"
	EnvLogLevel = "FOCUSCAM_LOG_LEVEL"
	EnvPreview  = "FOCUSCAM_PREVIEW"
)

type Config struct {
	DeviceID    int              `yaml:"device_id"`
	Backends    []string         `yaml:"backends"`
	Resolution  ResolutionConfig `yaml:"resolution"`
	FPS         float64          `yaml:"fps"`
	BufferSize  int              `yaml:"buffer_size"`
	Autofocus   bool             `yaml:"autofocus"`
	ManualFocus int              `yaml:"manual_focus"`
	Focus       FocusConfig      `yaml:"focus"`
	Image       ImageConfig      `yaml:"image"`
	Advanced    AdvancedConfig   `yaml:"advanced"`
	Preview     PreviewConfig    `yaml:"preview"`
	LogLevel    string           `yaml:"log_level"`
}

type ResolutionConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// FocusConfig bounds the focus motor and the keyboard control.
type FocusConfig struct {
	Min   int `yaml:"min"`
	Max   int `yaml:"max"`
	Step  int `yaml:"step"`
	Reset int `yaml:"reset"`
}

// ImageConfig holds optional device controls. Absent keys keep the device
// default.
type ImageConfig struct {
	Brightness       *int `yaml:"brightness"`
	Contrast         *int `yaml:"contrast"`
	Saturation       *int `yaml:"saturation"`
	Sharpness        *int `yaml:"sharpness"`
	Gamma            *int `yaml:"gamma"`
	Gain             *int `yaml:"gain"`
	AutoExposure     *int `yaml:"auto_exposure"`
	Exposure         *int `yaml:"exposure"`
	AutoWhiteBalance *int `yaml:"auto_white_balance"`
	WhiteBalance     *int `yaml:"white_balance"`
}

type AdvancedConfig struct {
	FrameTimeout           time.Duration `yaml:"frame_timeout"`
	FrameRetries           int           `yaml:"frame_retries"`
	FrameRetryDelay        time.Duration `yaml:"frame_retry_delay"`
	ConnectRetries         int           `yaml:"connect_retries"`
	ConnectRetryDelay      time.Duration `yaml:"connect_retry_delay"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures"`
}

// PreviewConfig configures the HTTP preview. An empty Listen disables it.
type PreviewConfig struct {
	Listen      string `yaml:"listen"`
	Overlay     bool   `yaml:"overlay"`
	JPEGQuality int    `yaml:"jpeg_quality"`
	MaxWidth    int    `yaml:"max_width"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DeviceID:    0,
		Backends:    []string{"webcam", "v4l2"},
		Resolution:  ResolutionConfig{Width: 1920, Height: 1080},
		FPS:         30,
		BufferSize:  1,
		Autofocus:   false,
		ManualFocus: 100,
		Focus:       FocusConfig{Min: 0, Max: 255, Step: 5, Reset: 100},
		Advanced: AdvancedConfig{
			FrameTimeout:           time.Second,
			FrameRetries:           4,
			FrameRetryDelay:        50 * time.Millisecond,
			ConnectRetries:         3,
			ConnectRetryDelay:      time.Second,
			MaxConsecutiveFailures: 10,
		},
		Preview: PreviewConfig{
			Overlay:     true,
			JPEGQuality: 80,
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults and applies the environment. A missing
// file is not an error: the defaults are used with a warning.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warnf("config file %s not found, using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvDeviceID); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDeviceID, err)
		}
		c.DeviceID = id
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvPreview); ok {
		c.Preview.Listen = v
	}
	return nil
}

// Validate rejects settings the session cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.DeviceID < 0:
		return fmt.Errorf("device_id must not be negative: %d", c.DeviceID)
	case len(c.Backends) == 0:
		return errors.New("backends must not be empty")
	case c.Resolution.Width <= 0 || c.Resolution.Height <= 0:
		return fmt.Errorf("resolution must be positive: %dx%d", c.Resolution.Width, c.Resolution.Height)
	case c.FPS <= 0:
		return fmt.Errorf("fps must be positive: %g", c.FPS)
	case c.BufferSize <= 0:
		return fmt.Errorf("buffer_size must be positive: %d", c.BufferSize)
	case c.Focus.Min > c.Focus.Max:
		return fmt.Errorf("focus.min %d is above focus.max %d", c.Focus.Min, c.Focus.Max)
	case c.Focus.Step <= 0:
		return fmt.Errorf("focus.step must be positive: %d", c.Focus.Step)
	case c.Advanced.FrameTimeout <= 0:
		return fmt.Errorf("advanced.frame_timeout must be positive: %s", c.Advanced.FrameTimeout)
	case c.Advanced.FrameRetries <= 0:
		return fmt.Errorf("advanced.frame_retries must be positive: %d", c.Advanced.FrameRetries)
	case c.Advanced.ConnectRetries <= 0:
		return fmt.Errorf("advanced.connect_retries must be positive: %d", c.Advanced.ConnectRetries)
	case c.Advanced.FrameRetryDelay < 0 || c.Advanced.ConnectRetryDelay < 0:
		return errors.New("advanced retry delays must not be negative")
	case c.Advanced.MaxConsecutiveFailures <= 0:
		return fmt.Errorf("advanced.max_consecutive_failures must be positive: %d", c.Advanced.MaxConsecutiveFailures)
	case c.Preview.JPEGQuality < 0 || c.Preview.JPEGQuality > 100:
		return fmt.Errorf("preview.jpeg_quality must be within [0,100]: %d", c.Preview.JPEGQuality)
	}
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// SessionOptions converts the file settings into session options.
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		DeviceIndex: c.DeviceID,
		Backends:    append([]string(nil), c.Backends...),
		Width:       c.Resolution.Width,
		Height:      c.Resolution.Height,
		FPS:         c.FPS,
		BufferSize:  c.BufferSize,
		Autofocus:   c.Autofocus,
		ManualFocus: c.ManualFocus,
		FocusRange:  prop.IntRanged{Min: c.Focus.Min, Max: c.Focus.Max},
		Image: session.ImageSettings{
			Brightness:       c.Image.Brightness,
			Contrast:         c.Image.Contrast,
			Saturation:       c.Image.Saturation,
			Sharpness:        c.Image.Sharpness,
			Gamma:            c.Image.Gamma,
			Gain:             c.Image.Gain,
			AutoExposure:     c.Image.AutoExposure,
			Exposure:         c.Image.Exposure,
			AutoWhiteBalance: c.Image.AutoWhiteBalance,
			WhiteBalance:     c.Image.WhiteBalance,
		},
		FrameTimeout: c.Advanced.FrameTimeout,
		ReadRetry:    retry.Policy{Attempts: c.Advanced.FrameRetries, Delay: c.Advanced.FrameRetryDelay},
		ConnectRetry: retry.Policy{Attempts: c.Advanced.ConnectRetries, Delay: c.Advanced.ConnectRetryDelay},
	}
}

// PreviewConfig converts the preview section.
func (c *Config) PreviewConfig() preview.Config {
	return preview.Config{
		Listen:      c.Preview.Listen,
		Overlay:     c.Preview.Overlay,
		JPEGQuality: c.Preview.JPEGQuality,
		MaxWidth:    c.Preview.MaxWidth,
		ResetFocus:  c.Focus.Reset,
	}
}

// Keymap converts the focus step and reset position.
func (c *Config) Keymap() control.Keymap {
	return control.Keymap{Step: c.Focus.Step, ResetFocus: c.Focus.Reset}
}
